// Package rag provides the client for the AILAYZER RAG backend: a plain JSON
// query call and the incremental token stream consumed from /rag/stream.
package rag

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ailayzer/boltchat/domain"
)

// Client is the RAG backend client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	emitter    emitter
	logger     *zap.Logger
}

// NewClient creates a new backend client.
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		emitter: emitter{
			threshold: defaultSliceThreshold,
			sliceSize: defaultSliceSize,
			delay:     defaultSliceDelay,
		},
		logger: logger,
	}
}

// QueryRequest is the request body for both backend endpoints.
type QueryRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// QueryResponse is the answer record returned by /rag/query.
type QueryResponse struct {
	Query              string   `json:"query"`
	Answer             string   `json:"answer"`
	HallucinationScore float64  `json:"hallucination_score"`
	AnswerGrade        float64  `json:"answer_grade"`
	RetrievedDocs      []string `json:"retrieved_docs,omitempty"`
	Source             string   `json:"source,omitempty"`
}

// StreamError is the terminal failure signaled in-band by an [ERROR] payload.
// Text accumulated before it must be treated as incomplete.
type StreamError struct {
	Info string
}

func (e *StreamError) Error() string {
	if e.Info == "" {
		return "rag stream: backend reported an error"
	}
	return "rag stream: " + e.Info
}

// EventHandler receives each classified stream event in wire order.
type EventHandler func(event domain.StreamEvent) error

// Query sends a non-streaming request to /rag/query.
func (c *Client) Query(ctx context.Context, req *QueryRequest) (*QueryResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rag/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("RAG API error [%d]: %s", resp.StatusCode, string(respBody))
	}

	var result QueryResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}

	return &result, nil
}

// Stream sends a streaming request to /rag/stream and delivers every decoded
// event to handler in wire order. Exactly one terminal event is delivered:
// EventStreamEnded on [DONE] (or on end of input without a sentinel, which is
// accepted as an ungraceful completion), or EventStreamError on an [ERROR]
// payload, which is also returned as a *StreamError. Transport failures
// return an error without any terminal event. No events are delivered after
// a terminal one, even if more bytes follow in the response.
func (c *Client) Stream(ctx context.Context, req *QueryRequest, handler EventHandler) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rag/stream", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("RAG API error [%d]: %s", resp.StatusCode, string(respBody))
	}

	c.logger.Debug("stream opened",
		zap.String("url", c.baseURL+"/rag/stream"),
		zap.Int("status", resp.StatusCode))

	dec := &lineDecoder{}
	buf := make([]byte, 4096)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			c.logger.Debug("chunk received", zap.Int("bytes", n))

			for _, line := range dec.feed(buf[:n]) {
				event, ok := classifyLine(line)
				if !ok {
					continue
				}

				switch event.Kind {
				case domain.EventStreamStarted:
					c.logger.Debug("backend started emitting")
					if err := handler(event); err != nil {
						return err
					}
				case domain.EventStreamEnded:
					// Terminal. Remaining bytes in the response are not read.
					return handler(event)
				case domain.EventStreamError:
					c.logger.Warn("backend reported stream error", zap.String("info", event.Text))
					if err := handler(event); err != nil {
						return err
					}
					return &StreamError{Info: event.Text}
				default:
					c.logger.Debug("token received", zap.Int("len", len(event.Text)))
					if err := c.emitter.emit(ctx, event.Text, handler); err != nil {
						return err
					}
				}
			}
		}

		if readErr == io.EOF {
			// The backend closed without a sentinel. Accepted as an
			// ungraceful completion; the accumulated text stands.
			return handler(domain.StreamEvent{Kind: domain.EventStreamEnded})
		}
		if readErr != nil {
			return fmt.Errorf("failed to read stream: %w", readErr)
		}
	}
}
