package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ailayzer/boltchat/domain"
	"github.com/ailayzer/boltchat/rag"
)

// streamFailureNotice replaces the partial accumulation when an exchange
// fails. The assistant turn is always committed with this text on failure,
// never left streaming.
const streamFailureNotice = "Sorry, something went wrong. Please try again."

// ChatRequest is the body for both chat operations.
type ChatRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id"`
}

// Chat answers a query in a single round trip.
// POST /v1/chat
func (h *Handler) Chat(c echo.Context) error {
	ctx := c.Request().Context()

	var req ChatRequest
	if err := bindChatRequest(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	h.saveMessage(ctx, req.SessionID, domain.SenderUser, req.Query)

	resp, err := h.rag.Query(ctx, &rag.QueryRequest{Query: req.Query, SessionID: req.SessionID})
	if err != nil {
		h.logger.Error("backend query failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, map[string]string{"error": "backend request failed"})
	}

	h.saveMessage(ctx, req.SessionID, domain.SenderAssistant, resp.Answer)

	return c.JSON(http.StatusOK, resp)
}

// ChatStream relays the backend token stream to the UI and commits the
// finalized transcript to the store exactly once, whatever the outcome.
// POST /v1/chat/stream
func (h *Handler) ChatStream(c echo.Context) error {
	ctx := c.Request().Context()

	var req ChatRequest
	if err := bindChatRequest(c, &req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	if !h.beginStream(req.SessionID) {
		return c.JSON(http.StatusConflict, map[string]string{"error": "a stream is already in flight for this session"})
	}
	defer h.endStream(req.SessionID)

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
	}

	h.saveMessage(ctx, req.SessionID, domain.SenderUser, req.Query)

	c.Response().Header().Set("Content-Type", "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	var transcript strings.Builder
	streamErr := h.rag.Stream(ctx, &rag.QueryRequest{Query: req.Query, SessionID: req.SessionID},
		func(event domain.StreamEvent) error {
			switch event.Kind {
			case domain.EventToken:
				transcript.WriteString(event.Text)
				if _, err := fmt.Fprintf(c.Response().Writer, "data: %s\n\n", event.Text); err != nil {
					return err
				}
				flusher.Flush()
			case domain.EventStreamStarted:
				if _, err := fmt.Fprintf(c.Response().Writer, "data: %s\n\n", rag.MarkerStarted); err != nil {
					return err
				}
				flusher.Flush()
			}
			return nil
		})

	final := finalizeMarkdown(transcript.String())
	if streamErr != nil {
		var protoErr *rag.StreamError
		if errors.As(streamErr, &protoErr) {
			h.logger.Warn("stream ended with protocol error", zap.String("info", protoErr.Info))
		} else {
			h.logger.Error("stream failed", zap.Error(streamErr))
		}
		final = streamFailureNotice
	}

	// The commit must survive a client disconnect mid-stream.
	h.saveMessage(context.WithoutCancel(ctx), req.SessionID, domain.SenderAssistant, final)

	if streamErr != nil {
		fmt.Fprintf(c.Response().Writer, "data: %s %s\n\n", rag.MarkerError, streamFailureNotice)
	} else {
		fmt.Fprintf(c.Response().Writer, "data: %s\n\n", rag.MarkerDone)
	}
	flusher.Flush()

	return nil
}

func bindChatRequest(c echo.Context, req *ChatRequest) error {
	if err := c.Bind(req); err != nil {
		return errors.New("invalid request body")
	}
	if req.Query == "" {
		return errors.New("query is required")
	}
	if req.SessionID == "" {
		return errors.New("session_id is required")
	}
	return nil
}

// saveMessage persists one turn. Store trouble is logged, never surfaced to
// the client.
func (h *Handler) saveMessage(ctx context.Context, sessionID string, sender domain.Sender, text string) {
	msg := &domain.Message{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Sender:    sender,
		Text:      text,
		CreatedAt: time.Now(),
	}
	if err := h.store.SaveMessage(ctx, sessionID, msg); err != nil {
		h.logger.Error("failed to save message",
			zap.String("session_id", sessionID),
			zap.String("sender", string(sender)),
			zap.Error(err))
	}
}

// finalizeMarkdown closes an unterminated code fence so a truncated answer
// still renders as valid markdown.
func finalizeMarkdown(text string) string {
	if strings.Count(text, "```")%2 != 0 {
		return text + "\n```"
	}
	return text
}
