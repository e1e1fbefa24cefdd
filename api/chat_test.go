package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ailayzer/boltchat/domain"
	"github.com/ailayzer/boltchat/rag"
	"github.com/ailayzer/boltchat/store"
)

func newChatHandler(backend http.HandlerFunc) (*Handler, store.Store, *httptest.Server) {
	server := httptest.NewServer(backend)
	st := store.NewMemoryStore()
	client := rag.NewClient(server.URL, 5*time.Second, nil)
	return NewHandler(st, client, nil), st, server
}

func TestChat(t *testing.T) {
	h, st, server := newChatHandler(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rag/query", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"query":  "what is Go?",
			"answer": "A programming language.",
			"source": "docs",
		})
	})
	defer server.Close()

	sess, err := st.CreateSession(context.Background(), "", false)
	require.NoError(t, err)

	e := echo.New()
	body := fmt.Sprintf(`{"query":"what is Go?","session_id":%q}`, sess.ID)
	c, rec := newJSONContext(e, http.MethodPost, "/v1/chat", body)
	require.NoError(t, h.Chat(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp rag.QueryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "A programming language.", resp.Answer)

	// Both turns committed, summary reflects the answer.
	msgs, err := st.LoadMessages(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, domain.SenderUser, msgs[0].Sender)
	assert.Equal(t, "what is Go?", msgs[0].Text)
	assert.Equal(t, domain.SenderAssistant, msgs[1].Sender)
	assert.Equal(t, "A programming language.", msgs[1].Text)

	sessions, err := st.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A programming language.", sessions[0].LastMessage)
	assert.Equal(t, 1, sessions[0].UnreadCount)
}

func TestChatBackendError(t *testing.T) {
	h, _, server := newChatHandler(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	defer server.Close()

	e := echo.New()
	c, rec := newJSONContext(e, http.MethodPost, "/v1/chat", `{"query":"q","session_id":"s1"}`)
	require.NoError(t, h.Chat(c))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestChatValidation(t *testing.T) {
	h, _ := newTestHandler()
	e := echo.New()

	for name, body := range map[string]string{
		"missing query":   `{"session_id":"s1"}`,
		"missing session": `{"query":"q"}`,
		"malformed":       `{not json`,
	} {
		t.Run(name, func(t *testing.T) {
			c, rec := newJSONContext(e, http.MethodPost, "/v1/chat", body)
			require.NoError(t, h.Chat(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestChatStream(t *testing.T) {
	h, st, server := newChatHandler(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rag/stream", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [STREAM_STARTED]\n")
		fmt.Fprint(w, "data: Hello \n")
		fmt.Fprint(w, "data: world\n")
		fmt.Fprint(w, "data: [DONE]\n")
	})
	defer server.Close()

	sess, err := st.CreateSession(context.Background(), "", false)
	require.NoError(t, err)

	e := echo.New()
	body := fmt.Sprintf(`{"query":"hi","session_id":%q}`, sess.ID)
	c, rec := newJSONContext(e, http.MethodPost, "/v1/chat/stream", body)
	require.NoError(t, h.ChatStream(c))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	out := rec.Body.String()
	assert.Contains(t, out, "data: [STREAM_STARTED]\n\n")
	assert.Contains(t, out, "data: Hello \n\n")
	assert.Contains(t, out, "data: world\n\n")
	assert.Contains(t, out, "data: [DONE]\n\n")

	// Full transcript committed once, as a single assistant turn.
	msgs, err := st.LoadMessages(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hi", msgs[0].Text)
	assert.Equal(t, domain.SenderAssistant, msgs[1].Sender)
	assert.Equal(t, "Hello world", msgs[1].Text)
	assert.False(t, msgs[1].Streaming)

	sessions, err := st.ListSessions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Hello world", sessions[0].LastMessage)
	assert.Equal(t, 1, sessions[0].UnreadCount)

	// The guard is released once the stream finishes.
	assert.True(t, h.beginStream(sess.ID))
	h.endStream(sess.ID)
}

func TestChatStreamBackendFailure(t *testing.T) {
	h, st, server := newChatHandler(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "data: [STREAM_STARTED]\n")
		fmt.Fprint(w, "data: partial answer\n")
		fmt.Fprint(w, "data: [ERROR] backend overloaded\n")
	})
	defer server.Close()

	e := echo.New()
	c, rec := newJSONContext(e, http.MethodPost, "/v1/chat/stream", `{"query":"hi","session_id":"s1"}`)
	require.NoError(t, h.ChatStream(c))

	out := rec.Body.String()
	assert.Contains(t, out, "data: [ERROR] "+streamFailureNotice+"\n\n")

	// The committed turn carries the failure notice, not the partial text.
	msgs, err := st.LoadMessages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, streamFailureNotice, msgs[1].Text)
}

func TestChatStreamTransportFailure(t *testing.T) {
	h, st, server := newChatHandler(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})
	defer server.Close()

	e := echo.New()
	c, rec := newJSONContext(e, http.MethodPost, "/v1/chat/stream", `{"query":"hi","session_id":"s1"}`)
	require.NoError(t, h.ChatStream(c))

	assert.Contains(t, rec.Body.String(), "data: [ERROR] "+streamFailureNotice+"\n\n")

	msgs, err := st.LoadMessages(context.Background(), "s1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, streamFailureNotice, msgs[1].Text)
}

func TestChatStreamRejectsConcurrentSend(t *testing.T) {
	h, st, server := newChatHandler(func(w http.ResponseWriter, r *http.Request) {
		t.Error("backend should not be reached")
	})
	defer server.Close()

	require.True(t, h.beginStream("s1"))
	defer h.endStream("s1")

	e := echo.New()
	c, rec := newJSONContext(e, http.MethodPost, "/v1/chat/stream", `{"query":"hi","session_id":"s1"}`)
	require.NoError(t, h.ChatStream(c))
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Nothing was committed for the rejected send.
	msgs, err := st.LoadMessages(context.Background(), "s1")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestFinalizeMarkdown(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain text", "hello", "hello"},
		{"balanced fence", "```go\ncode\n```", "```go\ncode\n```"},
		{"open fence", "```go\nfunc main()", "```go\nfunc main()\n```"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, finalizeMarkdown(tt.in))
		})
	}
}
