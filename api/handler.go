// Package api provides the HTTP surface consumed by the chat UI.
package api

import (
	"net/http"
	"sync"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ailayzer/boltchat/rag"
	"github.com/ailayzer/boltchat/store"
)

// Handler handles HTTP requests.
type Handler struct {
	store  store.Store
	rag    *rag.Client
	logger *zap.Logger

	// inflight tracks sessions with an open stream. The stream client does
	// not serialize concurrent requests, so a second send for the same
	// session is rejected here.
	mu       sync.Mutex
	inflight map[string]struct{}
}

// NewHandler creates a new handler.
func NewHandler(store store.Store, ragClient *rag.Client, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		store:    store,
		rag:      ragClient,
		logger:   logger,
		inflight: make(map[string]struct{}),
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	// Session management
	e.POST("/v1/sessions", h.CreateSession)
	e.GET("/v1/sessions", h.ListSessions)
	e.PATCH("/v1/sessions/:session_id", h.UpdateSession)
	e.DELETE("/v1/sessions/:session_id", h.DeleteSession)
	e.GET("/v1/sessions/:session_id/messages", h.GetSessionMessages)
	e.DELETE("/v1/sessions/:session_id/messages", h.ClearSessionMessages)

	// Chat
	e.POST("/v1/chat", h.Chat)
	e.POST("/v1/chat/stream", h.ChatStream)

	e.GET("/health", h.Health)
}

// Health returns health status.
// GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "boltchat",
	})
}

func (h *Handler) beginStream(sessionID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, busy := h.inflight[sessionID]; busy {
		return false
	}
	h.inflight[sessionID] = struct{}{}
	return true
}

func (h *Handler) endStream(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inflight, sessionID)
}
