package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/ailayzer/boltchat/domain"
)

// CreateSessionRequest is the body for creating a session.
type CreateSessionRequest struct {
	Title     string `json:"title"`
	Temporary bool   `json:"temporary"`
}

// CreateSession creates a new session.
// POST /v1/sessions
func (h *Handler) CreateSession(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateSessionRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	session, err := h.store.CreateSession(ctx, req.Title, req.Temporary)
	if err != nil {
		h.logger.Error("failed to create session", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
	}

	return c.JSON(http.StatusCreated, session)
}

// ListSessions returns all sessions, most-recently-updated first. Storage
// trouble degrades to an empty list rather than an error.
// GET /v1/sessions
func (h *Handler) ListSessions(c echo.Context) error {
	ctx := c.Request().Context()

	sessions, err := h.store.ListSessions(ctx)
	if err != nil {
		h.logger.Warn("failed to list sessions, returning empty", zap.Error(err))
		sessions = []domain.Session{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
	})
}

// UpdateSession merges partial fields into a session. Unknown ids are a
// silent no-op, matching the store contract.
// PATCH /v1/sessions/:session_id
func (h *Handler) UpdateSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	var patch domain.SessionPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	if err := h.store.UpdateSession(ctx, sessionID, patch); err != nil {
		h.logger.Error("failed to update session", zap.String("session_id", sessionID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to update session"})
	}

	return c.NoContent(http.StatusNoContent)
}

// DeleteSession removes a session and its messages.
// DELETE /v1/sessions/:session_id
func (h *Handler) DeleteSession(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	if err := h.store.DeleteSession(ctx, sessionID); err != nil {
		h.logger.Error("failed to delete session", zap.String("session_id", sessionID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete session"})
	}

	return c.NoContent(http.StatusNoContent)
}

// GetSessionMessages returns a session's messages in chronological order.
// GET /v1/sessions/:session_id/messages
func (h *Handler) GetSessionMessages(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	messages, err := h.store.LoadMessages(ctx, sessionID)
	if err != nil {
		h.logger.Warn("failed to load messages, returning empty",
			zap.String("session_id", sessionID), zap.Error(err))
		messages = []domain.Message{}
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages": messages,
	})
}

// ClearSessionMessages empties a session's message list without deleting the
// session itself.
// DELETE /v1/sessions/:session_id/messages
func (h *Handler) ClearSessionMessages(c echo.Context) error {
	ctx := c.Request().Context()
	sessionID := c.Param("session_id")

	if err := h.store.ClearMessages(ctx, sessionID); err != nil {
		h.logger.Error("failed to clear messages", zap.String("session_id", sessionID), zap.Error(err))
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to clear messages"})
	}

	return c.NoContent(http.StatusNoContent)
}
