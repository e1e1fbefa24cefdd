// Package store defines the conversation store interface and its backends.
package store

import (
	"context"

	"github.com/ailayzer/boltchat/domain"
)

// DefaultTitle is the placeholder title given to new sessions.
const DefaultTitle = "New Chat"

// previewLimit caps the last-message snippet kept on session metadata.
const previewLimit = 160

// Store is the system of record for sessions and their messages.
//
// Every message append reflects into the owning session's summary fields
// (last message preview, updated time, unread count) in the same logical
// transaction. Reads are fail-soft: corrupt records degrade to defaults and
// absent state reads as empty.
type Store interface {
	// CreateSession inserts a new session with a fresh unique identifier at
	// the front of the session list. An empty title gets DefaultTitle.
	CreateSession(ctx context.Context, title string, temporary bool) (*domain.Session, error)

	// ListSessions returns sessions most-recently-updated first.
	ListSessions(ctx context.Context) ([]domain.Session, error)

	// UpdateSession merges patch into the session, refreshes its updated
	// time and re-promotes it to the front of the list. Unknown ids are a
	// silent no-op.
	UpdateSession(ctx context.Context, id string, patch domain.SessionPatch) error

	// DeleteSession removes the session and its entire message list as one
	// unit.
	DeleteSession(ctx context.Context, id string) error

	// SaveMessage appends to the session's message list and updates the
	// owning session's summary fields. The unread count is incremented only
	// for assistant messages. If no session record exists the message is
	// still stored and the summary update is skipped.
	SaveMessage(ctx context.Context, sessionID string, msg *domain.Message) error

	// LoadMessages returns the session's messages in append order, empty if
	// none exist.
	LoadMessages(ctx context.Context, sessionID string) ([]domain.Message, error)

	// ClearMessages empties the session's message list without deleting the
	// session.
	ClearMessages(ctx context.Context, sessionID string) error

	// PurgeTemporary deletes every temporary session and its messages,
	// returning how many sessions were removed. Run at startup.
	PurgeTemporary(ctx context.Context) (int, error)

	Close() error
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= previewLimit {
		return text
	}
	return string(runes[:previewLimit])
}
