package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ailayzer/boltchat/domain"
)

// MemoryStore implements Store with in-memory maps. Used in tests and for
// ephemeral runs where nothing should outlive the process.
type MemoryStore struct {
	mu sync.RWMutex

	// sessions is kept ordered, most-recently-updated first.
	sessions []*domain.Session
	messages map[string][]domain.Message
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]domain.Message),
	}
}

func (s *MemoryStore) CreateSession(_ context.Context, title string, temporary bool) (*domain.Session, error) {
	if title == "" {
		title = DefaultTitle
	}
	now := time.Now()
	session := &domain.Session{
		ID:        uuid.New().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		Temporary: temporary,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append([]*domain.Session{session}, s.sessions...)
	s.messages[session.ID] = []domain.Message{}

	out := *session
	return &out, nil
}

func (s *MemoryStore) ListSessions(_ context.Context) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]domain.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, *sess)
	}
	return sessions, nil
}

func (s *MemoryStore) UpdateSession(_ context.Context, id string, patch domain.SessionPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexOf(id)
	if idx == -1 {
		return nil
	}

	sess := s.sessions[idx]
	if patch.Title != nil {
		sess.Title = *patch.Title
	}
	if patch.LastMessage != nil {
		sess.LastMessage = preview(*patch.LastMessage)
	}
	if patch.UnreadCount != nil {
		sess.UnreadCount = *patch.UnreadCount
	}
	if patch.Temporary != nil {
		sess.Temporary = *patch.Temporary
	}
	sess.UpdatedAt = time.Now()

	s.promote(idx)
	return nil
}

func (s *MemoryStore) DeleteSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idx := s.indexOf(id); idx != -1 {
		s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	}
	delete(s.messages, id)
	return nil
}

func (s *MemoryStore) SaveMessage(_ context.Context, sessionID string, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *msg
	stored.SessionID = sessionID
	stored.Streaming = false
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.messages[sessionID] = append(s.messages[sessionID], stored)

	// Summary update is skipped when no session record exists.
	idx := s.indexOf(sessionID)
	if idx == -1 {
		return nil
	}

	sess := s.sessions[idx]
	sess.LastMessage = preview(msg.Text)
	sess.UpdatedAt = time.Now()
	if msg.Sender == domain.SenderAssistant {
		sess.UnreadCount++
	}
	s.promote(idx)
	return nil
}

func (s *MemoryStore) LoadMessages(_ context.Context, sessionID string) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}

func (s *MemoryStore) ClearMessages(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[sessionID] = []domain.Message{}
	return nil
}

func (s *MemoryStore) PurgeTemporary(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.sessions[:0]
	purged := 0
	for _, sess := range s.sessions {
		if sess.Temporary {
			delete(s.messages, sess.ID)
			purged++
			continue
		}
		kept = append(kept, sess)
	}
	s.sessions = kept
	return purged, nil
}

func (s *MemoryStore) Close() error {
	return nil
}

// indexOf returns the position of a session or -1. Caller holds the lock.
func (s *MemoryStore) indexOf(id string) int {
	for i, sess := range s.sessions {
		if sess.ID == id {
			return i
		}
	}
	return -1
}

// promote moves the session at idx to the front. Caller holds the lock.
func (s *MemoryStore) promote(idx int) {
	if idx == 0 {
		return
	}
	sess := s.sessions[idx]
	s.sessions = append(s.sessions[:idx], s.sessions[idx+1:]...)
	s.sessions = append([]*domain.Session{sess}, s.sessions...)
}
