package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/ailayzer/boltchat/domain"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// migrate runs database migrations.
//
// messages carries no foreign key to sessions on purpose: a message may be
// saved against a session id with no metadata record, and must survive it.
func (s *SQLiteStore) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			session_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			last_message TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			unread_count INTEGER NOT NULL DEFAULT 0,
			is_temporary INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			message_id TEXT NOT NULL,
			session_id TEXT NOT NULL,
			sender TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (session_id, message_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession inserts a new session at the front of the list.
func (s *SQLiteStore) CreateSession(ctx context.Context, title string, temporary bool) (*domain.Session, error) {
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

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, title, last_message, created_at, updated_at, unread_count, is_temporary)
		 VALUES (?, ?, '', ?, ?, 0, ?)`,
		session.ID, session.Title, session.CreatedAt, session.UpdatedAt, session.Temporary)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// ListSessions returns sessions most-recently-updated first. Rows that fail
// to scan are skipped rather than failing the whole listing.
func (s *SQLiteStore) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, title, last_message, created_at, updated_at, unread_count, is_temporary
		 FROM sessions ORDER BY updated_at DESC, rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		var sess domain.Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.LastMessage,
			&sess.CreatedAt, &sess.UpdatedAt, &sess.UnreadCount, &sess.Temporary); err != nil {
			continue
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// UpdateSession merges patch into the session and refreshes updated_at,
// which re-promotes it to the front of the list. Unknown ids are a no-op.
func (s *SQLiteStore) UpdateSession(ctx context.Context, id string, patch domain.SessionPatch) error {
	query := `UPDATE sessions SET updated_at = ?`
	args := []interface{}{time.Now()}

	if patch.Title != nil {
		query += `, title = ?`
		args = append(args, *patch.Title)
	}
	if patch.LastMessage != nil {
		query += `, last_message = ?`
		args = append(args, preview(*patch.LastMessage))
	}
	if patch.UnreadCount != nil {
		query += `, unread_count = ?`
		args = append(args, *patch.UnreadCount)
	}
	if patch.Temporary != nil {
		query += `, is_temporary = ?`
		args = append(args, *patch.Temporary)
	}

	query += ` WHERE session_id = ?`
	args = append(args, id)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// DeleteSession removes the session and its messages in one transaction.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete messages: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	return tx.Commit()
}

// SaveMessage appends a message and updates the owning session's summary
// fields in the same transaction. A missing session record is tolerated: the
// message is stored, the summary update matches zero rows.
func (s *SQLiteStore) SaveMessage(ctx context.Context, sessionID string, msg *domain.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (message_id, session_id, sender, content, created_at) VALUES (?, ?, ?, ?, ?)`,
		msg.ID, sessionID, msg.Sender, msg.Text, createdAt); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	unreadDelta := 0
	if msg.Sender == domain.SenderAssistant {
		unreadDelta = 1
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE sessions SET last_message = ?, updated_at = ?, unread_count = unread_count + ? WHERE session_id = ?`,
		preview(msg.Text), time.Now(), unreadDelta, sessionID); err != nil {
		return fmt.Errorf("failed to update session summary: %w", err)
	}

	return tx.Commit()
}

// LoadMessages returns the session's messages in append order.
func (s *SQLiteStore) LoadMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT message_id, sender, content, created_at FROM messages
		 WHERE session_id = ? ORDER BY created_at ASC, rowid ASC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	messages := []domain.Message{}
	for rows.Next() {
		msg := domain.Message{SessionID: sessionID}
		if err := rows.Scan(&msg.ID, &msg.Sender, &msg.Text, &msg.CreatedAt); err != nil {
			continue
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// ClearMessages empties the session's message list.
func (s *SQLiteStore) ClearMessages(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}

// PurgeTemporary deletes all temporary sessions and their messages.
func (s *SQLiteStore) PurgeTemporary(ctx context.Context) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE session_id IN (SELECT session_id FROM sessions WHERE is_temporary = 1)`); err != nil {
		return 0, fmt.Errorf("failed to purge messages: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE is_temporary = 1`)
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	purged, _ := res.RowsAffected()

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return int(purged), nil
}
