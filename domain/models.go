// Package domain defines the core domain models for the chat gateway.
package domain

import "time"

// Sender identifies who authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "ai"
)

// Session represents one conversation and the metadata shown in the session list.
type Session struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	LastMessage string    `json:"last_message"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	UnreadCount int       `json:"unread_count"`
	Temporary   bool      `json:"temporary"`
}

// Message represents a single turn in a conversation.
// Streaming is true only while an assistant turn is still receiving tokens;
// it is never persisted as true.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Streaming bool      `json:"streaming,omitempty"`
}

// SessionPatch carries a partial session update. Nil fields are left untouched.
type SessionPatch struct {
	Title       *string `json:"title,omitempty"`
	LastMessage *string `json:"last_message,omitempty"`
	UnreadCount *int    `json:"unread_count,omitempty"`
	Temporary   *bool   `json:"temporary,omitempty"`
}
