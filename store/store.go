// Package store persists conversation transcripts. The orchestrator
// treats it as an append-only log keyed by conversation id.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/moneylens/moneylens/core"
)

// ErrNotFound indicates the conversation id does not exist.
var ErrNotFound = errors.New("conversation not found")

// titleLimit is the maximum length of a derived conversation title.
const titleLimit = 50

// Conversation is transcript metadata.
type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StoredMessage is one persisted transcript entry.
type StoredMessage struct {
	ID        string    `json:"id"`
	Role      core.Role `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// ConversationWithMessages is a conversation plus its full ordered
// transcript.
type ConversationWithMessages struct {
	Conversation Conversation    `json:"conversation"`
	Messages     []StoredMessage `json:"messages"`
}

// Conversations persists and retrieves transcripts per conversation id.
type Conversations interface {
	Create(ctx context.Context, userID string) (*Conversation, error)
	Get(ctx context.Context, id string) (*ConversationWithMessages, error)
	Append(ctx context.Context, conversationID string, msg core.Message) error
	List(ctx context.Context, userID string, limit int) ([]*Conversation, error)
	SetTitle(ctx context.Context, id, title string) error
	Delete(ctx context.Context, id string) error
}

// TitleFrom derives a conversation title from its first user message.
func TitleFrom(content string) string {
	runes := []rune(content)
	if len(runes) <= titleLimit {
		return content
	}
	return string(runes[:titleLimit])
}
