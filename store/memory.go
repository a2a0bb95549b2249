package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/moneylens/moneylens/core"
)

// MemoryConversations implements Conversations in memory, used for tests
// and local development.
type MemoryConversations struct {
	mu       sync.RWMutex
	convs    map[string]*Conversation
	messages map[string][]StoredMessage
}

// NewMemoryConversations creates an empty in-memory store.
func NewMemoryConversations() *MemoryConversations {
	return &MemoryConversations{
		convs:    make(map[string]*Conversation),
		messages: make(map[string][]StoredMessage),
	}
}

// Create starts a new conversation for a user.
func (m *MemoryConversations) Create(_ context.Context, userID string) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	conv := &Conversation{
		ID:        uuid.New().String(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.convs[conv.ID] = conv
	return conv, nil
}

// Get returns a conversation and its transcript.
func (m *MemoryConversations) Get(_ context.Context, id string) (*ConversationWithMessages, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.convs[id]
	if !ok {
		return nil, ErrNotFound
	}
	msgs := make([]StoredMessage, len(m.messages[id]))
	copy(msgs, m.messages[id])
	return &ConversationWithMessages{Conversation: *conv, Messages: msgs}, nil
}

// Append adds a message to a conversation's transcript.
func (m *MemoryConversations) Append(_ context.Context, conversationID string, msg core.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.convs[conversationID]
	if !ok {
		return ErrNotFound
	}
	m.messages[conversationID] = append(m.messages[conversationID], StoredMessage{
		ID:        uuid.New().String(),
		Role:      msg.Role,
		Content:   msg.Content,
		CreatedAt: time.Now(),
	})
	conv.UpdatedAt = time.Now()
	return nil
}

// List returns a user's conversations, most recently updated first.
func (m *MemoryConversations) List(_ context.Context, userID string, limit int) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	var out []*Conversation
	for _, conv := range m.convs {
		if conv.UserID == userID {
			c := *conv
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetTitle updates a conversation's title.
func (m *MemoryConversations) SetTitle(_ context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.convs[id]
	if !ok {
		return ErrNotFound
	}
	conv.Title = title
	conv.UpdatedAt = time.Now()
	return nil
}

// Delete removes a conversation and its transcript.
func (m *MemoryConversations) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.convs[id]; !ok {
		return ErrNotFound
	}
	delete(m.convs, id)
	delete(m.messages, id)
	return nil
}
