package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"m10support/backend/internal/chat"
)

type memorySession struct {
	meta     chat.Session
	messages []chat.Message
	replies  []chat.PendingReply
}

// Memory keeps sessions for the lifetime of the process.
type Memory struct {
	mu       sync.RWMutex
	sessions map[string]*memorySession
	now      func() time.Time
}

func NewMemory() *Memory {
	return &Memory{
		sessions: make(map[string]*memorySession),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (m *Memory) CreateSession(_ context.Context, platform string) (chat.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.NewString()
	for _, exists := m.sessions[id]; exists; _, exists = m.sessions[id] {
		id = uuid.NewString()
	}
	now := m.now()
	session := chat.Session{
		ID:             id,
		Platform:       platform,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	m.sessions[id] = &memorySession{meta: session}
	return session, nil
}

func (m *Memory) GetSession(_ context.Context, id string) (chat.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	return session.meta, nil
}

func (m *Memory) AppendMessages(_ context.Context, id string, msgs ...chat.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return chat.ErrSessionNotFound
	}
	session.messages = append(session.messages, msgs...)
	session.meta.LastActivityAt = m.now()
	return nil
}

func (m *Memory) History(_ context.Context, id string, limit int) ([]chat.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return nil, chat.ErrSessionNotFound
	}
	if limit <= 0 {
		return []chat.Message{}, nil
	}
	start := len(session.messages) - limit
	if start < 0 {
		start = 0
	}
	out := make([]chat.Message, len(session.messages)-start)
	copy(out, session.messages[start:])
	return out, nil
}

func (m *Memory) EnqueueReply(_ context.Context, id, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return chat.ErrSessionNotFound
	}
	session.replies = append(session.replies, chat.PendingReply{Text: text, CreatedAt: m.now()})
	return nil
}

func (m *Memory) TakeUnreadReply(_ context.Context, id string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return "", false, chat.ErrSessionNotFound
	}
	for i := range session.replies {
		if !session.replies[i].Read {
			session.replies[i].Read = true
			return session.replies[i].Text, true, nil
		}
	}
	return "", false, nil
}
