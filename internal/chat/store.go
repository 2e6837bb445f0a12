package chat

import "context"

// Store persists sessions, their messages and pending operator replies.
// Every method that takes a session id returns ErrSessionNotFound for an
// unknown id and a *StorageError for backend faults.
type Store interface {
	CreateSession(ctx context.Context, platform string) (Session, error)
	GetSession(ctx context.Context, id string) (Session, error)
	// AppendMessages makes all messages visible together or none of them.
	AppendMessages(ctx context.Context, id string, msgs ...Message) error
	// History returns at most limit of the latest messages, oldest first.
	History(ctx context.Context, id string, limit int) ([]Message, error)
	EnqueueReply(ctx context.Context, id, text string) error
	// TakeUnreadReply marks the oldest unread reply as read and returns it.
	TakeUnreadReply(ctx context.Context, id string) (string, bool, error)
}
