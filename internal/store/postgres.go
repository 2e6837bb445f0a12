package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"m10support/backend/internal/chat"
)

type dbQuerier interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

// Postgres stores sessions in the chat_sessions, chat_messages and
// operator_replies tables.
type Postgres struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{
		pool: pool,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (p *Postgres) CreateSession(ctx context.Context, platform string) (chat.Session, error) {
	now := p.now()
	session := chat.Session{
		ID:             uuid.NewString(),
		Platform:       platform,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	_, err := p.pool.Exec(
		ctx,
		`INSERT INTO chat_sessions (id, platform, created_at, last_activity_at)
		 VALUES ($1, $2, $3, $3)`,
		session.ID,
		session.Platform,
		now,
	)
	if err != nil {
		return chat.Session{}, chat.WrapStorageError("create_session", err)
	}
	return session, nil
}

func (p *Postgres) GetSession(ctx context.Context, id string) (chat.Session, error) {
	var session chat.Session
	err := p.pool.QueryRow(
		ctx,
		`SELECT id, platform, created_at, last_activity_at
		 FROM chat_sessions
		 WHERE id = $1`,
		id,
	).Scan(&session.ID, &session.Platform, &session.CreatedAt, &session.LastActivityAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, chat.WrapStorageError("get_session", err)
	}
	session.CreatedAt = session.CreatedAt.UTC()
	session.LastActivityAt = session.LastActivityAt.UTC()
	return session, nil
}

func (p *Postgres) AppendMessages(ctx context.Context, id string, msgs ...chat.Message) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return chat.WrapStorageError("append_messages", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE chat_sessions SET last_activity_at = $2 WHERE id = $1`, id, p.now())
	if err != nil {
		return chat.WrapStorageError("append_messages", err)
	}
	if tag.RowsAffected() == 0 {
		return chat.ErrSessionNotFound
	}

	for _, msg := range msgs {
		if err := insertMessage(ctx, tx, id, msg); err != nil {
			return chat.WrapStorageError("append_messages", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return chat.WrapStorageError("append_messages", err)
	}
	return nil
}

func insertMessage(ctx context.Context, q dbQuerier, sessionID string, msg chat.Message) error {
	sources, err := nullableJSON(msg.Sources)
	if err != nil {
		return err
	}
	device, err := nullableJSON(msg.Device)
	if err != nil {
		return err
	}
	_, err = q.Exec(
		ctx,
		`INSERT INTO chat_messages (id, session_id, sender, text, sources, device_info, created_at)
		 VALUES ($1, $2, $3, $4, $5::jsonb, $6::jsonb, $7)`,
		msg.ID,
		sessionID,
		string(msg.Role),
		msg.Text,
		sources,
		device,
		msg.Timestamp,
	)
	return err
}

func (p *Postgres) History(ctx context.Context, id string, limit int) ([]chat.Message, error) {
	if err := p.requireSession(ctx, p.pool, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []chat.Message{}, nil
	}

	rows, err := p.pool.Query(
		ctx,
		`SELECT id, sender, text, sources, device_info, created_at
		 FROM (
		   SELECT seq, id, sender, text, sources, device_info, created_at
		   FROM chat_messages
		   WHERE session_id = $1
		   ORDER BY seq DESC
		   LIMIT $2
		 ) recent
		 ORDER BY seq ASC`,
		id,
		limit,
	)
	if err != nil {
		return nil, chat.WrapStorageError("history", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0, min(limit, chat.DefaultHistoryLimit))
	for rows.Next() {
		var (
			msg         chat.Message
			role        string
			sourcesRaw  []byte
			deviceRaw   []byte
			createdAtTS time.Time
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Text, &sourcesRaw, &deviceRaw, &createdAtTS); err != nil {
			return nil, chat.WrapStorageError("history", err)
		}
		msg.Role = chat.Role(role)
		msg.Timestamp = createdAtTS.UTC()
		if msg.Sources, err = decodeSources(sourcesRaw); err != nil {
			return nil, chat.WrapStorageError("history", err)
		}
		if msg.Device, err = decodeDevice(deviceRaw); err != nil {
			return nil, chat.WrapStorageError("history", err)
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, chat.WrapStorageError("history", err)
	}
	return messages, nil
}

func (p *Postgres) EnqueueReply(ctx context.Context, id, text string) error {
	tag, err := p.pool.Exec(
		ctx,
		`INSERT INTO operator_replies (session_id, text, created_at)
		 SELECT id, $2, $3 FROM chat_sessions WHERE id = $1`,
		id,
		text,
		p.now(),
	)
	if err != nil {
		return chat.WrapStorageError("enqueue_reply", err)
	}
	if tag.RowsAffected() == 0 {
		return chat.ErrSessionNotFound
	}
	return nil
}

func (p *Postgres) TakeUnreadReply(ctx context.Context, id string) (string, bool, error) {
	var text string
	err := p.pool.QueryRow(
		ctx,
		`UPDATE operator_replies
		 SET read_at = $2
		 WHERE seq = (
		   SELECT seq
		   FROM operator_replies
		   WHERE session_id = $1 AND read_at IS NULL
		   ORDER BY seq ASC
		   LIMIT 1
		   FOR UPDATE SKIP LOCKED
		 )
		 RETURNING text`,
		id,
		p.now(),
	).Scan(&text)
	if errors.Is(err, pgx.ErrNoRows) {
		if err := p.requireSession(ctx, p.pool, id); err != nil {
			return "", false, err
		}
		return "", false, nil
	}
	if err != nil {
		return "", false, chat.WrapStorageError("take_unread_reply", err)
	}
	return text, true, nil
}

func (p *Postgres) requireSession(ctx context.Context, q dbQuerier, id string) error {
	var exists bool
	err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM chat_sessions WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return chat.WrapStorageError("get_session", err)
	}
	if !exists {
		return chat.ErrSessionNotFound
	}
	return nil
}
