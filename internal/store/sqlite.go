package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"m10support/backend/internal/chat"
)

// SQLite is a single-file store for local runs and tests.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at dsn and applies migrations.
// ":memory:" gives a private in-process database.
func OpenSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	store := &SQLite{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

func (s *SQLite) migrate() error {
	for _, m := range sqliteMigrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, m)
		}
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) CreateSession(ctx context.Context, platform string) (chat.Session, error) {
	now := s.now()
	session := chat.Session{
		ID:             uuid.NewString(),
		Platform:       platform,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_sessions (id, platform, created_at, last_activity_at) VALUES (?, ?, ?, ?)`,
		session.ID, session.Platform, now, now)
	if err != nil {
		return chat.Session{}, chat.WrapStorageError("create_session", err)
	}
	return session, nil
}

func (s *SQLite) GetSession(ctx context.Context, id string) (chat.Session, error) {
	var session chat.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, platform, created_at, last_activity_at FROM chat_sessions WHERE id = ?`,
		id).Scan(&session.ID, &session.Platform, &session.CreatedAt, &session.LastActivityAt)
	if errors.Is(err, sql.ErrNoRows) {
		return chat.Session{}, chat.ErrSessionNotFound
	}
	if err != nil {
		return chat.Session{}, chat.WrapStorageError("get_session", err)
	}
	session.CreatedAt = session.CreatedAt.UTC()
	session.LastActivityAt = session.LastActivityAt.UTC()
	return session, nil
}

func (s *SQLite) AppendMessages(ctx context.Context, id string, msgs ...chat.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return chat.WrapStorageError("append_messages", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `UPDATE chat_sessions SET last_activity_at = ? WHERE id = ?`, s.now(), id)
	if err != nil {
		return chat.WrapStorageError("append_messages", err)
	}
	if affected, err := result.RowsAffected(); err != nil {
		return chat.WrapStorageError("append_messages", err)
	} else if affected == 0 {
		return chat.ErrSessionNotFound
	}

	for _, msg := range msgs {
		sources, err := nullableJSON(msg.Sources)
		if err != nil {
			return chat.WrapStorageError("append_messages", err)
		}
		device, err := nullableJSON(msg.Device)
		if err != nil {
			return chat.WrapStorageError("append_messages", err)
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO chat_messages (id, session_id, sender, text, sources, device_info, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			msg.ID, id, string(msg.Role), msg.Text, sources, device, msg.Timestamp.UTC())
		if err != nil {
			return chat.WrapStorageError("append_messages", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return chat.WrapStorageError("append_messages", err)
	}
	return nil
}

func (s *SQLite) History(ctx context.Context, id string, limit int) ([]chat.Message, error) {
	if err := s.requireSession(ctx, id); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return []chat.Message{}, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, sender, text, sources, device_info, created_at FROM (
		   SELECT seq, id, sender, text, sources, device_info, created_at
		   FROM chat_messages
		   WHERE session_id = ?
		   ORDER BY seq DESC
		   LIMIT ?
		 ) ORDER BY seq ASC`,
		id, limit)
	if err != nil {
		return nil, chat.WrapStorageError("history", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0, min(limit, chat.DefaultHistoryLimit))
	for rows.Next() {
		var (
			msg     chat.Message
			role    string
			sources sql.NullString
			device  sql.NullString
		)
		if err := rows.Scan(&msg.ID, &role, &msg.Text, &sources, &device, &msg.Timestamp); err != nil {
			return nil, chat.WrapStorageError("history", err)
		}
		msg.Role = chat.Role(role)
		msg.Timestamp = msg.Timestamp.UTC()
		if sources.Valid {
			if msg.Sources, err = decodeSources([]byte(sources.String)); err != nil {
				return nil, chat.WrapStorageError("history", err)
			}
		}
		if device.Valid {
			if msg.Device, err = decodeDevice([]byte(device.String)); err != nil {
				return nil, chat.WrapStorageError("history", err)
			}
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, chat.WrapStorageError("history", err)
	}
	return messages, nil
}

func (s *SQLite) EnqueueReply(ctx context.Context, id, text string) error {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO operator_replies (session_id, text, created_at)
		 SELECT id, ?, ? FROM chat_sessions WHERE id = ?`,
		text, s.now(), id)
	if err != nil {
		return chat.WrapStorageError("enqueue_reply", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return chat.WrapStorageError("enqueue_reply", err)
	}
	if affected == 0 {
		return chat.ErrSessionNotFound
	}
	return nil
}

func (s *SQLite) TakeUnreadReply(ctx context.Context, id string) (string, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", false, chat.WrapStorageError("take_unread_reply", err)
	}
	defer tx.Rollback()

	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM chat_sessions WHERE id = ?)`, id).Scan(&exists); err != nil {
		return "", false, chat.WrapStorageError("take_unread_reply", err)
	}
	if !exists {
		return "", false, chat.ErrSessionNotFound
	}

	var (
		seq  int64
		text string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT seq, text FROM operator_replies
		 WHERE session_id = ? AND read_at IS NULL
		 ORDER BY seq ASC
		 LIMIT 1`,
		id).Scan(&seq, &text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, chat.WrapStorageError("take_unread_reply", err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE operator_replies SET read_at = ? WHERE seq = ?`, s.now(), seq); err != nil {
		return "", false, chat.WrapStorageError("take_unread_reply", err)
	}
	if err := tx.Commit(); err != nil {
		return "", false, chat.WrapStorageError("take_unread_reply", err)
	}
	return text, true, nil
}

func (s *SQLite) requireSession(ctx context.Context, id string) error {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM chat_sessions WHERE id = ?)`, id).Scan(&exists); err != nil {
		return chat.WrapStorageError("get_session", err)
	}
	if !exists {
		return chat.ErrSessionNotFound
	}
	return nil
}
