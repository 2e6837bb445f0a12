package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresMigrations = []string{
	`CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		platform TEXT NOT NULL DEFAULT 'ios',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_activity_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		seq BIGSERIAL PRIMARY KEY,
		id TEXT NOT NULL,
		session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		sender TEXT NOT NULL CHECK (sender IN ('user', 'assistant')),
		text TEXT NOT NULL,
		sources JSONB,
		device_info JSONB,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (session_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, seq)`,
	`CREATE TABLE IF NOT EXISTS operator_replies (
		seq BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		read_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_operator_replies_unread ON operator_replies(session_id, seq) WHERE read_at IS NULL`,
}

var sqliteMigrations = []string{
	`CREATE TABLE IF NOT EXISTS chat_sessions (
		id TEXT PRIMARY KEY,
		platform TEXT NOT NULL DEFAULT 'ios',
		created_at DATETIME NOT NULL,
		last_activity_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL,
		session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		sender TEXT NOT NULL CHECK (sender IN ('user', 'assistant')),
		text TEXT NOT NULL,
		sources TEXT,
		device_info TEXT,
		created_at DATETIME NOT NULL,
		UNIQUE (session_id, id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages(session_id, seq)`,
	`CREATE TABLE IF NOT EXISTS operator_replies (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		text TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		read_at DATETIME
	)`,
	`CREATE INDEX IF NOT EXISTS idx_operator_replies_session ON operator_replies(session_id, seq)`,
}

// MigratePostgres creates the relay tables when they are missing.
func MigratePostgres(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("database pool is nil")
	}
	for _, statement := range postgresMigrations {
		if _, err := pool.Exec(ctx, statement); err != nil {
			return fmt.Errorf("migration failed: %w\n%s", err, statement)
		}
	}
	return nil
}

// ValidatePostgresSchema fails when a column the store relies on is missing,
// for databases provisioned outside MigratePostgres.
func ValidatePostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if pool == nil {
		return fmt.Errorf("database pool is nil")
	}

	requiredColumns := []struct {
		table  string
		column string
	}{
		{table: "chat_sessions", column: "platform"},
		{table: "chat_sessions", column: "last_activity_at"},
		{table: "chat_messages", column: "seq"},
		{table: "chat_messages", column: "sources"},
		{table: "chat_messages", column: "device_info"},
		{table: "operator_replies", column: "read_at"},
	}

	for _, item := range requiredColumns {
		ok, err := columnExists(ctx, pool, item.table, item.column)
		if err != nil {
			return fmt.Errorf(
				"failed checking schema for %s.%s: %w",
				item.table,
				item.column,
				err,
			)
		}
		if !ok {
			return fmt.Errorf(
				"required column %s.%s is missing; run the relay migrations",
				item.table,
				item.column,
			)
		}
	}

	return nil
}

func columnExists(ctx context.Context, pool *pgxpool.Pool, tableName, columnName string) (bool, error) {
	table := strings.TrimSpace(tableName)
	column := strings.TrimSpace(columnName)
	if table == "" || column == "" {
		return false, fmt.Errorf("table/column must not be empty")
	}
	var exists bool
	err := pool.QueryRow(
		ctx,
		`SELECT EXISTS (
		   SELECT 1
		   FROM information_schema.columns
		   WHERE table_schema = current_schema()
		     AND lower(table_name) = lower($1)
		     AND lower(column_name) = lower($2)
		 )`,
		table,
		column,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
