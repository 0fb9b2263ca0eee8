package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the joynet schema.
func Migrate(db *sql.DB) error {
	stmts := []string{
		// Users
		`CREATE TABLE IF NOT EXISTS users (
			id           BIGSERIAL    PRIMARY KEY,
			username     VARCHAR(50)  UNIQUE NOT NULL,
			display_name VARCHAR(100) NOT NULL DEFAULT '',
			avatar_url   TEXT,
			email        VARCHAR(100) UNIQUE,
			is_active    BOOLEAN      NOT NULL DEFAULT TRUE,
			is_online    BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at   TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			last_seen    TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		// Conversations
		`CREATE TABLE IF NOT EXISTS conversations (
			id              BIGSERIAL    PRIMARY KEY,
			name            VARCHAR(100),
			is_group        BOOLEAN      NOT NULL DEFAULT FALSE,
			last_message_id BIGINT,
			created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			updated_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		// Conversation participants
		`CREATE TABLE IF NOT EXISTS conversation_participants (
			user_id         BIGINT       NOT NULL REFERENCES users(id),
			conversation_id BIGINT       NOT NULL REFERENCES conversations(id),
			last_read_at    TIMESTAMPTZ,
			joined_at       TIMESTAMPTZ,
			PRIMARY KEY (user_id, conversation_id)
		)`,

		// Messages
		`CREATE TABLE IF NOT EXISTS messages (
			id              BIGSERIAL    PRIMARY KEY,
			content         TEXT         NOT NULL,
			message_type    VARCHAR(20)  NOT NULL DEFAULT 'text',
			conversation_id BIGINT       NOT NULL REFERENCES conversations(id),
			sender_id       BIGINT       NOT NULL REFERENCES users(id),
			created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			file_path       TEXT,
			file_type       TEXT,
			call_duration   INTEGER,
			is_deleted      BOOLEAN      NOT NULL DEFAULT FALSE
		)`,

		// Per-user message visibility; no rows means visible to everyone.
		`CREATE TABLE IF NOT EXISTS message_visibility (
			message_id BIGINT NOT NULL REFERENCES messages(id),
			user_id    BIGINT NOT NULL REFERENCES users(id),
			PRIMARY KEY (message_id, user_id)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username)`,
		`CREATE INDEX IF NOT EXISTS idx_users_is_online ON users(is_online)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_conv_participants_user ON conversation_participants(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_conv_participants_conv ON conversation_participants(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_message_visibility_user ON message_visibility(user_id)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
