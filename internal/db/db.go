package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	database, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(database); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return database, nil
}

func runMigrations(database *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id SERIAL PRIMARY KEY,
            external_id TEXT NOT NULL UNIQUE,
            name TEXT NOT NULL,
            email TEXT NOT NULL,
            profile_picture TEXT NOT NULL DEFAULT '',
            university TEXT NOT NULL DEFAULT '',
            major TEXT NOT NULL DEFAULT '',
            year INT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS conversations (
            id SERIAL PRIMARY KEY,
            kind TEXT NOT NULL CHECK (kind IN ('direct', 'group', 'broadcast')),
            name TEXT NOT NULL DEFAULT '',
            description TEXT NOT NULL DEFAULT '',
            avatar TEXT NOT NULL DEFAULT '',
            allowed_to_post TEXT NOT NULL DEFAULT 'everyone' CHECK (allowed_to_post IN ('everyone', 'admins')),
            direct_key TEXT UNIQUE,
            last_message_id INT,
            last_activity TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            created_by INT NOT NULL REFERENCES users(id),
            course_code TEXT NOT NULL DEFAULT '',
            course_name TEXT NOT NULL DEFAULT '',
            university TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS conversation_participants (
            conversation_id INT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id),
            is_admin BOOLEAN NOT NULL DEFAULT FALSE,
            joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (conversation_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS conversation_archives (
            conversation_id INT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id),
            archived_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (conversation_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id SERIAL PRIMARY KEY,
            conversation_id INT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            sender_id INT NOT NULL REFERENCES users(id),
            content TEXT NOT NULL DEFAULT '',
            kind TEXT NOT NULL DEFAULT 'text' CHECK (kind IN ('text', 'image', 'file')),
            attachments JSONB NOT NULL DEFAULT '[]',
            edited_at TIMESTAMPTZ,
            is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
            deleted_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS message_reads (
            message_id INT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id INT NOT NULL REFERENCES users(id),
            read_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (message_id, user_id)
        );`,
		`CREATE TABLE IF NOT EXISTS schedule_courses (
            user_id INT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            course_code TEXT NOT NULL,
            PRIMARY KEY (user_id, course_code)
        );`,
		`CREATE TABLE IF NOT EXISTS catalog_courses (
            course_code TEXT NOT NULL,
            university TEXT NOT NULL,
            course_name TEXT NOT NULL,
            PRIMARY KEY (course_code, university)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_last_activity ON conversations (last_activity DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_course ON conversations (course_code, university);`,
		`CREATE INDEX IF NOT EXISTS idx_participants_user ON conversation_participants (user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at DESC, id DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_message_reads_user ON message_reads (user_id);`,
	}

	for _, m := range migrations {
		if _, err := database.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
