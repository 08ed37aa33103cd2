package database

import (
	"database/sql"
	"log"
	"time"

	_ "github.com/lib/pq"
)

var PostgresDB *sql.DB

// ConnectPostgres connects to PostgreSQL database
func ConnectPostgres(postgresURI string) error {
	var err error

	PostgresDB, err = sql.Open("postgres", postgresURI)
	if err != nil {
		return err
	}

	// Set connection pool settings
	PostgresDB.SetMaxOpenConns(25)
	PostgresDB.SetMaxIdleConns(5)
	PostgresDB.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	if err = PostgresDB.Ping(); err != nil {
		return err
	}

	log.Println("✅ Connected to PostgreSQL")

	// Initialize tables
	if err = InitPostgresTables(); err != nil {
		return err
	}

	return nil
}

// InitPostgresTables creates all necessary tables if they don't exist
func InitPostgresTables() error {
	queries := []string{
		// Users table. Phone is nullable: WeChat-only users have no phone.
		`CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			phone VARCHAR(20) UNIQUE,
			nickname VARCHAR(100) NOT NULL DEFAULT '',
			gender BOOLEAN,
			avatar_url TEXT NOT NULL DEFAULT '',
			login_provider VARCHAR(20) NOT NULL DEFAULT '',
			wechat_open_id VARCHAR(128) UNIQUE,
			wechat_union_id VARCHAR(128),
			wechat_session_key VARCHAR(128),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Archives: gift-recipient profiles with events stored as JSONB
		`CREATE TABLE IF NOT EXISTS archives (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			name VARCHAR(100) NOT NULL,
			relationship VARCHAR(50) NOT NULL,
			events JSONB NOT NULL DEFAULT '[]',
			tag TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Collects: saved CMS items, idempotent per (user, item)
		`CREATE TABLE IF NOT EXISTS collects (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			item_id BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE(user_id, item_id)
		)`,

		// Per-user notification settings
		`CREATE TABLE IF NOT EXISTS user_settings (
			user_id BIGINT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
			important_date_reminder BOOLEAN NOT NULL DEFAULT TRUE,
			inspiration_push BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Daily-quote copy pool for the home board
		`CREATE TABLE IF NOT EXISTS insight_copies (
			id BIGSERIAL PRIMARY KEY,
			text TEXT NOT NULL,
			source VARCHAR(50) NOT NULL DEFAULT 'db',
			tags TEXT[] NOT NULL DEFAULT '{}',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		// Create indexes for better performance
		`CREATE INDEX IF NOT EXISTS idx_users_phone ON users(phone)`,
		`CREATE INDEX IF NOT EXISTS idx_users_wechat_open_id ON users(wechat_open_id)`,
		`CREATE INDEX IF NOT EXISTS idx_users_wechat_union_id ON users(wechat_union_id)`,
		`CREATE INDEX IF NOT EXISTS idx_archives_user_id ON archives(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_archives_created_at ON archives(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_archives_tag ON archives USING GIN(tag)`,
		`CREATE INDEX IF NOT EXISTS idx_collects_user_id ON collects(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_collects_created_at ON collects(created_at)`,
	}

	for _, query := range queries {
		if _, err := PostgresDB.Exec(query); err != nil {
			return err
		}
	}

	log.Println("✅ PostgreSQL tables initialized")
	return nil
}

// DisconnectPostgres closes the PostgreSQL connection
func DisconnectPostgres() error {
	if PostgresDB != nil {
		return PostgresDB.Close()
	}
	return nil
}
