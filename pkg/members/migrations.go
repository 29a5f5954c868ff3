package members

import (
	"context"
	"database/sql"
	"fmt"
)

// Migration represents a database migration
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// GetMigrations returns the members table migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create members table",
			SQL: `
				CREATE TABLE IF NOT EXISTS members (
					id BIGSERIAL PRIMARY KEY,
					name VARCHAR(255) NOT NULL,
					email VARCHAR(255) NOT NULL UNIQUE,
					password VARCHAR(128) NOT NULL,
					salt VARCHAR(32) NOT NULL,
					phone VARCHAR(64),
					avatar_url TEXT,
					country VARCHAR(128),
					address TEXT,
					city VARCHAR(128),
					state VARCHAR(128),
					zip_code VARCHAR(32),
					disabled BOOLEAN NOT NULL DEFAULT FALSE,
					created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
				);

				CREATE INDEX IF NOT EXISTS idx_members_email ON members(email);
			`,
		},
	}
}

// RunMigrations applies all members migrations in order
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, m := range GetMigrations() {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	return nil
}
