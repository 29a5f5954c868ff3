package permissions

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

// GetMigrations returns the permission store migrations
func GetMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "Create member_permissions table",
			SQL: `
				CREATE TABLE IF NOT EXISTS member_permissions (
					id BIGSERIAL PRIMARY KEY,
					member_id BIGINT NOT NULL REFERENCES members(id) ON DELETE CASCADE,
					group_name VARCHAR(255) NOT NULL,
					signature VARCHAR(255) NOT NULL,
					UNIQUE(member_id, group_name, signature)
				);

				CREATE INDEX IF NOT EXISTS idx_member_permissions_member_id ON member_permissions(member_id);
			`,
		},
	}
}

// RunMigrations applies all permission store migrations in order
func RunMigrations(ctx context.Context, db *sql.DB) error {
	for _, m := range GetMigrations() {
		if _, err := db.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", m.Version, m.Description, err)
		}
	}
	return nil
}
