package permissions

import (
	"context"
	"database/sql"
	"fmt"
)

// Store is the persistence boundary for member-to-permission assignments.
// The authorization engine consumes this interface; the Postgres
// implementation below is the production backend.
type Store interface {
	// AddAssignments grants permission paths to a member. Idempotent:
	// duplicate assignments are a no-op, not an error.
	AddAssignments(ctx context.Context, memberID int64, paths []string) error

	// ListAssignments returns the member's permission paths
	ListAssignments(ctx context.Context, memberID int64) ([]string, error)

	// IsDisabled reports the member's disabled flag. Fails with
	// ErrMemberNotFound when the member no longer exists.
	IsDisabled(ctx context.Context, memberID int64) (bool, error)
}

// PostgresStore implements Store over database/sql
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a Postgres-backed permission store
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// AddAssignments grants permission paths to a member. Duplicates hit the
// unique constraint and are skipped via ON CONFLICT DO NOTHING.
func (s *PostgresStore) AddAssignments(ctx context.Context, memberID int64, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	query := `
		INSERT INTO member_permissions (member_id, group_name, signature)
		VALUES ($1, $2, $3)
		ON CONFLICT (member_id, group_name, signature) DO NOTHING
	`

	for _, path := range paths {
		group, signature, err := ParsePath(path)
		if err != nil {
			return err
		}
		if _, err := s.db.ExecContext(ctx, query, memberID, group, signature); err != nil {
			return fmt.Errorf("failed to add assignment %s: %w", path, err)
		}
	}
	return nil
}

// ListAssignments returns the member's permission paths in insertion order
func (s *PostgresStore) ListAssignments(ctx context.Context, memberID int64) ([]string, error) {
	query := `
		SELECT group_name || '.' || signature AS perm_path
		FROM member_permissions
		WHERE member_id = $1
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	defer rows.Close()

	var paths []string
	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		paths = append(paths, path)
	}
	return paths, rows.Err()
}

// IsDisabled reports whether the member's account is disabled
func (s *PostgresStore) IsDisabled(ctx context.Context, memberID int64) (bool, error) {
	query := `SELECT disabled FROM members WHERE id = $1 LIMIT 1`

	var disabled bool
	err := s.db.QueryRowContext(ctx, query, memberID).Scan(&disabled)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("%w: %d", ErrMemberNotFound, memberID)
	}
	if err != nil {
		return false, fmt.Errorf("failed to check disabled flag: %w", err)
	}
	return disabled, nil
}
