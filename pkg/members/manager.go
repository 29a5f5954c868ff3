package members

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gatehouselabs/gatehouse/pkg/credentials"
	"github.com/gatehouselabs/gatehouse/pkg/schema"
)

// Identity is the public identity of a member, as returned by sign-up and
// credential verification. Never carries password or salt.
type Identity struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Manager provides member account operations over PostgreSQL
type Manager struct {
	db     *sql.DB
	schema *schema.Registry
}

// NewManager creates a member manager over a frozen schema registry
func NewManager(db *sql.DB, schemaRegistry *schema.Registry) *Manager {
	return &Manager{
		db:     db,
		schema: schemaRegistry,
	}
}

// Create registers a new member. The plaintext password is salted and
// hashed before it touches the database.
func (m *Manager) Create(ctx context.Context, name, email, password string) (*Identity, error) {
	var existingID int64
	err := m.db.QueryRowContext(ctx, `SELECT id FROM members WHERE email = $1 LIMIT 1`, email).Scan(&existingID)
	if err == nil {
		return nil, fmt.Errorf("%w: %s", ErrMemberExists, email)
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to check existing member: %w", err)
	}

	salt, err := credentials.GenerateSalt()
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	hashed, err := credentials.HashPassword(salt, password)
	if err != nil {
		return nil, err
	}

	identity := &Identity{}
	query := `
		INSERT INTO members (name, email, password, salt)
		VALUES ($1, $2, $3, $4)
		RETURNING id, name, email
	`
	err = m.db.QueryRowContext(ctx, query, name, email, hashed, salt).
		Scan(&identity.ID, &identity.Name, &identity.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to create member: %w", err)
	}

	return identity, nil
}

// Verify checks an email/password pair and returns the member's identity.
// A wrong email, wrong password, or disabled account all fail; only the
// disabled case is distinguished for the caller.
func (m *Manager) Verify(ctx context.Context, email, password string) (*Identity, error) {
	query := `
		SELECT id, name, email, password, salt, disabled
		FROM members
		WHERE email = $1
		LIMIT 1
	`

	identity := &Identity{}
	var hashed, salt string
	var disabled bool
	err := m.db.QueryRowContext(ctx, query, email).
		Scan(&identity.ID, &identity.Name, &identity.Email, &hashed, &salt, &disabled)
	if err == sql.ErrNoRows {
		return nil, ErrVerificationFailed
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up member: %w", err)
	}

	if !credentials.VerifyPassword(salt, password, hashed) {
		return nil, ErrVerificationFailed
	}
	if disabled {
		return nil, ErrAccountDisabled
	}

	return identity, nil
}

// GetProfile returns the member's own profile through the Profile view
func (m *Manager) GetProfile(ctx context.Context, memberID int64) (map[string]interface{}, error) {
	return m.getByView(ctx, schema.ViewProfile, memberID)
}

// GetFullProfile returns the admin-facing profile through the FullProfile
// view, which additionally exposes id and disabled
func (m *Manager) GetFullProfile(ctx context.Context, memberID int64) (map[string]interface{}, error) {
	return m.getByView(ctx, schema.ViewFullProfile, memberID)
}

func (m *Manager) getByView(ctx context.Context, viewName string, memberID int64) (map[string]interface{}, error) {
	proj, err := m.schema.Project(viewName)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT %s FROM %s WHERE members.id = $1 LIMIT 1`, proj.Columns, proj.Tables)

	rows, err := m.db.QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get profile: %w", err)
		}
		return nil, fmt.Errorf("%w: %d", ErrMemberNotFound, memberID)
	}

	raw, err := scanRow(rows, proj.Fields)
	if err != nil {
		return nil, err
	}
	return m.schema.MapRow(viewName, raw)
}

// UpdateProfile applies a partial profile update. Every key must be a field
// of the UpdateProfile view; anything else fails with ErrUnknownField
// before any write happens.
func (m *Manager) UpdateProfile(ctx context.Context, memberID int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	refs, err := m.schema.Refs(schema.ViewUpdateProfile)
	if err != nil {
		return err
	}
	columnFor := make(map[string]string, len(refs))
	for _, f := range refs {
		// refs are "table.column"; updates target the members table only
		columnFor[f.Name] = f.Ref[strings.Index(f.Ref, ".")+1:]
	}

	for key := range updates {
		if _, ok := columnFor[key]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownField, key)
		}
	}

	setClauses := make([]string, 0, len(updates))
	args := make([]interface{}, 0, len(updates)+1)

	// Walk view order so the generated SQL is deterministic
	for _, f := range refs {
		value, ok := updates[f.Name]
		if !ok {
			continue
		}
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", columnFor[f.Name], len(args)))
	}

	args = append(args, memberID)
	query := fmt.Sprintf(`UPDATE members SET %s WHERE id = $%d`, strings.Join(setClauses, ", "), len(args))

	result, err := m.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrMemberNotFound, memberID)
	}
	return nil
}

// ChangePassword replaces the member's password after verifying the old one
func (m *Manager) ChangePassword(ctx context.Context, memberID int64, oldPassword, newPassword string) error {
	var hashed, salt string
	err := m.db.QueryRowContext(ctx, `SELECT password, salt FROM members WHERE id = $1 LIMIT 1`, memberID).
		Scan(&hashed, &salt)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %d", ErrMemberNotFound, memberID)
	}
	if err != nil {
		return fmt.Errorf("failed to look up member: %w", err)
	}

	if !credentials.VerifyPassword(salt, oldPassword, hashed) {
		return ErrIncorrectPassword
	}

	return m.setPassword(ctx, `UPDATE members SET password = $1, salt = $2 WHERE id = $3`, newPassword, memberID)
}

// UpdatePasswordByEmail replaces a member's password without the old one.
// Only the reset flow reaches this, after its own token check.
func (m *Manager) UpdatePasswordByEmail(ctx context.Context, email, newPassword string) error {
	return m.setPassword(ctx, `UPDATE members SET password = $1, salt = $2 WHERE email = $3`, newPassword, email)
}

func (m *Manager) setPassword(ctx context.Context, query, newPassword string, target interface{}) error {
	salt, err := credentials.GenerateSalt()
	if err != nil {
		return fmt.Errorf("failed to generate salt: %w", err)
	}
	hashed, err := credentials.HashPassword(salt, newPassword)
	if err != nil {
		return err
	}

	result, err := m.db.ExecContext(ctx, query, hashed, salt, target)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %v", ErrMemberNotFound, target)
	}
	return nil
}

// List returns a page of members through the MemberList view, newest first
func (m *Manager) List(ctx context.Context, limit, offset int) ([]map[string]interface{}, error) {
	proj, err := m.schema.Project(schema.ViewMemberList)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT %s FROM %s ORDER BY members.created_at DESC LIMIT $1 OFFSET $2`,
		proj.Columns, proj.Tables,
	)

	rows, err := m.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var result []map[string]interface{}
	for rows.Next() {
		raw, err := scanRow(rows, proj.Fields)
		if err != nil {
			return nil, err
		}
		mapped, err := m.schema.MapRow(schema.ViewMemberList, raw)
		if err != nil {
			return nil, err
		}
		result = append(result, mapped)
	}
	return result, rows.Err()
}

// Count returns the total number of members
func (m *Manager) Count(ctx context.Context) (int64, error) {
	var count int64
	err := m.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count members: %w", err)
	}
	return count, nil
}

// SetDisabled flips a member's disabled flag
func (m *Manager) SetDisabled(ctx context.Context, memberID int64, disabled bool) error {
	result, err := m.db.ExecContext(ctx, `UPDATE members SET disabled = $1 WHERE id = $2`, disabled, memberID)
	if err != nil {
		return fmt.Errorf("failed to set disabled flag: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %d", ErrMemberNotFound, memberID)
	}
	return nil
}

// scanRow scans the current row into a map keyed by field name. Byte
// slices become strings so the result JSON-encodes cleanly.
func scanRow(rows *sql.Rows, fields []string) (map[string]interface{}, error) {
	values := make([]interface{}, len(fields))
	pointers := make([]interface{}, len(fields))
	for i := range values {
		pointers[i] = &values[i]
	}

	if err := rows.Scan(pointers...); err != nil {
		return nil, fmt.Errorf("failed to scan row: %w", err)
	}

	row := make(map[string]interface{}, len(fields))
	for i, field := range fields {
		if b, ok := values[i].([]byte); ok {
			row[field] = string(b)
		} else {
			row[field] = values[i]
		}
	}
	return row, nil
}
