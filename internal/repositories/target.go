package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/authshift/authshift/internal/ids"
	"github.com/authshift/authshift/internal/models"
	"github.com/charmbracelet/log"
)

// TargetStore wraps access to the new authentication service database.
type TargetStore struct {
	db     *sql.DB
	logger *log.Logger
}

// NewTargetStore creates a TargetStore with the given database connection.
func NewTargetStore(db *sql.DB, logger *log.Logger) *TargetStore {
	return &TargetStore{db: db, logger: logger}
}

// CountUsers returns the number of rows in the target user table. A non-zero
// count before a run means previously migrated data is present and the run
// must refuse to proceed.
func (s *TargetStore) CountUsers(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count target users: %w", err)
	}
	return count, nil
}

// UpstreamProvider looks up a pre-existing provider row by identifier.
// Returns nil when no such provider exists.
func (s *TargetStore) UpstreamProvider(ctx context.Context, id ids.ID) (*models.UpstreamOAuthProvider, error) {
	query := `
		SELECT upstream_oauth_provider_id, issuer
		FROM upstream_oauth_providers
		WHERE upstream_oauth_provider_id = ?
	`

	var rawID, issuer string
	err := s.db.QueryRowContext(ctx, query, id.UUIDString()).Scan(&rawID, &issuer)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query upstream provider: %w", err)
	}

	parsed, err := ids.Parse(rawID)
	if err != nil {
		return nil, fmt.Errorf("provider row carries bad identifier: %w", err)
	}

	return &models.UpstreamOAuthProvider{ID: parsed, Issuer: issuer}, nil
}

// Insertion is one typed row write, applied inside a user's transaction.
// Insertions are built during transformation and executed, parent before
// child, only during commit.
type Insertion interface {
	Table() string
	exec(ctx context.Context, tx *sql.Tx) error
}

// Apply runs every insertion for one logical user inside a single
// transaction, in the given order. On any failure the transaction is rolled
// back before the error propagates; a rollback failure is logged but never
// suppresses the original error.
func (s *TargetStore) Apply(ctx context.Context, insertions []Insertion) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	for _, ins := range insertions {
		if err := ins.exec(ctx, tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				s.logger.Error("rollback failed", "table", ins.Table(), "error", rbErr)
			}
			return fmt.Errorf("failed to insert into %s: %w", ins.Table(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			s.logger.Error("rollback failed", "error", rbErr)
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// UserInsertion writes one TargetUser row.
type UserInsertion struct {
	Row models.TargetUser
}

func (i UserInsertion) Table() string { return "users" }

func (i UserInsertion) exec(ctx context.Context, tx *sql.Tx) error {
	query := `
		INSERT INTO users (user_id, username, created_at, locked_at, can_request_admin)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query,
		i.Row.ID.UUIDString(), i.Row.Username, i.Row.CreatedAt, nullTime(i.Row.LockedAt), i.Row.CanRequestAdmin)
	return err
}

// PasswordInsertion writes one TargetUserPassword row.
type PasswordInsertion struct {
	Row models.TargetUserPassword
}

func (i PasswordInsertion) Table() string { return "user_passwords" }

func (i PasswordInsertion) exec(ctx context.Context, tx *sql.Tx) error {
	query := `
		INSERT INTO user_passwords (user_password_id, user_id, hashed_password, created_at, version)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query,
		i.Row.ID.UUIDString(), i.Row.UserID.UUIDString(), i.Row.HashedPassword, i.Row.CreatedAt, i.Row.Version)
	return err
}

// EmailInsertion writes one TargetUserEmail row.
type EmailInsertion struct {
	Row models.TargetUserEmail
}

func (i EmailInsertion) Table() string { return "user_emails" }

func (i EmailInsertion) exec(ctx context.Context, tx *sql.Tx) error {
	query := `
		INSERT INTO user_emails (user_email_id, user_id, email, created_at, confirmed_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query,
		i.Row.ID.UUIDString(), i.Row.UserID.UUIDString(), i.Row.Email, i.Row.CreatedAt, nullTime(i.Row.ConfirmedAt))
	return err
}

// LinkInsertion writes one TargetUpstreamOAuthLink row.
type LinkInsertion struct {
	Row models.TargetUpstreamOAuthLink
}

func (i LinkInsertion) Table() string { return "upstream_oauth_links" }

func (i LinkInsertion) exec(ctx context.Context, tx *sql.Tx) error {
	query := `
		INSERT INTO upstream_oauth_links (upstream_oauth_link_id, upstream_oauth_provider_id, user_id, subject, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query,
		i.Row.ID.UUIDString(), i.Row.ProviderID.UUIDString(), i.Row.UserID.UUIDString(), i.Row.Subject, i.Row.CreatedAt)
	return err
}

// SessionInsertion writes one TargetCompatSession row.
type SessionInsertion struct {
	Row models.TargetCompatSession
}

func (i SessionInsertion) Table() string { return "compat_sessions" }

func (i SessionInsertion) exec(ctx context.Context, tx *sql.Tx) error {
	query := `
		INSERT INTO compat_sessions (compat_session_id, user_id, device_id, created_at, is_admin_at_creation)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query,
		i.Row.ID.UUIDString(), i.Row.UserID.UUIDString(), i.Row.DeviceID, i.Row.CreatedAt, i.Row.IsAdminAtCreation)
	return err
}

// AccessTokenInsertion writes one TargetCompatAccessToken row.
type AccessTokenInsertion struct {
	Row models.TargetCompatAccessToken
}

func (i AccessTokenInsertion) Table() string { return "compat_access_tokens" }

func (i AccessTokenInsertion) exec(ctx context.Context, tx *sql.Tx) error {
	query := `
		INSERT INTO compat_access_tokens (compat_access_token_id, compat_session_id, access_token, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query,
		i.Row.ID.UUIDString(), i.Row.SessionID.UUIDString(), i.Row.Token, i.Row.CreatedAt)
	return err
}

// RefreshTokenInsertion writes one TargetCompatRefreshToken row.
type RefreshTokenInsertion struct {
	Row models.TargetCompatRefreshToken
}

func (i RefreshTokenInsertion) Table() string { return "compat_refresh_tokens" }

func (i RefreshTokenInsertion) exec(ctx context.Context, tx *sql.Tx) error {
	query := `
		INSERT INTO compat_refresh_tokens (compat_refresh_token_id, compat_session_id, compat_access_token_id, refresh_token, created_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := tx.ExecContext(ctx, query,
		i.Row.ID.UUIDString(), i.Row.SessionID.UUIDString(), i.Row.AccessTokenID.UUIDString(), i.Row.Token, i.Row.CreatedAt)
	return err
}

// MigratedUser is a read-only projection of a target user row for display.
type MigratedUser struct {
	ID        ids.ID
	Username  string
	CreatedAt time.Time
	LockedAt  *time.Time
	Admin     bool
}

// ListUsers retrieves migrated users ordered by identifier, which sorts them
// by their seeded creation time.
func (s *TargetStore) ListUsers(ctx context.Context, limit, offset int) ([]MigratedUser, error) {
	query := `
		SELECT user_id, username, created_at, locked_at, can_request_admin
		FROM users
		ORDER BY user_id
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrated users: %w", err)
	}
	defer rows.Close()

	var users []MigratedUser
	for rows.Next() {
		var (
			rawID    string
			username string
			created  time.Time
			locked   sql.NullTime
			admin    bool
		)
		if err := rows.Scan(&rawID, &username, &created, &locked, &admin); err != nil {
			return nil, fmt.Errorf("failed to scan migrated user: %w", err)
		}

		id, err := ids.Parse(rawID)
		if err != nil {
			return nil, fmt.Errorf("user row carries bad identifier: %w", err)
		}

		user := MigratedUser{ID: id, Username: username, CreatedAt: created, Admin: admin}
		if locked.Valid {
			t := locked.Time
			user.LockedAt = &t
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return users, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
