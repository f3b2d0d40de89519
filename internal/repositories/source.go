package repositories

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/authshift/authshift/internal/models"
)

// SourceStore wraps read-only access to the legacy account database.
type SourceStore struct {
	db        *sql.DB
	streaming bool
}

// NewSourceStore creates a SourceStore. streaming selects the cursor
// strategy: when true, eligible users are consumed incrementally from an
// open result set; when false, the whole eligible set is materialized
// before iteration begins.
func NewSourceStore(db *sql.DB, streaming bool) *SourceStore {
	return &SourceStore{db: db, streaming: streaming}
}

const eligibleUsersQuery = `
	SELECT name, password_hash, admin, is_guest, deactivated, creation_ts, appservice_id
	FROM users
	WHERE appservice_id IS NULL OR appservice_id = ''
`

// UserCursor is a lazy, finite, non-restartable sequence of eligible source
// users. Next returns nil once the sequence is exhausted. Iteration order is
// backend-dependent and carries no meaning.
type UserCursor interface {
	Next() (*models.SourceUser, error)
	Close() error
}

// Users opens a cursor over eligible users: accounts without an owning
// application service. Both strategies yield the identical logical sequence.
func (s *SourceStore) Users(ctx context.Context) (UserCursor, error) {
	rows, err := s.db.QueryContext(ctx, eligibleUsersQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}

	if s.streaming {
		return &streamCursor{rows: rows}, nil
	}

	defer rows.Close()

	var users []models.SourceUser
	for rows.Next() {
		user, err := scanSourceUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return &materializedCursor{users: users}, nil
}

// streamCursor surfaces users one row at a time from an open result set, so
// memory stays bounded by one user's working set.
type streamCursor struct {
	rows *sql.Rows
}

func (c *streamCursor) Next() (*models.SourceUser, error) {
	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return nil, fmt.Errorf("row iteration error: %w", err)
		}
		return nil, nil
	}
	return scanSourceUser(c.rows)
}

func (c *streamCursor) Close() error {
	return c.rows.Close()
}

// materializedCursor iterates a fully loaded user set, for backends without
// server-side row streaming.
type materializedCursor struct {
	users []models.SourceUser
	pos   int
}

func (c *materializedCursor) Next() (*models.SourceUser, error) {
	if c.pos >= len(c.users) {
		return nil, nil
	}
	user := c.users[c.pos]
	c.pos++
	return &user, nil
}

func (c *materializedCursor) Close() error { return nil }

func scanSourceUser(rows *sql.Rows) (*models.SourceUser, error) {
	var user models.SourceUser
	err := rows.Scan(
		&user.Name,
		&user.PasswordHash,
		&user.Admin,
		&user.Guest,
		&user.Deactivated,
		&user.CreationTS,
		&user.AppserviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	return &user, nil
}

// ThreePids retrieves the third-party identifier associations for a user.
func (s *SourceStore) ThreePids(ctx context.Context, userID string) ([]models.SourceThreePid, error) {
	query := `
		SELECT user_id, medium, address, added_at, validated_at
		FROM user_threepids
		WHERE user_id = ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query threepids: %w", err)
	}
	defer rows.Close()

	var threepids []models.SourceThreePid
	for rows.Next() {
		var tp models.SourceThreePid
		if err := rows.Scan(&tp.UserID, &tp.Medium, &tp.Address, &tp.AddedAt, &tp.ValidatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan threepid: %w", err)
		}
		threepids = append(threepids, tp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return threepids, nil
}

// ExternalIDs retrieves the upstream identity links for a user.
func (s *SourceStore) ExternalIDs(ctx context.Context, userID string) ([]models.SourceExternalID, error) {
	query := `
		SELECT user_id, auth_provider, external_id
		FROM user_external_ids
		WHERE user_id = ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query external ids: %w", err)
	}
	defer rows.Close()

	var externals []models.SourceExternalID
	for rows.Next() {
		var ext models.SourceExternalID
		if err := rows.Scan(&ext.UserID, &ext.AuthProvider, &ext.ExternalID); err != nil {
			return nil, fmt.Errorf("failed to scan external id: %w", err)
		}
		externals = append(externals, ext)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return externals, nil
}

// AccessTokens retrieves the device-bound access tokens for a user. Tokens
// without a device identifier are excluded here, silently, rather than
// surfaced as warnings downstream.
func (s *SourceStore) AccessTokens(ctx context.Context, userID string) ([]models.SourceAccessToken, error) {
	query := `
		SELECT id, user_id, device_id, token, last_validated, refresh_token_id
		FROM access_tokens
		WHERE user_id = ? AND device_id IS NOT NULL AND device_id != ''
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query access tokens: %w", err)
	}
	defer rows.Close()

	var tokens []models.SourceAccessToken
	for rows.Next() {
		var tok models.SourceAccessToken
		err := rows.Scan(&tok.ID, &tok.UserID, &tok.DeviceID, &tok.Token, &tok.LastValidated, &tok.RefreshTokenID)
		if err != nil {
			return nil, fmt.Errorf("failed to scan access token: %w", err)
		}
		tokens = append(tokens, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return tokens, nil
}

// RefreshToken retrieves one refresh token by its internal row id. Returns
// nil when the row does not exist; the caller decides whether that is a
// warning.
func (s *SourceStore) RefreshToken(ctx context.Context, id int64) (*models.SourceRefreshToken, error) {
	query := `SELECT id, token FROM refresh_tokens WHERE id = ?`

	var tok models.SourceRefreshToken
	err := s.db.QueryRowContext(ctx, query, id).Scan(&tok.ID, &tok.Token)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query refresh token: %w", err)
	}

	return &tok, nil
}
