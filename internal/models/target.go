package models

import (
	"strings"
	"time"

	"github.com/authshift/authshift/internal/ids"
)

// TargetUser is one account row in the new authentication service.
type TargetUser struct {
	ID              ids.ID
	Username        string
	CreatedAt       time.Time
	LockedAt        *time.Time
	CanRequestAdmin bool
}

// NewTargetUser transforms a source account into its target shape. The
// identifier is seeded at the account's creation time so it stays
// chronologically meaningful. Deactivation maps to a locked-at timestamp
// equal to the creation time: the source schema records no deactivation
// time, and "now" would break the chronological seeding.
func NewTargetUser(src SourceUser) TargetUser {
	created := src.CreatedAt()

	u := TargetUser{
		ID:              ids.New(created),
		Username:        src.Localpart(),
		CreatedAt:       created,
		CanRequestAdmin: src.Admin,
	}
	if src.Deactivated {
		u.LockedAt = &created
	}
	return u
}

func (u TargetUser) LogFields() []any {
	return []any{"user_id", u.ID.String(), "username", u.Username}
}

// TargetUserPassword is a hashed credential row.
type TargetUserPassword struct {
	ID             ids.ID
	UserID         ids.ID
	HashedPassword string
	CreatedAt      time.Time
	Version        int
}

// passwordSchemeVersion identifies the hashing scheme the source store used;
// the target service upgrades rehashes at first login.
const passwordSchemeVersion = 1

// NewTargetUserPassword derives the password row for a migrated user, seeded
// at the same creation time as the owning account.
func NewTargetUserPassword(user TargetUser, hash string) TargetUserPassword {
	return TargetUserPassword{
		ID:             ids.New(user.CreatedAt),
		UserID:         user.ID,
		HashedPassword: hash,
		CreatedAt:      user.CreatedAt,
		Version:        passwordSchemeVersion,
	}
}

func (p TargetUserPassword) LogFields() []any {
	return []any{
		"user_password_id", p.ID.String(),
		"user_id", p.UserID.String(),
		"hashed_password", p.HashedPassword,
	}
}

// TargetUserEmail is a confirmed or pending email address row.
type TargetUserEmail struct {
	ID          ids.ID
	UserID      ids.ID
	Email       string
	CreatedAt   time.Time
	ConfirmedAt *time.Time
}

// NewTargetUserEmail transforms an email three-pid: identifier seeded at the
// association's added-at time, address lower-cased, validation carried over
// as confirmation.
func NewTargetUserEmail(user TargetUser, tp SourceThreePid) TargetUserEmail {
	added := tp.AddedTime()
	return TargetUserEmail{
		ID:          ids.New(added),
		UserID:      user.ID,
		Email:       strings.ToLower(tp.Address),
		CreatedAt:   added,
		ConfirmedAt: tp.ValidatedTime(),
	}
}

func (e TargetUserEmail) LogFields() []any {
	return []any{"user_email_id", e.ID.String(), "user_id", e.UserID.String(), "email", e.Email}
}

// UpstreamOAuthProvider is a pre-existing provider row in the target store.
// It is resolved by identifier, never created, during mapping resolution.
type UpstreamOAuthProvider struct {
	ID     ids.ID
	Issuer string
}

func (p UpstreamOAuthProvider) LogFields() []any {
	return []any{"upstream_oauth_provider_id", p.ID.String(), "issuer", p.Issuer}
}

// TargetUpstreamOAuthLink ties a migrated user to an upstream provider
// identity.
type TargetUpstreamOAuthLink struct {
	ID         ids.ID
	ProviderID ids.ID
	UserID     ids.ID
	Subject    string
	CreatedAt  time.Time
}

// NewTargetUpstreamOAuthLink derives a linking row seeded at the owning
// user's creation time.
func NewTargetUpstreamOAuthLink(user TargetUser, provider UpstreamOAuthProvider, subject string) TargetUpstreamOAuthLink {
	return TargetUpstreamOAuthLink{
		ID:         ids.New(user.CreatedAt),
		ProviderID: provider.ID,
		UserID:     user.ID,
		Subject:    subject,
		CreatedAt:  user.CreatedAt,
	}
}

func (l TargetUpstreamOAuthLink) LogFields() []any {
	return []any{
		"upstream_oauth_link_id", l.ID.String(),
		"upstream_oauth_provider_id", l.ProviderID.String(),
		"user_id", l.UserID.String(),
		"subject", l.Subject,
	}
}

// TargetCompatSession is a backward-compatibility session bound to a device.
type TargetCompatSession struct {
	ID                ids.ID
	UserID            ids.ID
	DeviceID          string
	CreatedAt         time.Time
	IsAdminAtCreation bool
}

// NewTargetCompatSession derives a session row for a device-bound access
// token, seeded at the token's last-validated time when known and the user's
// creation time otherwise. The user's admin flag is snapshotted onto the
// session.
func NewTargetCompatSession(user TargetUser, src SourceUser, token SourceAccessToken) TargetCompatSession {
	seed := user.CreatedAt
	if at := token.LastValidatedTime(); at != nil {
		seed = *at
	}
	return TargetCompatSession{
		ID:                ids.New(seed),
		UserID:            user.ID,
		DeviceID:          token.DeviceID.String,
		CreatedAt:         seed,
		IsAdminAtCreation: src.Admin,
	}
}

func (s TargetCompatSession) LogFields() []any {
	return []any{"compat_session_id", s.ID.String(), "user_id", s.UserID.String(), "device_id", s.DeviceID}
}

// TargetCompatAccessToken carries the opaque token string of a session.
type TargetCompatAccessToken struct {
	ID        ids.ID
	SessionID ids.ID
	Token     string
	CreatedAt time.Time
}

// NewTargetCompatAccessToken derives the access-token row for a session,
// sharing the session's seed time.
func NewTargetCompatAccessToken(session TargetCompatSession, token string) TargetCompatAccessToken {
	return TargetCompatAccessToken{
		ID:        ids.New(session.CreatedAt),
		SessionID: session.ID,
		Token:     token,
		CreatedAt: session.CreatedAt,
	}
}

func (t TargetCompatAccessToken) LogFields() []any {
	return []any{
		"compat_access_token_id", t.ID.String(),
		"compat_session_id", t.SessionID.String(),
		"access_token", t.Token,
	}
}

// TargetCompatRefreshToken links a refresh token to its session and access
// token.
type TargetCompatRefreshToken struct {
	ID            ids.ID
	SessionID     ids.ID
	AccessTokenID ids.ID
	Token         string
	CreatedAt     time.Time
}

// NewTargetCompatRefreshToken derives the refresh-token row for a token
// pair, sharing the session's seed time.
func NewTargetCompatRefreshToken(session TargetCompatSession, access TargetCompatAccessToken, token string) TargetCompatRefreshToken {
	return TargetCompatRefreshToken{
		ID:            ids.New(session.CreatedAt),
		SessionID:     session.ID,
		AccessTokenID: access.ID,
		Token:         token,
		CreatedAt:     session.CreatedAt,
	}
}

func (t TargetCompatRefreshToken) LogFields() []any {
	return []any{
		"compat_refresh_token_id", t.ID.String(),
		"compat_session_id", t.SessionID.String(),
		"token", t.Token,
	}
}
