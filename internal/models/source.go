package models

import (
	"database/sql"
	"strings"
	"time"
)

// SourceUser is one account row from the legacy store.
//
// CreationTS is epoch seconds. A non-empty AppserviceID means the account is
// owned by an application service and is excluded from migration.
type SourceUser struct {
	Name         string
	PasswordHash sql.NullString
	Admin        bool
	Guest        bool
	Deactivated  bool
	CreationTS   int64
	AppserviceID sql.NullString
}

// CreatedAt returns the account creation time.
func (u SourceUser) CreatedAt() time.Time {
	return time.Unix(u.CreationTS, 0).UTC()
}

// Localpart returns the local (non-domain) portion of the federated user
// name, e.g. "@alice:example.org" -> "alice".
func (u SourceUser) Localpart() string {
	name := strings.TrimPrefix(u.Name, "@")
	local, _, _ := strings.Cut(name, ":")
	return local
}

func (u SourceUser) LogFields() []any {
	return []any{
		"name", u.Name,
		"password_hash", u.PasswordHash.String,
		"admin", u.Admin,
		"guest", u.Guest,
		"deactivated", u.Deactivated,
		"creation_ts", u.CreationTS,
	}
}

// SourceThreePid is a third-party identifier association.
// AddedAt and ValidatedAt are epoch milliseconds.
type SourceThreePid struct {
	UserID      string
	Medium      string
	Address     string
	AddedAt     int64
	ValidatedAt sql.NullInt64
}

// AddedTime returns when the association was added.
func (t SourceThreePid) AddedTime() time.Time {
	return time.UnixMilli(t.AddedAt).UTC()
}

// ValidatedTime returns when the association was validated, or nil.
func (t SourceThreePid) ValidatedTime() *time.Time {
	if !t.ValidatedAt.Valid {
		return nil
	}
	ts := time.UnixMilli(t.ValidatedAt.Int64).UTC()
	return &ts
}

func (t SourceThreePid) LogFields() []any {
	return []any{"user_id", t.UserID, "medium", t.Medium, "address", t.Address}
}

// SourceExternalID links a user to an identity at an upstream auth provider.
type SourceExternalID struct {
	UserID       string
	AuthProvider string
	ExternalID   string
}

func (e SourceExternalID) LogFields() []any {
	return []any{"user_id", e.UserID, "auth_provider", e.AuthProvider, "external_id", e.ExternalID}
}

// SourceAccessToken is a device-bound login token. Tokens without a device
// are excluded from extraction. LastValidated is epoch milliseconds.
type SourceAccessToken struct {
	ID             int64
	UserID         string
	DeviceID       sql.NullString
	Token          string
	LastValidated  sql.NullInt64
	RefreshTokenID sql.NullInt64
}

// LastValidatedTime returns when the token was last validated, or nil.
func (t SourceAccessToken) LastValidatedTime() *time.Time {
	if !t.LastValidated.Valid {
		return nil
	}
	ts := time.UnixMilli(t.LastValidated.Int64).UTC()
	return &ts
}

func (t SourceAccessToken) LogFields() []any {
	return []any{
		"user_id", t.UserID,
		"device_id", t.DeviceID.String,
		"token", t.Token,
	}
}

// SourceRefreshToken is the refresh half of a token pair, addressed by its
// internal row id.
type SourceRefreshToken struct {
	ID    int64
	Token string
}

func (t SourceRefreshToken) LogFields() []any {
	return []any{"id", t.ID, "token", t.Token}
}
