// Package models defines the typed records moved by the migration engine.
//
// The package contains two categories of types:
//
// 1. Source records: read-only rows extracted from the legacy account store
//   - [SourceUser] : account row with flags and creation time
//   - [SourceThreePid] : third-party identifier (email etc.) association
//   - [SourceExternalID] : upstream auth-provider identity link
//   - [SourceAccessToken] / [SourceRefreshToken] : device-bound tokens
//
// 2. Target records: rows written to the new authentication service, each
// keyed by a freshly derived [ids.ID]
//   - [TargetUser], [TargetUserPassword], [TargetUserEmail]
//   - [TargetUpstreamOAuthLink] against a pre-existing [UpstreamOAuthProvider]
//   - [TargetCompatSession], [TargetCompatAccessToken], [TargetCompatRefreshToken]
//
// Source records are free of behavior beyond timestamp normalization; target
// records are constructed once during transformation and never updated. Every
// record exposes LogFields for diagnostics, with secret-bearing keys named so
// that shared.Redact masks them.
package models
