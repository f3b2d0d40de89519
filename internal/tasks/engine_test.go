package tasks

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/authshift/authshift/internal/ids"
	"github.com/authshift/authshift/internal/repositories"
	"github.com/authshift/authshift/internal/shared"
	testutils "github.com/authshift/authshift/internal/testing"
)

// fixture wires a seeded source database and an empty bootstrapped target
// database to their stores.
type fixture struct {
	sourceDB *sql.DB
	targetDB *sql.DB
	source   *repositories.SourceStore
	target   *repositories.TargetStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	sourceDB := testutils.NewSourceDB(t)
	targetDB := testutils.NewTargetDB(t)

	logger := shared.NewLogger(io.Discard)
	return &fixture{
		sourceDB: sourceDB,
		targetDB: targetDB,
		source:   repositories.NewSourceStore(sourceDB, true),
		target:   repositories.NewTargetStore(targetDB, logger),
	}
}

func (fx *fixture) engine(dryRun bool, mappings ...string) *Engine {
	return NewEngine(EngineOpts{
		Source:   fx.source,
		Target:   fx.target,
		Mappings: mappings,
		DryRun:   dryRun,
		Logger:   shared.NewLogger(io.Discard),
	})
}

func (fx *fixture) exec(t *testing.T, query string, args ...any) {
	t.Helper()
	testutils.MustExec(t, fx.sourceDB, query, args...)
}

func (fx *fixture) seedUser(t *testing.T, name string, admin, guest, deactivated bool, creationTS int64) {
	t.Helper()
	fx.exec(t,
		"INSERT INTO users (name, password_hash, admin, is_guest, deactivated, creation_ts) VALUES (?, ?, ?, ?, ?, ?)",
		name, "$2b$12$hash", admin, guest, deactivated, creationTS,
	)
}

func (fx *fixture) seedProvider(t *testing.T, issuer string) ids.ID {
	t.Helper()
	id := ids.New(time.Unix(1500000000, 0))
	_, err := fx.targetDB.Exec(
		"INSERT INTO upstream_oauth_providers (upstream_oauth_provider_id, issuer) VALUES (?, ?)",
		id.UUIDString(), issuer,
	)
	if err != nil {
		t.Fatalf("failed to seed provider: %v", err)
	}
	return id
}

func (fx *fixture) countTarget(t *testing.T, table string) int {
	t.Helper()
	return testutils.CountRows(t, fx.targetDB, table)
}

func TestEngineRun(t *testing.T) {
	ctx := context.Background()

	t.Run("Migrates Full User", func(t *testing.T) {
		fx := newFixture(t)
		provider := fx.seedProvider(t, "https://issuer.example.com")

		fx.seedUser(t, "@alice:example.org", true, false, false, 1700000000)
		fx.exec(t, "INSERT INTO user_threepids (user_id, medium, address, added_at, validated_at) VALUES (?, 'email', 'Alice@Example.ORG', ?, ?)",
			"@alice:example.org", int64(1700000001000), int64(1700000002000))
		fx.exec(t, "INSERT INTO user_external_ids (user_id, auth_provider, external_id) VALUES (?, 'oidc-corp', 'subject-1')",
			"@alice:example.org")
		fx.exec(t, "INSERT INTO access_tokens (id, user_id, device_id, token, last_validated, refresh_token_id) VALUES (1, ?, 'DEVICE1', 'syt_a', ?, 7)",
			"@alice:example.org", int64(1700000004000))
		fx.exec(t, "INSERT INTO refresh_tokens (id, token) VALUES (7, 'syr_a')")

		report, err := fx.engine(false, "oidc-corp:"+provider.String()).Run(ctx, nil)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		if report.UsersSeen != 1 || report.UsersMigrated != 1 {
			t.Errorf("expected 1 seen, 1 migrated; got %d, %d", report.UsersSeen, report.UsersMigrated)
		}
		if report.Failed() {
			t.Errorf("expected clean run, got warnings %v fatals %v", report.Warnings, report.Fatals)
		}

		for table, want := range map[string]int{
			"users": 1, "user_passwords": 1, "user_emails": 1, "upstream_oauth_links": 1,
			"compat_sessions": 1, "compat_access_tokens": 1, "compat_refresh_tokens": 1,
		} {
			if got := fx.countTarget(t, table); got != want {
				t.Errorf("table %s: expected %d rows, got %d", table, want, got)
			}
		}

		var username string
		var admin bool
		err = fx.targetDB.QueryRow("SELECT username, can_request_admin FROM users").Scan(&username, &admin)
		if err != nil {
			t.Fatalf("failed to read migrated user: %v", err)
		}
		if username != "alice" || !admin {
			t.Errorf("unexpected user row: username=%s admin=%v", username, admin)
		}

		var email string
		if err := fx.targetDB.QueryRow("SELECT email FROM user_emails").Scan(&email); err != nil {
			t.Fatalf("failed to read migrated email: %v", err)
		}
		if email != "alice@example.org" {
			t.Errorf("expected lower-cased email, got %s", email)
		}

		var subject, providerID string
		err = fx.targetDB.QueryRow("SELECT subject, upstream_oauth_provider_id FROM upstream_oauth_links").Scan(&subject, &providerID)
		if err != nil {
			t.Fatalf("failed to read upstream link: %v", err)
		}
		if subject != "subject-1" || providerID != provider.UUIDString() {
			t.Errorf("unexpected link row: subject=%s provider=%s", subject, providerID)
		}
	})

	t.Run("Refuses Non-Empty Target", func(t *testing.T) {
		fx := newFixture(t)
		fx.seedUser(t, "@alice:example.org", false, false, false, 1700000000)

		if _, err := fx.engine(false).Run(ctx, nil); err != nil {
			t.Fatalf("first run failed: %v", err)
		}

		report, err := fx.engine(false).Run(ctx, nil)
		if !errors.Is(err, shared.ErrTargetNotEmpty) {
			t.Fatalf("expected ErrTargetNotEmpty, got %v", err)
		}
		if report.FatalCount() != 1 {
			t.Errorf("expected 1 fatal, got %d", report.FatalCount())
		}
		if got := fx.countTarget(t, "users"); got != 1 {
			t.Errorf("second run must not touch the target, got %d users", got)
		}
	})

	t.Run("Guest Aborts Real Run", func(t *testing.T) {
		fx := newFixture(t)
		fx.seedUser(t, "@guest123:example.org", false, true, false, 1700000000)

		report, err := fx.engine(false).Run(ctx, nil)
		if !errors.Is(err, shared.ErrGuestUser) {
			t.Fatalf("expected ErrGuestUser, got %v", err)
		}
		if report.FatalCount() != 1 {
			t.Errorf("expected 1 fatal, got %d", report.FatalCount())
		}
		if got := fx.countTarget(t, "users"); got != 0 {
			t.Errorf("expected no committed users, got %d", got)
		}
	})

	t.Run("Guest Continues In Dry Run", func(t *testing.T) {
		fx := newFixture(t)
		fx.seedUser(t, "@guest123:example.org", false, true, false, 1700000000)
		fx.seedUser(t, "@alice:example.org", false, false, false, 1700000100)

		report, err := fx.engine(true).Run(ctx, nil)
		if err != nil {
			t.Fatalf("dry run must not abort on guest: %v", err)
		}

		if report.UsersSeen != 2 {
			t.Errorf("expected 2 users seen, got %d", report.UsersSeen)
		}
		if report.UsersMigrated != 1 {
			t.Errorf("expected 1 user validated, got %d", report.UsersMigrated)
		}
		if report.FatalCount() != 1 {
			t.Errorf("expected guest recorded as fatal, got %d", report.FatalCount())
		}
		if !report.Failed() {
			t.Error("run with a fatal must report failure")
		}
	})

	t.Run("Deactivated User Gets No Sessions", func(t *testing.T) {
		fx := newFixture(t)
		fx.seedUser(t, "@bob:example.org", false, false, true, 1700000000)
		fx.exec(t, "INSERT INTO access_tokens (id, user_id, device_id, token) VALUES (1, ?, 'DEVICE1', 'syt_a')",
			"@bob:example.org")

		report, err := fx.engine(false).Run(ctx, nil)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}
		if report.UsersMigrated != 1 {
			t.Errorf("expected 1 migrated user, got %d", report.UsersMigrated)
		}

		if got := fx.countTarget(t, "users"); got != 1 {
			t.Errorf("expected 1 user row, got %d", got)
		}
		if got := fx.countTarget(t, "compat_sessions"); got != 0 {
			t.Errorf("deactivated user must have no sessions, got %d", got)
		}
		if got := fx.countTarget(t, "compat_access_tokens"); got != 0 {
			t.Errorf("deactivated user must have no access tokens, got %d", got)
		}

		var locked sql.NullTime
		if err := fx.targetDB.QueryRow("SELECT locked_at FROM users").Scan(&locked); err != nil {
			t.Fatalf("failed to read locked_at: %v", err)
		}
		if !locked.Valid {
			t.Error("expected deactivated user to carry a locked timestamp")
		}
	})

	t.Run("Deviceless Tokens Ignored", func(t *testing.T) {
		fx := newFixture(t)
		fx.seedUser(t, "@carol:example.org", false, false, false, 1700000000)
		fx.exec(t, "INSERT INTO access_tokens (id, user_id, device_id, token) VALUES (1, ?, NULL, 'syt_a')",
			"@carol:example.org")
		fx.exec(t, "INSERT INTO access_tokens (id, user_id, device_id, token) VALUES (2, ?, '', 'syt_b')",
			"@carol:example.org")

		report, err := fx.engine(false).Run(ctx, nil)
		if err != nil {
			t.Fatalf("run failed: %v", err)
		}

		if report.WarningCount() != 0 {
			t.Errorf("deviceless tokens must not warn, got %v", report.Warnings)
		}
		if report.Failed() {
			t.Error("expected clean run")
		}
		if got := fx.countTarget(t, "compat_sessions"); got != 0 {
			t.Errorf("expected no sessions, got %d", got)
		}
	})

	t.Run("Dry Run Skips Warned User", func(t *testing.T) {
		fx := newFixture(t)
		fx.seedUser(t, "@dave:example.org", false, false, false, 1700000000)
		fx.exec(t, "INSERT INTO user_threepids (user_id, medium, address, added_at) VALUES (?, 'msisdn', '+15551234567', ?)",
			"@dave:example.org", int64(1700000001000))

		report, err := fx.engine(true).Run(ctx, nil)
		if err != nil {
			t.Fatalf("dry run must not abort on warnings: %v", err)
		}

		if report.UsersSkipped != 1 || report.UsersMigrated != 0 {
			t.Errorf("expected 1 skipped, 0 migrated; got %d, %d", report.UsersSkipped, report.UsersMigrated)
		}
		if report.WarningCount() != 1 {
			t.Errorf("expected 1 warning, got %v", report.Warnings)
		}
		if report.FatalCount() != 0 {
			t.Errorf("warnings must not escalate to fatals in dry-run, got %v", report.Fatals)
		}
		if !report.Failed() {
			t.Error("a warned dry run still fails overall")
		}
	})

	t.Run("Warned User Aborts Real Run", func(t *testing.T) {
		fx := newFixture(t)
		fx.seedUser(t, "@dave:example.org", false, false, false, 1700000000)
		fx.exec(t, "INSERT INTO user_threepids (user_id, medium, address, added_at) VALUES (?, 'msisdn', '+15551234567', ?)",
			"@dave:example.org", int64(1700000001000))

		report, err := fx.engine(false).Run(ctx, nil)
		if !errors.Is(err, shared.ErrUnresolvedWarnings) {
			t.Fatalf("expected ErrUnresolvedWarnings, got %v", err)
		}
		if report.WarningCount() != 1 || report.FatalCount() != 1 {
			t.Errorf("expected warning plus fatal, got %v / %v", report.Warnings, report.Fatals)
		}
		if got := fx.countTarget(t, "users"); got != 0 {
			t.Errorf("warned user must not be committed, got %d rows", got)
		}
	})

	t.Run("Missing Refresh Token Warns", func(t *testing.T) {
		fx := newFixture(t)
		fx.seedUser(t, "@erin:example.org", false, false, false, 1700000000)
		fx.exec(t, "INSERT INTO access_tokens (id, user_id, device_id, token, refresh_token_id) VALUES (1, ?, 'DEVICE1', 'syt_a', 42)",
			"@erin:example.org")

		report, err := fx.engine(true).Run(ctx, nil)
		if err != nil {
			t.Fatalf("dry run failed: %v", err)
		}
		if report.WarningCount() != 1 {
			t.Fatalf("expected 1 warning, got %v", report.Warnings)
		}
		if report.UsersSkipped != 1 {
			t.Errorf("expected warned user to be skipped, got %d", report.UsersSkipped)
		}
	})

	t.Run("Unmapped Provider Is Fatal", func(t *testing.T) {
		fx := newFixture(t)
		fx.seedUser(t, "@frank:example.org", false, false, false, 1700000000)
		fx.exec(t, "INSERT INTO user_external_ids (user_id, auth_provider, external_id) VALUES (?, 'oidc-unmapped', 'subject-9')",
			"@frank:example.org")

		report, err := fx.engine(false).Run(ctx, nil)
		if !errors.Is(err, shared.ErrUnknownProvider) {
			t.Fatalf("expected ErrUnknownProvider, got %v", err)
		}
		if report.FatalCount() != 1 {
			t.Errorf("expected 1 fatal, got %d", report.FatalCount())
		}

		dry := newFixture(t)
		dry.seedUser(t, "@frank:example.org", false, false, false, 1700000000)
		dry.exec(t, "INSERT INTO user_external_ids (user_id, auth_provider, external_id) VALUES (?, 'oidc-unmapped', 'subject-9')",
			"@frank:example.org")

		report, err = dry.engine(true).Run(ctx, nil)
		if err != nil {
			t.Fatalf("dry run must record the fatal and continue: %v", err)
		}
		if report.FatalCount() != 1 || !report.Failed() {
			t.Errorf("expected recorded fatal, got %v", report.Fatals)
		}
	})

	t.Run("Atomic Per User", func(t *testing.T) {
		fx := newFixture(t)
		// Both localparts collapse to "dup", so the second commit violates
		// the unique username constraint.
		fx.seedUser(t, "@dup:one.example", false, false, false, 1700000000)
		fx.seedUser(t, "@dup:two.example", false, false, false, 1700000100)

		report, err := fx.engine(false).Run(ctx, nil)
		if err == nil {
			t.Fatal("expected commit failure on duplicate username")
		}
		if report.UsersMigrated != 1 {
			t.Errorf("expected exactly 1 committed user, got %d", report.UsersMigrated)
		}
		if got := fx.countTarget(t, "users"); got != 1 {
			t.Errorf("expected 1 user row after failed second commit, got %d", got)
		}
		if got := fx.countTarget(t, "user_passwords"); got != 1 {
			t.Errorf("expected no partial rows from the failed user, got %d passwords", got)
		}
	})

	t.Run("Dry Run Writes Nothing", func(t *testing.T) {
		fx := newFixture(t)
		fx.seedUser(t, "@alice:example.org", false, false, false, 1700000000)
		fx.exec(t, "INSERT INTO access_tokens (id, user_id, device_id, token) VALUES (1, ?, 'DEVICE1', 'syt_a')",
			"@alice:example.org")

		report, err := fx.engine(true).Run(ctx, nil)
		if err != nil {
			t.Fatalf("dry run failed: %v", err)
		}
		if report.UsersMigrated != 1 || report.Failed() {
			t.Errorf("expected clean validation, got %+v", report)
		}

		for _, table := range []string{"users", "user_passwords", "compat_sessions", "compat_access_tokens"} {
			if got := fx.countTarget(t, table); got != 0 {
				t.Errorf("table %s: dry run wrote %d rows", table, got)
			}
		}
	})

	t.Run("Reports Progress", func(t *testing.T) {
		fx := newFixture(t)
		fx.seedUser(t, "@alice:example.org", false, false, false, 1700000000)

		progress := make(chan ProgressUpdate, 16)
		if _, err := fx.engine(false).Run(ctx, progress); err != nil {
			t.Fatalf("run failed: %v", err)
		}
		close(progress)

		seen := make(map[Phase]bool)
		for update := range progress {
			seen[update.Phase] = true
		}
		for _, phase := range []Phase{CheckTarget, ResolveProviders, MigrateUsers, Summarize} {
			if !seen[phase] {
				t.Errorf("expected a %s progress update", phase)
			}
		}
	})
}
