package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/authshift/authshift/internal/ids"
	"github.com/authshift/authshift/internal/shared"
	testutils "github.com/authshift/authshift/internal/testing"
	"github.com/urfave/cli/v3"
)

func newTestApp(output io.Writer) *cli.Command {
	runner := NewRunner(RunnerOpts{
		Logger: shared.NewLogger(io.Discard),
		Output: output,
	})
	return &cli.Command{
		Name:     "authshift",
		Commands: runner.register(),
	}
}

func writeStoreConfig(t *testing.T, path, dbPath string, streaming bool) {
	t.Helper()
	content := fmt.Sprintf("[database]\ndriver = \"sqlite3\"\npath = %q\nstreaming = %v\n", dbPath, streaming)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

// seedSourceStore creates a legacy store with one fully populated account.
func seedSourceStore(t *testing.T, dbPath string) {
	t.Helper()

	db := testutils.MustOpenDB(t, dbPath)
	testutils.MustExec(t, db, testutils.SourceSchema)
	testutils.MustExec(t, db,
		`INSERT INTO users (name, password_hash, creation_ts) VALUES ('@alice:example.org', '$2b$12$hash', 1700000000)`)
	testutils.MustExec(t, db,
		`INSERT INTO user_threepids VALUES ('@alice:example.org', 'email', 'alice@example.org', 1700000001000, 1700000002000)`)
	testutils.MustExec(t, db,
		`INSERT INTO access_tokens (id, user_id, device_id, token) VALUES (1, '@alice:example.org', 'DEVICE1', 'syt_a')`)
}

func TestSetupCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "target.toml")
	dbPath := filepath.Join(dir, "target.db")
	writeStoreConfig(t, configPath, dbPath, false)

	app := newTestApp(io.Discard)
	if err := app.Run(context.Background(), []string{"authshift", "setup", "-t", configPath}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	db := testutils.MustOpenDB(t, dbPath)
	if _, err := db.Exec("SELECT 1 FROM users LIMIT 1"); err != nil {
		t.Errorf("users table should exist after setup: %v", err)
	}

	t.Run("Idempotent", func(t *testing.T) {
		if err := app.Run(context.Background(), []string{"authshift", "setup", "-t", configPath}); err != nil {
			t.Errorf("second setup failed: %v", err)
		}
	})
}

func TestMigrateCommand(t *testing.T) {
	setup := func(t *testing.T) (sourceConfig, targetConfig, targetDB string) {
		t.Helper()
		dir := t.TempDir()

		sourceConfig = filepath.Join(dir, "source.toml")
		sourceDB := filepath.Join(dir, "source.db")
		writeStoreConfig(t, sourceConfig, sourceDB, true)
		seedSourceStore(t, sourceDB)

		targetConfig = filepath.Join(dir, "target.toml")
		targetDB = filepath.Join(dir, "target.db")
		writeStoreConfig(t, targetConfig, targetDB, false)

		app := newTestApp(io.Discard)
		if err := app.Run(context.Background(), []string{"authshift", "setup", "-t", targetConfig}); err != nil {
			t.Fatalf("setup failed: %v", err)
		}
		return sourceConfig, targetConfig, targetDB
	}

	t.Run("Migrates", func(t *testing.T) {
		sourceConfig, targetConfig, targetDB := setup(t)

		var output bytes.Buffer
		app := newTestApp(&output)
		err := app.Run(context.Background(), []string{
			"authshift", "migrate", "-s", sourceConfig, "-t", targetConfig,
		})
		if err != nil {
			t.Fatalf("migrate failed: %v", err)
		}

		if !strings.Contains(output.String(), "Migration Summary") {
			t.Errorf("expected summary in output, got:\n%s", output.String())
		}
		if !strings.Contains(output.String(), "Users migrated:   1") {
			t.Errorf("expected 1 migrated user in summary, got:\n%s", output.String())
		}

		db := testutils.MustOpenDB(t, targetDB)
		if got := testutils.CountRows(t, db, "users"); got != 1 {
			t.Errorf("expected 1 migrated user, got %d", got)
		}
	})

	t.Run("Dry Run Writes Nothing", func(t *testing.T) {
		sourceConfig, targetConfig, targetDB := setup(t)

		var output bytes.Buffer
		app := newTestApp(&output)
		err := app.Run(context.Background(), []string{
			"authshift", "migrate", "-s", sourceConfig, "-t", targetConfig, "--dry-run",
		})
		if err != nil {
			t.Fatalf("dry run failed: %v", err)
		}

		if !strings.Contains(output.String(), "(dry run)") {
			t.Errorf("expected dry run marker in summary, got:\n%s", output.String())
		}

		db := testutils.MustOpenDB(t, targetDB)
		if got := testutils.CountRows(t, db, "users"); got != 0 {
			t.Errorf("dry run wrote %d users", got)
		}
	})

	t.Run("Writes Report File", func(t *testing.T) {
		sourceConfig, targetConfig, _ := setup(t)
		reportPath := filepath.Join(t.TempDir(), "report.json")

		app := newTestApp(io.Discard)
		err := app.Run(context.Background(), []string{
			"authshift", "migrate", "-s", sourceConfig, "-t", targetConfig, "--report", reportPath,
		})
		if err != nil {
			t.Fatalf("migrate failed: %v", err)
		}

		testutils.AssertFileExists(t, reportPath)
		content := testutils.MustReadFile(t, reportPath)
		if !strings.Contains(content, `"users_migrated": 1`) {
			t.Errorf("expected migrated count in report, got:\n%s", content)
		}
	})

	t.Run("Refuses Second Run", func(t *testing.T) {
		sourceConfig, targetConfig, _ := setup(t)

		app := newTestApp(io.Discard)
		args := []string{"authshift", "migrate", "-s", sourceConfig, "-t", targetConfig}
		if err := app.Run(context.Background(), args); err != nil {
			t.Fatalf("first run failed: %v", err)
		}

		if err := app.Run(context.Background(), args); !errors.Is(err, shared.ErrTargetNotEmpty) {
			t.Errorf("expected ErrTargetNotEmpty on second run, got %v", err)
		}
	})

	t.Run("Missing Config", func(t *testing.T) {
		app := newTestApp(io.Discard)
		err := app.Run(context.Background(), []string{
			"authshift", "migrate", "-s", "/nonexistent/source.toml", "-t", "/nonexistent/target.toml",
		})
		if err == nil {
			t.Error("expected error for missing config files")
		}
	})
}

func TestIDCommand(t *testing.T) {
	t.Run("Converts", func(t *testing.T) {
		id := ids.New(time.Unix(1700000000, 0))

		var output bytes.Buffer
		app := newTestApp(&output)
		if err := app.Run(context.Background(), []string{"authshift", "id", id.String()}); err != nil {
			t.Fatalf("id command failed: %v", err)
		}

		if !strings.Contains(output.String(), id.UUIDString()) {
			t.Errorf("expected uuid encoding in output, got:\n%s", output.String())
		}
		if !strings.Contains(output.String(), id.String()) {
			t.Errorf("expected sortable encoding in output, got:\n%s", output.String())
		}
	})

	t.Run("Missing Argument", func(t *testing.T) {
		app := newTestApp(io.Discard)
		err := app.Run(context.Background(), []string{"authshift", "id"})
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("expected ErrMissingArgument, got %v", err)
		}
	})

	t.Run("Malformed", func(t *testing.T) {
		app := newTestApp(io.Discard)
		err := app.Run(context.Background(), []string{"authshift", "id", "not-an-identifier"})
		if !errors.Is(err, shared.ErrMalformedID) {
			t.Errorf("expected ErrMalformedID, got %v", err)
		}
	})
}

func TestUsersCommand(t *testing.T) {
	dir := t.TempDir()

	sourceConfig := filepath.Join(dir, "source.toml")
	sourceDB := filepath.Join(dir, "source.db")
	writeStoreConfig(t, sourceConfig, sourceDB, false)
	seedSourceStore(t, sourceDB)

	targetConfig := filepath.Join(dir, "target.toml")
	writeStoreConfig(t, targetConfig, filepath.Join(dir, "target.db"), false)

	app := newTestApp(io.Discard)
	if err := app.Run(context.Background(), []string{"authshift", "setup", "-t", targetConfig}); err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if err := app.Run(context.Background(), []string{"authshift", "migrate", "-s", sourceConfig, "-t", targetConfig}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}

	t.Run("Plain", func(t *testing.T) {
		var output bytes.Buffer
		app := newTestApp(&output)
		if err := app.Run(context.Background(), []string{"authshift", "users", "-t", targetConfig, "--plain"}); err != nil {
			t.Fatalf("users command failed: %v", err)
		}

		if !strings.Contains(output.String(), "alice") {
			t.Errorf("expected migrated user in listing, got:\n%s", output.String())
		}
	})

	t.Run("Invalid Limit", func(t *testing.T) {
		app := newTestApp(io.Discard)
		err := app.Run(context.Background(), []string{"authshift", "users", "-t", targetConfig, "--plain", "--limit", "0"})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("CSV", func(t *testing.T) {
		csvPath := filepath.Join(t.TempDir(), "users.csv")

		app := newTestApp(io.Discard)
		err := app.Run(context.Background(), []string{"authshift", "users", "-t", targetConfig, "--csv", csvPath})
		if err != nil {
			t.Fatalf("users command failed: %v", err)
		}

		testutils.AssertFileExists(t, csvPath)
		content := testutils.MustReadFile(t, csvPath)
		if !strings.Contains(content, "ID,UUID,Username") || !strings.Contains(content, "alice") {
			t.Errorf("unexpected CSV content:\n%s", content)
		}
	})
}
