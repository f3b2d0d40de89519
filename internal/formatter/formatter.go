// package formatter provides functions to export migrated-user listings and run reports to portable formats (CSV, JSON, Markdown)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/authshift/authshift/internal/repositories"
	"github.com/authshift/authshift/internal/tasks"
)

// ExportUsersToCSV converts migrated users to CSV format with columns: ID, UUID, Username, Created, Locked, Admin
func ExportUsersToCSV(users []repositories.MigratedUser) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "UUID", "Username", "Created", "Locked", "Admin"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, user := range users {
		locked := ""
		if user.LockedAt != nil {
			locked = user.LockedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			user.ID.String(),
			user.ID.UUIDString(),
			user.Username,
			user.CreatedAt.UTC().Format(time.RFC3339),
			locked,
			strconv.FormatBool(user.Admin),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteUsersCSV exports migrated users to a CSV file.
//
// Defaults to migrated_users.csv as the filename.
func WriteUsersCSV(users []repositories.MigratedUser, path string) (string, error) {
	if path == "" {
		path = "migrated_users.csv"
	}

	data, err := ExportUsersToCSV(users)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write CSV file: %w", err)
	}

	return path, nil
}

// reportDocument is the serializable shape of a run report.
type reportDocument struct {
	DryRun        bool     `json:"dry_run"`
	UsersSeen     int      `json:"users_seen"`
	UsersMigrated int      `json:"users_migrated"`
	UsersSkipped  int      `json:"users_skipped"`
	Warnings      []string `json:"warnings"`
	Fatals        []string `json:"fatals"`
	Succeeded     bool     `json:"succeeded"`
}

// ExportReportToJSON converts a run report to indented JSON
func ExportReportToJSON(report *tasks.Report, dryRun bool) ([]byte, error) {
	doc := reportDocument{
		DryRun:        dryRun,
		UsersSeen:     report.UsersSeen,
		UsersMigrated: report.UsersMigrated,
		UsersSkipped:  report.UsersSkipped,
		Warnings:      report.Warnings,
		Fatals:        report.Fatals,
		Succeeded:     !report.Failed(),
	}
	if doc.Warnings == nil {
		doc.Warnings = []string{}
	}
	if doc.Fatals == nil {
		doc.Fatals = []string{}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// ExportReportToMarkdown converts a run report to Markdown format
func ExportReportToMarkdown(report *tasks.Report, dryRun bool) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Migration Report\n\n")
	if dryRun {
		buf.WriteString("Dry run: no writes were issued to the target store.\n\n")
	}

	buf.WriteString(fmt.Sprintf("**Users considered**: %d\n", report.UsersSeen))
	buf.WriteString(fmt.Sprintf("**Users migrated**: %d\n", report.UsersMigrated))
	if dryRun {
		buf.WriteString(fmt.Sprintf("**Users skipped**: %d\n", report.UsersSkipped))
	}
	buf.WriteString(fmt.Sprintf("**Warnings**: %d\n", report.WarningCount()))
	buf.WriteString(fmt.Sprintf("**Fatals**: %d\n", report.FatalCount()))

	if report.WarningCount() > 0 {
		buf.WriteString("\n## Warnings\n\n")
		for i, w := range report.Warnings {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, w))
		}
	}

	if report.FatalCount() > 0 {
		buf.WriteString("\n## Fatal conditions\n\n")
		for i, f := range report.Fatals {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, f))
		}
	}

	return buf.Bytes()
}

// WriteReportFile exports a run report to a file, choosing the format by
// extension: .json for JSON, Markdown otherwise.
//
// Defaults to migration_report.md as the filename.
func WriteReportFile(report *tasks.Report, dryRun bool, path string) (string, error) {
	if path == "" {
		path = "migration_report.md"
	}

	var data []byte
	if filepath.Ext(path) == ".json" {
		var err error
		data, err = ExportReportToJSON(report, dryRun)
		if err != nil {
			return "", fmt.Errorf("failed to generate JSON report: %w", err)
		}
	} else {
		data = ExportReportToMarkdown(report, dryRun)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report file: %w", err)
	}

	return path, nil
}
