package main

import (
	"context"
	"fmt"

	"github.com/authshift/authshift/internal/formatter"
	"github.com/authshift/authshift/internal/repositories"
	"github.com/authshift/authshift/internal/shared"
	"github.com/authshift/authshift/internal/tasks"
	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v3"
)

// Migrate runs the one-shot migration from the source store to the target store.
func (r *Runner) Migrate(ctx context.Context, cmd *cli.Command) error {
	sourcePath := cmd.String("source-config")
	targetPath := cmd.String("target-config")
	mappings := cmd.StringSlice("provider-mapping")
	dryRun := cmd.Bool("dry-run")

	if cmd.Bool("verbose") {
		shared.SetLogLevel(r.logger, log.DebugLevel)
	}

	r.logger.Info("starting migration", "source", sourcePath, "target", targetPath, "dry_run", dryRun)

	sourceDB, sourceConfig, err := r.openStore(sourcePath)
	if err != nil {
		return err
	}
	defer sourceDB.Close()

	targetDB, _, err := r.openStore(targetPath)
	if err != nil {
		return err
	}
	defer targetDB.Close()

	engine := tasks.NewEngine(tasks.EngineOpts{
		Source:   repositories.NewSourceStore(sourceDB, sourceConfig.Database.Streaming),
		Target:   repositories.NewTargetStore(targetDB, r.logger),
		Mappings: mappings,
		DryRun:   dryRun,
		Logger:   r.logger,
	})

	if dryRun {
		r.writePlain("Dry run: no writes will be issued to the target store.\n\n")
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for update := range progressCh {
			switch update.Phase {
			case tasks.CheckTarget, tasks.ResolveProviders:
				r.writePlain("• %s\n", update.Message)
			case tasks.MigrateUsers:
				r.writePlain("  %s\n", update.Message)
			case tasks.Summarize:
				r.writePlain("\n%s\n", update.Message)
			}
		}
	}()

	report, runErr := engine.Run(ctx, progressCh)
	close(progressCh)
	<-drained

	r.printSummary(report, dryRun)

	// The report file is written even for aborted runs; operators need the
	// accumulated warnings and fatals most when the run did not finish.
	if reportPath := cmd.String("report"); reportPath != "" {
		written, err := formatter.WriteReportFile(report, dryRun, reportPath)
		if err != nil {
			r.logger.Error("failed to write run report", "path", reportPath, "error", err)
		} else {
			r.logger.Info("run report written", "path", written)
		}
	}

	if runErr != nil {
		return runErr
	}
	if report.Failed() {
		return fmt.Errorf("%w: %d fatal(s), %d warning(s)", shared.ErrMigrationFailed, report.FatalCount(), report.WarningCount())
	}

	return nil
}

// printSummary renders the final run outcome, replaying every accumulated
// warning so operators can act on them even after an abort.
func (r *Runner) printSummary(report *tasks.Report, dryRun bool) {
	title := "Migration Summary"
	if dryRun {
		title = "Migration Summary (dry run)"
	}

	r.writePlainln("")
	r.writePlainHeader(title)
	r.writePlain("Users considered: %d\n", report.UsersSeen)
	r.writePlain("Users migrated:   %d\n", report.UsersMigrated)
	if dryRun {
		r.writePlain("Users skipped:    %d\n", report.UsersSkipped)
	}
	r.writePlain("Warnings:         %d\n", report.WarningCount())
	r.writePlain("Fatals:           %d\n", report.FatalCount())

	if report.WarningCount() > 0 {
		r.writePlainln("Warnings:")
		for i, w := range report.Warnings {
			r.writePlain("  %d. %s\n", i+1, w)
		}
	}

	if report.FatalCount() > 0 {
		r.writePlainln("Fatal conditions:")
		for i, f := range report.Fatals {
			r.writePlain("  %d. %s\n", i+1, f)
		}
	}
}

// migrateCommand handles the store-to-store migration run.
func migrateCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Migrate all eligible accounts into the target store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "source-config",
				Aliases:  []string{"s"},
				Usage:    "Path to the source store configuration file",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "target-config",
				Aliases:  []string{"t"},
				Usage:    "Path to the target store configuration file",
				Required: true,
			},
			&cli.StringSliceFlag{
				Name:    "provider-mapping",
				Aliases: []string{"m"},
				Usage:   "Upstream provider mapping <source-provider>:<target-provider-id>, repeatable",
			},
			&cli.BoolFlag{
				Name:  "dry-run",
				Usage: "Run every read, transform and validation without writing to the target store",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Log each derived record at debug level (secrets redacted)",
			},
			&cli.StringFlag{
				Name:  "report",
				Usage: "Write the run report to a file (.json for JSON, Markdown otherwise)",
			},
		},
		Action: r.Migrate,
	}
}
