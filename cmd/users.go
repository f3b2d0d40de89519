package main

import (
	"context"
	"fmt"

	"github.com/authshift/authshift/internal/formatter"
	"github.com/authshift/authshift/internal/repositories"
	"github.com/authshift/authshift/internal/shared"
	"github.com/authshift/authshift/internal/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v3"
)

// Users browses already-migrated users in the target store. Interactive by
// default; --plain prints one line per user for scripting and --csv writes
// the listing to a file.
func (r *Runner) Users(ctx context.Context, cmd *cli.Command) error {
	db, _, err := r.openStore(cmd.String("target-config"))
	if err != nil {
		return err
	}
	defer db.Close()

	target := repositories.NewTargetStore(db, r.logger)

	limit := int(cmd.Int("limit"))
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be positive, got %d", shared.ErrInvalidArgument, limit)
	}

	if csvPath := cmd.String("csv"); csvPath != "" {
		users, err := target.ListUsers(ctx, limit, 0)
		if err != nil {
			return err
		}
		written, err := formatter.WriteUsersCSV(users, csvPath)
		if err != nil {
			return err
		}
		return r.writePlain("wrote %d user(s) to %s\n", len(users), written)
	}

	if cmd.Bool("plain") {
		users, err := target.ListUsers(ctx, limit, 0)
		if err != nil {
			return err
		}
		for _, u := range users {
			locked := ""
			if u.LockedAt != nil {
				locked = " locked"
			}
			r.writePlain("%s %s created=%s%s\n", u.ID, u.Username, u.CreatedAt.Format("2006-01-02"), locked)
		}
		return nil
	}

	model := ui.NewModel(ctx, target)
	p := tea.NewProgram(model)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}

// usersCommand handles read-only browsing of migrated users.
func usersCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "users",
		Usage: "Browse migrated users in the target store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "target-config",
				Aliases:  []string{"t"},
				Usage:    "Path to the target store configuration file",
				Required: true,
			},
			&cli.BoolFlag{
				Name:  "plain",
				Usage: "Print one line per user instead of the interactive list",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of users to print with --plain or --csv",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  "csv",
				Usage: "Write the listing to a CSV file instead of displaying it",
			},
		},
		Action: r.Users,
	}
}
