package main

import (
	"context"
	"fmt"
	"os"

	"github.com/authshift/authshift/internal/shared"
	"github.com/urfave/cli/v3"
)

// SetupTarget bootstraps a local target store schema. A production target
// store arrives already provisioned; this exists for local and staging runs.
func (r *Runner) SetupTarget(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("target-config")

	if _, err := os.Stat(configPath); err != nil {
		r.logger.Info("config file not found, creating from template", "path", configPath)
		if err := shared.CreateTargetConfigFile(configPath); err != nil {
			return fmt.Errorf("failed to create config file: %w", err)
		}
		r.logger.Info("config file created", "path", configPath)
	}

	db, config, err := r.openStore(configPath)
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("bootstrapping target schema", "path", config.Database.Path)
	if err := shared.BootstrapTargetSchema(db); err != nil {
		return fmt.Errorf("failed to bootstrap target schema: %w", err)
	}

	r.logger.Infof("setup complete for target store: %v", config.Database.Path)
	return nil
}

func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize a local target store schema",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "target-config",
				Aliases: []string{"t"},
				Usage:   "Path to the target store configuration file",
				Value:   "target.toml",
			},
		},
		Action: r.SetupTarget,
	}
}
