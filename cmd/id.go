package main

import (
	"context"
	"fmt"

	"github.com/authshift/authshift/internal/ids"
	"github.com/authshift/authshift/internal/shared"
	"github.com/urfave/cli/v3"
)

// ConvertID normalizes an identifier and prints both canonical encodings.
func (r *Runner) ConvertID(ctx context.Context, cmd *cli.Command) error {
	text := cmd.StringArg("identifier")
	if text == "" {
		return fmt.Errorf("%w: identifier", shared.ErrMissingArgument)
	}

	id, err := ids.Parse(text)
	if err != nil {
		return err
	}

	r.writePlain("sortable: %s\n", id)
	r.writePlain("uuid:     %s\n", id.UUIDString())
	r.writePlain("seeded:   %s\n", id.Timestamp().Format("2006-01-02T15:04:05.000Z07:00"))
	return nil
}

// idCommand converts identifiers between the two encodings.
func idCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "id",
		Usage: "Convert an identifier between its sortable and UUID encodings",
		Arguments: []cli.Argument{
			&cli.StringArg{
				Name: "identifier",
			},
		},
		Action: r.ConvertID,
	}
}
