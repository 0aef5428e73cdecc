package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/helixir/referee-finder/internal/repository"
)

func newShowCmd(a *app) *cobra.Command {
	var refereesOnly bool

	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print a stored run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			ctx := cmd.Context()
			db, repo, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			return showRun(ctx, repo, runID, refereesOnly, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&refereesOnly, "referees", false, "print only the preprint to referee map")

	return cmd
}

func showRun(ctx context.Context, repo repository.RunRepository, runID uuid.UUID, refereesOnly bool, w io.Writer) error {
	run, err := repo.GetRun(ctx, runID)
	if err != nil {
		return fmt.Errorf("load run %s: %w", runID, err)
	}

	if !refereesOnly {
		return writeResult(w, run, true)
	}

	data, err := json.MarshalIndent(run.Results, "", "  ")
	if err != nil {
		return fmt.Errorf("encode referees: %w", err)
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
