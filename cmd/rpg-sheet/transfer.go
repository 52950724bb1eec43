package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/KirkDiggler/rpg-sheet/internal/errors"
	"github.com/KirkDiggler/rpg-sheet/internal/orchestrators/tracker"
)

func newExportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "export [FILE]",
		Short: "Write the character document with its current game state",
		Long: `Write the full character document with a "gameState" section holding the
current session state. Without FILE the document is written to stdout.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				output, err := a.tracker.Export(ctx)
				if err != nil {
					return err
				}

				if len(args) == 0 {
					_, err := cmd.OutOrStdout().Write(output.Data)
					return err
				}

				path := args[0]
				if err := os.WriteFile(path, output.Data, 0o600); err != nil {
					return errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to write %s", path)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Exported to %s\n", path)
				return nil
			})
		},
	}
}

func newImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace the session state with the gameState section of an exported document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return errors.NotFoundf("import file %s not found", path)
				}
				return errors.WrapWithCodef(err, errors.CodeUnavailable, "failed to read %s", path)
			}

			return runWithApp(cmd.Context(), opts, func(ctx context.Context, a *app) error {
				output, err := a.tracker.Import(ctx, &tracker.ImportInput{Data: data})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %s\n", path)
				describeHitPoints(cmd.OutOrStdout(), output.State)
				return nil
			})
		},
	}
}
