package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/spatial-cortex/internal/lifecycle"
)

func lifecycleCmd() *cobra.Command {
	var (
		dryRun     bool
		outputJSON bool
	)

	cmd := &cobra.Command{
		Use:   "lifecycle",
		Short: "Prune relationships that have decayed to the floor and gone unseen",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			ctx := cmd.Context()

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("lifecycle: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			lm := lifecycle.NewManager(w.engine, cfg.Lifecycle.MaxStaleAge(), logger)
			report, err := lm.Run(ctx, dryRun)
			if err != nil {
				return fmt.Errorf("lifecycle: running sweep: %w", err)
			}
			if !dryRun && report.Pruned > 0 {
				if err := w.save(); err != nil {
					return fmt.Errorf("lifecycle: saving graph: %w", err)
				}
			}

			if outputJSON {
				return printJSON(report)
			}
			fmt.Printf("Lifecycle report:\n")
			fmt.Printf("  Pruned relationships:  %d\n", report.Pruned)
			fmt.Printf("  Stale entities kept:   %d\n", report.StaleEntities)
			if dryRun {
				fmt.Println("  (dry run, no changes applied)")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview changes without applying")
	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}

func unlinkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unlink <relationship-id>",
		Short: "Delete a relationship by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("unlink: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			if err := w.engine.DeleteRelationship(args[0]); err != nil {
				return fmt.Errorf("unlink: %w", err)
			}
			if err := w.save(); err != nil {
				return fmt.Errorf("unlink: saving graph: %w", err)
			}
			fmt.Printf("Deleted relationship %s\n", args[0])
			return nil
		},
	}
}
