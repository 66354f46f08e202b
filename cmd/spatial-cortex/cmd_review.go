package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func reviewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "review",
		Short: "Reconcile entities whose identity was ambiguous at ingest",
	}

	cmd.AddCommand(
		reviewListCmd(),
		reviewAcceptCmd(),
		reviewDismissCmd(),
	)

	return cmd
}

func reviewListCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pending reviews",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("review list: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			reviews := w.engine.Reviews()
			if len(reviews) == 0 {
				fmt.Println("No pending reviews.")
				return nil
			}

			if outputJSON {
				return printJSON(reviews)
			}
			for _, rv := range reviews {
				name, candidate := rv.EntityID, rv.CandidateID
				if e, err := w.engine.GetEntity(rv.EntityID); err == nil {
					name = e.Name
				}
				if e, err := w.engine.GetEntity(rv.CandidateID); err == nil {
					candidate = e.Name
				}
				fmt.Printf("%-36s  %-24s  maybe %-24s  score %.2f  %s\n",
					rv.EntityID, truncate(name, 24), truncate(candidate, 24), rv.Score, rv.FlaggedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}

func reviewAcceptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "accept <entity-id>",
		Short: "Merge a flagged entity into the entity it was confused with",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("review accept: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			kept, err := w.engine.AcceptReview(args[0])
			if err != nil {
				return fmt.Errorf("review accept: %w", err)
			}
			if err := w.save(); err != nil {
				return fmt.Errorf("review accept: saving graph: %w", err)
			}
			fmt.Printf("Merged %s into %s (%s).\n", args[0], kept.ID, kept.Name)
			return nil
		},
	}
}

func reviewDismissCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dismiss <entity-id>",
		Short: "Keep a flagged entity as distinct",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("review dismiss: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			if err := w.engine.DismissReview(args[0]); err != nil {
				return fmt.Errorf("review dismiss: %w", err)
			}
			if err := w.save(); err != nil {
				return fmt.Errorf("review dismiss: saving graph: %w", err)
			}
			fmt.Printf("Dismissed review for %s.\n", args[0])
			return nil
		},
	}
}
