package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func manifestsCmd() *cobra.Command {
	var (
		outputJSON bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "manifests",
		Short: "Show the ingest history of the graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("manifests: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			ms, err := w.store.Manifests(w.engine.Name(), limit)
			if err != nil {
				return fmt.Errorf("manifests: %w", err)
			}
			if len(ms) == 0 {
				fmt.Println("No observations recorded.")
				return nil
			}

			if outputJSON {
				return printJSON(ms)
			}
			for i := range ms {
				m := &ms[i]
				fmt.Printf("%s  %-36s  %-9s  %-16s  +%d entities  +%d relationships  %d conflicts  %d failures\n",
					m.Timestamp.Format("2006-01-02 15:04:05"), m.ObservationID, m.State, truncate(m.DeviceID, 16),
					len(m.EntitiesCreated), len(m.RelationshipsCreated), len(m.Conflicts), len(m.Failures))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 20, "show only the newest N entries (0 for all)")
	return cmd
}
