package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/spatial-cortex/internal/models"
)

func importCmd() *cobra.Command {
	var (
		format string
		mode   string
	)

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a JSON or YAML snapshot",
		Long: `Import a snapshot produced by export.

With --mode replace (the default) the current graph is discarded and the
snapshot becomes the graph. With --mode merge the snapshot's entities and
relationships are folded into the current graph. The snapshot is validated
in full first and applied completely or not at all.

Use - as the file path to read from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			path := args[0]

			m, err := models.ParseImportMode(mode)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			codec, err := codecFor(format, path)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}

			var r io.Reader = os.Stdin
			if path != "-" {
				f, openErr := os.Open(path)
				if openErr != nil {
					return fmt.Errorf("import: opening file: %w", openErr)
				}
				defer func() { _ = f.Close() }()
				r = f
			}

			snap, err := codec.Decode(r)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("import: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			report, err := w.engine.ImportSnapshot(snap, m)
			if err != nil {
				return fmt.Errorf("import: %w", err)
			}
			if err := w.save(); err != nil {
				return fmt.Errorf("import: saving graph: %w", err)
			}

			fmt.Printf("Import (%s): entities %d created, %d merged; relationships %d created, %d merged; %d reviews\n",
				report.Mode, report.EntitiesCreated, report.EntitiesMerged,
				report.RelationshipsCreated, report.RelationshipsMerged, report.Reviews)
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "input format: json or yaml (default from file extension)")
	cmd.Flags().StringVar(&mode, "mode", string(models.ImportReplace), "import mode: replace or merge")
	return cmd
}
