package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/spatial-cortex/internal/snapshot"
)

// codecFor uses an explicit format when given, otherwise the path's
// extension. Stdin and stdout default to JSON.
func codecFor(format, path string) (snapshot.Codec, error) {
	if format != "" {
		return snapshot.NewCodec(snapshot.Format(format))
	}
	if path == "" || path == "-" {
		return snapshot.NewCodec(snapshot.FormatJSON)
	}
	return snapshot.CodecFor(path)
}

func exportCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the whole graph as a JSON or YAML snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			codec, err := codecFor(format, output)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("export: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			snap := w.engine.ExportSnapshot()

			out := os.Stdout
			if output != "" && output != "-" {
				out, err = os.Create(output)
				if err != nil {
					return fmt.Errorf("export: creating output file: %w", err)
				}
				defer func() { _ = out.Close() }()
			}

			if err := codec.Encode(out, snap); err != nil {
				return fmt.Errorf("export: %w", err)
			}

			if output != "" && output != "-" {
				fmt.Fprintf(os.Stderr, "Exported %d entities and %d relationships to %s\n",
					len(snap.Entities), len(snap.Relationships), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "output format: json or yaml (default from file extension)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file path (- for stdout)")
	return cmd
}
