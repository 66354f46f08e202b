package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/spatial-cortex/internal/config"
	"github.com/ajitpratap0/spatial-cortex/internal/graph"
	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/snapshot"
)

var cfg *config.Config

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	rootCmd := &cobra.Command{
		Use:   "spatial-cortex",
		Short: "Spatial Cortex: a semantic world model of physical things and where they are",
		Long: "Spatial Cortex turns observations of physical entities and their spatial relationships " +
			"into a persistent, confidence-weighted graph that can answer where things are and how they relate.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.Load()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			return nil
		},
	}

	rootCmd.AddCommand(
		ingestCmd(),
		entitiesCmd(),
		contextCmd(),
		pathCmd(),
		relationsCmd(),
		locateCmd(),
		statsCmd(),
		reviewCmd(),
		manifestsCmd(),
		exportCmd(),
		importCmd(),
		lifecycleCmd(),
		unlinkCmd(),
	)

	rootCmd.SetContext(ctx)

	err := rootCmd.Execute()
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if cfg != nil {
		switch cfg.Logging.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg != nil && cfg.Logging.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func engineOptions() graph.Options {
	return graph.Options{
		Name:             cfg.Storage.Graph,
		Matcher:          cfg.Matcher,
		Params:           cfg.Confidence.Params(),
		Query:            cfg.Query,
		Recall:           cfg.Recall,
		MaxEntities:      cfg.Limits.MaxEntities,
		MaxRelationships: cfg.Limits.MaxRelationships,
		VisualDimension:  cfg.Limits.VisualDimension,
	}
}

// world is the configured graph loaded from its badger store.
type world struct {
	store  *snapshot.BadgerStore
	engine *graph.Engine
}

func openWorld(logger *slog.Logger) (*world, error) {
	st, err := snapshot.Open(snapshot.Options{Dir: cfg.Storage.DataDir, Logger: logger})
	if err != nil {
		return nil, err
	}
	eng := graph.New(engineOptions(), logger)

	snap, err := st.Load(cfg.Storage.Graph)
	switch {
	case err == nil:
		if _, err := eng.ImportSnapshot(snap, models.ImportReplace); err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("restoring graph %s: %w", cfg.Storage.Graph, err)
		}
	case models.IsNotFound(err):
		logger.Debug("starting empty graph", "graph", cfg.Storage.Graph)
	default:
		_ = st.Close()
		return nil, err
	}
	return &world{store: st, engine: eng}, nil
}

func (w *world) save() error {
	return w.store.Save(w.engine.ExportSnapshot())
}

func (w *world) Close() error {
	return w.store.Close()
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) > maxLen {
		return string(runes[:maxLen]) + "..."
	}
	return s
}
