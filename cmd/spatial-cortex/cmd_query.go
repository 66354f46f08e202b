package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/spatial-cortex/internal/models"
	"github.com/ajitpratap0/spatial-cortex/internal/query"
)

func contextCmd() *cobra.Command {
	var (
		outputJSON bool
		radius     int
	)

	cmd := &cobra.Command{
		Use:   "context <entity-id>",
		Short: "Show what contains, holds and sits near an entity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("context: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			c, err := w.engine.GetContext(args[0], radius)
			if err != nil {
				return fmt.Errorf("context: %w", err)
			}

			if outputJSON {
				return printJSON(c)
			}

			fmt.Printf("%s (%s), radius %d\n", c.Entity.Name, c.Entity.Type, c.Radius)
			for _, section := range []struct {
				title     string
				neighbors []query.Neighbor
			}{
				{"Container", c.Container},
				{"Contents", c.Contents},
				{"Nearby", c.Nearby},
				{"Related", c.Related},
			} {
				if len(section.neighbors) == 0 {
					continue
				}
				fmt.Printf("\n%s:\n", section.title)
				for _, n := range section.neighbors {
					fmt.Printf("  %-24s  %-10s  via %-12s  hops %d  conf %.2f (now %.2f)\n",
						truncate(n.Entity.Name, 24), n.Entity.Type, n.Via.Type, n.Hops, n.Confidence, n.Decayed)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().IntVar(&radius, "radius", -1, "hops to walk (default from config)")
	return cmd
}

func pathCmd() *cobra.Command {
	var (
		outputJSON bool
		types      []string
	)

	cmd := &cobra.Command{
		Use:   "path <source-id> <target-id>",
		Short: "Find the most confident route between two entities",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			var opts query.PathOptions
			for _, t := range types {
				rt, err := models.ParseRelationType(t)
				if err != nil {
					return fmt.Errorf("path: %w", err)
				}
				opts.Types = append(opts.Types, rt)
			}

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("path: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			p, err := w.engine.FindPath(args[0], args[1], opts)
			if err != nil {
				return fmt.Errorf("path: %w", err)
			}

			if outputJSON {
				return printJSON(p)
			}

			fmt.Printf("%d hops, cost %.3f\n", p.Hops, p.Cost)
			for i, s := range p.Steps {
				if s.Via == nil {
					fmt.Printf("  %d. %s\n", i, s.Entity.Name)
					continue
				}
				arrow := "->"
				if s.Reversed {
					arrow = "<-"
				}
				fmt.Printf("  %d. %s %s %s (%.2f)\n", i, arrow, s.Via.Type, s.Entity.Name, s.Via.Confidence)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().StringSliceVar(&types, "types", nil, "relation types the path may use (comma separated)")
	return cmd
}

func relationsCmd() *cobra.Command {
	var (
		outputJSON bool
		f          query.RelationFilter
	)

	cmd := &cobra.Command{
		Use:   "relations",
		Short: "Look up relationships, including inverse readings such as contains",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("relations: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			matches, err := w.engine.QueryRelationships(f)
			if err != nil {
				return fmt.Errorf("relations: %w", err)
			}
			if len(matches) == 0 {
				fmt.Println("No relationships found.")
				return nil
			}

			if outputJSON {
				return printJSON(matches)
			}
			for _, m := range matches {
				r := m.Relationship
				from, to := r.SourceID, r.TargetID
				if m.Inverted {
					from, to = to, from
				}
				fmt.Printf("%-36s  %-12s  %-36s  %.2f  x%d\n", from, m.As, to, r.Confidence, r.ObservationCount)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().StringVar(&f.SourceID, "source", "", "source entity ID")
	cmd.Flags().StringVar(&f.TargetID, "target", "", "target entity ID")
	cmd.Flags().StringVar(&f.Relation, "relation", "", "relation type or inverse name (e.g. in, contains)")
	cmd.Flags().BoolVar(&f.IncludeInverse, "inverse", false, "also match edges stored in the opposite direction")
	return cmd
}

func locateCmd() *cobra.Command {
	var (
		outputJSON bool
		limit      int
	)

	cmd := &cobra.Command{
		Use:   "locate <name>",
		Short: "Answer where something is",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			name := strings.Join(args, " ")

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("locate: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			placements := w.engine.Locate(name, limit)
			if len(placements) == 0 {
				fmt.Printf("Nothing named like %q is known.\n", name)
				return nil
			}

			if outputJSON {
				return printJSON(placements)
			}
			for i := range placements {
				p := &placements[i]
				where := "location unknown"
				if len(p.Chain) > 0 {
					parts := make([]string, 0, len(p.Chain))
					for _, l := range p.Chain {
						parts = append(parts, fmt.Sprintf("%s %s", l.Via.Type, l.Entity.Name))
					}
					where = strings.Join(parts, ", ")
				}
				fmt.Printf("%.3f  %-24s  %s\n", p.Score.FinalScore, truncate(p.Entity.Name, 24), where)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum number of answers (0 for all)")
	return cmd
}

func statsCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show graph statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("stats: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			stats := w.engine.Stats()
			if outputJSON {
				return printJSON(stats)
			}

			fmt.Printf("Graph:            %s\n", stats.Graph)
			fmt.Printf("Entities:         %d\n", stats.EntityCount)
			fmt.Printf("Relationships:    %d (%d spatial)\n", stats.RelationshipCount, stats.SpatialRelationshipCount)
			fmt.Printf("Pending reviews:  %d\n", stats.PendingReviews)

			fmt.Println("\nBy entity type:")
			for _, t := range sortedNames(stats.EntitiesByType) {
				fmt.Printf("  %-12s %d\n", t, stats.EntitiesByType[models.EntityType(t)])
			}

			fmt.Println("\nBy relation type:")
			for _, t := range sortedNames(stats.RelationshipsByType) {
				fmt.Printf("  %-12s %d\n", t, stats.RelationshipsByType[models.RelationType(t)])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}

func sortedNames[K ~string](m map[K]int) []string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, string(k))
	}
	sort.Strings(names)
	return names
}
