package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ajitpratap0/spatial-cortex/internal/graph"
	"github.com/ajitpratap0/spatial-cortex/internal/models"
)

func entitiesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "entities",
		Short: "Inspect and manage entities in the world model",
	}

	cmd.AddCommand(
		entitiesListCmd(),
		entitiesGetCmd(),
		entitiesSearchCmd(),
		entitiesDeleteCmd(),
		entitiesMergeCmd(),
	)

	return cmd
}

func printEntityRow(e *models.Entity) {
	fmt.Printf("%-36s  %-10s  %-24s  %.2f  %s\n", e.ID, e.Type, truncate(e.Name, 24), e.Confidence, strings.Join(e.Aliases, ", "))
}

func entitiesListCmd() *cobra.Command {
	var (
		outputJSON bool
		entityType string
		tag        string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities, optionally by type or tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			var f graph.EntityFilter
			if entityType != "" {
				t, err := models.ParseEntityType(entityType)
				if err != nil {
					return fmt.Errorf("entities list: %w", err)
				}
				f.Type = t
			}
			f.Tag = tag

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("entities list: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			entities := w.engine.ListEntities(f)
			if len(entities) == 0 {
				fmt.Println("No entities found.")
				return nil
			}

			if outputJSON {
				return printJSON(entities)
			}
			for _, e := range entities {
				printEntityRow(e)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().StringVar(&entityType, "type", "", "filter by entity type")
	cmd.Flags().StringVar(&tag, "tag", "", "filter by tag")
	return cmd
}

func entitiesGetCmd() *cobra.Command {
	var outputJSON bool

	cmd := &cobra.Command{
		Use:   "get <entity-id>",
		Short: "Retrieve a single entity by ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("entities get: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			entity, err := w.engine.GetEntity(args[0])
			if err != nil {
				return fmt.Errorf("entities get: %w", err)
			}

			if outputJSON {
				return printJSON(entity)
			}

			fmt.Printf("ID:           %s\n", entity.ID)
			fmt.Printf("Name:         %s\n", entity.Name)
			fmt.Printf("Type:         %s\n", entity.Type)
			fmt.Printf("Aliases:      %s\n", strings.Join(entity.Aliases, ", "))
			fmt.Printf("Tags:         %s\n", strings.Join(entity.Tags, ", "))
			fmt.Printf("Confidence:   %.3f\n", entity.Confidence)
			fmt.Printf("Observations: %d\n", entity.ObservationCount)
			fmt.Printf("First seen:   %s\n", entity.FirstSeen.Format("2006-01-02 15:04:05"))
			fmt.Printf("Last seen:    %s\n", entity.LastSeen.Format("2006-01-02 15:04:05"))
			if entity.Description != "" {
				fmt.Printf("Description:  %s\n", entity.Description)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	return cmd
}

func entitiesSearchCmd() *cobra.Command {
	var (
		outputJSON bool
		threshold  float64
	)

	cmd := &cobra.Command{
		Use:   "search <name>",
		Short: "Search for entities by fuzzy name match",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("entities search: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			matches := w.engine.SearchEntities(args[0], threshold)
			if len(matches) == 0 {
				fmt.Printf("No entities found matching %q.\n", args[0])
				return nil
			}

			if outputJSON {
				return printJSON(matches)
			}
			for _, m := range matches {
				fmt.Printf("%.3f  ", m.Score)
				printEntityRow(m.Entity)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	cmd.Flags().Float64Var(&threshold, "threshold", 0.5, "minimum name similarity (0-1)")
	return cmd
}

func entitiesDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <entity-id>",
		Short: "Delete an entity and every relationship touching it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("entities delete: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			removed, err := w.engine.DeleteEntity(args[0])
			if err != nil {
				return fmt.Errorf("entities delete: %w", err)
			}
			if err := w.save(); err != nil {
				return fmt.Errorf("entities delete: saving graph: %w", err)
			}
			fmt.Printf("Deleted entity %s and %d relationships.\n", args[0], removed)
			return nil
		},
	}
}

func entitiesMergeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "merge <id> <id>",
		Short: "Merge two entities that are the same physical thing",
		Long:  "Folds the younger entity into the older one. Relationships of the absorbed entity are moved onto the survivor; edges that become duplicates are combined.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			w, err := openWorld(logger)
			if err != nil {
				return fmt.Errorf("entities merge: opening graph: %w", err)
			}
			defer func() { _ = w.Close() }()

			kept, err := w.engine.MergeEntities(args[0], args[1])
			if err != nil {
				return fmt.Errorf("entities merge: %w", err)
			}
			if err := w.save(); err != nil {
				return fmt.Errorf("entities merge: saving graph: %w", err)
			}
			absorbed := args[1]
			if absorbed == kept.ID {
				absorbed = args[0]
			}
			fmt.Printf("Merged %s into %s (%s), %d observations.\n", absorbed, kept.ID, kept.Name, kept.ObservationCount)
			return nil
		},
	}
}
