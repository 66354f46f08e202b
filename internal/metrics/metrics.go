// Package metrics provides application-level counters using stdlib expvar.
// Counters are exported on the /debug/vars HTTP endpoint when expvar's
// handler is mounted by the binary.
package metrics

import "expvar"

// Ingestion counters.
var (
	ObservationsTotal    = expvar.NewInt("spatial_cortex_observations_total")
	ObservationsFailed   = expvar.NewInt("spatial_cortex_observations_failed_total")
	EntitiesCreated      = expvar.NewInt("spatial_cortex_entities_created_total")
	EntitiesMerged       = expvar.NewInt("spatial_cortex_entities_merged_total")
	EntitiesAmbiguous    = expvar.NewInt("spatial_cortex_entities_ambiguous_total")
	RelationshipsCreated = expvar.NewInt("spatial_cortex_relationships_created_total")
	RelationshipsMerged  = expvar.NewInt("spatial_cortex_relationships_merged_total")
	RelationshipsDropped = expvar.NewInt("spatial_cortex_relationships_dropped_total")
	ConflictsTotal       = expvar.NewInt("spatial_cortex_conflicts_total")
)

// Query and maintenance counters.
var (
	QueriesTotal      = expvar.NewInt("spatial_cortex_queries_total")
	LifecyclePruned   = expvar.NewInt("spatial_cortex_lifecycle_pruned_total")
	LifecycleStale    = expvar.NewInt("spatial_cortex_lifecycle_stale_entities")
	SnapshotsImported = expvar.NewInt("spatial_cortex_snapshots_imported_total")
)

// Inc increments the given counter by 1.
func Inc(counter *expvar.Int) { counter.Add(1) }

// Add increments the given counter by n.
func Add(counter *expvar.Int, n int) { counter.Add(int64(n)) }
