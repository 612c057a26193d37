// Package tracking routes scoped training measurements onto the hierarchical
// namespace of a tracking backend.
//
// A Router combines three pieces:
//
//   - BuildPath and MetricPath map (base namespace, scope, coordinates, tag)
//     onto a deterministic Path. Repeated writes to the same Path append to
//     one series in the backend.
//   - ResolveConflicts rewrites metric names so that no name is a prefix of
//     another, pairing "<name>" with "<name>/std" as "<name>/val".
//   - Sink is the backend adapter: append-series, set-value, blob upload and
//     root-level text writes.
//
// Example:
//
//	sink := memory.New()
//	router, err := tracking.NewRouter(ctx, sink, tracking.DefaultConfig())
//	if err != nil {
//	    return err
//	}
//	defer router.Close(ctx)
//
//	batch := tracking.NewMetricBatch().Set("loss", 0.31).Set("loss/std", 0.02)
//	err = router.LogMetrics(ctx, batch, tracking.ScopeLoader, tracking.RunCoordinates{
//	    EpochStep: 3,
//	    LoaderKey: "valid",
//	})
//
// The Router does no locking of its own; calls are expected to be serialized
// by the training loop.
package tracking
