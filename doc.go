// Package runtrack records the provenance of training runs and routes their
// metrics to a tracking backend.
//
// runtrack offers two cooperating pieces:
//
//   - Provenance capture: before the first training iteration, the run's
//     environment, installed packages, configuration and source code are
//     written under the run's log directory.
//   - Metric routing: metrics logged at batch, loader, epoch or experiment
//     scope are mapped onto hierarchical paths and forwarded to a pluggable
//     backend (in-memory, local BadgerDB, or InfluxDB plus GCS).
//
// # Installation
//
//	go get github.com/YuminosukeSato/runtrack
//
// # Quick Start
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//
//	    "github.com/YuminosukeSato/runtrack/backend/local"
//	    "github.com/YuminosukeSato/runtrack/provenance"
//	    "github.com/YuminosukeSato/runtrack/tracking"
//	)
//
//	func main() {
//	    ctx := context.Background()
//
//	    // Capture provenance under ./logs/run-1
//	    w := provenance.NewWriter()
//	    if _, err := w.Capture(ctx, "./logs/run-1", nil, provenance.CaptureOptions{ExpDir: "./experiments/mnist"}); err != nil {
//	        log.Fatal(err)
//	    }
//
//	    // Route metrics to a local store
//	    store, err := local.Open(local.Config{Dir: "./logs/run-1/tracking"})
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    router, err := tracking.NewRouter(ctx, store, tracking.DefaultConfig())
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer router.Close(ctx)
//
//	    batch := tracking.NewMetricBatch().Set("loss", 0.42)
//	    coords := tracking.RunCoordinates{EpochStep: 1, LoaderKey: "train"}
//	    if err := router.LogMetrics(ctx, batch, tracking.ScopeLoader, coords); err != nil {
//	        log.Fatal(err)
//	    }
//	}
//
// # Packages
//
//   - tracking: scoped paths, conflict resolution, the Sink interface and the Router
//   - backend: backend registry and instrumentation; memory, local and remote implementations
//   - provenance: environment probe, package manifests, code snapshots and the capture writer
//   - metrics: metric accumulation and curve rendering
//   - experiment: runner registry and experiment catalog
//   - config: tool settings
//   - cli: the runtrack command line (cmd/runtrack)
//   - pkg/errors, pkg/log: error types and structured logging
package runtrack
