// Package log defines standard attribute keys for run tracking operations.
//
// The keys follow a hierarchical naming convention (e.g. "tracking.path",
// "run.logdir") so that log records from the router, the backends and the
// provenance writer can be filtered together.

package log

// Component and operation context
const (
	// ComponentKey identifies which package emitted the record.
	// Examples: "tracking.router", "provenance", "backend.local"
	ComponentKey = "component"

	// OperationKey specifies the operation being performed.
	// Standard values: see the Operation* constants below.
	OperationKey = "operation"
)

// Run context
const (
	// RunIDKey identifies the run in the tracking backend.
	RunIDKey = "run.id"

	// LogdirKey is the run's log directory.
	LogdirKey = "run.logdir"

	// ExpdirKey is the user's experiment directory.
	ExpdirKey = "run.expdir"

	// RunnerKey is the registered runner name resolved from the config.
	RunnerKey = "run.runner"
)

// Tracking context
const (
	// PathKey is the hierarchical tracking path of a write.
	PathKey = "tracking.path"

	// ScopeKey is the logging scope (batch, loader, epoch, experiment).
	ScopeKey = "tracking.scope"

	// StepKey is the step attached to an appended value.
	StepKey = "tracking.step"

	// MetricKey is a metric name within a MetricBatch.
	MetricKey = "tracking.metric"

	// BackendKey is the backend kind (memory, local, remote).
	BackendKey = "tracking.backend"
)

// Provenance context
const (
	// PackageManagerKey is the package manager being listed (pip, conda).
	PackageManagerKey = "pkg.manager"

	// CommandKey is an external command executed during capture.
	CommandKey = "exec.command"

	// FileKey is a file written or copied during capture.
	FileKey = "fs.file"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"
)

// Error context
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// SuggestionKey provides a hint for resolving the issue.
	SuggestionKey = "error.suggestion"
)

// Standard operation values.
const (
	OperationLogMetrics  = "log_metrics"
	OperationLogImage    = "log_image"
	OperationLogArtifact = "log_artifact"
	OperationLogHparams  = "log_hparams"
	OperationCapture     = "capture"
	OperationDumpCode    = "dump_code"
	OperationListPkgs    = "list_packages"
	OperationRun         = "run"
	OperationPlot        = "plot"
)
