// Package backend resolves the concrete tracking sink once at startup.
//
// Implementations register themselves under a kind from their init
// functions; callers import the implementations they need and call Open:
//
//	import (
//	    "github.com/YuminosukeSato/runtrack/backend"
//	    _ "github.com/YuminosukeSato/runtrack/backend/local"
//	)
//
//	sink, err := backend.Open(ctx, backend.Config{Kind: "local", Local: backend.LocalConfig{Dir: dir}})
//
// Routing code never branches on the backend kind.
package backend

import (
	"context"
	"sort"
	"sync"

	"github.com/YuminosukeSato/runtrack/pkg/errors"
	"github.com/YuminosukeSato/runtrack/tracking"
)

// Config selects and configures a backend.
type Config struct {
	Kind   string       `yaml:"kind" json:"kind" validate:"required"`
	Local  LocalConfig  `yaml:"local" json:"local"`
	Remote RemoteConfig `yaml:"remote" json:"remote"`
}

// LocalConfig configures the embedded badger store.
type LocalConfig struct {
	// Dir holds the database files. Empty means <logdir>/tracking when
	// resolved by the CLI.
	Dir string `yaml:"dir" json:"dir"`
	// InMemory keeps everything in RAM.
	InMemory bool `yaml:"in_memory" json:"in_memory"`
	// SyncWrites makes every write durable before returning.
	SyncWrites bool `yaml:"sync_writes" json:"sync_writes"`
}

// RemoteConfig configures the InfluxDB series and GCS object backend.
type RemoteConfig struct {
	InfluxURL   string `yaml:"influx_url" json:"influx_url" validate:"omitempty,url"`
	InfluxToken string `yaml:"influx_token" json:"-"`
	Org         string `yaml:"org" json:"org"`
	Bucket      string `yaml:"bucket" json:"bucket"`
	Measurement string `yaml:"measurement" json:"measurement"`

	GCSBucket       string `yaml:"gcs_bucket" json:"gcs_bucket"`
	GCSPrefix       string `yaml:"gcs_prefix" json:"gcs_prefix"`
	CredentialsFile string `yaml:"credentials_file" json:"credentials_file"`

	// RunID tags every point. Generated when empty.
	RunID string `yaml:"run_id" json:"run_id"`
}

// Opener constructs a sink from cfg.
type Opener func(ctx context.Context, cfg Config) (tracking.Sink, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Opener)
)

// Register makes an opener available under kind. It panics on duplicates.
func Register(kind string, opener Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if opener == nil {
		panic("backend: Register opener is nil")
	}
	if _, dup := registry[kind]; dup {
		panic("backend: Register called twice for " + kind)
	}
	registry[kind] = opener
}

// Kinds returns the registered kinds, sorted.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Open resolves cfg.Kind and opens the sink. A failure to connect is
// returned as a *errors.BackendError and is not retried.
func Open(ctx context.Context, cfg Config) (tracking.Sink, error) {
	registryMu.RLock()
	opener, ok := registry[cfg.Kind]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.NewValidationError("backend.kind", "unknown backend", cfg.Kind)
	}

	sink, err := opener(ctx, cfg)
	if err != nil {
		var backendErr *errors.BackendError
		if errors.As(err, &backendErr) {
			return nil, err
		}
		return nil, errors.NewBackendError(cfg.Kind, "open", err)
	}
	return sink, nil
}
