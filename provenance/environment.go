package provenance

import (
	"context"
	"encoding/json"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/YuminosukeSato/runtrack/pkg/log"
)

// CreationTimeLayout formats Snapshot.CreationTime (UTC, yymmdd.HHMMSS).
const CreationTimeLayout = "060102.150405"

// VCS is the version-control state of the working directory.
type VCS struct {
	Branch       string `json:"branch"`
	LocalCommit  string `json:"local_commit"`
	OriginCommit string `json:"origin_commit"`
}

// Snapshot is the environment of a run. Every field except Git is always
// serialized, empty when the fact is unknown. Git is present only when all
// three VCS queries succeeded.
type Snapshot struct {
	GoVersion        string `json:"go_version"`
	CondaEnvironment string `json:"conda_environment"`
	CreationTime     string `json:"creation_time"`
	Sysname          string `json:"sysname"`
	Nodename         string `json:"nodename"`
	Release          string `json:"release"`
	Version          string `json:"version"`
	Architecture     string `json:"architecture"`
	User             string `json:"user"`
	Path             string `json:"path"`
	Git              *VCS   `json:"git,omitempty"`
}

// Map returns the snapshot keyed by its JSON names.
func (s Snapshot) Map() map[string]any {
	data, _ := json.Marshal(s)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	return m
}

// Probe gathers a Snapshot.
type Probe struct {
	runner CommandRunner
	getenv func(string) string
	now    func() time.Time
	uname  func() Uname
	dir    string
	logger log.Logger
}

// ProbeOption configures a Probe.
type ProbeOption func(*Probe)

// WithRunner sets the runner used for VCS queries.
func WithRunner(r CommandRunner) ProbeOption {
	return func(p *Probe) {
		p.runner = r
	}
}

// WithGetenv sets the environment lookup.
func WithGetenv(getenv func(string) string) ProbeOption {
	return func(p *Probe) {
		p.getenv = getenv
	}
}

// WithClock sets the clock used for CreationTime.
func WithClock(now func() time.Time) ProbeOption {
	return func(p *Probe) {
		p.now = now
	}
}

// WithUname overrides the OS identity source.
func WithUname(fn func() Uname) ProbeOption {
	return func(p *Probe) {
		p.uname = fn
	}
}

// WithRepoDir sets the directory VCS queries run in.
func WithRepoDir(dir string) ProbeOption {
	return func(p *Probe) {
		p.dir = dir
	}
}

// WithProbeLogger sets the logger.
func WithProbeLogger(logger log.Logger) ProbeOption {
	return func(p *Probe) {
		p.logger = logger
	}
}

// NewProbe returns a Probe reading the real host by default.
func NewProbe(opts ...ProbeOption) *Probe {
	p := &Probe{
		runner: ExecRunner{},
		getenv: os.Getenv,
		now:    time.Now,
		uname:  systemUname,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = log.GetLoggerWithName("provenance")
	}
	return p
}

// Snapshot collects the environment. It never fails; unknown facts are
// left empty.
func (p *Probe) Snapshot(ctx context.Context) Snapshot {
	u := p.uname()
	s := Snapshot{
		GoVersion:        runtime.Version(),
		CondaEnvironment: p.getenv("CONDA_DEFAULT_ENV"),
		CreationTime:     p.now().UTC().Format(CreationTimeLayout),
		Sysname:          u.Sysname,
		Nodename:         u.Nodename,
		Release:          u.Release,
		Version:          u.Version,
		Architecture:     u.Machine,
		User:             p.getenv("USER"),
		Path:             p.getenv("PWD"),
	}
	s.Git = p.vcs(ctx)
	return s
}

// vcs returns nil unless branch, local and origin commits are all known.
func (p *Probe) vcs(ctx context.Context) *VCS {
	branch, err := p.runner.Run(ctx, p.dir, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil || branch == "" {
		p.logger.Debug("no vcs state", log.CommandKey, "git rev-parse --abbrev-ref HEAD")
		return nil
	}
	local, err := p.runner.Run(ctx, p.dir, "git", "rev-parse", "HEAD")
	if err != nil {
		return nil
	}
	origin, err := p.runner.Run(ctx, p.dir, "git", "rev-parse", "origin/"+branch)
	if err != nil {
		return nil
	}
	return &VCS{Branch: branch, LocalCommit: local, OriginCommit: origin}
}

func fallbackUname() Uname {
	host, _ := os.Hostname()
	return Uname{
		Sysname:  strings.ToUpper(runtime.GOOS[:1]) + runtime.GOOS[1:],
		Nodename: host,
		Machine:  runtime.GOARCH,
	}
}
