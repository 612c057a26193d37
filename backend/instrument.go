package backend

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/runtrack/tracking"
)

// Write kinds reported by the instrumented sink.
const (
	WriteAppendValue = "append_value"
	WriteSetValue    = "set_value"
	WriteUpload      = "upload"
	WriteAppendBlob  = "append_blob"
	WriteText        = "write_text"
)

// Metrics are the counters maintained by an InstrumentedSink.
type Metrics struct {
	Writes *prometheus.CounterVec
	Errors *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg. Counters
// that are already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runtrack",
			Subsystem: "sink",
			Name:      "writes_total",
			Help:      "Total tracking sink writes by kind",
		}, []string{"kind"}),
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "runtrack",
			Subsystem: "sink",
			Name:      "errors_total",
			Help:      "Total failed tracking sink writes by kind",
		}, []string{"kind"}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.Writes, err = register(reg, m.Writes); err != nil {
		return nil, err
	}
	if m.Errors, err = register(reg, m.Errors); err != nil {
		return nil, err
	}
	return m, nil
}

func register(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}

// InstrumentedSink counts writes passing through to the wrapped sink.
type InstrumentedSink struct {
	sink    tracking.Sink
	metrics *Metrics
}

// Instrument wraps sink with write counters registered on reg.
func Instrument(sink tracking.Sink, reg prometheus.Registerer) (*InstrumentedSink, error) {
	m, err := NewMetrics(reg)
	if err != nil {
		return nil, err
	}
	return &InstrumentedSink{sink: sink, metrics: m}, nil
}

// Metrics returns the counters.
func (s *InstrumentedSink) Metrics() *Metrics {
	return s.metrics
}

// Root returns the wrapped sink.
func (s *InstrumentedSink) Root() tracking.Sink {
	return s.sink
}

func (s *InstrumentedSink) observe(kind string, err error) error {
	s.metrics.Writes.WithLabelValues(kind).Inc()
	if err != nil {
		s.metrics.Errors.WithLabelValues(kind).Inc()
	}
	return err
}

func (s *InstrumentedSink) AppendValue(ctx context.Context, path string, value float64, step int64) error {
	return s.observe(WriteAppendValue, s.sink.AppendValue(ctx, path, value, step))
}

func (s *InstrumentedSink) SetValue(ctx context.Context, path string, value any) error {
	return s.observe(WriteSetValue, s.sink.SetValue(ctx, path, value))
}

func (s *InstrumentedSink) Upload(ctx context.Context, path string, blob tracking.Blob) error {
	return s.observe(WriteUpload, s.sink.Upload(ctx, path, blob))
}

func (s *InstrumentedSink) AppendBlob(ctx context.Context, path string, blob tracking.Blob, step int64) error {
	return s.observe(WriteAppendBlob, s.sink.AppendBlob(ctx, path, blob, step))
}

func (s *InstrumentedSink) WriteText(ctx context.Context, tag, text string, step int64) error {
	return s.observe(WriteText, s.sink.WriteText(ctx, tag, text, step))
}

func (s *InstrumentedSink) Flush(ctx context.Context) error {
	return s.sink.Flush(ctx)
}

func (s *InstrumentedSink) Close(ctx context.Context) error {
	return s.sink.Close(ctx)
}

var _ tracking.Sink = (*InstrumentedSink)(nil)
