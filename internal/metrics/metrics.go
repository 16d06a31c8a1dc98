// Package metrics is a minimal facade between pipeline code and a metrics
// backend. Pipeline code depends only on this package; backend SDKs stay out
// of the core. The default backend is a nop. Backends are process-lifetime:
// set once at startup, flushed at exit.
package metrics

import "sync/atomic"

// Labels are free-form metric dimensions (e.g. {"step": "fetch", "status": "ok"}).
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Flusher is implemented by backends that buffer observations.
type Flusher interface {
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}

// holder wraps the active backend so every Store into the atomic.Value uses
// one concrete type regardless of which Backend implementation is installed.
type holder struct {
	b Backend
}

var backend atomic.Value // of holder

func init() {
	backend.Store(holder{b: nopBackend{}})
}

func active() Backend {
	return backend.Load().(holder).b
}

// SetBackend installs b as the process-wide backend. Call once at startup,
// before the pipeline runs. A nil b restores the nop backend.
func SetBackend(b Backend) {
	if b == nil {
		b = nopBackend{}
	}
	backend.Store(holder{b: b})
}

// IncCounter adds delta to a counter on the active backend.
func IncCounter(name string, delta float64, labels Labels) {
	active().IncCounter(name, delta, labels)
}

// ObserveHistogram records a sample on the active backend.
func ObserveHistogram(name string, value float64, labels Labels) {
	active().ObserveHistogram(name, value, labels)
}

// Flush flushes the active backend if it buffers; otherwise it is a no-op.
func Flush() error {
	if f, ok := active().(Flusher); ok {
		return f.Flush()
	}
	return nil
}
