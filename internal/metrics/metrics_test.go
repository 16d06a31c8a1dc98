package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingBackend struct {
	counters   []string
	histograms []string
	flushErr   error
	flushes    int
}

func (r *recordingBackend) IncCounter(name string, _ float64, _ Labels) {
	r.counters = append(r.counters, name)
}

func (r *recordingBackend) ObserveHistogram(name string, _ float64, _ Labels) {
	r.histograms = append(r.histograms, name)
}

func (r *recordingBackend) Flush() error {
	r.flushes++
	return r.flushErr
}

func TestDefaultBackendIsNop(t *testing.T) {
	// Must not panic with no backend installed.
	IncCounter("etl_step_total", 1, Labels{"step": "fetch"})
	ObserveHistogram("etl_step_duration_seconds", 0.5, nil)
	require.NoError(t, Flush())
}

func TestSetBackendRoutesObservations(t *testing.T) {
	rb := &recordingBackend{}
	SetBackend(rb)
	t.Cleanup(func() { SetBackend(nil) })

	IncCounter("a", 1, nil)
	IncCounter("b", 2, Labels{"k": "v"})
	ObserveHistogram("c", 3, nil)

	require.Equal(t, []string{"a", "b"}, rb.counters)
	require.Equal(t, []string{"c"}, rb.histograms)
}

func TestFlushPropagatesBackendError(t *testing.T) {
	rb := &recordingBackend{flushErr: errors.New("submit failed")}
	SetBackend(rb)
	t.Cleanup(func() { SetBackend(nil) })

	require.Error(t, Flush())
	require.Equal(t, 1, rb.flushes)
}

// secondBackend is a distinct concrete type from recordingBackend so the test
// below exercises installing differently typed backends in sequence.
type secondBackend struct {
	counters int
}

func (s *secondBackend) IncCounter(string, float64, Labels)       { s.counters++ }
func (s *secondBackend) ObserveHistogram(string, float64, Labels) {}

func TestSetBackendAcceptsDifferentConcreteTypes(t *testing.T) {
	t.Cleanup(func() { SetBackend(nil) })

	// The default backend is a third concrete type; switching between
	// implementations must never panic.
	rb := &recordingBackend{}
	SetBackend(rb)
	IncCounter("a", 1, nil)

	sb := &secondBackend{}
	SetBackend(sb)
	IncCounter("b", 1, nil)

	require.Equal(t, []string{"a"}, rb.counters)
	require.Equal(t, 1, sb.counters)
}

func TestSetBackendNilRestoresNop(t *testing.T) {
	rb := &recordingBackend{}
	SetBackend(rb)
	SetBackend(nil)

	IncCounter("dropped", 1, nil)
	require.Empty(t, rb.counters)
}
