// Package metrics instruments view computation call volume using
// go-metrics: per-operation counters plus a timer around each
// GetLocalClusterView call.
package metrics

import (
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// Registry wraps a private go-metrics registry with the handful of
// counters and one timer this core needs. It is safe for concurrent use,
// per go-metrics' own guarantees.
type Registry struct {
	reg gometrics.Registry

	calls       gometrics.Counter
	successes   gometrics.Counter
	failuresByK gometrics.Registry // sub-registry of per-kind counters
	suppressed  gometrics.Counter
	callTimer   gometrics.Timer
}

// NewRegistry builds a fresh, independent metrics registry.
func NewRegistry() *Registry {
	r := gometrics.NewRegistry()
	return &Registry{
		reg:         r,
		calls:       gometrics.GetOrRegisterCounter("clusterview.calls", r),
		successes:   gometrics.GetOrRegisterCounter("clusterview.calls.success", r),
		failuresByK: gometrics.NewPrefixedChildRegistry(r, "clusterview.calls.failure."),
		suppressed:  gometrics.GetOrRegisterCounter("clusterview.members.suppressed", r),
		callTimer:   gometrics.GetOrRegisterTimer("clusterview.calls.duration", r),
	}
}

// CallStarted marks the beginning of a GetLocalClusterView call; the
// returned stop function should be deferred to record its duration.
func (r *Registry) CallStarted() func() {
	r.calls.Inc(1)
	start := time.Now()
	return func() { r.callTimer.UpdateSince(start) }
}

// Underlying exposes the wrapped go-metrics registry so callers can plug
// it into a larger reporting pipeline (e.g. graphite/statsd exporters)
// without this package depending on any specific exporter.
func (r *Registry) Underlying() gometrics.Registry { return r.reg }

// Succeeded records a successful call.
func (r *Registry) Succeeded() { r.successes.Inc(1) }

// Failed records a failed call, tagged by ErrorKind string.
func (r *Registry) Failed(kind string) {
	gometrics.GetOrRegisterCounter(kind, r.failuresByK).Inc(1)
}

// Suppressed records how many members were suppressed in a build.
func (r *Registry) Suppressed(n int) {
	if n <= 0 {
		return
	}
	r.suppressed.Inc(int64(n))
}
