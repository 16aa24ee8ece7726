package telemetry

import (
	"sort"
	"strings"
	"time"

	gometrics "github.com/rcrowley/go-metrics"
)

// --------------------------------------------------------------------------
// Performance Monitor
// --------------------------------------------------------------------------

// aggregateTimer is the registry name of the timer that spans all
// operations; per-operation timers and error counters hang off prefixed
// names.
const (
	aggregateTimer = "ops.all"
	opTimerPrefix  = "ops."
	errorPrefix    = "errors."
)

// PerfMonitor collects operation latencies and error counts. It is backed
// by go-metrics timers, which maintain exponentially-decaying samples, so
// percentiles reflect recent behavior without unbounded history.
//
// Thread-safety: All methods are safe for concurrent use.
type PerfMonitor struct {
	registry  gometrics.Registry
	startTime time.Time
}

// NewPerfMonitor creates an empty performance monitor.
func NewPerfMonitor() *PerfMonitor {
	m := &PerfMonitor{
		registry:  gometrics.NewRegistry(),
		startTime: time.Now(),
	}
	// register the aggregate timer eagerly so an untouched monitor still
	// reports a zeroed summary
	gometrics.GetOrRegisterTimer(aggregateTimer, m.registry)
	return m
}

// Observe records one completed operation.
func (m *PerfMonitor) Observe(op string, duration time.Duration, success bool) {
	gometrics.GetOrRegisterTimer(aggregateTimer, m.registry).Update(duration)
	gometrics.GetOrRegisterTimer(opTimerPrefix+op, m.registry).Update(duration)

	if !success {
		gometrics.GetOrRegisterCounter(errorPrefix+op, m.registry).Inc(1)
	}
}

// --------------------------------------------------------------------------
// Summaries
// --------------------------------------------------------------------------

// Summary is the payload of the performance endpoint.
type Summary struct {
	OperationsPerSecond float64          `json:"operations_per_second"`
	AvgLatencyMS        float64          `json:"avg_latency_ms"`
	P95LatencyMS        float64          `json:"p95_latency_ms"`
	P99LatencyMS        float64          `json:"p99_latency_ms"`
	ErrorRate           float64          `json:"error_rate"`
	TotalOperations     int64            `json:"total_operations"`
	Operations          map[string]int64 `json:"operations,omitempty"`
}

// Summary computes the aggregate performance snapshot.
func (m *PerfMonitor) Summary() Summary {
	all := gometrics.GetOrRegisterTimer(aggregateTimer, m.registry).Snapshot()

	total := all.Count()
	summary := Summary{
		TotalOperations: total,
		AvgLatencyMS:    all.Mean() / float64(time.Millisecond),
		P95LatencyMS:    all.Percentile(0.95) / float64(time.Millisecond),
		P99LatencyMS:    all.Percentile(0.99) / float64(time.Millisecond),
		Operations:      make(map[string]int64),
	}

	if uptime := time.Since(m.startTime).Seconds(); uptime > 0 {
		summary.OperationsPerSecond = float64(total) / uptime
	}

	var errors int64
	m.registry.Each(func(name string, metric interface{}) {
		switch {
		case name == aggregateTimer:
			// aggregated above
		case strings.HasPrefix(name, opTimerPrefix):
			if t, ok := metric.(gometrics.Timer); ok {
				summary.Operations[strings.TrimPrefix(name, opTimerPrefix)] = t.Count()
			}
		case strings.HasPrefix(name, errorPrefix):
			if c, ok := metric.(gometrics.Counter); ok {
				errors += c.Count()
			}
		}
	})

	if total > 0 {
		summary.ErrorRate = float64(errors) / float64(total)
	}
	return summary
}

// RecentErrors returns the error counts per operation; map iteration
// order is unspecified.
func (m *PerfMonitor) RecentErrors() map[string]int64 {
	out := make(map[string]int64)
	m.registry.Each(func(name string, metric interface{}) {
		if strings.HasPrefix(name, errorPrefix) {
			if c, ok := metric.(gometrics.Counter); ok {
				out[strings.TrimPrefix(name, errorPrefix)] = c.Count()
			}
		}
	})
	return out
}

// OperationNames returns the sorted names of all observed operations.
func (m *PerfMonitor) OperationNames() []string {
	var names []string
	m.registry.Each(func(name string, metric interface{}) {
		if name == aggregateTimer {
			return
		}
		if strings.HasPrefix(name, opTimerPrefix) {
			names = append(names, strings.TrimPrefix(name, opTimerPrefix))
		}
	})
	sort.Strings(names)
	return names
}
