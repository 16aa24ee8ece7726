// Package telemetry provides the observability surface of the cKV server.
//
// Two complementary mechanisms live here:
//
//   - PerfMonitor: per-operation latency timers and error counters backing
//     the performance endpoint. Timers keep exponentially-decaying samples,
//     so the reported percentiles track recent behavior with bounded
//     memory.
//
//   - Prometheus-format counters: request totals labeled by operation and
//     status class, plus a process uptime gauge, exposed on the metrics
//     endpoint in Prometheus text format.
package telemetry
