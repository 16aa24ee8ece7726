package telemetry

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	vmetrics "github.com/VictoriaMetrics/metrics"
)

// --------------------------------------------------------------------------
// Prometheus-format metrics
// --------------------------------------------------------------------------

var startTime = time.Now()

func init() {
	vmetrics.NewGauge(`ckv_uptime_seconds`, func() float64 {
		return time.Since(startTime).Seconds()
	})
}

// CountRequest increments the request counter for an operation and a
// status class ("2xx", "4xx", ...).
func CountRequest(op string, status int) {
	class := strconv.Itoa(status/100) + "xx"
	vmetrics.GetOrCreateCounter(
		fmt.Sprintf(`ckv_requests_total{op=%q,status=%q}`, op, class),
	).Inc()
}

// MetricsHandler exposes all registered metrics in Prometheus text format.
// Mount it with mux.Handle("GET /metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		vmetrics.WritePrometheus(w, true)
	})
}
