// Package obs exposes the pipeline's prometheus metrics. Registration
// happens once at package init against the default registry; cmd binaries
// mount Handler to serve it.
package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FetchErrors counts fetch failures after retries, per sensor and
	// endpoint.
	FetchErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "footfall_fetch_errors_total",
		Help: "Sensor fetches that failed after all retry attempts.",
	}, []string{"sensor", "endpoint"})

	// FutureDrops counts records discarded because their offset-corrected
	// timestamp was in the future. Clock drift is counted, not raised.
	FutureDrops = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "footfall_future_drops_total",
		Help: "Records dropped for carrying a future timestamp after offset correction.",
	}, []string{"sensor"})

	// RecordsCollected counts normalized records accepted into aggregation.
	RecordsCollected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "footfall_records_collected_total",
		Help: "Normalized records accepted into the aggregation engine.",
	}, []string{"sensor"})

	// Cycles counts completed collection cycles by outcome.
	Cycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "footfall_cycles_total",
		Help: "Completed collection cycles.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(FetchErrors, FutureDrops, RecordsCollected, Cycles)
}

// Handler serves the default registry. Every process that increments the
// counters above mounts this itself, so scraping never crosses a process
// boundary.
func Handler() http.Handler {
	return promhttp.Handler()
}
