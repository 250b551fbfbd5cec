// Package metrics holds the Prometheus collectors exported by the service and
// the echo handler that serves them.
package metrics

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pankbase"

var (
	// httpRequests counts served requests.
	// Labels: method, route (echo path template), code
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status code",
	}, []string{"method", "route", "code"})

	// httpLatency measures handler latency.
	// Labels: method, route
	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	}, []string{"method", "route"})

	// datasetReloads counts load and reload attempts.
	// Labels: status (success, error)
	datasetReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "dataset",
		Name:      "reloads_total",
		Help:      "Dataset snapshot builds by outcome",
	}, []string{"status"})

	datasetLoadDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "dataset",
		Name:      "load_duration_seconds",
		Help:      "Time to read and join all dataset sources",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})

	// datasetRows reports the size of the published snapshot.
	// Labels: table (donors, biosamples, traits, timeseries)
	datasetRows = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dataset",
		Name:      "rows",
		Help:      "Rows per table in the published snapshot",
	}, []string{"table"})

	datasetVersion = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "dataset",
		Name:      "snapshot_version",
		Help:      "Version counter of the published snapshot",
	})

	// associationPairs counts evaluated (outcome, variable) pairs.
	// Labels: method, status (ok, failed)
	associationPairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "association",
		Name:      "pairs_total",
		Help:      "Association pairs evaluated by method and status",
	}, []string{"method", "status"})

	// associationDuration measures a whole association run.
	// Labels: method
	associationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "association",
		Name:      "run_duration_seconds",
		Help:      "Association run latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
	}, []string{"method"})

	// externalFetches counts calls to registered external sources.
	// Labels: source, status (ok, error)
	externalFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "integration",
		Name:      "fetches_total",
		Help:      "External source fetches by source and outcome",
	}, []string{"source", "status"})

	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter",
	})
)

// Handler serves the Prometheus exposition format.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, route string, code int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	httpLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveReload records a snapshot build attempt.
func ObserveReload(err error, elapsed time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	datasetReloads.WithLabelValues(status).Inc()
	datasetLoadDuration.Observe(elapsed.Seconds())
}

// SetSnapshot publishes the size and version of the current snapshot.
func SetSnapshot(version uint64, donors, biosamples, traits, series int) {
	datasetVersion.Set(float64(version))
	datasetRows.WithLabelValues("donors").Set(float64(donors))
	datasetRows.WithLabelValues("biosamples").Set(float64(biosamples))
	datasetRows.WithLabelValues("traits").Set(float64(traits))
	datasetRows.WithLabelValues("timeseries").Set(float64(series))
}

// ObserveAssociation records a finished association run.
func ObserveAssociation(method string, ok, failed int, elapsed time.Duration) {
	associationPairs.WithLabelValues(method, "ok").Add(float64(ok))
	associationPairs.WithLabelValues(method, "failed").Add(float64(failed))
	associationDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveFetch records one external source fetch.
func ObserveFetch(source string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	externalFetches.WithLabelValues(source, status).Inc()
}

// IncRateLimited records a request rejected by the rate limiter.
func IncRateLimited() {
	rateLimited.Inc()
}
