// Package metrics exposes Prometheus collectors for the filings crawler.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	fetchTotal                 *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	indexEntriesTotal          prometheus.Counter
	documentsTotal             *prometheus.CounterVec
	transactionsExtracted      prometheus.Counter
	persistResultsTotal        *prometheus.CounterVec
	daysTotal                  *prometheus.CounterVec
	cursorTimestampSeconds     prometheus.Gauge
	activeWorkers              prometheus.Gauge
	rateLimitDelaysSeconds     prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgar_fetch_total",
				Help: "Total number of successful EDGAR fetches, labeled by kind (index, document).",
			},
			[]string{"kind"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgar_fetch_bytes_total",
				Help: "Total number of bytes fetched from EDGAR, labeled by kind.",
			},
			[]string{"kind"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edgar_fetch_duration_seconds",
				Help:    "Histogram of EDGAR fetch latencies, labeled by kind.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"kind"},
		)

		indexEntriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "edgar_index_entries_total",
				Help: "Total number of daily index entries parsed.",
			},
		)

		documentsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_documents_total",
				Help: "Total number of filing documents processed, labeled by status.",
			},
			[]string{"status"},
		)

		transactionsExtracted = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawler_transactions_extracted_total",
				Help: "Total number of non-derivative transactions extracted.",
			},
		)

		persistResultsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_persist_results_total",
				Help: "Total number of transactions handled by the persistence pipeline, labeled by result.",
			},
			[]string{"result"},
		)

		daysTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_days_total",
				Help: "Total number of scheduler steps, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		cursorTimestampSeconds = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_cursor_timestamp_seconds",
				Help: "Unix time of the day the crawl cursor points at.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Number of workers currently fetching a document.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of sub-batch pacing waits.",
				Buckets: []float64{0.01, 0.1, 0.25, 0.5, 1, 2, 5},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records a successful fetch of the given kind.
func ObserveFetch(kind string, duration time.Duration, bytesFetched int) {
	fetchTotal.WithLabelValues(kind).Inc()
	fetchDurationSeconds.WithLabelValues(kind).Observe(duration.Seconds())
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(kind).Add(float64(bytesFetched))
	}
}

// ObserveIndexEntries adds n parsed index entries.
func ObserveIndexEntries(n int) {
	indexEntriesTotal.Add(float64(n))
}

// ObserveDocument increments the document counter for the given status.
func ObserveDocument(status string) {
	documentsTotal.WithLabelValues(status).Inc()
}

// ObserveTransactions adds n extracted transactions.
func ObserveTransactions(n int) {
	transactionsExtracted.Add(float64(n))
}

// ObservePersist increments the persistence counter for result.
func ObservePersist(result string) {
	persistResultsTotal.WithLabelValues(result).Inc()
}

// ObserveDay increments the scheduler outcome counter.
func ObserveDay(outcome string) {
	daysTotal.WithLabelValues(outcome).Inc()
}

// SetCursor records the day the cursor points at.
func SetCursor(day time.Time) {
	cursorTimestampSeconds.Set(float64(day.Unix()))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a pacing wait.
func ObserveRateLimitDelay(duration time.Duration) {
	rateLimitDelaysSeconds.Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
