package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

var (
	Downloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "multiget",
			Name:      "downloads_total",
			Help:      "Downloads finished, labelled by result stage.",
		},
		[]string{"result"},
	)

	Segments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "multiget",
			Name:      "segments_total",
			Help:      "Segment fetches finished, labelled by result.",
		},
		[]string{"result"},
	)

	BytesReceived = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "multiget",
			Name:      "bytes_received_total",
			Help:      "Payload bytes received across all segment fetches.",
		},
	)

	SegmentLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "multiget",
			Name:      "segment_fetch_seconds",
			Help:      "Wall-clock duration of a single segment fetch.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	ActiveDownloads = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "multiget",
			Name:      "active_downloads",
			Help:      "Downloads currently fetching segments.",
		},
	)
)

// Register registers the multiget metrics into the default registry.
func Register() {
	prometheus.MustRegister(Downloads, Segments, BytesReceived, SegmentLatency, ActiveDownloads)
}

// NewRouter exposes /metrics and /healthz.
func NewRouter() *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	return r
}

// Serve registers the metrics and serves them on addr in the background.
// The returned server should be closed by the caller.
func Serve(addr string) *http.Server {
	Register()
	srv := &http.Server{Addr: addr, Handler: NewRouter()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Str("op", "metrics").Err(err).Msg("Metrics server stopped")
		}
	}()
	log.Debug().Str("op", "metrics").Str("addr", addr).Msg("Serving metrics")
	return srv
}
