// Package metrics exposes the Prometheus collectors for the restaurant API.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SplitCommits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_split_commits_total",
		Help: "Orders created by splitting a bill.",
	})

	SplitLinesMoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_split_lines_moved_total",
		Help: "Order lines carried into split orders.",
	})

	SplitSessionsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pos_split_sessions_open",
		Help: "Split-bill screens currently open.",
	})

	KitchenTicketsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_kitchen_tickets_suppressed_total",
		Help: "Orders whose pending kitchen changes were marked sent by a split.",
	})

	KitchenTicketsSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pos_kitchen_tickets_sent_total",
		Help: "Non-empty kitchen tickets sent.",
	})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pos_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets websocket upgrades pass through the recorder.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

// Flush passes through to streaming handlers.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Instrument records request latency labelled with the chi route pattern,
// so IDs in the path don't explode cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		httpDuration.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Observe(time.Since(start).Seconds())
	})
}
