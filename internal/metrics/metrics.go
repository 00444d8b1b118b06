// Package metrics provides Prometheus instrumentation for the token engine.
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
	// InstructionsTotal counts executed instructions by kind and result.
	InstructionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_engine_instructions_total",
		Help: "Total number of instructions executed",
	}, []string{"instruction", "result"})

	// InstructionLatency tracks execution latency including the store commit.
	InstructionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "token_engine_instruction_latency_seconds",
		Help:    "Instruction execution latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"instruction"})

	// TaxCollected is the cumulative tax routed to each pool, in base units.
	TaxCollected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_engine_tax_collected_total",
		Help: "Cumulative transfer tax routed to each pool",
	}, []string{"pool"})

	// TransferVolume is the cumulative gross amount of taxed transfers.
	TransferVolume = promauto.NewCounter(prometheus.CounterOpts{
		Name: "token_engine_transfer_volume_total",
		Help: "Cumulative gross transfer volume",
	})

	// ReflectionPaid is the cumulative reflection reward paid out.
	ReflectionPaid = promauto.NewCounter(prometheus.CounterOpts{
		Name: "token_engine_reflection_paid_total",
		Help: "Cumulative reflection rewards paid",
	})

	// TokensStaked is the cumulative amount moved into the staking pool.
	TokensStaked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "token_engine_staked_total",
		Help: "Cumulative tokens staked",
	})

	// LotteryDraws counts completed lottery draws.
	LotteryDraws = promauto.NewCounter(prometheus.CounterOpts{
		Name: "token_engine_lottery_draws_total",
		Help: "Completed lottery draws",
	})

	// RejectedTransactions counts transactions refused before execution.
	RejectedTransactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_engine_rejected_transactions_total",
		Help: "Transactions rejected before execution",
	}, []string{"reason"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "token_engine_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "token_engine_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and path.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "token_engine_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack is required for WebSocket upgrades through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	return h.Hijack()
}
