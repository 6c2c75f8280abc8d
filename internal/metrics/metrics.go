package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"hybrid_copilot/internal/logger"
	"hybrid_copilot/pkg"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "copilot"

// Recorder collects pipeline metrics. A nil Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry

	nodeTotal    *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
	runTotal     *prometheus.CounterVec
	runDuration  prometheus.Histogram
	runAttempts  prometheus.Histogram
	degraded     prometheus.Counter
}

// NewRecorder registers the pipeline metrics on a fresh registry
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,

		// Labels: node, status (ok, error)
		nodeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "executions_total",
			Help:      "Total pipeline node executions",
		}, []string{"node", "status"}),

		nodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "node",
			Name:      "duration_seconds",
			Help:      "Pipeline node latency in seconds",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"node"}),

		// Labels: mode (rag, sql, hybrid), status (ok, error)
		runTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "total",
			Help:      "Total question runs",
		}, []string{"mode", "status"}),

		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "End to end run latency in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),

		runAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "query_attempts",
			Help:      "Query executions per run",
			Buckets:   []float64{0, 1, 2},
		}),

		degraded: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "batch",
			Name:      "degraded_total",
			Help:      "Batch records replaced by a degraded result",
		}),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveNode records one node execution
func (r *Recorder) ObserveNode(node string, seconds float64, err error) {
	if r == nil {
		return
	}
	r.nodeTotal.WithLabelValues(node, status(err)).Inc()
	r.nodeDuration.WithLabelValues(node).Observe(seconds)
}

// ObserveRun records one finished run
func (r *Recorder) ObserveRun(mode pkg.Mode, attempts int, seconds float64, err error) {
	if r == nil {
		return
	}
	label := string(mode)
	if label == "" {
		label = "unknown"
	}
	r.runTotal.WithLabelValues(label, status(err)).Inc()
	r.runDuration.Observe(seconds)
	r.runAttempts.Observe(float64(attempts))
}

// ObserveDegraded counts a batch record that failed to process
func (r *Recorder) ObserveDegraded() {
	if r == nil {
		return
	}
	r.degraded.Inc()
}

// Handler exposes the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", addr).Msg("Serving metrics")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
