// Package metrics records poll cycle, extraction and delivery metrics and
// serves them for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	twerrors "tweetwatch/pkg/errors"
)

const namespace = "tweetwatch"

// Metrics is the set of collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	cycles          *prometheus.CounterVec
	cycleDuration   prometheus.Histogram
	ticksSkipped    prometheus.Counter
	fetches         *prometheus.CounterVec
	postsExtracted  *prometheus.CounterVec
	newPosts        *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	trackedAccounts prometheus.Gauge
	seenPosts       prometheus.Gauge
}

// New creates the collectors on a private registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.cycles = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Poll cycles by outcome",
		},
		[]string{"outcome"}, // "ok", "error", "fatal"
	)
	m.cycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of poll cycles in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10),
		},
	)
	m.ticksSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_skipped_total",
			Help:      "Ticks skipped because a cycle was still running",
		},
	)
	m.fetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Page fetches by result",
		},
		[]string{"result"}, // "ok", "timeout", "error"
	)
	m.postsExtracted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "posts_extracted_total",
			Help:      "Posts read from fetched pages by extraction strategy",
		},
		[]string{"strategy"},
	)
	m.newPosts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "new_posts_total",
			Help:      "New posts detected per tracked account",
		},
		[]string{"account"},
	)
	m.deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notification deliveries by sink and result",
		},
		[]string{"sink", "result"},
	)
	m.trackedAccounts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracked_accounts",
			Help:      "Accounts currently tracked and not disabled",
		},
	)
	m.seenPosts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "seen_posts",
			Help:      "Post ids remembered since start",
		},
	)

	m.registry.MustRegister(
		m.cycles, m.cycleDuration, m.ticksSkipped, m.fetches, m.postsExtracted,
		m.newPosts, m.deliveries, m.trackedAccounts, m.seenPosts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// CycleFinished records one cycle.
func (m *Metrics) CycleFinished(d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	switch {
	case twerrors.IsFatal(err):
		outcome = "fatal"
	case err != nil:
		outcome = "error"
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.cycleDuration.Observe(d.Seconds())
}

func (m *Metrics) TickSkipped() {
	if m == nil {
		return
	}
	m.ticksSkipped.Inc()
}

// Fetched records one navigation.
func (m *Metrics) Fetched(timedOut bool, err error) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case timedOut:
		result = "timeout"
	}
	m.fetches.WithLabelValues(result).Inc()
}

func (m *Metrics) PostsExtracted(strategy string, n int) {
	if m == nil {
		return
	}
	m.postsExtracted.WithLabelValues(strategy).Add(float64(n))
}

func (m *Metrics) NewPost(account string) {
	if m == nil {
		return
	}
	m.newPosts.WithLabelValues(account).Inc()
}

// Delivered records a sink outcome. dropped marks a delivery that was
// never attempted.
func (m *Metrics) Delivered(sink string, dropped bool, err error) {
	if m == nil {
		return
	}
	result := "ok"
	switch {
	case dropped:
		result = "dropped"
	case err != nil:
		result = "error"
	}
	m.deliveries.WithLabelValues(sink, result).Inc()
}

func (m *Metrics) SetTrackedAccounts(n int) {
	if m == nil {
		return
	}
	m.trackedAccounts.Set(float64(n))
}

func (m *Metrics) SetSeenPosts(n int) {
	if m == nil {
		return
	}
	m.seenPosts.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Serve exposes /metrics on addr until ctx ends.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
