package metrics

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes the daemon's operational metrics in Prometheus
// format. Metrics live in a dedicated registry so tests can gather them
// without touching the global one.
type Collector struct {
	registry *prometheus.Registry

	reloadDuration prometheus.Histogram
	reloadFailures prometheus.Counter
	positionCount  prometheus.Gauge
	stakedCount    prometheus.Gauge
	ledgerEvents   *prometheus.CounterVec
	rpcErrors      prometheus.Counter
	claimableWei   prometheus.Gauge
	goroutineCount prometheus.Gauge
	uptimeSeconds  prometheus.Gauge

	startTime time.Time
}

// NewCollector creates a collector with all metrics registered.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	reloadDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stakemate",
		Name:      "reload_duration_seconds",
		Help:      "Full position reload latency.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	})

	reloadFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stakemate",
		Name:      "reload_failures_total",
		Help:      "Total number of failed position reloads.",
	})

	positionCount := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakemate",
		Name:      "position_count",
		Help:      "Number of positions in the published collection.",
	})

	stakedCount := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakemate",
		Name:      "staked_position_count",
		Help:      "Number of published positions currently staked.",
	})

	ledgerEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stakemate",
		Name:      "ledger_events_total",
		Help:      "Ledger events processed by type.",
	}, []string{"event"})

	rpcErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stakemate",
		Name:      "rpc_errors_total",
		Help:      "Total number of failed chain RPC operations.",
	})

	claimableWei := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakemate",
		Name:      "claimable_reward_wei",
		Help:      "Claimable reward balance in token base units.",
	})

	goroutineCount := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakemate",
		Name:      "goroutine_count",
		Help:      "Number of goroutines.",
	})

	uptimeSeconds := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stakemate",
		Name:      "uptime_seconds",
		Help:      "Time since the daemon started in seconds.",
	})

	reg.MustRegister(reloadDuration)
	reg.MustRegister(reloadFailures)
	reg.MustRegister(positionCount)
	reg.MustRegister(stakedCount)
	reg.MustRegister(ledgerEvents)
	reg.MustRegister(rpcErrors)
	reg.MustRegister(claimableWei)
	reg.MustRegister(goroutineCount)
	reg.MustRegister(uptimeSeconds)

	return &Collector{
		registry:       reg,
		reloadDuration: reloadDuration,
		reloadFailures: reloadFailures,
		positionCount:  positionCount,
		stakedCount:    stakedCount,
		ledgerEvents:   ledgerEvents,
		rpcErrors:      rpcErrors,
		claimableWei:   claimableWei,
		goroutineCount: goroutineCount,
		uptimeSeconds:  uptimeSeconds,
		startTime:      time.Now(),
	}
}

// Registry returns the collector's Prometheus registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveReload records one full reload outcome.
func (c *Collector) ObserveReload(d time.Duration, err error) {
	if err != nil {
		c.reloadFailures.Inc()
		return
	}
	c.reloadDuration.Observe(d.Seconds())
}

// SetPositions records the size and staked share of the published
// collection.
func (c *Collector) SetPositions(total, staked int) {
	c.positionCount.Set(float64(total))
	c.stakedCount.Set(float64(staked))
}

// RecordLedgerEvent counts one processed ledger event.
func (c *Collector) RecordLedgerEvent(event string) {
	c.ledgerEvents.WithLabelValues(event).Inc()
}

// RecordRPCError counts one failed chain operation.
func (c *Collector) RecordRPCError() {
	c.rpcErrors.Inc()
}

// SetClaimable records the claimable balance. Precision loss past
// float64 is acceptable for a gauge.
func (c *Collector) SetClaimable(wei float64) {
	c.claimableWei.Set(wei)
}

// Handler returns an HTTP handler serving the exposition format. Runtime
// gauges are refreshed on every scrape.
func (c *Collector) Handler() http.Handler {
	inner := promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.goroutineCount.Set(float64(runtime.NumGoroutine()))
		c.uptimeSeconds.Set(time.Since(c.startTime).Seconds())
		inner.ServeHTTP(w, r)
	})
}
