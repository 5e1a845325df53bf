package server

import (
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus metric descriptors for the dispatch server.
type Metrics struct {
	srv       *Server
	startTime time.Time

	dispatchesTotal    *prometheus.CounterVec
	dispatchDuration   prometheus.Histogram
	engineErrors       *prometheus.CounterVec
	playersConnected   prometheus.Gauge
	routinesActive     prometheus.Gauge
	commandsRegistered prometheus.Gauge
	uptimeSeconds      prometheus.Gauge
	goroutines         prometheus.Gauge
}

// NewMetrics creates and registers Prometheus metrics for the server.
func NewMetrics(srv *Server, startTime time.Time) *Metrics {
	m := &Metrics{
		srv:       srv,
		startTime: startTime,
		dispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "luamod_dispatches_total",
			Help: "Total dispatches since server start, by outcome.",
		}, []string{"outcome"}),
		dispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "luamod_dispatch_duration_seconds",
			Help:    "Time spent dispatching one command line.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		engineErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "luamod_engine_errors_total",
			Help: "Structured engine errors by code.",
		}, []string{"code"}),
		playersConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "luamod_players_connected",
			Help: "Number of currently connected players.",
		}),
		routinesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "luamod_routines_active",
			Help: "Number of queued routines.",
		}),
		commandsRegistered: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "luamod_commands_registered",
			Help: "Number of registered commands.",
		}),
		uptimeSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "luamod_uptime_seconds",
			Help: "Server uptime in seconds.",
		}),
		goroutines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "luamod_goroutines",
			Help: "Number of active goroutines.",
		}),
	}

	prometheus.MustRegister(
		m.dispatchesTotal,
		m.dispatchDuration,
		m.engineErrors,
		m.playersConnected,
		m.routinesActive,
		m.commandsRegistered,
		m.uptimeSeconds,
		m.goroutines,
	)

	return m
}

// ObserveDispatch records one finished dispatch.
func (m *Metrics) ObserveDispatch(outcome string, d time.Duration) {
	m.dispatchesTotal.WithLabelValues(outcome).Inc()
	m.dispatchDuration.Observe(d.Seconds())
}

// ObserveEngineError counts one structured engine error.
func (m *Metrics) ObserveEngineError(code string) {
	m.engineErrors.WithLabelValues(code).Inc()
}

// Update refreshes all gauge metrics from current server state.
func (m *Metrics) Update() {
	m.playersConnected.Set(float64(m.srv.Pool().Count()))
	m.routinesActive.Set(float64(m.srv.Scheduler().Count()))
	m.commandsRegistered.Set(float64(m.srv.Manager().Count()))
	m.uptimeSeconds.Set(time.Since(m.startTime).Seconds())
	m.goroutines.Set(float64(runtime.NumGoroutine()))
}

// Handler returns an http.Handler that updates metrics before serving them.
func (m *Metrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.Update()
		promhttp.Handler().ServeHTTP(w, r)
	})
}
