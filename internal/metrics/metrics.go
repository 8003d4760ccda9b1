// Package metrics exposes the bot's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "canada28"

// Metrics holds the collectors and the registry they are registered in.
type Metrics struct {
	registry *prometheus.Registry

	// feed fetches by result (ok, fail)
	FeedFetches *prometheus.CounterVec
	// bets by strategy and result (ok, fail, skipped)
	Bets *prometheus.CounterVec
	// settlements by strategy and result (win, loss)
	Settlements *prometheus.CounterVec

	CurrentBet    *prometheus.GaugeVec
	WinStreak     *prometheus.GaugeVec
	EngineRunning prometheus.Gauge
}

// New creates the collectors in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		FeedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_fetches_total",
			Help:      "Result feed fetch attempts",
		}, []string{"result"}),
		Bets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bets_total",
			Help:      "Bet dispatch attempts",
		}, []string{"strategy", "result"}),
		Settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settled bets",
		}, []string{"strategy", "result"}),
		CurrentBet: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_bet",
			Help:      "Next bet amount per strategy",
		}, []string{"strategy"}),
		WinStreak: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "win_streak",
			Help:      "Consecutive wins per strategy",
		}, []string{"strategy"}),
		EngineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "engine_running",
			Help:      "1 while the betting loop is running",
		}),
	}
	m.registry.MustRegister(
		m.FeedFetches,
		m.Bets,
		m.Settlements,
		m.CurrentBet,
		m.WinStreak,
		m.EngineRunning,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) FeedFetch(ok bool) {
	if ok {
		m.FeedFetches.WithLabelValues("ok").Inc()
	} else {
		m.FeedFetches.WithLabelValues("fail").Inc()
	}
}

// Bet counts a dispatch attempt. result is one of ok, fail, skipped.
func (m *Metrics) Bet(strategy, result string) {
	m.Bets.WithLabelValues(strategy, result).Inc()
}

func (m *Metrics) Settlement(strategy string, win bool) {
	result := "loss"
	if win {
		result = "win"
	}
	m.Settlements.WithLabelValues(strategy, result).Inc()
}

// SetStrategy publishes a strategy's progression.
func (m *Metrics) SetStrategy(strategy string, currentBet, winStreak int) {
	m.CurrentBet.WithLabelValues(strategy).Set(float64(currentBet))
	m.WinStreak.WithLabelValues(strategy).Set(float64(winStreak))
}

func (m *Metrics) SetRunning(running bool) {
	if running {
		m.EngineRunning.Set(1)
	} else {
		m.EngineRunning.Set(0)
	}
}
