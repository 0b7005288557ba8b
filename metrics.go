package staticredirect

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records redirect and manifest activity. A nil *Metrics records
// nothing.
type Metrics struct {
	redirects       *prometheus.CounterVec
	loads           *prometheus.CounterVec
	rules           *prometheus.GaugeVec
	resolveDuration *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// means prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		redirects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "staticredirect",
				Name:      "redirects_total",
				Help:      "Total number of navigations answered with a redirect",
			},
			[]string{"scope", "code"},
		),
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "staticredirect",
				Name:      "manifest_loads_total",
				Help:      "Total number of manifest loads by outcome",
			},
			[]string{"scope", "outcome"},
		),
		rules: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "staticredirect",
				Name:      "rules",
				Help:      "Number of rules in the serving generation",
			},
			[]string{"scope"},
		),
		resolveDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "staticredirect",
				Name:      "resolve_duration_seconds",
				Help:      "Time spent matching a navigation against the rules",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01},
			},
			[]string{"scope"},
		),
	}
	reg.MustRegister(m.redirects, m.loads, m.rules, m.resolveDuration)
	return m
}

func (m *Metrics) observeLoad(scope string, result LoadResult) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !result.OK() {
		outcome = "failed"
	}
	m.loads.WithLabelValues(scope, outcome).Inc()
}

func (m *Metrics) setRules(scope string, n int) {
	if m == nil {
		return
	}
	m.rules.WithLabelValues(scope).Set(float64(n))
}

func (m *Metrics) observeRedirect(scope string, code int) {
	if m == nil {
		return
	}
	m.redirects.WithLabelValues(scope, strconv.Itoa(code)).Inc()
}

func (m *Metrics) observeResolve(scope string, dur time.Duration) {
	if m == nil {
		return
	}
	m.resolveDuration.WithLabelValues(scope).Observe(dur.Seconds())
}
