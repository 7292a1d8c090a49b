// Package metrics exports rating activity to Prometheus from a store listener.
package metrics

import (
	"net/http"

	"elo-sync/internal/domain/rank"
	"elo-sync/internal/usecase/rating"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "elo"

type Recorder struct {
	registry *prometheus.Registry
	table    rank.Table

	changes *prometheus.CounterVec
	rating  prometheus.Gauge
	tier    *prometheus.GaugeVec
	clients prometheus.GaugeFunc
}

// New registers the rating collectors, plus the Go runtime ones, on a fresh
// registry. clients, when set, is sampled for the websocket client gauge.
func New(table rank.Table, clients func() int) *Recorder {
	reg := prometheus.NewRegistry()
	r := &Recorder{
		registry: reg,
		table:    table,
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_changes_total",
			Help:      "Rating change notifications by source.",
		}, []string{"source"}),
		rating: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rating",
			Help:      "Rating carried by the latest notification.",
		}),
		tier: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rank_tier",
			Help:      "1 for the tier of the latest rating, 0 for the others.",
		}, []string{"tier"}),
	}
	reg.MustRegister(r.changes, r.rating, r.tier)
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if clients != nil {
		r.clients = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Connected websocket clients.",
		}, func() float64 { return float64(clients()) })
		reg.MustRegister(r.clients)
	}
	for _, k := range table.Keys() {
		r.tier.WithLabelValues(k).Set(0)
	}
	return r
}

// Observe is a rating.Listener.
func (r *Recorder) Observe(c rating.Change) {
	r.changes.WithLabelValues(string(c.Source)).Inc()
	r.rating.Set(float64(c.Rating))
	current := r.table.Classify(c.Rating).Key
	for _, k := range r.table.Keys() {
		v := 0.0
		if k == current {
			v = 1
		}
		r.tier.WithLabelValues(k).Set(v)
	}
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
