// Package metrics exposes Prometheus counters for the signaling layer.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Connections      prometheus.Gauge
	EventsTotal      *prometheus.CounterVec
	SignalsRelayed   *prometheus.CounterVec
	BroadcastDropped prometheus.Counter
	MeetingsStarted  prometheus.Counter
	MeetingsEnded    prometheus.Counter
}

// New registers the collectors on reg. A nil *Metrics is valid and records nothing.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_signal_connections",
			Help: "Current number of authenticated signaling connections",
		}),
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_signal_events_total",
			Help: "Inbound signaling events by type and outcome",
		}, []string{"type", "result"}),
		SignalsRelayed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "huddle_signals_relayed_total",
			Help: "Offers, answers and ICE candidates forwarded",
		}, []string{"type", "mode"}),
		BroadcastDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "huddle_broadcast_dropped_total",
			Help: "Frames dropped because a connection's send queue was full",
		}),
		MeetingsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "huddle_meetings_started_total",
			Help: "Meetings started by their host",
		}),
		MeetingsEnded: f.NewCounter(prometheus.CounterOpts{
			Name: "huddle_meetings_ended_total",
			Help: "Meetings ended explicitly or by the last participant leaving",
		}),
	}
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.Connections.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.Connections.Dec()
}

func (m *Metrics) RecordEvent(kind string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventsTotal.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) RecordRelay(kind string, targeted bool) {
	if m == nil {
		return
	}
	mode := "broadcast"
	if targeted {
		mode = "targeted"
	}
	m.SignalsRelayed.WithLabelValues(kind, mode).Inc()
}

func (m *Metrics) RecordDropped(n int) {
	if m == nil || n == 0 {
		return
	}
	m.BroadcastDropped.Add(float64(n))
}

func (m *Metrics) MeetingStarted() {
	if m == nil {
		return
	}
	m.MeetingsStarted.Inc()
}

func (m *Metrics) MeetingEnded() {
	if m == nil {
		return
	}
	m.MeetingsEnded.Inc()
}
