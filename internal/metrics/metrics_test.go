package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsRecord(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	m.RecordEvent("join-meeting", nil)
	m.RecordEvent("join-meeting", errors.New("boom"))
	m.RecordRelay("offer", true)
	m.RecordDropped(3)

	if got := testutil.ToFloat64(m.Connections); got != 1 {
		t.Fatalf("connections = %v", got)
	}
	if got := testutil.ToFloat64(m.EventsTotal.WithLabelValues("join-meeting", "error")); got != 1 {
		t.Fatalf("error events = %v", got)
	}
	if got := testutil.ToFloat64(m.SignalsRelayed.WithLabelValues("offer", "targeted")); got != 1 {
		t.Fatalf("relayed = %v", got)
	}
	if got := testutil.ToFloat64(m.BroadcastDropped); got != 3 {
		t.Fatalf("dropped = %v", got)
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.ConnectionOpened()
	m.RecordEvent("x", nil)
	m.RecordRelay("offer", false)
	m.MeetingEnded()
}
