package dlepmetrics_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	dlepmetrics "github.com/dlepradio/dlepd/internal/metrics"
)

func TestNewCollector(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := dlepmetrics.NewCollector(reg)

	if c.Peers == nil {
		t.Error("Peers is nil")
	}
	if c.Neighbors == nil {
		t.Error("Neighbors is nil")
	}
	if c.MessagesSent == nil {
		t.Error("MessagesSent is nil")
	}
	if c.MessagesReceived == nil {
		t.Error("MessagesReceived is nil")
	}
	if c.DecodeRejections == nil {
		t.Error("DecodeRejections is nil")
	}
	if c.MissedAcks == nil {
		t.Error("MissedAcks is nil")
	}
	if c.StateTransitions == nil {
		t.Error("StateTransitions is nil")
	}

	// Verify all metrics are registered by gathering them.
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}

	// No data yet, so families may be empty -- but registration must not panic.
	_ = families
}

func TestPeerAndNeighborGauges(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := dlepmetrics.NewCollector(reg)

	c.SetPeerCount(2)
	if val := gaugeValue(t, c.Peers); val != 2 {
		t.Errorf("Peers gauge = %v, want 2", val)
	}

	c.SetNeighborCount("1", 3)
	if val := gaugeVecValue(t, c.Neighbors, "1"); val != 3 {
		t.Errorf("Neighbors[1] gauge = %v, want 3", val)
	}

	c.SetNeighborCount("1", 1)
	if val := gaugeVecValue(t, c.Neighbors, "1"); val != 1 {
		t.Errorf("Neighbors[1] gauge after update = %v, want 1", val)
	}
}

func TestMessageCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := dlepmetrics.NewCollector(reg)

	c.IncMessagesSent("peer-heartbeat")
	c.IncMessagesSent("peer-heartbeat")
	c.IncMessagesSent("peer-heartbeat")

	if val := counterVecValue(t, c.MessagesSent, "peer-heartbeat"); val != 3 {
		t.Errorf("MessagesSent[peer-heartbeat] = %v, want 3", val)
	}

	c.IncMessagesReceived("neighbor-up-response")
	c.IncMessagesReceived("neighbor-up-response")

	if val := counterVecValue(t, c.MessagesReceived, "neighbor-up-response"); val != 2 {
		t.Errorf("MessagesReceived[neighbor-up-response] = %v, want 2", val)
	}
}

func TestDecodeRejectionAndMissedAckCounters(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := dlepmetrics.NewCollector(reg)

	c.IncDecodeRejections("short-packet")

	if val := counterVecValue(t, c.DecodeRejections, "short-packet"); val != 1 {
		t.Errorf("DecodeRejections[short-packet] = %v, want 1", val)
	}

	c.IncMissedAcks("term-ack")
	c.IncMissedAcks("term-ack")

	if val := counterVecValue(t, c.MissedAcks, "term-ack"); val != 2 {
		t.Errorf("MissedAcks[term-ack] = %v, want 2", val)
	}
}

func TestStateTransition(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	c := dlepmetrics.NewCollector(reg)

	c.RecordStateTransition("1", "", "discovery", "in-session")

	val := counterVecValue(t, c.StateTransitions, "1", "", "discovery", "in-session")
	if val != 1 {
		t.Errorf("StateTransitions(discovery->in-session) = %v, want 1", val)
	}

	c.RecordStateTransition("1", "02:00:00:00:00:01", "initializing", "up")

	val = counterVecValue(t, c.StateTransitions, "1", "02:00:00:00:00:01", "initializing", "up")
	if val != 1 {
		t.Errorf("StateTransitions(initializing->up) = %v, want 1", val)
	}

	// Record another peer-level transition -- counter should be 2.
	c.RecordStateTransition("1", "", "discovery", "in-session")

	val = counterVecValue(t, c.StateTransitions, "1", "", "discovery", "in-session")
	if val != 2 {
		t.Errorf("StateTransitions(discovery->in-session) = %v, want 2", val)
	}
}

// -------------------------------------------------------------------------
// Helpers
// -------------------------------------------------------------------------

// gaugeValue reads the current value of a bare Gauge.
func gaugeValue(t *testing.T, g prometheus.Gauge) float64 {
	t.Helper()

	m := &dto.Metric{}
	if err := g.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetGauge().GetValue()
}

// gaugeVecValue reads the current value of a GaugeVec with the given labels.
func gaugeVecValue(t *testing.T, vec *prometheus.GaugeVec, labels ...string) float64 {
	t.Helper()

	gauge, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := gauge.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetGauge().GetValue()
}

// counterVecValue reads the current value of a CounterVec with the given labels.
func counterVecValue(t *testing.T, vec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()

	counter, err := vec.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("GetMetricWithLabelValues(%v): %v", labels, err)
	}

	m := &dto.Metric{}
	if err := counter.Write(m); err != nil {
		t.Fatalf("Write metric: %v", err)
	}

	return m.GetCounter().GetValue()
}
