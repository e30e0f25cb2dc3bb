// Package dlepmetrics exposes DLEP daemon state as Prometheus metrics.
package dlepmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// -------------------------------------------------------------------------
// Prometheus Metric Constants
// -------------------------------------------------------------------------

const (
	namespace = "dlepd"
	subsystem = "dlep"
)

// Label names for DLEP metrics.
const (
	labelPeerID     = "peer_id"
	labelNeighbor   = "neighbor_mac"
	labelFromState  = "from_state"
	labelToState    = "to_state"
	labelMessage    = "message"
	labelRejectKind = "kind"
	labelTimeout    = "class"
)

// -------------------------------------------------------------------------
// Collector — Prometheus DLEP Metrics
// -------------------------------------------------------------------------

// Collector holds all DLEP Prometheus metrics.
//
//   - Peers/Neighbors gauges track the currently live table sizes.
//   - MessagesSent/MessagesReceived counters track wire traffic per
//     message code.
//   - DecodeRejections counts malformed signals/messages per
//     internal/wire.DecodeError kind.
//   - MissedAcks counts retransmit-threshold timeouts per
//     internal/dlep.TimeoutClass.
//   - StateTransitions records every peer and neighbor FSM transition.
type Collector struct {
	// Peers tracks the number of peer sessions currently tracked by Core.
	Peers prometheus.Gauge

	// Neighbors tracks the number of neighbor entries across all peers.
	Neighbors *prometheus.GaugeVec

	// MessagesSent counts DLEP messages transmitted, by message name.
	MessagesSent *prometheus.CounterVec

	// MessagesReceived counts DLEP messages received, by message name.
	MessagesReceived *prometheus.CounterVec

	// DecodeRejections counts signals/messages that failed to decode,
	// by internal/wire.DecodeError kind.
	DecodeRejections *prometheus.CounterVec

	// MissedAcks counts retransmit-threshold timeouts, by
	// internal/dlep.TimeoutClass.
	MissedAcks *prometheus.CounterVec

	// StateTransitions counts peer and neighbor FSM state transitions.
	StateTransitions *prometheus.CounterVec
}

// NewCollector creates a Collector with all DLEP metrics registered
// against the provided prometheus.Registerer. If reg is nil,
// prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := newMetrics()

	reg.MustRegister(
		c.Peers,
		c.Neighbors,
		c.MessagesSent,
		c.MessagesReceived,
		c.DecodeRejections,
		c.MissedAcks,
		c.StateTransitions,
	)

	return c
}

// newMetrics creates all Prometheus metric vectors without registering them.
func newMetrics() *Collector {
	transitionLabels := []string{labelPeerID, labelNeighbor, labelFromState, labelToState}

	return &Collector{
		Peers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "peers",
			Help:      "Number of peer sessions currently tracked.",
		}),

		Neighbors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "neighbors",
			Help:      "Number of neighbor entries, labeled by owning peer.",
		}, []string{labelPeerID}),

		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_sent_total",
			Help:      "Total DLEP messages transmitted, by message type.",
		}, []string{labelMessage}),

		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_received_total",
			Help:      "Total DLEP messages received, by message type.",
		}, []string{labelMessage}),

		DecodeRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decode_rejections_total",
			Help:      "Total signals/messages rejected at decode, by failure kind.",
		}, []string{labelRejectKind}),

		MissedAcks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "missed_acks_total",
			Help:      "Total retransmit-threshold timeouts, by timeout class.",
		}, []string{labelTimeout}),

		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "state_transitions_total",
			Help:      "Total peer and neighbor FSM state transitions.",
		}, transitionLabels),
	}
}

// -------------------------------------------------------------------------
// Peer / Neighbor table size
// -------------------------------------------------------------------------

// SetPeerCount sets the current peer-table gauge to n.
func (c *Collector) SetPeerCount(n int) {
	c.Peers.Set(float64(n))
}

// SetNeighborCount sets the neighbor-count gauge for one peer.
func (c *Collector) SetNeighborCount(peerID string, n int) {
	c.Neighbors.WithLabelValues(peerID).Set(float64(n))
}

// -------------------------------------------------------------------------
// Message counters
// -------------------------------------------------------------------------

// IncMessagesSent increments the sent-message counter for one message type.
func (c *Collector) IncMessagesSent(message string) {
	c.MessagesSent.WithLabelValues(message).Inc()
}

// IncMessagesReceived increments the received-message counter for one
// message type.
func (c *Collector) IncMessagesReceived(message string) {
	c.MessagesReceived.WithLabelValues(message).Inc()
}

// IncDecodeRejections increments the decode-rejection counter for one
// failure kind.
func (c *Collector) IncDecodeRejections(kind string) {
	c.DecodeRejections.WithLabelValues(kind).Inc()
}

// IncMissedAcks increments the missed-ack counter for one timeout class.
func (c *Collector) IncMissedAcks(class string) {
	c.MissedAcks.WithLabelValues(class).Inc()
}

// -------------------------------------------------------------------------
// State Transitions
// -------------------------------------------------------------------------

// RecordStateTransition increments the state-transition counter. neighbor
// is empty for a peer-level transition (spec §5's StateChange shape).
func (c *Collector) RecordStateTransition(peerID, neighbor, from, to string) {
	c.StateTransitions.WithLabelValues(peerID, neighbor, from, to).Inc()
}
