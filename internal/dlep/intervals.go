package dlep

import "time"

// TimerBounds is a {min,max,default} triple for one clamped configuration
// value (spec §6). DLEP has no RFC 7419-style "common interval"
// negotiation — each timer just clamps independently against its own
// bounds.
type TimerBounds struct {
	Min, Max, Default time.Duration
}

// Clamp returns d if it falls within [b.Min, b.Max], otherwise the
// nearest bound. A zero duration passes through only where b.Min is 0
// (only the neighbor activity timer's bounds do, spec §4.5: "if
// activity-duration > 0").
func (b TimerBounds) Clamp(d time.Duration) time.Duration {
	switch {
	case d < b.Min:
		return b.Min
	case d > b.Max:
		return b.Max
	default:
		return d
	}
}

// ThresholdBounds is the integer analogue of TimerBounds for missed-ack
// threshold counts.
type ThresholdBounds struct {
	Min, Max, Default int
}

// Clamp returns n if it falls within [b.Min, b.Max], otherwise the
// nearest bound.
func (b ThresholdBounds) Clamp(n int) int {
	switch {
	case n < b.Min:
		return b.Min
	case n > b.Max:
		return b.Max
	default:
		return n
	}
}

// Timer and threshold bounds tables, spec §6's exact table.
//
//nolint:gochecknoglobals // static protocol configuration tables
var (
	PeerOfferInterval            = TimerBounds{1 * time.Second, 60 * time.Second, 5 * time.Second}
	PeerHeartbeatInterval        = TimerBounds{1 * time.Second, 60 * time.Second, 5 * time.Second}
	PeerHeartbeatMissedThreshold = ThresholdBounds{2, 8, 3}
	PeerTermAckTimeout           = TimerBounds{100 * time.Millisecond, 5 * time.Second, 1 * time.Second}
	PeerTermMissedThreshold      = ThresholdBounds{1, 5, 3}
	NeighborUpAckTimeout         = TimerBounds{100 * time.Millisecond, 40 * time.Second, 1 * time.Second}
	NeighborUpMissedThreshold    = ThresholdBounds{1, 5, 3}
	NeighborUpdateInterval       = TimerBounds{100 * time.Millisecond, 5 * time.Second, 400 * time.Millisecond}
	// NeighborActivityTimer: the bounds table (spec §9) is internally
	// inconsistent (range 0-5s, default 10s). Resolved in DESIGN.md: the
	// default is corrected to the table's stated maximum (5s) rather than
	// silently honoring an out-of-range default; 0 still means disabled.
	NeighborActivityTimer      = TimerBounds{0, 5 * time.Second, 5 * time.Second}
	NeighborDownAckTimeout     = TimerBounds{100 * time.Millisecond, 5 * time.Second, 1 * time.Second}
	NeighborDownMissedThreshold = ThresholdBounds{1, 5, 3}
)
