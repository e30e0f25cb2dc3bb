package dlep

// StateChange describes one FSM transition, emitted for the peer FSM or
// a neighbor FSM. External consumers (the console, the metrics
// collector) get one synchronous callback per transition from inside
// the core loop, so they must never block.
type StateChange struct {
	PeerID      uint32
	NeighborMAC string // empty for a peer-level transition
	From        string
	To          string
	Reason      string
}

// StateCallback is invoked for each StateChange from inside the core
// loop (the notify argument to NewCore). It must not block; long
// operations should hand off to their own goroutine.
type StateCallback func(change StateChange)
