// Package timerwheel implements a single-threaded, hashed-bucket timer
// scheduler (spec §4.1). It is driven by one goroutine ticking at a fixed
// granularity; every other operation — Prepare, Start, Stop, IsRunning —
// is meant to be called from that same goroutine (the DLEP core loop),
// so the wheel itself takes no internal lock.
//
// Grounded on an idempotent-stop / restart-cancels-first timer idiom
// seen elsewhere in this codebase (a BFD session's resetTxTimer/
// resetDetectTimer), generalized into a hashed wheel since DLEP needs
// many timers per neighbor across many neighbors, not one timer per
// session.
package timerwheel

import (
	"time"
)

// Tick is the wheel's scheduling granularity (spec §4.1: "~100ms
// periodic tick").
const Tick = 100 * time.Millisecond

const bucketCount = 512

// Callback is invoked when a timer fires. It runs in tick context and
// must not block.
type Callback func(userData any)

// Timer is an opaque handle prepared by Wheel.Prepare and armed by
// Wheel.Start. Its zero value is a valid, never-started timer.
type Timer struct {
	running    bool
	periodic   bool
	generation uint64
	bucket     int
	durTicks   int
	remaining  int
	callback   Callback
	userData   any
}

// IsRunning reports whether t is currently armed.
func (t *Timer) IsRunning() bool {
	return t.running
}

// Wheel is a hashed timing wheel: timers are bucketed by their expiry
// tick modulo bucketCount, so Advance only ever walks one bucket's
// (usually short) slice of timers per tick instead of a sorted list of
// all outstanding timers.
type Wheel struct {
	buckets  [bucketCount][]*Timer
	curTick  int
	curSlice int
}

// New creates an empty Wheel positioned at tick 0.
func New() *Wheel {
	return &Wheel{}
}

// Prepare initializes (or re-initializes) t for use with this wheel. It
// must be called once before the first Start.
func (w *Wheel) Prepare(t *Timer) {
	*t = Timer{}
}

// Start arms t to fire after duration, invoking callback(userData) from
// within Advance. Starting an already-running timer cancels the
// previous arming and restarts it (spec §4.1: "restart-of-running-timer
// cancels first"). periodic timers re-arm themselves for the same
// duration after each fire; non-periodic timers fire at most once.
func (w *Wheel) Start(t *Timer, duration time.Duration, periodic bool, callback Callback, userData any) {
	if t.running {
		w.Stop(t)
	}

	ticks := int(duration / Tick)
	if ticks < 1 {
		ticks = 1
	}

	t.generation++
	t.running = true
	t.periodic = periodic
	t.durTicks = ticks
	t.remaining = ticks
	t.callback = callback
	t.userData = userData
	t.bucket = (w.curTick + ticks) % bucketCount

	w.buckets[t.bucket] = append(w.buckets[t.bucket], t)
}

// Stop disarms t. Stop is idempotent: stopping a timer that is not
// running, or stopping it twice, is a safe no-op. A stopped timer never
// fires — Advance skips entries whose running flag has been cleared,
// which also makes a late fire racing a Stop call harmless (spec §5, §9
// open question (a)).
func (w *Wheel) Stop(t *Timer) {
	t.running = false
	t.callback = nil
	t.userData = nil
}

// Advance moves the wheel forward by one Tick, firing (and removing) any
// timer whose bucket has reached the current tick. Intended to be called
// once per Tick by the core loop's own ticker channel.
func (w *Wheel) Advance() {
	w.curTick = (w.curTick + 1) % bucketCount
	bucket := w.buckets[w.curTick]
	if len(bucket) == 0 {
		return
	}
	w.buckets[w.curTick] = nil

	// Only timers still running, still homed in this bucket AND due this
	// tick fire; timers whose remaining lap count hasn't elapsed (bucket
	// index collisions across wraps of the wheel) are rehomed.
	for _, t := range bucket {
		if !t.running || t.bucket != w.curTick {
			continue // stopped or restarted since being scheduled; drop silently
		}
		if t.remaining > bucketCount {
			t.remaining -= bucketCount
			w.buckets[w.curTick] = append(w.buckets[w.curTick], t)
			continue
		}

		gen := t.generation
		cb := t.callback
		ud := t.userData

		if t.periodic {
			t.remaining = t.durTicks
			t.bucket = (w.curTick + t.durTicks) % bucketCount
			w.buckets[t.bucket] = append(w.buckets[t.bucket], t)
		} else {
			t.running = false
		}

		if cb != nil {
			cb(ud)
		}
		// If the callback restarted t, Start() already bumped the
		// generation and re-homed it into a (possibly different)
		// bucket; our stale local copy of gen/cb/ud is simply discarded.
		_ = gen
	}
}

// Run ticks the wheel every Tick until ctx-like stop channel closes. It
// is a convenience driver for callers that want the wheel on its own
// goroutine feeding events back through a channel rather than sharing
// the core loop's own ticker; DLEP's core loop instead calls Advance
// directly from its select loop (Core.Advance, called from
// cmd/dlepd/main.go's runDaemonLoop) to keep a
// single goroutine in control of all state.
func Run(w *Wheel, stop <-chan struct{}) {
	ticker := time.NewTicker(Tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			w.Advance()
		}
	}
}
