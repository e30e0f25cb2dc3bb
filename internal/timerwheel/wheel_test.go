package timerwheel

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStartFiresExactlyOnce(t *testing.T) {
	w := New()
	var tmr Timer
	w.Prepare(&tmr)

	fired := 0
	w.Start(&tmr, 3*Tick, false, func(any) { fired++ }, nil)

	for range 10 {
		w.Advance()
	}
	require.Equal(t, 1, fired)
	require.False(t, tmr.IsRunning())
}

func TestStopIsIdempotentAndPreventsFire(t *testing.T) {
	w := New()
	var tmr Timer
	w.Prepare(&tmr)

	fired := 0
	w.Start(&tmr, 2*Tick, false, func(any) { fired++ }, nil)
	w.Stop(&tmr)
	w.Stop(&tmr) // second Stop must not panic or double-fire anything

	for range 5 {
		w.Advance()
	}
	require.Equal(t, 0, fired)
	require.False(t, tmr.IsRunning())
}

func TestRestartCancelsFirstArming(t *testing.T) {
	w := New()
	var tmr Timer
	w.Prepare(&tmr)

	var got []int
	w.Start(&tmr, 2*Tick, false, func(any) { got = append(got, 1) }, nil)
	w.Advance() // 1 tick in, not due yet
	w.Start(&tmr, 2*Tick, false, func(any) { got = append(got, 2) }, nil)

	for range 5 {
		w.Advance()
	}
	require.Equal(t, []int{2}, got)
}

func TestPeriodicTimerRefires(t *testing.T) {
	w := New()
	var tmr Timer
	w.Prepare(&tmr)

	fired := 0
	w.Start(&tmr, 2*Tick, true, func(any) { fired++ }, nil)

	for range 9 {
		w.Advance()
	}
	require.Equal(t, 4, fired)
	require.True(t, tmr.IsRunning())

	w.Stop(&tmr)
	require.False(t, tmr.IsRunning())
}

func TestLateFireAfterStopIsNoop(t *testing.T) {
	w := New()
	var tmr Timer
	w.Prepare(&tmr)

	fired := 0
	w.Start(&tmr, Tick, false, func(any) { fired++ }, nil)
	// Simulate a stop racing a tick that already captured the entry.
	w.Stop(&tmr)
	w.Advance()
	require.Equal(t, 0, fired)
}
