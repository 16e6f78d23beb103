// Package clock provides the simulation tick constants and time sources
// shared by the game loop and the API layer.
package clock

import (
	"sync"
	"time"
)

const (
	// SimulationTPS is the fixed simulation rate in ticks per second.
	SimulationTPS = 30

	// SnapshotTPS is the target snapshot broadcast rate per second.
	SnapshotTPS = 20

	// TickDuration is the wall-clock length of one simulation tick.
	TickDuration = time.Second / SimulationTPS
)

// TickDelta returns the fixed physics timestep in seconds.
func TickDelta() float64 {
	return 1.0 / float64(SimulationTPS)
}

// SnapshotInterval returns how many ticks elapse between snapshots,
// rounding up so the snapshot rate never exceeds SnapshotTPS.
func SnapshotInterval() int {
	return (SimulationTPS + SnapshotTPS - 1) / SnapshotTPS
}

// UnixMillis returns the current wall-clock time in milliseconds.
func UnixMillis() uint64 {
	return uint64(time.Now().UnixMilli())
}

var (
	startOnce sync.Once
	startTime time.Time
)

// InitServerTime records the process start instant. Call once at startup.
func InitServerTime() {
	startOnce.Do(func() {
		startTime = time.Now()
	})
}

// UptimeSecs returns seconds since InitServerTime. Zero if never initialized.
func UptimeSecs() uint64 {
	if startTime.IsZero() {
		return 0
	}
	return uint64(time.Since(startTime).Seconds())
}

// Timer measures elapsed time from its creation or last reset.
type Timer struct {
	start time.Time
}

// NewTimer returns a running timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ElapsedMillis returns milliseconds since the timer started.
func (t *Timer) ElapsedMillis() uint64 {
	return uint64(time.Since(t.start).Milliseconds())
}

// Reset restarts the timer.
func (t *Timer) Reset() {
	t.start = time.Now()
}
