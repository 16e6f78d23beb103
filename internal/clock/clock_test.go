package clock

import (
	"testing"
	"time"
)

// TestTickConstants pins the simulation cadence: 30 simulation ticks per
// second with a snapshot every other tick keeps the broadcast rate at or
// below 20 per second.
func TestTickConstants(t *testing.T) {
	if got := TickDelta(); got != 1.0/30.0 {
		t.Fatalf("TickDelta = %v", got)
	}
	if got := SnapshotInterval(); got != 2 {
		t.Fatalf("SnapshotInterval = %d, want 2", got)
	}
	if TickDuration != time.Second/30 {
		t.Fatalf("TickDuration = %v", TickDuration)
	}
}

// TestTimer verifies elapsed time measurement and reset.
func TestTimer(t *testing.T) {
	timer := NewTimer()
	time.Sleep(5 * time.Millisecond)
	if timer.ElapsedMillis() < 4 {
		t.Fatalf("elapsed = %d, want >= 4", timer.ElapsedMillis())
	}
	timer.Reset()
	if timer.ElapsedMillis() > 3 {
		t.Fatalf("elapsed after reset = %d", timer.ElapsedMillis())
	}
}
