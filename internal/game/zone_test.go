package game

import (
	"math"
	"math/rand"
	"testing"

	"shipwars/internal/clock"
	"shipwars/internal/protocol"
)

func advanceZone(z *Zone, rng *rand.Rand, secs float64) []protocol.GameEvent {
	var events []protocol.GameEvent
	ticks := int(secs * clock.SimulationTPS)
	for i := 0; i < ticks; i++ {
		if ev, ok := z.Step(clock.TickDelta(), rng); ok {
			events = append(events, ev)
		}
	}
	return events
}

// TestZoneInitialDelay verifies nothing happens before the first delay
// elapses and no damage applies yet.
func TestZoneInitialDelay(t *testing.T) {
	z := NewZone(DefaultZoneConfig())
	rng := rand.New(rand.NewSource(1))

	events := advanceZone(z, rng, 59)
	if len(events) != 0 {
		t.Fatalf("got %d events before the initial delay elapsed", len(events))
	}
	s := z.State()
	if s.Radius != 1500 || s.DamagePerSecond != 0 || s.Phase != 0 {
		t.Fatalf("zone moved early: %+v", s)
	}
}

// TestZoneFirstShrink verifies the first phase starts after the delay,
// emits a shrink event, and interpolates radius toward the target.
func TestZoneFirstShrink(t *testing.T) {
	z := NewZone(DefaultZoneConfig())
	rng := rand.New(rand.NewSource(1))

	events := advanceZone(z, rng, 61)
	if len(events) != 1 {
		t.Fatalf("got %d shrink events, want 1", len(events))
	}
	shrink := events[0].(protocol.ZoneShrinkEvent)
	if shrink.Phase != 1 || shrink.NewRadius != 1000 {
		t.Fatalf("unexpected shrink event: %+v", shrink)
	}

	s := z.State()
	if s.DamagePerSecond != 5 {
		t.Fatalf("dps = %v, want 5", s.DamagePerSecond)
	}
	if s.Radius >= 1500 || s.Radius <= 1000 {
		t.Fatalf("radius = %v, want mid-shrink between 1000 and 1500", s.Radius)
	}
	// One second into the 30s shrink, the countdown reports the time left in
	// the shrink itself.
	if math.Abs(s.ShrinkDelay-29) > 0.1 {
		t.Fatalf("shrink_delay = %v, want ~29 mid-shrink", s.ShrinkDelay)
	}

	// Finish the 30s shrink.
	advanceZone(z, rng, 30)
	if got := z.State().Radius; got != 1000 {
		t.Fatalf("radius after shrink = %v, want 1000", got)
	}
}

// TestZoneTargetInsideCurrent verifies the re-centered target disc always
// stays inside the current disc.
func TestZoneTargetInsideCurrent(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		z := NewZone(DefaultZoneConfig())
		rng := rand.New(rand.NewSource(seed))

		advanceZone(z, rng, 61)
		s := z.State()
		centerShift := math.Hypot(s.TargetCenterX, s.TargetCenterY)
		if centerShift+s.TargetRadius > 1500+1e-9 {
			t.Fatalf("seed %d: target disc escapes current disc (shift %v)", seed, centerShift)
		}
	}
}

// TestZoneRunsAllPhases verifies the full schedule completes and the final
// dps sticks.
func TestZoneRunsAllPhases(t *testing.T) {
	z := NewZone(DefaultZoneConfig())
	rng := rand.New(rand.NewSource(7))

	// 60 + 30 + 45 + 25 + 30 + 20 + 20 + 15 = 245s covers everything.
	events := advanceZone(z, rng, 250)
	if len(events) != 4 {
		t.Fatalf("got %d shrink events, want 4", len(events))
	}
	if !z.Done() {
		t.Fatal("zone should be done after all phases")
	}
	s := z.State()
	if s.Radius != 50 || s.DamagePerSecond != 25 || s.Phase != 4 {
		t.Fatalf("final state: %+v", s)
	}
}

// TestZoneDeterministic verifies two zones with equal seeds follow the same
// trajectory.
func TestZoneDeterministic(t *testing.T) {
	z1 := NewZone(DefaultZoneConfig())
	z2 := NewZone(DefaultZoneConfig())
	r1 := rand.New(rand.NewSource(42))
	r2 := rand.New(rand.NewSource(42))

	advanceZone(z1, r1, 100)
	advanceZone(z2, r2, 100)

	if z1.State() != z2.State() {
		t.Fatalf("states diverged:\n%+v\n%+v", z1.State(), z2.State())
	}
}
