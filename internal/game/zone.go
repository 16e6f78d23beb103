package game

import (
	"math"
	"math/rand"

	"shipwars/internal/protocol"
)

// ZonePhase is one shrink stage of the play area.
type ZonePhase struct {
	TargetRadius    float64
	ShrinkDuration  float64
	DamagePerSecond float64
	DelayAfter      float64
}

// ZoneConfig parameterizes the shrinking zone for one match.
type ZoneConfig struct {
	InitialRadius float64
	InitialDelay  float64
	Phases        []ZonePhase
}

// DefaultZoneConfig returns the standard battle-royale zone schedule.
func DefaultZoneConfig() ZoneConfig {
	return ZoneConfig{
		InitialRadius: 1500,
		InitialDelay:  60,
		Phases: []ZonePhase{
			{TargetRadius: 1000, ShrinkDuration: 30, DamagePerSecond: 5, DelayAfter: 45},
			{TargetRadius: 600, ShrinkDuration: 25, DamagePerSecond: 10, DelayAfter: 30},
			{TargetRadius: 300, ShrinkDuration: 20, DamagePerSecond: 15, DelayAfter: 20},
			{TargetRadius: 50, ShrinkDuration: 15, DamagePerSecond: 25, DelayAfter: 0},
		},
	}
}

// Zone drives the shrinking play area through its phase schedule. It is
// owned by the match goroutine and advanced once per tick.
type Zone struct {
	cfg       ZoneConfig
	state     protocol.ZoneState
	phaseIdx  int
	shrinking bool
	timer     float64

	// Interpolation anchors for the active shrink.
	startCenterX float64
	startCenterY float64
	startRadius  float64
}

// NewZone creates a zone centered at the origin at full radius.
func NewZone(cfg ZoneConfig) *Zone {
	return &Zone{
		cfg: cfg,
		state: protocol.ZoneState{
			Radius:       cfg.InitialRadius,
			TargetRadius: cfg.InitialRadius,
			ShrinkDelay:  cfg.InitialDelay,
		},
	}
}

// State returns the wire representation of the zone.
func (z *Zone) State() protocol.ZoneState {
	return z.state
}

// Done reports whether every phase has completed.
func (z *Zone) Done() bool {
	return z.phaseIdx >= len(z.cfg.Phases) && !z.shrinking
}

// Step advances the zone by dt seconds. The rng draws exactly two values
// (angle, offset) at each phase start, in that order, so a seeded match
// replays identically. A ZoneShrinkEvent is returned when a phase begins.
func (z *Zone) Step(dt float64, rng *rand.Rand) (protocol.GameEvent, bool) {
	if z.Done() {
		return nil, false
	}

	z.timer += dt

	if z.shrinking {
		phase := z.cfg.Phases[z.phaseIdx]
		t := z.timer / phase.ShrinkDuration
		if t >= 1 {
			z.state.CenterX = z.state.TargetCenterX
			z.state.CenterY = z.state.TargetCenterY
			z.state.Radius = z.state.TargetRadius
			z.shrinking = false
			z.timer = 0
			z.phaseIdx++
			if z.phaseIdx < len(z.cfg.Phases) {
				z.state.ShrinkDelay = phase.DelayAfter
			} else {
				z.state.ShrinkDelay = 0
			}
			return nil, false
		}
		z.state.CenterX = lerp(z.startCenterX, z.state.TargetCenterX, t)
		z.state.CenterY = lerp(z.startCenterY, z.state.TargetCenterY, t)
		z.state.Radius = lerp(z.startRadius, z.state.TargetRadius, t)
		z.state.ShrinkDelay = math.Max(0, phase.ShrinkDuration-z.timer)
		return nil, false
	}

	delay := z.cfg.InitialDelay
	if z.phaseIdx > 0 {
		delay = z.cfg.Phases[z.phaseIdx-1].DelayAfter
	}
	z.state.ShrinkDelay = math.Max(0, delay-z.timer)
	if z.timer < delay {
		return nil, false
	}

	// Begin the next shrink. The new center stays close enough to the old
	// one that the target disc remains inside the current disc.
	phase := z.cfg.Phases[z.phaseIdx]
	angle := rng.Float64() * 2 * math.Pi
	maxOffset := (z.state.Radius - phase.TargetRadius) * 0.5
	offset := rng.Float64() * maxOffset

	z.startCenterX = z.state.CenterX
	z.startCenterY = z.state.CenterY
	z.startRadius = z.state.Radius

	z.state.TargetCenterX = z.state.CenterX + math.Cos(angle)*offset
	z.state.TargetCenterY = z.state.CenterY + math.Sin(angle)*offset
	z.state.TargetRadius = phase.TargetRadius
	z.state.DamagePerSecond = phase.DamagePerSecond
	z.state.Phase = uint32(z.phaseIdx + 1)
	// During a shrink the field carries the remaining shrink time.
	z.state.ShrinkDelay = phase.ShrinkDuration
	z.shrinking = true
	z.timer = 0

	return protocol.ZoneShrinkEvent{
		Phase:      z.state.Phase,
		NewCenterX: z.state.TargetCenterX,
		NewCenterY: z.state.TargetCenterY,
		NewRadius:  z.state.TargetRadius,
	}, true
}

// Contains reports whether a point is inside the current zone disc.
func (z *Zone) Contains(x, y float64) bool {
	return IsInZone(x, y, z.state.CenterX, z.state.CenterY, z.state.Radius)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
