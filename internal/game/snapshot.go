package game

import (
	"shipwars/internal/clock"
	"shipwars/internal/protocol"
)

// SnapshotBuilder decides which ticks broadcast a snapshot and assembles the
// snapshot payload. One builder belongs to one match goroutine; it is not
// safe for concurrent use.
type SnapshotBuilder struct {
	interval int
	counter  int
	forced   bool
	last     *protocol.Snapshot
}

// NewSnapshotBuilder returns a builder cadenced at the global snapshot rate.
func NewSnapshotBuilder() *SnapshotBuilder {
	return &SnapshotBuilder{interval: clock.SnapshotInterval()}
}

// ShouldSend advances the tick counter and reports whether this tick is a
// snapshot tick. ForceNext overrides the cadence for one tick.
func (b *SnapshotBuilder) ShouldSend() bool {
	if b.forced {
		b.forced = false
		b.counter = 0
		return true
	}
	b.counter++
	if b.counter >= b.interval {
		b.counter = 0
		return true
	}
	return false
}

// ForceNext makes the next ShouldSend call return true regardless of cadence.
// Used after events that clients must not observe late, like a phase change.
func (b *SnapshotBuilder) ForceNext() {
	b.forced = true
}

// Build assembles a snapshot from the match state. Players are serialized in
// join order so a given state always encodes to the same bytes. The built
// snapshot is retained as the baseline for future delta encoding.
func (b *SnapshotBuilder) Build(tick uint64, zone protocol.ZoneState, players []*PlayerState, events protocol.GameEvents) protocol.Snapshot {
	ps := make([]protocol.PlayerSnapshot, 0, len(players))
	for _, p := range players {
		ps = append(ps, protocol.PlayerSnapshot{
			UserID:         p.Info.UserID,
			X:              p.Ship.X,
			Y:              p.Ship.Y,
			Rotation:       p.Ship.Rotation,
			VelX:           p.Ship.VelX,
			VelY:           p.Ship.VelY,
			Health:         p.Health,
			Alive:          p.Alive,
			LastInputSeq:   p.LastInputSeq,
			WeaponCooldown: p.Cooldown,
		})
	}

	snap := protocol.Snapshot{
		Tick:    tick,
		Zone:    zone,
		Players: ps,
		Events:  events,
	}
	b.last = &snap
	return snap
}

// Last returns the most recently built snapshot, or nil before the first.
func (b *SnapshotBuilder) Last() *protocol.Snapshot {
	return b.last
}
