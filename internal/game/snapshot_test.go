package game

import (
	"testing"

	"github.com/google/uuid"

	"shipwars/internal/protocol"
)

// TestSnapshotCadence verifies a snapshot goes out every other tick.
func TestSnapshotCadence(t *testing.T) {
	b := NewSnapshotBuilder()

	var pattern []bool
	for i := 0; i < 6; i++ {
		pattern = append(pattern, b.ShouldSend())
	}
	want := []bool{false, true, false, true, false, true}
	for i := range want {
		if pattern[i] != want[i] {
			t.Fatalf("tick %d: got %v, want %v (pattern %v)", i, pattern[i], want[i], pattern)
		}
	}
}

// TestSnapshotForceNext verifies a forced snapshot fires immediately and
// resets the cadence.
func TestSnapshotForceNext(t *testing.T) {
	b := NewSnapshotBuilder()

	if b.ShouldSend() {
		t.Fatal("first tick should not snapshot")
	}
	b.ForceNext()
	if !b.ShouldSend() {
		t.Fatal("forced tick should snapshot")
	}
	if b.ShouldSend() {
		t.Fatal("cadence should restart after a forced snapshot")
	}
}

// TestSnapshotBuildOrder verifies players serialize in the given order and
// the built snapshot is retained.
func TestSnapshotBuildOrder(t *testing.T) {
	b := NewSnapshotBuilder()
	first := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000001")
	second := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000002")

	players := []*PlayerState{
		{Info: protocol.PlayerInfo{UserID: first}, Health: 60, Alive: true, LastInputSeq: 3},
		{Info: protocol.PlayerInfo{UserID: second}, Health: 0, Alive: false},
	}

	snap := b.Build(12, protocol.ZoneState{Radius: 1500}, players, nil)
	if snap.Tick != 12 || len(snap.Players) != 2 {
		t.Fatalf("snapshot: %+v", snap)
	}
	if snap.Players[0].UserID != first || snap.Players[1].UserID != second {
		t.Fatal("players out of order")
	}
	if snap.Players[0].LastInputSeq != 3 || snap.Players[1].Alive {
		t.Fatalf("player fields wrong: %+v", snap.Players)
	}
	if b.Last() == nil || b.Last().Tick != 12 {
		t.Fatal("built snapshot not retained")
	}
}
