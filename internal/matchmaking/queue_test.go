package matchmaking

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"shipwars/internal/protocol"
)

func qp(id uuid.UUID, at time.Time) QueuedPlayer {
	return QueuedPlayer{
		UserID:     id,
		Info:       protocol.PlayerInfo{UserID: id},
		ShipType:   protocol.ShipFighter,
		EnqueuedAt: at,
	}
}

// TestEnqueueReplaceMovesToBack verifies re-queueing removes the old entry
// and appends the new one, resetting the player's wait.
func TestEnqueueReplaceMovesToBack(t *testing.T) {
	q := NewQueue()
	base := time.Now()
	a, b := uuid.New(), uuid.New()

	q.Enqueue(qp(a, base))
	q.Enqueue(qp(b, base.Add(time.Second)))

	// Re-enqueue a with a different ship and a later timestamp.
	updated := qp(a, base.Add(2*time.Second))
	updated.ShipType = protocol.ShipDestroyer
	q.Enqueue(updated)

	if q.Len() != 2 {
		t.Fatalf("len = %d, want 2", q.Len())
	}
	batch := q.TakeUpTo(2)
	if batch[0].UserID != b {
		t.Fatalf("head = %+v, want b after a re-queued", batch[0])
	}
	if batch[1].UserID != a || batch[1].ShipType != protocol.ShipDestroyer {
		t.Fatalf("tail = %+v, want updated entry for a", batch[1])
	}
	if !batch[1].EnqueuedAt.Equal(base.Add(2 * time.Second)) {
		t.Fatal("re-enqueue must reset the wait time")
	}
}

// TestRemove covers removal and membership checks.
func TestRemove(t *testing.T) {
	q := NewQueue()
	a := uuid.New()
	q.Enqueue(qp(a, time.Now()))

	if !q.Contains(a) {
		t.Fatal("Contains should see the queued player")
	}
	if !q.Remove(a) {
		t.Fatal("Remove should report success")
	}
	if q.Remove(a) {
		t.Fatal("second Remove should report absence")
	}
	if q.Len() != 0 {
		t.Fatalf("len = %d, want 0", q.Len())
	}
}

// TestTakeUpTo verifies batches come off the front in order and the rest
// stays queued.
func TestTakeUpTo(t *testing.T) {
	q := NewQueue()
	ids := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}
	now := time.Now()
	for i, id := range ids {
		q.Enqueue(qp(id, now.Add(time.Duration(i)*time.Second)))
	}

	batch := q.TakeUpTo(2)
	if len(batch) != 2 || batch[0].UserID != ids[0] || batch[1].UserID != ids[1] {
		t.Fatalf("batch = %+v", batch)
	}
	if q.Len() != 1 || !q.Contains(ids[2]) {
		t.Fatal("remainder should stay queued")
	}

	if got := q.TakeUpTo(10); len(got) != 1 {
		t.Fatalf("oversized take = %d entries, want 1", len(got))
	}
	if q.TakeUpTo(1) != nil {
		t.Fatal("take from empty queue should be nil")
	}
}

// TestOldestWait verifies the head wait-time readout.
func TestOldestWait(t *testing.T) {
	q := NewQueue()
	now := time.Now()

	if q.OldestWait(now) != 0 {
		t.Fatal("empty queue should report zero wait")
	}

	q.Enqueue(qp(uuid.New(), now.Add(-10*time.Second)))
	q.Enqueue(qp(uuid.New(), now.Add(-2*time.Second)))

	if got := q.OldestWait(now); got != 10*time.Second {
		t.Fatalf("oldest wait = %v, want 10s", got)
	}
}
