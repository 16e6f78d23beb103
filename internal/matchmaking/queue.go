package matchmaking

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"shipwars/internal/protocol"
)

// QueuedPlayer is one player waiting for a match.
type QueuedPlayer struct {
	UserID     uuid.UUID
	Info       protocol.PlayerInfo
	ShipType   protocol.ShipType
	EnqueuedAt time.Time
}

// Queue is the FIFO matchmaking queue. Safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	entries []QueuedPlayer
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Enqueue adds a player to the back of the queue. A player already queued is
// removed first, so re-queueing moves them to the back with a fresh wait.
func (q *Queue) Enqueue(p QueuedPlayer) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.UserID == p.UserID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			break
		}
	}
	q.entries = append(q.entries, p)
}

// Remove drops a player from the queue. Reports whether they were queued.
func (q *Queue) Remove(userID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.UserID == userID {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether a player is queued.
func (q *Queue) Contains(userID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, e := range q.entries {
		if e.UserID == userID {
			return true
		}
	}
	return false
}

// Len returns the number of queued players.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// OldestWait returns how long the head of the queue has been waiting, zero
// when empty.
func (q *Queue) OldestWait(now time.Time) time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) == 0 {
		return 0
	}
	return now.Sub(q.entries[0].EnqueuedAt)
}

// TakeUpTo removes and returns at most n players from the front of the
// queue, in arrival order.
func (q *Queue) TakeUpTo(n int) []QueuedPlayer {
	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.entries) {
		n = len(q.entries)
	}
	if n == 0 {
		return nil
	}
	batch := make([]QueuedPlayer, n)
	copy(batch, q.entries[:n])
	q.entries = append(q.entries[:0], q.entries[n:]...)
	return batch
}
