// Package matchmaking connects authenticated sessions to running matches:
// it queues join requests, forms new matches when enough players have
// waited, and routes messages between each session and its match.
package matchmaking

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"shipwars/internal/clock"
	"shipwars/internal/fanout"
	"shipwars/internal/game"
	"shipwars/internal/protocol"
)

// Options tunes the matchmaking service.
type Options struct {
	Match          game.Config
	MaxQueueWait   time.Duration
	SweepInterval  time.Duration
	PersonalBuffer int
}

// DefaultOptions returns the standard matchmaking parameters.
func DefaultOptions() Options {
	return Options{
		Match:          game.DefaultConfig(),
		MaxQueueWait:   5 * time.Second,
		SweepInterval:  500 * time.Millisecond,
		PersonalBuffer: 64,
	}
}

// Session is one connected player's link between their websocket and the
// match they are in. The websocket writer drains the personal broadcaster;
// the reader dispatches parsed messages through the service.
type Session struct {
	UserID   uuid.UUID
	Info     protocol.PlayerInfo
	Personal *fanout.Broadcaster

	mu    sync.Mutex
	match *game.MatchHandle
	sub   *fanout.Subscription
}

func (s *Session) currentMatch() *game.MatchHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.match
}

// Service owns the matchmaking queue and all live sessions.
type Service struct {
	opts     Options
	registry *game.MatchRegistry
	queue    *Queue

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

// NewService creates a matchmaking service over a match registry.
func NewService(registry *game.MatchRegistry, opts Options) *Service {
	return &Service{
		opts:     opts,
		registry: registry,
		queue:    NewQueue(),
		sessions: make(map[uuid.UUID]*Session),
	}
}

// RegisterPlayer creates the session for a freshly authenticated connection.
// A second connection for the same user replaces the first: the old session
// is torn down as if it had disconnected.
func (s *Service) RegisterPlayer(userID uuid.UUID, info protocol.PlayerInfo) *Session {
	s.mu.Lock()
	old := s.sessions[userID]
	sess := &Session{
		UserID:   userID,
		Info:     info,
		Personal: fanout.NewBroadcaster(s.opts.PersonalBuffer),
	}
	s.sessions[userID] = sess
	s.mu.Unlock()

	if old != nil {
		s.teardown(old, "reconnected")
	}
	return sess
}

// UnregisterPlayer tears down a session on disconnect: the player leaves the
// queue and, if in a match, their ship is removed.
func (s *Service) UnregisterPlayer(sess *Session) {
	s.mu.Lock()
	if s.sessions[sess.UserID] == sess {
		delete(s.sessions, sess.UserID)
	}
	s.mu.Unlock()

	s.teardown(sess, "disconnected")
}

func (s *Service) teardown(sess *Session, reason string) {
	s.queue.Remove(sess.UserID)

	sess.mu.Lock()
	match := sess.match
	sub := sess.sub
	sess.match = nil
	sess.sub = nil
	sess.mu.Unlock()

	if match != nil {
		sendInput(match, game.PlayerInput{UserID: sess.UserID, Msg: protocol.LeaveMatch{}})
	}
	if sub != nil {
		sub.Close()
	}
	sess.Personal.Close()
	log.Printf("👋 Session %s closed (%s)", sess.UserID, reason)
}

// Dispatch routes one parsed client message from a session's websocket
// reader.
func (s *Service) Dispatch(sess *Session, msg protocol.ClientMsg) {
	switch m := msg.(type) {
	case protocol.JoinMatch:
		s.handleJoinRequest(sess, m)
	case protocol.LeaveMatch:
		if match := sess.currentMatch(); match != nil {
			sendInput(match, game.PlayerInput{UserID: sess.UserID, Msg: m})
			s.detach(sess)
		} else {
			s.queue.Remove(sess.UserID)
		}
	case protocol.Ping:
		// Pings are answered by the match loop when in a match so the reply
		// reflects simulation liveness; otherwise answered directly.
		if match := sess.currentMatch(); match != nil {
			sendInput(match, game.PlayerInput{UserID: sess.UserID, Msg: m})
		} else {
			sess.Personal.Send(protocol.Pong{T: m.T})
		}
	default:
		match := sess.currentMatch()
		if match == nil {
			sess.Personal.Send(protocol.ErrorMsg{
				Code:    "not_in_match",
				Message: "join a match before sending inputs",
			})
			return
		}
		sendInput(match, game.PlayerInput{UserID: sess.UserID, Msg: msg})
	}
}

func (s *Service) handleJoinRequest(sess *Session, msg protocol.JoinMatch) {
	if sess.currentMatch() != nil {
		sess.Personal.Send(protocol.ErrorMsg{
			Code:    "already_in_match",
			Message: "leave your current match first",
		})
		return
	}

	shipType := msg.ShipType
	if !shipType.Valid() {
		shipType = protocol.DefaultShipType
	}

	// An explicit match id bypasses the queue.
	if msg.MatchID != nil {
		handle, ok := s.registry.Get(*msg.MatchID)
		if !ok || !handle.Joinable() {
			sess.Personal.Send(protocol.ErrorMsg{
				Code:    "match_not_found",
				Message: "match does not exist or has already started",
			})
			return
		}
		s.attach(sess, handle, shipType)
		return
	}

	s.queue.Enqueue(QueuedPlayer{
		UserID:     sess.UserID,
		Info:       sess.Info,
		ShipType:   shipType,
		EnqueuedAt: time.Now(),
	})
	log.Printf("🕐 Player %s queued (%d waiting)", sess.UserID, s.queue.Len())
}

// Run sweeps the queue until ctx is canceled, filling existing lobbies first
// and forming new matches once the minimum player count has queued or the
// head has waited too long.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	// Route queued players into lobbies that still have room.
	for s.queue.Len() > 0 {
		handle, ok := s.registry.FindAvailableMatch(s.opts.Match.MaxPlayers)
		if !ok {
			break
		}
		room := s.opts.Match.MaxPlayers - handle.PlayerCount()
		if room <= 0 {
			break
		}
		for _, qp := range s.queue.TakeUpTo(room) {
			s.attachQueued(qp, handle)
		}
	}

	// A new match forms once enough players queue up; players below that
	// threshold still get a lobby after the max wait, which later sweeps
	// fill to the minimum.
	n := s.queue.Len()
	if n == 0 {
		return
	}
	if n < s.opts.Match.MinPlayers && s.queue.OldestWait(time.Now()) < s.opts.MaxQueueWait {
		return
	}
	s.createMatch(ctx, s.queue.TakeUpTo(s.opts.Match.MaxPlayers))
}

func (s *Service) createMatch(ctx context.Context, batch []QueuedPlayer) {
	if len(batch) == 0 {
		return
	}

	id := uuid.New()
	seed := clock.UnixMillis()
	match := game.NewMatch(id, seed, s.opts.Match)
	handle := match.Handle()
	s.registry.Insert(handle)

	go func() {
		match.Run(ctx)
		s.registry.Remove(id)
	}()

	log.Printf("🎮 Created match %s for %d players", id, len(batch))
	for _, qp := range batch {
		s.attachQueued(qp, handle)
	}
}

func (s *Service) attachQueued(qp QueuedPlayer, handle *game.MatchHandle) {
	s.mu.Lock()
	sess := s.sessions[qp.UserID]
	s.mu.Unlock()
	if sess == nil {
		return // disconnected while queued
	}
	s.attach(sess, handle, qp.ShipType)
}

// attach binds a session to a match: subscribe to the match broadcast,
// start the routing goroutine, and submit the join.
func (s *Service) attach(sess *Session, handle *game.MatchHandle, shipType protocol.ShipType) {
	sub := handle.Broadcast.Subscribe()

	sess.mu.Lock()
	sess.match = handle
	sess.sub = sub
	sess.mu.Unlock()

	go s.routeMatchMessages(sess, handle, sub)

	sendInput(handle, game.PlayerInput{
		UserID: sess.UserID,
		Info:   sess.Info,
		Msg:    protocol.JoinMatch{ShipType: shipType},
	})
}

// detach unbinds a session from its match without touching the match state;
// the match learns about the departure through its own input channel.
func (s *Service) detach(sess *Session) {
	sess.mu.Lock()
	sub := sess.sub
	sess.match = nil
	sess.sub = nil
	sess.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
}

// routeMatchMessages forwards match broadcasts to the session's personal
// stream until the match ends. A lagging subscription logs and resumes from
// the newest messages rather than disconnecting the player.
func (s *Service) routeMatchMessages(sess *Session, handle *game.MatchHandle, sub *fanout.Subscription) {
	for {
		msg, err := sub.Recv()
		if err != nil {
			var lag *fanout.LagError
			if errors.As(err, &lag) {
				log.Printf("⚠️ Session %s lagged %d messages behind match %s",
					sess.UserID, lag.Count, handle.ID)
				continue
			}
			// Match over or subscription closed.
			sess.mu.Lock()
			if sess.match == handle {
				sess.match = nil
				sess.sub = nil
			}
			sess.mu.Unlock()
			return
		}
		sess.Personal.Send(msg)
	}
}

// sendInput submits to a match without blocking. A full input channel drops
// the message; the simulation must never wait on a producer.
func sendInput(handle *game.MatchHandle, in game.PlayerInput) {
	select {
	case handle.Input <- in:
	default:
		log.Printf("⚠️ Match %s input queue full, dropping %T from %s",
			handle.ID, in.Msg, in.UserID)
	}
}

// QueueLen reports the current matchmaking queue depth.
func (s *Service) QueueLen() int {
	return s.queue.Len()
}

// SessionFor returns the live session for a user, if they are connected.
func (s *Service) SessionFor(userID uuid.UUID) (*Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[userID]
	return sess, ok
}
