package game

import (
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"shipwars/internal/clock"
	"shipwars/internal/fanout"
	"shipwars/internal/protocol"
)

var (
	alice = uuid.MustParse("aaaaaaaa-0000-0000-0000-00000000000a")
	bob   = uuid.MustParse("bbbbbbbb-0000-0000-0000-00000000000b")
	carol = uuid.MustParse("cccccccc-0000-0000-0000-00000000000c")
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.CountdownSecs = 1
	return cfg
}

func join(m *Match, userID uuid.UUID, ship protocol.ShipType) {
	m.Handle().Input <- PlayerInput{
		UserID: userID,
		Info:   protocol.PlayerInfo{UserID: userID, DisplayName: "test", ShipType: ship},
		Msg:    protocol.JoinMatch{ShipType: ship},
	}
}

func advance(m *Match, ticks int) {
	for i := 0; i < ticks; i++ {
		m.Advance()
	}
}

// startActiveMatch joins the given players and steps through the countdown.
func startActiveMatch(t *testing.T, m *Match, players ...uuid.UUID) {
	t.Helper()
	for _, id := range players {
		join(m, id, protocol.ShipFighter)
	}
	advance(m, clock.SimulationTPS+1) // 1 second, plus slack for float error
	if m.Phase() != PhaseActive {
		t.Fatalf("phase = %v, want active", m.Phase())
	}
}

// drain empties a subscription without blocking.
func drain(sub *fanout.Subscription) []protocol.ServerMsg {
	var out []protocol.ServerMsg
	for {
		msg, err, ok := sub.TryRecv()
		if !ok {
			return out
		}
		if err != nil {
			if errors.Is(err, fanout.ErrClosed) {
				return out
			}
			continue // lag report
		}
		out = append(out, msg)
	}
}

func findMsg[T protocol.ServerMsg](msgs []protocol.ServerMsg) (T, bool) {
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// snapshotEvents collects the events of every snapshot in a drained batch.
func snapshotEvents(msgs []protocol.ServerMsg) protocol.GameEvents {
	var out protocol.GameEvents
	for _, m := range msgs {
		if snap, ok := m.(protocol.Snapshot); ok {
			out = append(out, snap.Events...)
		}
	}
	return out
}

func findEvent[T protocol.GameEvent](events protocol.GameEvents) (T, bool) {
	for _, ev := range events {
		if v, ok := ev.(T); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// TestMatchCountdownAndStart verifies the lobby -> countdown -> active flow.
func TestMatchCountdownAndStart(t *testing.T) {
	m := NewMatch(uuid.New(), 1, testConfig())
	sub := m.Handle().Broadcast.Subscribe()

	join(m, alice, protocol.ShipScout)
	join(m, bob, protocol.ShipCruiser)
	m.Advance()

	if m.Phase() != PhaseCountdown {
		t.Fatalf("phase = %v, want countdown", m.Phase())
	}
	msgs := drain(sub)
	if _, ok := findMsg[protocol.MatchJoined](msgs); !ok {
		t.Fatal("no match_joined broadcast")
	}
	if cd, ok := findMsg[protocol.MatchCountdown](msgs); !ok || cd.SecondsRemaining != 1 {
		t.Fatalf("countdown announcement missing or wrong: %+v", msgs)
	}

	advance(m, clock.SimulationTPS+1)
	if m.Phase() != PhaseActive {
		t.Fatalf("phase = %v, want active", m.Phase())
	}
	if _, ok := findMsg[protocol.MatchStarted](drain(sub)); !ok {
		t.Fatal("no match_started broadcast")
	}
	if m.Handle().Joinable() {
		t.Fatal("match still joinable after start")
	}
}

// TestSoloMatchEndsWithWinner verifies a single-player match ends right after
// starting, with that player as the winner.
func TestSoloMatchEndsWithWinner(t *testing.T) {
	m := NewMatch(uuid.New(), 1, testConfig())
	sub := m.Handle().Broadcast.Subscribe()

	join(m, alice, protocol.ShipScout)
	advance(m, clock.SimulationTPS+3)

	if m.Phase() != PhaseEnded {
		t.Fatalf("phase = %v, want ended", m.Phase())
	}
	end, ok := findMsg[protocol.MatchEnd](drain(sub))
	if !ok {
		t.Fatal("no match_end broadcast")
	}
	if end.WinnerUserID == nil || *end.WinnerUserID != alice {
		t.Fatalf("winner = %v, want %v", end.WinnerUserID, alice)
	}
	if end.Stats.TotalPlayers != 1 || len(end.Stats.PlayerStats) != 1 ||
		end.Stats.PlayerStats[0].Placement != 1 {
		t.Fatalf("stats: %+v", end.Stats)
	}
}

// TestJoinAfterStartRejected verifies late joins get an error and no ship.
func TestJoinAfterStartRejected(t *testing.T) {
	m := NewMatch(uuid.New(), 1, testConfig())
	sub := m.Handle().Broadcast.Subscribe()

	startActiveMatch(t, m, alice, bob)
	drain(sub)

	join(m, carol, protocol.ShipFighter)
	m.Advance()

	errMsg, ok := findMsg[protocol.ErrorMsg](drain(sub))
	if !ok || errMsg.Code != "match_in_progress" {
		t.Fatalf("expected match_in_progress error, got %+v", errMsg)
	}
	if m.Handle().PlayerCount() != 2 {
		t.Fatalf("player count = %d, want 2", m.Handle().PlayerCount())
	}
}

// TestMatchFullRejected verifies the roster cap.
func TestMatchFullRejected(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPlayers = 2
	m := NewMatch(uuid.New(), 1, cfg)
	sub := m.Handle().Broadcast.Subscribe()

	join(m, alice, protocol.ShipScout)
	join(m, bob, protocol.ShipScout)
	join(m, carol, protocol.ShipScout)
	m.Advance()

	errMsg, ok := findMsg[protocol.ErrorMsg](drain(sub))
	if !ok || errMsg.Code != "match_full" {
		t.Fatalf("expected match_full error, got %+v", errMsg)
	}
	if m.Handle().PlayerCount() != 2 {
		t.Fatalf("player count = %d, want 2", m.Handle().PlayerCount())
	}
}

// TestDuplicateJoinResendsRoster verifies a repeated join for a player who is
// already in the match resends the roster instead of adding a second ship.
func TestDuplicateJoinResendsRoster(t *testing.T) {
	m := NewMatch(uuid.New(), 1, testConfig())
	sub := m.Handle().Broadcast.Subscribe()

	join(m, alice, protocol.ShipScout)
	m.Advance()
	drain(sub)

	join(m, alice, protocol.ShipScout)
	m.Advance()

	joined, ok := findMsg[protocol.MatchJoined](drain(sub))
	if !ok {
		t.Fatal("duplicate join should resend match_joined")
	}
	if len(joined.Players) != 1 || m.Handle().PlayerCount() != 1 {
		t.Fatalf("roster = %+v, count = %d, want a single entry",
			joined.Players, m.Handle().PlayerCount())
	}
}

// TestCountdownWithNoPlayersTerminates verifies a drained lobby does not
// start an empty match.
func TestCountdownWithNoPlayersTerminates(t *testing.T) {
	m := NewMatch(uuid.New(), 1, testConfig())

	join(m, alice, protocol.ShipScout)
	m.Advance()
	if m.Phase() != PhaseCountdown {
		t.Fatalf("phase = %v, want countdown", m.Phase())
	}

	m.Handle().Input <- PlayerInput{UserID: alice, Msg: protocol.LeaveMatch{}}
	advance(m, 2)

	if m.Phase() != PhaseEnded {
		t.Fatalf("phase = %v, want ended", m.Phase())
	}
}

// TestLastAliveWins verifies a two-player match ends when one leaves, with
// the survivor as winner, correct placements, and the departure reported as
// a disconnect.
func TestLastAliveWins(t *testing.T) {
	m := NewMatch(uuid.New(), 1, testConfig())
	sub := m.Handle().Broadcast.Subscribe()

	startActiveMatch(t, m, alice, bob)
	advance(m, 10)
	drain(sub)

	m.Handle().Input <- PlayerInput{UserID: bob, Msg: protocol.LeaveMatch{}}
	advance(m, 2)

	if m.Phase() != PhaseEnded {
		t.Fatalf("phase = %v, want ended", m.Phase())
	}
	msgs := drain(sub)
	left, ok := findMsg[protocol.PlayerLeft](msgs)
	if !ok || left.UserID != bob || left.Reason != "disconnected" {
		t.Fatalf("player_left = %+v, want bob disconnected", left)
	}
	kill, ok := findEvent[protocol.KillEvent](snapshotEvents(msgs))
	if !ok || kill.VictimID != bob || kill.Cause != "disconnected" {
		t.Fatalf("kill = %+v, want bob eliminated by disconnect", kill)
	}
	end, ok := findMsg[protocol.MatchEnd](msgs)
	if !ok {
		t.Fatal("no match_end broadcast")
	}
	if end.WinnerUserID == nil || *end.WinnerUserID != alice {
		t.Fatalf("winner = %v, want %v", end.WinnerUserID, alice)
	}
	if end.Stats.TotalPlayers != 2 || len(end.Stats.PlayerStats) != 2 {
		t.Fatalf("stats: %+v", end.Stats)
	}
	if end.Stats.PlayerStats[0].UserID != alice || end.Stats.PlayerStats[0].Placement != 1 {
		t.Fatalf("placement 1 should be the survivor: %+v", end.Stats.PlayerStats)
	}
}

// TestInputLatestWins verifies only the newest queued input for a tick is
// applied.
func TestInputLatestWins(t *testing.T) {
	m := NewMatch(uuid.New(), 1, testConfig())
	startActiveMatch(t, m, alice, bob)

	m.Handle().Input <- PlayerInput{UserID: alice, Msg: protocol.InputTick{Seq: 1, Throttle: 1}}
	m.Handle().Input <- PlayerInput{UserID: alice, Msg: protocol.InputTick{Seq: 2, Throttle: 0}}
	advance(m, 2)

	snap := m.LastSnapshot()
	if snap == nil {
		t.Fatal("no snapshot")
	}
	if snap.Players[0].LastInputSeq != 2 {
		t.Fatalf("last_input_seq = %d, want 2", snap.Players[0].LastInputSeq)
	}
}

// TestStaleInputIgnored verifies out-of-order sequence numbers never regress
// the applied input, whether the stale message arrives in the same tick or a
// later one.
func TestStaleInputIgnored(t *testing.T) {
	m := NewMatch(uuid.New(), 1, testConfig())
	startActiveMatch(t, m, alice, bob)

	m.Handle().Input <- PlayerInput{UserID: alice, Msg: protocol.InputTick{Seq: 5, Throttle: 1}}
	m.Handle().Input <- PlayerInput{UserID: alice, Msg: protocol.InputTick{Seq: 3, Throttle: 0}}
	advance(m, 2)

	snap := m.LastSnapshot()
	if snap == nil {
		t.Fatal("no snapshot")
	}
	if snap.Players[0].LastInputSeq != 5 {
		t.Fatalf("last_input_seq = %d, want 5 after stale seq=3", snap.Players[0].LastInputSeq)
	}

	m.Handle().Input <- PlayerInput{UserID: alice, Msg: protocol.InputTick{Seq: 4, Throttle: 0}}
	advance(m, 2)

	if got := m.LastSnapshot().Players[0].LastInputSeq; got != 5 {
		t.Fatalf("last_input_seq = %d, want 5 after stale seq=4", got)
	}
}

// TestProjectileMuzzleOffset verifies shots spawn just outside the shooter's
// hitbox along the aim direction, not at the ship center.
func TestProjectileMuzzleOffset(t *testing.T) {
	m := NewMatch(uuid.New(), 1, testConfig())
	sub := m.Handle().Broadcast.Subscribe()
	startActiveMatch(t, m, alice, bob)
	drain(sub)

	// Pin positions so collisions stay out of the picture.
	m.players[alice].Ship = ShipKinematics{X: 100, Y: -50}
	m.players[bob].Ship = ShipKinematics{X: 700, Y: 700}

	m.Handle().Input <- PlayerInput{UserID: alice, Msg: protocol.InputTick{Seq: 1, Shoot: true, AimYaw: 0}}
	advance(m, 2)

	shot, ok := findEvent[protocol.ShotEvent](snapshotEvents(drain(sub)))
	if !ok {
		t.Fatal("no shot event broadcast")
	}
	wantX := 100 + m.players[alice].Stats.HitboxRadius + MuzzleOffset
	if math.Abs(shot.X-wantX) > 1e-9 || math.Abs(shot.Y-(-50)) > 1e-9 {
		t.Fatalf("spawn = (%v, %v), want (%v, -50)", shot.X, shot.Y, wantX)
	}
}

// TestShotKillReported verifies a projectile kill ends the match and is
// reported with the shooter as killer and cause "shot".
func TestShotKillReported(t *testing.T) {
	m := NewMatch(uuid.New(), 1, testConfig())
	sub := m.Handle().Broadcast.Subscribe()
	startActiveMatch(t, m, alice, bob)
	drain(sub)

	m.players[alice].Ship = ShipKinematics{X: 0, Y: 0}
	m.players[bob].Ship = ShipKinematics{X: 100, Y: 0}
	m.players[bob].Health = 5 // one hit finishes it

	m.Handle().Input <- PlayerInput{UserID: alice, Msg: protocol.InputTick{Seq: 1, Shoot: true, AimYaw: 0}}
	advance(m, 10)

	if m.Phase() != PhaseEnded {
		t.Fatalf("phase = %v, want ended", m.Phase())
	}
	kill, ok := findEvent[protocol.KillEvent](snapshotEvents(drain(sub)))
	if !ok {
		t.Fatal("no kill event broadcast")
	}
	if kill.Cause != "shot" {
		t.Fatalf("kill cause = %q, want %q", kill.Cause, "shot")
	}
	if kill.KillerID == nil || *kill.KillerID != alice || kill.VictimID != bob {
		t.Fatalf("kill = %+v, want alice killing bob", kill)
	}
}

// TestPingAnsweredInMatch verifies the match loop echoes pings.
func TestPingAnsweredInMatch(t *testing.T) {
	m := NewMatch(uuid.New(), 1, testConfig())
	sub := m.Handle().Broadcast.Subscribe()

	join(m, alice, protocol.ShipScout)
	m.Handle().Input <- PlayerInput{UserID: alice, Msg: protocol.Ping{T: 777}}
	m.Advance()

	pong, ok := findMsg[protocol.Pong](drain(sub))
	if !ok || pong.T != 777 {
		t.Fatalf("expected Pong{777}, got %+v ok=%v", pong, ok)
	}
}

// TestDeterministicSimulation verifies two matches with the same seed and
// the same input timeline produce byte-identical snapshots.
func TestDeterministicSimulation(t *testing.T) {
	run := func() []byte {
		m := NewMatch(uuid.MustParse("dddddddd-0000-0000-0000-000000000001"), 0x1234, testConfig())
		join(m, alice, protocol.ShipScout)
		join(m, bob, protocol.ShipDestroyer)
		advance(m, clock.SimulationTPS+1)

		m.Handle().Input <- PlayerInput{UserID: alice, Msg: protocol.InputTick{Seq: 1, Throttle: 1, Steer: 0.5, Shoot: true, AimYaw: 1.0}}
		m.Handle().Input <- PlayerInput{UserID: bob, Msg: protocol.InputTick{Seq: 1, Throttle: -0.5, Steer: -1}}
		advance(m, 120)

		snap := m.LastSnapshot()
		if snap == nil {
			t.Fatal("no snapshot")
		}
		data, err := protocol.EncodeServerMsg(*snap)
		if err != nil {
			t.Fatal(err)
		}
		return data
	}

	a := run()
	b := run()
	if string(a) != string(b) {
		t.Fatalf("snapshots diverged:\n%s\n%s", a, b)
	}
}

// TestUnknownShipTypeDefaults verifies an invalid hull falls back rather
// than rejecting the join.
func TestUnknownShipTypeDefaults(t *testing.T) {
	m := NewMatch(uuid.New(), 1, testConfig())
	sub := m.Handle().Broadcast.Subscribe()

	join(m, alice, protocol.ShipType("galleon"))
	m.Advance()

	joined, ok := findMsg[protocol.MatchJoined](drain(sub))
	if !ok {
		t.Fatal("no match_joined broadcast")
	}
	if joined.Players[0].ShipType != protocol.DefaultShipType {
		t.Fatalf("ship type = %q, want default", joined.Players[0].ShipType)
	}
}
