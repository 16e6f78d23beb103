// Package game implements the authoritative match simulation: a fixed-rate
// tick loop that owns all match state, applies player inputs, advances
// physics, combat and the shrinking zone, and broadcasts snapshots.
package game

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"shipwars/internal/clock"
	"shipwars/internal/fanout"
	"shipwars/internal/protocol"
)

// MatchPhase is the lifecycle stage of a match.
type MatchPhase int

const (
	PhaseLobby MatchPhase = iota
	PhaseCountdown
	PhaseActive
	PhaseEnded
)

func (p MatchPhase) String() string {
	switch p {
	case PhaseLobby:
		return "lobby"
	case PhaseCountdown:
		return "countdown"
	case PhaseActive:
		return "active"
	case PhaseEnded:
		return "ended"
	}
	return "unknown"
}

// Config parameterizes one match.
type Config struct {
	MinPlayers      int
	MaxPlayers      int
	CountdownSecs   int
	InputBuffer     int
	BroadcastBuffer int
	Zone            ZoneConfig

	// TickHook, when set, receives the wall-clock duration of every tick.
	TickHook func(time.Duration)
}

// DefaultConfig returns the standard match parameters.
func DefaultConfig() Config {
	return Config{
		MinPlayers:      1,
		MaxPlayers:      20,
		CountdownSecs:   5,
		InputBuffer:     256,
		BroadcastBuffer: 64,
		Zone:            DefaultZoneConfig(),
	}
}

// TickInput is the latest decoded intent for one player. Inputs arriving
// faster than the tick rate overwrite each other; only the newest is applied.
type TickInput struct {
	Seq      uint32
	Throttle float64
	Steer    float64
	Shoot    bool
	AimYaw   float64
}

// PlayerInput is one client message routed to a match, tagged with its
// sender. Info is populated for join messages.
type PlayerInput struct {
	UserID uuid.UUID
	Info   protocol.PlayerInfo
	Msg    protocol.ClientMsg
}

// PlayerState is one participant's full server-side state. Owned exclusively
// by the match goroutine.
type PlayerState struct {
	Info      protocol.PlayerInfo
	Stats     ShipStats
	Weapon    WeaponStats
	Ship      ShipKinematics
	Health    float64
	Alive     bool
	Connected bool

	Pending      TickInput
	LastInputSeq uint32
	Cooldown     float64

	Kills       uint32
	DamageDealt float64
	DamageTaken float64
	ShotsFired  uint32
	ShotsHit    uint32
	AliveTicks  uint64
}

// MatchHandle is the concurrency-safe surface of a running match: an input
// channel for client messages and a broadcaster for server messages. All
// other match state belongs to the match goroutine alone.
type MatchHandle struct {
	ID        uuid.UUID
	Seed      uint64
	Input     chan PlayerInput
	Broadcast *fanout.Broadcaster

	players  atomic.Int32
	joinable atomic.Bool
}

// PlayerCount returns the number of players currently in the match.
func (h *MatchHandle) PlayerCount() int {
	return int(h.players.Load())
}

// Joinable reports whether the match still accepts players, which is true
// from creation until the simulation starts.
func (h *MatchHandle) Joinable() bool {
	return h.joinable.Load()
}

// Match is one running game instance.
type Match struct {
	handle *MatchHandle
	cfg    Config
	rng    *rand.Rand

	phase       MatchPhase
	tick        uint64
	players     map[uuid.UUID]*PlayerState
	joinOrder   []uuid.UUID
	projectiles []Projectile
	zone        *Zone
	events      protocol.GameEvents
	snapshots   *SnapshotBuilder

	countdown     float64
	lastAnnounced uint32
	totalJoined   int
	startTimer    *clock.Timer
}

// NewMatch creates a match seeded for deterministic simulation. The same
// seed and input sequence reproduce the same snapshots.
func NewMatch(id uuid.UUID, seed uint64, cfg Config) *Match {
	handle := &MatchHandle{
		ID:        id,
		Seed:      seed,
		Input:     make(chan PlayerInput, cfg.InputBuffer),
		Broadcast: fanout.NewBroadcaster(cfg.BroadcastBuffer),
	}
	handle.joinable.Store(true)
	return &Match{
		handle:    handle,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(int64(seed))),
		phase:     PhaseLobby,
		players:   make(map[uuid.UUID]*PlayerState),
		zone:      NewZone(cfg.Zone),
		snapshots: NewSnapshotBuilder(),
	}
}

// Handle returns the match's concurrency-safe handle.
func (m *Match) Handle() *MatchHandle { return m.handle }

// Phase returns the current lifecycle phase.
func (m *Match) Phase() MatchPhase { return m.phase }

// CurrentTick returns the simulation tick counter.
func (m *Match) CurrentTick() uint64 { return m.tick }

// LastSnapshot returns the most recently broadcast snapshot, nil before the
// first one.
func (m *Match) LastSnapshot() *protocol.Snapshot { return m.snapshots.Last() }

// Run drives the match at the fixed tick rate until it ends or ctx is
// canceled. Ticks that overrun are skipped, not replayed: the ticker drops
// missed firings, so a slow tick never causes a burst of catch-up ticks.
func (m *Match) Run(ctx context.Context) {
	log.Printf("🎮 Match %s started (seed=%d)", m.handle.ID, m.handle.Seed)
	ticker := time.NewTicker(clock.TickDuration)
	defer func() {
		ticker.Stop()
		m.handle.Broadcast.Close()
		log.Printf("🏁 Match %s finished after %d ticks", m.handle.ID, m.tick)
	}()

	for m.phase != PhaseEnded {
		select {
		case <-ctx.Done():
			m.endMatch()
			return
		case <-ticker.C:
			m.Advance()
		}
	}
}

// Advance executes exactly one simulation tick: drain queued inputs, run the
// current phase, bump the tick counter. Exposed so tests can step a match
// synchronously.
func (m *Match) Advance() {
	var timer *clock.Timer
	if m.cfg.TickHook != nil {
		timer = clock.NewTimer()
	}

	m.drainInputs()

	switch m.phase {
	case PhaseLobby:
		m.stepLobby()
	case PhaseCountdown:
		m.stepCountdown()
	case PhaseActive:
		m.stepSimulation()
	}
	m.tick++

	if timer != nil {
		m.cfg.TickHook(time.Duration(timer.ElapsedMillis()) * time.Millisecond)
	}
}

func (m *Match) drainInputs() {
	for {
		select {
		case in := <-m.handle.Input:
			m.handleInput(in)
		default:
			return
		}
	}
}

func (m *Match) handleInput(in PlayerInput) {
	switch msg := in.Msg.(type) {
	case protocol.JoinMatch:
		m.handleJoin(in.UserID, in.Info, msg)
	case protocol.InputTick:
		// Out-of-order and replayed inputs are dropped; seq must advance.
		if p, ok := m.players[in.UserID]; ok && p.Alive && msg.Seq > p.Pending.Seq {
			p.Pending = TickInput{
				Seq:      msg.Seq,
				Throttle: msg.Throttle,
				Steer:    msg.Steer,
				Shoot:    msg.Shoot,
				AimYaw:   msg.AimYaw,
			}
		}
	case protocol.Ping:
		m.handle.Broadcast.Send(protocol.Pong{T: msg.T})
	case protocol.LeaveMatch:
		m.handleLeave(in.UserID, "disconnected")
	}
}

func (m *Match) handleJoin(userID uuid.UUID, info protocol.PlayerInfo, msg protocol.JoinMatch) {
	if m.phase == PhaseActive || m.phase == PhaseEnded {
		m.handle.Broadcast.Send(protocol.ErrorMsg{
			Code:    "match_in_progress",
			Message: "cannot join a match that has already started",
		})
		return
	}
	if len(m.players) >= m.cfg.MaxPlayers {
		m.handle.Broadcast.Send(protocol.ErrorMsg{
			Code:    "match_full",
			Message: "match is full",
		})
		return
	}
	if p, ok := m.players[userID]; ok {
		// Duplicate join: refresh the link and resend the roster so the
		// client can resynchronize.
		if !p.Connected {
			p.Connected = true
			m.handle.players.Add(1)
		}
		m.handle.Broadcast.Send(protocol.MatchJoined{
			MatchID: m.handle.ID,
			Seed:    m.handle.Seed,
			Players: m.roster(),
		})
		return
	}

	shipType := msg.ShipType
	if !shipType.Valid() {
		shipType = protocol.DefaultShipType
	}
	info.ShipType = shipType

	stats := ShipStatsFor(shipType)
	x, y := m.spawnPosition()

	m.players[userID] = &PlayerState{
		Info:   info,
		Stats:  stats,
		Weapon: WeaponStatsFor(shipType),
		Ship: ShipKinematics{
			X:        x,
			Y:        y,
			Rotation: facing(x, y),
		},
		Health:    stats.MaxHealth,
		Alive:     true,
		Connected: true,
	}
	m.joinOrder = append(m.joinOrder, userID)
	m.totalJoined++
	m.handle.players.Add(1)

	log.Printf("✅ Player %s joined match %s as %s (%d/%d)",
		userID, m.handle.ID, shipType, len(m.players), m.cfg.MaxPlayers)

	m.handle.Broadcast.Send(protocol.PlayerJoined{Player: info})
	m.handle.Broadcast.Send(protocol.MatchJoined{
		MatchID: m.handle.ID,
		Seed:    m.handle.Seed,
		Players: m.roster(),
	})

	if m.phase == PhaseLobby && len(m.players) >= m.cfg.MinPlayers {
		m.phase = PhaseCountdown
		m.countdown = float64(m.cfg.CountdownSecs)
		m.lastAnnounced = uint32(m.cfg.CountdownSecs)
		m.handle.Broadcast.Send(protocol.MatchCountdown{SecondsRemaining: m.lastAnnounced})
	}
}

func (m *Match) handleLeave(userID uuid.UUID, reason string) {
	p, ok := m.players[userID]
	if !ok {
		return
	}

	if m.phase == PhaseActive {
		p.Connected = false
		if p.Alive {
			p.Alive = false
			p.Health = 0
			m.events = append(m.events, protocol.KillEvent{
				VictimID: userID,
				Cause:    reason,
			})
		}
	} else {
		delete(m.players, userID)
		for i, id := range m.joinOrder {
			if id == userID {
				m.joinOrder = append(m.joinOrder[:i], m.joinOrder[i+1:]...)
				break
			}
		}
		m.totalJoined--
	}
	m.handle.players.Add(-1)

	log.Printf("👋 Player %s left match %s (%s)", userID, m.handle.ID, reason)
	m.handle.Broadcast.Send(protocol.PlayerLeft{UserID: userID, Reason: reason})
}

func (m *Match) stepLobby() {
	// A match nobody ever joins is reaped after 30 seconds.
	if m.totalJoined == 0 && m.tick > 30*clock.SimulationTPS {
		m.phase = PhaseEnded
		return
	}
	if m.totalJoined > 0 && m.connectedCount() == 0 {
		m.phase = PhaseEnded
	}
}

func (m *Match) stepCountdown() {
	if m.connectedCount() == 0 {
		log.Printf("⚠️ Match %s: countdown with no players, terminating", m.handle.ID)
		m.phase = PhaseEnded
		return
	}

	m.countdown -= clock.TickDelta()
	if m.countdown <= 0 {
		m.startMatch()
		return
	}
	if secs := uint32(math.Ceil(m.countdown)); secs != m.lastAnnounced {
		m.lastAnnounced = secs
		m.handle.Broadcast.Send(protocol.MatchCountdown{SecondsRemaining: secs})
	}
}

func (m *Match) startMatch() {
	m.phase = PhaseActive
	m.handle.joinable.Store(false)
	m.startTimer = clock.NewTimer()
	m.handle.Broadcast.Send(protocol.MatchStarted{Tick: m.tick})
	m.snapshots.ForceNext()
	log.Printf("🚀 Match %s live with %d players", m.handle.ID, len(m.players))
}

func (m *Match) stepSimulation() {
	if m.connectedCount() == 0 {
		m.endMatch()
		return
	}

	dt := clock.TickDelta()

	// Movement and firing, in join order.
	for _, id := range m.joinOrder {
		p := m.players[id]
		if !p.Alive {
			continue
		}
		p.Cooldown = UpdateCooldown(p.Cooldown)

		in := p.Pending
		p.Ship = StepShip(p.Ship, in.Throttle, in.Steer, p.Stats)
		p.LastInputSeq = in.Seq

		if in.Shoot && CanFire(p.Cooldown) {
			m.fire(p, in.AimYaw)
		}
	}

	// Ship vs ship collisions, position-only separation.
	for i := 0; i < len(m.joinOrder); i++ {
		a := m.players[m.joinOrder[i]]
		if !a.Alive {
			continue
		}
		for j := i + 1; j < len(m.joinOrder); j++ {
			b := m.players[m.joinOrder[j]]
			if !b.Alive {
				continue
			}
			if CheckShipCollision(a.Ship.X, a.Ship.Y, a.Stats.HitboxRadius,
				b.Ship.X, b.Ship.Y, b.Stats.HitboxRadius) {
				a.Ship.X, a.Ship.Y, b.Ship.X, b.Ship.Y = ResolveShipCollision(
					a.Ship.X, a.Ship.Y, a.Stats.HitboxRadius,
					b.Ship.X, b.Ship.Y, b.Stats.HitboxRadius)
			}
		}
	}

	m.stepProjectiles()

	// Zone advance and out-of-zone damage.
	if ev, ok := m.zone.Step(dt, m.rng); ok {
		m.events = append(m.events, ev)
		m.snapshots.ForceNext()
	}
	zs := m.zone.State()
	if zs.DamagePerSecond > 0 {
		for _, id := range m.joinOrder {
			p := m.players[id]
			if !p.Alive || m.zone.Contains(p.Ship.X, p.Ship.Y) {
				continue
			}
			dmg := ZoneDamagePerTick(zs.DamagePerSecond)
			newHealth, killed := ApplyDamage(p.Health, dmg)
			p.Health = newHealth
			p.DamageTaken += dmg
			m.events = append(m.events, protocol.ZoneDamageEvent{UserID: id, Damage: dmg})
			if killed {
				p.Alive = false
				m.events = append(m.events, protocol.KillEvent{VictimID: id, Cause: "zone"})
			}
		}
	}

	for _, id := range m.joinOrder {
		if p := m.players[id]; p.Alive {
			p.AliveTicks++
		}
	}

	if m.aliveCount() <= 1 {
		m.endMatch()
		return
	}

	if m.snapshots.ShouldSend() {
		m.handle.Broadcast.Send(m.snapshots.Build(m.tick, zs, m.orderedPlayers(), m.takeEvents()))
	}
}

func (m *Match) fire(p *PlayerState, aimYaw float64) {
	// Projectile IDs come from the match RNG so seeded runs replay exactly.
	pid, _ := uuid.NewRandomFromReader(m.rng)
	reach := p.Stats.HitboxRadius + MuzzleOffset
	x := p.Ship.X + math.Cos(aimYaw)*reach
	y := p.Ship.Y + math.Sin(aimYaw)*reach
	proj := NewProjectile(pid, p.Info.UserID, x, y, aimYaw, p.Weapon)
	m.projectiles = append(m.projectiles, proj)

	p.Cooldown = p.Weapon.Cooldown
	p.ShotsFired++

	m.events = append(m.events, protocol.ShotEvent{
		ShooterID:    p.Info.UserID,
		ProjectileID: pid,
		X:            proj.X,
		Y:            proj.Y,
		Direction:    aimYaw,
		Speed:        p.Weapon.ProjectileSpeed,
	})
}

func (m *Match) stepProjectiles() {
	keep := m.projectiles[:0]
	for i := range m.projectiles {
		proj := m.projectiles[i]
		if !proj.Step() {
			continue
		}

		hit := false
		for _, id := range m.joinOrder {
			t := m.players[id]
			if !t.Alive || id == proj.OwnerID {
				continue
			}
			if !proj.CheckHit(t.Ship.X, t.Ship.Y, t.Stats.HitboxRadius) {
				continue
			}

			newHealth, killed := ApplyDamage(t.Health, proj.Damage)
			t.Health = newHealth
			t.DamageTaken += proj.Damage

			shooter, hasShooter := m.players[proj.OwnerID]
			if hasShooter {
				shooter.DamageDealt += proj.Damage
				shooter.ShotsHit++
			}

			m.events = append(m.events, protocol.HitEvent{
				ShooterID: proj.OwnerID,
				TargetID:  id,
				Damage:    proj.Damage,
				X:         proj.X,
				Y:         proj.Y,
			})
			if killed {
				t.Alive = false
				killer := proj.OwnerID
				if hasShooter {
					shooter.Kills++
				}
				m.events = append(m.events, protocol.KillEvent{
					KillerID: &killer,
					VictimID: id,
					Cause:    "shot",
				})
			}
			hit = true
			break
		}
		if !hit {
			keep = append(keep, proj)
		}
	}
	m.projectiles = keep
}

func (m *Match) endMatch() {
	if m.phase == PhaseEnded {
		return
	}
	m.phase = PhaseEnded
	m.handle.joinable.Store(false)

	// Final snapshot so clients observe the last events before the summary.
	m.handle.Broadcast.Send(m.snapshots.Build(m.tick, m.zone.State(), m.orderedPlayers(), m.takeEvents()))

	var winner *uuid.UUID
	if m.aliveCount() == 1 {
		for _, id := range m.joinOrder {
			if m.players[id].Alive {
				w := id
				winner = &w
				break
			}
		}
	}

	// Placement: survivors first, then longest-lived. Ties keep join order.
	ranked := m.orderedPlayers()
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Alive != ranked[j].Alive {
			return ranked[i].Alive
		}
		return ranked[i].AliveTicks > ranked[j].AliveTicks
	})

	var duration uint32
	if m.startTimer != nil {
		duration = uint32(m.startTimer.ElapsedMillis() / 1000)
	}

	stats := protocol.MatchStats{
		DurationSecs: duration,
		TotalPlayers: uint32(m.totalJoined),
		PlayerStats:  make([]protocol.PlayerMatchStats, 0, len(ranked)),
	}
	for i, p := range ranked {
		stats.PlayerStats = append(stats.PlayerStats, protocol.PlayerMatchStats{
			UserID:        p.Info.UserID,
			Kills:         p.Kills,
			DamageDealt:   p.DamageDealt,
			DamageTaken:   p.DamageTaken,
			ShotsFired:    p.ShotsFired,
			ShotsHit:      p.ShotsHit,
			Placement:     uint32(i + 1),
			AliveTimeSecs: uint32(p.AliveTicks / clock.SimulationTPS),
		})
	}

	m.handle.Broadcast.Send(protocol.MatchEnd{WinnerUserID: winner, Stats: stats})
}

// spawnPosition draws a random position inside the zone, away from the edge.
func (m *Match) spawnPosition() (float64, float64) {
	zs := m.zone.State()
	angle := m.rng.Float64() * 2 * math.Pi
	maxDist := 0.8 * zs.Radius
	dist := 200 + m.rng.Float64()*(maxDist-200)
	return zs.CenterX + math.Cos(angle)*dist, zs.CenterY + math.Sin(angle)*dist
}

// facing returns the rotation pointing a spawned ship at the map center.
func facing(x, y float64) float64 {
	rot := math.Atan2(-y, -x)
	if rot < 0 {
		rot += 2 * math.Pi
	}
	return rot
}

func (m *Match) roster() []protocol.PlayerInfo {
	out := make([]protocol.PlayerInfo, 0, len(m.joinOrder))
	for _, id := range m.joinOrder {
		out = append(out, m.players[id].Info)
	}
	return out
}

func (m *Match) orderedPlayers() []*PlayerState {
	out := make([]*PlayerState, 0, len(m.joinOrder))
	for _, id := range m.joinOrder {
		out = append(out, m.players[id])
	}
	return out
}

func (m *Match) takeEvents() protocol.GameEvents {
	evs := m.events
	m.events = nil
	return evs
}

func (m *Match) connectedCount() int {
	n := 0
	for _, p := range m.players {
		if p.Connected {
			n++
		}
	}
	return n
}

func (m *Match) aliveCount() int {
	n := 0
	for _, p := range m.players {
		if p.Alive {
			n++
		}
	}
	return n
}
