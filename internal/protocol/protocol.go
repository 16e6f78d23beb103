// Package protocol defines the JSON wire messages exchanged with game
// clients. Every message is a flat object discriminated by a snake_case
// "type" field; game events nested in snapshots use "event_type".
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ShipType selects a hull and its stat row.
type ShipType string

const (
	ShipScout     ShipType = "scout"
	ShipFighter   ShipType = "fighter"
	ShipCruiser   ShipType = "cruiser"
	ShipDestroyer ShipType = "destroyer"
)

// Valid reports whether the ship type is one of the four known hulls.
func (s ShipType) Valid() bool {
	switch s {
	case ShipScout, ShipFighter, ShipCruiser, ShipDestroyer:
		return true
	}
	return false
}

// DefaultShipType is used when a client omits or sends an unknown hull.
const DefaultShipType = ShipFighter

// ============================================================================
// Client -> server messages
// ============================================================================

// ClientMsg is implemented by every message a client may send.
type ClientMsg interface {
	ClientType() string
}

// JoinMatch requests entry into a match. MatchID is optional; matchmaking
// assigns one when absent.
type JoinMatch struct {
	MatchID  *uuid.UUID `json:"match_id,omitempty"`
	ShipType ShipType   `json:"ship_type"`
}

func (JoinMatch) ClientType() string { return "join_match" }

// InputTick carries one tick of player intent.
type InputTick struct {
	Seq      uint32  `json:"seq"`
	Throttle float64 `json:"throttle"`
	Steer    float64 `json:"steer"`
	Shoot    bool    `json:"shoot"`
	AimYaw   float64 `json:"aim_yaw"`
}

func (InputTick) ClientType() string { return "input_tick" }

// Ping measures latency; T is echoed back in Pong.
type Ping struct {
	T uint64 `json:"t"`
}

func (Ping) ClientType() string { return "ping" }

// LeaveMatch removes the player from their current match.
type LeaveMatch struct{}

func (LeaveMatch) ClientType() string { return "leave_match" }

// ParseClientMsg decodes a client text frame into its concrete message type.
func ParseClientMsg(data []byte) (ClientMsg, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid client frame: %w", err)
	}

	switch head.Type {
	case "join_match":
		var m JoinMatch
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case "input_tick":
		var m InputTick
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case "ping":
		var m Ping
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case "leave_match":
		return LeaveMatch{}, nil
	default:
		return nil, fmt.Errorf("unknown client message type %q", head.Type)
	}
}

// ============================================================================
// Server -> client messages
// ============================================================================

// ServerMsg is implemented by every message the server may send.
type ServerMsg interface {
	ServerType() string
}

// Welcome is the first message after a successful connection.
type Welcome struct {
	UserID     uuid.UUID `json:"user_id"`
	ServerTime uint64    `json:"server_time"`
}

func (Welcome) ServerType() string { return "welcome" }

// MatchJoined confirms a join and lists the current roster.
type MatchJoined struct {
	MatchID uuid.UUID    `json:"match_id"`
	Seed    uint64       `json:"seed"`
	Players []PlayerInfo `json:"players"`
}

func (MatchJoined) ServerType() string { return "match_joined" }

// PlayerJoined announces a new participant.
type PlayerJoined struct {
	Player PlayerInfo `json:"player"`
}

func (PlayerJoined) ServerType() string { return "player_joined" }

// PlayerLeft announces a departed participant.
type PlayerLeft struct {
	UserID uuid.UUID `json:"user_id"`
	Reason string    `json:"reason"`
}

func (PlayerLeft) ServerType() string { return "player_left" }

// Snapshot is the periodic authoritative state broadcast.
type Snapshot struct {
	Tick    uint64           `json:"tick"`
	Zone    ZoneState        `json:"zone"`
	Players []PlayerSnapshot `json:"players"`
	Events  GameEvents       `json:"events"`
}

func (Snapshot) ServerType() string { return "snapshot" }

// MatchCountdown announces the pre-match countdown.
type MatchCountdown struct {
	SecondsRemaining uint32 `json:"seconds_remaining"`
}

func (MatchCountdown) ServerType() string { return "match_countdown" }

// MatchStarted marks the transition into live simulation.
type MatchStarted struct {
	Tick uint64 `json:"tick"`
}

func (MatchStarted) ServerType() string { return "match_started" }

// MatchEnd carries the winner (nil on a draw/empty match) and final stats.
type MatchEnd struct {
	WinnerUserID *uuid.UUID `json:"winner_user_id"`
	Stats        MatchStats `json:"stats"`
}

func (MatchEnd) ServerType() string { return "match_end" }

// ErrorMsg reports a request-scoped failure to the client.
type ErrorMsg struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (ErrorMsg) ServerType() string { return "error" }

// Pong echoes a client Ping timestamp.
type Pong struct {
	T uint64 `json:"t"`
}

func (Pong) ServerType() string { return "pong" }

// EncodeServerMsg marshals a server message with its "type" discriminator
// injected as the first key. Field order follows struct declaration order,
// so encoding a given message is byte-stable.
func EncodeServerMsg(m ServerMsg) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return injectTag("type", m.ServerType(), body)
}

// DecodeServerMsg decodes a server frame back into its concrete type.
func DecodeServerMsg(data []byte) (ServerMsg, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("invalid server frame: %w", err)
	}

	var (
		m   ServerMsg
		err error
	)
	switch head.Type {
	case "welcome":
		var v Welcome
		err = json.Unmarshal(data, &v)
		m = v
	case "match_joined":
		var v MatchJoined
		err = json.Unmarshal(data, &v)
		m = v
	case "player_joined":
		var v PlayerJoined
		err = json.Unmarshal(data, &v)
		m = v
	case "player_left":
		var v PlayerLeft
		err = json.Unmarshal(data, &v)
		m = v
	case "snapshot":
		var v Snapshot
		err = json.Unmarshal(data, &v)
		m = v
	case "match_countdown":
		var v MatchCountdown
		err = json.Unmarshal(data, &v)
		m = v
	case "match_started":
		var v MatchStarted
		err = json.Unmarshal(data, &v)
		m = v
	case "match_end":
		var v MatchEnd
		err = json.Unmarshal(data, &v)
		m = v
	case "error":
		var v ErrorMsg
		err = json.Unmarshal(data, &v)
		m = v
	case "pong":
		var v Pong
		err = json.Unmarshal(data, &v)
		m = v
	default:
		return nil, fmt.Errorf("unknown server message type %q", head.Type)
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ============================================================================
// Shared shapes
// ============================================================================

// PlayerInfo identifies a participant for lobby and join messages.
type PlayerInfo struct {
	UserID      uuid.UUID  `json:"user_id"`
	DisplayName string     `json:"display_name"`
	ShipType    ShipType   `json:"ship_type"`
	FlagSkinID  *uuid.UUID `json:"flag_skin_id,omitempty"`
}

// ZoneState describes the shrinking play area.
type ZoneState struct {
	CenterX         float64 `json:"center_x"`
	CenterY         float64 `json:"center_y"`
	Radius          float64 `json:"radius"`
	TargetCenterX   float64 `json:"target_center_x"`
	TargetCenterY   float64 `json:"target_center_y"`
	TargetRadius    float64 `json:"target_radius"`
	DamagePerSecond float64 `json:"damage_per_second"`
	ShrinkDelay     float64 `json:"shrink_delay"`
	Phase           uint32  `json:"phase"`
}

// PlayerSnapshot is one player's state within a snapshot.
type PlayerSnapshot struct {
	UserID         uuid.UUID `json:"user_id"`
	X              float64   `json:"x"`
	Y              float64   `json:"y"`
	Rotation       float64   `json:"rotation"`
	VelX           float64   `json:"vel_x"`
	VelY           float64   `json:"vel_y"`
	Health         float64   `json:"health"`
	Alive          bool      `json:"alive"`
	LastInputSeq   uint32    `json:"last_input_seq"`
	WeaponCooldown float64   `json:"weapon_cooldown"`
}

// MatchStats summarizes a finished match.
type MatchStats struct {
	DurationSecs uint32             `json:"duration_secs"`
	TotalPlayers uint32             `json:"total_players"`
	PlayerStats  []PlayerMatchStats `json:"player_stats"`
}

// PlayerMatchStats is one player's final scoreboard row.
type PlayerMatchStats struct {
	UserID        uuid.UUID `json:"user_id"`
	Kills         uint32    `json:"kills"`
	DamageDealt   float64   `json:"damage_dealt"`
	DamageTaken   float64   `json:"damage_taken"`
	ShotsFired    uint32    `json:"shots_fired"`
	ShotsHit      uint32    `json:"shots_hit"`
	Placement     uint32    `json:"placement"`
	AliveTimeSecs uint32    `json:"alive_time_secs"`
}

// injectTag prepends {"<key>":"<value>", to an already-marshaled object.
func injectTag(key, value string, body []byte) ([]byte, error) {
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("cannot tag non-object payload")
	}
	prefix := fmt.Sprintf("{%q:%q", key, value)
	if len(body) == 2 { // empty object
		return []byte(prefix + "}"), nil
	}
	out := make([]byte, 0, len(prefix)+1+len(body)-1)
	out = append(out, prefix...)
	out = append(out, ',')
	out = append(out, body[1:]...)
	return out, nil
}
