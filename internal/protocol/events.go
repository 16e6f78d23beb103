package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// GameEvent is one simulation event carried inside a snapshot. Events are
// tagged with an "event_type" discriminator on the wire.
type GameEvent interface {
	EventType() string
}

// GameEvents is a decodable list of tagged events.
type GameEvents []GameEvent

// ShotEvent records a projectile being fired.
type ShotEvent struct {
	ShooterID    uuid.UUID `json:"shooter_id"`
	ProjectileID uuid.UUID `json:"projectile_id"`
	X            float64   `json:"x"`
	Y            float64   `json:"y"`
	Direction    float64   `json:"direction"`
	Speed        float64   `json:"speed"`
}

func (ShotEvent) EventType() string { return "shot" }

func (e ShotEvent) MarshalJSON() ([]byte, error) {
	type alias ShotEvent
	return marshalTagged(e.EventType(), alias(e))
}

// HitEvent records a projectile connecting with a ship.
type HitEvent struct {
	ShooterID uuid.UUID `json:"shooter_id"`
	TargetID  uuid.UUID `json:"target_id"`
	Damage    float64   `json:"damage"`
	X         float64   `json:"x"`
	Y         float64   `json:"y"`
}

func (HitEvent) EventType() string { return "hit" }

func (e HitEvent) MarshalJSON() ([]byte, error) {
	type alias HitEvent
	return marshalTagged(e.EventType(), alias(e))
}

// KillEvent records a death. KillerID is nil for environmental deaths.
type KillEvent struct {
	KillerID *uuid.UUID `json:"killer_id"`
	VictimID uuid.UUID  `json:"victim_id"`
	Cause    string     `json:"cause"`
}

func (KillEvent) EventType() string { return "kill" }

func (e KillEvent) MarshalJSON() ([]byte, error) {
	type alias KillEvent
	return marshalTagged(e.EventType(), alias(e))
}

// ZoneDamageEvent records one tick of out-of-zone damage.
type ZoneDamageEvent struct {
	UserID uuid.UUID `json:"user_id"`
	Damage float64   `json:"damage"`
}

func (ZoneDamageEvent) EventType() string { return "zone_damage" }

func (e ZoneDamageEvent) MarshalJSON() ([]byte, error) {
	type alias ZoneDamageEvent
	return marshalTagged(e.EventType(), alias(e))
}

// ZoneShrinkEvent records the start of a zone shrink phase.
type ZoneShrinkEvent struct {
	Phase      uint32  `json:"phase"`
	NewCenterX float64 `json:"new_center_x"`
	NewCenterY float64 `json:"new_center_y"`
	NewRadius  float64 `json:"new_radius"`
}

func (ZoneShrinkEvent) EventType() string { return "zone_shrink" }

func (e ZoneShrinkEvent) MarshalJSON() ([]byte, error) {
	type alias ZoneShrinkEvent
	return marshalTagged(e.EventType(), alias(e))
}

// UnmarshalJSON decodes a list of tagged events into their concrete types.
func (evs *GameEvents) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(GameEvents, 0, len(raw))
	for _, r := range raw {
		var head struct {
			EventType string `json:"event_type"`
		}
		if err := json.Unmarshal(r, &head); err != nil {
			return err
		}

		var (
			ev  GameEvent
			err error
		)
		switch head.EventType {
		case "shot":
			var v ShotEvent
			err = json.Unmarshal(r, &v)
			ev = v
		case "hit":
			var v HitEvent
			err = json.Unmarshal(r, &v)
			ev = v
		case "kill":
			var v KillEvent
			err = json.Unmarshal(r, &v)
			ev = v
		case "zone_damage":
			var v ZoneDamageEvent
			err = json.Unmarshal(r, &v)
			ev = v
		case "zone_shrink":
			var v ZoneShrinkEvent
			err = json.Unmarshal(r, &v)
			ev = v
		default:
			return fmt.Errorf("unknown event type %q", head.EventType)
		}
		if err != nil {
			return err
		}
		out = append(out, ev)
	}
	*evs = out
	return nil
}

// marshalTagged marshals v and prepends the event_type discriminator.
func marshalTagged(eventType string, v interface{}) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return injectTag("event_type", eventType, body)
}
