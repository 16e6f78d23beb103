package game

import "shipwars/internal/protocol"

// ShipStats are the immutable hull characteristics of a ship class.
type ShipStats struct {
	MaxSpeed     float64
	Acceleration float64
	Drag         float64
	TurnRate     float64
	MaxHealth    float64
	HitboxRadius float64
}

// WeaponStats are the immutable weapon characteristics of a ship class.
type WeaponStats struct {
	Damage             float64
	ProjectileSpeed    float64
	Cooldown           float64
	ProjectileLifetime float64
	ProjectileRadius   float64
}

var shipStats = map[protocol.ShipType]ShipStats{
	protocol.ShipScout: {
		MaxSpeed:     400,
		Acceleration: 300,
		Drag:         0.95,
		TurnRate:     4.0,
		MaxHealth:    60,
		HitboxRadius: 15,
	},
	protocol.ShipFighter: {
		MaxSpeed:     300,
		Acceleration: 250,
		Drag:         0.93,
		TurnRate:     3.0,
		MaxHealth:    100,
		HitboxRadius: 20,
	},
	protocol.ShipCruiser: {
		MaxSpeed:     200,
		Acceleration: 150,
		Drag:         0.90,
		TurnRate:     2.0,
		MaxHealth:    150,
		HitboxRadius: 30,
	},
	protocol.ShipDestroyer: {
		MaxSpeed:     180,
		Acceleration: 120,
		Drag:         0.88,
		TurnRate:     1.5,
		MaxHealth:    120,
		HitboxRadius: 35,
	},
}

var weaponStats = map[protocol.ShipType]WeaponStats{
	protocol.ShipScout: {
		Damage:             8,
		ProjectileSpeed:    600,
		Cooldown:           0.15,
		ProjectileLifetime: 1.5,
		ProjectileRadius:   3,
	},
	protocol.ShipFighter: {
		Damage:             12,
		ProjectileSpeed:    500,
		Cooldown:           0.25,
		ProjectileLifetime: 2.0,
		ProjectileRadius:   4,
	},
	protocol.ShipCruiser: {
		Damage:             15,
		ProjectileSpeed:    400,
		Cooldown:           0.4,
		ProjectileLifetime: 2.5,
		ProjectileRadius:   5,
	},
	protocol.ShipDestroyer: {
		Damage:             25,
		ProjectileSpeed:    350,
		Cooldown:           0.6,
		ProjectileLifetime: 3.0,
		ProjectileRadius:   8,
	},
}

// ShipStatsFor returns the hull stats for a ship class. Unknown classes fall
// back to the default hull.
func ShipStatsFor(t protocol.ShipType) ShipStats {
	if s, ok := shipStats[t]; ok {
		return s
	}
	return shipStats[protocol.DefaultShipType]
}

// WeaponStatsFor returns the weapon stats for a ship class.
func WeaponStatsFor(t protocol.ShipType) WeaponStats {
	if s, ok := weaponStats[t]; ok {
		return s
	}
	return weaponStats[protocol.DefaultShipType]
}
