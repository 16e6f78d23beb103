package game

import (
	"math"

	"github.com/google/uuid"

	"shipwars/internal/clock"
)

// MuzzleOffset is how far beyond the shooter's hitbox a projectile spawns,
// so a shot never starts inside its own ship.
const MuzzleOffset = 5.0

// Projectile is a live shot owned by its match.
type Projectile struct {
	ID                uuid.UUID
	OwnerID           uuid.UUID
	X                 float64
	Y                 float64
	VelX              float64
	VelY              float64
	Damage            float64
	Radius            float64
	LifetimeRemaining float64
}

// NewProjectile spawns a projectile travelling along direction (radians).
// The id must come from the match RNG so that replays stay deterministic.
func NewProjectile(id, ownerID uuid.UUID, x, y, direction float64, stats WeaponStats) Projectile {
	return Projectile{
		ID:                id,
		OwnerID:           ownerID,
		X:                 x,
		Y:                 y,
		VelX:              math.Cos(direction) * stats.ProjectileSpeed,
		VelY:              math.Sin(direction) * stats.ProjectileSpeed,
		Damage:            stats.Damage,
		Radius:            stats.ProjectileRadius,
		LifetimeRemaining: stats.ProjectileLifetime,
	}
}

// Step advances the projectile one tick. Returns false once expired.
func (p *Projectile) Step() bool {
	dt := clock.TickDelta()
	p.X += p.VelX * dt
	p.Y += p.VelY * dt
	p.LifetimeRemaining -= dt
	return p.LifetimeRemaining > 0
}

// CheckHit reports whether the projectile overlaps a target hitbox.
func (p *Projectile) CheckHit(targetX, targetY, targetRadius float64) bool {
	dx := p.X - targetX
	dy := p.Y - targetY
	combined := p.Radius + targetRadius
	return dx*dx+dy*dy <= combined*combined
}

// CanFire reports whether a weapon is off cooldown.
func CanFire(weaponCooldown float64) bool {
	return weaponCooldown <= 0
}

// UpdateCooldown decays a weapon cooldown by one tick, floored at zero.
func UpdateCooldown(cooldown float64) float64 {
	return math.Max(0, cooldown-clock.TickDelta())
}

// ApplyDamage subtracts damage from health. killed is true when health
// reaches zero.
func ApplyDamage(health, damage float64) (newHealth float64, killed bool) {
	newHealth = math.Max(0, health-damage)
	return newHealth, newHealth <= 0
}

// ZoneDamagePerTick converts a damage-per-second rate into one tick's worth.
func ZoneDamagePerTick(damagePerSecond float64) float64 {
	return damagePerSecond * clock.TickDelta()
}
