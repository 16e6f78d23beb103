package game

import (
	"math"

	"shipwars/internal/clock"
)

// ShipKinematics is the movable state of one ship.
type ShipKinematics struct {
	X        float64
	Y        float64
	Rotation float64
	VelX     float64
	VelY     float64
}

// StepShip advances one ship by a single fixed timestep. Pure function:
// inputs are clamped, rotation is normalized to [0, 2π), velocity is capped
// at the hull's max speed after drag.
func StepShip(k ShipKinematics, throttle, steer float64, stats ShipStats) ShipKinematics {
	dt := clock.TickDelta()

	throttle = clamp(throttle, -1, 1)
	steer = clamp(steer, -1, 1)

	rot := math.Mod(k.Rotation+steer*stats.TurnRate*dt, 2*math.Pi)
	if rot < 0 {
		rot += 2 * math.Pi
	}

	// Reverse thrust at half power.
	power := throttle * stats.Acceleration
	if throttle < 0 {
		power *= 0.5
	}

	vx := k.VelX + math.Cos(rot)*power*dt
	vy := k.VelY + math.Sin(rot)*power*dt

	vx *= stats.Drag
	vy *= stats.Drag

	if speed := math.Hypot(vx, vy); speed > stats.MaxSpeed {
		scale := stats.MaxSpeed / speed
		vx *= scale
		vy *= scale
	}

	return ShipKinematics{
		X:        k.X + vx*dt,
		Y:        k.Y + vy*dt,
		Rotation: rot,
		VelX:     vx,
		VelY:     vy,
	}
}

// CheckShipCollision reports whether two ship hitboxes overlap.
func CheckShipCollision(x1, y1, r1, x2, y2, r2 float64) bool {
	dx := x2 - x1
	dy := y2 - y1
	combined := r1 + r2
	return dx*dx+dy*dy <= combined*combined
}

// ResolveShipCollision pushes two overlapping ships apart along their
// separation axis, positions only. Coincident ships are offset
// deterministically along the x axis.
func ResolveShipCollision(x1, y1, r1, x2, y2, r2 float64) (nx1, ny1, nx2, ny2 float64) {
	dx := x2 - x1
	dy := y2 - y1
	dist := math.Hypot(dx, dy)

	if dist < 0.001 {
		return x1 - r1, y1, x2 + r2, y2
	}

	overlap := (r1 + r2) - dist
	if overlap <= 0 {
		return x1, y1, x2, y2
	}

	ux := dx / dist
	uy := dy / dist
	push := overlap/2 + 0.1

	return x1 - ux*push, y1 - uy*push, x2 + ux*push, y2 + uy*push
}

// IsInZone reports whether a point lies inside the zone disc.
func IsInZone(x, y, centerX, centerY, radius float64) bool {
	dx := x - centerX
	dy := y - centerY
	return dx*dx+dy*dy <= radius*radius
}

// ZoneDistance returns the signed distance from the zone edge; negative
// values are inside the disc.
func ZoneDistance(x, y, centerX, centerY, radius float64) float64 {
	return math.Hypot(x-centerX, y-centerY) - radius
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
