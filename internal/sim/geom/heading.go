package geom

import (
	"fmt"
	"math"
)

// Heading is a cardinal growth direction stored as quarter turns
// counter-clockwise from North, normalized to [0,3].
//
// Segment placement and junction geometry are only correct for axis-aligned
// growth, so the cursor and segments never carry any other direction.
type Heading int

const (
	North Heading = iota // (0,0,-1)
	West                 // (-1,0,0)
	South                // (0,0,1)
	East                 // (1,0,0)
)

// Direction is the side of a fork. The values double as the lateral sign
// used by junction geometry.
type Direction int

const (
	Left  Direction = -1
	Right Direction = 1
)

func (d Direction) String() string {
	switch d {
	case Left:
		return "LEFT"
	case Right:
		return "RIGHT"
	default:
		return fmt.Sprintf("Direction(%d)", int(d))
	}
}

// NormalizeHeading converts any quarter-turn count into [0,3].
func NormalizeHeading(q int) Heading {
	q %= 4
	if q < 0 {
		q += 4
	}
	return Heading(q)
}

// Turn rotates h a quarter turn toward d.
func (h Heading) Turn(d Direction) Heading {
	if d == Left {
		return NormalizeHeading(int(h) + 1)
	}
	return NormalizeHeading(int(h) - 1)
}

// Vector returns the exact unit vector; components are always -1, 0 or 1.
func (h Heading) Vector() Vec3 {
	switch NormalizeHeading(int(h)) {
	case North:
		return Vec3{Z: -1}
	case West:
		return Vec3{X: -1}
	case South:
		return Vec3{Z: 1}
	default:
		return Vec3{X: 1}
	}
}

// Yaw is the heading as a rotation angle about the vertical axis.
func (h Heading) Yaw() float64 {
	return float64(NormalizeHeading(int(h))) * (math.Pi / 2)
}

func (h Heading) String() string {
	switch NormalizeHeading(int(h)) {
	case North:
		return "N"
	case West:
		return "W"
	case South:
		return "S"
	default:
		return "E"
	}
}

const snapEpsilon = 1e-6

// SnapCardinal re-snaps a horizontal direction to the exact cardinal it
// approximates. Anything not within snapEpsilon of a cardinal is an error.
func SnapCardinal(v Vec3) (Heading, error) {
	n := v.Normalize()
	for _, h := range []Heading{North, West, South, East} {
		c := h.Vector()
		if math.Abs(n.X-c.X) < snapEpsilon && math.Abs(n.Z-c.Z) < snapEpsilon && math.Abs(n.Y) < snapEpsilon {
			return h, nil
		}
	}
	return North, fmt.Errorf("geom: %v is not a cardinal direction", v)
}
