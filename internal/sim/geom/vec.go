package geom

import "math"

// Vec3 is a world or local point. Y is the vertical axis.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

var Up = Vec3{Y: 1}

func (a Vec3) Add(b Vec3) Vec3 { return Vec3{X: a.X + b.X, Y: a.Y + b.Y, Z: a.Z + b.Z} }
func (a Vec3) Sub(b Vec3) Vec3 { return Vec3{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z} }
func (a Vec3) Scale(s float64) Vec3 {
	return Vec3{X: a.X * s, Y: a.Y * s, Z: a.Z * s}
}
func (a Vec3) Dot(b Vec3) float64 { return a.X*b.X + a.Y*b.Y + a.Z*b.Z }

func (a Vec3) Cross(b Vec3) Vec3 {
	return Vec3{
		X: a.Y*b.Z - a.Z*b.Y,
		Y: a.Z*b.X - a.X*b.Z,
		Z: a.X*b.Y - a.Y*b.X,
	}
}

func (a Vec3) Len() float64 { return math.Sqrt(a.Dot(a)) }

func (a Vec3) Dist(b Vec3) float64 { return a.Sub(b).Len() }

// Normalize returns the unit vector of a, or the zero vector when a has no length.
func (a Vec3) Normalize() Vec3 {
	l := a.Len()
	if l == 0 {
		return Vec3{}
	}
	return a.Scale(1 / l)
}

// RotateY rotates a around the vertical axis by angle radians,
// counter-clockwise when seen from above (positive angle turns -Z toward -X).
func (a Vec3) RotateY(angle float64) Vec3 {
	s, c := math.Sincos(angle)
	return Vec3{
		X: a.X*c + a.Z*s,
		Y: a.Y,
		Z: -a.X*s + a.Z*c,
	}
}

// Forward is the horizontal facing direction for a free yaw.
func Forward(yaw float64) Vec3 {
	s, c := math.Sincos(yaw)
	return Vec3{X: -s, Z: -c}
}

// NormalizeAngle maps a into (-π, π].
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2*math.Pi)
	if a <= -math.Pi {
		a += 2 * math.Pi
	} else if a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// NearestQuarter returns the multiple of π/2 closest to yaw.
func NearestQuarter(yaw float64) float64 {
	return math.Round(yaw/(math.Pi/2)) * (math.Pi / 2)
}

func Lerp(a, b, t float64) float64 { return a + (b-a)*t }

func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
