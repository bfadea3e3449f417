package grid

import "math"

// Vec2 is a 2D world-space vector.
type Vec2 struct {
	X, Y float32
}

// Add returns v + o.
func (v Vec2) Add(o Vec2) Vec2 {
	return Vec2{v.X + o.X, v.Y + o.Y}
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{v.X - o.X, v.Y - o.Y}
}

// Scale returns v scaled by s.
func (v Vec2) Scale(s float32) Vec2 {
	return Vec2{v.X * s, v.Y * s}
}

// Dot returns the dot product of v and o.
func (v Vec2) Dot(o Vec2) float32 {
	return v.X*o.X + v.Y*o.Y
}

// Length returns the magnitude of v.
func (v Vec2) Length() float32 {
	return float32(math.Sqrt(float64(v.X*v.X + v.Y*v.Y)))
}

// Normalized returns v scaled to unit length, or the zero vector if v is
// too short to normalize.
func (v Vec2) Normalized() Vec2 {
	l := v.Length()
	if l < 1e-6 {
		return Vec2{}
	}
	return Vec2{v.X / l, v.Y / l}
}

// IsZero reports whether v has negligible magnitude.
func (v Vec2) IsZero() bool {
	return v.X*v.X+v.Y*v.Y < 1e-12
}
