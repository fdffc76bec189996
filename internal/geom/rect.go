// Package geom provides the small vector/rect math the tracking and gimbal
// logic needs: normalized camera-space rectangles and 2D vectors.
package geom

import "math"

// Vector2 is a 2-component float vector, used for gimbal rates and manual
// camera axes.
type Vector2 [2]float32

// Vector3 is a 3-component float vector, used for gimbal angles, IMU
// readings and manual relative motion.
type Vector3 [3]float32

// Rect is a rectangle in normalized camera coordinates: [x, y, w, h] with
// horizontal extent in [-1,1], Y+ down.
type Rect [4]float32

func (r Rect) X() float32      { return r[0] }
func (r Rect) Y() float32      { return r[1] }
func (r Rect) W() float32      { return r[2] }
func (r Rect) H() float32      { return r[3] }
func (r Rect) Area() float32   { return r[2] * r[3] }
func (r Rect) IsEmpty() bool   { return r[2] <= 0 || r[3] <= 0 }

// Center returns the rectangle's center point.
func (r Rect) Center() Vector2 {
	return Vector2{r[0] + r[2]/2, r[1] + r[3]/2}
}

// Translate returns a copy of r recentered on the given point.
func (r Rect) Translate(center Vector2) Rect {
	return Rect{center[0] - r[2]/2, center[1] - r[3]/2, r[2], r[3]}
}

// Constrain clamps r so that it lies entirely within bound, preserving r's
// size when it fits and shrinking it otherwise.
func Constrain(r, bound Rect) Rect {
	w := r[2]
	h := r[3]
	if w > bound[2] {
		w = bound[2]
	}
	if h > bound[3] {
		h = bound[3]
	}

	x := r[0]
	y := r[1]
	if x < bound[0] {
		x = bound[0]
	}
	if x+w > bound[0]+bound[2] {
		x = bound[0] + bound[2] - w
	}
	if y < bound[1] {
		y = bound[1]
	}
	if y+h > bound[1]+bound[3] {
		y = bound[1] + bound[3] - h
	}

	return Rect{x, y, w, h}
}

// Intersect returns the overlapping region of a and b, or a zero-area rect
// if they do not overlap.
func Intersect(a, b Rect) Rect {
	x0 := maxf(a[0], b[0])
	y0 := maxf(a[1], b[1])
	x1 := minf(a[0]+a[2], b[0]+b[2])
	y1 := minf(a[1]+a[3], b[1]+b[3])
	if x1 <= x0 || y1 <= y0 {
		return Rect{}
	}
	return Rect{x0, y0, x1 - x0, y1 - y0}
}

func maxf(a, b float32) float32 {
	return float32(math.Max(float64(a), float64(b)))
}

func minf(a, b float32) float32 {
	return float32(math.Min(float64(a), float64(b)))
}

// AddScaled returns a + b*scale, componentwise.
func (v Vector2) AddScaled(b Vector2, scale Vector2) Vector2 {
	return Vector2{v[0] + b[0]*scale[0], v[1] + b[1]*scale[1]}
}

// Mul returns the componentwise product a*b.
func (v Vector2) Mul(b Vector2) Vector2 {
	return Vector2{v[0] * b[0], v[1] * b[1]}
}

// Len returns the Euclidean length of v.
func (v Vector2) Len() float32 {
	return float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1])))
}

func clampf(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Clamp returns v clamped to [lo,hi].
func Clamp(v, lo, hi float32) float32 {
	return clampf(v, lo, hi)
}

// Lerp performs a one-pole IIR update: result moves from prev toward target
// by param in [0,1] (0 = no movement, 1 = snap to target).
func Lerp(prev, target, param float32) float32 {
	return prev + (target-prev)*param
}
