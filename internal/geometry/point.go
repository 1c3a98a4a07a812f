// Package geometry holds the numeric helpers behind cursor motion and
// progressive drawing: interpolation, path simplification, Bézier curves,
// Catmull-Rom smoothing and arc-length queries.
//
// Every function is total. Degenerate input (empty paths, zero-length
// segments, parameters outside [0, 1]) is clamped, never reported as an error.
package geometry

import "math"

// Point is a 2D coordinate.
type Point struct {
	X float64 `yaml:"x" json:"x"`
	Y float64 `yaml:"y" json:"y"`
}

// Add returns p + q.
func (p Point) Add(q Point) Point { return Point{X: p.X + q.X, Y: p.Y + q.Y} }

// Sub returns p - q.
func (p Point) Sub(q Point) Point { return Point{X: p.X - q.X, Y: p.Y - q.Y} }

// Mul scales p by k.
func (p Point) Mul(k float64) Point { return Point{X: p.X * k, Y: p.Y * k} }

// Distance returns the Euclidean distance between a and b.
func Distance(a, b Point) float64 {
	return math.Hypot(b.X-a.X, b.Y-a.Y)
}

// Lerp interpolates linearly between a and b. t is not clamped.
func Lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// LerpPoint interpolates linearly between two points. t is not clamped.
func LerpPoint(a, b Point, t float64) Point {
	return Point{X: Lerp(a.X, b.X, t), Y: Lerp(a.Y, b.Y, t)}
}

// Clamp01 clamps v into [0, 1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Clamp clamps v into [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Interpolate returns steps+1 evenly spaced points from start to end
// inclusive. steps below 1 is treated as 1.
func Interpolate(start, end Point, steps int) []Point {
	if steps < 1 {
		steps = 1
	}
	points := make([]Point, steps+1)
	for i := 0; i <= steps; i++ {
		points[i] = LerpPoint(start, end, float64(i)/float64(steps))
	}
	return points
}

// clonePoints copies a path so callers never alias each other's storage.
func clonePoints(points []Point) []Point {
	if points == nil {
		return nil
	}
	out := make([]Point, len(points))
	copy(out, points)
	return out
}
