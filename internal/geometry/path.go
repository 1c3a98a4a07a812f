package geometry

import "math"

// SmoothSegmentsPerSpan is the number of sub-points Smooth emits between two
// consecutive input points.
const SmoothSegmentsPerSpan = 8

// BoundingBox is an axis-aligned box.
type BoundingBox struct {
	MinX   float64 `json:"minX"`
	MinY   float64 `json:"minY"`
	MaxX   float64 `json:"maxX"`
	MaxY   float64 `json:"maxY"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// PathLength sums the distances between consecutive points.
func PathLength(points []Point) float64 {
	total := 0.0
	for i := 1; i < len(points); i++ {
		total += Distance(points[i-1], points[i])
	}
	return total
}

// PointAtDistance walks the polyline and returns the point at the given arc
// length. Distances below zero return the first point, distances past the end
// return the last one. An empty path yields the origin.
func PointAtDistance(points []Point, target float64) Point {
	switch len(points) {
	case 0:
		return Point{}
	case 1:
		return points[0]
	}
	if target <= 0 || math.IsNaN(target) {
		return points[0]
	}

	walked := 0.0
	for i := 1; i < len(points); i++ {
		seg := Distance(points[i-1], points[i])
		if walked+seg >= target {
			if seg == 0 {
				return points[i]
			}
			return LerpPoint(points[i-1], points[i], (target-walked)/seg)
		}
		walked += seg
	}
	return points[len(points)-1]
}

// PointAtProgress is PointAtDistance with the distance expressed as a
// fraction of the total path length.
func PointAtProgress(points []Point, progress float64) Point {
	return PointAtDistance(points, Clamp01(progress)*PathLength(points))
}

// SimplifyPath reduces a polyline with the Ramer-Douglas-Peucker algorithm.
// Paths of two points or fewer are returned unchanged (as a copy).
func SimplifyPath(points []Point, tolerance float64) []Point {
	if len(points) <= 2 {
		return clonePoints(points)
	}

	first, last := points[0], points[len(points)-1]
	maxDist := 0.0
	index := 0
	for i := 1; i < len(points)-1; i++ {
		d := PerpendicularDistance(points[i], first, last)
		if d > maxDist {
			maxDist = d
			index = i
		}
	}

	if maxDist > tolerance {
		left := SimplifyPath(points[:index+1], tolerance)
		right := SimplifyPath(points[index:], tolerance)
		// the split point appears at the end of left and the start of right
		return append(left[:len(left)-1], right...)
	}
	return []Point{first, last}
}

// PerpendicularDistance returns the distance from p to the line through a and
// b. When a and b coincide it degrades to the distance from p to a.
func PerpendicularDistance(p, a, b Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	length := math.Hypot(dx, dy)
	if length == 0 {
		return Distance(p, a)
	}
	return math.Abs(dy*p.X-dx*p.Y+b.X*a.Y-b.Y*a.X) / length
}

// Smooth runs a cardinal (Catmull-Rom for tension 0.5) spline through the
// points and returns the densified path. Control points are clamped at both
// ends. Inputs with fewer than three points pass through unchanged.
func Smooth(points []Point, tension float64) []Point {
	if len(points) < 3 {
		return clonePoints(points)
	}

	n := len(points)
	out := make([]Point, 0, (n-1)*SmoothSegmentsPerSpan+1)
	out = append(out, points[0])

	for i := 0; i < n-1; i++ {
		p0 := points[max(i-1, 0)]
		p1 := points[i]
		p2 := points[i+1]
		p3 := points[min(i+2, n-1)]

		m1 := p2.Sub(p0).Mul(tension)
		m2 := p3.Sub(p1).Mul(tension)

		for s := 1; s <= SmoothSegmentsPerSpan; s++ {
			t := float64(s) / float64(SmoothSegmentsPerSpan)
			out = append(out, hermite(p1, p2, m1, m2, t))
		}
	}
	return out
}

// hermite evaluates the cubic Hermite basis.
func hermite(p1, p2, m1, m2 Point, t float64) Point {
	t2 := t * t
	t3 := t2 * t
	h00 := 2*t3 - 3*t2 + 1
	h10 := t3 - 2*t2 + t
	h01 := -2*t3 + 3*t2
	h11 := t3 - t2
	return Point{
		X: h00*p1.X + h10*m1.X + h01*p2.X + h11*m2.X,
		Y: h00*p1.Y + h10*m1.Y + h01*p2.Y + h11*m2.Y,
	}
}

// PointsBoundingBox returns the bounding box of the points. Empty input yields
// the zero box at the origin; callers that need to tell it apart from a real
// degenerate box must check the input length.
func PointsBoundingBox(points []Point) BoundingBox {
	if len(points) == 0 {
		return BoundingBox{}
	}
	minX, minY := points[0].X, points[0].Y
	maxX, maxY := minX, minY
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return newBox(minX, minY, maxX, maxY)
}

func newBox(minX, minY, maxX, maxY float64) BoundingBox {
	return BoundingBox{
		MinX:   minX,
		MinY:   minY,
		MaxX:   maxX,
		MaxY:   maxY,
		Width:  maxX - minX,
		Height: maxY - minY,
	}
}
