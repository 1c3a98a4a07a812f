package geometry

// CubicBezier is a cubic Bézier curve.
type CubicBezier struct {
	Start    Point `yaml:"start" json:"start"`
	Control1 Point `yaml:"control1" json:"control1"`
	Control2 Point `yaml:"control2" json:"control2"`
	End      Point `yaml:"end" json:"end"`
}

// Evaluate returns the point at parameter t using the Bernstein form.
// t is clamped to [0, 1].
func (c CubicBezier) Evaluate(t float64) Point {
	t = Clamp01(t)
	switch t {
	case 0:
		return c.Start
	case 1:
		return c.End
	}
	mt := 1 - t
	a := mt * mt * mt
	b := 3 * mt * mt * t
	d := 3 * mt * t * t
	e := t * t * t
	return Point{
		X: a*c.Start.X + b*c.Control1.X + d*c.Control2.X + e*c.End.X,
		Y: a*c.Start.Y + b*c.Control1.Y + d*c.Control2.Y + e*c.End.Y,
	}
}

// Split divides the curve at t with De Casteljau's algorithm. The two halves
// together trace the original curve.
func (c CubicBezier) Split(t float64) (CubicBezier, CubicBezier) {
	t = Clamp01(t)
	p01 := LerpPoint(c.Start, c.Control1, t)
	p12 := LerpPoint(c.Control1, c.Control2, t)
	p23 := LerpPoint(c.Control2, c.End, t)
	p012 := LerpPoint(p01, p12, t)
	p123 := LerpPoint(p12, p23, t)
	mid := LerpPoint(p012, p123, t)

	return CubicBezier{Start: c.Start, Control1: p01, Control2: p012, End: mid},
		CubicBezier{Start: mid, Control1: p123, Control2: p23, End: c.End}
}

// Flatten samples the curve uniformly into segments+1 points.
func (c CubicBezier) Flatten(segments int) []Point {
	if segments < 1 {
		segments = 1
	}
	points := make([]Point, segments+1)
	for i := 0; i <= segments; i++ {
		points[i] = c.Evaluate(float64(i) / float64(segments))
	}
	return points
}

// EvaluateBezier is the free-function form of CubicBezier.Evaluate.
func EvaluateBezier(c CubicBezier, t float64) Point { return c.Evaluate(t) }

// SplitBezier is the free-function form of CubicBezier.Split.
func SplitBezier(c CubicBezier, t float64) (CubicBezier, CubicBezier) { return c.Split(t) }

// FlattenBezier is the free-function form of CubicBezier.Flatten.
func FlattenBezier(c CubicBezier, segments int) []Point { return c.Flatten(segments) }
