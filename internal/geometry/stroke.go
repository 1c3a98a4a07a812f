package geometry

import (
	"math"

	"github.com/ivlev/lessonplay/internal/ident"
)

// Stroke defaults used when a drawing event leaves them unset.
const (
	DefaultStrokeColor   = "#1a1a1a"
	DefaultStrokeWidth   = 3.0
	DefaultStrokeOpacity = 1.0
)

// Stroke animation timing.
const (
	strokeBaseSpeed       = 0.4   // px per ms
	strokeComplexityBase  = 1.004 // growth per point
	strokeComplexityLimit = 3.0
	MinStrokeDurationMs   = 200.0
	MaxStrokeDurationMs   = 8000.0
)

// Stroke is an immutable drawn path. Transforms return new values.
type Stroke struct {
	ID      string  `yaml:"id" json:"id"`
	Points  []Point `yaml:"points" json:"points"`
	Color   string  `yaml:"color" json:"color"`
	Width   float64 `yaml:"width" json:"width"`
	Opacity float64 `yaml:"opacity" json:"opacity"`
}

// NewStroke builds a stroke with a fresh ID. Empty color and non-positive
// width fall back to the defaults.
func NewStroke(points []Point, color string, width float64) Stroke {
	if color == "" {
		color = DefaultStrokeColor
	}
	if width <= 0 {
		width = DefaultStrokeWidth
	}
	return Stroke{
		ID:      ident.New(ident.StrokePrefix),
		Points:  clonePoints(points),
		Color:   color,
		Width:   width,
		Opacity: DefaultStrokeOpacity,
	}
}

// Clone returns a deep copy of s with the same identity.
func (s Stroke) Clone() Stroke {
	s.Points = clonePoints(s.Points)
	return s
}

// Length is the arc length of the stroke.
func (s Stroke) Length() float64 {
	return PathLength(s.Points)
}

// StrokeBoundingBox returns the box around the stroke padded by half its
// width. A stroke without points yields the zero box.
func StrokeBoundingBox(s Stroke) BoundingBox {
	if len(s.Points) == 0 {
		return BoundingBox{}
	}
	b := PointsBoundingBox(s.Points)
	pad := s.Width / 2
	return newBox(b.MinX-pad, b.MinY-pad, b.MaxX+pad, b.MaxY+pad)
}

// StrokeProgress returns the prefix of the stroke whose arc length is
// progress × total length. The last point is interpolated on the segment where
// the cut falls. The result keeps the stroke's ID so a renderer can match the
// partial stroke to its finished form.
func StrokeProgress(s Stroke, progress float64) Stroke {
	progress = Clamp01(progress)
	out := s.Clone()
	if len(s.Points) < 2 || progress >= 1 {
		return out
	}

	target := progress * PathLength(s.Points)
	points := []Point{s.Points[0]}
	walked := 0.0
	for i := 1; i < len(s.Points); i++ {
		seg := Distance(s.Points[i-1], s.Points[i])
		if walked+seg >= target {
			t := 0.0
			if seg > 0 {
				t = (target - walked) / seg
			}
			points = append(points, LerpPoint(s.Points[i-1], s.Points[i], t))
			break
		}
		points = append(points, s.Points[i])
		walked += seg
	}
	out.Points = points
	return out
}

// EstimateStrokeAnimationDuration returns how long drawing the stroke should
// take in milliseconds: arc length at a base speed, scaled up for dense
// paths, clamped to [MinStrokeDurationMs, MaxStrokeDurationMs].
func EstimateStrokeAnimationDuration(s Stroke) float64 {
	base := s.Length() / strokeBaseSpeed
	complexity := math.Min(math.Pow(strokeComplexityBase, float64(len(s.Points))), strokeComplexityLimit)
	return Clamp(base*complexity, MinStrokeDurationMs, MaxStrokeDurationMs)
}

// MergeStrokes concatenates the points of all strokes into a new stroke that
// inherits the first stroke's color, width and opacity. Merging nothing yields
// the zero stroke.
func MergeStrokes(strokes ...Stroke) Stroke {
	if len(strokes) == 0 {
		return Stroke{}
	}
	out := strokes[0].Clone()
	out.ID = ident.New(ident.StrokePrefix)
	for _, s := range strokes[1:] {
		out.Points = append(out.Points, s.Points...)
	}
	return out
}

// ScaleStroke scales every point around origin. Width is scaled by the mean
// of the two factors.
func ScaleStroke(s Stroke, origin Point, sx, sy float64) Stroke {
	out := s.Clone()
	out.ID = ident.New(ident.StrokePrefix)
	for i, p := range out.Points {
		out.Points[i] = Point{
			X: origin.X + (p.X-origin.X)*sx,
			Y: origin.Y + (p.Y-origin.Y)*sy,
		}
	}
	out.Width = s.Width * (math.Abs(sx) + math.Abs(sy)) / 2
	return out
}

// TranslateStroke moves every point by (dx, dy).
func TranslateStroke(s Stroke, dx, dy float64) Stroke {
	out := s.Clone()
	out.ID = ident.New(ident.StrokePrefix)
	for i, p := range out.Points {
		out.Points[i] = Point{X: p.X + dx, Y: p.Y + dy}
	}
	return out
}
