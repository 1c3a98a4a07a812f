// Package builder turns duration-annotated explanation blocks into the
// cursor, drawing, text, highlight and narration tracks the playback engine
// consumes. Blocks are laid out top to bottom on a virtual page.
package builder

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/ivlev/lessonplay/internal/config"
	"github.com/ivlev/lessonplay/internal/explanation"
	"github.com/ivlev/lessonplay/internal/geometry"
	"github.com/ivlev/lessonplay/internal/timeline"
)

const (
	headingScale   = 1.5
	underlineGap   = 6.0
	equationPad    = 10.0
	noteIndent     = 16.0
	cursorArc      = 0.15 // arc height as a fraction of the move distance
	cursorTension  = 0.5
	equationColor  = "#2c6fbb"
	noteColor      = "#c0392b"
	headingStrokeW = 4.0
)

// Builder lays out blocks on a page of the configured size.
type Builder struct {
	Layout config.Builder
}

// New creates a Builder. Out-of-range layout values are replaced by the
// defaults.
func New(layout config.Builder) *Builder {
	return &Builder{Layout: layout.Normalized()}
}

// Placement records where and when a block appears.
type Placement struct {
	Block     explanation.Block
	Box       geometry.BoundingBox
	Page      int
	StartTime float64
	EndTime   float64
}

// Result is a built timeline plus the layout that produced it.
type Result struct {
	timeline.BuildResult
	Title      string
	Placements []Placement
}

// Build converts blocks into tracks. Each block gets a cursor move to its
// anchor followed by a writing pass, a text event, a narration event and,
// depending on its type, an emphasis stroke and a highlight. Events of one
// track never overlap.
func (b *Builder) Build(blocks []explanation.Block) Result {
	var (
		cursor, drawing, text, highlight, narrate []timeline.Event
		placements                                []Placement
		title                                     string
	)

	l := b.Layout
	y := l.Margin
	page := 0
	pos := geometry.Point{X: l.Margin, Y: l.Margin}
	now := 0.0

	for _, block := range blocks {
		if block.Duration() <= 0 {
			continue
		}
		lines := b.wrap(block)
		lineHeight := l.LineHeight
		if block.Type == explanation.BlockHeading {
			lineHeight *= headingScale
			if title == "" {
				title = block.Content
			}
		}
		height := float64(len(lines)) * lineHeight

		if y+height > float64(l.ViewportHeight)-l.Margin && y > l.Margin {
			page++
			y = l.Margin
		}

		box := b.box(lines, y, height)
		anchor := geometry.Point{X: box.MinX, Y: y + lineHeight/2}

		move := cursorPath(pos, anchor)
		if len(move) > 1 && l.CursorMoveMs > 0 {
			cursor = append(cursor, timeline.CursorMove(now, now+l.CursorMoveMs, move...))
			now += l.CursorMoveMs
		}

		start := now
		end := start + block.Duration()

		writing := writingPath(lines, box.MinX, y, lineHeight, l.CharWidth)
		cursor = append(cursor, timeline.CursorMove(start, end, writing...))
		pos = writing[len(writing)-1]

		text = append(text, timeline.NewEvent(timeline.EventTextHighlight, start, end, timeline.Payload{
			Text:     block.Text(),
			Position: &anchor,
		}))

		narrationEnd := math.Min(start+block.NarrationMs, end)
		if narrationEnd > start {
			narrate = append(narrate, timeline.NarrationSegment(start, narrationEnd, block.Text(), ""))
		}

		if stroke, ok := emphasis(block.Type, box); ok {
			d := math.Min(geometry.EstimateStrokeAnimationDuration(stroke), end-start)
			drawing = append(drawing, timeline.DrawStroke(start, start+d, stroke.Points, stroke.Color, stroke.Width))
		}

		if block.Type == explanation.BlockNote || block.Type == explanation.BlockEquation {
			highlight = append(highlight, timeline.NewEvent(timeline.EventTextHighlight, start, end, timeline.Payload{
				Text:     block.Text(),
				Position: &anchor,
			}))
		}

		placements = append(placements, Placement{Block: block, Box: box, Page: page, StartTime: start, EndTime: end})

		y += height + l.LineHeight/2
		now = end + l.BlockGapMs
	}

	tracks := []timeline.Track{
		timeline.NewTrack(timeline.TrackCursor, cursor...),
		timeline.NewTrack(timeline.TrackDrawing, drawing...),
		timeline.NewTrack(timeline.TrackText, text...),
		timeline.NewTrack(timeline.TrackHighlight, highlight...),
		timeline.NewTrack(timeline.TrackNarration, narrate...),
	}

	return Result{
		BuildResult: timeline.Build(tracks),
		Title:       title,
		Placements:  placements,
	}
}

// wrap breaks the block text into lines that fit the usable page width.
// Bullets start a new line per item.
func (b *Builder) wrap(block explanation.Block) []string {
	usable := float64(b.Layout.ViewportWidth) - 2*b.Layout.Margin
	perLine := max(int(usable/b.Layout.CharWidth), 1)

	var paragraphs []string
	switch block.Type {
	case explanation.BlockBullets:
		if block.Content != "" {
			paragraphs = append(paragraphs, block.Content)
		}
		for _, item := range block.Items {
			paragraphs = append(paragraphs, "• "+item)
		}
	case explanation.BlockCode:
		paragraphs = strings.Split(block.Content, "\n")
	default:
		paragraphs = []string{block.Content}
	}

	var lines []string
	for _, p := range paragraphs {
		lines = append(lines, wrapWords(p, perLine)...)
	}
	if len(lines) == 0 {
		lines = []string{""}
	}
	return lines
}

func wrapWords(s string, perLine int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		if utf8.RuneCountInString(line)+1+utf8.RuneCountInString(w) > perLine {
			lines = append(lines, line)
			line = w
			continue
		}
		line += " " + w
	}
	return append(lines, line)
}

func (b *Builder) box(lines []string, y, height float64) geometry.BoundingBox {
	widest := 0
	for _, line := range lines {
		widest = max(widest, utf8.RuneCountInString(line))
	}
	x := b.Layout.Margin
	w := float64(widest) * b.Layout.CharWidth
	return geometry.PointsBoundingBox([]geometry.Point{{X: x, Y: y}, {X: x + w, Y: y + height}})
}

// cursorPath arcs slightly between two points so cursor travel reads as a
// hand movement rather than a straight slide.
func cursorPath(from, to geometry.Point) []geometry.Point {
	dist := geometry.Distance(from, to)
	if dist == 0 {
		return nil
	}
	mid := geometry.LerpPoint(from, to, 0.5)
	dir := to.Sub(from).Mul(1 / dist)
	normal := geometry.Point{X: -dir.Y, Y: dir.X}
	ctrl := mid.Add(normal.Mul(dist * cursorArc))
	return geometry.Smooth([]geometry.Point{from, ctrl, to}, cursorTension)
}

// writingPath sweeps left to right along every line.
func writingPath(lines []string, x, y, lineHeight, charWidth float64) []geometry.Point {
	var path []geometry.Point
	for i, line := range lines {
		ly := y + float64(i)*lineHeight + lineHeight/2
		w := float64(utf8.RuneCountInString(line)) * charWidth
		steps := max(utf8.RuneCountInString(line)/8, 1)
		path = append(path, geometry.Interpolate(geometry.Point{X: x, Y: ly}, geometry.Point{X: x + w, Y: ly}, steps)...)
	}
	return path
}

// emphasis returns the stroke drawn alongside a block, if its type has one.
func emphasis(typ explanation.BlockType, box geometry.BoundingBox) (geometry.Stroke, bool) {
	switch typ {
	case explanation.BlockHeading:
		ly := box.MaxY + underlineGap
		wobble := geometry.Point{X: box.MinX + box.Width/2, Y: ly + 1.5}
		path := geometry.Smooth([]geometry.Point{{X: box.MinX, Y: ly}, wobble, {X: box.MaxX, Y: ly}}, cursorTension)
		return geometry.NewStroke(path, "", headingStrokeW), true

	case explanation.BlockEquation:
		minX, minY := box.MinX-equationPad, box.MinY-equationPad
		maxX, maxY := box.MaxX+equationPad, box.MaxY+equationPad
		path := []geometry.Point{{X: minX, Y: minY}, {X: maxX, Y: minY}, {X: maxX, Y: maxY}, {X: minX, Y: maxY}, {X: minX, Y: minY}}
		return geometry.NewStroke(path, equationColor, 0), true

	case explanation.BlockNote:
		x := box.MinX - noteIndent/2
		return geometry.NewStroke(geometry.Interpolate(geometry.Point{X: x, Y: box.MinY}, geometry.Point{X: x, Y: box.MaxY}, 4), noteColor, 0), true
	}
	return geometry.Stroke{}, false
}
