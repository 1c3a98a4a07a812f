// Package preview rasterizes playback snapshots into RGBA frames. It is a
// debug renderer for exports and visual checks, not a production renderer:
// it draws strokes, the cursor, revealed text and a narration caption bar.
package preview

import (
	"image"
	"image/color"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/ivlev/lessonplay/internal/geometry"
	"github.com/ivlev/lessonplay/internal/narration"
	"github.com/ivlev/lessonplay/internal/playback"
	"github.com/ivlev/lessonplay/internal/system"
	"github.com/ivlev/lessonplay/internal/timeline"
)

var (
	background   = color.RGBA{0xfb, 0xfa, 0xf5, 0xff}
	textColor    = color.RGBA{0x22, 0x22, 0x22, 0xff}
	captionBg    = color.RGBA{0x10, 0x10, 0x10, 0xd0}
	wordPast     = color.RGBA{0xcc, 0xcc, 0xcc, 0xff}
	wordCurrent  = color.RGBA{0xff, 0xd5, 0x4f, 0xff}
	wordFuture   = color.RGBA{0x77, 0x77, 0x77, 0xff}
	cursorColors = map[playback.CursorStyle]color.RGBA{
		playback.CursorPointer: {0xd0, 0x30, 0x30, 0xff},
		playback.CursorDrawing: {0x2c, 0x6f, 0xbb, 0xff},
		playback.CursorWriting: {0x2e, 0x8b, 0x57, 0xff},
	}
)

const (
	cursorRadius = 6.0
	captionLines = 2
	lineSpacing  = 4
)

// Options size the output frame. The page is the virtual layout space the
// builder placed content in.
type Options struct {
	Width, Height         int
	PageWidth, PageHeight int
	Logger                *slog.Logger
}

// Renderer draws snapshots of one timeline. It indexes the text and drawing
// events once so frames can show what was written earlier on the same page.
type Renderer struct {
	opts   Options
	scale  float64
	face   font.Face
	logger *slog.Logger

	texts     []timeline.Event // visible text events by start time
	pageOf    []int            // page index of texts[i]
	starts    map[string]float64
	narration map[string]timeline.Event
}

// NewRenderer indexes tracks for rendering at the given size.
func NewRenderer(tracks []timeline.Track, opts Options) *Renderer {
	if opts.PageWidth <= 0 || opts.PageHeight <= 0 {
		opts.PageWidth, opts.PageHeight = opts.Width, opts.Height
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	r := &Renderer{
		opts:      opts,
		scale:     float64(opts.Width) / float64(opts.PageWidth),
		face:      basicfont.Face7x13,
		logger:    opts.Logger.With("component", "preview"),
		starts:    make(map[string]float64),
		narration: make(map[string]timeline.Event),
	}

	for _, tr := range tracks {
		if !tr.Visible {
			continue
		}
		for _, ev := range tr.Events {
			switch tr.Type {
			case timeline.TrackText:
				if ev.Payload.Position != nil {
					r.texts = append(r.texts, ev.Clone())
				}
			case timeline.TrackDrawing:
				r.starts[ev.ID] = ev.StartTime
			case timeline.TrackNarration:
				r.narration[ev.ID] = ev.Clone()
			}
		}
	}
	sort.SliceStable(r.texts, func(i, j int) bool { return r.texts[i].StartTime < r.texts[j].StartTime })

	// A text placed above its predecessor starts a new page.
	page := 0
	r.pageOf = make([]int, len(r.texts))
	for i, ev := range r.texts {
		if i > 0 && ev.Payload.Position.Y < r.texts[i-1].Payload.Position.Y {
			page++
		}
		r.pageOf[i] = page
	}
	r.logger.Debug("indexed timeline", "texts", len(r.texts), "pages", page+1, "strokes", len(r.starts))
	return r
}

// Bounds is the frame rectangle.
func (r *Renderer) Bounds() image.Rectangle {
	return image.Rect(0, 0, r.opts.Width, r.opts.Height)
}

// Render draws snap into a pooled frame. Callers hand the frame back with
// system.PutFrame once done with it.
func (r *Renderer) Render(snap playback.Snapshot) *image.RGBA {
	img := system.GetFrame(r.Bounds())
	r.RenderInto(img, snap)
	return img
}

// RenderInto draws snap over the whole of img.
func (r *Renderer) RenderInto(img *image.RGBA, snap playback.Snapshot) {
	c := newCanvas(img, r.scale)
	c.fill(background)

	now := snap.CurrentTime
	pageStart, visibleTexts := r.page(now)

	for _, s := range snap.Drawing.CompletedStrokes {
		if start, ok := r.starts[s.ID]; ok && start < pageStart {
			continue
		}
		r.stroke(c, s)
	}
	if s := snap.Drawing.ActiveStroke; s != nil {
		r.stroke(c, *s)
	}

	for _, ev := range visibleTexts {
		r.text(img, ev, playback.LocalProgress(ev, now))
	}

	if snap.Narration.Active {
		r.caption(img, snap.Narration.SegmentID, now)
	}

	if snap.Cursor.Visible {
		col := cursorColors[snap.Cursor.Style]
		c.dot(snap.Cursor.Position, cursorRadius, col)
	}
}

// page returns the start time of the page shown at now and the text events
// started on it so far.
func (r *Renderer) page(now float64) (float64, []timeline.Event) {
	current := -1
	for i, ev := range r.texts {
		if ev.StartTime > now {
			break
		}
		current = i
	}
	if current < 0 {
		return 0, nil
	}

	first := current
	for first > 0 && r.pageOf[first-1] == r.pageOf[current] {
		first--
	}
	return r.texts[first].StartTime, r.texts[first : current+1]
}

func (r *Renderer) stroke(c *canvas, s geometry.Stroke) {
	col := withOpacity(ParseColor(s.Color, textColor), s.Opacity)
	c.polyline(s.Points, s.Width, col)
}

// text reveals the event's text character by character with progress.
func (r *Renderer) text(img *image.RGBA, ev timeline.Event, progress float64) {
	runes := []rune(ev.Payload.Text)
	shown := string(runes[:int(float64(len(runes))*geometry.Clamp01(progress))])
	if shown == "" {
		return
	}

	pos := ev.Payload.Position
	x := int(pos.X * r.scale)
	y := int(pos.Y * r.scale)
	maxWidth := r.opts.Width - x - int(float64(r.opts.Width)*0.05)
	lineHeight := r.face.Metrics().Height.Ceil() + lineSpacing

	for i, line := range wrap(r.face, shown, maxWidth) {
		r.drawString(img, line, x, y+i*lineHeight, textColor)
	}
}

// caption draws the narration segment at the bottom with the spoken word
// highlighted.
func (r *Renderer) caption(img *image.RGBA, segmentID string, now float64) {
	ev, ok := r.narration[segmentID]
	if !ok {
		return
	}
	seg := narration.Segment{
		ID:        ev.ID,
		Text:      ev.Payload.Text,
		StartTime: ev.StartTime,
		EndTime:   ev.EndTime,
		Words:     narration.EstimateWordTimings(ev.Payload.Text, ev.StartTime, ev.EndTime),
	}
	words := narration.HighlightWords(seg, now)
	if len(words) == 0 {
		return
	}

	lineHeight := r.face.Metrics().Height.Ceil() + lineSpacing
	barHeight := captionLines*lineHeight + 2*lineSpacing
	bar := image.Rect(0, r.opts.Height-barHeight, r.opts.Width, r.opts.Height)
	newCanvas(img, r.scale).rect(bar, captionBg)

	// Keep the current word in view: show the line that contains it.
	space := font.MeasureString(r.face, " ").Ceil()
	margin := r.opts.Width / 40
	x, line := margin, 0
	type placed struct {
		w    narration.HighlightedWord
		x    int
		line int
	}
	var laid []placed
	currentLine := 0
	for _, w := range words {
		width := font.MeasureString(r.face, w.Word).Ceil()
		if x+width > r.opts.Width-margin && x > margin {
			x, line = margin, line+1
		}
		laid = append(laid, placed{w: w, x: x, line: line})
		if w.State != narration.WordFuture {
			currentLine = line
		}
		x += width + space
	}

	firstLine := max(currentLine-captionLines+1, 0)
	baseY := bar.Min.Y + lineSpacing + r.face.Metrics().Ascent.Ceil()
	for _, p := range laid {
		if p.line < firstLine || p.line >= firstLine+captionLines {
			continue
		}
		col := wordFuture
		switch p.w.State {
		case narration.WordPast:
			col = wordPast
		case narration.WordCurrent:
			col = wordCurrent
		}
		r.drawString(img, p.w.Word, p.x, baseY+(p.line-firstLine)*lineHeight, col)
	}
}

func (r *Renderer) drawString(img *image.RGBA, s string, x, y int, col color.Color) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(col),
		Face: r.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

// wrap splits s into lines no wider than maxWidth pixels. Single words
// longer than a line are kept whole.
func wrap(face font.Face, s string, maxWidth int) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return nil
	}
	var lines []string
	line := words[0]
	for _, w := range words[1:] {
		candidate := line + " " + w
		if font.MeasureString(face, candidate).Ceil() > maxWidth && utf8.RuneCountInString(line) > 0 {
			lines = append(lines, line)
			line = w
			continue
		}
		line = candidate
	}
	return append(lines, line)
}
