package builder

import (
	"testing"

	"github.com/ivlev/lessonplay/internal/config"
	"github.com/ivlev/lessonplay/internal/explanation"
	"github.com/ivlev/lessonplay/internal/timeline"
)

const lessonText = `# Fractions

A fraction describes a part of a whole.

1. Find a common denominator
2. Add the numerators

$$\frac{1}{2} + \frac{1}{3} = \frac{5}{6}$$

Note: always simplify the result.`

func TestBuild(t *testing.T) {
	b := New(config.Default().Builder)
	blocks := explanation.Parse(lessonText)
	res := b.Build(blocks)

	if res.Title != "Fractions" {
		t.Errorf("expected title from first heading, got %q", res.Title)
	}
	if len(res.Placements) != len(blocks) {
		t.Fatalf("expected %d placements, got %d", len(blocks), len(res.Placements))
	}
	if res.HasErrors() {
		t.Fatalf("built timeline has errors: %+v", res.Issues)
	}

	byType := map[timeline.TrackType]timeline.Track{}
	for _, tr := range res.Tracks {
		byType[tr.Type] = tr
	}

	if got := len(byType[timeline.TrackText].Events); got != len(blocks) {
		t.Errorf("expected one text event per block, got %d", got)
	}
	if got := len(byType[timeline.TrackNarration].Events); got != len(blocks) {
		t.Errorf("expected one narration event per block, got %d", got)
	}
	// heading underline, equation box, note bracket
	if got := len(byType[timeline.TrackDrawing].Events); got != 3 {
		t.Errorf("expected 3 strokes, got %d", got)
	}
	if got := len(byType[timeline.TrackHighlight].Events); got != 2 {
		t.Errorf("expected 2 highlights, got %d", got)
	}
	// move + writing pass per block
	if got := len(byType[timeline.TrackCursor].Events); got != 2*len(blocks) {
		t.Errorf("expected %d cursor events, got %d", 2*len(blocks), got)
	}

	last := res.Placements[len(res.Placements)-1]
	if res.Duration != last.EndTime {
		t.Errorf("timeline should end with the last block: %v vs %v", res.Duration, last.EndTime)
	}

	for i := 1; i < len(res.Placements); i++ {
		prev, cur := res.Placements[i-1], res.Placements[i]
		if cur.StartTime < prev.EndTime+b.Layout.BlockGapMs {
			t.Errorf("block %d starts at %v, before previous end %v plus gap", i, cur.StartTime, prev.EndTime)
		}
		if cur.Page == prev.Page && cur.Box.MinY < prev.Box.MaxY {
			t.Errorf("block %d overlaps block %d on the page", i, i-1)
		}
	}
}

func TestBuildPagination(t *testing.T) {
	layout := config.Default().Builder
	layout.ViewportHeight = 300
	b := New(layout)

	var blocks []explanation.Block
	for i := 0; i < 10; i++ {
		blocks = append(blocks, explanation.Annotate(explanation.Block{Type: explanation.BlockParagraph, Content: "line of text"}))
	}
	res := b.Build(blocks)

	pages := res.Placements[len(res.Placements)-1].Page
	if pages == 0 {
		t.Fatal("expected blocks to spill onto more pages")
	}
	for _, p := range res.Placements {
		if p.Box.MaxY > float64(layout.ViewportHeight) {
			t.Errorf("block placed below the page: %+v", p.Box)
		}
	}
}

func TestBuildSkipsEmptyBlocks(t *testing.T) {
	res := New(config.Builder{}).Build([]explanation.Block{{Type: explanation.BlockParagraph}})
	if res.EventCount != 0 || res.Duration != 0 {
		t.Errorf("expected an empty timeline, got %d events / %vms", res.EventCount, res.Duration)
	}
}

func TestWrapWords(t *testing.T) {
	tests := []struct {
		in      string
		perLine int
		want    int
	}{
		{"", 10, 1},
		{"short", 10, 1},
		{"one two three four", 9, 3},
		{"unbreakablewordthatislong", 5, 1},
	}
	for _, tt := range tests {
		if got := wrapWords(tt.in, tt.perLine); len(got) != tt.want {
			t.Errorf("wrapWords(%q, %d) = %q, want %d lines", tt.in, tt.perLine, got, tt.want)
		}
	}
}

func TestNewNormalizesLayout(t *testing.T) {
	b := New(config.Builder{ViewportWidth: 800, ViewportHeight: 600, Margin: 1000})
	want := config.Default().Builder
	if b.Layout.Margin != want.Margin || b.Layout.LineHeight != want.LineHeight || b.Layout.CharWidth != want.CharWidth {
		t.Errorf("expected defaults for invalid fields, got %+v", b.Layout)
	}
	if b.Layout.ViewportWidth != 800 || b.Layout.ViewportHeight != 600 {
		t.Errorf("valid viewport changed: %+v", b.Layout)
	}
}
