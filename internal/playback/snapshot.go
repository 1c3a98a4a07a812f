package playback

import (
	"github.com/ivlev/lessonplay/internal/geometry"
	"github.com/ivlev/lessonplay/internal/timeline"
)

// CursorStyle is inferred from what else is happening on the timeline.
type CursorStyle string

const (
	CursorPointer CursorStyle = "pointer"
	CursorDrawing CursorStyle = "drawing"
	CursorWriting CursorStyle = "writing"
)

type CursorState struct {
	Position geometry.Point `json:"position"`
	Visible  bool           `json:"visible"`
	Style    CursorStyle    `json:"style"`
}

// DrawingState holds every finished stroke plus the one being drawn.
type DrawingState struct {
	CompletedStrokes []geometry.Stroke `json:"completedStrokes"`
	ActiveStroke     *geometry.Stroke  `json:"activeStroke,omitempty"`
}

type NarrationState struct {
	Active    bool    `json:"active"`
	SegmentID string  `json:"segmentId,omitempty"`
	Text      string  `json:"text,omitempty"`
	AudioURL  string  `json:"audioUrl,omitempty"`
	Progress  float64 `json:"progress"`
}

// ActiveEvents groups the events active at the snapshot time by channel.
type ActiveEvents struct {
	Cursor    []timeline.Event `json:"cursor"`
	Drawing   []timeline.Event `json:"drawing"`
	Text      []timeline.Event `json:"text"`
	Narration []timeline.Event `json:"narration"`
	Highlight []timeline.Event `json:"highlight"`
}

// Snapshot is the renderer-facing state at one instant. It is recomputed
// from the tracks and the engine state every time and never shares storage
// with the controller.
type Snapshot struct {
	State        timeline.EngineState `json:"state"`
	CurrentTime  float64              `json:"currentTime"`
	DeltaMs      float64              `json:"deltaMs"`
	Progress     float64              `json:"progress"`
	ActiveEvents ActiveEvents         `json:"activeEvents"`
	Cursor       CursorState          `json:"cursorState"`
	Drawing      DrawingState         `json:"drawingState"`
	Narration    NarrationState       `json:"narrationState"`
}

// Derive computes the snapshot for state over tracks. Hidden tracks are
// ignored. When several cursor or drawing events overlap, the last one in
// track order wins.
func Derive(tracks []timeline.Track, state timeline.EngineState, deltaMs float64) Snapshot {
	now := state.CurrentTime
	snap := Snapshot{
		State:       state,
		CurrentTime: now,
		DeltaMs:     deltaMs,
		Cursor:      CursorState{Style: CursorPointer},
	}
	if state.Duration > 0 {
		snap.Progress = geometry.Clamp01(now / state.Duration)
	}

	for _, track := range tracks {
		if !track.Visible {
			continue
		}
		active := timeline.EventsAtTime(track.Events, now)
		switch track.Type {
		case timeline.TrackCursor:
			snap.ActiveEvents.Cursor = append(snap.ActiveEvents.Cursor, active...)
		case timeline.TrackDrawing:
			snap.ActiveEvents.Drawing = append(snap.ActiveEvents.Drawing, active...)
			deriveDrawing(&snap.Drawing, track.Events, now)
		case timeline.TrackText:
			snap.ActiveEvents.Text = append(snap.ActiveEvents.Text, active...)
		case timeline.TrackNarration:
			snap.ActiveEvents.Narration = append(snap.ActiveEvents.Narration, active...)
		case timeline.TrackHighlight:
			snap.ActiveEvents.Highlight = append(snap.ActiveEvents.Highlight, active...)
		}
	}

	if n := len(snap.ActiveEvents.Cursor); n > 0 {
		ev := snap.ActiveEvents.Cursor[n-1]
		snap.Cursor.Visible = true
		snap.Cursor.Position = cursorPosition(ev, LocalProgress(ev, now))
		switch {
		case len(snap.ActiveEvents.Drawing) > 0:
			snap.Cursor.Style = CursorDrawing
		case len(snap.ActiveEvents.Text) > 0:
			snap.Cursor.Style = CursorWriting
		}
	}

	if len(snap.ActiveEvents.Narration) > 0 {
		ev := snap.ActiveEvents.Narration[0]
		snap.Narration = NarrationState{
			Active:    true,
			SegmentID: ev.ID,
			Text:      ev.Payload.Text,
			AudioURL:  ev.Payload.AudioURL,
			Progress:  LocalProgress(ev, now),
		}
	}

	return snap
}

// LocalProgress is the elapsed fraction of ev at now, 1 for instantaneous
// events.
func LocalProgress(ev timeline.Event, now float64) float64 {
	d := ev.EndTime - ev.StartTime
	if d <= 0 {
		return 1
	}
	return geometry.Clamp01((now - ev.StartTime) / d)
}

func cursorPosition(ev timeline.Event, progress float64) geometry.Point {
	if len(ev.Payload.Path) > 0 {
		return geometry.PointAtProgress(ev.Payload.Path, progress)
	}
	if ev.Payload.Position != nil {
		return *ev.Payload.Position
	}
	return geometry.Point{}
}

func deriveDrawing(ds *DrawingState, events []timeline.Event, now float64) {
	for _, ev := range events {
		switch {
		case ev.EndTime <= now:
			ds.CompletedStrokes = append(ds.CompletedStrokes, StrokeFromEvent(ev))
		case ev.ActiveAt(now):
			s := geometry.StrokeProgress(StrokeFromEvent(ev), LocalProgress(ev, now))
			ds.ActiveStroke = &s
		}
	}
}

// StrokeFromEvent builds the full stroke of a drawing event. The stroke
// takes the event ID.
func StrokeFromEvent(ev timeline.Event) geometry.Stroke {
	s := geometry.Stroke{
		ID:      ev.ID,
		Color:   ev.Payload.StrokeColor(),
		Width:   ev.Payload.Width(),
		Opacity: geometry.DefaultStrokeOpacity,
	}
	if ev.Payload.Path != nil {
		s.Points = make([]geometry.Point, len(ev.Payload.Path))
		copy(s.Points, ev.Payload.Path)
	}
	return s
}
