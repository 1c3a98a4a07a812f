// Package timeline models lesson timelines (typed, timed events grouped into
// tracks) and the pure state transitions of the playback engine.
//
// Nothing in this package mutates its arguments: every operation takes values
// and returns new values.
package timeline

import (
	"gopkg.in/yaml.v3"

	"github.com/ivlev/lessonplay/internal/geometry"
	"github.com/ivlev/lessonplay/internal/ident"
)

// EventType tags the payload of a timeline event.
type EventType string

const (
	EventCursorMove       EventType = "cursor_move"
	EventDrawStroke       EventType = "draw_stroke"
	EventTextHighlight    EventType = "text_highlight"
	EventNarrationSegment EventType = "narration_segment"
	EventPause            EventType = "pause"
)

// TrackType is the semantic channel a track belongs to.
type TrackType string

const (
	TrackCursor    TrackType = "cursor"
	TrackDrawing   TrackType = "drawing"
	TrackText      TrackType = "text"
	TrackNarration TrackType = "narration"
	TrackHighlight TrackType = "highlight"
)

// TrackTypes lists every channel in snapshot order.
var TrackTypes = []TrackType{TrackCursor, TrackDrawing, TrackText, TrackNarration, TrackHighlight}

// Payload carries the type-specific data of an event. Only the fields relevant
// to the event's type are meaningful; the rest stay zero.
type Payload struct {
	Position    *geometry.Point  `yaml:"position,omitempty" json:"position,omitempty"`
	Path        []geometry.Point `yaml:"path,omitempty" json:"path,omitempty"`
	Text        string           `yaml:"text,omitempty" json:"text,omitempty"`
	AudioURL    string           `yaml:"audioUrl,omitempty" json:"audioUrl,omitempty"`
	Color       string           `yaml:"color,omitempty" json:"color,omitempty"`
	StrokeWidth float64          `yaml:"strokeWidth,omitempty" json:"strokeWidth,omitempty"`
}

// StrokeColor returns the payload color or the default stroke color.
func (p Payload) StrokeColor() string {
	if p.Color == "" {
		return geometry.DefaultStrokeColor
	}
	return p.Color
}

// Width returns the payload stroke width or the default width.
func (p Payload) Width() float64 {
	if p.StrokeWidth <= 0 {
		return geometry.DefaultStrokeWidth
	}
	return p.StrokeWidth
}

func (p Payload) clone() Payload {
	if p.Position != nil {
		pos := *p.Position
		p.Position = &pos
	}
	if p.Path != nil {
		path := make([]geometry.Point, len(p.Path))
		copy(path, p.Path)
		p.Path = path
	}
	return p
}

// Event is a timed unit of timeline content. Times are milliseconds.
// EndTime is expected to exceed StartTime; Validate reports events that don't.
type Event struct {
	ID        string    `yaml:"id" json:"id"`
	Type      EventType `yaml:"type" json:"type"`
	StartTime float64   `yaml:"startTime" json:"startTime"`
	EndTime   float64   `yaml:"endTime" json:"endTime"`
	Payload   Payload   `yaml:"payload" json:"payload"`
}

// Duration returns EndTime - StartTime.
func (e Event) Duration() float64 {
	return e.EndTime - e.StartTime
}

// ActiveAt reports whether t falls in [StartTime, EndTime).
func (e Event) ActiveAt(t float64) bool {
	return e.StartTime <= t && t < e.EndTime
}

// Clone returns a deep copy of e.
func (e Event) Clone() Event {
	e.Payload = e.Payload.clone()
	return e
}

// Track groups the events of one channel.
type Track struct {
	ID      string    `yaml:"id" json:"id"`
	Type    TrackType `yaml:"type" json:"type"`
	Events  []Event   `yaml:"events" json:"events"`
	Locked  bool      `yaml:"locked" json:"locked"`
	Visible bool      `yaml:"visible" json:"visible"`
}

// UnmarshalYAML makes tracks visible unless the document says otherwise and
// assigns IDs to tracks and events that omit them.
func (t *Track) UnmarshalYAML(value *yaml.Node) error {
	type plain Track
	p := plain{Visible: true}
	if err := value.Decode(&p); err != nil {
		return err
	}
	if p.ID == "" {
		p.ID = ident.New(ident.TrackPrefix)
	}
	for i := range p.Events {
		if p.Events[i].ID == "" {
			p.Events[i].ID = ident.New(ident.EventPrefix)
		}
	}
	*t = Track(p)
	return nil
}

// Clone returns a deep copy of t.
func (t Track) Clone() Track {
	t.Events = cloneEvents(t.Events)
	return t
}

// CloneTracks deep-copies a slice of tracks.
func CloneTracks(tracks []Track) []Track {
	if tracks == nil {
		return nil
	}
	out := make([]Track, len(tracks))
	for i, t := range tracks {
		out[i] = t.Clone()
	}
	return out
}

func cloneEvents(events []Event) []Event {
	if events == nil {
		return nil
	}
	out := make([]Event, len(events))
	for i, e := range events {
		out[i] = e.Clone()
	}
	return out
}

// NewEvent creates an event with a fresh ID.
func NewEvent(typ EventType, start, end float64, payload Payload) Event {
	return Event{
		ID:        ident.New(ident.EventPrefix),
		Type:      typ,
		StartTime: start,
		EndTime:   end,
		Payload:   payload.clone(),
	}
}

// NewTrack creates a visible, unlocked track with a fresh ID.
func NewTrack(typ TrackType, events ...Event) Track {
	return Track{
		ID:      ident.New(ident.TrackPrefix),
		Type:    typ,
		Events:  cloneEvents(events),
		Visible: true,
	}
}

// Constructors for the common event kinds.

// CursorMove moves the cursor along path, or holds it at path[0] when the path
// has a single point.
func CursorMove(start, end float64, path ...geometry.Point) Event {
	p := Payload{Path: path}
	if len(path) == 1 {
		pos := path[0]
		p = Payload{Position: &pos}
	}
	return NewEvent(EventCursorMove, start, end, p)
}

func DrawStroke(start, end float64, path []geometry.Point, color string, width float64) Event {
	return NewEvent(EventDrawStroke, start, end, Payload{Path: path, Color: color, StrokeWidth: width})
}

func TextHighlight(start, end float64, text string) Event {
	return NewEvent(EventTextHighlight, start, end, Payload{Text: text})
}

func NarrationSegment(start, end float64, text, audioURL string) Event {
	return NewEvent(EventNarrationSegment, start, end, Payload{Text: text, AudioURL: audioURL})
}

func PauseEvent(start, end float64) Event {
	return NewEvent(EventPause, start, end, Payload{})
}
