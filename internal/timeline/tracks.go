package timeline

import (
	"errors"
	"fmt"

	"github.com/ivlev/lessonplay/internal/ident"
)

// ErrTrackTypeMismatch is returned when merging tracks of different channels.
var ErrTrackTypeMismatch = errors.New("cannot merge tracks of different types")

// AddEvent returns a copy of track with ev appended. Locked tracks are
// returned unchanged. The events are not re-sorted; Build does that.
func AddEvent(track Track, ev Event) Track {
	if track.Locked {
		return track
	}
	out := track.Clone()
	out.Events = append(out.Events, ev.Clone())
	return out
}

// RemoveEvent returns a copy of track without the event with the given ID.
// Locked tracks are returned unchanged.
func RemoveEvent(track Track, eventID string) Track {
	if track.Locked {
		return track
	}
	out := track
	out.Events = make([]Event, 0, len(track.Events))
	for _, e := range track.Events {
		if e.ID != eventID {
			out.Events = append(out.Events, e.Clone())
		}
	}
	return out
}

// ToggleVisible flips the track's visibility.
func ToggleVisible(track Track) Track {
	out := track.Clone()
	out.Visible = !track.Visible
	return out
}

// Lock forbids further additions and removals.
func Lock(track Track) Track {
	out := track.Clone()
	out.Locked = true
	return out
}

// Unlock re-enables editing.
func Unlock(track Track) Track {
	out := track.Clone()
	out.Locked = false
	return out
}

// MergeTracks combines two tracks of the same type into a new track with a
// fresh ID. Events are concatenated and re-sorted; lock and visibility come
// from a.
func MergeTracks(a, b Track) (Track, error) {
	if a.Type != b.Type {
		return Track{}, fmt.Errorf("%w: %s and %s", ErrTrackTypeMismatch, a.Type, b.Type)
	}
	events := make([]Event, 0, len(a.Events)+len(b.Events))
	events = append(events, a.Events...)
	events = append(events, b.Events...)
	return Track{
		ID:      ident.New(ident.TrackPrefix),
		Type:    a.Type,
		Events:  SortEvents(events),
		Locked:  a.Locked,
		Visible: a.Visible,
	}, nil
}

// EventsAtTime returns the events active at t (StartTime <= t < EndTime), in
// their original order.
func EventsAtTime(events []Event, t float64) []Event {
	var active []Event
	for _, e := range events {
		if e.ActiveAt(t) {
			active = append(active, e.Clone())
		}
	}
	return active
}

// ActiveTracksAtTime returns the visible tracks with at least one event active
// at t.
func ActiveTracksAtTime(tracks []Track, t float64) []Track {
	var active []Track
	for _, track := range tracks {
		if !track.Visible {
			continue
		}
		for _, e := range track.Events {
			if e.ActiveAt(t) {
				active = append(active, track.Clone())
				break
			}
		}
	}
	return active
}

// FindEvent looks an event up by ID across all tracks.
func FindEvent(tracks []Track, eventID string) (Event, bool) {
	for _, track := range tracks {
		for _, e := range track.Events {
			if e.ID == eventID {
				return e.Clone(), true
			}
		}
	}
	return Event{}, false
}
