package timeline

import (
	"errors"
	"math"
	"testing"

	"github.com/ivlev/lessonplay/internal/geometry"
)

func span(start, end float64) Event {
	return NewEvent(EventCursorMove, start, end, Payload{})
}

func TestSortEvents(t *testing.T) {
	events := []Event{span(500, 900), span(0, 300), span(500, 600), span(100, 200)}
	sorted := SortEvents(events)

	want := [][2]float64{{0, 300}, {100, 200}, {500, 600}, {500, 900}}
	for i, w := range want {
		if sorted[i].StartTime != w[0] || sorted[i].EndTime != w[1] {
			t.Errorf("position %d: expected [%v,%v), got [%v,%v)", i, w[0], w[1], sorted[i].StartTime, sorted[i].EndTime)
		}
	}
	if events[0].StartTime != 500 {
		t.Error("SortEvents must not reorder its input")
	}
}

func TestDuration(t *testing.T) {
	if Duration(nil) != 0 {
		t.Error("empty timeline should have zero duration")
	}
	if got := Duration([]Event{span(0, 300), span(100, 1200), span(500, 900)}); got != 1200 {
		t.Errorf("expected 1200, got %v", got)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name         string
		events       []Event
		wantErrors   int
		wantWarnings int
	}{
		{"adjacent", []Event{span(0, 1000), span(1000, 2000)}, 0, 0},
		{"within tolerance", []Event{span(0, 1000), span(995, 2000)}, 0, 0},
		{"overlap", []Event{span(0, 1000), span(900, 2000)}, 1, 0},
		{"long gap", []Event{span(0, 1000), span(10000, 11000)}, 0, 1},
		{"inverted", []Event{span(500, 500)}, 1, 0},
		{"unsorted input", []Event{span(1000, 2000), span(0, 1000)}, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := Validate([]Track{NewTrack(TrackCursor, tt.events...)})
			var errs, warns int
			for _, is := range issues {
				switch is.Severity {
				case SeverityError:
					errs++
				case SeverityWarning:
					warns++
				}
				if is.EventID == "" || is.Message == "" {
					t.Errorf("issue missing fields: %+v", is)
				}
			}
			if errs != tt.wantErrors || warns != tt.wantWarnings {
				t.Errorf("expected %d errors / %d warnings, got %d / %d (%+v)", tt.wantErrors, tt.wantWarnings, errs, warns, issues)
			}
		})
	}
}

func TestBuild(t *testing.T) {
	tracks := []Track{
		NewTrack(TrackCursor, span(1000, 2000), span(0, 1000)),
		NewTrack(TrackDrawing, span(0, 3500)),
	}
	res := Build(tracks)

	if res.Duration != 3500 {
		t.Errorf("expected duration 3500, got %v", res.Duration)
	}
	if res.EventCount != 3 {
		t.Errorf("expected 3 events, got %d", res.EventCount)
	}
	if len(res.Issues) != 0 || res.HasErrors() {
		t.Errorf("expected no issues, got %+v", res.Issues)
	}
	if res.Tracks[0].Events[0].StartTime != 0 {
		t.Error("Build should sort events within each track")
	}
	if tracks[0].Events[0].StartTime != 1000 {
		t.Error("Build must not mutate its input")
	}
}

func TestTrackEditing(t *testing.T) {
	track := NewTrack(TrackText, span(0, 100))
	ev := span(100, 200)

	added := AddEvent(track, ev)
	if len(added.Events) != 2 || len(track.Events) != 1 {
		t.Fatalf("AddEvent should return a new track, got %d/%d events", len(added.Events), len(track.Events))
	}

	removed := RemoveEvent(added, ev.ID)
	if len(removed.Events) != 1 || len(added.Events) != 2 {
		t.Fatalf("RemoveEvent should return a new track, got %d/%d events", len(removed.Events), len(added.Events))
	}

	locked := Lock(added)
	if !locked.Locked || added.Locked {
		t.Fatal("Lock should return a locked copy")
	}
	if got := AddEvent(locked, span(300, 400)); len(got.Events) != 2 {
		t.Errorf("adding to a locked track must be a no-op, got %d events", len(got.Events))
	}
	if got := RemoveEvent(locked, ev.ID); len(got.Events) != 2 {
		t.Errorf("removing from a locked track must be a no-op, got %d events", len(got.Events))
	}
	if Unlock(locked).Locked {
		t.Error("Unlock should clear the lock")
	}

	hidden := ToggleVisible(track)
	if hidden.Visible || !track.Visible {
		t.Error("ToggleVisible should return a hidden copy")
	}
	if !ToggleVisible(hidden).Visible {
		t.Error("toggling twice should restore visibility")
	}
	// visibility is not gated by the lock
	if ToggleVisible(locked).Visible {
		t.Error("locked tracks can still be hidden")
	}
}

func TestMergeTracks(t *testing.T) {
	a := NewTrack(TrackCursor, span(1000, 2000), span(3000, 4000))
	b := NewTrack(TrackCursor, span(0, 500), span(2500, 2900), span(5000, 6000))
	a = Lock(a)

	merged, err := MergeTracks(a, b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(merged.Events) != len(a.Events)+len(b.Events) {
		t.Errorf("expected %d events, got %d", len(a.Events)+len(b.Events), len(merged.Events))
	}
	for i := 1; i < len(merged.Events); i++ {
		if merged.Events[i].StartTime < merged.Events[i-1].StartTime {
			t.Errorf("events not sorted at %d", i)
		}
	}
	if merged.ID == a.ID || merged.ID == b.ID {
		t.Error("merged track should get a fresh ID")
	}
	if !merged.Locked || !merged.Visible {
		t.Error("merged track should inherit lock and visibility from the first track")
	}

	_, err = MergeTracks(a, NewTrack(TrackDrawing))
	if !errors.Is(err, ErrTrackTypeMismatch) {
		t.Errorf("expected ErrTrackTypeMismatch, got %v", err)
	}
}

func TestEventsAtTime(t *testing.T) {
	events := []Event{span(0, 1000), span(500, 1500), span(1500, 2000)}

	tests := []struct {
		at   float64
		want int
	}{
		{-1, 0},
		{0, 1},
		{500, 2},
		{999.9, 2},
		{1000, 1},
		{1500, 1},
		{2000, 0},
	}
	for _, tt := range tests {
		if got := EventsAtTime(events, tt.at); len(got) != tt.want {
			t.Errorf("at %v: expected %d active events, got %d", tt.at, tt.want, len(got))
		}
	}

	visible := NewTrack(TrackCursor, span(0, 1000))
	hidden := ToggleVisible(NewTrack(TrackText, span(0, 1000)))
	idle := NewTrack(TrackDrawing, span(2000, 3000))
	active := ActiveTracksAtTime([]Track{visible, hidden, idle}, 500)
	if len(active) != 1 || active[0].ID != visible.ID {
		t.Errorf("expected only the visible active track, got %+v", active)
	}
}

func playing(duration float64) EngineState {
	s := SetDuration(InitialState(), duration)
	return Resume(s)
}

func TestAdvance(t *testing.T) {
	s := playing(1000)
	s = Advance(s, 100)
	if s.CurrentTime != 100 || !s.IsPlaying {
		t.Errorf("expected 100ms while playing, got %+v", s)
	}

	s = SetRate(s, 2)
	s = Advance(s, 100)
	if s.CurrentTime != 300 {
		t.Errorf("expected rate-scaled advance to 300, got %v", s.CurrentTime)
	}

	s = Advance(s, 10000)
	if s.CurrentTime != 1000 || s.IsPlaying || s.Status != StatusReady {
		t.Errorf("expected clamp to end in ready state, got %+v", s)
	}

	paused := Pause(Advance(playing(1000), 100))
	if got := Advance(paused, 500); got != paused {
		t.Errorf("advance while paused must be a no-op, got %+v", got)
	}
	if got := Advance(playing(1000), -50); got.CurrentTime != 0 {
		t.Errorf("negative deltas must not rewind, got %v", got.CurrentTime)
	}
}

func TestAdvanceLinearity(t *testing.T) {
	deltas := []float64{16, 17, 16.5, 0, 33, 8}
	sum := 0.0
	s := SetRate(playing(10000), 1.5)
	for _, d := range deltas {
		s = Advance(s, d)
		sum += d
	}
	once := Advance(SetRate(playing(10000), 1.5), sum)
	if math.Abs(s.CurrentTime-once.CurrentTime) > 1e-9 {
		t.Errorf("expected %v, got %v", once.CurrentTime, s.CurrentTime)
	}
}

func TestSeekOverridesAdvance(t *testing.T) {
	base := playing(2000)
	for _, target := range []float64{0, 250, 1000, 1999, 2000} {
		direct := Seek(base, target)
		viaAdvance := Seek(Advance(base, 700), target)
		if direct != viaAdvance {
			t.Errorf("seek(%v): expected %+v, got %+v", target, direct, viaAdvance)
		}
	}
	if got := Seek(base, -10).CurrentTime; got != 0 {
		t.Errorf("expected clamp to 0, got %v", got)
	}
	if got := Seek(base, 99999).CurrentTime; got != 2000 {
		t.Errorf("expected clamp to duration, got %v", got)
	}
}

func TestNonFiniteInputs(t *testing.T) {
	base := Seek(playing(2000), 400)
	if got := Seek(base, math.NaN()); got != base {
		t.Errorf("NaN seek should keep the position, got %+v", got)
	}
	if got := Seek(base, math.Inf(1)).CurrentTime; got != 2000 {
		t.Errorf("+Inf seek should clamp to duration, got %v", got)
	}
	if got := Seek(base, math.Inf(-1)).CurrentTime; got != 0 {
		t.Errorf("-Inf seek should clamp to 0, got %v", got)
	}

	for _, d := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := Advance(base, d); got != base {
			t.Errorf("Advance(%v) should be a zero step, got %+v", d, got)
		}
	}
}

func TestPauseEvent(t *testing.T) {
	ev := PauseEvent(100, 300)
	if ev.Type != EventPause || ev.StartTime != 100 || ev.EndTime != 300 || ev.ID == "" {
		t.Errorf("unexpected pause event %+v", ev)
	}
}

func TestSetRate(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{0.1, MinPlaybackRate},
		{-3, MinPlaybackRate},
		{0.25, 0.25},
		{1.75, 1.75},
		{4, 4},
		{10, MaxPlaybackRate},
	}
	for _, tt := range tests {
		if got := SetRate(InitialState(), tt.in).PlaybackRate; got != tt.want {
			t.Errorf("SetRate(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if got := SetRate(InitialState(), math.NaN()).PlaybackRate; got != 1 {
		t.Errorf("NaN should keep the current rate, got %v", got)
	}
}

func TestStatusTransitions(t *testing.T) {
	s := InitialState()
	if Resume(s).IsPlaying {
		t.Error("idle engine must not resume")
	}
	if Pause(s) != s {
		t.Error("pause while idle must be a no-op")
	}

	s = SetStatus(s, StatusLoading)
	s = SetDuration(s, 500)
	if s.Status != StatusReady {
		t.Errorf("duration should promote loading to ready, got %s", s.Status)
	}

	s = Resume(s)
	if s.Status != StatusPlaying || !s.IsPlaying {
		t.Errorf("expected playing, got %+v", s)
	}
	s = Pause(s)
	if s.Status != StatusPaused || s.IsPlaying {
		t.Errorf("expected paused, got %+v", s)
	}
	if got := SetDuration(s, 100); got.Status != StatusPaused {
		t.Errorf("duration must not change a paused status, got %s", got.Status)
	}
	if got := SetStatus(s, StatusError); got.IsPlaying || got.Status != StatusError {
		t.Errorf("unexpected error state %+v", got)
	}
}

func TestConstructors(t *testing.T) {
	hold := CursorMove(0, 100, geometry.Point{X: 3, Y: 4})
	if hold.Payload.Position == nil || hold.Payload.Path != nil {
		t.Errorf("single-point cursor move should use a static position, got %+v", hold.Payload)
	}

	stroke := DrawStroke(0, 100, []geometry.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, "", 0)
	if stroke.Payload.StrokeColor() != geometry.DefaultStrokeColor || stroke.Payload.Width() != geometry.DefaultStrokeWidth {
		t.Errorf("expected defaults, got %q/%v", stroke.Payload.StrokeColor(), stroke.Payload.Width())
	}

	clone := stroke.Clone()
	clone.Payload.Path[0].X = 9
	if stroke.Payload.Path[0].X == 9 {
		t.Error("Clone must deep-copy the path")
	}
}
