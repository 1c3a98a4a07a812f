package lesson

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ivlev/lessonplay/internal/geometry"
	"github.com/ivlev/lessonplay/internal/timeline"
)

func TestWriteRead(t *testing.T) {
	tracks := []timeline.Track{
		timeline.NewTrack(timeline.TrackDrawing,
			timeline.DrawStroke(0, 1000, []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}}, "#ff0000", 2)),
		timeline.NewTrack(timeline.TrackNarration,
			timeline.NarrationSegment(0, 2500, "hello there", "audio/hello.mp3")),
	}
	l := New("Greetings", tracks)
	if l.Duration != 2500 {
		t.Errorf("expected duration 2500, got %v", l.Duration)
	}

	path := filepath.Join(t.TempDir(), "nested", "lesson.yaml")
	if err := Write(l, path); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if got.Version != Version || got.Title != "Greetings" || len(got.Tracks) != 2 {
		t.Fatalf("unexpected lesson %+v", got)
	}
	ev := got.Tracks[0].Events[0]
	if ev.ID != tracks[0].Events[0].ID || ev.Payload.Color != "#ff0000" || len(ev.Payload.Path) != 2 {
		t.Errorf("drawing event not preserved: %+v", ev)
	}
	if got.Tracks[1].Events[0].Payload.AudioURL != "audio/hello.mp3" {
		t.Errorf("narration audio not preserved: %+v", got.Tracks[1].Events[0])
	}
	if !got.Tracks[0].Visible {
		t.Error("visibility not preserved")
	}
}

func TestReadHandWritten(t *testing.T) {
	doc := `title: Minimal
tracks:
  - type: cursor
    events:
      - type: cursor_move
        startTime: 0
        endTime: 500
        payload:
          position: {x: 10, y: 20}
  - type: text
    visible: false
    events: []
`
	path := filepath.Join(t.TempDir(), "minimal.yaml")
	if err := os.WriteFile(path, []byte(doc), 0644); err != nil {
		t.Fatal(err)
	}

	l, err := Read(path)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if l.Version != Version || l.Duration != 500 {
		t.Errorf("expected defaults to be filled, got version %q duration %v", l.Version, l.Duration)
	}
	cursor := l.Tracks[0]
	if !cursor.Visible || cursor.ID == "" || cursor.Events[0].ID == "" {
		t.Errorf("missing fields should get defaults, got %+v", cursor)
	}
	if p := cursor.Events[0].Payload.Position; p == nil || p.X != 10 || p.Y != 20 {
		t.Errorf("position not decoded: %+v", p)
	}
	if l.Tracks[1].Visible {
		t.Error("explicit visible: false must be kept")
	}
}

func TestReadRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.yaml")
	if err := os.WriteFile(path, []byte("version: \"2.1\"\ntracks: []\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Read(path); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported version error, got %v", err)
	}
}

func TestGeneratePath(t *testing.T) {
	path := GeneratePath()
	if !strings.HasPrefix(path, DefaultDir) || !strings.Contains(filepath.Base(path), "lesson_") || filepath.Ext(path) != ".yaml" {
		t.Errorf("unexpected path %s", path)
	}
}

func TestFindLatest(t *testing.T) {
	dir := t.TempDir()
	if _, err := FindLatest(dir); !errors.Is(err, ErrNoLessons) {
		t.Errorf("expected ErrNoLessons, got %v", err)
	}

	files := []string{"lesson_a.yaml", "lesson_b.yml", "notes.txt"}
	for i, name := range files {
		f := filepath.Join(dir, name)
		if err := os.WriteFile(f, []byte("tracks: []"), 0644); err != nil {
			t.Fatal(err)
		}
		mod := time.Now().Add(time.Duration(i) * time.Hour)
		os.Chtimes(f, mod, mod)
	}

	latest, err := FindLatest(dir)
	if err != nil {
		t.Fatalf("FindLatest failed: %v", err)
	}
	if filepath.Base(latest) != "lesson_b.yml" {
		t.Errorf("expected lesson_b.yml, got %s", latest)
	}
}
