// Package lesson reads and writes lesson files: YAML documents holding the
// timeline tracks the playback controller loads.
package lesson

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/lessonplay/internal/explanation"
	"github.com/ivlev/lessonplay/internal/system"
	"github.com/ivlev/lessonplay/internal/timeline"
)

// Version of the lesson file format.
const Version = "1.0"

// DefaultDir is where generated lessons are stored.
var DefaultDir = filepath.Join("internal", "lessons")

// ErrNoLessons is returned by FindLatest when the directory holds no lesson.
var ErrNoLessons = errors.New("no lesson files found")

// Lesson is a complete playable lesson.
type Lesson struct {
	Version  string              `yaml:"version"`
	Title    string              `yaml:"title,omitempty"`
	Source   string              `yaml:"source,omitempty"`
	Created  time.Time           `yaml:"created,omitempty"`
	Duration float64             `yaml:"durationMs"`
	Blocks   []explanation.Block `yaml:"blocks,omitempty"`
	Tracks   []timeline.Track    `yaml:"tracks"`
}

// New wraps tracks in a lesson of the current format version.
func New(title string, tracks []timeline.Track) *Lesson {
	return &Lesson{
		Version:  Version,
		Title:    title,
		Created:  time.Now().UTC().Truncate(time.Second),
		Duration: timeline.TracksDuration(tracks),
		Tracks:   tracks,
	}
}

// Write stores the lesson as YAML, creating parent directories as needed.
func Write(l *Lesson, path string) error {
	data, err := yaml.Marshal(l)
	if err != nil {
		return fmt.Errorf("failed to encode lesson: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create lesson directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Read loads a lesson file. Files without a version are read as the current
// version; a newer major version is rejected.
func Read(path string) (*Lesson, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var l Lesson
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse lesson %s: %w", path, err)
	}
	if l.Version == "" {
		l.Version = Version
	}
	if major(l.Version) != major(Version) {
		return nil, fmt.Errorf("unsupported lesson version %q in %s", l.Version, path)
	}
	l.Duration = timeline.TracksDuration(l.Tracks)
	return &l, nil
}

func major(v string) string {
	m, _, _ := strings.Cut(v, ".")
	return m
}

// GeneratePath creates a timestamped lesson filename in DefaultDir.
func GeneratePath() string {
	timestamp := time.Now().Format("2006-01-02_15-04-05")
	return filepath.Join(DefaultDir, fmt.Sprintf("lesson_%s.yaml", timestamp))
}

// FindLatest returns the most recently modified lesson file in dir.
func FindLatest(dir string) (string, error) {
	path, err := system.FindLatestFile(dir, ".yaml", ".yml")
	if errors.Is(err, system.ErrNoFiles) {
		return "", fmt.Errorf("%w in %s", ErrNoLessons, dir)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read lessons directory: %w", err)
	}
	return path, nil
}
