package timeline

import (
	"math"

	"github.com/ivlev/lessonplay/internal/geometry"
)

// Playback rate bounds.
const (
	MinPlaybackRate = 0.25
	MaxPlaybackRate = 4.0
)

// Status of the playback engine.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusPlaying Status = "playing"
	StatusPaused  Status = "paused"
	StatusError   Status = "error"
)

// EngineState is the single source of temporal truth. IsPlaying holds exactly
// when Status is StatusPlaying, CurrentTime stays within [0, Duration] and
// PlaybackRate within [MinPlaybackRate, MaxPlaybackRate].
type EngineState struct {
	IsPlaying    bool    `json:"isPlaying"`
	CurrentTime  float64 `json:"currentTime"`
	Duration     float64 `json:"duration"`
	PlaybackRate float64 `json:"playbackRate"`
	Status       Status  `json:"status"`
}

// InitialState is the idle state of a freshly constructed engine.
func InitialState() EngineState {
	return EngineState{PlaybackRate: 1, Status: StatusIdle}
}

// Playing reports whether the state is actively advancing.
func (s EngineState) Playing() bool {
	return s.IsPlaying && s.Status == StatusPlaying
}

// AtEnd reports whether the playhead has reached the end of the timeline.
func (s EngineState) AtEnd() bool {
	return s.CurrentTime >= s.Duration
}

// Advance moves the playhead by deltaMs scaled by the playback rate. It is a
// no-op unless playing. Negative or non-finite deltas count as zero. Reaching the end clamps to Duration and stops in
// StatusReady so the timeline can be replayed.
func Advance(s EngineState, deltaMs float64) EngineState {
	if !s.Playing() {
		return s
	}
	if deltaMs < 0 || math.IsNaN(deltaMs) || math.IsInf(deltaMs, 0) {
		deltaMs = 0
	}
	s.CurrentTime += deltaMs * s.PlaybackRate
	if s.CurrentTime >= s.Duration {
		s.CurrentTime = s.Duration
		s.IsPlaying = false
		s.Status = StatusReady
	}
	return s
}

// Pause stops a playing state.
func Pause(s EngineState) EngineState {
	if !s.Playing() {
		return s
	}
	s.IsPlaying = false
	s.Status = StatusPaused
	return s
}

// Resume starts playback from StatusPaused or StatusReady.
func Resume(s EngineState) EngineState {
	if s.Status != StatusPaused && s.Status != StatusReady {
		return s
	}
	s.IsPlaying = true
	s.Status = StatusPlaying
	return s
}

// Seek moves the playhead to t clamped into [0, Duration]. NaN keeps the
// current position.
func Seek(s EngineState, t float64) EngineState {
	if math.IsNaN(t) {
		return s
	}
	s.CurrentTime = geometry.Clamp(t, 0, s.Duration)
	return s
}

// SetRate clamps r into [MinPlaybackRate, MaxPlaybackRate]. NaN keeps the
// current rate.
func SetRate(s EngineState, r float64) EngineState {
	if math.IsNaN(r) {
		return s
	}
	s.PlaybackRate = geometry.Clamp(r, MinPlaybackRate, MaxPlaybackRate)
	return s
}

// SetStatus overrides the status, keeping IsPlaying consistent with it.
func SetStatus(s EngineState, status Status) EngineState {
	s.Status = status
	s.IsPlaying = status == StatusPlaying
	return s
}

// SetDuration sets the timeline length, clamps the playhead into it and
// promotes idle or loading states to ready.
func SetDuration(s EngineState, d float64) EngineState {
	if d < 0 {
		d = 0
	}
	s.Duration = d
	s.CurrentTime = geometry.Clamp(s.CurrentTime, 0, d)
	if s.Status == StatusIdle || s.Status == StatusLoading {
		s.Status = StatusReady
		s.IsPlaying = false
	}
	return s
}
