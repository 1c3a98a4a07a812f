// Package playback drives a loaded lesson timeline through time. The
// Controller owns the engine state, derives a Snapshot on every tick or seek
// and notifies typed listeners. Ticks come either from the caller or from a
// self-scheduling, drift-compensated loop.
package playback

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/ivlev/lessonplay/internal/config"
	"github.com/ivlev/lessonplay/internal/geometry"
	"github.com/ivlev/lessonplay/internal/timeline"
)

// Options configure a Controller. Zero values fall back to the defaults.
type Options struct {
	TargetFPS  int
	MaxDeltaMs float64
	AutoPlay   bool

	Clock     Clock
	Scheduler Scheduler
	Logger    *slog.Logger
}

// OptionsFromConfig maps the playback section of the configuration.
func OptionsFromConfig(cfg config.Playback, logger *slog.Logger) Options {
	return Options{
		TargetFPS:  cfg.TargetFPS,
		MaxDeltaMs: cfg.MaxDeltaMs,
		AutoPlay:   cfg.AutoPlay,
		Logger:     logger,
	}
}

func (o *Options) defaults() {
	d := config.Default().Playback
	if o.TargetFPS <= 0 {
		o.TargetFPS = d.TargetFPS
	}
	if o.MaxDeltaMs <= 0 {
		o.MaxDeltaMs = d.MaxDeltaMs
	}
	if o.Clock == nil {
		o.Clock = SystemClock()
	}
	if o.Scheduler == nil {
		o.Scheduler = SystemScheduler()
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Controller is safe for concurrent use. Listeners run synchronously on the
// goroutine that caused the notification, never while the controller's lock
// is held, so they may call back into the controller. In loop mode that is
// the timer goroutine.
type Controller struct {
	mu     sync.Mutex
	opts   Options
	logger *slog.Logger

	tracks []timeline.Track
	issues []timeline.Issue
	state  timeline.EngineState

	lastTick float64
	hasTick  bool

	loop struct {
		running bool
		gen     uint64
		next    float64
		timer   Timer
	}

	frame       registry[Snapshot]
	stateChange registry[StateChange]
	complete    registry[timeline.EngineState]
	seek        registry[SeekEvent]
}

// New creates an idle controller.
func New(opts Options) *Controller {
	opts.defaults()
	return &Controller{
		opts:   opts,
		logger: opts.Logger.With("component", "playback"),
		state:  timeline.InitialState(),
	}
}

// FrameInterval is the nominal loop period in milliseconds.
func (c *Controller) FrameInterval() float64 {
	return 1000 / float64(c.opts.TargetFPS)
}

// Load replaces the timeline. Validation issues are logged, never fatal. The
// engine returns to a fresh ready state at time zero; with AutoPlay set,
// playback and the loop start immediately.
func (c *Controller) Load(tracks []timeline.Track) timeline.BuildResult {
	res := timeline.Build(tracks)
	for _, is := range res.Issues {
		level := slog.LevelWarn
		if is.Severity == timeline.SeverityError {
			level = slog.LevelError
		}
		c.logger.Log(context.Background(), level, "timeline issue", "event", is.EventID, "message", is.Message)
	}

	c.mu.Lock()
	prev := c.state
	c.tracks = res.Tracks
	c.issues = res.Issues
	c.state = timeline.SetDuration(timeline.InitialState(), res.Duration)
	c.hasTick = false
	cur := c.state
	c.mu.Unlock()

	c.logger.Info("timeline loaded", "tracks", len(res.Tracks), "events", res.EventCount, "duration_ms", res.Duration)
	c.emitStateChange(prev, cur)

	if c.opts.AutoPlay && c.play() {
		c.StartLoop()
	}
	return res
}

// MarkLoading flags that new content is being prepared upstream.
func (c *Controller) MarkLoading() {
	c.setStatus(timeline.StatusLoading)
}

// MarkError records an upstream failure. It is the only way the controller
// enters the error status.
func (c *Controller) MarkError(err error) {
	c.logger.Error("lesson failed to load", "error", err)
	c.setStatus(timeline.StatusError)
}

func (c *Controller) setStatus(status timeline.Status) {
	c.mu.Lock()
	prev := c.state
	c.state = timeline.SetStatus(prev, status)
	cur := c.state
	c.mu.Unlock()
	if prev != cur {
		c.emitStateChange(prev, cur)
	}
}

// Play starts playback, rewinding first when the playhead is at the end.
func (c *Controller) Play() {
	c.play()
}

// play reports whether the engine is playing afterwards.
func (c *Controller) play() bool {
	c.mu.Lock()
	if c.state.Playing() {
		c.mu.Unlock()
		c.logger.Debug("play ignored: already playing")
		return true
	}
	if c.state.Duration <= 0 {
		c.mu.Unlock()
		c.logger.Warn("play ignored: timeline is empty")
		return false
	}

	prev := c.state
	next := c.state
	if next.AtEnd() {
		next = timeline.Seek(next, 0)
	}
	next = timeline.Resume(next)
	if !next.Playing() {
		c.mu.Unlock()
		c.logger.Warn("play ignored", "status", prev.Status)
		return false
	}
	c.state = next
	c.lastTick, c.hasTick = c.opts.Clock.Now(), true
	c.mu.Unlock()

	c.emitStateChange(prev, next)
	return true
}

// Pause stops advancing time. The loop, if any, keeps running.
func (c *Controller) Pause() {
	c.mu.Lock()
	prev := c.state
	c.state = timeline.Pause(prev)
	cur := c.state
	c.mu.Unlock()

	if prev == cur {
		c.logger.Debug("pause ignored", "status", prev.Status)
		return
	}
	c.emitStateChange(prev, cur)
}

// Resume continues from a pause. The tick baseline is reset so the time
// spent paused is not counted.
func (c *Controller) Resume() {
	c.mu.Lock()
	prev := c.state
	c.state = timeline.Resume(prev)
	cur := c.state
	if prev != cur {
		c.lastTick, c.hasTick = c.opts.Clock.Now(), true
	}
	c.mu.Unlock()

	if prev == cur {
		c.logger.Debug("resume ignored", "status", prev.Status)
		return
	}
	c.emitStateChange(prev, cur)
}

// Seek jumps to t, clamped to the timeline. Listeners get a seek event and a
// fresh frame even while paused.
func (c *Controller) Seek(t float64) {
	c.mu.Lock()
	from := c.state.CurrentTime
	c.state = timeline.Seek(c.state, t)
	to := c.state.CurrentTime
	snap := Derive(c.tracks, c.state, 0)
	c.mu.Unlock()

	c.emitSeek(SeekEvent{From: from, To: to})
	c.emitFrame(snap)
}

// SetSpeed changes the playback rate, clamped to the supported range.
func (c *Controller) SetSpeed(rate float64) {
	c.mu.Lock()
	prev := c.state
	c.state = timeline.SetRate(prev, rate)
	cur := c.state
	c.mu.Unlock()

	if prev.PlaybackRate != cur.PlaybackRate {
		c.emitStateChange(prev, cur)
	}
}

// Tick advances the timeline to the timestamp ts (milliseconds on the same
// clock as previous ticks). The delta since the last tick is clamped to
// [0, MaxDeltaMs]; the first tick has a zero delta. Non-finite timestamps
// are dropped.
func (c *Controller) Tick(ts float64) {
	if math.IsNaN(ts) || math.IsInf(ts, 0) {
		c.logger.Debug("tick ignored: non-finite timestamp", "ts", ts)
		return
	}
	c.mu.Lock()
	delta := 0.0
	if c.hasTick {
		delta = geometry.Clamp(ts-c.lastTick, 0, c.opts.MaxDeltaMs)
	}
	c.lastTick, c.hasTick = ts, true

	prev := c.state
	c.state = timeline.Advance(prev, delta)
	cur := c.state
	snap := Derive(c.tracks, cur, delta)

	completed := prev.Playing() && !cur.Playing() && cur.AtEnd()
	if completed {
		c.stopLoopLocked()
	}
	c.mu.Unlock()

	c.emitFrame(snap)
	if prev.Status != cur.Status {
		c.emitStateChange(prev, cur)
	}
	if completed {
		c.logger.Debug("playback complete", "duration_ms", cur.Duration)
		c.emitComplete(cur)
	}
}

// StartLoop begins self-scheduled ticking at the target frame rate. Each
// delay is measured against an absolute deadline that advances by one frame
// interval per cycle, so scheduling error does not accumulate. A loop that
// falls behind resynchronizes to the current time.
func (c *Controller) StartLoop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loop.running {
		return
	}
	c.loop.running = true
	c.loop.gen++
	c.loop.next = c.opts.Clock.Now() + c.FrameInterval()
	c.scheduleLocked(c.loop.gen)
}

// StopLoop cancels the pending loop tick.
func (c *Controller) StopLoop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLoopLocked()
}

// IsLooping reports whether the self-scheduled loop is running.
func (c *Controller) IsLooping() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loop.running
}

func (c *Controller) stopLoopLocked() {
	if !c.loop.running {
		return
	}
	c.loop.running = false
	c.loop.gen++
	if c.loop.timer != nil {
		c.loop.timer.Stop()
		c.loop.timer = nil
	}
}

func (c *Controller) scheduleLocked(gen uint64) {
	delay := math.Max(1, c.loop.next-c.opts.Clock.Now())
	c.loop.timer = c.opts.Scheduler.AfterFunc(time.Duration(delay*float64(time.Millisecond)), func() {
		c.loopTick(gen)
	})
}

func (c *Controller) loopTick(gen uint64) {
	c.mu.Lock()
	if !c.loop.running || c.loop.gen != gen {
		c.mu.Unlock()
		return
	}
	now := c.opts.Clock.Now()
	c.mu.Unlock()

	c.Tick(now)

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loop.running || c.loop.gen != gen {
		return
	}
	c.loop.next += c.FrameInterval()
	if now := c.opts.Clock.Now(); c.loop.next < now {
		c.loop.next = now
	}
	c.scheduleLocked(gen)
}

// Destroy stops the loop, drops every listener and resets to idle.
func (c *Controller) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLoopLocked()
	c.frame.clear()
	c.stateChange.clear()
	c.complete.clear()
	c.seek.clear()
	c.tracks = nil
	c.issues = nil
	c.state = timeline.InitialState()
	c.hasTick = false
}

// State returns the current engine state.
func (c *Controller) State() timeline.EngineState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Tracks returns a copy of the loaded, sorted tracks.
func (c *Controller) Tracks() []timeline.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return timeline.CloneTracks(c.tracks)
}

// Issues returns the validation issues of the loaded timeline.
func (c *Controller) Issues() []timeline.Issue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]timeline.Issue(nil), c.issues...)
}

// Snapshot derives the snapshot at the current time with a zero delta.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Derive(c.tracks, c.state, 0)
}

// OnFrame subscribes to every derived snapshot. The returned function
// unsubscribes.
func (c *Controller) OnFrame(fn func(Snapshot)) func() {
	return subscribe(c, &c.frame, fn)
}

// OnStateChange subscribes to transport and status transitions.
func (c *Controller) OnStateChange(fn func(StateChange)) func() {
	return subscribe(c, &c.stateChange, fn)
}

// OnComplete subscribes to the end of playback.
func (c *Controller) OnComplete(fn func(timeline.EngineState)) func() {
	return subscribe(c, &c.complete, fn)
}

// OnSeek subscribes to explicit seeks.
func (c *Controller) OnSeek(fn func(SeekEvent)) func() {
	return subscribe(c, &c.seek, fn)
}

// ListenerCount returns the number of registered listeners on all channels.
func (c *Controller) ListenerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frame.len() + c.stateChange.len() + c.complete.len() + c.seek.len()
}

func subscribe[T any](c *Controller, r *registry[T], fn func(T)) func() {
	c.mu.Lock()
	id := r.add(fn)
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			r.remove(id)
			c.mu.Unlock()
		})
	}
}

func notify[T any](c *Controller, r *registry[T], v T) {
	c.mu.Lock()
	fns := r.list()
	c.mu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

func (c *Controller) emitFrame(s Snapshot) { notify(c, &c.frame, s) }

func (c *Controller) emitStateChange(prev, cur timeline.EngineState) {
	notify(c, &c.stateChange, StateChange{Previous: prev, Current: cur})
}

func (c *Controller) emitComplete(s timeline.EngineState) { notify(c, &c.complete, s) }

func (c *Controller) emitSeek(e SeekEvent) { notify(c, &c.seek, e) }
