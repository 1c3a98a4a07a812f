package playback

import (
	"io"
	"log/slog"
	"math"
	"sort"
	"testing"
	"time"

	"github.com/ivlev/lessonplay/internal/geometry"
	"github.com/ivlev/lessonplay/internal/timeline"
)

type fakeClock struct {
	now float64
}

func (c *fakeClock) Now() float64 { return c.now }

type fakeTimer struct {
	at      float64
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	was := !t.stopped
	t.stopped = true
	return was
}

// fakeScheduler fires timers when the test advances time. Every timer fires
// lag ms after its due time.
type fakeScheduler struct {
	clock   *fakeClock
	lag     float64
	pending []*fakeTimer
	delays  []time.Duration
}

func (s *fakeScheduler) AfterFunc(d time.Duration, f func()) Timer {
	t := &fakeTimer{at: s.clock.now + float64(d)/float64(time.Millisecond), f: f}
	s.pending = append(s.pending, t)
	s.delays = append(s.delays, d)
	return t
}

func (s *fakeScheduler) live() []*fakeTimer {
	var out []*fakeTimer
	for _, t := range s.pending {
		if !t.stopped {
			out = append(out, t)
		}
	}
	return out
}

// fire runs the next live timer and reports whether there was one.
func (s *fakeScheduler) fire() bool {
	live := s.live()
	if len(live) == 0 {
		return false
	}
	sort.Slice(live, func(i, j int) bool { return live[i].at < live[j].at })
	t := live[0]
	t.stopped = true
	s.clock.now = t.at + s.lag
	t.f()
	return true
}

func newTestController(opts Options) (*Controller, *fakeClock, *fakeScheduler) {
	clock := &fakeClock{}
	sched := &fakeScheduler{clock: clock}
	opts.Clock = clock
	opts.Scheduler = sched
	opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(opts), clock, sched
}

func spanTrack(typ timeline.TrackType, start, end float64) timeline.Track {
	return timeline.NewTrack(typ, timeline.PauseEvent(start, end))
}

func TestDrawingProgressScenario(t *testing.T) {
	c, _, _ := newTestController(Options{})
	path := []geometry.Point{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 10, Y: 10}}
	c.Load([]timeline.Track{timeline.NewTrack(timeline.TrackDrawing, timeline.DrawStroke(0, 1000, path, "", 0))})

	var last Snapshot
	c.OnFrame(func(s Snapshot) { last = s })

	c.Play()
	for ts := 0.0; ts <= 500; ts += 50 {
		c.Tick(ts)
	}
	if last.CurrentTime != 500 {
		t.Fatalf("expected time 500, got %v", last.CurrentTime)
	}
	active := last.Drawing.ActiveStroke
	if active == nil {
		t.Fatal("expected an active stroke at 500ms")
	}
	if got := active.Length(); math.Abs(got-10) > 1e-9 {
		t.Errorf("expected half the path (10), got %v", got)
	}
	if len(active.Points) != 2 {
		t.Errorf("expected 2 points, got %v", active.Points)
	}
	if len(last.Drawing.CompletedStrokes) != 0 {
		t.Errorf("no stroke should be complete yet")
	}

	for ts := 550.0; ts <= 1000; ts += 50 {
		c.Tick(ts)
	}
	if last.Drawing.ActiveStroke != nil {
		t.Error("stroke should no longer be active at the end")
	}
	if len(last.Drawing.CompletedStrokes) != 1 || len(last.Drawing.CompletedStrokes[0].Points) != 3 {
		t.Errorf("expected the full stroke to be complete, got %+v", last.Drawing.CompletedStrokes)
	}
}

func TestTickAccumulatesDeltas(t *testing.T) {
	c, _, _ := newTestController(Options{})
	c.Load([]timeline.Track{spanTrack(timeline.TrackCursor, 0, 2000)})
	c.Play()

	prev := -1.0
	sum := 0.0
	lastTs := 0.0
	for _, ts := range []float64{0, 16, 33, 50} {
		c.Tick(ts)
		sum += ts - lastTs
		lastTs = ts
		now := c.State().CurrentTime
		if now < prev {
			t.Fatalf("time went backwards: %v -> %v", prev, now)
		}
		if math.Abs(now-sum) > 1e-9 {
			t.Errorf("at ts=%v expected %v, got %v", ts, sum, now)
		}
		prev = now
	}

	c.SetSpeed(2)
	c.Tick(60)
	if got := c.State().CurrentTime; math.Abs(got-70) > 1e-9 {
		t.Errorf("expected rate-scaled advance to 70, got %v", got)
	}
}

func TestTickClampsDelta(t *testing.T) {
	c, _, _ := newTestController(Options{MaxDeltaMs: 100})
	c.Load([]timeline.Track{spanTrack(timeline.TrackCursor, 0, 10000)})

	var deltas []float64
	c.OnFrame(func(s Snapshot) { deltas = append(deltas, s.DeltaMs) })

	c.Play()
	c.Tick(0)
	c.Tick(5000) // stall
	c.Tick(4000) // clock went backwards

	want := []float64{0, 100, 0}
	for i, w := range want {
		if deltas[i] != w {
			t.Errorf("tick %d: expected delta %v, got %v", i, w, deltas[i])
		}
	}
	if got := c.State().CurrentTime; got != 100 {
		t.Errorf("expected 100, got %v", got)
	}
}

func TestCompletion(t *testing.T) {
	c, _, _ := newTestController(Options{})
	c.Load([]timeline.Track{spanTrack(timeline.TrackText, 0, 150)})

	completions := 0
	var changes []StateChange
	c.OnComplete(func(timeline.EngineState) { completions++ })
	c.OnStateChange(func(sc StateChange) { changes = append(changes, sc) })

	c.Play()
	for _, ts := range []float64{0, 100, 200, 300} {
		c.Tick(ts)
	}

	if completions != 1 {
		t.Errorf("expected exactly one completion, got %d", completions)
	}
	s := c.State()
	if s.Status != timeline.StatusReady || s.CurrentTime != 150 || s.IsPlaying {
		t.Errorf("expected ready at the end, got %+v", s)
	}
	last := changes[len(changes)-1]
	if last.Previous.Status != timeline.StatusPlaying || last.Current.Status != timeline.StatusReady {
		t.Errorf("expected playing -> ready transition, got %+v", last)
	}

	// replay from the end rewinds
	c.Play()
	if s := c.State(); s.CurrentTime != 0 || !s.IsPlaying {
		t.Errorf("replay should restart from 0, got %+v", s)
	}
}

func TestNonFiniteTickAndSeek(t *testing.T) {
	c, _, _ := newTestController(Options{})
	c.Load([]timeline.Track{spanTrack(timeline.TrackCursor, 0, 2000)})

	c.Seek(math.NaN())
	if got := c.State().CurrentTime; got != 0 {
		t.Fatalf("NaN seek moved the playhead to %v", got)
	}

	frames := 0
	c.OnFrame(func(Snapshot) { frames++ })
	c.Play()
	c.Tick(0)
	c.Tick(math.NaN())
	c.Tick(math.Inf(1))
	c.Tick(16)
	c.Tick(32)

	s := c.State()
	if s.CurrentTime != 32 || !s.IsPlaying {
		t.Errorf("expected playing at 32, got %+v", s)
	}
	if frames != 3 {
		t.Errorf("non-finite ticks must not emit frames, got %d frames", frames)
	}

	for ts := 48.0; ts <= 2100; ts += 16 {
		c.Tick(ts)
	}
	if got := c.State(); got.CurrentTime != 2000 || got.IsPlaying {
		t.Errorf("playback should complete after non-finite ticks, got %+v", got)
	}
}

func TestAutoPlayEmptyTimelineKeepsLoopStopped(t *testing.T) {
	c, _, sched := newTestController(Options{AutoPlay: true})
	c.Load(nil)

	if c.IsLooping() {
		t.Error("loop must not start when autoplay is refused")
	}
	if len(sched.live()) != 0 {
		t.Errorf("expected no scheduled ticks, got %d", len(sched.live()))
	}
	if c.State().IsPlaying {
		t.Errorf("empty timeline must not play, got %+v", c.State())
	}
}

func TestSeekNotifiesWhilePaused(t *testing.T) {
	c, _, _ := newTestController(Options{})
	c.Load([]timeline.Track{spanTrack(timeline.TrackNarration, 0, 1000)})
	c.Play()
	c.Tick(0)
	c.Tick(100)
	c.Pause()

	var seeks []SeekEvent
	var frames []Snapshot
	c.OnSeek(func(e SeekEvent) { seeks = append(seeks, e) })
	c.OnFrame(func(s Snapshot) { frames = append(frames, s) })

	c.Seek(750)
	if len(seeks) != 1 || seeks[0].From != 100 || seeks[0].To != 750 {
		t.Fatalf("unexpected seek events %+v", seeks)
	}
	if len(frames) != 1 || frames[0].CurrentTime != 750 || frames[0].DeltaMs != 0 {
		t.Fatalf("expected a zero-delta frame at 750, got %+v", frames)
	}
	if !frames[0].Narration.Active {
		t.Error("narration should be active at 750")
	}
	if c.State().Status != timeline.StatusPaused {
		t.Error("seek must not change the status")
	}

	c.Seek(5000)
	if seeks[1].To != 1000 {
		t.Errorf("expected clamp to 1000, got %v", seeks[1].To)
	}
}

func TestSetSpeedNotifiesOnChange(t *testing.T) {
	c, _, _ := newTestController(Options{})
	changes := 0
	c.OnStateChange(func(StateChange) { changes++ })

	c.SetSpeed(1)
	c.SetSpeed(2)
	c.SetSpeed(10)
	c.SetSpeed(20)

	if changes != 2 {
		t.Errorf("expected 2 notifications, got %d", changes)
	}
	if got := c.State().PlaybackRate; got != timeline.MaxPlaybackRate {
		t.Errorf("expected clamped rate, got %v", got)
	}
}

func TestTransportNoOps(t *testing.T) {
	c, _, _ := newTestController(Options{})
	changes := 0
	c.OnStateChange(func(StateChange) { changes++ })

	c.Play()
	c.Pause()
	c.Resume()
	if changes != 0 || c.State().Status != timeline.StatusIdle {
		t.Errorf("transport on an empty controller must be a no-op, got %d changes, %+v", changes, c.State())
	}

	c.Load(nil)
	c.Play()
	if c.State().IsPlaying {
		t.Error("zero-duration timeline must not play")
	}

	c.MarkError(io.ErrUnexpectedEOF)
	if c.State().Status != timeline.StatusError {
		t.Errorf("expected error status, got %s", c.State().Status)
	}
}

func TestResumeRebaselines(t *testing.T) {
	c, clock, _ := newTestController(Options{})
	c.Load([]timeline.Track{spanTrack(timeline.TrackCursor, 0, 10000)})
	c.Play()
	c.Tick(0)
	c.Tick(50)
	c.Pause()

	clock.now = 60000
	c.Resume()
	c.Tick(60020)
	if got := c.State().CurrentTime; got != 70 {
		t.Errorf("expected 70 after resume, got %v", got)
	}
}

func TestLoopDriftCompensation(t *testing.T) {
	c, clock, sched := newTestController(Options{TargetFPS: 50}) // 20ms frames
	c.Load([]timeline.Track{spanTrack(timeline.TrackCursor, 0, 60000)})
	sched.lag = 5

	c.Play()
	c.StartLoop()
	for i := 0; i < 10; i++ {
		if !sched.fire() {
			t.Fatal("loop stopped unexpectedly")
		}
	}

	if sched.delays[0] != 20*time.Millisecond {
		t.Errorf("first delay should be one frame, got %v", sched.delays[0])
	}
	for i, d := range sched.delays[1:] {
		if d != 15*time.Millisecond {
			t.Errorf("delay %d: expected 15ms to absorb the lag, got %v", i+1, d)
		}
	}
	// 10 frames on the 20ms grid plus one lag, not 10 lags
	if clock.now != 205 {
		t.Errorf("expected the 10th tick at 205ms, got %v", clock.now)
	}
	if got := c.State().CurrentTime; got != 205 {
		t.Errorf("expected 205ms of playback, got %v", got)
	}
}

func TestLoopResyncsWhenBehind(t *testing.T) {
	c, _, sched := newTestController(Options{TargetFPS: 50})
	c.Load([]timeline.Track{spanTrack(timeline.TrackCursor, 0, 60000)})
	sched.lag = 50

	c.StartLoop()
	sched.fire()
	sched.fire()

	if sched.delays[1] != time.Millisecond {
		t.Errorf("a late loop should reschedule after the minimum delay, got %v", sched.delays[1])
	}
}

func TestLoopKeepsRunningWhilePaused(t *testing.T) {
	c, _, sched := newTestController(Options{TargetFPS: 50})
	c.Load([]timeline.Track{spanTrack(timeline.TrackCursor, 0, 60000)})

	c.Play()
	c.StartLoop()
	sched.fire()
	c.Pause()
	at := c.State().CurrentTime

	for i := 0; i < 5; i++ {
		sched.fire()
	}
	if !c.IsLooping() {
		t.Fatal("loop should keep running while paused")
	}
	if c.State().CurrentTime != at {
		t.Errorf("time advanced while paused: %v -> %v", at, c.State().CurrentTime)
	}

	c.Resume()
	sched.fire()
	if c.State().CurrentTime <= at {
		t.Error("time should advance again after resume")
	}

	c.StopLoop()
	if c.IsLooping() || len(sched.live()) != 0 {
		t.Error("StopLoop should cancel the pending tick")
	}
}

func TestLoopStopsOnCompletion(t *testing.T) {
	c, _, sched := newTestController(Options{TargetFPS: 50, AutoPlay: true})

	done := 0
	c.OnComplete(func(timeline.EngineState) {
		done++
		// listeners may call back into the controller
		c.Seek(0)
	})
	c.Load([]timeline.Track{spanTrack(timeline.TrackCursor, 0, 100)})

	if !c.State().IsPlaying || !c.IsLooping() {
		t.Fatalf("autoplay should start playback and the loop, got %+v", c.State())
	}

	fired := 0
	for sched.fire() {
		fired++
		if fired > 100 {
			t.Fatal("loop never stopped")
		}
	}
	if done != 1 {
		t.Errorf("expected one completion, got %d", done)
	}
	if c.IsLooping() {
		t.Error("loop should stop when playback completes")
	}
	if c.State().CurrentTime != 0 {
		t.Error("seek from the completion listener should have applied")
	}
}

func TestDestroy(t *testing.T) {
	c, _, sched := newTestController(Options{})
	c.Load([]timeline.Track{spanTrack(timeline.TrackCursor, 0, 1000)})
	c.OnFrame(func(Snapshot) {})
	unsub := c.OnSeek(func(SeekEvent) {})
	c.OnComplete(func(timeline.EngineState) {})

	unsub()
	unsub()
	if got := c.ListenerCount(); got != 2 {
		t.Errorf("expected 2 listeners after unsubscribe, got %d", got)
	}

	c.Play()
	c.StartLoop()
	c.Destroy()

	if c.ListenerCount() != 0 {
		t.Error("destroy should drop all listeners")
	}
	if c.IsLooping() || len(sched.live()) != 0 {
		t.Error("destroy should stop the loop")
	}
	if c.State() != timeline.InitialState() || len(c.Tracks()) != 0 {
		t.Errorf("destroy should reset to idle, got %+v", c.State())
	}
}

func TestAccessorsCopy(t *testing.T) {
	c, _, _ := newTestController(Options{})
	c.Load([]timeline.Track{
		timeline.NewTrack(timeline.TrackCursor, timeline.CursorMove(0, 100, geometry.Point{X: 1}, geometry.Point{X: 2})),
		timeline.NewTrack(timeline.TrackCursor, timeline.CursorMove(50, 200, geometry.Point{X: 5})),
	})

	tracks := c.Tracks()
	tracks[0].Events[0].Payload.Path[0].X = 99
	if c.Tracks()[0].Events[0].Payload.Path[0].X == 99 {
		t.Error("Tracks must return a copy")
	}

	issues := c.Issues()
	if len(issues) != 0 {
		t.Errorf("separate tracks should not report overlaps, got %+v", issues)
	}
}
