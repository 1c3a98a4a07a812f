package preview

import (
	"context"
	"fmt"
	"image"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/lessonplay/internal/playback"
	"github.com/ivlev/lessonplay/internal/system"
	"github.com/ivlev/lessonplay/internal/timeline"
)

// EmitFunc receives rendered frames in order. The frame is returned to the
// pool after EmitFunc returns, so it must not be retained.
type EmitFunc func(index int, frame *image.RGBA) error

// FrameCount is the number of frames covering durationMs at fps, including
// the frame at t = 0 and the one at the end.
func FrameCount(durationMs float64, fps int) int {
	if fps <= 0 || durationMs < 0 {
		return 0
	}
	return int(math.Floor(durationMs/1000*float64(fps))) + 1
}

// FrameTime is the timeline position of frame i.
func FrameTime(i, fps int, durationMs float64) float64 {
	return math.Min(float64(i)*1000/float64(fps), durationMs)
}

// RenderFrames renders the whole timeline at fps with up to workers frames
// in flight and hands them to emit in order. Each frame is derived from a
// seek to its own time, so frames do not depend on each other.
func RenderFrames(ctx context.Context, r *Renderer, tracks []timeline.Track, fps, workers int, emit EmitFunc) error {
	if fps <= 0 {
		return fmt.Errorf("invalid fps: %d", fps)
	}
	if workers < 1 {
		workers = 1
	}

	duration := timeline.TracksDuration(tracks)
	base := timeline.SetDuration(timeline.InitialState(), duration)
	total := FrameCount(duration, fps)
	batch := make([]*image.RGBA, workers*2)

	for start := 0; start < total; start += len(batch) {
		n := min(len(batch), total-start)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for j := 0; j < n; j++ {
			i := start + j
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				state := timeline.Seek(base, FrameTime(i, fps, duration))
				batch[j] = r.Render(playback.Derive(tracks, state, 0))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			release(batch[:n])
			return err
		}

		for j := 0; j < n; j++ {
			err := emit(start+j, batch[j])
			system.PutFrame(batch[j])
			batch[j] = nil
			if err != nil {
				release(batch[j+1 : n])
				return fmt.Errorf("frame %d: %w", start+j, err)
			}
		}
	}
	return nil
}

func release(frames []*image.RGBA) {
	for i, f := range frames {
		if f != nil {
			system.PutFrame(f)
			frames[i] = nil
		}
	}
}
