package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"io"
	"os/exec"
)

// Params describe the raw stream fed to ffmpeg and the encoded output.
type Params struct {
	Width, Height int
	FPS           int
	Encoder       string // h264_videotoolbox, h264_nvenc or libx264
	Quality       int
}

// VideoEncoder opens an encoding session writing to path.
type VideoEncoder interface {
	Start(ctx context.Context, path string, params Params) (*Session, error)
}

// FFmpegEncoder pipes raw RGBA frames into an ffmpeg process.
type FFmpegEncoder struct {
	// Binary defaults to "ffmpeg" from PATH.
	Binary string
}

// Session is one running ffmpeg process accepting frames on stdin.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	out    bytes.Buffer
	rect   image.Rectangle
	frames int
}

func (e *FFmpegEncoder) Start(ctx context.Context, path string, params Params) (*Session, error) {
	if params.Width <= 0 || params.Height <= 0 || params.FPS <= 0 {
		return nil, fmt.Errorf("invalid video params %dx%d @ %d", params.Width, params.Height, params.FPS)
	}
	bin := e.Binary
	if bin == "" {
		bin = "ffmpeg"
	}

	s := &Session{rect: image.Rect(0, 0, params.Width, params.Height)}
	s.cmd = exec.CommandContext(ctx, bin, BuildArgs(path, params)...)
	s.cmd.Stdout = &s.out
	s.cmd.Stderr = &s.out

	stdin, err := s.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe error: %w", err)
	}
	s.stdin = stdin

	if err := s.cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start error: %w", err)
	}
	return s, nil
}

// WriteFrame sends one frame. Frames of another size are rejected since
// ffmpeg reads a fixed number of bytes per frame.
func (s *Session) WriteFrame(img image.Image) error {
	if img.Bounds().Size() != s.rect.Size() {
		return fmt.Errorf("frame %d is %v, expected %v", s.frames, img.Bounds().Size(), s.rect.Size())
	}
	if err := writeRawRGBA(s.stdin, img); err != nil {
		return fmt.Errorf("write raw error: %w", err)
	}
	s.frames++
	return nil
}

// Frames is the number of frames written so far.
func (s *Session) Frames() int { return s.frames }

// Close ends the input stream and waits for ffmpeg to finish the file.
func (s *Session) Close() error {
	closeErr := s.stdin.Close()
	if err := s.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg wait error: %w, output: %s", err, s.out.String())
	}
	if closeErr != nil && !errors.Is(closeErr, io.ErrClosedPipe) {
		return closeErr
	}
	return nil
}

// BuildArgs assembles the ffmpeg command line for a raw RGBA stdin stream.
func BuildArgs(path string, params Params) []string {
	encoder := params.Encoder
	if encoder == "" {
		encoder = "libx264"
	}
	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pixel_format", "rgba",
		"-video_size", fmt.Sprintf("%dx%d", params.Width, params.Height),
		"-framerate", fmt.Sprintf("%d", params.FPS),
		"-i", "-",
		"-pix_fmt", "yuv420p",
		"-c:v", encoder,
	}

	// Quality flag depends on the encoder.
	switch encoder {
	case "h264_videotoolbox":
		bitrate := params.Quality * 100
		args = append(args, "-b:v", fmt.Sprintf("%dk", bitrate))
	case "h264_nvenc":
		args = append(args, "-cq", fmt.Sprintf("%d", params.Quality))
	default: // libx264
		args = append(args, "-crf", fmt.Sprintf("%d", params.Quality), "-preset", "medium")
	}

	args = append(args, path)
	return args
}

func writeRawRGBA(w io.Writer, img image.Image) error {
	bounds := img.Bounds()
	rgba, ok := img.(*image.RGBA)
	if !ok || rgba.Stride != bounds.Dx()*4 || rgba.Rect.Min.X != 0 || rgba.Rect.Min.Y != 0 {
		rgba = image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
		draw.Draw(rgba, rgba.Rect, img, bounds.Min, draw.Src)
	}
	_, err := w.Write(rgba.Pix)
	return err
}
