package main

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivlev/lessonplay/internal/builder"
	"github.com/ivlev/lessonplay/internal/config"
	"github.com/ivlev/lessonplay/internal/explanation"
	"github.com/ivlev/lessonplay/internal/lesson"
	"github.com/ivlev/lessonplay/internal/playback"
	"github.com/ivlev/lessonplay/internal/preview"
	"github.com/ivlev/lessonplay/internal/source"
	"github.com/ivlev/lessonplay/internal/stream"
	"github.com/ivlev/lessonplay/internal/system"
	"github.com/ivlev/lessonplay/internal/timeline"
	"github.com/ivlev/lessonplay/internal/video"
)

// runValidate checks every given lesson file, or all lessons in the default
// directory, in parallel.
func runValidate(ctx context.Context, cfg config.Config, paths []string) error {
	if len(paths) == 0 {
		matches, err := filepath.Glob(filepath.Join(lesson.DefaultDir, "*.yaml"))
		if err != nil {
			return err
		}
		paths = matches
	}
	if len(paths) == 0 {
		return fmt.Errorf("%w in %s", lesson.ErrNoLessons, lesson.DefaultDir)
	}

	results := make([]timeline.BuildResult, len(paths))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Export.Workers)
	for i, path := range paths {
		g.Go(func() error {
			l, err := lesson.Read(path)
			if err != nil {
				return err
			}
			results[i] = timeline.Build(l.Tracks)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	failed := 0
	for i, res := range results {
		status := "OK"
		if res.HasErrors() {
			status = "FAIL"
			failed++
		}
		fmt.Printf("[*] %s: %s | треков %d | событий %d | %.2fs\n",
			status, paths[i], len(res.Tracks), res.EventCount, res.Duration/1000)
		for _, is := range res.Issues {
			fmt.Printf("    [%s] %s: %s\n", is.Severity, is.EventID, is.Message)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d из %d уроков с ошибками", failed, len(paths))
	}
	fmt.Printf("[+++] Успех! Проверено уроков: %d\n", len(paths))
	return nil
}

// runBuild turns a text or PDF source into a lesson file.
func runBuild(cfg config.Config, o options) error {
	inputPath := o.input
	if inputPath == "" {
		latest, err := system.FindLatestFile("input", system.SourceExtensions...)
		if err != nil {
			return fmt.Errorf("%w. Положите текст или PDF в input/", err)
		}
		inputPath = latest
		fmt.Printf("[*] Выбран файл: %s\n", inputPath)
	}

	start := time.Now()
	src, err := source.Open(inputPath)
	if err != nil {
		return fmt.Errorf("ошибка инициализации источника: %w", err)
	}
	defer src.Close()

	text, err := source.ReadAll(src)
	if err != nil {
		return err
	}

	blocks := explanation.Parse(text)
	fmt.Printf("[*] Источник: %s | Страниц: %d | Блоков: %d | Оценка: %.1fs\n",
		inputPath, src.PageCount(), len(blocks), explanation.TotalDuration(blocks)/1000)

	res := builder.New(cfg.Builder).Build(blocks)
	for _, is := range res.Issues {
		log.Printf("[!] %s %s: %s", is.Severity, is.EventID, is.Message)
	}
	if res.HasErrors() {
		return errors.New("построенный таймлайн не прошел проверку")
	}

	title := res.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(inputPath), filepath.Ext(inputPath))
	}
	l := lesson.New(title, res.Tracks)
	l.Source = inputPath
	l.Blocks = blocks

	out := o.output
	if out == "" {
		out = lesson.GeneratePath()
	}
	if err := lesson.Write(l, out); err != nil {
		return err
	}

	fmt.Printf("[*] Урок: %q | треков %d | событий %d | %.2fs\n", title, len(res.Tracks), res.EventCount, res.Duration/1000)
	if cfg.ShowStats {
		printStats(cfg, map[string]time.Duration{"Build": time.Since(start)}, []string{"Build"})
	}
	fmt.Printf("[+++] Успех! Результат: %s\n", out)
	return nil
}

// runSimulate plays a lesson headless, either through the controller's own
// loop in real time or with fixed-step ticks as fast as possible.
func runSimulate(ctx context.Context, cfg config.Config, o options, logger *slog.Logger) error {
	path, err := resolveLesson(o.input)
	if err != nil {
		return err
	}
	l, err := lesson.Read(path)
	if err != nil {
		return err
	}

	opts := playback.OptionsFromConfig(cfg.Playback, logger)
	clock := &stepClock{}
	if !o.realtime {
		opts.Clock = clock
	}
	ctrl := playback.New(opts)
	defer ctrl.Destroy()

	res := ctrl.Load(l.Tracks)
	if res.Duration <= 0 {
		return errors.New("урок пуст")
	}
	ctrl.SetSpeed(o.speed)

	fmt.Println("--- [LESSON PLAYBACK] ---")
	fmt.Printf("[*] Урок: %s | %.2fs | Скорость: x%.2f\n", l.Title, res.Duration/1000, ctrl.State().PlaybackRate)
	fmt.Println("-------------------------")

	frames := 0
	lastSecond := -1
	ctrl.OnFrame(func(s playback.Snapshot) {
		frames++
		if sec := int(s.CurrentTime / 1000); sec != lastSecond {
			lastSecond = sec
			line := fmt.Sprintf("[*] %6.2fs / %.2fs (%3.0f%%)", s.CurrentTime/1000, s.State.Duration/1000, s.Progress*100)
			if s.Narration.Active {
				line += " | " + s.Narration.Text
			}
			fmt.Println(line)
		}
	})
	ctrl.OnStateChange(func(c playback.StateChange) {
		logger.Debug("state change", "from", c.Previous.Status, "to", c.Current.Status)
	})
	done := make(chan struct{})
	ctrl.OnComplete(func(timeline.EngineState) { close(done) })

	start := time.Now()
	ctrl.Play()
	if o.realtime {
		ctrl.StartLoop()
		select {
		case <-done:
		case <-ctx.Done():
			ctrl.StopLoop()
			return ctx.Err()
		}
	} else {
		step := ctrl.FrameInterval()
	loop:
		for {
			select {
			case <-done:
				break loop
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			clock.now += step
			ctrl.Tick(clock.now)
		}
	}

	elapsed := time.Since(start)
	fmt.Printf("[*] Кадров: %d | Время: %.2fs\n", frames, elapsed.Seconds())
	if cfg.ShowStats {
		printStats(cfg, map[string]time.Duration{"Playback": elapsed}, []string{"Playback"})
	}
	fmt.Println("[+++] Успех! Воспроизведение завершено")
	return nil
}

// runExport renders a lesson frame by frame and encodes it with ffmpeg.
func runExport(ctx context.Context, cfg config.Config, o options, logger *slog.Logger) error {
	path, err := resolveLesson(o.input)
	if err != nil {
		return err
	}
	l, err := lesson.Read(path)
	if err != nil {
		return err
	}
	res := timeline.Build(l.Tracks)
	if res.Duration <= 0 {
		return errors.New("урок пуст")
	}

	encoder := cfg.Export.Encoder
	if encoder == "auto" {
		encoder = system.GetBestH264Encoder()
		if encoder != "libx264" {
			fmt.Printf("[*] Обнаружено аппаратное ускорение: %s\n", encoder)
		}
	}

	out := o.output
	if out == "" {
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		timestamp := time.Now().Format("2006-01-02_15-04-05")
		out = filepath.Join("output", fmt.Sprintf("%s_%s.mp4", name, timestamp))
	}

	e := cfg.Export
	total := preview.FrameCount(res.Duration, e.FPS)
	fmt.Println("--- [LESSON EXPORT] ---")
	fmt.Printf("[*] Урок: %s | Кадров: %d\n", path, total)
	fmt.Printf("[*] Разрешение: %dx%d @ %d FPS | Потоки: %d | %s\n", e.Width, e.Height, e.FPS, e.Workers, encoder)
	fmt.Println("-----------------------")

	renderer := preview.NewRenderer(res.Tracks, preview.Options{
		Width:      e.Width,
		Height:     e.Height,
		PageWidth:  cfg.Builder.ViewportWidth,
		PageHeight: cfg.Builder.ViewportHeight,
		Logger:     logger,
	})

	start := time.Now()
	var enc video.VideoEncoder = &video.FFmpegEncoder{}
	session, err := enc.Start(ctx, out, video.Params{
		Width: e.Width, Height: e.Height, FPS: e.FPS, Encoder: encoder, Quality: e.Quality,
	})
	if err != nil {
		return err
	}

	err = preview.RenderFrames(ctx, renderer, res.Tracks, e.FPS, e.Workers, func(i int, frame *image.RGBA) error {
		if i > 0 && i%(e.FPS*10) == 0 {
			fmt.Printf("[*] Кадр %d/%d\n", i, total)
		}
		return session.WriteFrame(frame)
	})
	closeErr := session.Close()
	if err != nil {
		os.Remove(out)
		return err
	}
	if closeErr != nil {
		return closeErr
	}

	if cfg.ShowStats {
		printStats(cfg, map[string]time.Duration{"Export": time.Since(start)}, []string{"Export"})
	}
	fmt.Printf("[+++] Успех! Результат: %s\n", out)
	return nil
}

// runServe loads a lesson and serves its playback over websockets until
// interrupted.
func runServe(ctx context.Context, cfg config.Config, o options, logger *slog.Logger) error {
	path, err := resolveLesson(o.input)
	if err != nil {
		return err
	}

	ctrl := playback.New(playback.OptionsFromConfig(cfg.Playback, logger))
	defer ctrl.Destroy()

	hub := stream.NewHub(ctrl, stream.Options{Logger: logger})
	defer hub.Close()

	ctrl.MarkLoading()
	l, err := lesson.Read(path)
	if err != nil {
		ctrl.MarkError(err)
		return err
	}
	ctrl.Load(l.Tracks)
	ctrl.SetSpeed(o.speed)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           hub.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Printf("[*] Сервер: ws://%s/ws | Урок: %s\n", displayAddr(cfg.Server.Addr), l.Title)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		fmt.Println("[*] Остановка сервера...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
	}
	fmt.Println("[+++] Сервер остановлен")
	return nil
}

// stepClock is advanced by hand for fixed-step simulation.
type stepClock struct{ now float64 }

func (c *stepClock) Now() float64 { return c.now }

func displayAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}

func printStats(cfg config.Config, phases map[string]time.Duration, order []string) {
	stats, err := system.CollectStats()
	if err != nil {
		log.Printf("[!] Статистика неполная: %v", err)
	}
	fmt.Print(system.Report(cfg.BuildVersion, phases, order, stats))
}
