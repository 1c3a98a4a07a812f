package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ivlev/lessonplay/internal/config"
	"github.com/ivlev/lessonplay/internal/lesson"
	"github.com/ivlev/lessonplay/internal/system"
)

var buildVersion = "dev"

// options are the command line flags. Zero values leave the configuration
// untouched.
type options struct {
	mode     string
	config   string
	input    string
	output   string
	fps      int
	workers  int
	quality  int
	encoder  string
	speed    float64
	realtime bool
	addr     string
	stats    bool
	logLevel string
}

func main() {
	system.InitResourceLimits()

	// Working directories for sources, exports and lessons.
	for _, d := range []string{"input", "output", lesson.DefaultDir} {
		os.MkdirAll(d, 0755)
	}

	var o options
	flag.StringVar(&o.mode, "mode", "simulate", "Режим: validate, build, simulate, export, serve")
	flag.StringVar(&o.config, "config", "", "Путь к YAML конфигурации (по умолчанию: встроенные значения)")
	flag.StringVar(&o.input, "input", "", "Путь к источнику (build) или уроку (по умолчанию: самый свежий файл)")
	flag.StringVar(&o.output, "output", "", "Путь к результату (если пусто, генерируется автоматически)")
	flag.IntVar(&o.fps, "fps", 0, "FPS цикла воспроизведения или экспорта")
	flag.IntVar(&o.workers, "workers", 0, "Потоки рендеринга кадров")
	flag.IntVar(&o.quality, "quality", 0, "Качество видео (x264: CRF 1-51, VideoToolbox: битрейт = Q*100кбит/с)")
	flag.StringVar(&o.encoder, "encoder", "", "Энкодер: libx264, h264_nvenc, h264_videotoolbox, auto")
	flag.Float64Var(&o.speed, "speed", 1, "Скорость воспроизведения (0.25-4)")
	flag.BoolVar(&o.realtime, "realtime", false, "Симуляция в реальном времени через собственный цикл")
	flag.StringVar(&o.addr, "addr", "", "Адрес websocket сервера")
	flag.BoolVar(&o.stats, "stats", false, "Показать отчет о производительности")
	flag.StringVar(&o.logLevel, "log-level", "", "Уровень логов: debug, info, warn, error")
	flag.Parse()

	cfg, err := loadConfig(o)
	if err != nil {
		log.Fatalf("[-] Ошибка конфигурации: %v", err)
	}
	logger := newLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch o.mode {
	case "validate":
		err = runValidate(ctx, cfg, flag.Args())
	case "build":
		err = runBuild(cfg, o)
	case "simulate":
		err = runSimulate(ctx, cfg, o, logger)
	case "export":
		err = runExport(ctx, cfg, o, logger)
	case "serve":
		err = runServe(ctx, cfg, o, logger)
	default:
		err = fmt.Errorf("неизвестный режим %q", o.mode)
	}
	if err != nil {
		log.Fatalf("[-] Ошибка: %v", err)
	}
}

// loadConfig applies defaults, the optional file, the environment and then
// the flags, in that order.
func loadConfig(o options) (config.Config, error) {
	cfg := config.Default()
	if o.config != "" {
		loaded, err := config.Load(o.config)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(); err != nil {
		return cfg, err
	}

	if o.fps > 0 {
		cfg.Playback.TargetFPS = o.fps
		cfg.Export.FPS = o.fps
	}
	if o.workers > 0 {
		cfg.Export.Workers = o.workers
	}
	if o.quality > 0 {
		cfg.Export.Quality = o.quality
	}
	if o.encoder != "" {
		cfg.Export.Encoder = o.encoder
	}
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.stats {
		cfg.ShowStats = true
	}
	cfg.BuildVersion = buildVersion

	return cfg, cfg.Validate()
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// resolveLesson returns path or, when empty, the newest lesson file.
func resolveLesson(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	latest, err := lesson.FindLatest(lesson.DefaultDir)
	if err != nil {
		return "", fmt.Errorf("%w. Создайте урок: -mode build", err)
	}
	fmt.Printf("[*] Выбран урок: %s\n", latest)
	return latest, nil
}
