package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "LESSONPLAY_"

type Config struct {
	Playback     Playback `yaml:"playback"`
	Builder      Builder  `yaml:"builder"`
	Export       Export   `yaml:"export"`
	Server       Server   `yaml:"server"`
	LogLevel     string   `yaml:"logLevel"`
	ShowStats    bool     `yaml:"showStats"`
	BuildVersion string   `yaml:"-"`
}

// Playback configures the controller.
type Playback struct {
	TargetFPS  int     `yaml:"targetFps"`
	MaxDeltaMs float64 `yaml:"maxDeltaMs"`
	AutoPlay   bool    `yaml:"autoPlay"`
}

// Builder configures the virtual page the lesson builder lays blocks out on.
type Builder struct {
	ViewportWidth  int     `yaml:"viewportWidth"`
	ViewportHeight int     `yaml:"viewportHeight"`
	Margin         float64 `yaml:"margin"`
	LineHeight     float64 `yaml:"lineHeight"`
	CharWidth      float64 `yaml:"charWidth"`
	BlockGapMs     float64 `yaml:"blockGapMs"`
	CursorMoveMs   float64 `yaml:"cursorMoveMs"`
}

type Export struct {
	Width   int    `yaml:"width"`
	Height  int    `yaml:"height"`
	FPS     int    `yaml:"fps"`
	Workers int    `yaml:"workers"`
	Quality int    `yaml:"quality"`
	Encoder string `yaml:"encoder"`
}

type Server struct {
	Addr string `yaml:"addr"`
}

// Default returns the configuration used when no file or env override is given.
func Default() Config {
	return Config{
		Playback: Playback{
			TargetFPS:  60,
			MaxDeltaMs: 100,
		},
		Builder: Builder{
			ViewportWidth:  1280,
			ViewportHeight: 720,
			Margin:         64,
			LineHeight:     48,
			CharWidth:      12,
			BlockGapMs:     400,
			CursorMoveMs:   600,
		},
		Export: Export{
			Width:   1280,
			Height:  720,
			FPS:     30,
			Workers: runtime.NumCPU(),
			Quality: 23,
			Encoder: "libx264",
		},
		Server:   Server{Addr: ":8080"},
		LogLevel: "info",
	}
}

// Load reads a YAML file over the defaults. Keys missing from the file keep
// their default values.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv loads a .env file if present and applies LESSONPLAY_* variables.
func (c *Config) ApplyEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	var errs []error
	setInt := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = n
		}
	}
	setFloat := func(key string, dst *float64) {
		if v, ok := lookup(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = f
		}
	}
	setBool := func(key string, dst *bool) {
		if v, ok := lookup(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				return
			}
			*dst = b
		}
	}

	setInt("TARGET_FPS", &c.Playback.TargetFPS)
	setFloat("MAX_DELTA_MS", &c.Playback.MaxDeltaMs)
	setBool("AUTOPLAY", &c.Playback.AutoPlay)
	setInt("EXPORT_FPS", &c.Export.FPS)
	setInt("EXPORT_WORKERS", &c.Export.Workers)
	setInt("EXPORT_QUALITY", &c.Export.Quality)
	setBool("SHOW_STATS", &c.ShowStats)
	if v, ok := lookup("ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := lookup("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("ENCODER"); ok {
		c.Export.Encoder = v
	}

	return errors.Join(errs...)
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

// Normalized returns b with out-of-range values replaced by the defaults.
func (b Builder) Normalized() Builder {
	d := Default().Builder
	if b.ViewportWidth <= 0 || b.ViewportHeight <= 0 {
		b.ViewportWidth, b.ViewportHeight = d.ViewportWidth, d.ViewportHeight
	}
	if b.Margin < 0 || 2*b.Margin >= float64(b.ViewportWidth) {
		b.Margin = d.Margin
	}
	if b.LineHeight <= 0 {
		b.LineHeight = d.LineHeight
	}
	if b.CharWidth <= 0 {
		b.CharWidth = d.CharWidth
	}
	if b.BlockGapMs < 0 {
		b.BlockGapMs = 0
	}
	if b.CursorMoveMs < 0 {
		b.CursorMoveMs = 0
	}
	return b
}

// Validate replaces out-of-range values with defaults and rejects values that
// cannot be repaired.
func (c *Config) Validate() error {
	d := Default()

	if c.Playback.TargetFPS <= 0 || c.Playback.TargetFPS > 240 {
		c.Playback.TargetFPS = d.Playback.TargetFPS
	}
	if c.Playback.MaxDeltaMs <= 0 {
		c.Playback.MaxDeltaMs = d.Playback.MaxDeltaMs
	}

	c.Builder = c.Builder.Normalized()

	// Even dimensions for yuv420p
	if c.Export.Width <= 0 || c.Export.Height <= 0 {
		c.Export.Width, c.Export.Height = d.Export.Width, d.Export.Height
	}
	c.Export.Width -= c.Export.Width % 2
	c.Export.Height -= c.Export.Height % 2
	if c.Export.FPS <= 0 {
		c.Export.FPS = d.Export.FPS
	}
	if c.Export.Workers <= 0 {
		c.Export.Workers = d.Export.Workers
	}
	if c.Export.Quality < 0 || c.Export.Quality > 51 {
		c.Export.Quality = d.Export.Quality
	}
	if c.Export.Encoder == "" {
		c.Export.Encoder = d.Export.Encoder
	}

	if c.Server.Addr == "" {
		c.Server.Addr = d.Server.Addr
	}

	switch strings.ToLower(c.LogLevel) {
	case "", "info":
		c.LogLevel = "info"
	case "debug", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	return nil
}
