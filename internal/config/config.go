// Package config reads process settings from the environment and an
// optional YAML timing file. Settings are fixed once the server starts.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/DoyleJ11/raffle-draw-backend/internal/session"
	"github.com/DoyleJ11/raffle-draw-backend/internal/ticker"
)

var ErrInvalid = errors.New("invalid configuration")

type Config struct {
	Port            int
	BaseURL         string
	PublicURL       string
	ParticipantsDir string
	PlaceholdersDir string
	AllowedOrigins  []string
	LogLevel        string
	LogFormat       string
	Seed            uint64
	Pacing          ticker.Slowdown
	Reveal          session.Reveal
	SessionIdle     time.Duration
}

// File is the layout of the DRAW_CONFIG file.
type File struct {
	Pacing ticker.Slowdown `yaml:"pacing"`
	Reveal session.Reveal  `yaml:"reveal"`
}

func Default() Config {
	return Config{
		Port:            3001,
		BaseURL:         "http://localhost",
		ParticipantsDir: "./participants",
		PlaceholdersDir: "./placeholders",
		AllowedOrigins:  []string{"*"},
		LogLevel:        "info",
		LogFormat:       "console",
		Pacing:          ticker.DefaultSlowdown(),
		Reveal:          session.DefaultReveal(),
		SessionIdle:     10 * time.Minute,
	}
}

func Load() (Config, error) {
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv. Every parse and validation problem is
// reported, not just the first.
func FromEnv(getenv func(string) string) (Config, error) {
	cfg := Default()
	var errs error

	if path := getenv("DRAW_CONFIG"); path != "" {
		f, err := loadFile(path, cfg)
		if err != nil {
			return cfg, err
		}
		cfg.Pacing, cfg.Reveal = f.Pacing, f.Reveal
	}

	env := reader{getenv: getenv}
	cfg.Port = env.asInt("PORT", cfg.Port)
	cfg.BaseURL = strings.TrimSuffix(env.str("BASE_URL", cfg.BaseURL), "/")
	cfg.PublicURL = strings.TrimSuffix(env.str("PUBLIC_URL", fmt.Sprintf("%s:%d", cfg.BaseURL, cfg.Port)), "/")
	cfg.ParticipantsDir = env.str("PARTICIPANTS_DIR", cfg.ParticipantsDir)
	cfg.PlaceholdersDir = env.str("PLACEHOLDERS_DIR", cfg.PlaceholdersDir)
	cfg.AllowedOrigins = env.list("ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.LogLevel = env.str("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = env.str("LOG_FORMAT", cfg.LogFormat)
	cfg.Seed = env.asUint("DRAW_SEED", cfg.Seed)

	cfg.Pacing.Base = env.asDuration("DRAW_BASE_INTERVAL", cfg.Pacing.Base)
	cfg.Pacing.Factor = env.asFloat("DRAW_SLOWDOWN_FACTOR", cfg.Pacing.Factor)
	cfg.Pacing.Cap = env.asDuration("DRAW_MAX_INTERVAL", cfg.Pacing.Cap)
	cfg.Pacing.Budget = env.asDuration("DRAW_BUDGET", cfg.Pacing.Budget)
	cfg.Reveal.NameDelay = env.asDuration("REVEAL_NAME_DELAY", cfg.Reveal.NameDelay)
	cfg.Reveal.CongratulateDelay = env.asDuration("REVEAL_CONGRATULATE_DELAY", cfg.Reveal.CongratulateDelay)
	cfg.SessionIdle = env.asDuration("SESSION_IDLE_TIMEOUT", cfg.SessionIdle)

	errs = multierr.Append(errs, env.errs)
	errs = multierr.Append(errs, cfg.Validate())
	return cfg, errs
}

func (c Config) Validate() error {
	var errs error
	if c.Port < 1 || c.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("%w: PORT %d out of range", ErrInvalid, c.Port))
	}
	if c.ParticipantsDir == "" {
		errs = multierr.Append(errs, fmt.Errorf("%w: PARTICIPANTS_DIR is empty", ErrInvalid))
	}
	if c.PlaceholdersDir == "" {
		errs = multierr.Append(errs, fmt.Errorf("%w: PLACEHOLDERS_DIR is empty", ErrInvalid))
	}
	if len(c.AllowedOrigins) == 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: ALLOWED_ORIGINS is empty", ErrInvalid))
	}
	if _, err := zap.ParseAtomicLevel(c.LogLevel); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("%w: LOG_LEVEL: %v", ErrInvalid, err))
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		errs = multierr.Append(errs, fmt.Errorf("%w: LOG_FORMAT must be console or json, got %q", ErrInvalid, c.LogFormat))
	}
	errs = multierr.Append(errs, c.Pacing.Validate())
	if c.Reveal.NameDelay < 0 || c.Reveal.CongratulateDelay < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: reveal delays must not be negative", ErrInvalid))
	}
	if c.SessionIdle < 0 {
		errs = multierr.Append(errs, fmt.Errorf("%w: SESSION_IDLE_TIMEOUT must not be negative", ErrInvalid))
	}
	return errs
}

// loadFile decodes path over base, so keys missing from the file keep their defaults.
func loadFile(path string, base Config) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read config file: %w", err)
	}

	f := File{Pacing: base.Pacing, Reveal: base.Reveal}
	if err := yaml.Unmarshal(data, &f); err != nil {
		return File{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return f, nil
}

type reader struct {
	getenv func(string) string
	errs   error
}

func (r *reader) str(key, def string) string {
	if v := strings.TrimSpace(r.getenv(key)); v != "" {
		return v
	}
	return def
}

func (r *reader) list(key string, def []string) []string {
	v := r.getenv(key)
	if strings.TrimSpace(v) == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *reader) asInt(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *reader) asUint(key string, def uint64) uint64 {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *reader) asFloat(key string, def float64) float64 {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return f
}

func (r *reader) asDuration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

func (r *reader) fail(key, value string, err error) {
	r.errs = multierr.Append(r.errs, fmt.Errorf("%w: %s=%q: %v", ErrInvalid, key, value, err))
}
