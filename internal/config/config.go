package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/danielpatrickdp/reimburse-harness/internal/eval"
	"github.com/danielpatrickdp/reimburse-harness/internal/search"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// #region load
// Load reads path over the defaults, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// LoadDotenv loads variables from .env files that exist. Variables already set
// in the environment win.
func LoadDotenv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides file values with HARNESS_DATASET, HARNESS_LEDGER,
// HARNESS_WORKERS, HARNESS_LOG_LEVEL and REGRESSOR_ADDR when set.
func (c *Config) ApplyEnv() {
	c.Dataset = envOr("HARNESS_DATASET", c.Dataset)
	c.Ledger = envOr("HARNESS_LEDGER", c.Ledger)
	c.Log.Level = envOr("HARNESS_LOG_LEVEL", c.Log.Level)
	c.Model.Addr = envOr("REGRESSOR_ADDR", c.Model.Addr)
	if n, err := strconv.Atoi(envOr("HARNESS_WORKERS", "")); err == nil {
		c.Search.Workers = n
	}
}

// Validate checks field constraints and that every grid param has values.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	for _, gc := range c.Grids {
		g, err := gc.Grid(c.Search.MaxGridSize)
		if err == nil {
			err = g.Validate()
		}
		if err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}
	return nil
}

// #endregion load

// #region conversions
// EvalConfig converts to the evaluator's configuration.
func (c Config) EvalConfig() eval.EvalConfig {
	return eval.EvalConfig{
		ExactTolerance: c.Eval.ExactTolerance,
		CloseTolerance: c.Eval.CloseTolerance,
		RoundToCents:   c.Eval.RoundToCents,
	}
}

// DriverConfig converts to the search driver's configuration.
func (c Config) DriverConfig() search.DriverConfig {
	workers := c.Search.Workers
	if workers == 0 {
		workers = runtime.NumCPU()
	}
	return search.DriverConfig{
		Workers:        workers,
		BatchPerWorker: c.Search.BatchPerWorker,
		MaxGridSize:    c.Search.MaxGridSize,
	}
}

// Refinement converts the refine section.
func (c Config) Refinement() search.Refinement {
	return search.Refinement{
		Rounds: c.Search.Refine.Rounds,
		Span:   c.Search.Refine.Span,
		Shrink: c.Search.Refine.Shrink,
	}
}

// ModelTimeout is the per-call regressor deadline.
func (c Config) ModelTimeout() time.Duration {
	return time.Duration(c.Model.TimeoutMillis) * time.Millisecond
}

// SearchGrids returns the configured grids, or DefaultGrids when none are set.
func (c Config) SearchGrids() ([]search.Grid, error) {
	if len(c.Grids) == 0 {
		return DefaultGrids(), nil
	}
	out := make([]search.Grid, 0, len(c.Grids))
	for _, gc := range c.Grids {
		g, err := gc.Grid(c.Search.MaxGridSize)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// Grid expands ranges into a search grid. The grid is measured before any
// range is expanded, and one with more than maxSize points (when maxSize is
// positive) is refused with search.ErrGridTooLarge.
func (gc GridConfig) Grid(maxSize int) (search.Grid, error) {
	size := 1.0
	for _, pc := range gc.Params {
		n := float64(len(pc.Values))
		if pc.Range != nil {
			rn := pc.Range.Count()
			if rn > search.MaxRangeLen {
				return search.Grid{}, fmt.Errorf("grid %q param %q has %g values, limit %d: %w",
					gc.Name, pc.Name, rn, search.MaxRangeLen, search.ErrGridTooLarge)
			}
			n += rn
		}
		size *= n
	}
	if maxSize > 0 && size > float64(maxSize) {
		return search.Grid{}, fmt.Errorf("grid %q has %g points, limit %d: %w",
			gc.Name, size, maxSize, search.ErrGridTooLarge)
	}

	g := search.Grid{Name: gc.Name, Template: gc.Template.Clone()}
	for _, pc := range gc.Params {
		p := search.Param{Name: pc.Name, Values: append([]float64(nil), pc.Values...)}
		if pc.Range != nil {
			p.Values = append(p.Values, pc.Range.Values()...)
		}
		if len(p.Values) == 0 {
			return search.Grid{}, fmt.Errorf("grid %q param %q: %w", gc.Name, pc.Name, search.ErrEmptySpace)
		}
		g.Params = append(g.Params, p)
	}
	return g, nil
}

// Logger builds the slog logger described by the log section, writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// #endregion conversions

// #region helpers
func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
