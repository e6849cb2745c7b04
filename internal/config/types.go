package config

import (
	"github.com/danielpatrickdp/reimburse-harness/internal/eval"
	"github.com/danielpatrickdp/reimburse-harness/internal/formula"
	"github.com/danielpatrickdp/reimburse-harness/internal/model"
	"github.com/danielpatrickdp/reimburse-harness/internal/search"
)

// #region config
// Config is everything the harness commands need, loaded from YAML.
type Config struct {
	Dataset string       `yaml:"dataset" validate:"required"`
	Ledger  string       `yaml:"ledger"`
	Log     LogConfig    `yaml:"log"`
	Eval    EvalConfig   `yaml:"eval"`
	Search  SearchConfig `yaml:"search"`
	Model   ModelConfig  `yaml:"model"`
	Grids   []GridConfig `yaml:"grids" validate:"dive"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// EvalConfig holds the residual thresholds.
type EvalConfig struct {
	ExactTolerance float64 `yaml:"exact_tolerance" validate:"gte=0"`
	CloseTolerance float64 `yaml:"close_tolerance" validate:"gtefield=ExactTolerance"`
	RoundToCents   bool    `yaml:"round_to_cents"`
}

// SearchConfig bounds the search driver. Workers 0 means one per CPU.
type SearchConfig struct {
	Workers        int          `yaml:"workers" validate:"gte=0"`
	BatchPerWorker int          `yaml:"batch_per_worker" validate:"gte=1"`
	MaxGridSize    int          `yaml:"max_grid_size" validate:"gte=1"`
	Refine         RefineConfig `yaml:"refine"`
}

// RefineConfig describes the narrower grids run after each coarse grid.
type RefineConfig struct {
	Rounds int     `yaml:"rounds" validate:"gte=0"`
	Span   int     `yaml:"span" validate:"gte=1"`
	Shrink float64 `yaml:"shrink" validate:"gt=0,lt=1"`
}

// ModelConfig names the regressor the learned strategy uses. With Addr set the
// regressor is remote, otherwise a ridge fit over the dataset.
type ModelConfig struct {
	Name          string  `yaml:"name" validate:"required"`
	Addr          string  `yaml:"addr" validate:"omitempty,hostname_port"`
	RidgeLambda   float64 `yaml:"ridge_lambda" validate:"gte=0"`
	TimeoutMillis int     `yaml:"timeout_ms" validate:"gte=0"`
}

// GridConfig is a search grid as written in YAML. Each param gives either
// explicit values or a range.
type GridConfig struct {
	Name     string        `yaml:"name" validate:"required"`
	Template formula.Spec  `yaml:"template"`
	Params   []ParamConfig `yaml:"params" validate:"required,dive"`
}

// ParamConfig is one grid axis.
type ParamConfig struct {
	Name   string        `yaml:"name" validate:"required"`
	Values []float64     `yaml:"values,omitempty" validate:"required_without=Range"`
	Range  *search.Range `yaml:"range,omitempty" validate:"required_without=Values"`
}

// #endregion config

// #region defaults
// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Dataset: "public_cases.json",
		Ledger:  "harness.db",
		Log:     DefaultLogConfig(),
		Eval:    DefaultEvalConfig(),
		Search:  DefaultSearchConfig(),
		Model:   DefaultModelConfig(),
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{Level: "info", Format: "text"}
}

func DefaultEvalConfig() EvalConfig {
	d := eval.DefaultEvalConfig()
	return EvalConfig{
		ExactTolerance: d.ExactTolerance,
		CloseTolerance: d.CloseTolerance,
		RoundToCents:   d.RoundToCents,
	}
}

func DefaultSearchConfig() SearchConfig {
	d := search.DefaultDriverConfig()
	r := search.DefaultRefinement()
	return SearchConfig{
		Workers:        0,
		BatchPerWorker: d.BatchPerWorker,
		MaxGridSize:    d.MaxGridSize,
		Refine:         RefineConfig{Rounds: r.Rounds, Span: r.Span, Shrink: r.Shrink},
	}
}

func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Name:          "ridge",
		RidgeLambda:   model.DefaultRidgeLambda,
		TimeoutMillis: int(formula.DefaultModelTimeout.Milliseconds()),
	}
}

// #endregion defaults
