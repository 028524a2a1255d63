// Package config loads the YAML description of a benchmark run and turns it
// into evaluation settings.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v2"

	"imbalcv/dataset"
	"imbalcv/evaluation"
	"imbalcv/folds"
	"imbalcv/metric"
	"imbalcv/ml"
	"imbalcv/preprocess"
	"imbalcv/sampling"
)

var validate = validator.New()

type Config struct {
	Seed          int64            `yaml:"seed"`
	Workers       int              `yaml:"workers" validate:"gte=0"`
	Placement     string           `yaml:"placement" validate:"omitempty,oneof=inside outside"`
	PositiveClass string           `yaml:"positive_class" validate:"required"`
	PrimaryMetric string           `yaml:"primary_metric"`
	Metrics       []string         `yaml:"metrics" validate:"min=1,dive,required"`
	Resampling    Resampling       `yaml:"resampling"`
	Strategies    []StrategyConfig `yaml:"strategies" validate:"min=1,unique=Name,dive"`
	Preprocessing []string         `yaml:"preprocessing" validate:"dive,oneof=center scale range"`
	Model         ModelConfig      `yaml:"model"`
	Data          DataConfig       `yaml:"data"`
	Log           LogConfig        `yaml:"log"`
	Store         StoreConfig      `yaml:"store"`
}

type Resampling struct {
	Kind       string `yaml:"kind" validate:"oneof=kfold cv repeatedcv bootstrap boot"`
	Folds      int    `yaml:"folds" validate:"gte=0"`
	Repeats    int    `yaml:"repeats" validate:"gte=0"`
	Resamples  int    `yaml:"resamples" validate:"gte=0"`
	Stratified *bool  `yaml:"stratified"`
}

type StrategyConfig struct {
	Name  string       `yaml:"name" validate:"required"`
	Kind  string       `yaml:"kind" validate:"oneof=none original down up smote rose custom"`
	Order string       `yaml:"order" validate:"omitempty,oneof=before after"`
	SMOTE *SMOTEConfig `yaml:"smote"`
	ROSE  *ROSEConfig  `yaml:"rose"`
}

type SMOTEConfig struct {
	K         int     `yaml:"k" validate:"gte=0"`
	PercOver  float64 `yaml:"perc_over" validate:"gte=0"`
	PercUnder float64 `yaml:"perc_under" validate:"gte=0"`
}

type ROSEConfig struct {
	P             float64 `yaml:"p" validate:"gte=0,lt=1"`
	HMultMajority float64 `yaml:"hmult_majority" validate:"gte=0"`
	HMultMinority float64 `yaml:"hmult_minority" validate:"gte=0"`
	N             int     `yaml:"n" validate:"gte=0"`
}

type ModelConfig struct {
	Type string               `yaml:"type" validate:"oneof=decision_tree tree logistic_regression logistic glm"`
	Grid map[string][]float64 `yaml:"grid"`
}

type DataConfig struct {
	Train        string          `yaml:"train"`
	Test         string          `yaml:"test"`
	TestFraction float64         `yaml:"test_fraction" validate:"gte=0,lt=1"`
	Label        string          `yaml:"label"`
	Encoding     string          `yaml:"encoding" validate:"omitempty,oneof=utf-8 utf8 gbk gb18030"`
	Simulate     *SimulateConfig `yaml:"simulate"`
}

type SimulateConfig struct {
	Train            int     `yaml:"train" validate:"gte=2"`
	Test             int     `yaml:"test" validate:"gte=2"`
	MinorityFraction float64 `yaml:"minority_fraction" validate:"gte=0,lt=1"`
	NoiseVars        int     `yaml:"noise_vars" validate:"gte=0"`
	LinearVars       int     `yaml:"linear_vars" validate:"gte=0"`
}

type LogConfig struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

// Defaults returns the configuration used for anything a file leaves out:
// 10-fold stratified cross-validation compared across the built-in
// strategies with a decision tree.
func Defaults() Config {
	stratified := true
	return Config{
		Seed:          1,
		Placement:     "inside",
		PositiveClass: dataset.MinorityClass,
		Metrics:       []string{"ROC", "Sens", "Spec"},
		Resampling:    Resampling{Kind: "repeatedcv", Folds: 10, Repeats: 1, Resamples: 25, Stratified: &stratified},
		Strategies: []StrategyConfig{
			{Name: "original", Kind: "none"},
			{Name: "down", Kind: "down"},
			{Name: "up", Kind: "up"},
			{Name: "smote", Kind: "smote"},
			{Name: "rose", Kind: "rose"},
		},
		Model: ModelConfig{Type: "decision_tree"},
		Data:  DataConfig{Label: "Class", Encoding: "utf-8", TestFraction: 0.2},
		Log:   LogConfig{Level: "info"},
	}
}

// Load 加载配置文件
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Defaults and validates the result. Unknown keys
// are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints, then the cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := metric.Names(c.Metrics); err != nil {
		return err
	}
	name := c.PrimaryMetric
	if name == "" {
		// the first metric
		name = c.Metrics[0]
	}
	primary, err := metric.ByName(name)
	if err != nil {
		return fmt.Errorf("primary_metric: %w", err)
	}
	found := false
	for _, name := range c.Metrics {
		if m, _ := metric.ByName(name); m.Name() == primary.Name() {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("primary_metric %q is not among metrics %v", c.PrimaryMetric, c.Metrics)
	}
	scheme, err := c.Resampling.scheme()
	if err != nil {
		return err
	}
	// sizes are checked against the data at run time
	return scheme.Validate(math.MaxInt32)
}

func (r Resampling) scheme() (folds.Scheme, error) {
	kind, err := folds.ParseKind(r.Kind)
	if err != nil {
		return folds.Scheme{}, err
	}
	var scheme folds.Scheme
	if kind == folds.Bootstrap {
		scheme = folds.BootstrapScheme(r.Resamples)
	} else {
		scheme = folds.KFoldScheme(r.Folds, max(r.Repeats, 1))
	}
	scheme.Stratified = r.Stratified == nil || *r.Stratified
	return scheme, nil
}

// BuildOptions supplies what a file cannot describe.
type BuildOptions struct {
	// Custom maps the name of every kind: custom strategy to its sampler.
	Custom map[string]sampling.Subsampler
	Logger *zap.Logger
	Cache  *folds.Cache
}

// Build produces a fresh evaluation.Settings for one run.
func Build(cfg Config, opts BuildOptions) (evaluation.Settings, error) {
	if err := cfg.Validate(); err != nil {
		return evaluation.Settings{}, err
	}
	scheme, err := cfg.Resampling.scheme()
	if err != nil {
		return evaluation.Settings{}, err
	}
	strategies := make([]sampling.Strategy, 0, len(cfg.Strategies))
	for _, sc := range cfg.Strategies {
		st, err := sc.strategy(opts.Custom)
		if err != nil {
			return evaluation.Settings{}, err
		}
		strategies = append(strategies, st)
	}

	var pre preprocess.Preprocessor
	if len(cfg.Preprocessing) > 0 {
		pipeline, err := preprocess.Parse(cfg.Preprocessing)
		if err != nil {
			return evaluation.Settings{}, err
		}
		pre = pipeline
	}

	trainer, err := ml.NewTrainer(cfg.Model.Type)
	if err != nil {
		return evaluation.Settings{}, err
	}
	candidates, err := ml.Grid(cfg.Model.Grid)
	if err != nil {
		return evaluation.Settings{}, err
	}
	metrics, err := metric.Names(cfg.Metrics)
	if err != nil {
		return evaluation.Settings{}, err
	}
	primary := ""
	if cfg.PrimaryMetric != "" {
		m, err := metric.ByName(cfg.PrimaryMetric)
		if err != nil {
			return evaluation.Settings{}, err
		}
		primary = m.Name()
	}
	placement, err := evaluation.ParsePlacement(cfg.Placement)
	if err != nil {
		return evaluation.Settings{}, err
	}

	return evaluation.Settings{
		Scheme:     scheme,
		Seed:       cfg.Seed,
		Strategies: strategies,
		Preprocess: pre,
		Trainer:    trainer,
		Candidates: candidates,
		Metrics:    metrics,
		Primary:    primary,
		Positive:   cfg.PositiveClass,
		Workers:    cfg.Workers,
		Placement:  placement,
		Logger:     opts.Logger,
		Cache:      opts.Cache,
	}, nil
}

func (sc StrategyConfig) strategy(custom map[string]sampling.Subsampler) (sampling.Strategy, error) {
	kind, err := sampling.ParseKind(sc.Kind)
	if err != nil {
		return sampling.Strategy{}, err
	}
	order, err := sampling.ParseOrdering(sc.Order)
	if err != nil {
		return sampling.Strategy{}, err
	}

	var st sampling.Strategy
	switch kind {
	case sampling.None:
		st = sampling.Original()
	case sampling.Down:
		st = sampling.DownSample()
	case sampling.Up:
		st = sampling.UpSample()
	case sampling.SMOTE:
		var o sampling.SMOTEOptions
		if sc.SMOTE != nil {
			o = sampling.SMOTEOptions{K: sc.SMOTE.K, PercOver: sc.SMOTE.PercOver, PercUnder: sc.SMOTE.PercUnder}
		}
		st = sampling.SMOTESample(o)
	case sampling.ROSE:
		var o sampling.ROSEOptions
		if sc.ROSE != nil {
			o = sampling.ROSEOptions{P: sc.ROSE.P, HMultMajority: sc.ROSE.HMultMajority, HMultMinority: sc.ROSE.HMultMinority, N: sc.ROSE.N}
		}
		st = sampling.ROSESample(o)
	case sampling.Custom:
		sampler, ok := custom[sc.Name]
		if !ok || sampler == nil {
			return sampling.Strategy{}, fmt.Errorf("custom strategy %q has no registered sampler", sc.Name)
		}
		return sampling.CustomSample(sc.Name, sampler, order), nil
	default:
		return sampling.Strategy{}, fmt.Errorf("strategy %q: unsupported kind %s", sc.Name, kind)
	}
	return st.Named(sc.Name).WithOrder(order), nil
}

// LoadData returns the train and test frames the data section describes.
// Simulation takes precedence over files; a missing test file is replaced
// by a stratified split of the training file.
func (d DataConfig) LoadData(seed int64) (train, test dataset.Frame, err error) {
	if d.Simulate != nil {
		opts := dataset.SimulateOptions{
			MinorityFraction: d.Simulate.MinorityFraction,
			Linear:           d.Simulate.LinearVars,
			Noise:            d.Simulate.NoiseVars,
		}
		if train, err = dataset.Simulate(d.Simulate.Train, opts, seed); err != nil {
			return
		}
		test, err = dataset.Simulate(d.Simulate.Test, opts, seed+1)
		return
	}
	if d.Train == "" {
		return train, test, errors.New("data: no training file")
	}
	csvOpts := dataset.CSVOptions{Label: d.Label, Encoding: d.Encoding}
	if train, err = dataset.LoadCSV(d.Train, csvOpts); err != nil {
		return
	}
	if strings.TrimSpace(d.Test) == "" {
		fraction := d.TestFraction
		if fraction <= 0 {
			fraction = 0.2
		}
		return dataset.StratifiedSplit(train, fraction, seed)
	}
	csvOpts.Schema = &train.Schema
	test, err = dataset.LoadCSV(d.Test, csvOpts)
	return
}
