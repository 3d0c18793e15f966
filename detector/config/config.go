package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
)

// Mode selects which analyzer implementations the feature pipeline uses
type Mode string

const (
	// ModeRich uses framed analysis: dB trimming, pitch tracking, RMS
	// frames, MFCC and per-frame spectral shape
	ModeRich Mode = "rich"
	// ModeFallback uses whole-signal approximations
	ModeFallback Mode = "fallback"
)

// Learner selects the classifier trained when no persisted model exists
type Learner string

const (
	LearnerForest   Learner = "forest"
	LearnerLogistic Learner = "logistic"
)

// StoreKind selects the model persistence backend
type StoreKind string

const (
	StoreFile   StoreKind = "file"
	StoreBadger StoreKind = "badger"
)

// Environment overrides applied by Load and FromEnv
const (
	EnvAPIKey    = "API_KEY"
	EnvModelPath = "MODEL_PATH"
	EnvMode      = "SONIDO_VOX_MODE"
)

// Config is the root configuration
type Config struct {
	SampleRate int            `yaml:"sample_rate"`
	Mode       Mode           `yaml:"mode"`
	Model      ModelConfig    `yaml:"model"`
	Training   TrainingConfig `yaml:"training"`
	Decoder    DecoderConfig  `yaml:"decoder"`
	Server     ServerConfig   `yaml:"server"`
	Logging    LoggingConfig  `yaml:"logging"`
}

// ModelConfig configures the classifier and where it is persisted
type ModelConfig struct {
	Learner   Learner   `yaml:"learner"`
	Store     StoreKind `yaml:"store"`
	Path      string    `yaml:"path"`       // file store location
	BadgerDir string    `yaml:"badger_dir"` // badger store directory
	Name      string    `yaml:"name"`       // badger key suffix

	Forest   ForestConfig   `yaml:"forest"`
	Logistic LogisticConfig `yaml:"logistic"`
}

// ForestConfig holds ensemble hyperparameters
type ForestConfig struct {
	Trees       int `yaml:"trees"`
	MaxDepth    int `yaml:"max_depth"` // 0 grows until pure
	MinLeafSize int `yaml:"min_leaf_size"`
}

// LogisticConfig holds gradient descent hyperparameters
type LogisticConfig struct {
	LearningRate float64 `yaml:"learning_rate"`
	Iterations   int     `yaml:"iterations"`
}

// TrainingConfig controls the synthetic bootstrap set
type TrainingConfig struct {
	Samples int    `yaml:"samples"`
	Seed    uint64 `yaml:"seed"`
}

// DecoderConfig controls audio decoding
type DecoderConfig struct {
	FFmpegPath string        `yaml:"ffmpeg_path"`
	Timeout    time.Duration `yaml:"timeout"`
}

// ServerConfig controls the HTTP boundary
type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	APIKey         string        `yaml:"api_key"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// LoggingConfig controls the global logger
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		SampleRate: 16000,
		Mode:       ModeRich,
		Model: ModelConfig{
			Learner:   LearnerForest,
			Store:     StoreFile,
			Path:      "models/voice_detector.msgpack",
			BadgerDir: "models/badger",
			Name:      "voice_detector",
			Forest: ForestConfig{
				Trees:       100,
				MinLeafSize: 1,
			},
			Logistic: LogisticConfig{
				LearningRate: 0.5,
				Iterations:   2000,
			},
		},
		Training: TrainingConfig{
			Samples: 200,
			Seed:    42,
		},
		Decoder: DecoderConfig{
			FFmpegPath: "ffmpeg",
			Timeout:    30 * time.Second,
		},
		Server: ServerConfig{
			Addr:           ":8000",
			APIKey:         "testkey",
			ReadTimeout:    30 * time.Second,
			MaxUploadBytes: 20 << 20,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads a YAML file over the defaults and applies environment
// overrides. An empty path loads defaults only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv in
// production.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		c.Server.APIKey = v
	}
	if v, ok := lookup(EnvModelPath); ok && v != "" {
		c.Model.Path = v
	}
	if v, ok := lookup(EnvMode); ok && v != "" {
		c.Mode = Mode(v)
	}
}

// Validate reports every invalid field at once
func (c *Config) Validate() error {
	var errs []error

	if c.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", c.SampleRate))
	}
	switch c.Mode {
	case ModeRich, ModeFallback:
	default:
		errs = append(errs, fmt.Errorf("unknown mode %q", c.Mode))
	}
	switch c.Model.Learner {
	case LearnerForest, LearnerLogistic:
	default:
		errs = append(errs, fmt.Errorf("unknown learner %q", c.Model.Learner))
	}
	switch c.Model.Store {
	case StoreFile:
		if c.Model.Path == "" {
			errs = append(errs, errors.New("model.path is required for the file store"))
		}
	case StoreBadger:
		if c.Model.BadgerDir == "" || c.Model.Name == "" {
			errs = append(errs, errors.New("model.badger_dir and model.name are required for the badger store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown model store %q", c.Model.Store))
	}
	if c.Model.Forest.Trees <= 0 {
		errs = append(errs, fmt.Errorf("model.forest.trees must be positive, got %d", c.Model.Forest.Trees))
	}
	if c.Model.Logistic.LearningRate <= 0 || c.Model.Logistic.Iterations <= 0 {
		errs = append(errs, errors.New("model.logistic needs a positive learning_rate and iterations"))
	}
	if c.Training.Samples < 2 {
		errs = append(errs, fmt.Errorf("training.samples must be at least 2, got %d", c.Training.Samples))
	}
	if c.Decoder.Timeout <= 0 {
		errs = append(errs, errors.New("decoder.timeout must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
