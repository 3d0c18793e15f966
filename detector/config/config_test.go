package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadYAML(t *testing.T) {
	t.Setenv(EnvMode, "")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
sample_rate: 22050
mode: fallback
model:
  learner: logistic
  store: badger
  badger_dir: /tmp/models
  name: test
  logistic:
    learning_rate: 0.1
    iterations: 50
decoder:
  timeout: 5s
`)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SampleRate != 22050 || cfg.Mode != ModeFallback {
		t.Fatalf("unexpected top level: %+v", cfg)
	}
	if cfg.Model.Learner != LearnerLogistic || cfg.Model.Store != StoreBadger || cfg.Model.Name != "test" {
		t.Fatalf("unexpected model section: %+v", cfg.Model)
	}
	if cfg.Model.Logistic.Iterations != 50 {
		t.Fatalf("iterations = %d, want 50", cfg.Model.Logistic.Iterations)
	}
	if cfg.Decoder.Timeout != 5*time.Second {
		t.Fatalf("timeout = %v, want 5s", cfg.Decoder.Timeout)
	}
	// untouched sections keep defaults
	if cfg.Model.Forest.Trees != 100 || cfg.Training.Samples != 200 {
		t.Fatalf("defaults lost: %+v", cfg)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		EnvAPIKey:    "secret",
		EnvModelPath: "/var/lib/model.bin",
		EnvMode:      "fallback",
	}
	cfg := Default()
	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if cfg.Server.APIKey != "secret" || cfg.Model.Path != "/var/lib/model.bin" || cfg.Mode != ModeFallback {
		t.Fatalf("env not applied: %+v", cfg)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"sample rate", func(c *Config) { c.SampleRate = 0 }},
		{"mode", func(c *Config) { c.Mode = "turbo" }},
		{"learner", func(c *Config) { c.Model.Learner = "svm" }},
		{"store", func(c *Config) { c.Model.Store = "s3" }},
		{"file path", func(c *Config) { c.Model.Path = "" }},
		{"trees", func(c *Config) { c.Model.Forest.Trees = 0 }},
		{"samples", func(c *Config) { c.Training.Samples = 1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
