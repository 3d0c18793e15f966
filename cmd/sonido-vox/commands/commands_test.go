package commands

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/sonido-vox/detector/config"
	"github.com/RyanBlaney/sonido-vox/transcode"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "sonido-vox.yaml")
	body := `mode: fallback
model:
  learner: forest
  store: file
  path: ` + filepath.Join(dir, "model.msgpack") + `
  forest:
    trees: 10
training:
  samples: 10
  seed: 3
logging:
  level: warn
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv(config.EnvMode, "")
	t.Setenv(config.EnvModelPath, "")
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestTrainPersistsModel(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	if err := run(t, "--config", cfgPath, "train", "--dry-run"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "model.msgpack")); !os.IsNotExist(err) {
		t.Fatal("dry run wrote a model")
	}

	if err := run(t, "--config", cfgPath, "train", "--dry-run=false", "--samples", "8", "--learner", "logistic"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "model.msgpack")); err != nil {
		t.Fatalf("model not saved: %v", err)
	}
}

func TestTrainMinimumSamples(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir())
	if err := run(t, "--config", cfgPath, "train", "--dry-run", "--samples", "2"); err != nil {
		t.Fatalf("two samples: %v", err)
	}
}

func TestCheckFFmpegMissingBinary(t *testing.T) {
	cfg := config.Default()
	cfg.Decoder.FFmpegPath = filepath.Join(t.TempDir(), "ffmpeg")
	checkFFmpeg(context.Background(), cfg)
}

func TestTrainRejectsUnknownLearner(t *testing.T) {
	cfgPath := writeConfig(t, t.TempDir())
	err := run(t, "--config", cfgPath, "train", "--learner", "svm")
	trainLearner = ""
	if err == nil {
		t.Fatal("expected error for unknown learner")
	}
}

func TestClassifyWAV(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir)

	samples := make([]float64, 16000)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*150*float64(i)/16000)
	}
	clip := filepath.Join(dir, "clip.wav")
	data, err := transcode.EncodeWAV(samples, 16000)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(clip, data, 0644); err != nil {
		t.Fatal(err)
	}

	if err := run(t, "--config", cfgPath, "classify", clip); err != nil {
		t.Fatal(err)
	}
	if err := run(t, "--config", cfgPath, "classify", filepath.Join(dir, "missing.wav")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestVersion(t *testing.T) {
	if err := run(t, "version"); err != nil {
		t.Fatal(err)
	}
}
