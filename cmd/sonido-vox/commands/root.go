package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-vox/detector/config"
	"github.com/RyanBlaney/sonido-vox/logging"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "sonido-vox",
	Short: "Detect AI-generated speech",
	Long: `sonido-vox classifies short speech clips as AI_GENERATED or HUMAN from
pitch, energy and spectral features, and explains the decision.

Configuration is read from the YAML file given by --config, then
overridden by the API_KEY, MODEL_PATH and SONIDO_VOX_MODE environment
variables.

Examples:
  # Serve the API with a persisted model
  sonido-vox serve --config sonido-vox.yaml

  # Re-fit the model and report held-out accuracy
  sonido-vox train --samples 400

  # Classify a local file
  sonido-vox classify clip.wav`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}

// loadConfig loads the configuration and applies the log level
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid logging.level: %w", err)
	}
	if verbose {
		level = logging.DebugLevel
	}
	logging.SetLevel(level)
	return cfg, nil
}
