package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-vox/detector"
)

var classifyFeatures bool

var classifyCmd = &cobra.Command{
	Use:   "classify <file>",
	Short: "Classify an audio file",
	Long: `Decode an audio file (WAV natively, anything else through ffmpeg),
classify it and print the result as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		d, err := detector.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		defer d.Close()

		res, err := d.AnalyzeFile(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		if !classifyFeatures {
			res.Features = nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyFeatures, "features", false, "include the extracted features")
	rootCmd.AddCommand(classifyCmd)
}
