package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-vox/detector"
	"github.com/RyanBlaney/sonido-vox/detector/config"
	"github.com/RyanBlaney/sonido-vox/detector/extractors"
	"github.com/RyanBlaney/sonido-vox/detector/trainset"
	"github.com/RyanBlaney/sonido-vox/logging"
)

var (
	trainSamples      int
	trainSeed         uint64
	trainLearner      string
	trainTestFraction float64
	trainDryRun       bool
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Fit a model on synthetic clips and persist it",
	Long: `Synthesize a balanced set of human-like and synthetic-like clips, hold
out a stratified test split, fit the configured learner on the rest,
print the held-out report and save the model to the configured store,
replacing any existing one.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("samples") {
			cfg.Training.Samples = trainSamples
		}
		if cmd.Flags().Changed("seed") {
			cfg.Training.Seed = trainSeed
		}
		if trainLearner != "" {
			cfg.Model.Learner = config.Learner(trainLearner)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		builder, err := extractors.NewBuilder(cfg.Mode)
		if err != nil {
			return err
		}

		data, err := trainset.Build(cmd.Context(), builder, cfg.Training.Samples, cfg.Training.Seed)
		if err != nil {
			return err
		}
		train, test := trainset.Split(data, trainTestFraction, cfg.Training.Seed)

		model, err := trainset.NewClassifier(cfg)
		if err != nil {
			return err
		}
		if err := model.Fit(train.X, train.Y); err != nil {
			return fmt.Errorf("failed to fit %s: %w", model.Kind(), err)
		}

		summary := map[string]any{
			"learner": model.Kind(),
			"mode":    cfg.Mode,
			"train":   train.Len(),
		}
		if test.Len() > 0 {
			report, err := trainset.Evaluate(model, test)
			if err != nil {
				return err
			}
			summary["test"] = report
		} else {
			logging.Warn("Too few samples for a held-out split, skipping evaluation", logging.Fields{
				"samples": data.Len(),
			})
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}

		if trainDryRun {
			return nil
		}

		store, closeStore, err := detector.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer closeStore()

		if err := store.Save(cmd.Context(), model); err != nil {
			return fmt.Errorf("failed to save model: %w", err)
		}
		logging.Info("Saved model", logging.Fields{
			"store": cfg.Model.Store,
			"kind":  model.Kind(),
		})
		return nil
	},
}

func init() {
	trainCmd.Flags().IntVar(&trainSamples, "samples", 0, "number of synthetic clips (overrides training.samples)")
	trainCmd.Flags().Uint64Var(&trainSeed, "seed", 0, "generator seed (overrides training.seed)")
	trainCmd.Flags().StringVar(&trainLearner, "learner", "", "forest or logistic (overrides model.learner)")
	trainCmd.Flags().Float64Var(&trainTestFraction, "test-fraction", 0.2, "fraction of each class held out")
	trainCmd.Flags().BoolVar(&trainDryRun, "dry-run", false, "report without saving")
	rootCmd.AddCommand(trainCmd)
}
