package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-vox/detector"
	"github.com/RyanBlaney/sonido-vox/detector/config"
	"github.com/RyanBlaney/sonido-vox/logging"
	"github.com/RyanBlaney/sonido-vox/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the detection API",
	Long: `Serve GET /health, POST /api/voice-detection and the /ws/voice
WebSocket. The model is loaded (or trained and persisted) before the
listener starts; failure to obtain one aborts startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		d, err := detector.NewFromConfig(cfg)
		if err != nil {
			return err
		}
		defer d.Close()

		checkFFmpeg(ctx, cfg)

		if err := d.Warmup(ctx); err != nil {
			return err
		}
		logging.Info("Model ready", logging.Fields{
			"mode":    cfg.Mode,
			"learner": cfg.Model.Learner,
			"store":   cfg.Model.Store,
		})

		return server.New(cfg.Server, d).ListenAndServe(ctx)
	},
}

// checkFFmpeg warns when ffmpeg is missing. WAV input still works without
// it, so startup continues.
func checkFFmpeg(ctx context.Context, cfg *config.Config) {
	decoder, err := detector.NewDecoder(cfg)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := decoder.CheckFFmpeg(ctx); err != nil {
		logging.Warn("ffmpeg unavailable, only WAV input can be decoded", logging.Fields{
			"ffmpeg_path": cfg.Decoder.FFmpegPath,
			"error":       err,
		})
	}
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides server.addr)")
	rootCmd.AddCommand(serveCmd)
}
