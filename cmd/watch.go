package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/storesense/internal/detect"
	"github.com/sells-group/storesense/internal/model"
)

var (
	watchFlags    providerFlags
	watchInterval time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Continuously re-run detection on an interval",
	Long: `Re-triggers detection on a fixed interval until interrupted. Ticks that
fire while a cycle is still running are dropped, bounding radio and GPS
duty cycling when providers are slow. Each result is printed as one JSON
line.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initDetection(ctx, watchFlags)
		if err != nil {
			return err
		}
		defer env.Close()

		interval := watchInterval
		if interval <= 0 {
			interval = time.Duration(cfg.Detection.WatchIntervalSecs) * time.Second
		}

		w := detect.NewWatcher(env.orch, interval)
		zap.L().Info("watching", zap.Duration("interval", interval))

		enc := json.NewEncoder(os.Stdout)
		err = w.Run(ctx, func(r *model.DetectionResult) {
			if err := enc.Encode(r); err != nil {
				zap.L().Warn("encode result", zap.Error(err))
			}
		})
		if err != nil && err != context.Canceled {
			return err
		}

		if n := w.Skipped(); n > 0 {
			zap.L().Info("watch finished", zap.Int64("ticks_dropped", n))
		}
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchFlags.fixArg, "fix", "", "position fix as lat,lng (overrides providers)")
	watchCmd.Flags().StringVar(&watchFlags.scanPath, "scan", "", "radio snapshot fixture JSON file")
	watchCmd.Flags().BoolVar(&watchFlags.useNmcli, "nmcli", false, "scan WiFi with nmcli")
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "tick interval (default from config)")
	rootCmd.AddCommand(watchCmd)
}
