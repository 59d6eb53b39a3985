package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/storesense/internal/confirm"
)

var detectFlags providerFlags

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Run one detection cycle and print the result",
	Long: `Runs a single detection cycle: gathers a position fix and a radio scan,
matches nearby stores, fuses the evidence and prints the DetectionResult
as JSON. A result with "requires_confirmation": true should be confirmed
with "storesense confirm accept <store-id>".`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initDetection(ctx, detectFlags)
		if err != nil {
			return err
		}
		defer env.Close()

		result, err := env.orch.Detect(ctx)
		if err != nil {
			return err
		}

		if result.Store != nil {
			zap.L().Info("detection complete",
				zap.String("store_id", result.Store.ID),
				zap.String("method", string(result.Method)),
				zap.Int("confidence", result.Confidence),
				zap.Bool("requires_confirmation", result.RequiresConfirmation),
			)
		} else {
			zap.L().Info("no store detected")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			return err
		}

		if env.orch.Machine().State() == confirm.StatePendingConfirmation {
			zap.L().Info("confirmation pending",
				zap.String("hint", "storesense confirm accept <store-id>"))
		}
		return nil
	},
}

func init() {
	detectCmd.Flags().StringVar(&detectFlags.fixArg, "fix", "", "position fix as lat,lng (overrides providers)")
	detectCmd.Flags().StringVar(&detectFlags.scanPath, "scan", "", "radio snapshot fixture JSON file")
	detectCmd.Flags().BoolVar(&detectFlags.useNmcli, "nmcli", false, "scan WiFi with nmcli")
	rootCmd.AddCommand(detectCmd)
}
