package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var confirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Manage the confirmed-store memory",
	Long: `The confirmed-store memory is the set of store ids the user has explicitly
accepted. A store in this set is silently accepted on future detections
instead of asking again.`,
}

var confirmAcceptCmd = &cobra.Command{
	Use:   "accept <store-id>",
	Short: "Add a store to the confirmed set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mem, err := openMemory(ctx)
		if err != nil {
			return err
		}
		defer mem.Close()

		if err := mem.Add(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("store confirmed", zap.String("store_id", args[0]))
		return nil
	},
}

var confirmRemoveCmd = &cobra.Command{
	Use:   "remove <store-id>",
	Short: "Remove a store from the confirmed set",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mem, err := openMemory(ctx)
		if err != nil {
			return err
		}
		defer mem.Close()

		if err := mem.Remove(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("store forgotten", zap.String("store_id", args[0]))
		return nil
	},
}

var confirmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List confirmed store ids",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mem, err := openMemory(ctx)
		if err != nil {
			return err
		}
		defer mem.Close()

		ids, err := mem.ListConfirmed(ctx)
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	confirmCmd.AddCommand(confirmAcceptCmd)
	confirmCmd.AddCommand(confirmRemoveCmd)
	confirmCmd.AddCommand(confirmListCmd)
	rootCmd.AddCommand(confirmCmd)
}
