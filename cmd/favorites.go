package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var favoritesCmd = &cobra.Command{
	Use:   "favorites",
	Short: "Manage favorite stores",
}

var favoritesAddName string

var favoritesAddCmd = &cobra.Command{
	Use:   "add <store-id>",
	Short: "Pin a store as a favorite",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mem, err := openMemory(ctx)
		if err != nil {
			return err
		}
		defer mem.Close()

		if err := mem.AddFavorite(ctx, args[0], favoritesAddName); err != nil {
			return err
		}
		zap.L().Info("favorite added", zap.String("store_id", args[0]))
		return nil
	},
}

var favoritesRemoveCmd = &cobra.Command{
	Use:   "remove <store-id>",
	Short: "Unpin a favorite store",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mem, err := openMemory(ctx)
		if err != nil {
			return err
		}
		defer mem.Close()

		if err := mem.RemoveFavorite(ctx, args[0]); err != nil {
			return err
		}
		zap.L().Info("favorite removed", zap.String("store_id", args[0]))
		return nil
	},
}

var favoritesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List favorite stores",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		mem, err := openMemory(ctx)
		if err != nil {
			return err
		}
		defer mem.Close()

		favs, err := mem.ListFavorites(ctx)
		if err != nil {
			return err
		}
		for _, f := range favs {
			fmt.Printf("%s\t%s\n", f.StoreID, f.Name)
		}
		return nil
	},
}

func init() {
	favoritesAddCmd.Flags().StringVar(&favoritesAddName, "name", "", "display name for the favorite")

	favoritesCmd.AddCommand(favoritesAddCmd)
	favoritesCmd.AddCommand(favoritesRemoveCmd)
	favoritesCmd.AddCommand(favoritesListCmd)
	rootCmd.AddCommand(favoritesCmd)
}
