package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/storesense/internal/directory"
	"github.com/sells-group/storesense/internal/importer"
	"github.com/sells-group/storesense/internal/model"
)

var storesCmd = &cobra.Command{
	Use:   "stores",
	Short: "Manage the store directory",
}

var storesImportCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import store lists or geofence footprints into the directory",
	Long: `Imports files into the SQLite directory. Supported formats:

  .yaml/.yml/.json  curated store lists (location, geofence, signatures)
  .xlsx             spreadsheet exports, one row per store network
  .shp              polygon footprints attached to existing stores by store_id`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("import"); err != nil {
			return err
		}
		if cfg.Directory.Driver != "sqlite" {
			return eris.New("stores import writes the sqlite directory; postgres directories are populated upstream")
		}

		dir, err := directory.NewSQLite(cfg.Directory.DatabaseURL)
		if err != nil {
			return err
		}
		defer dir.Close()
		if err := dir.Migrate(ctx); err != nil {
			return err
		}

		imp := importer.New(dir)
		total := 0
		for _, path := range args {
			n, err := imp.ImportFile(ctx, path)
			if err != nil {
				return err
			}
			total += n
		}
		zap.L().Info("import complete",
			zap.Int("files", len(args)),
			zap.Int("stores", total),
		)
		return nil
	},
}

var (
	storesListNear   string
	storesListRadius float64
)

var storesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stores near a point (or all signature-bearing stores)",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if err := cfg.Validate("detect"); err != nil {
			return err
		}

		dir, err := openDirectory(ctx)
		if err != nil {
			return err
		}
		defer dir.Close()

		var point *model.GeoPoint
		if storesListNear != "" {
			fix, err := parseFix(storesListNear)
			if err != nil {
				return err
			}
			point = &fix.Point
		}
		radius := storesListRadius
		if radius <= 0 {
			radius = cfg.Detection.SearchRadiusMeters
		}

		stores, err := dir.QueryNearby(ctx, point, radius)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(stores)
	},
}

func init() {
	storesListCmd.Flags().StringVar(&storesListNear, "near", "", "center point as lat,lng")
	storesListCmd.Flags().Float64Var(&storesListRadius, "radius", 0, "search radius in meters (default from config)")

	storesCmd.AddCommand(storesImportCmd)
	storesCmd.AddCommand(storesListCmd)
	rootCmd.AddCommand(storesCmd)
}
