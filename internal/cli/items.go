package cli

import (
	"fmt"
	"time"

	"srp-quiz-service/internal/config"
	"srp-quiz-service/internal/infra/filesource"
	pgstore "srp-quiz-service/internal/infra/postgres"
	redisstore "srp-quiz-service/internal/infra/redis"
	"srp-quiz-service/internal/itempool"
	"srp-quiz-service/internal/logger"
	"github.com/spf13/cobra"
)

// NewItemsCmd groups the item sheet maintenance commands.
func NewItemsCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect or import the practice item sheet",
	}
	cmd.AddCommand(newItemsCheckCmd(configPath))
	cmd.AddCommand(newItemsImportCmd(configPath))
	return cmd
}

func newItemsCheckCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Load the configured item source and summarise it",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			d, err := openDeps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			source, err := itemSource(cfg, d)
			if err != nil {
				return err
			}
			rows, err := source.LoadRows(cmd.Context())
			if err != nil {
				return err
			}
			pool, err := itempool.Load(rows)
			if err != nil {
				return err
			}
			printPool(cmd, pool)
			return nil
		},
	}
}

func newItemsImportCmd(configPath *string) *cobra.Command {
	var sheet string
	cmd := &cobra.Command{
		Use:   "import <file.csv|file.xlsx>",
		Short: "Replace the Postgres items table with a CSV or XLSX sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Log.Mode)
			if err != nil {
				return err
			}
			defer log.Sync()

			rows, err := filesource.Open(args[0], sheet).LoadRows(cmd.Context())
			if err != nil {
				return err
			}
			pool, err := itempool.Load(rows)
			if err != nil {
				return err
			}

			if err := runMigrationsWithConfig(cmd.Context(), cfg, log); err != nil {
				return err
			}
			d, err := openDeps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			loader := pgstore.NewItemLoader(d.pg)
			if err := loader.ReplaceRows(cmd.Context(), rows); err != nil {
				return err
			}
			if d.redis != nil {
				ttl := config.TTLDuration(cfg.Items.TTL, 10*time.Minute)
				if err := redisstore.NewItemRepository(d.redis, loader, ttl).Prime(cmd.Context(), rows); err != nil {
					return fmt.Errorf("refresh item cache: %w", err)
				}
				log.Info("item cache refreshed", "key", redisstore.DefaultItemsKey)
			}
			log.Info("items imported", "rows", len(rows), "items", pool.Len(), "excluded", len(pool.Excluded()))
			printPool(cmd, pool)
			return nil
		},
	}
	cmd.Flags().StringVar(&sheet, "sheet", "", "worksheet name for .xlsx files (first sheet when empty)")
	return cmd
}

func printPool(cmd *cobra.Command, pool itempool.Pool) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "items: %d\n", pool.Len())
	for _, key := range pool.Keys() {
		fmt.Fprintf(out, "  week %d %-10s %d\n", key.Week, key.Topic, len(pool.Items(key.Topic, key.Week)))
	}
	for _, ex := range pool.Excluded() {
		fmt.Fprintf(out, "  excluded row %d (%s): %s\n", ex.Row, ex.ItemID, ex.Reason)
	}
}
