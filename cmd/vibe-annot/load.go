package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-annot/internal/exchange"
	"github.com/inodb/vibe-annot/internal/store"
)

func newLoadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "load [flags] <sample.crx> [sample.crg]",
		Short: "Load mapper artifacts into a run store",
		Long: `Load imports a crx and optionally a crg artifact into the variant and gene
tables of a run store. Paths ending in .duckdb use DuckDB, anything else SQLite.`,
		Example: `  vibe-annot load --store run.sqlite sample.crx sample.crg`,
		Args:    cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(cmd, viper.GetString(keyStore), args)
		},
	}
	addStoreFlag(cmd)
	return cmd
}

// addStoreFlag registers --store. The flag is bound to the store config key
// when the command runs, since several commands share the key.
func addStoreFlag(cmd *cobra.Command) {
	cmd.Flags().StringP(keyStore, "s", "", "run store path (.sqlite or .duckdb)")
	cmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		return viper.BindPFlag(keyStore, cmd.Flags().Lookup(keyStore))
	}
}

func runLoad(cmd *cobra.Command, path string, args []string) error {
	if path == "" {
		return fmt.Errorf("--store is required")
	}
	logger, err := newLogger()
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	n, err := importFile(ctx, args[0], st.ImportVariants)
	if err != nil {
		return err
	}
	logger.Info("loaded variants", zap.String("file", args[0]), zap.Int("rows", n), zap.String("store", path))

	if len(args) > 1 {
		n, err := importFile(ctx, args[1], st.ImportGenes)
		if err != nil {
			return err
		}
		logger.Info("loaded genes", zap.String("file", args[1]), zap.Int("rows", n), zap.String("store", path))
	}
	return nil
}

func importFile(ctx context.Context, path string, imp func(context.Context, *exchange.Reader) (int, error)) (int, error) {
	r, err := exchange.OpenReader(path, exchange.ReaderOptions{})
	if err != nil {
		return 0, err
	}
	defer r.Close()
	n, err := imp(ctx, r)
	if err != nil {
		return n, fmt.Errorf("import %s: %w", path, err)
	}
	return n, nil
}
