package main

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-annot/internal/config"
	"github.com/inodb/vibe-annot/internal/modules/genesummary"
	"github.com/inodb/vibe-annot/internal/postagg"
	"github.com/inodb/vibe-annot/internal/runlog"
	"github.com/inodb/vibe-annot/internal/status"
	"github.com/inodb/vibe-annot/internal/store"
)

// builtin is a post-aggregation module compiled into the binary.
type builtin struct {
	newModule func() postagg.Module
	conf      func(overrides string) (*config.ModuleConf, error)
}

var builtins = map[string]builtin{
	genesummary.Name: {
		newModule: func() postagg.Module { return genesummary.New() },
		conf:      genesummary.Conf,
	},
}

func builtinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func newPostaggCmd() *cobra.Command {
	var confPath, overrides string

	cmd := &cobra.Command{
		Use:   "postagg [flags] <module>",
		Short: "Run a post-aggregation module over a run store",
		Long: fmt.Sprintf(`Postagg resolves a module's configuration, adds its output columns to the
run store and fills them row by row.

Built-in modules: %s

--conf replaces the module's built-in configuration with a YAML file.
--overrides is a JSON-like object merged over the resolved configuration.`, strings.Join(builtinNames(), ", ")),
		Example: `  vibe-annot postagg --store run.sqlite genesummary
  vibe-annot postagg --store run.sqlite --overrides "{'min_count': 2}" genesummary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPostagg(cmd, viper.GetString(keyStore), args[0], confPath, overrides)
		},
	}
	addStoreFlag(cmd)
	cmd.Flags().StringVar(&confPath, "conf", "", "module configuration YAML")
	cmd.Flags().StringVar(&overrides, "overrides", "", "configuration overrides, e.g. \"{'title': 'x'}\"")
	return cmd
}

func runPostagg(cmd *cobra.Command, path, name, confPath, overrides string) error {
	if path == "" {
		return fmt.Errorf("--store is required")
	}
	b, ok := builtins[name]
	if !ok {
		return fmt.Errorf("unknown module %q (available: %s)", name, strings.Join(builtinNames(), ", "))
	}

	var conf *config.ModuleConf
	var err error
	if confPath != "" {
		conf, err = config.Load(confPath, overrides)
	} else {
		conf, err = b.conf(overrides)
	}
	if err != nil {
		return fmt.Errorf("resolve %s configuration: %w", name, err)
	}
	if conf.Name != name {
		return fmt.Errorf("configuration name %q does not match module %q", conf.Name, name)
	}

	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	rl, err := runlog.New(filepath.Dir(path), base, name, logLevel())
	if err != nil {
		return err
	}
	defer rl.Close()

	st, err := store.Open(path)
	if err != nil {
		return err
	}
	defer st.Close()

	engine, err := postagg.New(b.newModule(), conf, st, rl.Logger,
		postagg.WithStatus(status.Logger(rl.Logger)),
		postagg.WithErrorLog(rl.Errors))
	if err != nil {
		return err
	}

	sum, err := engine.Run(context.Background())
	if err != nil {
		rl.Logger.Error("postaggregator failed", zap.Error(err), zap.Stringer("state", engine.State()))
		return err
	}
	if !sum.Ran {
		fmt.Fprintf(cmd.OutOrStdout(), "%s: skipped\n", name)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows written, %d skipped, %d errors\n",
		name, sum.RowsWritten, sum.RowsSkipped, sum.Errors)
	return nil
}
