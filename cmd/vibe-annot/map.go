package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/inodb/vibe-annot/internal/mapper"
	"github.com/inodb/vibe-annot/internal/premapped"
	"github.com/inodb/vibe-annot/internal/runlog"
	"github.com/inodb/vibe-annot/internal/status"
)

func newMapCmd() *cobra.Command {
	var (
		opts     mapper.Options
		noHeader bool
	)

	cmd := &cobra.Command{
		Use:   "map [flags] <input.crv>",
		Short: "Map variants to genes and transcripts",
		Long: `Map reads a crv input and writes the crx (variant), crg (gene) and crt
(transcript) artifacts. Input records carry their transcript mappings in the
mappings column.`,
		Example: `  vibe-annot map sample.crv
  vibe-annot map -d out --seek-pos 1048576 --chunk-size 10000 --postfix .part2 sample.crv`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.InputPath = args[0]
			opts.OutputDir = viper.GetString(keyOutputDir)
			if noHeader {
				opts.Columns = premapped.Columns
			}
			return runMap(cmd, opts)
		},
	}

	cmd.Flags().StringP(keyOutputDir, "d", "", "output directory (default: input directory)")
	_ = viper.BindPFlag(keyOutputDir, cmd.Flags().Lookup(keyOutputDir))
	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "artifact base name (default: input file name)")
	cmd.Flags().Int64Var(&opts.SeekPos, "seek-pos", 0, "skip data lines starting before this byte offset")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", 0, "maximum number of data lines to map (0 = all)")
	cmd.Flags().StringVar(&opts.Postfix, "postfix", "", "suffix appended to artifact file names")
	cmd.Flags().BoolVar(&noHeader, "no-header", false, "input has no #column= lines; assume the default column order")

	return cmd
}

func runMap(cmd *cobra.Command, opts mapper.Options) error {
	dir := opts.OutputDir
	if dir == "" {
		dir = filepath.Dir(opts.InputPath)
	}
	rl, err := runlog.New(dir, mapper.BaseName(opts)+opts.Postfix, "mapper", logLevel())
	if err != nil {
		return err
	}
	defer rl.Close()

	engine := mapper.NewEngine(premapped.New())
	engine.SetModule("premapped", "Pre-mapped input mapper", version)
	engine.SetLogger(rl.Logger)
	engine.SetErrorLog(rl.Errors)
	engine.SetStatus(status.Logger(rl.Logger))

	sum, err := engine.Run(opts)
	if err != nil {
		rl.Logger.Error("mapper failed", zap.Error(err))
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s\n%s\n%s\n", sum.CrxPath, sum.CrgPath, sum.CrtPath)
	if sum.DataErrors > 0 {
		fmt.Fprintf(out, "%d data errors, see %s\n", sum.DataErrors, rl.ErrPath())
	}
	return nil
}
