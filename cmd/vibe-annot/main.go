// Package main provides the vibe-annot command-line tool.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Config keys.
const (
	keyLogLevel  = "log_level"
	keyStore     = "store"
	keyOutputDir = "output_dir"
)

var cfgFile string

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vibe-annot",
		Short: "Variant mapping and post-aggregation",
		Long: `vibe-annot maps variant calls to genes and transcripts, loads the mapped
artifacts into a run store and runs post-aggregation modules over it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.vibe-annot.yaml)")
	cmd.PersistentFlags().String(keyLogLevel, "info", "log level: debug, info, warn, error")
	_ = viper.BindPFlag(keyLogLevel, cmd.PersistentFlags().Lookup(keyLogLevel))

	cmd.AddCommand(newMapCmd())
	cmd.AddCommand(newLoadCmd())
	cmd.AddCommand(newPostaggCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// initConfig loads .env, the config file and VIBE_ANNOT_* environment variables.
func initConfig() error {
	// A missing .env is fine; the process environment is used as is.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("cannot determine home directory: %w", err)
		}
		viper.SetConfigFile(filepath.Join(home, ".vibe-annot.yaml"))
	}
	viper.SetEnvPrefix("VIBE_ANNOT")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(viper.ConfigFileUsed()); statErr == nil {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

func logLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(viper.GetString(keyLogLevel))
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// newLogger builds the console logger used outside of engine runs.
func newLogger() (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(logLevel())
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("Jan _2 15:04:05.000000000")
	config.EncoderConfig.StacktraceKey = ""
	return config.Build()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("vibe-annot version %s (%s) built %s\n", version, commit, date)
		},
	}
}
