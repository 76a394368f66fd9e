package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ironsheep/scan2pdf/internal/config"
	"github.com/ironsheep/scan2pdf/internal/device"
	"github.com/ironsheep/scan2pdf/internal/history"
	"github.com/ironsheep/scan2pdf/internal/scan"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// logLevelEnv overrides the configured log level.
const logLevelEnv = "SCAN2PDF_LOG_LEVEL"

// exitCanceled is the conventional status for a run stopped by SIGINT.
const exitCanceled = 130

var errHistoryDisabled = errors.New("run history is disabled in the configuration")

// newLogger builds the process logger on stderr: JSON in production, a
// console encoder with --verbose. The level comes from SCAN2PDF_LOG_LEVEL,
// then level, then info; --verbose forces debug.
func newLogger(verbose bool, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	if env := os.Getenv(logLevelEnv); env != "" {
		level = env
	}
	if verbose {
		level = "debug"
	}
	if level == "" {
		level = "info"
	}
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// loadConfig loads the configuration file named by --config, or the default
// one if present.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		path, _ = cmd.Root().PersistentFlags().GetString("config")
	}
	cfg, _, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads configuration and builds the logger shared by subcommands.
func setup(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(getVerboseFlag(cmd), cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// newBackend returns the device backend selected by cfg.
func newBackend(cfg *config.Config, logger *zap.Logger) device.Backend {
	if cfg.Device.Backend == config.DeviceBackendTest {
		return device.NewTestPattern(cfg.Device.TestPages)
	}
	return device.NewSANE(cfg.Device.ScanimagePath, logger)
}

// openJournal opens the run journal, or returns nil when it is disabled.
func openJournal(cfg *config.Config) (*history.Store, error) {
	if !cfg.History.Enabled {
		return nil, nil
	}
	return history.Open(cfg.History.Path)
}

func exitCode(err error) int {
	if errors.Is(err, scan.ErrCanceled) {
		return exitCanceled
	}
	return 1
}
