package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/mimir-aip/activelearn/pkg/config"
	"github.com/mimir-aip/activelearn/pkg/store"
)

var (
	verbose bool
	dbPath  string

	appConfig *config.Config
	logger    *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "activelearn",
	Short: "Active-learning experiment engine",
	Long: `activelearn compares uncertainty-driven case selection against random
selection on a labeled pool. Each run trains on a small stratified set,
repeatedly asks the model which cases it is least sure about, and reports
the learning curve next to passive baselines, a full-data model and Monte
Carlo p-values.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		appConfig, err = config.LoadConfig()
		if err != nil {
			return err
		}

		zapConfig := zap.NewProductionConfig()
		if verbose || strings.EqualFold(appConfig.LogLevel, "debug") {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (default $STORAGE_DIR/activelearn.db)")

	rootCmd.AddCommand(runCmd, generateCmd, serveCmd, runsCmd)
}

// openStore opens the run database, creating its directory if needed
func openStore() (*store.SQLiteStore, error) {
	path := dbPath
	if path == "" {
		if err := os.MkdirAll(appConfig.StorageDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create storage directory: %w", err)
		}
		path = filepath.Join(appConfig.StorageDir, "activelearn.db")
	}
	st, err := store.NewSQLiteStore(path)
	if err != nil {
		return nil, err
	}
	logger.Debug("Opened run store", zap.String("path", path))
	return st, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
