// Command markov trains, stores and samples fixed-order Markov chain models.
package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CTAG07/markovchain/pkg/markov"
	"github.com/CTAG07/markovchain/pkg/store"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

var (
	configPath string
	dbPath     string
	logLevel   string
)

// rootCmd is the top-level command.
var rootCmd = &cobra.Command{
	Use:     "markov",
	Short:   "Train and sample Markov chain text models",
	Long:    "A fixed-order Markov chain toolkit. Models are trained from whitespace-separated text and kept in a SQLite database.",
	Version: fmt.Sprintf("%s (commit %s, built %s)", Version, Commit, BuildDate),
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./config.json", "Path to the JSON config file")
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (overrides database_path in the config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn or error (overrides log_level in the config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// app bundles what a command needs once the config has been applied.
type app struct {
	config *Config
	logger *slog.Logger
	db     *sql.DB
	store  *store.Store
}

// loadSettings reads the config file and applies flag overrides.
func loadSettings() (*Config, *slog.Logger, error) {
	config, err := LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if dbPath != "" {
		config.DatabasePath = dbPath
	}
	if logLevel != "" {
		config.LogLevel = logLevel
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(config.LogLevel)}))
	return config, logger, nil
}

// openApp loads the configuration and opens the model store.
func openApp() (*app, error) {
	config, logger, err := loadSettings()
	if err != nil {
		return nil, err
	}

	file, _, _ := strings.Cut(config.DatabasePath, "?")
	if dir := filepath.Dir(file); dir != "." {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := openDB(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err = store.SetupSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to setup schema: %w", err)
	}

	s, err := store.New(db,
		store.WithCacheSize(config.CacheSize),
		store.WithChainOptions(markov.WithLogger(logger)),
	)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	s.SetLogger(logger)

	logger.Debug("Store opened", "driver", driverName, "database", config.DatabasePath)
	return &app{config: config, logger: logger, db: db, store: s}, nil
}

// Close releases the store and the database.
func (a *app) Close() {
	a.store.Close()
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close database", "error", err)
	}
}

func mustOpenApp() *app {
	a, err := openApp()
	if err != nil {
		exitErr("open store", err)
	}
	return a
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
