package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"profiler/internal/analyzer"
	"profiler/internal/backend"
	"profiler/internal/config"
	"profiler/internal/interview"
	"profiler/internal/logging"
	"profiler/internal/recall"
	"profiler/internal/server"
	"profiler/internal/store"
)

var (
	// Global flags
	verbose    bool
	configPath string
	workspace  string

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "profiler",
	Short: "profiler - phased interview engine for user profiling",
	Long: `profiler runs multi-phase profiling interviews.

A conversational backend asks the questions; after every exchange a set of
analyzers concurrently extracts profile fields, an aggregator merges their
findings deterministically, and a phase machine decides when to move the
interview forward. The assembled profile is served as a structured report.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional, real environment wins either way
		_ = godotenv.Load()

		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
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
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd, args)
	},
}

// serveCmd runs the HTTP server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the interview HTTP server",
	RunE:  runServe,
}

// configCmd writes the default configuration to the config path.
var configCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write the default configuration file",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return err
		}
		fmt.Printf("Wrote default config to %s\n", configPath)
		return nil
	},
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if err := logging.Initialize(workspace, logging.Options{
		DebugMode:  cfg.Logging.DebugMode || verbose,
		Level:      cfg.Logging.Level,
		Categories: cfg.Logging.Categories,
		JSONFormat: cfg.Logging.Format == "json",
	}); err != nil {
		return err
	}
	defer logging.CloseAll()

	logger.Info("Starting profiler",
		zap.String("version", cfg.Version),
		zap.String("addr", cfg.Server.Addr),
		zap.String("backend", cfg.Backend.Provider))

	var persister store.Persister = store.Noop{}
	if cfg.Store.Enabled {
		local, err := store.NewLocalStore(cfg.Store.DatabasePath)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer local.Close()
		persister = local
	}

	recaller, err := recall.New(cfg.Recall)
	if err != nil {
		return fmt.Errorf("init recall: %w", err)
	}

	client, err := backend.New(cfg.Backend)
	if err != nil {
		return err
	}

	analyzerReg := analyzer.NewRegistry()
	if err := analyzer.RegisterStandard(analyzerReg, client); err != nil {
		return err
	}

	registry := interview.NewRegistry(persister, recaller)
	if err := registry.Restore(); err != nil {
		logger.Warn("Session restore failed", zap.Error(err))
	}

	coord, err := interview.NewCoordinator(cfg.Interview, registry, client, analyzerReg, recaller, persister)
	if err != nil {
		return err
	}

	srv := server.New(cfg.Server.Addr, coord)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.Stringer("signal", sig))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownDuration())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "profiler.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", ".", "workspace directory for logs")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
