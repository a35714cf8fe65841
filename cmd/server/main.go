package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"capitalfriends/internal/api"
	"capitalfriends/internal/config"
	"capitalfriends/internal/logging"
	"capitalfriends/pkg/capfriends"
)

var getppid = os.Getppid
var sleep = time.Sleep
var exit = os.Exit

func main() {
	var dataDir string
	var port int
	var host string
	var seedPath string
	var logLevel string
	var skipSeed bool

	flag.StringVar(&dataDir, "data-dir", "", "Directory for storing the ledger database and logs")
	flag.IntVar(&port, "port", 8000, "Port to run the server on")
	flag.StringVar(&host, "host", "127.0.0.1", "Host to bind the server to")
	flag.StringVar(&seedPath, "seed", "", "Portfolio seed file (TOML); defaults to portfolios.toml in the data dir")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	flag.BoolVar(&skipSeed, "skip-seed", false, "Do not apply the seed file at startup")
	flag.Parse()

	if dataDir != "" {
		config.SetRuntimeDataDir(dataDir)
	}
	config.SetRuntimePort(port)

	resolvedDataDir, err := config.GetDataDir()
	if err != nil {
		slog.Error("failed to resolve data directory", "err", err)
		os.Exit(1)
	}
	logger, writer, err := logging.NewLogger(logging.Config{
		Dir:     filepath.Join(resolvedDataDir, "logs"),
		Level:   logging.ParseLevel(logLevel, slog.LevelInfo),
		Console: true,
	})
	if err != nil {
		slog.Error("failed to initialize logger", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := writer.Close(); err != nil {
			logger.Error("failed to close log writer", "err", err)
		}
	}()

	userCfg, err := config.LoadUserConfig()
	if err != nil {
		logger.Warn("using default config", "err", err)
	}
	dbPath, err := config.GetDBPath()
	if err != nil {
		logger.Error("failed to resolve db path", "err", err)
		os.Exit(1)
	}

	core, err := capfriends.OpenWithOptions(userCfg.CoreOptions(dbPath, logger))
	if err != nil {
		logger.Error("failed to initialize core", "err", err)
		os.Exit(1)
	}
	defer func() {
		if err := core.Close(); err != nil {
			logger.Error("failed to close core", "err", err)
		}
	}()

	if !skipSeed {
		if err := applySeed(context.Background(), core, seedPath, logger); err != nil {
			logger.Error("failed to apply seed", "err", err)
			os.Exit(1)
		}
	}

	if os.Getenv("CAPFRIENDS_PARENT_WATCH") == "1" {
		go watchParent(logger)
	}

	addr := fmt.Sprintf("%s:%d", host, port)
	handler := api.NewRouter(core, api.WithCommentaryDefaults(api.CommentaryDefaults{
		BaseURL: userCfg.AI.BaseURL,
		APIKey:  userCfg.AI.APIKey,
		Model:   userCfg.AI.Model,
	}))

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      150 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("server starting", "addr", addr, "db_path", core.DBPath())
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGTERM, syscall.SIGINT)
	<-stop
	signal.Stop(stop)

	logger.Info("server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "err", err)
	}
}

// applySeed loads the seed file, if any, and applies it to core.
func applySeed(ctx context.Context, core *capfriends.Core, path string, logger *slog.Logger) error {
	if path == "" {
		resolved, err := config.GetSeedPath()
		if err != nil {
			return err
		}
		path = resolved
	}
	seed, err := capfriends.LoadSeedFile(path)
	if err != nil {
		return err
	}
	if len(seed.Funds) == 0 && len(seed.Portfolios) == 0 {
		logger.Debug("no seed to apply", "path", path)
		return nil
	}
	report, err := core.ApplySeed(ctx, seed)
	if err != nil {
		return err
	}
	logger.Info("seed applied",
		"path", path,
		"funds", report.FundsUpserted,
		"portfolios_created", report.PortfoliosCreated,
		"portfolios_updated", report.PortfoliosUpdated,
		"targets_applied", report.TargetsApplied,
		"targets_skipped", len(report.TargetsSkipped),
	)
	return nil
}

func watchParent(logger *slog.Logger) {
	for {
		sleep(1 * time.Second)
		if getppid() == 1 {
			logger.Info("parent process exited; shutting down")
			exit(0)
		}
	}
}
