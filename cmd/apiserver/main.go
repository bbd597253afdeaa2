package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/biomarker-engine/internal/config"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/internal/interfaces/cli"
)

const defaultConfigPath = "configs/config.yaml"

var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file, empty for environment only")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	cfg, err := config.LoadOrEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetDefault(logger)
	cli.Version = version

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting biomarker API server",
		logging.String("version", version),
		logging.String("addr", cfg.Server.Addr()),
		logging.String("reference", cfg.Reference.Source))

	rt, err := cli.NewRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize runtime", logging.Err(err))
	}
	defer rt.Close()

	if err := cli.RunServer(ctx, rt); err != nil {
		logger.Error("server exited with error", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
