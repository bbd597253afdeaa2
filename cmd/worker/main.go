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
	httpserver "github.com/turtacn/biomarker-engine/internal/interfaces/http"
	"github.com/turtacn/biomarker-engine/internal/interfaces/http/handlers"
	"github.com/turtacn/biomarker-engine/internal/interfaces/http/middleware"
)

const (
	defaultWorkerConfigPath = "configs/config.yaml"
	defaultHealthPort       = 8081
)

var version = "dev"

func main() {
	configPath := flag.String("config", defaultWorkerConfigPath, "path to configuration file, empty for environment only")
	healthPort := flag.Int("health-port", defaultHealthPort, "port of the health and metrics endpoints, 0 to disable")
	flag.Parse()

	cfg, err := config.LoadOrEnv(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting biomarker validation worker",
		logging.String("version", version),
		logging.Strings("brokers", cfg.Kafka.Brokers),
		logging.String("group", cfg.Kafka.GroupID))

	rt, err := cli.NewRuntime(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize runtime", logging.Err(err))
	}
	defer rt.Close()

	if *healthPort > 0 {
		srv := healthServer(rt, *healthPort)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("health server failed", logging.Err(err))
			}
		}()
		defer srv.Stop(context.Background())
	}

	if err := cli.RunWorker(ctx, rt); err != nil {
		logger.Error("worker exited with error", logging.Err(err))
		os.Exit(1)
	}
	logger.Info("worker stopped")
}

// healthServer exposes the probes and metrics of the worker process.
func healthServer(rt *cli.Runtime, port int) *httpserver.Server {
	rc := httpserver.RouterConfig{
		HealthHandler: handlers.NewHealthHandler(version, rt.Service.Ready, rt.HealthCheckers()...),
		Logging:       middleware.DefaultLoggingConfig(),
		Logger:        rt.Logger,
		Metrics:       rt.Metrics,
		Mode:          "release",
	}
	if rt.Config.Metrics.Enabled {
		rc.MetricsCollector = rt.Collector
		rc.MetricsPath = rt.Config.Metrics.Path
	}
	serverCfg := rt.Config.Server
	serverCfg.Port = port
	return httpserver.NewServer(serverCfg, httpserver.NewRouter(rc), rt.Logger)
}
