package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/turtacn/biomarker-engine/internal/application/worker"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	httpserver "github.com/turtacn/biomarker-engine/internal/interfaces/http"
	"github.com/turtacn/biomarker-engine/internal/interfaces/http/handlers"
	"github.com/turtacn/biomarker-engine/internal/interfaces/http/middleware"
)

// NewServeCmd creates the serve command.
func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			rt, err := NewRuntime(ctx, cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer rt.Close()
			return RunServer(ctx, rt)
		},
	}
}

// NewWorkerCmd creates the worker command.
func NewWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Consume extracted exams from Kafka until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			rt, err := NewRuntime(ctx, cliCtx.Config, cliCtx.Logger)
			if err != nil {
				return err
			}
			defer rt.Close()
			return RunWorker(ctx, rt)
		},
	}
}

// RouterConfigFor wires the HTTP handlers onto rt.
func RouterConfigFor(rt *Runtime) httpserver.RouterConfig {
	cfg := rt.Config
	rc := httpserver.RouterConfig{
		ValidationHandler: handlers.NewValidationHandler(rt.Service, rt.SharedInvalidator(), rt.Logger),
		HealthHandler:     handlers.NewHealthHandler(Version, rt.Service.Ready, rt.HealthCheckers()...),
		Logging:           middleware.DefaultLoggingConfig(),
		MaxBodySize:       cfg.Server.MaxBodySize,
		Logger:            rt.Logger,
		Metrics:           rt.Metrics,
		Mode:              cfg.Server.Mode,
	}
	if rt.Overrides != nil {
		rc.OverrideHandler = handlers.NewOverrideHandler(rt.Overrides, rt.SharedInvalidator(), rt.Service.ClearCache, rt.Logger)
	}
	if cfg.Metrics.Enabled {
		rc.MetricsCollector = rt.Collector
		rc.MetricsPath = cfg.Metrics.Path
	}
	return rc
}

// RunServer serves the API until ctx is cancelled, then drains in-flight
// requests.
func RunServer(ctx context.Context, rt *Runtime) error {
	rt.StartWatching(ctx)

	router := httpserver.NewRouter(RouterConfigFor(rt))
	srv := httpserver.NewServer(rt.Config.Server, router, rt.Logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	return srv.Stop(context.Background())
}

// RunWorker consumes the input topic until ctx is cancelled.  Topic creation
// is best effort since managed clusters often forbid it.
func RunWorker(ctx context.Context, rt *Runtime) error {
	cfg := rt.Config.Kafka
	log := rt.Logger.Named("worker")

	if tm, err := kafka.NewTopicManager(cfg.Brokers, rt.Logger); err != nil {
		log.Warn("topic manager unavailable", logging.Err(err))
	} else {
		if err := tm.EnsureTopics(ctx, kafka.PipelineTopics(cfg)); err != nil {
			log.Warn("ensure topics failed", logging.Err(err))
		}
		_ = tm.Close()
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfigFrom(cfg), rt.Logger)
	if err != nil {
		return err
	}
	defer producer.Close()

	consumer, err := kafka.NewConsumer(kafka.ConsumerConfigFrom(cfg), rt.Logger,
		kafka.WithDeadLetter(producer),
		kafka.WithConsumerMetrics(rt.Metrics))
	if err != nil {
		return err
	}
	defer consumer.Close()

	var opts []worker.Option
	if rt.Duplicates != nil {
		opts = append(opts, worker.WithDuplicateSink(rt.Duplicates))
	}
	w := worker.New(rt.Service, producer, cfg.OutputTopic, rt.Logger, opts...)
	w.Register(consumer, cfg.InputTopic)

	rt.StartWatching(ctx)
	if err := consumer.Start(ctx); err != nil {
		return err
	}
	log.Info("worker running",
		logging.String("input", cfg.InputTopic),
		logging.String("output", cfg.OutputTopic))

	<-ctx.Done()
	log.Info("worker stopping")
	return nil
}
