package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-bridge/internal/config"
	"github.com/telhawk-systems/telhawk-bridge/internal/consumer"
	"github.com/telhawk-systems/telhawk-bridge/internal/dlq"
	"github.com/telhawk-systems/telhawk-bridge/internal/handlers"
	"github.com/telhawk-systems/telhawk-bridge/internal/history"
	"github.com/telhawk-systems/telhawk-bridge/internal/logging"
	"github.com/telhawk-systems/telhawk-bridge/internal/messaging"
	natsclient "github.com/telhawk-systems/telhawk-bridge/internal/messaging/nats"
	"github.com/telhawk-systems/telhawk-bridge/internal/metrics"
	"github.com/telhawk-systems/telhawk-bridge/internal/middleware"
	"github.com/telhawk-systems/telhawk-bridge/internal/normalizer"
	"github.com/telhawk-systems/telhawk-bridge/internal/server"
	"github.com/telhawk-systems/telhawk-bridge/internal/service"
	"github.com/telhawk-systems/telhawk-bridge/internal/stats"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge",
	Long: `Start the stream workers and the HTTP read side. The workers
normalize every change event into the recent record window; the HTTP
server exposes the window, counters, health probes and /metrics.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg)
	logging.SetDefault(logger)

	logger.Info("Starting bridge",
		slog.Int("port", cfg.Server.Port),
		slog.String("stream_mode", cfg.Stream.Mode),
		slog.String("subject", cfg.Stream.Subject),
		slog.Int("workers", cfg.Stream.Workers),
		slog.Int("history_capacity", cfg.History.Capacity),
		slog.String("key_case", cfg.KeyCase().String()),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	svc := newBridgeService(cfg, reg, logger.Logger)

	instanceID := resolveInstanceID(cfg)
	opts := []handlers.Option{handlers.WithInstanceID(instanceID)}

	// Broker and consumers
	var (
		broker messaging.Client
		source consumer.Source
		js     *natsclient.JetStreamClient
	)
	switch cfg.Stream.Mode {
	case config.ModeJetStream:
		js, err = natsclient.NewJetStreamClient(natsConfig(cfg), logger.Logger)
		if err != nil {
			return err
		}
		broker = js
		if _, err := provisionStreams(ctx, js, cfg, logger.Logger); err != nil {
			js.Close()
			return fmt.Errorf("provision streams: %w", err)
		}
		source = &consumer.JetStreamSource{Client: js, Stream: cfg.Stream.Name, Consumer: cfg.Stream.Consumer}
	default:
		client, err := natsclient.NewClient(natsConfig(cfg), logger.Logger)
		if err != nil {
			return err
		}
		broker = client
		source = &consumer.QueueSource{Subscriber: client, Subject: cfg.Stream.Subject, Queue: cfg.Stream.QueueGroup}
	}
	defer broker.Close()
	opts = append(opts, handlers.WithBroker(broker))

	var deadLetter consumer.DeadLetter
	if cfg.DLQ.Enabled {
		queue, err := dlq.NewJetStreamQueue(ctx, js, cfg.DLQ.Stream, logger.Logger)
		if err != nil {
			return fmt.Errorf("initialize dlq: %w", err)
		}
		deadLetter = queue
		opts = append(opts, handlers.WithDeadLetter(queue))
		logger.Info("Dead letter capture enabled", logging.Stream(cfg.DLQ.Stream))
	} else {
		logger.Info("Dead letter capture disabled")
	}

	// Cluster stats
	var collector *stats.Collector
	if cfg.Redis.Enabled {
		client, err := stats.NewClient(cfg.Redis.URL, instanceID)
		if err != nil {
			logger.Warn("Cluster stats disabled: redis unavailable", logging.Error(err))
		} else {
			defer client.Close()
			collector = stats.NewCollector(client, svc.Stats, cfg.Stats.FlushInterval, logger.Logger)
			opts = append(opts, handlers.WithCluster(client))
			logger.Info("Cluster stats enabled",
				logging.Instance(instanceID),
				logging.Duration(cfg.Stats.FlushInterval),
			)
		}
	} else {
		logger.Info("Redis disabled - cluster stats will not be published")
	}

	pool := consumer.NewPool(source, svc, deadLetter, cfg.Stream.Workers, logger.Logger)
	if err := pool.Start(ctx); err != nil {
		if collector != nil {
			collector.Stop()
		}
		return err
	}

	// HTTP read side
	h := handlers.NewDataHandler(svc, logger.Logger, opts...)
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.NewRouter(h, reg, corsConfig(cfg), logger.Logger),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Bridge listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down bridge")
	case err = <-serveErr:
		logger.Error("HTTP server failed", logging.Error(err))
	}

	pool.Stop()
	if collector != nil {
		collector.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeoutOrDefault(cfg.Server.ShutdownTimeout))
	defer cancel()
	if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
		logger.Error("HTTP server forced to shut down", logging.Error(shutdownErr))
	}
	if drainErr := broker.Drain(); drainErr != nil {
		logger.Warn("NATS drain failed", logging.Error(drainErr))
	}

	logger.Info("Bridge stopped", slog.Any("counters", svc.Stats()))
	return err
}

// newBridgeService builds the processing pipeline and registers its metrics
// on reg.
func newBridgeService(cfg *config.Config, reg prometheus.Registerer, logger *slog.Logger) *service.BridgeService {
	window := history.NewBuffer(cfg.History.Capacity)
	counters := metrics.NewCounters(reg, cfg.Normalizer.HighValueThreshold)
	metrics.RegisterWindow(reg, window)

	return service.NewBridgeService(
		normalizer.NewRouter(nil),
		normalizer.NewFieldNormalizer(cfg.KeyCase()),
		window,
		counters,
		logger,
	)
}

func resolveInstanceID(cfg *config.Config) string {
	if cfg.Stats.InstanceID != "" {
		return cfg.Stats.InstanceID
	}
	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return uuid.NewString()
	}
	return fmt.Sprintf("%s-%d", hostname, os.Getpid())
}

func corsConfig(cfg *config.Config) middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		AllowedMethods: cfg.CORS.AllowedMethods,
		AllowedHeaders: cfg.CORS.AllowedHeaders,
		MaxAge:         cfg.CORS.MaxAge,
	}
}
