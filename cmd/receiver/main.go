// Command receiver starts the webhook receiver HTTP service.
//
// The service accepts arbitrary JSON via POST /webhook and stores each body
// as data/payload_<timestamp>.json. GET / is the liveness check and
// GET /health/ready reports dependency readiness. Kafka notifications and the
// Redis-backed name sequence are enabled only when configured.
//
// Usage:
//
//	PORT=5000 go run ./cmd/receiver
//
// An optional YAML file may be named with WEBHOOK_CONFIG.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/internal/webhook/handler"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/internal/webhook/naming"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/internal/webhook/notifier"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/internal/webhook/persister"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/internal/webhook/router"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/redis"
)

func main() {
	cfg, err := config.Load(os.Getenv("WEBHOOK_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting webhook receiver", "port", cfg.Server.Port, "data_dir", cfg.Storage.DataDir)

	if err := run(cfg); err != nil {
		slog.Error("webhook receiver failed", "error", err)
		os.Exit(1)
	}
	slog.Info("webhook receiver stopped")
}

// run wires dependencies and serves until SIGINT/SIGTERM or a server error.
func run(cfg *config.Config) error {
	m := metrics.New(prometheus.DefaultRegisterer)
	checker := health.NewChecker()
	checker.Register("data_dir", health.DirCheck(cfg.Storage.DataDir))

	var seq naming.Sequence
	if cfg.Redis.Enabled() {
		rc, err := redis.NewClient(cfg.Redis)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rc.Close()
		seq = naming.NewRedisSequence(rc, cfg.Redis.SequenceKey)
		checker.Register("redis", health.PingCheck(rc.Ping, false))
		slog.Info("redis artifact sequence enabled", "addr", cfg.Redis.Addr, "key", cfg.Redis.SequenceKey)
	}

	p := persister.New(cfg.Storage, naming.NewNamer(seq), m)

	var n handler.Notifier
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka)
		defer producer.Close()
		kn := notifier.New(producer, cfg.Notifier, m)
		checker.Register("kafka", health.PingCheck(kn.Check, true))
		n = kn
		slog.Info("kafka notifications enabled", "topic", producer.Topic(), "brokers", cfg.Kafka.Brokers)
	}

	h := handler.New(p, n, cfg.Webhook.MaxBodyBytes, m)
	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router.New(h, checker, m),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	servers := []*http.Server{server}
	if cfg.Metrics.Enabled {
		servers = append(servers, metrics.NewServer(cfg.Metrics.Port, prometheus.DefaultGatherer))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		g.Go(func() error {
			slog.Info("listening", "addr", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serving %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutting down %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}
