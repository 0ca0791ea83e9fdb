// Package notifier publishes a PayloadStoredEvent to Kafka after each
// artifact is written. Publishing is best-effort: it runs under a timeout and
// a circuit breaker, and its failures are logged and counted but never reach
// the webhook caller.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/internal/webhook"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/tracing"
)

// Notification result labels.
const (
	resultPublished = "published"
	resultFailed    = "failed"
	resultSkipped   = "skipped"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Notifier announces stored artifacts.
type Notifier struct {
	pub     Publisher
	breaker *resilience.CircuitBreaker
	cfg     config.NotifierConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New creates a Notifier. The breaker state is mirrored into the
// circuit_breaker_state gauge.
func New(pub Publisher, cfg config.NotifierConfig, m *metrics.Metrics) *Notifier {
	breaker := resilience.NewCircuitBreaker("kafka-notifier", resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		ResetTimeout:     cfg.ResetTimeout,
		OnStateChange: func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	m.CircuitBreakerState.WithLabelValues(breaker.Name()).Set(float64(resilience.StateClosed))
	return &Notifier{
		pub:     pub,
		breaker: breaker,
		cfg:     cfg,
		metrics: m,
		logger:  logger.WithComponent("notifier"),
	}
}

// Notify publishes an event for a. It never returns an error.
func (n *Notifier) Notify(ctx context.Context, a *webhook.Artifact) {
	ctx, span := tracing.StartChildSpan(ctx, "notify")
	defer span.End()

	event := kafka.Event{
		Key: a.Name,
		Value: webhook.PayloadStoredEvent{
			File:       a.Name,
			Path:       a.Path,
			SizeBytes:  a.SizeBytes,
			RequestID:  logger.RequestIDFromContext(ctx),
			ReceivedAt: a.ReceivedAt.UTC(),
		},
	}
	err := n.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, n.cfg.Timeout, "publish payload-stored", func(ctx context.Context) error {
			return n.pub.Publish(ctx, event)
		})
	})

	log := logger.FromContext(ctx)
	switch {
	case err == nil:
		n.metrics.NotificationsTotal.WithLabelValues(resultPublished).Inc()
		span.SetAttr("result", resultPublished)
	case errors.Is(err, resilience.ErrCircuitOpen):
		n.metrics.NotificationsTotal.WithLabelValues(resultSkipped).Inc()
		span.SetAttr("result", resultSkipped)
		log.Debug("notification skipped", "file", a.Name, "reason", err)
	default:
		n.metrics.NotificationsTotal.WithLabelValues(resultFailed).Inc()
		span.SetAttr("result", resultFailed)
		log.Warn("notification failed", "file", a.Name, "error", err)
	}
}

// Check reports an error while the circuit is not closed, for readiness
// reporting.
func (n *Notifier) Check(context.Context) error {
	if state := n.breaker.GetState(); state != resilience.StateClosed {
		return fmt.Errorf("kafka circuit %s", state)
	}
	return nil
}
