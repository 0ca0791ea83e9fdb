package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/internal/webhook"
	apperrors "github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/tracing"
)

// Persister is satisfied by *persister.Persister.
type Persister interface {
	Persist(ctx context.Context, body []byte) (*webhook.Artifact, error)
}

// Notifier is satisfied by *notifier.Notifier.
type Notifier interface {
	Notify(ctx context.Context, a *webhook.Artifact)
}

type Handler struct {
	persister    Persister
	notifier     Notifier
	maxBodyBytes int64
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// New creates the webhook handler. notifier may be nil when notifications
// are disabled.
func New(p Persister, n Notifier, maxBodyBytes int64, m *metrics.Metrics) *Handler {
	return &Handler{
		persister:    p,
		notifier:     n,
		maxBodyBytes: maxBodyBytes,
		metrics:      m,
		logger:       logger.WithComponent("webhook-handler"),
	}
}

func (h *Handler) Receive(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.StartSpan(r.Context(), "webhook.receive")
	log := logger.FromContext(ctx)
	defer func() {
		span.End()
		span.Log(ctx, log)
	}()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.metrics.PayloadsTotal.WithLabelValues(metrics.ResultTooLarge).Inc()
			log.Warn("payload rejected", "reason", "too large", "limit_bytes", tooLarge.Limit)
			h.writeError(w, apperrors.Newf(apperrors.ErrPayloadTooLarge, http.StatusRequestEntityTooLarge,
				"body exceeds %d bytes", tooLarge.Limit))
			return
		}
		h.metrics.PayloadsTotal.WithLabelValues(metrics.ResultMalformed).Inc()
		log.Warn("payload rejected", "reason", "unreadable body", "error", err)
		h.writeError(w, apperrors.Malformed(fmt.Errorf("reading body: %w", err)))
		return
	}

	artifact, err := h.persister.Persist(ctx, body)
	if err != nil {
		if errors.Is(err, apperrors.ErrMalformedPayload) {
			h.metrics.PayloadsTotal.WithLabelValues(metrics.ResultMalformed).Inc()
			log.Warn("payload rejected", "reason", "malformed", "error", err, "content_type", r.Header.Get("Content-Type"))
		} else {
			h.metrics.PayloadsTotal.WithLabelValues(metrics.ResultFailed).Inc()
			log.Error("failed to store payload", "error", err)
		}
		h.writeError(w, err)
		return
	}

	h.metrics.PayloadsTotal.WithLabelValues(metrics.ResultStored).Inc()
	log.Info("payload received", "file", artifact.Name, "size_bytes", artifact.SizeBytes)
	h.writeJSON(w, http.StatusOK, webhook.NewReceipt(artifact))
	if h.notifier == nil {
		return
	}
	// The receipt is on the wire before the broker is contacted, and a client
	// hanging up must not cancel the publish.
	if err := http.NewResponseController(w).Flush(); err != nil {
		log.Debug("response flush unsupported", "error", err)
	}
	h.notifier.Notify(context.WithoutCancel(ctx), artifact)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

// writeError reports err with the status from apperrors.HTTPStatusCode.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	h.writeJSON(w, apperrors.HTTPStatusCode(err), map[string]string{"error": err.Error()})
}
