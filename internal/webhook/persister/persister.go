// Package persister turns a webhook request body into a payload artifact on
// disk. Every accepted body yields exactly one complete file; on any failure
// no file is left behind.
package persister

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/internal/webhook"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/internal/webhook/naming"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/tracing"
)

// maxNameAttempts bounds retries when another process already created the
// generated name.
const maxNameAttempts = 8

// artifactFile is the part of *os.File the persister writes through.
type artifactFile interface {
	Write(p []byte) (int, error)
	Sync() error
	Close() error
}

// createExclusive creates path, failing with fs.ErrExist if it already exists.
func createExclusive(path string) (artifactFile, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Persister writes payload artifacts into a single data directory.
type Persister struct {
	dataDir  string
	fsync    bool
	namer    *naming.Namer
	metrics  *metrics.Metrics
	logger   *slog.Logger
	openFile func(path string) (artifactFile, error)
}

// New creates a Persister for cfg.DataDir. The directory is created lazily.
func New(cfg config.StorageConfig, namer *naming.Namer, m *metrics.Metrics) *Persister {
	return &Persister{
		dataDir:  cfg.DataDir,
		fsync:    cfg.Fsync,
		namer:    namer,
		metrics:  m,
		logger:   logger.WithComponent("persister").With("data_dir", cfg.DataDir),
		openFile: createExclusive,
	}
}

// Persist parses body as a single JSON value and writes its re-serialisation
// to a new artifact. Errors are *apperrors.AppError wrapping
// ErrMalformedPayload or ErrStorage.
func (p *Persister) Persist(ctx context.Context, body []byte) (*webhook.Artifact, error) {
	receivedAt := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, "persist")
	defer span.End()

	payload, err := decode(body)
	if err != nil {
		return nil, err
	}
	data, err := encode(payload)
	if err != nil {
		return nil, apperrors.Storage(fmt.Errorf("encoding payload: %w", err))
	}

	if err := os.MkdirAll(p.dataDir, 0o755); err != nil {
		return nil, apperrors.Storage(fmt.Errorf("creating data directory: %w", err))
	}

	start := time.Now()
	for attempt := 1; attempt <= maxNameAttempts; attempt++ {
		name, err := p.namer.Next(ctx)
		if err != nil {
			return nil, apperrors.Storage(fmt.Errorf("generating artifact name: %w", err))
		}
		path := filepath.Join(p.dataDir, name)
		f, err := p.openFile(path)
		if errors.Is(err, fs.ErrExist) {
			p.logger.Warn("artifact name taken, trying next", "file", name, "attempt", attempt)
			continue
		}
		if err != nil {
			return nil, apperrors.Storage(fmt.Errorf("creating artifact: %w", err))
		}
		if err := p.write(f, data); err != nil {
			if rmErr := os.Remove(path); rmErr != nil {
				p.logger.Error("failed to remove partial artifact", "file", name, "error", rmErr)
			}
			return nil, apperrors.Storage(fmt.Errorf("writing artifact %s: %w", name, err))
		}

		p.metrics.WriteDuration.Observe(time.Since(start).Seconds())
		p.metrics.PayloadBytes.Observe(float64(len(data)))
		span.SetAttr("file", name)
		span.SetAttr("size_bytes", len(data))
		return &webhook.Artifact{
			Name:       name,
			Path:       path,
			SizeBytes:  len(data),
			ReceivedAt: receivedAt,
		}, nil
	}
	return nil, apperrors.Storage(fmt.Errorf("no free artifact name after %d attempts", maxNameAttempts))
}

func (p *Persister) write(f artifactFile, data []byte) error {
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if p.fsync {
		if err := f.Sync(); err != nil {
			f.Close()
			return fmt.Errorf("syncing: %w", err)
		}
	}
	return f.Close()
}

// decode accepts exactly one JSON value. Numbers stay json.Number so large
// integers round-trip unchanged.
func decode(body []byte) (any, error) {
	// encoding/json would silently replace invalid bytes with U+FFFD.
	if !utf8.Valid(body) {
		return nil, apperrors.Malformed(errors.New("body is not valid UTF-8"))
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, apperrors.Malformed(errors.New("empty body"))
		}
		return nil, apperrors.Malformed(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, apperrors.Malformed(errors.New("unexpected data after JSON value"))
	}
	return v, nil
}

func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
