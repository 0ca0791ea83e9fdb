package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/internal/webhook"
	apperrors "github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/webhook-receiver/pkg/metrics"
)

type stubPersister struct {
	artifact *webhook.Artifact
	err      error
	got      []byte
}

func (s *stubPersister) Persist(_ context.Context, body []byte) (*webhook.Artifact, error) {
	s.got = body
	return s.artifact, s.err
}

type recordingNotifier struct {
	notified []*webhook.Artifact
}

func (r *recordingNotifier) Notify(_ context.Context, a *webhook.Artifact) {
	r.notified = append(r.notified, a)
}

func post(h *Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Receive(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return body
}

func TestReceiveSuccess(t *testing.T) {
	artifact := &webhook.Artifact{Name: "payload_20261019_120000_000000.json", SizeBytes: 10}
	p := &stubPersister{artifact: artifact}
	n := &recordingNotifier{}
	m := metrics.New(prometheus.NewRegistry())
	h := New(p, n, 1024, m)

	rec := post(h, `{"test":"data"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["status"] != "received" || body["file"] != artifact.Name {
		t.Errorf("unexpected receipt %v", body)
	}
	if string(p.got) != `{"test":"data"}` {
		t.Errorf("persister received %q", p.got)
	}
	if len(n.notified) != 1 || n.notified[0] != artifact {
		t.Errorf("expected one notification, got %d", len(n.notified))
	}
	if got := testutil.ToFloat64(m.PayloadsTotal.WithLabelValues(metrics.ResultStored)); got != 1 {
		t.Errorf("expected stored counter 1, got %v", got)
	}
}

func TestReceiveErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantResult string
	}{
		{
			name:       "malformed",
			err:        apperrors.Malformed(errors.New("invalid character 'o'")),
			wantStatus: http.StatusBadRequest,
			wantResult: metrics.ResultMalformed,
		},
		{
			name:       "storage",
			err:        apperrors.Storage(errors.New("no space left on device")),
			wantStatus: http.StatusInternalServerError,
			wantResult: metrics.ResultFailed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &recordingNotifier{}
			m := metrics.New(prometheus.NewRegistry())
			h := New(&stubPersister{err: tt.err}, n, 1024, m)

			rec := post(h, `anything`)

			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if body := decodeBody(t, rec); body["error"] == "" {
				t.Error("expected error message in body")
			}
			if len(n.notified) != 0 {
				t.Error("expected no notification on failure")
			}
			if got := testutil.ToFloat64(m.PayloadsTotal.WithLabelValues(tt.wantResult)); got != 1 {
				t.Errorf("expected %s counter 1, got %v", tt.wantResult, got)
			}
		})
	}
}

func TestReceiveBodyTooLarge(t *testing.T) {
	p := &stubPersister{}
	m := metrics.New(prometheus.NewRegistry())
	h := New(p, nil, 8, m)

	rec := post(h, `{"key":"much too long"}`)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", rec.Code)
	}
	if p.got != nil {
		t.Error("persister should not be called for oversized bodies")
	}
}

func TestReceiveWithoutNotifier(t *testing.T) {
	artifact := &webhook.Artifact{Name: "payload_20261019_120000_000000.json"}
	h := New(&stubPersister{artifact: artifact}, nil, 1024, metrics.New(prometheus.NewRegistry()))

	if rec := post(h, `[]`); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

// orderingNotifier records what the client had already seen when Notify ran.
type orderingNotifier struct {
	rec        *httptest.ResponseRecorder
	ctxErr     error
	codeAtCall int
	flushed    bool
	called     bool
}

func (o *orderingNotifier) Notify(ctx context.Context, _ *webhook.Artifact) {
	o.called = true
	o.ctxErr = ctx.Err()
	o.codeAtCall = o.rec.Code
	o.flushed = o.rec.Flushed
}

func TestReceiveNotifiesAfterResponseWithDetachedContext(t *testing.T) {
	artifact := &webhook.Artifact{Name: "payload_20261019_120000_000000.json"}
	rec := httptest.NewRecorder()
	n := &orderingNotifier{rec: rec}
	ctx, cancel := context.WithCancel(context.Background())
	// The client disconnects while the payload is being stored.
	p := &cancellingPersister{stubPersister: stubPersister{artifact: artifact}, cancel: cancel}
	h := New(p, n, 1024, metrics.New(prometheus.NewRegistry()))

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"k":"v"}`)).WithContext(ctx)
	h.Receive(rec, req)

	if !n.called {
		t.Fatal("expected notifier to be called")
	}
	if n.ctxErr != nil {
		t.Errorf("notification context must not inherit request cancellation, got %v", n.ctxErr)
	}
	if n.codeAtCall != http.StatusOK || !n.flushed {
		t.Errorf("expected the 200 receipt to be flushed before notifying, code=%d flushed=%v", n.codeAtCall, n.flushed)
	}
}

type cancellingPersister struct {
	stubPersister
	cancel context.CancelFunc
}

func (c *cancellingPersister) Persist(ctx context.Context, body []byte) (*webhook.Artifact, error) {
	c.cancel()
	return c.stubPersister.Persist(ctx, body)
}
