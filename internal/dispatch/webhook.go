package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-pkgz/repeater"
	"github.com/go-pkgz/repeater/strategy"
	"go.uber.org/zap"

	"github.com/JakeFAU/ats-job-scout/internal/logging"
)

// errRejected stops retries for 4xx answers other than 429.
var errRejected = errors.New("webhook rejected payload")

// Repeater retries a function.
type Repeater interface {
	Do(ctx context.Context, fun func() error, errs ...error) error
}

// WebhookConfig controls the webhook sink.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration
	// Attempts, Delay and Factor shape the backoff between retries.
	Attempts int
	Delay    time.Duration
	Factor   float64
	// Batch sends one {jobs,count,timestamp,run_id} payload instead of one
	// request per record.
	Batch bool
}

// Webhook POSTs JSON to a single URL.
type Webhook struct {
	cfg    WebhookConfig
	hc     *http.Client
	rptr   Repeater
	logger *zap.Logger
}

// NewWebhook creates a webhook sink with a backoff repeater built from cfg.
func NewWebhook(cfg WebhookConfig, logger *zap.Logger) *Webhook {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.Delay <= 0 {
		cfg.Delay = 500 * time.Millisecond
	}
	if cfg.Factor < 1 {
		cfg.Factor = 2
	}
	rptr := repeater.New(&strategy.Backoff{
		Repeats:  cfg.Attempts,
		Duration: cfg.Delay,
		Factor:   cfg.Factor,
		Jitter:   true,
	})
	return &Webhook{
		cfg:    cfg,
		hc:     &http.Client{Timeout: cfg.Timeout},
		rptr:   rptr,
		logger: logging.OrNop(logger).Named("webhook"),
	}
}

// Name implements Sink.
func (w *Webhook) Name() string { return "webhook" }

type batchPayload struct {
	Jobs      []map[string]string `json:"jobs"`
	Count     int                 `json:"count"`
	Timestamp string              `json:"timestamp"`
	RunID     string              `json:"run_id"`
}

// Send implements Sink.
func (w *Webhook) Send(ctx context.Context, batch Batch) Outcome {
	if w.cfg.Batch {
		return w.sendBatch(ctx, batch)
	}
	var out Outcome
	for _, r := range batch.Records {
		if ctx.Err() != nil {
			out.Failed++
			continue
		}
		if err := w.post(ctx, Payload(r, batch.RunID, batch.DiscoveredAt)); err != nil {
			w.logger.Warn("webhook delivery failed", zap.String("url", r.URL), zap.Error(err))
			out.Failed++
			continue
		}
		out.Delivered++
	}
	return out
}

func (w *Webhook) sendBatch(ctx context.Context, batch Batch) Outcome {
	payload := batchPayload{
		Jobs:      make([]map[string]string, 0, len(batch.Records)),
		Count:     len(batch.Records),
		Timestamp: batch.DiscoveredAt.UTC().Format(time.RFC3339),
		RunID:     batch.RunID,
	}
	for _, r := range batch.Records {
		payload.Jobs = append(payload.Jobs, Payload(r, batch.RunID, batch.DiscoveredAt))
	}
	if err := w.post(ctx, payload); err != nil {
		w.logger.Warn("webhook batch delivery failed", zap.Int("count", payload.Count), zap.Error(err))
		return Outcome{Failed: payload.Count}
	}
	return Outcome{Delivered: payload.Count}
}

func (w *Webhook) post(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return w.rptr.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.cfg.URL, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := w.hc.Do(req)
		if err != nil {
			return fmt.Errorf("post webhook: %w", err)
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
			w.logger.Debug("webhook rejected payload", zap.Int("status", resp.StatusCode))
			return errRejected
		default:
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}
	}, errRejected)
}
