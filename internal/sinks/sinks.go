// Package sinks defines the downstream consumers of processed envelopes.
// Each sink is an opaque "deliver this JSON document" call with its own
// timeout; sinks know nothing about each other and nothing about retries.
package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hookrelay-systems/hookrelay/internal/models"
)

// Sink is one downstream consumer of a processed envelope.
type Sink interface {
	// Deliver sends the envelope and its enriched context. A non-2xx
	// acknowledgement is an error.
	Deliver(ctx context.Context, env *models.Envelope, enriched *models.EnrichedContext) error
	Name() string
	Timeout() time.Duration
}

// payload is the JSON document every HTTP sink receives.
type payload struct {
	Envelope *models.Envelope        `json:"envelope"`
	Enriched *models.EnrichedContext `json:"enriched,omitempty"`
	SentAt   string                  `json:"sent_at"`
}

// HTTPSink posts the envelope as JSON to a configured URL. All concrete
// outbound channels except the log sink are HTTPSinks with different names,
// URLs and timeouts.
type HTTPSink struct {
	name    string
	url     string
	timeout time.Duration
	client  *http.Client
}

// NewHTTPSink builds a named HTTP sink.
func NewHTTPSink(name, url string, timeout time.Duration) *HTTPSink {
	return &HTTPSink{
		name:    name,
		url:     url,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSink) Name() string { return s.name }

func (s *HTTPSink) Timeout() time.Duration { return s.timeout }

func (s *HTTPSink) Deliver(ctx context.Context, env *models.Envelope, enriched *models.EnrichedContext) error {
	doc := payload{
		Envelope: env,
		SentAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if !enriched.Empty() {
		doc.Enriched = enriched
	}

	jsonData, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", s.name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("create %s request: %w", s.name, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "HookRelay/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send to %s: %w", s.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", s.name, resp.StatusCode)
	}

	return nil
}

// LogSink writes processed envelopes to the service log. It exists so a
// deployment with no external consumers still has a visible record of
// every distribution.
type LogSink struct {
	logger  *slog.Logger
	timeout time.Duration
}

// NewLogSink builds a log sink. A nil logger falls back to slog.Default.
func NewLogSink(logger *slog.Logger, timeout time.Duration) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger, timeout: timeout}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Timeout() time.Duration { return s.timeout }

func (s *LogSink) Deliver(ctx context.Context, env *models.Envelope, enriched *models.EnrichedContext) error {
	attrs := []any{
		slog.String("event_id", env.EventID),
		slog.String("type", env.Type),
		slog.String("object_id", env.Data.Object.ID),
		slog.Bool("enriched", !enriched.Empty()),
	}
	if value, ok := env.MonetaryValue(); ok {
		attrs = append(attrs, slog.Float64("value", value))
	}

	s.logger.InfoContext(ctx, "Envelope distributed", attrs...)
	return nil
}
