package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hookrelay-systems/hookrelay/internal/idempotency"
	"github.com/hookrelay-systems/hookrelay/internal/metrics"
	"github.com/hookrelay-systems/hookrelay/internal/models"
	"github.com/hookrelay-systems/hookrelay/internal/processor"
	"github.com/hookrelay-systems/hookrelay/internal/sweeper"
	"github.com/hookrelay-systems/hookrelay/pkg/signature"
)

// SignatureHeader carries the platform's base64 HMAC-SHA256 of the raw body.
const SignatureHeader = "X-Webhook-Signature"

// RetrySecretHeader authenticates POST access to the retry endpoint.
const RetrySecretHeader = "X-Relay-Secret"

// processTimeout bounds one detached pipeline run after the response to the
// sender has already been written.
const processTimeout = 60 * time.Second

// WebhookHandler accepts platform deliveries, acknowledges them within the
// sender's response budget, and hands the envelope to the pipeline in a
// bounded background goroutine.
type WebhookHandler struct {
	proc         *processor.Processor
	sweep        *sweeper.Sweeper
	store        idempotency.Store
	counters     *idempotency.Counters
	signatureKey string
	retrySecret  string
	sem          chan struct{}
	logger       *slog.Logger
}

func NewWebhookHandler(proc *processor.Processor, sweep *sweeper.Sweeper, store idempotency.Store, counters *idempotency.Counters, signatureKey, retrySecret string, maxConcurrent int, logger *slog.Logger) *WebhookHandler {
	if maxConcurrent <= 0 {
		maxConcurrent = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		proc:         proc,
		sweep:        sweep,
		store:        store,
		counters:     counters,
		signatureKey: signatureKey,
		retrySecret:  retrySecret,
		sem:          make(chan struct{}, maxConcurrent),
		logger:       logger,
	}
}

// HandleWebhook receives one platform delivery. The 200 is written after
// signature and JSON validation but before enrichment and distribution run;
// the sender never observes downstream failures.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.signatureKey == "" {
		h.logger.Error("Webhook signature key not configured")
		h.sendError(w, "server misconfigured", http.StatusInternalServerError)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.sendError(w, "failed to read body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Verify over the exact raw bytes, before any decoding.
	if !signature.Verify(h.signatureKey, body, r.Header.Get(SignatureHeader)) {
		metrics.SignatureFailures.Inc()
		h.logger.Warn("Webhook signature rejected",
			slog.String("remote_addr", r.RemoteAddr),
		)
		h.sendError(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var env models.Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		h.sendError(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]string{"status": "received"})

	// Push the acknowledgement past the server's write buffer now: the
	// semaphore acquisition below can park this goroutine while detached
	// pipelines hold every slot, and the sender must not wait on that.
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	// The response is on the wire; run the pipeline detached from the
	// request context, bounded by the concurrency semaphore.
	h.sem <- struct{}{}
	go func() {
		defer func() { <-h.sem }()

		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()

		outcome := h.proc.Process(ctx, &env)
		h.logger.Info("Webhook processed",
			slog.String("event_id", env.EventID),
			slog.String("type", env.Type),
			slog.String("outcome", outcome.String()),
		)
	}()
}

type verifyRequest struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
	Key       string `json:"key"`
}

// HandleVerify checks an explicit (payload, signature, key) triple. Used by
// operators to debug subscription configuration.
func (h *WebhookHandler) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Key == "" {
		h.sendError(w, "key is required", http.StatusBadRequest)
		return
	}

	valid := signature.Verify(req.Key, []byte(req.Payload), req.Signature)
	h.sendJSON(w, http.StatusOK, map[string]bool{"valid": valid})
}

// HandleRetry triggers a sweep of the failure ledger. GET is open for manual
// and cron use; POST requires the shared retry secret.
func (h *WebhookHandler) HandleRetry(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		if h.retrySecret == "" || r.Header.Get(RetrySecretHeader) != h.retrySecret {
			h.sendError(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	default:
		h.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summary := h.sweep.Run(r.Context())
	h.sendJSON(w, http.StatusOK, summary)
}

// HandleEventLookup reports whether an event identifier is currently
// claimed in the idempotency store. Operator tooling, not the hot path.
func (h *WebhookHandler) HandleEventLookup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	eventID := r.URL.Query().Get("id")
	if eventID == "" {
		h.sendError(w, "id is required", http.StatusBadRequest)
		return
	}

	rec, err := h.store.Get(r.Context(), eventID)
	if err != nil {
		h.logger.Error("Event lookup failed",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()),
		)
		h.sendError(w, "lookup failed", http.StatusInternalServerError)
		return
	}
	if rec == nil {
		h.sendError(w, "event not found", http.StatusNotFound)
		return
	}

	h.sendJSON(w, http.StatusOK, rec)
}

// HandleStats returns the volume counter for one event type.
func (h *WebhookHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	eventType := r.URL.Query().Get("type")
	if eventType == "" {
		h.sendError(w, "type is required", http.StatusBadRequest)
		return
	}

	count, err := h.counters.Count(r.Context(), eventType)
	if err != nil {
		h.logger.Error("Stats lookup failed",
			slog.String("type", eventType),
			slog.String("error", err.Error()),
		)
		h.sendError(w, "lookup failed", http.StatusInternalServerError)
		return
	}

	h.sendJSON(w, http.StatusOK, map[string]interface{}{
		"type":  eventType,
		"count": count,
	})
}

func (h *WebhookHandler) Health(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (h *WebhookHandler) Ready(w http.ResponseWriter, r *http.Request) {
	h.sendJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *WebhookHandler) sendJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *WebhookHandler) sendError(w http.ResponseWriter, msg string, status int) {
	h.sendJSON(w, status, map[string]string{"error": msg})
}
