// Package enrichment fetches authoritative object state from the commerce
// platform API. Every lookup is best-effort and bounded: enrichment failure
// must never block distribution, so callers always receive a context, even
// an empty one.
package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hookrelay-systems/hookrelay/internal/metrics"
	"github.com/hookrelay-systems/hookrelay/internal/models"
)

// ErrMissingCredentials is returned at construction when enrichment is
// enabled without an API token. This is a startup failure, never a per-call
// one.
var ErrMissingCredentials = errors.New("enrichment enabled but no access token configured")

// Gateway resolves orders, payments and customers from the platform API.
type Gateway struct {
	baseURL     string
	accessToken string
	timeout     time.Duration
	httpClient  *http.Client
}

// New builds a Gateway. The token requirement is enforced here so a
// misconfigured deployment fails on boot rather than on the first webhook.
func New(baseURL, accessToken string, timeout time.Duration) (*Gateway, error) {
	if accessToken == "" {
		return nil, ErrMissingCredentials
	}

	return &Gateway{
		baseURL:     baseURL,
		accessToken: accessToken,
		timeout:     timeout,
		httpClient:  &http.Client{Timeout: timeout},
	}, nil
}

// Enrich resolves the object referenced by env plus, when applicable, its
// related object: a payment's parent order, an order's customer. A failed
// secondary lookup still returns the partial primary result. The returned
// context is never nil.
func (g *Gateway) Enrich(ctx context.Context, env *models.Envelope) *models.EnrichedContext {
	enriched := &models.EnrichedContext{}

	start := time.Now()
	defer func() {
		metrics.EnrichmentDuration.Observe(time.Since(start).Seconds())
		if enriched.Empty() {
			metrics.EnrichmentFailures.Inc()
		}
	}()

	objectID := env.Data.Object.ID
	if objectID == "" {
		objectID = env.Data.ID
	}
	if objectID == "" {
		return enriched
	}

	switch env.ObjectCategory() {
	case "order":
		order, err := g.fetch(ctx, "/v2/orders/"+objectID, "order")
		if err != nil {
			slog.Warn("Order enrichment failed",
				slog.String("event_id", env.EventID),
				slog.String("error", err.Error()),
			)
			return enriched
		}
		enriched.Order = order

		if customerID := stringField(order, "customer_id"); customerID != "" {
			customer, err := g.fetch(ctx, "/v2/customers/"+customerID, "customer")
			if err != nil {
				slog.Warn("Customer enrichment failed",
					slog.String("event_id", env.EventID),
					slog.String("error", err.Error()),
				)
			} else {
				enriched.Customer = customer
			}
		}

	case "payment":
		payment, err := g.fetch(ctx, "/v2/payments/"+objectID, "payment")
		if err != nil {
			slog.Warn("Payment enrichment failed",
				slog.String("event_id", env.EventID),
				slog.String("error", err.Error()),
			)
			return enriched
		}
		enriched.Payment = payment

		orderID := stringField(payment, "order_id")
		if orderID == "" {
			orderID = env.Data.Object.OrderID
		}
		if orderID != "" {
			order, err := g.fetch(ctx, "/v2/orders/"+orderID, "order")
			if err != nil {
				slog.Warn("Parent order enrichment failed",
					slog.String("event_id", env.EventID),
					slog.String("error", err.Error()),
				)
			} else {
				enriched.Order = order
			}
		}

	case "customer":
		customer, err := g.fetch(ctx, "/v2/customers/"+objectID, "customer")
		if err != nil {
			slog.Warn("Customer enrichment failed",
				slog.String("event_id", env.EventID),
				slog.String("error", err.Error()),
			)
			return enriched
		}
		enriched.Customer = customer
	}

	return enriched
}

// fetch performs one bounded GET against the platform API and unwraps the
// named top-level field from the response body.
func (g *Gateway) fetch(ctx context.Context, path, field string) (map[string]interface{}, error) {
	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("platform API returned status %d for %s", resp.StatusCode, path)
	}

	var body map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	raw, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("response missing %q field", field)
	}

	var obj map[string]interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode %s object: %w", field, err)
	}
	return obj, nil
}

func stringField(obj map[string]interface{}, key string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}
