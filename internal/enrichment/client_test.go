package enrichment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookrelay-systems/hookrelay/internal/models"
)

func orderEnvelope(orderID string) *models.Envelope {
	return &models.Envelope{
		EventID: "evt-1",
		Type:    "order.created",
		Data: models.EnvelopeData{
			Object: models.ObjectRef{ID: orderID},
		},
	}
}

func TestNew_MissingToken(t *testing.T) {
	_, err := New("https://api.example.com", "", 5*time.Second)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestEnrich_OrderWithCustomer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/v2/orders/o-1":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"order": map[string]interface{}{
					"id":          "o-1",
					"customer_id": "c-9",
					"state":       "OPEN",
				},
			})
		case "/v2/customers/c-9":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"customer": map[string]interface{}{
					"id":         "c-9",
					"given_name": "Ada",
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	g, err := New(server.URL, "tok", 2*time.Second)
	require.NoError(t, err)

	enriched := g.Enrich(context.Background(), orderEnvelope("o-1"))
	require.NotNil(t, enriched)
	require.NotNil(t, enriched.Order)
	assert.Equal(t, "o-1", enriched.Order["id"])
	require.NotNil(t, enriched.Customer)
	assert.Equal(t, "Ada", enriched.Customer["given_name"])
}

func TestEnrich_SecondaryFailureReturnsPartial(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/v2/payments/p-1":
			json.NewEncoder(w).Encode(map[string]interface{}{
				"payment": map[string]interface{}{
					"id":       "p-1",
					"order_id": "o-broken",
				},
			})
		default:
			// Parent order lookup fails.
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	g, err := New(server.URL, "tok", 2*time.Second)
	require.NoError(t, err)

	env := &models.Envelope{
		EventID: "evt-2",
		Type:    "payment.created",
		Data:    models.EnvelopeData{Object: models.ObjectRef{ID: "p-1"}},
	}

	enriched := g.Enrich(context.Background(), env)
	require.NotNil(t, enriched.Payment, "primary lookup result must survive secondary failure")
	assert.Equal(t, "p-1", enriched.Payment["id"])
	assert.Nil(t, enriched.Order)
}

func TestEnrich_PrimaryFailureReturnsEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	g, err := New(server.URL, "tok", 2*time.Second)
	require.NoError(t, err)

	enriched := g.Enrich(context.Background(), orderEnvelope("o-1"))
	require.NotNil(t, enriched)
	assert.True(t, enriched.Empty())
}

func TestEnrich_TimeoutReturnsEmpty(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Write([]byte(`{"order":{}}`))
	}))
	defer slow.Close()

	g, err := New(slow.URL, "tok", 50*time.Millisecond)
	require.NoError(t, err)

	start := time.Now()
	enriched := g.Enrich(context.Background(), orderEnvelope("o-1"))
	assert.True(t, enriched.Empty())
	assert.Less(t, time.Since(start), 250*time.Millisecond, "enrichment must respect its timeout")
}

func TestEnrich_UnknownCategoryIsNoop(t *testing.T) {
	g, err := New("http://localhost:1", "tok", time.Second)
	require.NoError(t, err)

	env := &models.Envelope{
		EventID: "evt-3",
		Type:    "inventory.count.updated",
		Data:    models.EnvelopeData{Object: models.ObjectRef{ID: "x"}},
	}

	enriched := g.Enrich(context.Background(), env)
	assert.True(t, enriched.Empty())
}
