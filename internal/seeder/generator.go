// Package seeder generates realistic commerce webhook envelopes for testing
// and local development.
package seeder

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/brianvoe/gofakeit/v6"
)

// EventTypes lists the envelope types the generator can produce.
var EventTypes = []string{
	"order.created",
	"order.updated",
	"payment.created",
	"payment.updated",
	"customer.created",
	"refund.created",
}

// Envelope mirrors the platform's wire format. A generated envelope is
// marshalled, signed and POSTed exactly like a real delivery.
type Envelope struct {
	EventID    string       `json:"event_id"`
	Type       string       `json:"type"`
	MerchantID string       `json:"merchant_id"`
	CreatedAt  time.Time    `json:"created_at"`
	Data       EnvelopeData `json:"data"`
}

type EnvelopeData struct {
	Type   string                 `json:"type"`
	ID     string                 `json:"id"`
	Object map[string]interface{} `json:"object"`
}

// Generate creates one envelope of the given type. Unknown types produce an
// envelope with a minimal object reference.
func Generate(eventType string) Envelope {
	env := Envelope{
		EventID:    gofakeit.UUID(),
		Type:       eventType,
		MerchantID: fmt.Sprintf("M%08d", rand.Intn(100000000)),
		CreatedAt:  time.Now().UTC(),
	}

	switch eventType {
	case "order.created", "order.updated":
		env.Data = orderData()
	case "payment.created", "payment.updated":
		env.Data = paymentData()
	case "customer.created":
		env.Data = customerData()
	case "refund.created":
		env.Data = refundData()
	default:
		id := gofakeit.UUID()
		env.Data = EnvelopeData{Type: "object", ID: id, Object: map[string]interface{}{"id": id}}
	}

	return env
}

// GenerateN creates count envelopes, cycling through types. An empty types
// slice uses the full EventTypes set.
func GenerateN(count int, types []string) []Envelope {
	if len(types) == 0 {
		types = EventTypes
	}

	envelopes := make([]Envelope, 0, count)
	for i := 0; i < count; i++ {
		envelopes = append(envelopes, Generate(types[i%len(types)]))
	}
	return envelopes
}

func money() map[string]interface{} {
	return map[string]interface{}{
		// Cents. Skewed low with an occasional large order to exercise the
		// alert threshold.
		"amount":   int64(gofakeit.Number(100, 30000)),
		"currency": "USD",
	}
}

func orderData() EnvelopeData {
	id := gofakeit.UUID()
	return EnvelopeData{
		Type: "order",
		ID:   id,
		Object: map[string]interface{}{
			"id":          id,
			"location_id": fmt.Sprintf("L%06d", rand.Intn(1000000)),
			"customer_id": gofakeit.UUID(),
			"status":      gofakeit.RandomString([]string{"OPEN", "COMPLETED", "CANCELED"}),
			"total_money": money(),
		},
	}
}

func paymentData() EnvelopeData {
	id := gofakeit.UUID()
	return EnvelopeData{
		Type: "payment",
		ID:   id,
		Object: map[string]interface{}{
			"id":           id,
			"location_id":  fmt.Sprintf("L%06d", rand.Intn(1000000)),
			"order_id":     gofakeit.UUID(),
			"status":       gofakeit.RandomString([]string{"APPROVED", "COMPLETED", "FAILED"}),
			"amount_money": money(),
		},
	}
}

func customerData() EnvelopeData {
	id := gofakeit.UUID()
	return EnvelopeData{
		Type: "customer",
		ID:   id,
		Object: map[string]interface{}{
			"id":            id,
			"given_name":    gofakeit.FirstName(),
			"family_name":   gofakeit.LastName(),
			"email_address": gofakeit.Email(),
		},
	}
}

func refundData() EnvelopeData {
	id := gofakeit.UUID()
	return EnvelopeData{
		Type: "refund",
		ID:   id,
		Object: map[string]interface{}{
			"id":           id,
			"order_id":     gofakeit.UUID(),
			"status":       "COMPLETED",
			"amount_money": money(),
		},
	}
}
