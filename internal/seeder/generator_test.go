package seeder

import (
	"encoding/json"
	"testing"
)

func TestGenerate_AllTypes(t *testing.T) {
	for _, eventType := range EventTypes {
		t.Run(eventType, func(t *testing.T) {
			env := Generate(eventType)

			if env.EventID == "" {
				t.Error("expected non-empty event_id")
			}
			if env.Type != eventType {
				t.Errorf("expected type %q, got %q", eventType, env.Type)
			}
			if env.Data.Object["id"] == "" {
				t.Error("expected object to carry an id")
			}

			// Every generated envelope must survive a wire round trip.
			if _, err := json.Marshal(env); err != nil {
				t.Fatalf("marshal: %v", err)
			}
		})
	}
}

func TestGenerate_MonetaryEvents(t *testing.T) {
	tests := []struct {
		eventType string
		field     string
	}{
		{"order.created", "total_money"},
		{"payment.created", "amount_money"},
		{"refund.created", "amount_money"},
	}

	for _, tt := range tests {
		env := Generate(tt.eventType)
		m, ok := env.Data.Object[tt.field].(map[string]interface{})
		if !ok {
			t.Fatalf("%s: expected %s on object", tt.eventType, tt.field)
		}
		amount, ok := m["amount"].(int64)
		if !ok || amount <= 0 {
			t.Errorf("%s: expected positive amount, got %v", tt.eventType, m["amount"])
		}
	}
}

func TestGenerateN_CyclesTypes(t *testing.T) {
	envelopes := GenerateN(6, []string{"order.created", "customer.created"})

	if len(envelopes) != 6 {
		t.Fatalf("expected 6 envelopes, got %d", len(envelopes))
	}

	var orders, customers int
	seen := make(map[string]bool)
	for _, env := range envelopes {
		if seen[env.EventID] {
			t.Errorf("duplicate event_id %s", env.EventID)
		}
		seen[env.EventID] = true

		switch env.Type {
		case "order.created":
			orders++
		case "customer.created":
			customers++
		default:
			t.Errorf("unexpected type %s", env.Type)
		}
	}

	if orders != 3 || customers != 3 {
		t.Errorf("expected even split, got %d orders / %d customers", orders, customers)
	}
}
