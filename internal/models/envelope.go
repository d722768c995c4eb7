package models

import (
	"strings"
	"time"
)

// Envelope is one inbound webhook notification from the commerce platform.
// The same EventID may be delivered more than once; deduplication happens
// downstream, not here.
type Envelope struct {
	EventID    string       `json:"event_id"`
	Type       string       `json:"type"`
	MerchantID string       `json:"merchant_id,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	Data       EnvelopeData `json:"data"`
}

// EnvelopeData wraps the typed object reference carried by the notification.
type EnvelopeData struct {
	Type   string    `json:"type,omitempty"`
	ID     string    `json:"id,omitempty"`
	Object ObjectRef `json:"object"`
}

// ObjectRef is the commerce object referenced by an Envelope. Only the
// fields the relay acts on are typed.
type ObjectRef struct {
	ID          string `json:"id"`
	LocationID  string `json:"location_id,omitempty"`
	OrderID     string `json:"order_id,omitempty"`
	CustomerID  string `json:"customer_id,omitempty"`
	Status      string `json:"status,omitempty"`
	TotalMoney  *Money `json:"total_money,omitempty"`
	AmountMoney *Money `json:"amount_money,omitempty"`
}

// Money is an amount in the currency's smallest denomination (cents for USD).
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// ObjectCategory returns the leading segment of the event type, e.g.
// "order" for "order.created". Empty when the type has no namespace.
func (e *Envelope) ObjectCategory() string {
	if i := strings.IndexByte(e.Type, '.'); i > 0 {
		return e.Type[:i]
	}
	return ""
}

// MonetaryValue returns the order or payment value in major currency units
// (dollars), or false when the object carries no money field.
func (e *Envelope) MonetaryValue() (float64, bool) {
	m := e.Data.Object.TotalMoney
	if m == nil {
		m = e.Data.Object.AmountMoney
	}
	if m == nil {
		return 0, false
	}
	return float64(m.Amount) / 100, true
}

// Validate reports whether the Envelope carries the fields required for
// processing. A missing identifier or type is a permanent rejection.
func (e *Envelope) Validate() error {
	if e.EventID == "" {
		return ErrMissingEventID
	}
	if e.Type == "" {
		return ErrMissingEventType
	}
	return nil
}
