package models

// EnrichedContext is the authoritative state fetched for an Envelope from
// the platform API. It lives only for the duration of a single processing
// attempt and is never persisted. Any field may be nil: enrichment is
// best-effort and a secondary lookup failure still yields a partial context.
type EnrichedContext struct {
	Order    map[string]interface{} `json:"order,omitempty"`
	Payment  map[string]interface{} `json:"payment,omitempty"`
	Customer map[string]interface{} `json:"customer,omitempty"`
}

// Empty reports whether enrichment produced no data at all.
func (c *EnrichedContext) Empty() bool {
	return c == nil || (c.Order == nil && c.Payment == nil && c.Customer == nil)
}
