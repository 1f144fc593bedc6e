package envelope

import (
	"encoding/json"
	"time"
)

// RateLimitInfo reports the caller's remaining quota for the current window.
type RateLimitInfo struct {
	Limit        int `json:"limit"`
	Remaining    int `json:"remaining"`
	ResetSeconds int `json:"reset_seconds"`
}

// Paging carries the cursor for the next page of a list response.
type Paging struct {
	NextCursor *string `json:"next_cursor"`
	HasMore    bool    `json:"has_more"`
}

// Meta is the metadata object attached to every successful response.
type Meta struct {
	ETag               string         `json:"etag"`
	LastModified       string         `json:"last_modified"`
	FromCache          bool           `json:"from_cache"`
	RateLimit          *RateLimitInfo `json:"rate_limit"`
	Paging             *Paging        `json:"paging,omitempty"`
	IdempotentResponse bool           `json:"idempotent_response,omitempty"`
	NextSteps          string         `json:"next_steps"`
}

// Envelope is a tool response: business fields plus meta.
//
// Contract:
// - Serialization: business fields and meta flatten into one JSON object;
//   "meta" is reserved and must not appear among the business fields.
// - Lifetime: constructed fresh per request, never persisted as a unit.
type Envelope struct {
	Fields map[string]any
	Meta   Meta
}

// New builds an envelope around the given business fields. The ETag is
// computed from the fields; LastModified is now in UTC.
func New(fields map[string]any, nextSteps string) (*Envelope, error) {
	etag, err := ETag(fields)
	if err != nil {
		return nil, err
	}
	return &Envelope{
		Fields: fields,
		Meta: Meta{
			ETag:         etag,
			LastModified: time.Now().UTC().Format(time.RFC3339),
			NextSteps:    nextSteps,
		},
	}, nil
}

// MarshalJSON flattens the business fields and meta into a single object.
func (e *Envelope) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		if k == "meta" {
			continue
		}
		out[k] = v
	}
	out["meta"] = e.Meta
	return json.Marshal(out)
}

// UnmarshalJSON splits a flattened object back into fields and meta.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if rawMeta, ok := raw["meta"]; ok {
		if err := json.Unmarshal(rawMeta, &e.Meta); err != nil {
			return err
		}
		delete(raw, "meta")
	}

	e.Fields = make(map[string]any, len(raw))
	for k, v := range raw {
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		e.Fields[k] = val
	}
	return nil
}

// NotModified is the 304-equivalent result returned when a conditional cache
// check matches the stored ETag. It carries only meta, no business payload.
type NotModified struct {
	Status int  `json:"status"`
	Meta   Meta `json:"meta"`
}

// NewNotModified builds the conditional short-circuit result from the stored
// entry's meta.
func NewNotModified(meta Meta) *NotModified {
	meta.FromCache = true
	return &NotModified{Status: 304, Meta: meta}
}
