package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Envelope is the wire form of an event. ID is the outbox record id and stays
// stable across redeliveries.
type Envelope struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	IdentityID string          `json:"identityId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope serializes e into an envelope with the given id.
func NewEnvelope(id string, e Event, occurredAt time.Time) (Envelope, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return Envelope{}, fmt.Errorf("encode %s payload: %w", e.Kind(), err)
	}
	return Envelope{
		ID:         id,
		Kind:       e.Kind(),
		IdentityID: e.Subject(),
		OccurredAt: occurredAt.UTC(),
		Payload:    payload,
	}, nil
}

// Marshal returns the JSON encoding of the envelope.
func (env Envelope) Marshal() ([]byte, error) {
	return json.Marshal(env)
}

// UnmarshalEnvelope parses a JSON envelope.
func UnmarshalEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Kind == "" {
		return Envelope{}, fmt.Errorf("decode envelope: missing kind")
	}
	return env, nil
}

// Event decodes the payload.
func (env Envelope) Event() (Event, error) {
	return Decode(env.Kind, env.Payload)
}

// Meta returns the envelope metadata handed to handlers.
func (env Envelope) Meta() Meta {
	return Meta{ID: env.ID, OccurredAt: env.OccurredAt}
}

// Dispatch decodes the envelope and routes it to h.
func Dispatch(ctx context.Context, env Envelope, h Handler) error {
	e, err := env.Event()
	if err != nil {
		return err
	}
	return e.Accept(ctx, env.Meta(), h)
}
