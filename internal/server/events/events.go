// Package events defines the identity lifecycle events exchanged between the
// credential service and its projectors, and their wire envelope.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Kind names an event type on the wire.
type Kind string

const (
	KindMailVerifyRequested Kind = "mail.verify"
	KindMailVerified        Kind = "mail.verified"
	KindUserCreated         Kind = "user.created"
	KindUserDeleted         Kind = "user.deleted"
)

// Kinds lists every known kind. Subscribers use it to register for all of them.
var Kinds = []Kind{KindMailVerifyRequested, KindMailVerified, KindUserCreated, KindUserDeleted}

// Handler reacts to each event kind. Implementations must be idempotent:
// delivery is at least once and unordered across identities.
type Handler interface {
	OnMailVerifyRequested(ctx context.Context, meta Meta, e MailVerifyRequested) error
	OnMailVerified(ctx context.Context, meta Meta, e MailVerified) error
	OnUserCreated(ctx context.Context, meta Meta, e UserCreated) error
	OnUserDeleted(ctx context.Context, meta Meta, e UserDeleted) error
}

// Meta carries envelope data a handler may need, such as the id used for
// de-duplication.
type Meta struct {
	ID         string
	OccurredAt time.Time
}

// Event is implemented only by the payload types in this package.
type Event interface {
	Kind() Kind
	Subject() string
	Accept(ctx context.Context, meta Meta, h Handler) error
}

// MailVerifyRequested asks for a verification mail to be sent.
type MailVerifyRequested struct {
	IdentityID        string  `json:"identityId"`
	Email             string  `json:"email"`
	VerificationToken string  `json:"verificationToken"`
	Username          string  `json:"username"`
	DisplayName       string  `json:"displayName"`
	Location          *string `json:"location,omitempty"`
	Occupation        *string `json:"occupation,omitempty"`
}

// MailVerified reports a completed email verification.
type MailVerified struct {
	IdentityID string  `json:"identityId"`
	Username   string  `json:"username"`
	Email      string  `json:"email"`
	Location   *string `json:"location,omitempty"`
	Occupation *string `json:"occupation,omitempty"`
}

// UserCreated carries the public data needed to build a profile.
type UserCreated struct {
	IdentityID  string  `json:"identityId"`
	Username    string  `json:"username"`
	DisplayName string  `json:"displayName"`
	Email       string  `json:"email"`
	Role        string  `json:"role"`
	Location    *string `json:"location,omitempty"`
	Occupation  *string `json:"occupation,omitempty"`
}

// UserDeleted reports the removal of an identity.
type UserDeleted struct {
	IdentityID string `json:"identityId"`
}

func (MailVerifyRequested) Kind() Kind { return KindMailVerifyRequested }
func (MailVerified) Kind() Kind        { return KindMailVerified }
func (UserCreated) Kind() Kind         { return KindUserCreated }
func (UserDeleted) Kind() Kind         { return KindUserDeleted }

func (e MailVerifyRequested) Subject() string { return e.IdentityID }
func (e MailVerified) Subject() string        { return e.IdentityID }
func (e UserCreated) Subject() string         { return e.IdentityID }
func (e UserDeleted) Subject() string         { return e.IdentityID }

func (e MailVerifyRequested) Accept(ctx context.Context, m Meta, h Handler) error {
	return h.OnMailVerifyRequested(ctx, m, e)
}

func (e MailVerified) Accept(ctx context.Context, m Meta, h Handler) error {
	return h.OnMailVerified(ctx, m, e)
}

func (e UserCreated) Accept(ctx context.Context, m Meta, h Handler) error {
	return h.OnUserCreated(ctx, m, e)
}

func (e UserDeleted) Accept(ctx context.Context, m Meta, h Handler) error {
	return h.OnUserDeleted(ctx, m, e)
}

// Decode unmarshals payload into the event type named by kind.
func Decode(kind Kind, payload []byte) (Event, error) {
	var (
		e   Event
		err error
	)
	switch kind {
	case KindMailVerifyRequested:
		var v MailVerifyRequested
		err = json.Unmarshal(payload, &v)
		e = v
	case KindMailVerified:
		var v MailVerified
		err = json.Unmarshal(payload, &v)
		e = v
	case KindUserCreated:
		var v UserCreated
		err = json.Unmarshal(payload, &v)
		e = v
	case KindUserDeleted:
		var v UserDeleted
		err = json.Unmarshal(payload, &v)
		e = v
	default:
		return nil, fmt.Errorf("unknown event kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", kind, err)
	}
	return e, nil
}
