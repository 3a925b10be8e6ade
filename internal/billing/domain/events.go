// Package domain defines the canonical billing event union, the gateway
// contract, and the reconciliation outcome vocabulary.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// EventKind enumerates the provider event types this system consumes. The
// set is closed: anything else is acknowledged and ignored.
type EventKind string

const (
	EventCheckoutCompleted       EventKind = "checkout.session.completed"
	EventSubscriptionCreated     EventKind = "customer.subscription.created"
	EventSubscriptionUpdated     EventKind = "customer.subscription.updated"
	EventSubscriptionDeleted     EventKind = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded EventKind = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    EventKind = "invoice.payment_failed"
)

// Event is one verified, typed provider event.
type Event interface {
	Kind() EventKind
	EventID() string
	OccurredAt() time.Time
}

// Envelope carries the provider event id and timestamp shared by all kinds.
type Envelope struct {
	ID      string
	Created time.Time
}

func (e Envelope) EventID() string       { return e.ID }
func (e Envelope) OccurredAt() time.Time { return e.Created }

// Correlation is the application metadata stamped on outbound checkout
// requests and echoed back by the provider. Zero IDs mean the value was
// absent or unparseable.
type Correlation struct {
	UserID          snowflake.ID
	PublicationID   snowflake.ID
	PublicationSlug string
}

func (c Correlation) Complete() bool {
	return c.UserID != 0 && c.PublicationID != 0
}

// CheckoutCompleted references a subscription by id only; the full object
// must be fetched from the gateway.
type CheckoutCompleted struct {
	Envelope
	SessionID      string
	SubscriptionID string
	Metadata       Correlation
}

func (CheckoutCompleted) Kind() EventKind { return EventCheckoutCompleted }

// SubscriptionState is the full subscription object embedded in
// subscription lifecycle events.
type SubscriptionState struct {
	SubscriptionID     string
	CustomerID         string
	Status             string
	PriceID            string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	Metadata           Correlation
}

// SubscriptionChange covers both subscription_created and
// subscription_updated; the two kinds share one payload shape and one
// reconciliation branch.
type SubscriptionChange struct {
	Envelope
	Change       EventKind
	Subscription SubscriptionState
}

func (e SubscriptionChange) Kind() EventKind { return e.Change }

type SubscriptionDeleted struct {
	Envelope
	SubscriptionID string
}

func (SubscriptionDeleted) Kind() EventKind { return EventSubscriptionDeleted }

type InvoicePaymentSucceeded struct {
	Envelope
	SubscriptionID string
}

func (InvoicePaymentSucceeded) Kind() EventKind { return EventInvoicePaymentSucceeded }

type InvoicePaymentFailed struct {
	Envelope
	SubscriptionID string
}

func (InvoicePaymentFailed) Kind() EventKind { return EventInvoicePaymentFailed }
