package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Interval is the billing cadence offered at checkout.
type Interval string

const (
	IntervalMonth Interval = "month"
	IntervalYear  Interval = "year"
)

func ParseInterval(raw string) (Interval, error) {
	switch Interval(raw) {
	case IntervalMonth:
		return IntervalMonth, nil
	case IntervalYear:
		return IntervalYear, nil
	default:
		return "", ErrInvalidInterval
	}
}

// SubscriptionDetail is the provider's full view of one subscription,
// fetched when an event carries only a reference.
type SubscriptionDetail struct {
	SubscriptionID     string
	CustomerID         string
	Status             string
	PriceID            string
	CurrentPeriodStart *time.Time
	CurrentPeriodEnd   *time.Time
	CancelAtPeriodEnd  bool
	Metadata           map[string]string
}

// PriceSpec identifies the recurring price for one (publication, interval).
type PriceSpec struct {
	PublicationID   snowflake.ID
	PublicationName string
	PublicationSlug string
	Interval        Interval
	Amount          int64
	Currency        string
}

// CheckoutSpec is the outbound checkout session request. Metadata is stamped
// at the session level and at the subscription level so later lifecycle
// events still carry correlation data.
type CheckoutSpec struct {
	CustomerID string
	PriceID    string
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

type CheckoutSession struct {
	SessionID   string
	RedirectURL string
}

// Gateway is the thin client for the external billing provider.
type Gateway interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionDetail, error)
	EnsureCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error)
	EnsurePrice(ctx context.Context, spec PriceSpec) (string, error)
	CreateCheckoutSession(ctx context.Context, spec CheckoutSpec) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// Correlation metadata keys echoed back by the provider.
const (
	MetadataUserID          = "user_id"
	MetadataPublicationID   = "publication_id"
	MetadataPublicationSlug = "publication_slug"
	MetadataInterval        = "interval"
)
