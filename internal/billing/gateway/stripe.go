// Package gateway implements the billing provider client on top of the
// official Stripe SDK. It only issues outbound calls; inbound events are
// handled by the webhook package.
package gateway

import (
	"context"
	"fmt"
	"time"

	billingdomain "github.com/lettercast/lettercast/internal/billing/domain"
	"github.com/stripe/stripe-go/v84"
	portalsession "github.com/stripe/stripe-go/v84/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/customer"
	"github.com/stripe/stripe-go/v84/price"
	"github.com/stripe/stripe-go/v84/product"
	"github.com/stripe/stripe-go/v84/subscription"
	"go.uber.org/zap"
)

type Client struct {
	log *zap.Logger
}

// NewClient configures the global Stripe key and returns the gateway client.
func NewClient(secretKey string, log *zap.Logger) *Client {
	stripe.Key = secretKey
	return &Client{log: log.Named("billing.gateway")}
}

func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*billingdomain.SubscriptionDetail, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription %s: %w", subscriptionID, err)
	}
	return subscriptionDetail(sub), nil
}

func (c *Client) EnsureCustomer(ctx context.Context, email, name string, metadata map[string]string) (string, error) {
	searchParams := &stripe.CustomerSearchParams{
		SearchParams: stripe.SearchParams{
			Query: fmt.Sprintf("email:'%s'", email),
		},
	}
	iter := customer.Search(searchParams)
	if iter.Next() {
		return iter.Customer().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("search customer: %w", err)
	}

	params := &stripe.CustomerParams{
		Email:    stripe.String(email),
		Name:     stripe.String(name),
		Metadata: metadata,
	}
	created, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create customer: %w", err)
	}

	c.log.Info("created billing customer", zap.String("customer_id", created.ID))
	return created.ID, nil
}

// EnsurePrice resolves the recurring price for (publication, interval),
// creating the product and price on first use.
func (c *Client) EnsurePrice(ctx context.Context, spec billingdomain.PriceSpec) (string, error) {
	query := fmt.Sprintf("active:'true' AND metadata['%s']:'%s' AND metadata['%s']:'%s'",
		billingdomain.MetadataPublicationID, spec.PublicationID.String(),
		billingdomain.MetadataInterval, string(spec.Interval),
	)
	iter := price.Search(&stripe.PriceSearchParams{
		SearchParams: stripe.SearchParams{Query: query},
	})
	if iter.Next() {
		return iter.Price().ID, nil
	}
	if err := iter.Err(); err != nil {
		return "", fmt.Errorf("search price: %w", err)
	}

	metadata := map[string]string{
		billingdomain.MetadataPublicationID:   spec.PublicationID.String(),
		billingdomain.MetadataPublicationSlug: spec.PublicationSlug,
		billingdomain.MetadataInterval:        string(spec.Interval),
	}

	prod, err := product.New(&stripe.ProductParams{
		Name:     stripe.String(fmt.Sprintf("%s subscription", spec.PublicationName)),
		Metadata: metadata,
	})
	if err != nil {
		return "", fmt.Errorf("create product: %w", err)
	}

	created, err := price.New(&stripe.PriceParams{
		Product:    stripe.String(prod.ID),
		UnitAmount: stripe.Int64(spec.Amount),
		Currency:   stripe.String(spec.Currency),
		Recurring: &stripe.PriceRecurringParams{
			Interval: stripe.String(string(spec.Interval)),
		},
		Metadata: metadata,
	})
	if err != nil {
		return "", fmt.Errorf("create price: %w", err)
	}

	c.log.Info("created billing price",
		zap.String("price_id", created.ID),
		zap.String("publication_id", spec.PublicationID.String()),
		zap.String("interval", string(spec.Interval)),
	)
	return created.ID, nil
}

// CreateCheckoutSession stamps the correlation metadata both on the session
// and on the subscription it will create, so lifecycle events that reference
// only the subscription still resolve to a local record.
func (c *Client) CreateCheckoutSession(ctx context.Context, spec billingdomain.CheckoutSpec) (*billingdomain.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:   stripe.String(spec.CustomerID),
		SuccessURL: stripe.String(spec.SuccessURL),
		CancelURL:  stripe.String(spec.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(spec.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: spec.Metadata,
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: spec.Metadata,
		},
		AllowPromotionCodes: stripe.Bool(true),
	}

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	c.log.Info("created checkout session", zap.String("session_id", sess.ID))
	return &billingdomain.CheckoutSession{
		SessionID:   sess.ID,
		RedirectURL: sess.URL,
	}, nil
}

func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	sess, err := portalsession.New(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	})
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}

func subscriptionDetail(sub *stripe.Subscription) *billingdomain.SubscriptionDetail {
	detail := &billingdomain.SubscriptionDetail{
		SubscriptionID:    sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          sub.Metadata,
	}
	if sub.Customer != nil {
		detail.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			detail.PriceID = item.Price.ID
		}
		if item.CurrentPeriodStart > 0 {
			ts := time.Unix(item.CurrentPeriodStart, 0).UTC()
			detail.CurrentPeriodStart = &ts
		}
		if item.CurrentPeriodEnd > 0 {
			ts := time.Unix(item.CurrentPeriodEnd, 0).UTC()
			detail.CurrentPeriodEnd = &ts
		}
	}
	return detail
}
