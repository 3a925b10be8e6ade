// Package checkout builds provider checkout sessions for paid upgrades.
package checkout

import (
	"context"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/lettercast/lettercast/internal/billing/domain"
	"github.com/lettercast/lettercast/internal/config"
	"github.com/lettercast/lettercast/internal/observability"
	publicationdomain "github.com/lettercast/lettercast/internal/publication/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log     *zap.Logger
	Pricing *config.PricingHolder
	Gateway billingdomain.Gateway  `optional:"true"`
	Metrics *observability.Metrics `optional:"true"`
}

type Initiator struct {
	log     *zap.Logger
	pricing *config.PricingHolder
	gateway billingdomain.Gateway
	metrics *observability.Metrics
}

func NewInitiator(p Params) *Initiator {
	return &Initiator{
		log:     p.Log.Named("billing.checkout"),
		pricing: p.Pricing,
		gateway: p.Gateway,
		metrics: p.Metrics,
	}
}

type Input struct {
	UserID      snowflake.ID
	UserEmail   string
	UserName    string
	Publication *publicationdomain.Publication
	Interval    billingdomain.Interval
	SuccessURL  string
	CancelURL   string
}

// Start resolves the customer and price on the provider side, then opens a
// checkout session carrying the correlation metadata the webhook pipeline
// needs to map the resulting subscription back to a local record.
func (i *Initiator) Start(ctx context.Context, input Input) (*billingdomain.CheckoutSession, error) {
	if i.gateway == nil {
		i.metrics.RecordCheckout("unconfigured")
		return nil, billingdomain.ErrNotConfigured
	}

	customerID, err := i.gateway.EnsureCustomer(ctx, input.UserEmail, input.UserName, map[string]string{
		billingdomain.MetadataUserID: input.UserID.String(),
	})
	if err != nil {
		i.metrics.RecordCheckout("failed")
		return nil, err
	}

	pricing := i.pricing.Get()
	amount := pricing.MonthlyAmount
	if input.Interval == billingdomain.IntervalYear {
		amount = pricing.YearlyAmount
	}

	priceID, err := i.gateway.EnsurePrice(ctx, billingdomain.PriceSpec{
		PublicationID:   input.Publication.ID,
		PublicationName: input.Publication.Name,
		PublicationSlug: input.Publication.Slug,
		Interval:        input.Interval,
		Amount:          amount,
		Currency:        pricing.Currency,
	})
	if err != nil {
		i.metrics.RecordCheckout("failed")
		return nil, err
	}

	session, err := i.gateway.CreateCheckoutSession(ctx, billingdomain.CheckoutSpec{
		CustomerID: customerID,
		PriceID:    priceID,
		SuccessURL: input.SuccessURL,
		CancelURL:  input.CancelURL,
		Metadata: map[string]string{
			billingdomain.MetadataUserID:          input.UserID.String(),
			billingdomain.MetadataPublicationID:   input.Publication.ID.String(),
			billingdomain.MetadataPublicationSlug: input.Publication.Slug,
			billingdomain.MetadataInterval:        string(input.Interval),
		},
	})
	if err != nil {
		i.metrics.RecordCheckout("failed")
		return nil, err
	}

	i.metrics.RecordCheckout("started")
	i.log.Info("checkout session started",
		zap.String("session_id", session.SessionID),
		zap.String("user_id", input.UserID.String()),
		zap.String("publication_id", input.Publication.ID.String()),
		zap.String("interval", string(input.Interval)),
	)
	return session, nil
}
