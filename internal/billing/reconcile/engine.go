// Package reconcile applies verified billing events to subscription records.
// The provider is authoritative for status and period fields; every branch is
// an overwrite-by-latest-value so redelivery and out-of-order delivery
// converge on the provider's truth.
package reconcile

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/lettercast/lettercast/internal/billing/domain"
	"github.com/lettercast/lettercast/internal/observability"
	subscriptiondomain "github.com/lettercast/lettercast/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Provider identifies the billing provider in the event log.
const Provider = "stripe"

type Params struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Records subscriptiondomain.Repository
	Events  billingdomain.EventRepository
	Gateway billingdomain.Gateway  `optional:"true"`
	Metrics *observability.Metrics `optional:"true"`
}

type Engine struct {
	db      *gorm.DB
	log     *zap.Logger
	genID   *snowflake.Node
	records subscriptiondomain.Repository
	events  billingdomain.EventRepository
	gateway billingdomain.Gateway
	metrics *observability.Metrics
}

func NewEngine(p Params) *Engine {
	return &Engine{
		db:      p.DB,
		log:     p.Log.Named("billing.reconcile"),
		genID:   p.GenID,
		records: p.Records,
		events:  p.Events,
		gateway: p.Gateway,
		metrics: p.Metrics,
	}
}

// Reconcile applies one event idempotently. A correlation miss is never an
// error: failing would make the provider retry an event this system can
// never resolve. Gateway and database failures are errored so the caller
// answers 5xx and the provider redelivers.
func (e *Engine) Reconcile(ctx context.Context, event billingdomain.Event, payload []byte) (billingdomain.Outcome, error) {
	if event == nil {
		return billingdomain.Errored("nil event"), billingdomain.ErrInvalidEvent
	}

	now := time.Now().UTC()
	record := &billingdomain.EventRecord{
		ID:              e.genID.Generate(),
		Provider:        Provider,
		ProviderEventID: event.EventID(),
		EventType:       string(event.Kind()),
		Payload:         datatypes.JSON(payload),
		ReceivedAt:      now,
	}

	inserted, err := e.events.InsertEvent(ctx, e.db, record)
	if err != nil {
		return e.finish(event, billingdomain.Errored("event log write failed")), err
	}
	if !inserted {
		stored, err := e.events.FindEvent(ctx, e.db, Provider, event.EventID())
		if err != nil {
			return e.finish(event, billingdomain.Errored("event log read failed")), err
		}
		if stored == nil {
			return e.finish(event, billingdomain.Errored("event log inconsistent")), billingdomain.ErrInvalidEvent
		}
		if stored.ProcessedAt != nil {
			return e.finish(event, billingdomain.Ignored("already processed")), nil
		}
		// Unprocessed duplicate: an earlier delivery errored mid-flight.
		record = stored
	}

	outcome, err := e.apply(ctx, event)
	if err != nil {
		// Leave the event row unprocessed so redelivery runs the branch again.
		return e.finish(event, outcome), err
	}

	if err := e.events.MarkProcessed(ctx, e.db, record.ID, time.Now().UTC(), string(outcome.Result)); err != nil {
		return e.finish(event, billingdomain.Errored("event log update failed")), err
	}

	return e.finish(event, outcome), nil
}

func (e *Engine) finish(event billingdomain.Event, outcome billingdomain.Outcome) billingdomain.Outcome {
	e.metrics.RecordWebhookEvent(string(event.Kind()), string(outcome.Result))
	if outcome.Result == billingdomain.ResultIgnored {
		e.log.Info("billing event ignored",
			zap.String("event_id", event.EventID()),
			zap.String("event_type", string(event.Kind())),
			zap.String("reason", outcome.Reason),
		)
	}
	return outcome
}

func (e *Engine) apply(ctx context.Context, event billingdomain.Event) (billingdomain.Outcome, error) {
	switch ev := event.(type) {
	case *billingdomain.CheckoutCompleted:
		return e.applyCheckoutCompleted(ctx, ev)
	case *billingdomain.SubscriptionChange:
		return e.applySubscriptionChange(ctx, ev)
	case *billingdomain.SubscriptionDeleted:
		return e.applySubscriptionDeleted(ctx, ev)
	case *billingdomain.InvoicePaymentSucceeded:
		return e.applyInvoiceSucceeded(ctx, ev)
	case *billingdomain.InvoicePaymentFailed:
		return e.applyInvoiceFailed(ctx, ev)
	default:
		return billingdomain.Ignored("unhandled event kind"), nil
	}
}

// applyCheckoutCompleted is the creation path for new paid relationships.
// The checkout event carries only a subscription reference, so the full
// object is fetched from the gateway before upserting.
func (e *Engine) applyCheckoutCompleted(ctx context.Context, ev *billingdomain.CheckoutCompleted) (billingdomain.Outcome, error) {
	if ev.SubscriptionID == "" || !ev.Metadata.Complete() {
		return billingdomain.Ignored("incomplete checkout correlation"), nil
	}
	if e.gateway == nil {
		return billingdomain.Errored("billing gateway unavailable"), billingdomain.ErrNotConfigured
	}

	detail, err := e.gateway.GetSubscription(ctx, ev.SubscriptionID)
	if err != nil {
		return billingdomain.Errored("gateway fetch failed"), err
	}

	eventAt := ev.OccurredAt()
	now := time.Now().UTC()
	record := &subscriptiondomain.Record{
		ID:                    e.genID.Generate(),
		UserID:                ev.Metadata.UserID,
		PublicationID:         ev.Metadata.PublicationID,
		Tier:                  subscriptiondomain.TierPaid,
		Status:                normalizeStatus(detail.Status),
		BillingCustomerID:     optional(detail.CustomerID),
		BillingSubscriptionID: optional(ev.SubscriptionID),
		BillingPriceID:        optional(detail.PriceID),
		CurrentPeriodStart:    detail.CurrentPeriodStart,
		CurrentPeriodEnd:      detail.CurrentPeriodEnd,
		CancelAtPeriodEnd:     detail.CancelAtPeriodEnd,
		LastEventAt:           &eventAt,
		CreatedAt:             now,
		UpdatedAt:             now,
	}

	rows, err := e.records.Upsert(ctx, e.db, record)
	if err != nil {
		return billingdomain.Errored("record write failed"), err
	}
	if rows == 0 {
		return billingdomain.Ignored("stale event"), nil
	}
	return billingdomain.Applied(), nil
}

// applySubscriptionChange correlates via embedded metadata when present and
// falls back to the billing subscription id. A record neither path resolves
// was never created through checkout here; that is acceptable, not fatal.
func (e *Engine) applySubscriptionChange(ctx context.Context, ev *billingdomain.SubscriptionChange) (billingdomain.Outcome, error) {
	st := ev.Subscription
	eventAt := ev.OccurredAt()

	if st.Metadata.Complete() {
		now := time.Now().UTC()
		record := &subscriptiondomain.Record{
			ID:                    e.genID.Generate(),
			UserID:                st.Metadata.UserID,
			PublicationID:         st.Metadata.PublicationID,
			Tier:                  subscriptiondomain.TierPaid,
			Status:                normalizeStatus(st.Status),
			BillingCustomerID:     optional(st.CustomerID),
			BillingSubscriptionID: optional(st.SubscriptionID),
			BillingPriceID:        optional(st.PriceID),
			CurrentPeriodStart:    st.CurrentPeriodStart,
			CurrentPeriodEnd:      st.CurrentPeriodEnd,
			CancelAtPeriodEnd:     st.CancelAtPeriodEnd,
			LastEventAt:           &eventAt,
			CreatedAt:             now,
			UpdatedAt:             now,
		}

		rows, err := e.records.Upsert(ctx, e.db, record)
		if err != nil {
			return billingdomain.Errored("record write failed"), err
		}
		if rows == 0 {
			return billingdomain.Ignored("stale event"), nil
		}
		return billingdomain.Applied(), nil
	}

	rows, err := e.records.ApplyProviderState(ctx, e.db, subscriptiondomain.ProviderState{
		BillingSubscriptionID: st.SubscriptionID,
		Status:                normalizeStatus(st.Status),
		BillingPriceID:        optional(st.PriceID),
		CurrentPeriodStart:    st.CurrentPeriodStart,
		CurrentPeriodEnd:      st.CurrentPeriodEnd,
		CancelAtPeriodEnd:     st.CancelAtPeriodEnd,
		EventAt:               eventAt,
	})
	if err != nil {
		return billingdomain.Errored("record write failed"), err
	}
	if rows > 0 {
		return billingdomain.Applied(), nil
	}
	return e.explainSkippedWrite(ctx, st.SubscriptionID)
}

func (e *Engine) applySubscriptionDeleted(ctx context.Context, ev *billingdomain.SubscriptionDeleted) (billingdomain.Outcome, error) {
	rows, err := e.records.MarkCanceled(ctx, e.db, ev.SubscriptionID, ev.OccurredAt())
	if err != nil {
		return billingdomain.Errored("record write failed"), err
	}
	if rows > 0 {
		return billingdomain.Applied(), nil
	}
	return e.explainSkippedWrite(ctx, ev.SubscriptionID)
}

// applyInvoiceSucceeded is only a past-due recovery signal, not a generic
// renew: any status other than past_due is left untouched.
func (e *Engine) applyInvoiceSucceeded(ctx context.Context, ev *billingdomain.InvoicePaymentSucceeded) (billingdomain.Outcome, error) {
	if ev.SubscriptionID == "" {
		return billingdomain.Ignored("no subscription reference"), nil
	}
	record, err := e.records.FindByBillingSubscriptionID(ctx, e.db, ev.SubscriptionID)
	if err != nil {
		return billingdomain.Errored("record read failed"), err
	}
	if record == nil {
		return billingdomain.Ignored("unknown subscription"), nil
	}
	if record.Status != subscriptiondomain.StatusPastDue {
		return billingdomain.Applied(), nil
	}

	if _, err := e.records.RecoverPastDue(ctx, e.db, ev.SubscriptionID, ev.OccurredAt()); err != nil {
		return billingdomain.Errored("record write failed"), err
	}
	return billingdomain.Applied(), nil
}

func (e *Engine) applyInvoiceFailed(ctx context.Context, ev *billingdomain.InvoicePaymentFailed) (billingdomain.Outcome, error) {
	if ev.SubscriptionID == "" {
		return billingdomain.Ignored("no subscription reference"), nil
	}
	rows, err := e.records.MarkPastDue(ctx, e.db, ev.SubscriptionID, ev.OccurredAt())
	if err != nil {
		return billingdomain.Errored("record write failed"), err
	}
	if rows > 0 {
		return billingdomain.Applied(), nil
	}
	return e.explainSkippedWrite(ctx, ev.SubscriptionID)
}

// explainSkippedWrite distinguishes "no such record" from "write skipped by
// the ordering guard" after a zero-row mutation.
func (e *Engine) explainSkippedWrite(ctx context.Context, billingSubscriptionID string) (billingdomain.Outcome, error) {
	record, err := e.records.FindByBillingSubscriptionID(ctx, e.db, billingSubscriptionID)
	if err != nil {
		return billingdomain.Errored("record read failed"), err
	}
	if record == nil {
		return billingdomain.Ignored("unknown subscription"), nil
	}
	return billingdomain.Ignored("stale event"), nil
}

// normalizeStatus folds provider statuses into the closed local set. The
// value is still provider-sourced; no status is ever computed locally.
func normalizeStatus(raw string) subscriptiondomain.Status {
	switch raw {
	case "trialing":
		return subscriptiondomain.StatusActive
	case "unpaid":
		return subscriptiondomain.StatusPastDue
	case "incomplete_expired":
		return subscriptiondomain.StatusCanceled
	default:
		return subscriptiondomain.Status(raw)
	}
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
