package webhook

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/lettercast/lettercast/internal/billing/domain"
)

// Decode parses a verified payload into one of the typed event variants.
// Unknown event types return ErrEventIgnored so the caller can acknowledge
// without processing.
func Decode(payload []byte) (billingdomain.Event, error) {
	var event providerEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	kind := billingdomain.EventKind(strings.TrimSpace(event.Type))
	switch kind {
	case billingdomain.EventCheckoutCompleted:
		return decodeCheckoutSession(event, payload)
	case billingdomain.EventSubscriptionCreated, billingdomain.EventSubscriptionUpdated:
		return decodeSubscriptionChange(event, kind)
	case billingdomain.EventSubscriptionDeleted:
		return decodeSubscriptionDeleted(event)
	case billingdomain.EventInvoicePaymentSucceeded:
		return decodeInvoice(event, true)
	case billingdomain.EventInvoicePaymentFailed:
		return decodeInvoice(event, false)
	default:
		return nil, billingdomain.ErrEventIgnored
	}
}

type providerEvent struct {
	ID      string            `json:"id"`
	Type    string            `json:"type"`
	Created int64             `json:"created"`
	Data    providerEventData `json:"data"`
}

type providerEventData struct {
	Object json.RawMessage `json:"object"`
}

type checkoutSessionObject struct {
	ID           string            `json:"id"`
	Subscription string            `json:"subscription"`
	Metadata     map[string]string `json:"metadata"`
}

type subscriptionObject struct {
	ID                 string            `json:"id"`
	Customer           string            `json:"customer"`
	Status             string            `json:"status"`
	CancelAtPeriodEnd  bool              `json:"cancel_at_period_end"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
	Items              subscriptionItems `json:"items"`
	Metadata           map[string]string `json:"metadata"`
}

type subscriptionItems struct {
	Data []subscriptionItem `json:"data"`
}

type subscriptionItem struct {
	Price              subscriptionPrice `json:"price"`
	CurrentPeriodStart int64             `json:"current_period_start"`
	CurrentPeriodEnd   int64             `json:"current_period_end"`
}

type subscriptionPrice struct {
	ID string `json:"id"`
}

type invoiceObject struct {
	ID           string `json:"id"`
	Subscription string `json:"subscription"`
}

func decodeCheckoutSession(event providerEvent, payload []byte) (billingdomain.Event, error) {
	var session checkoutSessionObject
	if err := json.Unmarshal(event.Data.Object, &session); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(session.ID) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	return &billingdomain.CheckoutCompleted{
		Envelope:       envelope(event),
		SessionID:      session.ID,
		SubscriptionID: strings.TrimSpace(session.Subscription),
		Metadata:       parseCorrelation(session.Metadata),
	}, nil
}

func decodeSubscriptionChange(event providerEvent, kind billingdomain.EventKind) (billingdomain.Event, error) {
	var sub subscriptionObject
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	return &billingdomain.SubscriptionChange{
		Envelope:     envelope(event),
		Change:       kind,
		Subscription: subscriptionState(sub),
	}, nil
}

func decodeSubscriptionDeleted(event providerEvent) (billingdomain.Event, error) {
	var sub subscriptionObject
	if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(sub.ID) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	return &billingdomain.SubscriptionDeleted{
		Envelope:       envelope(event),
		SubscriptionID: sub.ID,
	}, nil
}

func decodeInvoice(event providerEvent, succeeded bool) (billingdomain.Event, error) {
	var invoice invoiceObject
	if err := json.Unmarshal(event.Data.Object, &invoice); err != nil {
		return nil, billingdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(invoice.ID) == "" {
		return nil, billingdomain.ErrInvalidEvent
	}

	if succeeded {
		return &billingdomain.InvoicePaymentSucceeded{
			Envelope:       envelope(event),
			SubscriptionID: strings.TrimSpace(invoice.Subscription),
		}, nil
	}
	return &billingdomain.InvoicePaymentFailed{
		Envelope:       envelope(event),
		SubscriptionID: strings.TrimSpace(invoice.Subscription),
	}, nil
}

func envelope(event providerEvent) billingdomain.Envelope {
	created := time.Now().UTC()
	if event.Created > 0 {
		created = time.Unix(event.Created, 0).UTC()
	}
	return billingdomain.Envelope{ID: event.ID, Created: created}
}

func subscriptionState(sub subscriptionObject) billingdomain.SubscriptionState {
	state := billingdomain.SubscriptionState{
		SubscriptionID:    sub.ID,
		CustomerID:        strings.TrimSpace(sub.Customer),
		Status:            strings.ToLower(strings.TrimSpace(sub.Status)),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		Metadata:          parseCorrelation(sub.Metadata),
	}

	// Newer provider API versions carry period boundaries on the item, older
	// payloads on the subscription itself.
	periodStart := sub.CurrentPeriodStart
	periodEnd := sub.CurrentPeriodEnd
	if len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		state.PriceID = item.Price.ID
		if item.CurrentPeriodStart > 0 {
			periodStart = item.CurrentPeriodStart
		}
		if item.CurrentPeriodEnd > 0 {
			periodEnd = item.CurrentPeriodEnd
		}
	}
	if periodStart > 0 {
		ts := time.Unix(periodStart, 0).UTC()
		state.CurrentPeriodStart = &ts
	}
	if periodEnd > 0 {
		ts := time.Unix(periodEnd, 0).UTC()
		state.CurrentPeriodEnd = &ts
	}

	return state
}

func parseCorrelation(metadata map[string]string) billingdomain.Correlation {
	corr := billingdomain.Correlation{
		PublicationSlug: strings.TrimSpace(metadata[billingdomain.MetadataPublicationSlug]),
	}
	if raw := strings.TrimSpace(metadata[billingdomain.MetadataUserID]); raw != "" {
		if id, err := snowflake.ParseString(raw); err == nil {
			corr.UserID = id
		}
	}
	if raw := strings.TrimSpace(metadata[billingdomain.MetadataPublicationID]); raw != "" {
		if id, err := snowflake.ParseString(raw); err == nil {
			corr.PublicationID = id
		}
	}
	return corr
}
