package domain

import "errors"

var (
	ErrMissingSignature = errors.New("missing_signature")
	ErrInvalidSignature = errors.New("invalid_signature")
	ErrInvalidPayload   = errors.New("invalid_payload")
	ErrInvalidEvent     = errors.New("invalid_event")
	ErrEventIgnored     = errors.New("event_ignored")

	// ErrNotConfigured is returned when billing endpoints are hit without a
	// configured provider secret.
	ErrNotConfigured = errors.New("billing_not_configured")

	ErrInvalidInterval   = errors.New("invalid_interval")
	ErrOwnerCheckout     = errors.New("owner_cannot_subscribe")
	ErrAlreadySubscribed = errors.New("already_subscribed")
	ErrNoBillingRelation = errors.New("no_billing_relation")
)

// Result classifies what reconciling one event did.
type Result string

const (
	ResultApplied Result = "applied"
	ResultIgnored Result = "ignored"
	ResultErrored Result = "errored"
)

// Outcome is returned by the reconciliation engine for every event. Ignored
// outcomes carry a diagnostic reason and are acknowledged to the provider;
// errored outcomes make the webhook answer 5xx so the provider redelivers.
type Outcome struct {
	Result Result
	Reason string
}

func Applied() Outcome              { return Outcome{Result: ResultApplied} }
func Ignored(reason string) Outcome { return Outcome{Result: ResultIgnored, Reason: reason} }
func Errored(reason string) Outcome { return Outcome{Result: ResultErrored, Reason: reason} }
