// Package domain contains persistence models for reader subscriptions.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Tier controls content access for a (user, publication) relationship.
type Tier string

const (
	TierFree Tier = "free"
	TierPaid Tier = "paid"
)

// Status is the provider-reported lifecycle state of a paid subscription.
// It is always overwritten verbatim from the latest reconciled provider
// event, never computed locally.
type Status string

const (
	StatusActive   Status = "active"
	StatusPastDue  Status = "past_due"
	StatusCanceled Status = "canceled"
)

// Record captures one reader's relationship with one publication. At most one
// record exists per (user, publication) pair; records are never hard-deleted.
// A provider-side deletion downgrades tier to free and keeps the row for
// history.
type Record struct {
	ID                    snowflake.ID `json:"id" gorm:"primaryKey"`
	UserID                snowflake.ID `json:"user_id" gorm:"not null;uniqueIndex:idx_subscription_user_publication"`
	PublicationID         snowflake.ID `json:"publication_id" gorm:"not null;uniqueIndex:idx_subscription_user_publication"`
	Tier                  Tier         `json:"tier" gorm:"type:text;not null"`
	Status                Status       `json:"status" gorm:"type:text;not null"`
	BillingCustomerID     *string      `json:"-" gorm:"type:text"`
	BillingSubscriptionID *string      `json:"-" gorm:"type:text;index"`
	BillingPriceID        *string      `json:"-" gorm:"type:text"`
	CurrentPeriodStart    *time.Time   `json:"current_period_start,omitempty"`
	CurrentPeriodEnd      *time.Time   `json:"current_period_end,omitempty"`
	CancelAtPeriodEnd     bool         `json:"cancel_at_period_end" gorm:"not null;default:false"`

	// LastEventAt is the provider timestamp of the most recent reconciled
	// event; writes carrying an older timestamp are skipped.
	LastEventAt *time.Time `json:"-" gorm:"index"`

	CreatedAt time.Time `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt time.Time `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Record) TableName() string { return "subscription_records" }

// ProviderState is the field set every provider-sourced mutation overwrites.
type ProviderState struct {
	BillingSubscriptionID string
	Status                Status
	BillingPriceID        *string
	CurrentPeriodStart    *time.Time
	CurrentPeriodEnd      *time.Time
	CancelAtPeriodEnd     bool
	EventAt               time.Time
}
