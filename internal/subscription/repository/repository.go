package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	subscriptiondomain "github.com/lettercast/lettercast/internal/subscription/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() subscriptiondomain.Repository {
	return &repo{}
}

// Upsert inserts a record or overwrites the provider-sourced field set on
// conflict of (user_id, publication_id). The ON CONFLICT guard skips the
// update when the stored last_event_at is newer than the incoming one, so a
// late redelivery cannot regress status or period fields.
func (r *repo) Upsert(ctx context.Context, db *gorm.DB, record *subscriptiondomain.Record) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`INSERT INTO subscription_records (
			id, user_id, publication_id, tier, status, billing_customer_id,
			billing_subscription_id, billing_price_id, current_period_start,
			current_period_end, cancel_at_period_end, last_event_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, publication_id) DO UPDATE SET
			tier = excluded.tier,
			status = excluded.status,
			billing_customer_id = excluded.billing_customer_id,
			billing_subscription_id = excluded.billing_subscription_id,
			billing_price_id = excluded.billing_price_id,
			current_period_start = excluded.current_period_start,
			current_period_end = excluded.current_period_end,
			cancel_at_period_end = excluded.cancel_at_period_end,
			last_event_at = excluded.last_event_at,
			updated_at = excluded.updated_at
		WHERE subscription_records.last_event_at IS NULL
		   OR (excluded.last_event_at IS NOT NULL AND subscription_records.last_event_at <= excluded.last_event_at)`,
		record.ID,
		record.UserID,
		record.PublicationID,
		record.Tier,
		record.Status,
		record.BillingCustomerID,
		record.BillingSubscriptionID,
		record.BillingPriceID,
		record.CurrentPeriodStart,
		record.CurrentPeriodEnd,
		record.CancelAtPeriodEnd,
		record.LastEventAt,
		record.CreatedAt,
		record.UpdatedAt,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) FindByUserAndPublication(ctx context.Context, db *gorm.DB, userID, publicationID snowflake.ID) (*subscriptiondomain.Record, error) {
	var record subscriptiondomain.Record
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM subscription_records WHERE user_id = ? AND publication_id = ?`,
		userID,
		publicationID,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) FindByBillingSubscriptionID(ctx context.Context, db *gorm.DB, billingSubscriptionID string) (*subscriptiondomain.Record, error) {
	if billingSubscriptionID == "" {
		return nil, nil
	}
	var record subscriptiondomain.Record
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM subscription_records WHERE billing_subscription_id = ?`,
		billingSubscriptionID,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *repo) ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]subscriptiondomain.Record, error) {
	var records []subscriptiondomain.Record
	err := db.WithContext(ctx).Raw(
		`SELECT * FROM subscription_records WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	).Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

// ApplyProviderState overwrites the provider-sourced fields of the record
// correlated by billing subscription id.
func (r *repo) ApplyProviderState(ctx context.Context, db *gorm.DB, state subscriptiondomain.ProviderState) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscription_records SET
			tier = ?,
			status = ?,
			billing_price_id = ?,
			current_period_start = ?,
			current_period_end = ?,
			cancel_at_period_end = ?,
			last_event_at = ?,
			updated_at = ?
		WHERE billing_subscription_id = ?
		  AND (last_event_at IS NULL OR last_event_at <= ?)`,
		subscriptiondomain.TierPaid,
		state.Status,
		state.BillingPriceID,
		state.CurrentPeriodStart,
		state.CurrentPeriodEnd,
		state.CancelAtPeriodEnd,
		state.EventAt,
		time.Now().UTC(),
		state.BillingSubscriptionID,
		state.EventAt,
	)
	return res.RowsAffected, res.Error
}

// MarkCanceled records a provider-side deletion: status canceled, tier free,
// row retained with its billing identifiers for history.
func (r *repo) MarkCanceled(ctx context.Context, db *gorm.DB, billingSubscriptionID string, eventAt time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscription_records SET
			tier = ?,
			status = ?,
			cancel_at_period_end = ?,
			last_event_at = ?,
			updated_at = ?
		WHERE billing_subscription_id = ?
		  AND (last_event_at IS NULL OR last_event_at <= ?)`,
		subscriptiondomain.TierFree,
		subscriptiondomain.StatusCanceled,
		false,
		eventAt,
		time.Now().UTC(),
		billingSubscriptionID,
		eventAt,
	)
	return res.RowsAffected, res.Error
}

func (r *repo) MarkPastDue(ctx context.Context, db *gorm.DB, billingSubscriptionID string, eventAt time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscription_records SET
			status = ?,
			last_event_at = ?,
			updated_at = ?
		WHERE billing_subscription_id = ?
		  AND (last_event_at IS NULL OR last_event_at <= ?)`,
		subscriptiondomain.StatusPastDue,
		eventAt,
		time.Now().UTC(),
		billingSubscriptionID,
		eventAt,
	)
	return res.RowsAffected, res.Error
}

// RecoverPastDue flips status back to active only when the record is
// currently past_due; any other status is left untouched.
func (r *repo) RecoverPastDue(ctx context.Context, db *gorm.DB, billingSubscriptionID string, eventAt time.Time) (int64, error) {
	res := db.WithContext(ctx).Exec(
		`UPDATE subscription_records SET
			status = ?,
			last_event_at = ?,
			updated_at = ?
		WHERE billing_subscription_id = ?
		  AND status = ?
		  AND (last_event_at IS NULL OR last_event_at <= ?)`,
		subscriptiondomain.StatusActive,
		eventAt,
		time.Now().UTC(),
		billingSubscriptionID,
		subscriptiondomain.StatusPastDue,
		eventAt,
	)
	return res.RowsAffected, res.Error
}
