package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the CRUD surface over subscription records. Every mutation is
// a single SQL statement so concurrent webhook deliveries racing on one row
// rely on database atomicity, not read-modify-write in application code.
// Mutations return the number of affected rows; zero means the write was
// skipped by the ordering guard or matched no row.
type Repository interface {
	Upsert(ctx context.Context, db *gorm.DB, record *Record) (int64, error)
	FindByUserAndPublication(ctx context.Context, db *gorm.DB, userID, publicationID snowflake.ID) (*Record, error)
	FindByBillingSubscriptionID(ctx context.Context, db *gorm.DB, billingSubscriptionID string) (*Record, error)
	ListByUser(ctx context.Context, db *gorm.DB, userID snowflake.ID) ([]Record, error)

	ApplyProviderState(ctx context.Context, db *gorm.DB, state ProviderState) (int64, error)
	MarkCanceled(ctx context.Context, db *gorm.DB, billingSubscriptionID string, eventAt time.Time) (int64, error)
	MarkPastDue(ctx context.Context, db *gorm.DB, billingSubscriptionID string, eventAt time.Time) (int64, error)
	RecoverPastDue(ctx context.Context, db *gorm.DB, billingSubscriptionID string, eventAt time.Time) (int64, error)
}
