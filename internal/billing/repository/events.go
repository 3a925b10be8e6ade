package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/lettercast/lettercast/internal/billing/domain"
	"github.com/lettercast/lettercast/pkg/db"
	"gorm.io/gorm"
)

type eventRepo struct{}

func Provide() billingdomain.EventRepository {
	return &eventRepo{}
}

func (r *eventRepo) InsertEvent(ctx context.Context, gdb *gorm.DB, record *billingdomain.EventRecord) (bool, error) {
	res := gdb.WithContext(ctx).Exec(
		`INSERT INTO billing_events (
			id, provider, provider_event_id, event_type, payload, outcome, received_at, processed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (provider, provider_event_id) DO NOTHING`,
		record.ID,
		record.Provider,
		record.ProviderEventID,
		record.EventType,
		record.Payload,
		record.Outcome,
		record.ReceivedAt,
		record.ProcessedAt,
	)
	if res.Error != nil {
		if db.IsDuplicateKeyErr(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *eventRepo) FindEvent(ctx context.Context, gdb *gorm.DB, provider, providerEventID string) (*billingdomain.EventRecord, error) {
	var record billingdomain.EventRecord
	err := gdb.WithContext(ctx).Raw(
		`SELECT * FROM billing_events WHERE provider = ? AND provider_event_id = ?`,
		provider,
		providerEventID,
	).Scan(&record).Error
	if err != nil {
		return nil, err
	}
	if record.ID == 0 {
		return nil, nil
	}
	return &record, nil
}

func (r *eventRepo) MarkProcessed(ctx context.Context, gdb *gorm.DB, id snowflake.ID, processedAt time.Time, outcome string) error {
	return gdb.WithContext(ctx).Exec(
		`UPDATE billing_events SET processed_at = ?, outcome = ? WHERE id = ?`,
		processedAt,
		outcome,
		id,
	).Error
}
