package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Publication is one newsletter on the platform. The slug is derived from the
// name at creation and never changes afterwards; it is the stable public
// identifier used in URLs and billing metadata.
type Publication struct {
	ID          snowflake.ID `json:"id" gorm:"primaryKey"`
	OwnerUserID snowflake.ID `json:"owner_user_id" gorm:"index"`
	Name        string       `json:"name"`
	Slug        string       `json:"slug" gorm:"uniqueIndex:idx_publication_slug"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func (Publication) TableName() string {
	return "publications"
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, publication *Publication) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Publication, error)
	FindBySlug(ctx context.Context, db *gorm.DB, slug string) (*Publication, error)
	ListByOwner(ctx context.Context, db *gorm.DB, ownerUserID snowflake.ID) ([]Publication, error)
}
