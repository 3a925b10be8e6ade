package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Post is one newsletter issue. Drafts are only visible to the publication
// owner; publishing is a one-way transition that triggers subscriber
// notification.
type Post struct {
	ID            snowflake.ID `json:"id" gorm:"primaryKey"`
	PublicationID snowflake.ID `json:"publication_id" gorm:"index"`
	AuthorUserID  snowflake.ID `json:"author_user_id"`
	Title         string       `json:"title"`
	Body          string       `json:"body"`
	Status        Status       `json:"status"`
	PublishedAt   *time.Time   `json:"published_at,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (Post) TableName() string {
	return "posts"
}

var (
	ErrPostNotFound     = errors.New("post_not_found")
	ErrAlreadyPublished = errors.New("post_already_published")
	ErrNotAuthor        = errors.New("not_post_author")
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, post *Post) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Post, error)
	ListByPublication(ctx context.Context, db *gorm.DB, publicationID snowflake.ID, includeDrafts bool) ([]Post, error)
	MarkPublished(ctx context.Context, db *gorm.DB, id snowflake.ID, publishedAt time.Time) (int64, error)
}
