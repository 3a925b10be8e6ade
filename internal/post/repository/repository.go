package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	postdomain "github.com/lettercast/lettercast/internal/post/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() postdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, gdb *gorm.DB, post *postdomain.Post) error {
	return gdb.WithContext(ctx).Exec(
		`INSERT INTO posts (
			id, publication_id, author_user_id, title, body, status, published_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID,
		post.PublicationID,
		post.AuthorUserID,
		post.Title,
		post.Body,
		post.Status,
		post.PublishedAt,
		post.CreatedAt,
		post.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, gdb *gorm.DB, id snowflake.ID) (*postdomain.Post, error) {
	var post postdomain.Post
	err := gdb.WithContext(ctx).Raw(
		`SELECT * FROM posts WHERE id = ?`,
		id,
	).Scan(&post).Error
	if err != nil {
		return nil, err
	}
	if post.ID == 0 {
		return nil, nil
	}
	return &post, nil
}

func (r *repo) ListByPublication(ctx context.Context, gdb *gorm.DB, publicationID snowflake.ID, includeDrafts bool) ([]postdomain.Post, error) {
	query := `SELECT * FROM posts WHERE publication_id = ?`
	if !includeDrafts {
		query += ` AND status = 'published'`
	}
	query += ` ORDER BY created_at DESC`

	var posts []postdomain.Post
	err := gdb.WithContext(ctx).Raw(query, publicationID).Scan(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// MarkPublished only transitions drafts; a second publish affects zero rows.
func (r *repo) MarkPublished(ctx context.Context, gdb *gorm.DB, id snowflake.ID, publishedAt time.Time) (int64, error) {
	res := gdb.WithContext(ctx).Exec(
		`UPDATE posts
		SET status = 'published', published_at = ?, updated_at = ?
		WHERE id = ? AND status = 'draft'`,
		publishedAt,
		publishedAt,
		id,
	)
	return res.RowsAffected, res.Error
}
