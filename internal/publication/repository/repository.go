package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	publicationdomain "github.com/lettercast/lettercast/internal/publication/domain"
	"github.com/lettercast/lettercast/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() publicationdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, gdb *gorm.DB, publication *publicationdomain.Publication) error {
	err := gdb.WithContext(ctx).Exec(
		`INSERT INTO publications (
			id, owner_user_id, name, slug, description, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		publication.ID,
		publication.OwnerUserID,
		publication.Name,
		publication.Slug,
		publication.Description,
		publication.CreatedAt,
		publication.UpdatedAt,
	).Error
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return publicationdomain.ErrSlugTaken
		}
		return err
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, gdb *gorm.DB, id snowflake.ID) (*publicationdomain.Publication, error) {
	var publication publicationdomain.Publication
	err := gdb.WithContext(ctx).Raw(
		`SELECT * FROM publications WHERE id = ?`,
		id,
	).Scan(&publication).Error
	if err != nil {
		return nil, err
	}
	if publication.ID == 0 {
		return nil, nil
	}
	return &publication, nil
}

func (r *repo) FindBySlug(ctx context.Context, gdb *gorm.DB, slug string) (*publicationdomain.Publication, error) {
	var publication publicationdomain.Publication
	err := gdb.WithContext(ctx).Raw(
		`SELECT * FROM publications WHERE slug = ?`,
		slug,
	).Scan(&publication).Error
	if err != nil {
		return nil, err
	}
	if publication.ID == 0 {
		return nil, nil
	}
	return &publication, nil
}

func (r *repo) ListByOwner(ctx context.Context, gdb *gorm.DB, ownerUserID snowflake.ID) ([]publicationdomain.Publication, error) {
	var publications []publicationdomain.Publication
	err := gdb.WithContext(ctx).Raw(
		`SELECT * FROM publications WHERE owner_user_id = ? ORDER BY created_at DESC`,
		ownerUserID,
	).Scan(&publications).Error
	if err != nil {
		return nil, err
	}
	return publications, nil
}
