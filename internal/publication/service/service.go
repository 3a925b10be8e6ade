package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	publicationdomain "github.com/lettercast/lettercast/internal/publication/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  publicationdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  publicationdomain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("publication"),
		genID: p.GenID,
		repo:  p.Repo,
	}
}

type CreateInput struct {
	OwnerUserID snowflake.ID
	Name        string
	Description string
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*publicationdomain.Publication, error) {
	now := time.Now().UTC()
	publication := &publicationdomain.Publication{
		ID:          s.genID.Generate(),
		OwnerUserID: input.OwnerUserID,
		Name:        strings.TrimSpace(input.Name),
		Slug:        slug.Make(input.Name),
		Description: strings.TrimSpace(input.Description),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(ctx, s.db, publication); err != nil {
		return nil, err
	}

	s.log.Info("publication created",
		zap.String("publication_id", publication.ID.String()),
		zap.String("slug", publication.Slug),
	)
	return publication, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*publicationdomain.Publication, error) {
	publication, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if publication == nil {
		return nil, publicationdomain.ErrPublicationNotFound
	}
	return publication, nil
}

func (s *Service) GetBySlug(ctx context.Context, rawSlug string) (*publicationdomain.Publication, error) {
	publication, err := s.repo.FindBySlug(ctx, s.db, strings.TrimSpace(rawSlug))
	if err != nil {
		return nil, err
	}
	if publication == nil {
		return nil, publicationdomain.ErrPublicationNotFound
	}
	return publication, nil
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID snowflake.ID) ([]publicationdomain.Publication, error) {
	return s.repo.ListByOwner(ctx, s.db, ownerUserID)
}
