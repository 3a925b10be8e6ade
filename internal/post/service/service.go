package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	postdomain "github.com/lettercast/lettercast/internal/post/domain"
	"github.com/lettercast/lettercast/internal/post/notify"
	publicationdomain "github.com/lettercast/lettercast/internal/publication/domain"
	"github.com/lettercast/lettercast/internal/ratelimit"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      postdomain.Repository
	Pubs      publicationdomain.Repository
	Publisher *notify.Publisher
	Locker    *ratelimit.Locker `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	repo      postdomain.Repository
	pubs      publicationdomain.Repository
	publisher *notify.Publisher
	locker    *ratelimit.Locker
}

func NewService(p Params) *Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("post"),
		genID:     p.GenID,
		repo:      p.Repo,
		pubs:      p.Pubs,
		publisher: p.Publisher,
		locker:    p.Locker,
	}
}

type CreateInput struct {
	PublicationID snowflake.ID
	AuthorUserID  snowflake.ID
	Title         string
	Body          string
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*postdomain.Post, error) {
	publication, err := s.pubs.FindByID(ctx, s.db, input.PublicationID)
	if err != nil {
		return nil, err
	}
	if publication == nil {
		return nil, publicationdomain.ErrPublicationNotFound
	}
	if publication.OwnerUserID != input.AuthorUserID {
		return nil, postdomain.ErrNotAuthor
	}

	now := time.Now().UTC()
	post := &postdomain.Post{
		ID:            s.genID.Generate(),
		PublicationID: input.PublicationID,
		AuthorUserID:  input.AuthorUserID,
		Title:         strings.TrimSpace(input.Title),
		Body:          input.Body,
		Status:        postdomain.StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Insert(ctx, s.db, post); err != nil {
		return nil, err
	}
	return post, nil
}

// Publish transitions a draft to published and emits the notification. The
// redis lock and the draft-only UPDATE together keep concurrent publishes of
// the same post from notifying twice.
func (s *Service) Publish(ctx context.Context, postID, actorUserID snowflake.ID) (*postdomain.Post, error) {
	post, err := s.repo.FindByID(ctx, s.db, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, postdomain.ErrPostNotFound
	}
	if post.AuthorUserID != actorUserID {
		return nil, postdomain.ErrNotAuthor
	}
	if post.Status == postdomain.StatusPublished {
		return nil, postdomain.ErrAlreadyPublished
	}

	lockKey := "lettercast:post:publish:" + postID.String()
	token, acquired, err := s.locker.TryLock(ctx, lockKey, 10*time.Second)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, postdomain.ErrAlreadyPublished
	}
	defer func() {
		if err := s.locker.Release(ctx, lockKey, token); err != nil {
			s.log.Warn("failed to release publish lock", zap.String("post_id", postID.String()), zap.Error(err))
		}
	}()

	publishedAt := time.Now().UTC()
	rows, err := s.repo.MarkPublished(ctx, s.db, postID, publishedAt)
	if err != nil {
		return nil, err
	}
	if rows == 0 {
		return nil, postdomain.ErrAlreadyPublished
	}

	post.Status = postdomain.StatusPublished
	post.PublishedAt = &publishedAt
	post.UpdatedAt = publishedAt

	publication, err := s.pubs.FindByID(ctx, s.db, post.PublicationID)
	if err == nil && publication != nil {
		s.publisher.PostPublished(ctx, post, publication)
	}

	s.log.Info("post published",
		zap.String("post_id", post.ID.String()),
		zap.String("publication_id", post.PublicationID.String()),
	)
	return post, nil
}

func (s *Service) ListByPublication(ctx context.Context, publicationID, viewerUserID snowflake.ID) ([]postdomain.Post, error) {
	publication, err := s.pubs.FindByID(ctx, s.db, publicationID)
	if err != nil {
		return nil, err
	}
	if publication == nil {
		return nil, publicationdomain.ErrPublicationNotFound
	}
	includeDrafts := publication.OwnerUserID == viewerUserID
	return s.repo.ListByPublication(ctx, s.db, publicationID, includeDrafts)
}
