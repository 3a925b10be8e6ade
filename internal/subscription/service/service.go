package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/lettercast/lettercast/internal/billing/domain"
	publicationdomain "github.com/lettercast/lettercast/internal/publication/domain"
	subscriptiondomain "github.com/lettercast/lettercast/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  subscriptiondomain.Repository
	Pubs  publicationdomain.Repository
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  subscriptiondomain.Repository
	pubs  publicationdomain.Repository
}

func NewService(p Params) *Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("subscription"),
		genID: p.GenID,
		repo:  p.Repo,
		pubs:  p.Pubs,
	}
}

// SubscribeFree creates or refreshes the free relationship. The record
// carries no provider event timestamp, so the upsert guard keeps it from
// downgrading an existing paid record.
func (s *Service) SubscribeFree(ctx context.Context, userID, publicationID snowflake.ID) (*subscriptiondomain.Record, error) {
	publication, err := s.pubs.FindByID(ctx, s.db, publicationID)
	if err != nil {
		return nil, err
	}
	if publication == nil {
		return nil, publicationdomain.ErrPublicationNotFound
	}
	if publication.OwnerUserID == userID {
		return nil, billingdomain.ErrOwnerCheckout
	}

	now := time.Now().UTC()
	record := &subscriptiondomain.Record{
		ID:            s.genID.Generate(),
		UserID:        userID,
		PublicationID: publicationID,
		Tier:          subscriptiondomain.TierFree,
		Status:        subscriptiondomain.StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if _, err := s.repo.Upsert(ctx, s.db, record); err != nil {
		return nil, err
	}

	return s.Get(ctx, userID, publicationID)
}

func (s *Service) Get(ctx context.Context, userID, publicationID snowflake.ID) (*subscriptiondomain.Record, error) {
	return s.repo.FindByUserAndPublication(ctx, s.db, userID, publicationID)
}

func (s *Service) ListForUser(ctx context.Context, userID snowflake.ID) ([]subscriptiondomain.Record, error) {
	return s.repo.ListByUser(ctx, s.db, userID)
}

// BillingCustomerID resolves the provider customer for portal access. The
// user must have at least one record with a billing relation.
func (s *Service) BillingCustomerID(ctx context.Context, userID snowflake.ID) (string, error) {
	records, err := s.repo.ListByUser(ctx, s.db, userID)
	if err != nil {
		return "", err
	}
	for _, record := range records {
		if record.BillingCustomerID != nil && *record.BillingCustomerID != "" {
			return *record.BillingCustomerID, nil
		}
	}
	return "", billingdomain.ErrNoBillingRelation
}

// HasActivePaid reports whether the user already holds an active paid
// subscription to the publication; used to reject redundant checkouts.
func (s *Service) HasActivePaid(ctx context.Context, userID, publicationID snowflake.ID) (bool, error) {
	record, err := s.repo.FindByUserAndPublication(ctx, s.db, userID, publicationID)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	return record.Tier == subscriptiondomain.TierPaid && record.Status == subscriptiondomain.StatusActive, nil
}
