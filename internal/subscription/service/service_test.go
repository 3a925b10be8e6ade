package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	billingdomain "github.com/lettercast/lettercast/internal/billing/domain"
	publicationdomain "github.com/lettercast/lettercast/internal/publication/domain"
	publicationrepository "github.com/lettercast/lettercast/internal/publication/repository"
	subscriptiondomain "github.com/lettercast/lettercast/internal/subscription/domain"
	subscriptionrepository "github.com/lettercast/lettercast/internal/subscription/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, *snowflake.Node) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&publicationdomain.Publication{},
		&subscriptiondomain.Record{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Params{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Repo:  subscriptionrepository.Provide(),
		Pubs:  publicationrepository.Provide(),
	})
	return svc, db, node
}

func seedPublication(t *testing.T, db *gorm.DB, node *snowflake.Node, ownerID snowflake.ID) *publicationdomain.Publication {
	t.Helper()
	now := time.Now().UTC()
	publication := &publicationdomain.Publication{
		ID:          node.Generate(),
		OwnerUserID: ownerID,
		Name:        "Daily Dispatch",
		Slug:        "daily-dispatch",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	require.NoError(t, publicationrepository.Provide().Insert(context.Background(), db, publication))
	return publication
}

func TestSubscribeFreeCreatesActiveFreeRecord(t *testing.T) {
	svc, db, node := newTestService(t)
	ownerID, userID := node.Generate(), node.Generate()
	publication := seedPublication(t, db, node, ownerID)

	record, err := svc.SubscribeFree(context.Background(), userID, publication.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, subscriptiondomain.TierFree, record.Tier)
	assert.Equal(t, subscriptiondomain.StatusActive, record.Status)
	assert.Nil(t, record.LastEventAt)

	// Subscribing again is a no-op, not an error.
	again, err := svc.SubscribeFree(context.Background(), userID, publication.ID)
	require.NoError(t, err)
	require.NotNil(t, again)

	records, err := svc.ListForUser(context.Background(), userID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestSubscribeFreeRejectsOwner(t *testing.T) {
	svc, db, node := newTestService(t)
	ownerID := node.Generate()
	publication := seedPublication(t, db, node, ownerID)

	_, err := svc.SubscribeFree(context.Background(), ownerID, publication.ID)
	assert.ErrorIs(t, err, billingdomain.ErrOwnerCheckout)
}

func TestSubscribeFreeDoesNotDowngradePaidRecord(t *testing.T) {
	svc, db, node := newTestService(t)
	ownerID, userID := node.Generate(), node.Generate()
	publication := seedPublication(t, db, node, ownerID)

	subID := "sub_1"
	eventAt := time.Now().UTC().Truncate(time.Second)
	now := time.Now().UTC()
	paid := &subscriptiondomain.Record{
		ID:                    node.Generate(),
		UserID:                userID,
		PublicationID:         publication.ID,
		Tier:                  subscriptiondomain.TierPaid,
		Status:                subscriptiondomain.StatusActive,
		BillingSubscriptionID: &subID,
		LastEventAt:           &eventAt,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	_, err := subscriptionrepository.Provide().Upsert(context.Background(), db, paid)
	require.NoError(t, err)

	record, err := svc.SubscribeFree(context.Background(), userID, publication.ID)
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, subscriptiondomain.TierPaid, record.Tier)
}

func TestBillingCustomerIDRequiresBillingRelation(t *testing.T) {
	svc, db, node := newTestService(t)
	ownerID, userID := node.Generate(), node.Generate()
	publication := seedPublication(t, db, node, ownerID)

	_, err := svc.SubscribeFree(context.Background(), userID, publication.ID)
	require.NoError(t, err)

	_, err = svc.BillingCustomerID(context.Background(), userID)
	assert.ErrorIs(t, err, billingdomain.ErrNoBillingRelation)
}

func TestHasActivePaid(t *testing.T) {
	svc, db, node := newTestService(t)
	ownerID, userID := node.Generate(), node.Generate()
	publication := seedPublication(t, db, node, ownerID)

	paid, err := svc.HasActivePaid(context.Background(), userID, publication.ID)
	require.NoError(t, err)
	assert.False(t, paid)

	subID := "sub_1"
	customerID := "cus_1"
	eventAt := time.Now().UTC().Truncate(time.Second)
	now := time.Now().UTC()
	_, err = subscriptionrepository.Provide().Upsert(context.Background(), db, &subscriptiondomain.Record{
		ID:                    node.Generate(),
		UserID:                userID,
		PublicationID:         publication.ID,
		Tier:                  subscriptiondomain.TierPaid,
		Status:                subscriptiondomain.StatusActive,
		BillingCustomerID:     &customerID,
		BillingSubscriptionID: &subID,
		LastEventAt:           &eventAt,
		CreatedAt:             now,
		UpdatedAt:             now,
	})
	require.NoError(t, err)

	paid, err = svc.HasActivePaid(context.Background(), userID, publication.ID)
	require.NoError(t, err)
	assert.True(t, paid)

	resolved, err := svc.BillingCustomerID(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, "cus_1", resolved)
}
