package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	postdomain "github.com/lettercast/lettercast/internal/post/domain"
	"github.com/lettercast/lettercast/internal/post/notify"
	postrepository "github.com/lettercast/lettercast/internal/post/repository"
	publicationdomain "github.com/lettercast/lettercast/internal/publication/domain"
	publicationrepository "github.com/lettercast/lettercast/internal/publication/repository"
	publicationservice "github.com/lettercast/lettercast/internal/publication/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *publicationservice.Service) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&publicationdomain.Publication{},
		&postdomain.Post{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()

	pubSvc := publicationservice.NewService(publicationservice.Params{
		DB:    db,
		Log:   log,
		GenID: node,
		Repo:  publicationrepository.Provide(),
	})

	postSvc := NewService(Params{
		DB:        db,
		Log:       log,
		GenID:     node,
		Repo:      postrepository.Provide(),
		Pubs:      publicationrepository.Provide(),
		Publisher: notify.NewPublisher(nil, log),
	})
	return postSvc, pubSvc
}

func TestCreateAndPublishPost(t *testing.T) {
	postSvc, pubSvc := newTestService(t)
	ctx := context.Background()

	node, _ := snowflake.NewNode(2)
	ownerID := node.Generate()

	publication, err := pubSvc.Create(ctx, publicationservice.CreateInput{
		OwnerUserID: ownerID,
		Name:        "Daily Dispatch",
	})
	require.NoError(t, err)

	post, err := postSvc.Create(ctx, CreateInput{
		PublicationID: publication.ID,
		AuthorUserID:  ownerID,
		Title:         "Issue #1",
		Body:          "Welcome to the first issue.",
	})
	require.NoError(t, err)
	assert.Equal(t, postdomain.StatusDraft, post.Status)
	assert.Nil(t, post.PublishedAt)

	published, err := postSvc.Publish(ctx, post.ID, ownerID)
	require.NoError(t, err)
	assert.Equal(t, postdomain.StatusPublished, published.Status)
	require.NotNil(t, published.PublishedAt)

	// Publishing twice is a conflict.
	_, err = postSvc.Publish(ctx, post.ID, ownerID)
	assert.ErrorIs(t, err, postdomain.ErrAlreadyPublished)
}

func TestCreateRejectsNonOwner(t *testing.T) {
	postSvc, pubSvc := newTestService(t)
	ctx := context.Background()

	node, _ := snowflake.NewNode(2)
	ownerID, strangerID := node.Generate(), node.Generate()

	publication, err := pubSvc.Create(ctx, publicationservice.CreateInput{
		OwnerUserID: ownerID,
		Name:        "Daily Dispatch",
	})
	require.NoError(t, err)

	_, err = postSvc.Create(ctx, CreateInput{
		PublicationID: publication.ID,
		AuthorUserID:  strangerID,
		Title:         "Hijack",
	})
	assert.ErrorIs(t, err, postdomain.ErrNotAuthor)
}

func TestListByPublicationHidesDraftsFromReaders(t *testing.T) {
	postSvc, pubSvc := newTestService(t)
	ctx := context.Background()

	node, _ := snowflake.NewNode(2)
	ownerID, readerID := node.Generate(), node.Generate()

	publication, err := pubSvc.Create(ctx, publicationservice.CreateInput{
		OwnerUserID: ownerID,
		Name:        "Daily Dispatch",
	})
	require.NoError(t, err)

	_, err = postSvc.Create(ctx, CreateInput{
		PublicationID: publication.ID,
		AuthorUserID:  ownerID,
		Title:         "Draft issue",
	})
	require.NoError(t, err)

	published, err := postSvc.Create(ctx, CreateInput{
		PublicationID: publication.ID,
		AuthorUserID:  ownerID,
		Title:         "Published issue",
	})
	require.NoError(t, err)
	_, err = postSvc.Publish(ctx, published.ID, ownerID)
	require.NoError(t, err)

	readerPosts, err := postSvc.ListByPublication(ctx, publication.ID, readerID)
	require.NoError(t, err)
	require.Len(t, readerPosts, 1)
	assert.Equal(t, published.ID, readerPosts[0].ID)

	ownerPosts, err := postSvc.ListByPublication(ctx, publication.ID, ownerID)
	require.NoError(t, err)
	assert.Len(t, ownerPosts, 2)
}
