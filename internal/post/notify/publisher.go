// Package notify emits post.published notifications onto a redis stream for
// downstream delivery workers (email fan-out lives outside this service).
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
	postdomain "github.com/lettercast/lettercast/internal/post/domain"
	publicationdomain "github.com/lettercast/lettercast/internal/publication/domain"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Stream is the redis stream carrying post.published notifications.
const Stream = "lettercast.post.published"

const maxStreamLen = 10000

type Publisher struct {
	client *redis.Client
	log    *zap.Logger
}

// NewPublisher returns a nil-client publisher when redis is not configured;
// PostPublished then logs and drops the notification.
func NewPublisher(client *redis.Client, log *zap.Logger) *Publisher {
	return &Publisher{client: client, log: log.Named("post.notify")}
}

// PostPublished is fire-and-forget: a publish must not fail because the
// notification stream is down. Failures are logged, never returned.
func (p *Publisher) PostPublished(ctx context.Context, post *postdomain.Post, publication *publicationdomain.Publication) {
	if p.client == nil {
		p.log.Debug("notification stream disabled, dropping post.published",
			zap.String("post_id", post.ID.String()),
		)
		return
	}

	err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: Stream,
		MaxLen: maxStreamLen,
		Approx: true,
		Values: map[string]interface{}{
			"notification_id":  uuid.NewString(),
			"post_id":          post.ID.String(),
			"publication_id":   publication.ID.String(),
			"publication_slug": publication.Slug,
			"title":            post.Title,
			"published_at":     post.PublishedAt.UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		p.log.Error("failed to emit post.published notification",
			zap.String("post_id", post.ID.String()),
			zap.Error(err),
		)
		return
	}

	p.log.Info("post.published notification emitted",
		zap.String("post_id", post.ID.String()),
		zap.String("publication_slug", publication.Slug),
	)
}
