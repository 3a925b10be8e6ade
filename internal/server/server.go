// Package server wires the HTTP surface: public publication reads, the
// authenticated reader and writer APIs, and the billing webhook endpoint.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/lettercast/lettercast/internal/billing/checkout"
	billingdomain "github.com/lettercast/lettercast/internal/billing/domain"
	"github.com/lettercast/lettercast/internal/billing/reconcile"
	"github.com/lettercast/lettercast/internal/billing/webhook"
	"github.com/lettercast/lettercast/internal/config"
	"github.com/lettercast/lettercast/internal/observability"
	postservice "github.com/lettercast/lettercast/internal/post/service"
	publicationservice "github.com/lettercast/lettercast/internal/publication/service"
	"github.com/lettercast/lettercast/internal/ratelimit"
	subscriptionservice "github.com/lettercast/lettercast/internal/subscription/service"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.ListenAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	db              *gorm.DB
	log             *zap.Logger
	genID           *snowflake.Node
	pricing         *config.PricingHolder
	verifier        *webhook.Verifier
	reconciler      *reconcile.Engine
	initiator       *checkout.Initiator
	gateway         billingdomain.Gateway
	publicationSvc  *publicationservice.Service
	subscriptionSvc *subscriptionservice.Service
	postSvc         *postservice.Service
	checkoutLimiter *ratelimit.TokenBucket
	metrics         *observability.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	Log             *zap.Logger
	GenID           *snowflake.Node
	Pricing         *config.PricingHolder
	Verifier        *webhook.Verifier `optional:"true"`
	Reconciler      *reconcile.Engine
	Initiator       *checkout.Initiator
	Gateway         billingdomain.Gateway `optional:"true"`
	PublicationSvc  *publicationservice.Service
	SubscriptionSvc *subscriptionservice.Service
	PostSvc         *postservice.Service
	CheckoutLimiter *ratelimit.TokenBucket `optional:"true"`
	Metrics         *observability.Metrics `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		log:             p.Log.Named("server"),
		genID:           p.GenID,
		pricing:         p.Pricing,
		verifier:        p.Verifier,
		reconciler:      p.Reconciler,
		initiator:       p.Initiator,
		gateway:         p.Gateway,
		publicationSvc:  p.PublicationSvc,
		subscriptionSvc: p.SubscriptionSvc,
		postSvc:         p.PostSvc,
		checkoutLimiter: p.CheckoutLimiter,
		metrics:         p.Metrics,
	}

	svc.registerBillingRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerBillingRoutes() {
	billing := s.engine.Group("/api/billing")

	billing.POST("/webhooks/stripe", s.HandleStripeWebhook)
	billing.POST("/portal", s.UserRequired(), s.CreatePortalSession)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api")

	api.GET("/publications/:id", s.GetPublicationBySlug)

	api.POST("/publications", s.UserRequired(), s.CreatePublication)
	api.GET("/me/publications", s.UserRequired(), s.ListOwnPublications)
	api.GET("/me/subscriptions", s.UserRequired(), s.ListOwnSubscriptions)

	api.POST("/publications/:id/subscribe", s.UserRequired(), s.SubscribeFree)
	api.POST("/publications/:id/checkout", s.UserRequired(), s.CheckoutRateLimit(), s.StartCheckout)

	api.POST("/publications/:id/posts", s.UserRequired(), s.CreatePost)
	api.GET("/publications/:id/posts", s.ListPosts)
	api.POST("/posts/:id/publish", s.UserRequired(), s.PublishPost)
}
