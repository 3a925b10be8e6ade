package billing

import (
	"github.com/lettercast/lettercast/internal/billing/checkout"
	billingdomain "github.com/lettercast/lettercast/internal/billing/domain"
	"github.com/lettercast/lettercast/internal/billing/gateway"
	"github.com/lettercast/lettercast/internal/billing/reconcile"
	"github.com/lettercast/lettercast/internal/billing/repository"
	"github.com/lettercast/lettercast/internal/billing/webhook"
	"github.com/lettercast/lettercast/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func provideVerifier(cfg config.Config) *webhook.Verifier {
	return webhook.NewVerifier(cfg.StripeWebhookSecret)
}

// provideGateway returns a nil Gateway when billing is not configured;
// consumers degrade to "not configured" errors instead of failing startup.
func provideGateway(cfg config.Config, log *zap.Logger) billingdomain.Gateway {
	if !cfg.BillingEnabled() {
		log.Warn("billing gateway disabled, no provider secret configured")
		return nil
	}
	return gateway.NewClient(cfg.StripeSecretKey, log)
}

var Module = fx.Module("billing",
	fx.Provide(provideVerifier),
	fx.Provide(provideGateway),
	fx.Provide(repository.Provide),
	fx.Provide(reconcile.NewEngine),
	fx.Provide(checkout.NewInitiator),
)
