package main

import (
	"context"
	"fmt"

	"zona-pedidos/config"
	"zona-pedidos/database"
	"zona-pedidos/internal/apperr"
	"zona-pedidos/internal/infra/asaas"
	"zona-pedidos/internal/infra/gateway"
	"zona-pedidos/internal/infra/identity"
	"zona-pedidos/internal/infra/stripe"
	billingsvc "zona-pedidos/internal/service/billing"
	"zona-pedidos/internal/store"

	"github.com/rs/zerolog/log"
)

type deps struct {
	cfg   *config.Config
	store *store.Store
	svc   *billingsvc.Service
}

// bootstrap opens the database and builds the billing service for every command.
func bootstrap() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	initLogging(cfg)

	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}

	st := store.New(db)
	gw, parser := buildGateway(cfg)
	svc := billingsvc.New(st, gw, parser, billingsvc.SettingsFromConfig(cfg))

	return &deps{cfg: cfg, store: st, svc: svc}, nil
}

// buildGateway picks the provider adapter. A missing API key still yields a
// working server: gateway calls fail with a config error naming the key.
func buildGateway(cfg *config.Config) (gateway.Gateway, gateway.WebhookParser) {
	switch cfg.BillingProvider {
	case config.ProviderStripe:
		parser := stripe.NewWebhookParser(cfg.Secret(config.KeyStripeWebhookSecret))
		key, err := cfg.Require(config.KeyStripeSecretKey)
		if err != nil {
			log.Warn().Err(err).Msg("stripe gateway not configured")
			return gateway.Unconfigured{Provider: stripe.ProviderName, Key: config.KeyStripeSecretKey}, parser
		}
		return stripe.New(key, cfg.StripePriceMonthly, cfg.StripePriceYearly), parser
	default:
		parser := asaas.NewWebhookParser(cfg.Secret(config.KeyAsaasWebhookToken), cfg.Location)
		key, err := cfg.Require(config.KeyAsaasAPIKey)
		if err != nil {
			log.Warn().Err(err).Msg("asaas gateway not configured")
			return gateway.Unconfigured{Provider: asaas.ProviderName, Key: config.KeyAsaasAPIKey}, parser
		}
		return asaas.New(asaas.Options{
			BaseURL:   cfg.AsaasBaseURL,
			APIKey:    key,
			RateLimit: cfg.GatewayRateLimit,
			Location:  cfg.Location,
		}), parser
	}
}

// unconfiguredVerifier rejects every token with the config error from startup.
type unconfiguredVerifier struct {
	err error
}

func (v unconfiguredVerifier) Verify(context.Context, string) (identity.Identity, error) {
	return identity.Identity{}, v.err
}

func buildVerifier(ctx context.Context, cfg *config.Config) (identity.Verifier, error) {
	v, err := identity.NewVerifier(ctx, cfg)
	if err == nil {
		return v, nil
	}
	if apperr.KindOf(err) == apperr.KindConfig {
		log.Warn().Err(err).Msg("token verification not configured")
		return unconfiguredVerifier{err: err}, nil
	}
	return nil, fmt.Errorf("init token verifier: %w", err)
}
