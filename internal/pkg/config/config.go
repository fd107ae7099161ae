package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/syncforge/stripemirror/internal/pkg/env"
	"github.com/syncforge/stripemirror/internal/pkg/stripesync"
)

// Config is the full runtime configuration, assembled from the environment
// and validated before anything connects.
type Config struct {
	DatabaseURL         string `validate:"required"`
	StripeSecretKey     string `validate:"required"`
	StripeWebhookSecret string `validate:"required"`

	// TablePrefix is prepended to every mirror table name. A missing
	// trailing underscore is added automatically.
	TablePrefix string

	AutoExpandLists         bool
	BackfillRelatedEntities bool

	// RevalidateObjects lists object kinds whose webhook payloads are
	// replaced by a live refetch before being applied.
	RevalidateObjects []string `validate:"dive,oneof=customer product price plan subscription subscription_item subscription_schedule invoice charge payment_intent payment_method setup_intent dispute refund tax_id credit_note checkout_session checkout_session_line_item early_fraud_warning review feature active_entitlement"`

	Port         string
	MaxOpenConns int `validate:"gte=0"`
}

// FromEnv builds and validates the configuration from the process
// environment (and a loaded .env file, when present).
func FromEnv() (*Config, error) {
	cfg := &Config{
		DatabaseURL:             env.GetEnv("DATABASE_URL", ""),
		StripeSecretKey:         env.GetEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:     env.GetEnv("STRIPE_WEBHOOK_SECRET", ""),
		TablePrefix:             env.GetEnv("TABLE_PREFIX", "stripe_"),
		AutoExpandLists:         env.GetBool("AUTO_EXPAND_LISTS", true),
		BackfillRelatedEntities: env.GetBool("BACKFILL_RELATED_ENTITIES", true),
		RevalidateObjects:       env.GetList("REVALIDATE_ENTITY_VIA_STRIPE_API"),
		Port:                    env.GetEnv("PORT", "8080"),
		MaxOpenConns:            env.GetInt("DATABASE_MAX_OPEN_CONNS", 10),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// SyncConfig maps the runtime configuration onto the engine's own config.
func (c *Config) SyncConfig() stripesync.Config {
	revalidate := make([]stripesync.ObjectKind, 0, len(c.RevalidateObjects))
	for _, o := range c.RevalidateObjects {
		revalidate = append(revalidate, stripesync.ObjectKind(o))
	}
	return stripesync.Config{
		WebhookSecret:           c.StripeWebhookSecret,
		TablePrefix:             c.TablePrefix,
		AutoExpandLists:         c.AutoExpandLists,
		BackfillRelatedEntities: c.BackfillRelatedEntities,
		RevalidateObjects:       revalidate,
	}
}
