package controllers

import (
	"fmt"

	"github.com/syncforge/stripemirror/internal/pkg/config"
	"github.com/syncforge/stripemirror/internal/pkg/database"
	"github.com/syncforge/stripemirror/internal/pkg/stripeapi"
	"github.com/syncforge/stripemirror/internal/pkg/stripesync"
)

// syncService assembles the engine for one request from the validated
// configuration and the shared DB handle.
func syncService() (*stripesync.Service, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	db := database.GetDB()
	if db == nil {
		return nil, fmt.Errorf("database is not initialized")
	}
	client := stripeapi.NewClient(cfg.StripeSecretKey)
	return stripesync.NewServiceFromDB(db, client, cfg.SyncConfig()), nil
}
