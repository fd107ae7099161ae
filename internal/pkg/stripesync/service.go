package stripesync

import (
	"gorm.io/gorm"
)

// Config carries the engine's behavior switches, resolved once at
// construction. Per-call overrides are layered on top as optional parameters.
type Config struct {
	// WebhookSecret signs inbound webhook payloads.
	WebhookSecret string
	// TablePrefix namespaces the mirror tables ("billing" and "billing_"
	// are equivalent).
	TablePrefix string
	// AutoExpandLists completes truncated paginated sub-lists (subscription
	// items, charge refunds, invoice lines) via the API before storage.
	AutoExpandLists bool
	// BackfillRelatedEntities is the default for resolving referenced
	// entities that are not yet mirrored.
	BackfillRelatedEntities bool
	// RevalidateObjects lists kinds whose webhook payloads are replaced by a
	// live API fetch before storage, unless the payload is already terminal.
	RevalidateObjects []ObjectKind
}

// Service is the synchronization consistency engine: it owns the upsert
// protocol, the backfill resolver, the bulk sync driver and the webhook
// reconciler. It holds no entity state between calls; the Store is consulted
// fresh on every operation.
type Service struct {
	cfg    Config
	store  Store
	remote RemoteClient
}

// NewService creates an engine from an injected store and remote client.
func NewService(cfg Config, store Store, remote RemoteClient) *Service {
	return &Service{cfg: cfg, store: store, remote: remote}
}

// NewServiceFromDB creates an engine from a GORM DB handle.
func NewServiceFromDB(db *gorm.DB, remote RemoteClient, cfg Config) *Service {
	return NewService(cfg, NewGormStore(db, cfg.TablePrefix), remote)
}

// shouldBackfill resolves a per-call override against the configured default.
func (s *Service) shouldBackfill(override *bool) bool {
	if override != nil {
		return *override
	}
	return s.cfg.BackfillRelatedEntities
}

func (s *Service) shouldRevalidate(kind ObjectKind) bool {
	for _, k := range s.cfg.RevalidateObjects {
		if k == kind {
			return true
		}
	}
	return false
}

func boolPtr(v bool) *bool { return &v }
