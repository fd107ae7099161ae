package stripesync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// backfill fetches and inserts the referenced entities of one kind that are
// not yet mirrored. Fetches within a kind are sequential (the remote side is
// rate-limited); callers fan out across independent kinds. The fetched
// entities are upserted with backfill disabled, bounding resolution to one
// hop per invocation.
func (s *Service) backfill(ctx context.Context, kind ObjectKind, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	missing, err := s.store.FindMissingIDs(ctx, descriptorFor(kind).table, ids)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	entities := make([]Entity, 0, len(missing))
	for _, id := range missing {
		entity, err := s.remote.Retrieve(ctx, kind, id)
		if err != nil {
			if errors.Is(err, ErrUpstreamNotFound) {
				// The referenced object vanished upstream; the parent write
				// must not fail because of it.
				log.Warnf("skipping backfill of %s %s: %v", kind, id, err)
				continue
			}
			return fmt.Errorf("backfill %s %s: %w", kind, id, err)
		}
		entities = append(entities, entity)
	}

	// Freshly retrieved, so "now" is the authoritative logical timestamp.
	_, err = s.UpsertEntities(ctx, kind, entities, boolPtr(false), time.Now())
	return err
}
