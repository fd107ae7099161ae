package stripesync

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"
)

// UpsertEntities writes a batch of one kind through the timestamp-guarded
// upsert path, resolving references and kind-specific side effects
// (sub-collection rows, set reconciliation) on the way. backfill overrides
// the configured default when non-nil. syncedAt is the logical timestamp the
// caller derived from context; the protocol never invents one.
func (s *Service) UpsertEntities(ctx context.Context, kind ObjectKind, entities []Entity, backfill *bool, syncedAt time.Time) (int, error) {
	switch kind {
	case KindCustomer:
		return s.upsertCustomers(ctx, entities, syncedAt)
	case KindSubscription:
		return s.upsertSubscriptions(ctx, entities, backfill, syncedAt)
	case KindCheckoutSession:
		return s.upsertCheckoutSessions(ctx, entities, backfill, syncedAt)
	default:
		return s.upsertPlain(ctx, kind, entities, backfill, syncedAt)
	}
}

// upsertPlain is the generic path: backfill references, expand truncated
// sub-lists, normalize, write.
func (s *Service) upsertPlain(ctx context.Context, kind ObjectKind, entities []Entity, backfill *bool, syncedAt time.Time) (int, error) {
	if len(entities) == 0 {
		return 0, nil
	}
	desc := descriptorFor(kind)

	if s.shouldBackfill(backfill) && len(desc.references) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		for _, ref := range desc.references {
			ref := ref
			g.Go(func() error {
				return s.backfill(gctx, ref.kind, uniqueRefIDs(entities, ref.field))
			})
		}
		if err := g.Wait(); err != nil {
			return 0, err
		}
	}

	for _, field := range desc.expand {
		if err := s.expandLists(ctx, kind, entities, field); err != nil {
			return 0, err
		}
	}

	rows := entities
	if desc.prepare != nil {
		rows = make([]Entity, len(entities))
		for i, e := range entities {
			rows[i] = desc.prepare(e)
		}
	}

	return s.store.UpsertMany(ctx, desc.table, rows, desc.columns, syncedAt)
}

// expandLists completes a truncated paginated sub-list attribute in place so
// the stored JSON column holds the full collection.
func (s *Service) expandLists(ctx context.Context, kind ObjectKind, entities []Entity, field string) error {
	if !s.cfg.AutoExpandLists {
		return nil
	}

	for _, e := range entities {
		id := e.ID()
		if id == "" {
			continue
		}
		list, ok := e[field].(map[string]any)
		if !ok {
			continue
		}
		if hasMore, _ := list["has_more"].(bool); !hasMore {
			continue
		}

		children, err := drainIterator(s.remote.ListChildren(ctx, kind, field, id))
		if err != nil {
			return fmt.Errorf("expand %s.%s for %s: %w", kind, field, id, err)
		}
		data := make([]any, len(children))
		for i, child := range children {
			data[i] = map[string]any(child)
		}

		expanded := make(map[string]any, len(list))
		for k, v := range list {
			expanded[k] = v
		}
		expanded["data"] = data
		expanded["has_more"] = false
		e[field] = expanded
	}
	return nil
}

// upsertCustomers splits tombstoned customers from live ones: a deletion
// marker carries only identity and the deleted flag, and must not null the
// retained business columns.
func (s *Service) upsertCustomers(ctx context.Context, customers []Entity, syncedAt time.Time) (int, error) {
	if len(customers) == 0 {
		return 0, nil
	}

	var live, deleted []Entity
	for _, c := range customers {
		if isDeleted, _ := c["deleted"].(bool); isDeleted {
			deleted = append(deleted, c)
		} else {
			live = append(live, c)
		}
	}

	applied, err := s.store.UpsertMany(ctx, TableCustomers, live, customerColumns, syncedAt)
	if err != nil {
		return applied, err
	}
	n, err := s.store.UpsertMany(ctx, TableCustomers, deleted, deletedCustomerColumns, syncedAt)
	return applied + n, err
}

// upsertSubscriptions writes the subscriptions, then their item rows, then
// reconciles each subscription's stored items against its authoritative
// current set.
func (s *Service) upsertSubscriptions(ctx context.Context, subscriptions []Entity, backfill *bool, syncedAt time.Time) (int, error) {
	if len(subscriptions) == 0 {
		return 0, nil
	}

	applied, err := s.upsertPlain(ctx, KindSubscription, subscriptions, backfill, syncedAt)
	if err != nil {
		return applied, err
	}

	var items []Entity
	for _, sub := range subscriptions {
		items = append(items, subListData(sub, "items")...)
	}
	if _, err := s.upsertPlain(ctx, KindSubscriptionItem, items, boolPtr(false), syncedAt); err != nil {
		return applied, err
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, sub := range subscriptions {
		sub := sub
		g.Go(func() error {
			keep := make([]string, 0)
			for _, item := range subListData(sub, "items") {
				if id := item.ID(); id != "" {
					keep = append(keep, id)
				}
			}
			_, err := s.store.MarkAbsentChildrenDeleted(gctx, TableSubscriptionItems, "subscription", sub.ID(), keep)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return applied, err
	}

	return applied, nil
}

// upsertCheckoutSessions stores the sessions and then resolves and stores
// each session's line items, which in turn backfill their referenced price.
func (s *Service) upsertCheckoutSessions(ctx context.Context, sessions []Entity, backfill *bool, syncedAt time.Time) (int, error) {
	if len(sessions) == 0 {
		return 0, nil
	}

	applied, err := s.upsertPlain(ctx, KindCheckoutSession, sessions, backfill, syncedAt)
	if err != nil {
		return applied, err
	}

	for _, cs := range sessions {
		if err := s.fillCheckoutSessionLineItems(ctx, cs.ID(), syncedAt); err != nil {
			return applied, err
		}
	}
	return applied, nil
}

func (s *Service) fillCheckoutSessionLineItems(ctx context.Context, sessionID string, syncedAt time.Time) error {
	if sessionID == "" {
		return nil
	}
	lineItems, err := drainIterator(s.remote.List(ctx, KindCheckoutSessionLineItem, ListParams{Parent: sessionID}))
	if err != nil {
		return fmt.Errorf("list line items for %s: %w", sessionID, err)
	}
	return s.upsertCheckoutSessionLineItems(ctx, lineItems, sessionID, syncedAt)
}

func (s *Service) upsertCheckoutSessionLineItems(ctx context.Context, lineItems []Entity, sessionID string, syncedAt time.Time) error {
	if err := s.backfill(ctx, KindPrice, uniqueRefIDs(lineItems, "price")); err != nil {
		return err
	}

	rows := make([]Entity, len(lineItems))
	for i, item := range lineItems {
		row := item.Clone()
		row["price"] = item.RefID("price")
		row["checkout_session"] = sessionID
		rows[i] = row
	}

	_, err := s.store.UpsertMany(ctx, TableCheckoutSessionLineItems, rows, checkoutSessionLineItemColumns, syncedAt)
	return err
}

// UpsertActiveEntitlements stores a customer's active entitlement set. The
// customer is injected into each row since the summary owns the association.
func (s *Service) UpsertActiveEntitlements(ctx context.Context, customerID string, entitlements []Entity, backfill *bool, syncedAt time.Time) (int, error) {
	if s.shouldBackfill(backfill) {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return s.backfill(gctx, KindCustomer, []string{customerID})
		})
		g.Go(func() error {
			return s.backfill(gctx, KindFeature, uniqueRefIDs(entitlements, "feature"))
		})
		if err := g.Wait(); err != nil {
			return 0, err
		}
	}

	rows := make([]Entity, len(entitlements))
	for i, ent := range entitlements {
		rows[i] = Entity{
			"id":         ent.ID(),
			"object":     ent["object"],
			"feature":    ent.RefID("feature"),
			"customer":   customerID,
			"livemode":   ent["livemode"],
			"lookup_key": ent["lookup_key"],
		}
	}

	return s.store.UpsertMany(ctx, TableActiveEntitlements, rows, activeEntitlementColumns, syncedAt)
}

// DeleteRemovedActiveEntitlements drops stored entitlements of one customer
// that are absent from the authoritative current set.
func (s *Service) DeleteRemovedActiveEntitlements(ctx context.Context, customerID string, currentIDs []string) (int64, error) {
	removed, err := s.store.DeleteAbsentChildren(ctx, TableActiveEntitlements, "customer", customerID, currentIDs)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		log.Infof("removed %d stale active entitlements for customer %s", removed, customerID)
	}
	return removed, nil
}
