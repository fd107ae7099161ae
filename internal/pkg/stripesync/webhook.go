package stripesync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// Event is an inbound Stripe webhook notification.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

// EventData wraps the event's embedded object payload.
type EventData struct {
	Object Entity `json:"object"`
}

// VerifyWebhook checks the signature and decodes the event without applying
// it. Exposed so callers can audit events before processing.
func (s *Service) VerifyWebhook(payload []byte, signature string) (Event, error) {
	if err := VerifyWebhookSignature(payload, signature, s.cfg.WebhookSecret, DefaultSignatureTolerance, time.Now()); err != nil {
		return Event{}, err
	}
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("decode webhook event: %w", err)
	}
	return event, nil
}

// ProcessWebhook verifies an inbound notification and applies it to the
// mirror. The whole path is idempotent, so at-least-once redelivery by the
// transport is safe.
func (s *Service) ProcessWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.VerifyWebhook(payload, signature)
	if err != nil {
		return err
	}
	return s.ProcessEvent(ctx, event)
}

// reconcileEntity decides whether the embedded payload is authoritative or
// must be replaced by a live fetch, and reports which one was used.
func (s *Service) reconcileEntity(ctx context.Context, event Event, kind ObjectKind) (Entity, bool, error) {
	entity := event.Data.Object
	if entity.ID() == "" {
		return entity, false, nil
	}

	// A terminal payload wins over the revalidate flag: an object that can
	// never change again is never refetched. This precedence is intentional.
	desc := descriptorFor(kind)
	if desc.finalState != nil && desc.finalState(entity) {
		return entity, false, nil
	}

	if !s.shouldRevalidate(kind) {
		return entity, false, nil
	}

	fresh, err := s.remote.Retrieve(ctx, kind, entity.ID())
	if err != nil {
		return nil, false, err
	}
	return fresh, true, nil
}

// eventSyncTime selects the logical timestamp: the freshest possible signal
// for refetched objects, the event's own creation time for trusted payloads
// so a replayed older event cannot clobber a newer state already applied.
func eventSyncTime(event Event, refetched bool) time.Time {
	if refetched {
		return time.Now()
	}
	return time.Unix(event.Created, 0)
}

func (s *Service) applyEntityEvent(ctx context.Context, event Event, kind ObjectKind) error {
	entity, refetched, err := s.reconcileEntity(ctx, event, kind)
	if err != nil {
		return err
	}

	log.Infof("received webhook %s: %s for %s %s", event.ID, event.Type, kind, entity.ID())

	_, err = s.UpsertEntities(ctx, kind, []Entity{entity}, boolPtr(false), eventSyncTime(event, refetched))
	return err
}

// applyCatalogEvent handles product/price/plan create-update events, where a
// revalidating refetch may discover the object was deleted in the meantime;
// the mirror row is tombstoned instead of failing the event.
func (s *Service) applyCatalogEvent(ctx context.Context, event Event, kind ObjectKind) error {
	entity, refetched, err := s.reconcileEntity(ctx, event, kind)
	if err != nil {
		if errors.Is(err, ErrUpstreamNotFound) {
			return s.applyTombstone(ctx, event, kind)
		}
		return err
	}

	log.Infof("received webhook %s: %s for %s %s", event.ID, event.Type, kind, entity.ID())

	_, err = s.UpsertEntities(ctx, kind, []Entity{entity}, boolPtr(false), eventSyncTime(event, refetched))
	return err
}

// applyTombstone removes the row physically. Delete events are terminal by
// construction, so no timestamp race exists and deleting an absent row is a
// no-op.
func (s *Service) applyTombstone(ctx context.Context, event Event, kind ObjectKind) error {
	id := event.Data.Object.ID()
	log.Infof("received webhook %s: %s for %s %s", event.ID, event.Type, kind, id)
	_, err := s.store.DeleteByID(ctx, descriptorFor(kind).table, id)
	return err
}

// ProcessEvent classifies and applies one pre-verified event. Unknown event
// types are a hard error with zero storage side effects.
func (s *Service) ProcessEvent(ctx context.Context, event Event) error {
	switch event.Type {
	case "charge.captured", "charge.expired", "charge.failed", "charge.pending",
		"charge.refunded", "charge.succeeded", "charge.updated":
		return s.applyEntityEvent(ctx, event, KindCharge)

	case "customer.created", "customer.updated":
		return s.applyEntityEvent(ctx, event, KindCustomer)

	case "customer.deleted":
		marker := Entity{"id": event.Data.Object.ID(), "object": "customer", "deleted": true}
		log.Infof("received webhook %s: %s for customer %s", event.ID, event.Type, marker.ID())
		// Deletion is a state transition, not a removal: it rides the normal
		// conditional-timestamp path.
		_, err := s.UpsertEntities(ctx, KindCustomer, []Entity{marker}, boolPtr(false), eventSyncTime(event, false))
		return err

	case "checkout.session.async_payment_failed", "checkout.session.async_payment_succeeded",
		"checkout.session.completed", "checkout.session.expired":
		return s.applyEntityEvent(ctx, event, KindCheckoutSession)

	case "customer.subscription.created", "customer.subscription.deleted",
		"customer.subscription.paused", "customer.subscription.pending_update_applied",
		"customer.subscription.pending_update_expired", "customer.subscription.trial_will_end",
		"customer.subscription.resumed", "customer.subscription.updated":
		return s.applyEntityEvent(ctx, event, KindSubscription)

	case "customer.tax_id.created", "customer.tax_id.updated":
		return s.applyEntityEvent(ctx, event, KindTaxID)

	case "customer.tax_id.deleted":
		return s.applyTombstone(ctx, event, KindTaxID)

	case "invoice.created", "invoice.deleted", "invoice.finalized",
		"invoice.finalization_failed", "invoice.paid", "invoice.payment_action_required",
		"invoice.payment_failed", "invoice.payment_succeeded", "invoice.upcoming",
		"invoice.sent", "invoice.voided", "invoice.marked_uncollectible", "invoice.updated":
		return s.applyEntityEvent(ctx, event, KindInvoice)

	case "product.created", "product.updated":
		return s.applyCatalogEvent(ctx, event, KindProduct)

	case "product.deleted":
		return s.applyTombstone(ctx, event, KindProduct)

	case "price.created", "price.updated":
		return s.applyCatalogEvent(ctx, event, KindPrice)

	case "price.deleted":
		return s.applyTombstone(ctx, event, KindPrice)

	case "plan.created", "plan.updated":
		return s.applyCatalogEvent(ctx, event, KindPlan)

	case "plan.deleted":
		return s.applyTombstone(ctx, event, KindPlan)

	case "setup_intent.canceled", "setup_intent.created", "setup_intent.requires_action",
		"setup_intent.setup_failed", "setup_intent.succeeded":
		return s.applyEntityEvent(ctx, event, KindSetupIntent)

	case "subscription_schedule.aborted", "subscription_schedule.canceled",
		"subscription_schedule.completed", "subscription_schedule.created",
		"subscription_schedule.expiring", "subscription_schedule.released",
		"subscription_schedule.updated":
		return s.applyEntityEvent(ctx, event, KindSubscriptionSchedule)

	case "payment_method.attached", "payment_method.automatically_updated",
		"payment_method.detached", "payment_method.updated":
		return s.applyEntityEvent(ctx, event, KindPaymentMethod)

	case "charge.dispute.created", "charge.dispute.funds_reinstated",
		"charge.dispute.funds_withdrawn", "charge.dispute.updated", "charge.dispute.closed":
		return s.applyEntityEvent(ctx, event, KindDispute)

	case "payment_intent.amount_capturable_updated", "payment_intent.canceled",
		"payment_intent.created", "payment_intent.partially_funded",
		"payment_intent.payment_failed", "payment_intent.processing",
		"payment_intent.requires_action", "payment_intent.succeeded":
		return s.applyEntityEvent(ctx, event, KindPaymentIntent)

	case "credit_note.created", "credit_note.updated", "credit_note.voided":
		return s.applyEntityEvent(ctx, event, KindCreditNote)

	case "radar.early_fraud_warning.created", "radar.early_fraud_warning.updated":
		return s.applyEntityEvent(ctx, event, KindEarlyFraudWarning)

	case "refund.created", "refund.failed", "refund.updated", "charge.refund.updated":
		return s.applyEntityEvent(ctx, event, KindRefund)

	case "review.closed", "review.opened":
		return s.applyEntityEvent(ctx, event, KindReview)

	case "entitlements.active_entitlement_summary.updated":
		return s.applyEntitlementSummary(ctx, event)

	default:
		return fmt.Errorf("%w: %s", ErrUnhandledEvent, event.Type)
	}
}

// applyEntitlementSummary reconciles a customer's stored entitlement set
// against the authoritative current set carried (or refetched) for the one
// parent named by the event.
func (s *Service) applyEntitlementSummary(ctx context.Context, event Event) error {
	summary := event.Data.Object
	customerID := summary.RefID("customer")
	entitlements := subListData(summary, "entitlements")

	refetched := false
	if s.shouldRevalidate(KindActiveEntitlement) {
		fresh, err := drainIterator(s.remote.List(ctx, KindActiveEntitlement, ListParams{Parent: customerID}))
		if err != nil {
			return err
		}
		entitlements = fresh
		refetched = true
	}

	log.Infof("received webhook %s: %s for customer %s", event.ID, event.Type, customerID)

	currentIDs := make([]string, 0, len(entitlements))
	for _, ent := range entitlements {
		if id := ent.ID(); id != "" {
			currentIDs = append(currentIDs, id)
		}
	}

	if _, err := s.DeleteRemovedActiveEntitlements(ctx, customerID, currentIDs); err != nil {
		return err
	}
	_, err := s.UpsertActiveEntitlements(ctx, customerID, entitlements, boolPtr(false), eventSyncTime(event, refetched))
	return err
}
