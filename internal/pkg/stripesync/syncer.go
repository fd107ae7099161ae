package stripesync

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"
)

// listChunkSize is the buffer flushed to the store while draining a remote
// listing. Listing is lazy, so memory stays bounded regardless of account
// size.
const listChunkSize = 250

// paymentMethodCustomerConcurrency bounds the parallel per-customer payment
// method listings during a backfill.
const paymentMethodCustomerConcurrency = 10

// Sync reports how many entities one bulk pass consumed from the upstream
// listing. Rows the timestamp guard left untouched still count: they were
// synced, just already current.
type Sync struct {
	Synced int `json:"synced"`
}

// SyncBackfillParams selects what a bulk pass covers.
type SyncBackfillParams struct {
	// Object names a single kind, or "all" for a full dependency-ordered pass.
	Object string `json:"object,omitempty"`
	// CreatedAfter restricts listings to objects created at or after the
	// given unix time.
	CreatedAfter int64 `json:"created_after,omitempty"`
	// BackfillRelatedEntities overrides the service-level default when set.
	BackfillRelatedEntities *bool `json:"backfill_related_entities,omitempty"`
}

// SyncBackfillResult carries per-kind counts for whichever kinds the pass
// touched.
type SyncBackfillResult struct {
	Products              *Sync `json:"products,omitempty"`
	Prices                *Sync `json:"prices,omitempty"`
	Plans                 *Sync `json:"plans,omitempty"`
	Customers             *Sync `json:"customers,omitempty"`
	Subscriptions         *Sync `json:"subscriptions,omitempty"`
	SubscriptionSchedules *Sync `json:"subscription_schedules,omitempty"`
	Invoices              *Sync `json:"invoices,omitempty"`
	Charges               *Sync `json:"charges,omitempty"`
	SetupIntents          *Sync `json:"setup_intents,omitempty"`
	PaymentMethods        *Sync `json:"payment_methods,omitempty"`
	PaymentIntents        *Sync `json:"payment_intents,omitempty"`
	TaxIDs                *Sync `json:"tax_ids,omitempty"`
	CreditNotes           *Sync `json:"credit_notes,omitempty"`
	Disputes              *Sync `json:"disputes,omitempty"`
	EarlyFraudWarnings    *Sync `json:"early_fraud_warnings,omitempty"`
	Refunds               *Sync `json:"refunds,omitempty"`
	CheckoutSessions      *Sync `json:"checkout_sessions,omitempty"`
	Features              *Sync `json:"features,omitempty"`
}

// syncKind drains one remote collection into the mirror, flushing in bounded
// chunks. Each flush carries a fresh timestamp taken at flush time.
func (s *Service) syncKind(ctx context.Context, kind ObjectKind, params SyncBackfillParams) (Sync, error) {
	log.Infof("syncing %ss", kind)

	it := s.remote.List(ctx, kind, ListParams{CreatedAfter: params.CreatedAfter})

	var result Sync
	buf := make([]Entity, 0, listChunkSize)
	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if _, err := s.UpsertEntities(ctx, kind, buf, params.BackfillRelatedEntities, time.Now()); err != nil {
			return err
		}
		result.Synced += len(buf)
		buf = buf[:0]
		return nil
	}

	for it.Next() {
		buf = append(buf, it.Entity())
		if len(buf) >= listChunkSize {
			if err := flush(); err != nil {
				return result, err
			}
		}
	}
	if err := it.Err(); err != nil {
		return result, err
	}
	if err := flush(); err != nil {
		return result, err
	}
	return result, nil
}

func (s *Service) SyncProducts(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindProduct, params)
}

func (s *Service) SyncPrices(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindPrice, params)
}

func (s *Service) SyncPlans(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindPlan, params)
}

func (s *Service) SyncCustomers(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindCustomer, params)
}

func (s *Service) SyncSubscriptions(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindSubscription, params)
}

func (s *Service) SyncSubscriptionSchedules(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindSubscriptionSchedule, params)
}

func (s *Service) SyncInvoices(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindInvoice, params)
}

func (s *Service) SyncCharges(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindCharge, params)
}

func (s *Service) SyncSetupIntents(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindSetupIntent, params)
}

func (s *Service) SyncPaymentIntents(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindPaymentIntent, params)
}

func (s *Service) SyncTaxIDs(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindTaxID, params)
}

func (s *Service) SyncDisputes(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindDispute, params)
}

func (s *Service) SyncEarlyFraudWarnings(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindEarlyFraudWarning, params)
}

func (s *Service) SyncRefunds(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindRefund, params)
}

func (s *Service) SyncCreditNotes(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindCreditNote, params)
}

func (s *Service) SyncCheckoutSessions(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindCheckoutSession, params)
}

func (s *Service) SyncFeatures(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	return s.syncKind(ctx, KindFeature, params)
}

// SyncPaymentMethods lists per customer since the remote API has no global
// payment method listing. Customers already marked deleted are skipped.
func (s *Service) SyncPaymentMethods(ctx context.Context, params SyncBackfillParams) (Sync, error) {
	log.Infof("syncing payment methods")

	customerIDs, err := s.store.NonDeletedIDs(ctx, TableCustomers)
	if err != nil {
		return Sync{}, err
	}

	var result Sync
	for _, chunk := range chunkStrings(customerIDs, paymentMethodCustomerConcurrency) {
		g, gctx := errgroup.WithContext(ctx)
		counts := make([]int, len(chunk))
		for i, customerID := range chunk {
			i, customerID := i, customerID
			g.Go(func() error {
				methods, err := drainIterator(s.remote.List(gctx, KindPaymentMethod, ListParams{Parent: customerID}))
				if err != nil {
					return err
				}
				if len(methods) == 0 {
					return nil
				}
				if _, err := s.UpsertEntities(gctx, KindPaymentMethod, methods, params.BackfillRelatedEntities, time.Now()); err != nil {
					return err
				}
				counts[i] = len(methods)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return result, err
		}
		for _, n := range counts {
			result.Synced += n
		}
	}
	return result, nil
}

// SyncEntitlements reconciles one customer's active entitlement set against
// the remote's current view, removing rows the remote no longer reports.
func (s *Service) SyncEntitlements(ctx context.Context, customerID string) (Sync, error) {
	log.Infof("syncing active entitlements for customer %s", customerID)

	entitlements, err := drainIterator(s.remote.List(ctx, KindActiveEntitlement, ListParams{Parent: customerID}))
	if err != nil {
		return Sync{}, err
	}

	currentIDs := make([]string, 0, len(entitlements))
	for _, ent := range entitlements {
		if id := ent.ID(); id != "" {
			currentIDs = append(currentIDs, id)
		}
	}
	if _, err := s.DeleteRemovedActiveEntitlements(ctx, customerID, currentIDs); err != nil {
		return Sync{}, err
	}

	if _, err := s.UpsertActiveEntitlements(ctx, customerID, entitlements, nil, time.Now()); err != nil {
		return Sync{}, err
	}
	return Sync{Synced: len(entitlements)}, nil
}

// SyncBackfill runs a bulk pass for one kind, or for every kind in
// dependency order when Object is "all" or empty so that parent rows land
// before the children that reference them.
func (s *Service) SyncBackfill(ctx context.Context, params SyncBackfillParams) (SyncBackfillResult, error) {
	object := params.Object
	if object == "" {
		object = "all"
	}

	var result SyncBackfillResult
	type step struct {
		name string
		dest **Sync
		run  func(context.Context, SyncBackfillParams) (Sync, error)
	}
	steps := []step{
		{"product", &result.Products, s.SyncProducts},
		{"price", &result.Prices, s.SyncPrices},
		{"plan", &result.Plans, s.SyncPlans},
		{"customer", &result.Customers, s.SyncCustomers},
		{"subscription", &result.Subscriptions, s.SyncSubscriptions},
		{"subscription_schedule", &result.SubscriptionSchedules, s.SyncSubscriptionSchedules},
		{"invoice", &result.Invoices, s.SyncInvoices},
		{"charge", &result.Charges, s.SyncCharges},
		{"setup_intent", &result.SetupIntents, s.SyncSetupIntents},
		{"payment_method", &result.PaymentMethods, s.SyncPaymentMethods},
		{"payment_intent", &result.PaymentIntents, s.SyncPaymentIntents},
		{"tax_id", &result.TaxIDs, s.SyncTaxIDs},
		{"credit_note", &result.CreditNotes, s.SyncCreditNotes},
		{"dispute", &result.Disputes, s.SyncDisputes},
		{"early_fraud_warning", &result.EarlyFraudWarnings, s.SyncEarlyFraudWarnings},
		{"refund", &result.Refunds, s.SyncRefunds},
		{"checkout_session", &result.CheckoutSessions, s.SyncCheckoutSessions},
		{"feature", &result.Features, s.SyncFeatures},
	}

	matched := false
	for _, st := range steps {
		if object != "all" && object != st.name {
			continue
		}
		matched = true
		sync, err := st.run(ctx, params)
		if err != nil {
			return result, err
		}
		*st.dest = &Sync{Synced: sync.Synced}
	}
	if !matched {
		return result, fmt.Errorf("unknown sync object %q", params.Object)
	}
	return result, nil
}

// idPrefixKinds maps ID prefixes to kinds in most-specific-first order so
// that sub_sched_ wins over sub_.
var idPrefixKinds = func() []struct {
	prefix string
	kind   ObjectKind
} {
	type entry struct {
		prefix string
		kind   ObjectKind
	}
	var entries []entry
	for kind, desc := range descriptors {
		for _, p := range desc.idPrefixes {
			entries = append(entries, entry{p, kind})
		}
	}
	// Insertion sort by descending prefix length keeps longer prefixes first.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && len(entries[j].prefix) > len(entries[j-1].prefix); j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
	out := make([]struct {
		prefix string
		kind   ObjectKind
	}, len(entries))
	for i, e := range entries {
		out[i] = struct {
			prefix string
			kind   ObjectKind
		}{e.prefix, e.kind}
	}
	return out
}()

// SyncSingleEntity fetches exactly one object, classified by its ID prefix,
// and applies it with a fresh timestamp. Charges additionally pull their
// related objects so a point repair leaves no dangling references.
func (s *Service) SyncSingleEntity(ctx context.Context, id string) (Entity, error) {
	var kind ObjectKind
	for _, e := range idPrefixKinds {
		if strings.HasPrefix(id, e.prefix) {
			kind = e.kind
			break
		}
	}
	if kind == "" {
		return nil, fmt.Errorf("unknown id prefix for %q", id)
	}

	entity, err := s.remote.Retrieve(ctx, kind, id)
	if err != nil {
		return nil, err
	}

	// Deleted customers come back as bare deletion markers; there is nothing
	// to mirror beyond what the deletion event already wrote.
	if kind == KindCustomer {
		if deleted, ok := entity["deleted"].(bool); ok && deleted {
			return entity, nil
		}
	}

	backfill := s.cfg.BackfillRelatedEntities
	if kind == KindCharge {
		backfill = true
	}
	if _, err := s.UpsertEntities(ctx, kind, []Entity{entity}, boolPtr(backfill), time.Now()); err != nil {
		return nil, err
	}
	return entity, nil
}
