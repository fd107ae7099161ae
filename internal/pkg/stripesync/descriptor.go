package stripesync

// reference names an attribute that points at another mirrored kind, either
// as a bare ID string or as an expanded sub-object. The resolver walks these
// instead of hand-written per-kind recursion, so the reference graph is plain
// data.
type reference struct {
	field string
	kind  ObjectKind
}

// descriptor is the static per-kind registry entry: identity, storage target,
// reference graph edges, lifecycle predicate and nested list expansions.
type descriptor struct {
	table      TableName
	columns    []string
	idPrefixes []string
	references []reference
	// expand lists attribute names holding paginated sub-lists that are
	// completed via RemoteClient.ListChildren when auto-expansion is on.
	expand []string
	// finalState reports whether the remote object can never change again.
	// Terminal payloads are always trusted as-is, even for kinds configured
	// for live revalidation.
	finalState func(Entity) bool
	// prepare normalizes an entity before storage (reference flattening,
	// defaulted flags). Nil means store as-is.
	prepare func(Entity) Entity
}

func statusIn(statuses ...string) func(Entity) bool {
	return func(e Entity) bool {
		got, _ := e["status"].(string)
		for _, s := range statuses {
			if got == s {
				return true
			}
		}
		return false
	}
}

func customerFinal(e Entity) bool {
	deleted, _ := e["deleted"].(bool)
	return deleted
}

func prepareSubscriptionItem(e Entity) Entity {
	out := e.Clone()
	out["price"] = e.RefID("price")
	if _, ok := out["deleted"].(bool); !ok {
		out["deleted"] = false
	}
	return out
}

var descriptors = map[ObjectKind]descriptor{
	KindCustomer: {
		table:      TableCustomers,
		columns:    customerColumns,
		idPrefixes: []string{"cus_"},
		finalState: customerFinal,
	},
	KindProduct: {
		table:      TableProducts,
		columns:    productColumns,
		idPrefixes: []string{"prod_"},
	},
	KindPrice: {
		table:      TablePrices,
		columns:    priceColumns,
		idPrefixes: []string{"price_"},
		references: []reference{{field: "product", kind: KindProduct}},
	},
	KindPlan: {
		table:      TablePlans,
		columns:    planColumns,
		idPrefixes: []string{"plan_"},
		references: []reference{{field: "product", kind: KindProduct}},
	},
	KindSubscription: {
		table:      TableSubscriptions,
		columns:    subscriptionColumns,
		idPrefixes: []string{"sub_"},
		references: []reference{{field: "customer", kind: KindCustomer}},
		expand:     []string{"items"},
		finalState: statusIn("canceled", "incomplete_expired"),
	},
	KindSubscriptionItem: {
		table:   TableSubscriptionItems,
		columns: subscriptionItemColumns,
		prepare: prepareSubscriptionItem,
	},
	KindSubscriptionSchedule: {
		table:      TableSubscriptionSchedules,
		columns:    subscriptionScheduleColumns,
		idPrefixes: []string{"sub_sched_"},
		references: []reference{{field: "customer", kind: KindCustomer}},
		finalState: statusIn("canceled", "completed"),
	},
	KindInvoice: {
		table:      TableInvoices,
		columns:    invoiceColumns,
		idPrefixes: []string{"in_"},
		references: []reference{
			{field: "customer", kind: KindCustomer},
			{field: "subscription", kind: KindSubscription},
		},
		expand:     []string{"lines"},
		finalState: statusIn("void"),
	},
	KindCharge: {
		table:      TableCharges,
		columns:    chargeColumns,
		idPrefixes: []string{"ch_"},
		references: []reference{
			{field: "customer", kind: KindCustomer},
			{field: "invoice", kind: KindInvoice},
		},
		expand:     []string{"refunds"},
		finalState: statusIn("failed", "succeeded"),
	},
	KindPaymentIntent: {
		table:      TablePaymentIntents,
		columns:    paymentIntentColumns,
		idPrefixes: []string{"pi_"},
		references: []reference{
			{field: "customer", kind: KindCustomer},
			{field: "invoice", kind: KindInvoice},
		},
		finalState: statusIn("canceled", "succeeded"),
	},
	KindPaymentMethod: {
		table:      TablePaymentMethods,
		columns:    paymentMethodColumns,
		idPrefixes: []string{"pm_"},
		references: []reference{{field: "customer", kind: KindCustomer}},
	},
	KindSetupIntent: {
		table:      TableSetupIntents,
		columns:    setupIntentColumns,
		idPrefixes: []string{"seti_"},
		references: []reference{{field: "customer", kind: KindCustomer}},
		finalState: statusIn("canceled", "succeeded"),
	},
	KindDispute: {
		table:      TableDisputes,
		columns:    disputeColumns,
		idPrefixes: []string{"dp_", "du_"},
		references: []reference{{field: "charge", kind: KindCharge}},
		finalState: statusIn("won", "lost"),
	},
	KindRefund: {
		table:      TableRefunds,
		columns:    refundColumns,
		idPrefixes: []string{"re_"},
		references: []reference{
			{field: "payment_intent", kind: KindPaymentIntent},
			{field: "charge", kind: KindCharge},
		},
	},
	KindTaxID: {
		table:      TableTaxIDs,
		columns:    taxIDColumns,
		idPrefixes: []string{"txi_"},
		references: []reference{{field: "customer", kind: KindCustomer}},
	},
	KindCreditNote: {
		table:      TableCreditNotes,
		columns:    creditNoteColumns,
		idPrefixes: []string{"cn_"},
		references: []reference{
			{field: "customer", kind: KindCustomer},
			{field: "invoice", kind: KindInvoice},
		},
		expand:     []string{"lines"},
		finalState: statusIn("void"),
	},
	KindCheckoutSession: {
		table:      TableCheckoutSessions,
		columns:    checkoutSessionColumns,
		idPrefixes: []string{"cs_"},
		references: []reference{
			{field: "customer", kind: KindCustomer},
			{field: "subscription", kind: KindSubscription},
			{field: "payment_intent", kind: KindPaymentIntent},
			{field: "invoice", kind: KindInvoice},
		},
	},
	KindCheckoutSessionLineItem: {
		table:   TableCheckoutSessionLineItems,
		columns: checkoutSessionLineItemColumns,
	},
	KindEarlyFraudWarning: {
		table:      TableEarlyFraudWarnings,
		columns:    earlyFraudWarningColumns,
		idPrefixes: []string{"issfr_"},
		references: []reference{
			{field: "payment_intent", kind: KindPaymentIntent},
			{field: "charge", kind: KindCharge},
		},
	},
	KindReview: {
		table:      TableReviews,
		columns:    reviewColumns,
		idPrefixes: []string{"prv_"},
		references: []reference{
			{field: "payment_intent", kind: KindPaymentIntent},
			{field: "charge", kind: KindCharge},
		},
	},
	KindFeature: {
		table:      TableFeatures,
		columns:    featureColumns,
		idPrefixes: []string{"feat_"},
	},
	KindActiveEntitlement: {
		table:   TableActiveEntitlements,
		columns: activeEntitlementColumns,
	},
}

func descriptorFor(kind ObjectKind) descriptor {
	return descriptors[kind]
}

// TableFor resolves an entity kind to its unprefixed mirror table.
func TableFor(kind ObjectKind) TableName {
	return descriptors[kind].table
}
