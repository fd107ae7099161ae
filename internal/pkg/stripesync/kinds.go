package stripesync

import "strings"

// ObjectKind identifies a Stripe object class mirrored into a local table.
// The set is closed: every kind the engine can store is enumerated here and
// carries its physical table name in the descriptor registry, so there is no
// runtime string-map lookup that can silently miss.
type ObjectKind string

const (
	KindCustomer                ObjectKind = "customer"
	KindProduct                 ObjectKind = "product"
	KindPrice                   ObjectKind = "price"
	KindPlan                    ObjectKind = "plan"
	KindSubscription            ObjectKind = "subscription"
	KindSubscriptionItem        ObjectKind = "subscription_item"
	KindSubscriptionSchedule    ObjectKind = "subscription_schedule"
	KindInvoice                 ObjectKind = "invoice"
	KindCharge                  ObjectKind = "charge"
	KindPaymentIntent           ObjectKind = "payment_intent"
	KindPaymentMethod           ObjectKind = "payment_method"
	KindSetupIntent             ObjectKind = "setup_intent"
	KindDispute                 ObjectKind = "dispute"
	KindRefund                  ObjectKind = "refund"
	KindTaxID                   ObjectKind = "tax_id"
	KindCreditNote              ObjectKind = "credit_note"
	KindCheckoutSession         ObjectKind = "checkout_session"
	KindCheckoutSessionLineItem ObjectKind = "checkout_session_line_item"
	KindEarlyFraudWarning       ObjectKind = "early_fraud_warning"
	KindReview                  ObjectKind = "review"
	KindFeature                 ObjectKind = "feature"
	KindActiveEntitlement       ObjectKind = "active_entitlement"
)

// TableName is the unprefixed physical table identifier of a mirror table.
type TableName string

const (
	TableProducts                 TableName = "products"
	TableCustomers                TableName = "customers"
	TablePrices                   TableName = "prices"
	TableSubscriptions            TableName = "subscriptions"
	TableSubscriptionItems        TableName = "subscription_items"
	TableInvoices                 TableName = "invoices"
	TableCharges                  TableName = "charges"
	TableDisputes                 TableName = "disputes"
	TablePlans                    TableName = "plans"
	TableSetupIntents             TableName = "setup_intents"
	TablePaymentMethods           TableName = "payment_methods"
	TablePaymentIntents           TableName = "payment_intents"
	TableTaxIDs                   TableName = "tax_ids"
	TableCreditNotes              TableName = "credit_notes"
	TableEarlyFraudWarnings       TableName = "early_fraud_warnings"
	TableReviews                  TableName = "reviews"
	TableRefunds                  TableName = "refunds"
	TableSubscriptionSchedules    TableName = "subscription_schedules"
	TableCheckoutSessions         TableName = "checkout_sessions"
	TableCheckoutSessionLineItems TableName = "checkout_session_line_items"
	TableFeatures                 TableName = "features"
	TableActiveEntitlements       TableName = "active_entitlements"

	// Present in the mirror schema but without sync operations.
	TableCoupons TableName = "coupons"
	TableEvents  TableName = "events"
	TablePayouts TableName = "payouts"
)

// NormalizePrefix ensures a non-empty table prefix ends with exactly one
// underscore, so "billing" and "billing_" configure the same tables.
func NormalizePrefix(prefix string) string {
	p := strings.TrimSpace(prefix)
	if p == "" {
		return ""
	}
	if strings.HasSuffix(p, "_") {
		return p
	}
	return p + "_"
}

// PrefixedTableName resolves a logical table to its physical name under an
// optional prefix.
func PrefixedTableName(table TableName, prefix string) string {
	return NormalizePrefix(prefix) + string(table)
}
