package stripesync

// Per-kind allow-lists of storable columns, kept in lockstep with the DDL in
// migrations/. The upsert path drops any incoming attribute that is not
// listed here, which is what keeps the mirror forward compatible when Stripe
// adds fields the schema does not know yet. The system column last_synced_at
// is owned by the store and never listed.

var customerColumns = []string{
	"id", "object", "address", "description", "email", "metadata", "name",
	"phone", "shipping", "balance", "created", "currency", "default_source",
	"delinquent", "discount", "invoice_prefix", "invoice_settings", "livemode",
	"next_invoice_sequence", "preferred_locales", "tax_exempt", "deleted",
}

// Tombstoned customers arrive as {id, object, deleted} only; restricting the
// column set keeps the marker write from nulling retained business columns.
var deletedCustomerColumns = []string{"id", "object", "deleted"}

var productColumns = []string{
	"id", "object", "active", "description", "metadata", "name", "created",
	"images", "livemode", "package_dimensions", "shippable",
	"statement_descriptor", "unit_label", "updated", "url",
	"marketing_features", "default_price",
}

var priceColumns = []string{
	"id", "object", "active", "currency", "metadata", "nickname", "recurring",
	"type", "unit_amount", "billing_scheme", "created", "livemode",
	"lookup_key", "tiers_mode", "transform_quantity", "unit_amount_decimal",
	"product",
}

var planColumns = []string{
	"id", "object", "active", "amount", "created", "product", "currency",
	"interval", "livemode", "metadata", "nickname", "tiers_mode", "usage_type",
	"billing_scheme", "interval_count", "aggregate_usage", "transform_usage",
	"trial_period_days",
}

var subscriptionColumns = []string{
	"id", "object", "cancel_at_period_end", "current_period_end",
	"current_period_start", "default_payment_method", "items", "metadata",
	"pending_setup_intent", "pending_update", "status",
	"application_fee_percent", "billing_cycle_anchor", "billing_thresholds",
	"cancel_at", "canceled_at", "collection_method", "created",
	"days_until_due", "default_source", "default_tax_rates", "discount",
	"ended_at", "livemode", "next_pending_invoice_item_invoice",
	"pause_collection", "pending_invoice_item_interval", "start_date",
	"transfer_data", "trial_end", "trial_start", "schedule", "customer",
	"latest_invoice", "plan",
}

var subscriptionItemColumns = []string{
	"id", "object", "billing_thresholds", "created", "deleted", "metadata",
	"quantity", "price", "subscription", "tax_rates", "current_period_end",
	"current_period_start",
}

var subscriptionScheduleColumns = []string{
	"id", "object", "application", "canceled_at", "completed_at", "created",
	"current_phase", "customer", "default_settings", "end_behavior",
	"livemode", "metadata", "phases", "released_at", "released_subscription",
	"status", "subscription", "test_clock",
}

var invoiceColumns = []string{
	"id", "object", "auto_advance", "collection_method", "currency",
	"description", "hosted_invoice_url", "lines", "metadata", "period_end",
	"period_start", "status", "total", "account_country", "account_name",
	"amount_due", "amount_paid", "amount_remaining", "attempt_count",
	"attempted", "billing_reason", "created", "customer", "customer_address",
	"customer_email", "customer_name", "customer_phone", "customer_shipping",
	"customer_tax_exempt", "custom_fields", "default_payment_method",
	"default_source", "default_tax_rates", "discount", "due_date",
	"ending_balance", "footer", "invoice_pdf", "last_finalization_error",
	"livemode", "next_payment_attempt", "number", "paid", "payment_intent",
	"payment_settings", "receipt_number", "starting_balance",
	"statement_descriptor", "status_transitions", "subscription", "subtotal",
	"tax", "total_discount_amounts", "total_tax_amounts", "transfer_data",
	"webhooks_delivered_at",
}

var chargeColumns = []string{
	"id", "object", "card", "paid", "order", "amount", "review", "source",
	"status", "created", "dispute", "invoice", "outcome", "refunds",
	"updated", "captured", "currency", "customer", "livemode", "metadata",
	"refunded", "shipping", "application", "description", "destination",
	"failure_code", "on_behalf_of", "fraud_details", "receipt_email",
	"payment_intent", "payment_method", "receipt_number", "transfer_group",
	"amount_refunded", "application_fee", "failure_message",
	"source_transfer", "balance_transaction", "statement_descriptor",
	"payment_method_details",
}

var paymentIntentColumns = []string{
	"id", "object", "amount", "amount_capturable", "amount_details",
	"amount_received", "application", "application_fee_amount",
	"automatic_payment_methods", "canceled_at", "cancellation_reason",
	"capture_method", "confirmation_method", "created", "currency",
	"customer", "description", "invoice", "last_payment_error",
	"latest_charge", "livemode", "metadata", "next_action", "on_behalf_of",
	"payment_method", "payment_method_options", "payment_method_types",
	"processing", "receipt_email", "review", "setup_future_usage", "shipping",
	"statement_descriptor", "statement_descriptor_suffix", "status",
	"transfer_data", "transfer_group",
}

var paymentMethodColumns = []string{
	"id", "object", "created", "customer", "type", "billing_details",
	"metadata", "card",
}

var setupIntentColumns = []string{
	"id", "object", "created", "customer", "description", "payment_method",
	"status", "usage", "cancellation_reason", "latest_attempt", "mandate",
	"single_use_mandate", "on_behalf_of",
}

var disputeColumns = []string{
	"id", "object", "amount", "charge", "reason", "status", "created",
	"updated", "currency", "evidence", "livemode", "metadata",
	"evidence_details", "balance_transactions", "is_charge_refundable",
	"payment_intent",
}

var refundColumns = []string{
	"id", "object", "amount", "balance_transaction", "charge", "created",
	"currency", "destination_details", "metadata", "payment_intent",
	"reason", "receipt_number", "source_transfer_reversal", "status",
	"transfer_reversal",
}

var taxIDColumns = []string{
	"id", "object", "country", "customer", "type", "value", "created",
	"livemode", "owner",
}

var creditNoteColumns = []string{
	"id", "object", "amount", "amount_shipping", "created", "currency",
	"customer", "customer_balance_transaction", "discount_amount",
	"discount_amounts", "invoice", "lines", "livemode", "memo", "metadata",
	"number", "out_of_band_amount", "pdf", "reason", "refund",
	"shipping_cost", "status", "subtotal", "subtotal_excluding_tax",
	"tax_amounts", "total", "total_excluding_tax", "type", "voided_at",
}

var checkoutSessionColumns = []string{
	"id", "object", "after_expiration", "allow_promotion_codes",
	"amount_subtotal", "amount_total", "automatic_tax",
	"billing_address_collection", "cancel_url", "client_reference_id",
	"created", "currency", "customer", "customer_creation",
	"customer_details", "customer_email", "expires_at", "invoice",
	"invoice_creation", "livemode", "locale", "metadata", "mode",
	"payment_intent", "payment_link", "payment_method_collection",
	"payment_method_options", "payment_method_types", "payment_status",
	"phone_number_collection", "recovered_from", "setup_intent",
	"shipping_address_collection", "shipping_cost", "shipping_details",
	"shipping_options", "status", "submit_type", "subscription",
	"success_url", "total_details", "ui_mode", "url",
}

var checkoutSessionLineItemColumns = []string{
	"id", "object", "amount_discount", "amount_subtotal", "amount_tax",
	"amount_total", "currency", "description", "price", "quantity",
	"checkout_session",
}

var earlyFraudWarningColumns = []string{
	"id", "object", "actionable", "charge", "created", "fraud_type",
	"livemode", "payment_intent",
}

var reviewColumns = []string{
	"id", "object", "billing_zip", "charge", "created", "closed_reason",
	"livemode", "ip_address", "ip_address_location", "open", "opened_reason",
	"payment_intent", "reason", "session",
}

var featureColumns = []string{
	"id", "object", "livemode", "name", "lookup_key", "active", "metadata",
}

var activeEntitlementColumns = []string{
	"id", "object", "livemode", "feature", "customer", "lookup_key",
}
