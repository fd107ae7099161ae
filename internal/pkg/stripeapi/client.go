package stripeapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/syncforge/stripemirror/internal/pkg/stripesync"
)

const (
	defaultBaseURL   = "https://api.stripe.com/v1"
	defaultPageLimit = 100
)

// Client talks to the Stripe REST API. It implements stripesync.RemoteClient.
type Client struct {
	APIKey  string
	BaseURL string

	// PageLimit is the per-request page size used for collection listings.
	PageLimit int

	HTTPClient *http.Client
}

// APIError carries a decoded Stripe error response.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stripe api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

func NewClient(apiKey string) *Client {
	return &Client{
		APIKey:    strings.TrimSpace(apiKey),
		BaseURL:   defaultBaseURL,
		PageLimit: defaultPageLimit,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// endpoint describes how one object kind maps onto the REST surface.
type endpoint struct {
	// path is the collection path relative to the API base.
	path string
	// parentParam, when set, names the query parameter a listing must scope
	// by (listings for these kinds have no global form).
	parentParam string
	// parentPath, when set, is a format string producing a parent-scoped
	// collection path from the parent ID.
	parentPath string
	// extraQuery is appended to every listing for the kind.
	extraQuery url.Values
}

var endpoints = map[stripesync.ObjectKind]endpoint{
	stripesync.KindCustomer:             {path: "/customers"},
	stripesync.KindProduct:              {path: "/products"},
	stripesync.KindPrice:                {path: "/prices"},
	stripesync.KindPlan:                 {path: "/plans"},
	stripesync.KindSubscription:         {path: "/subscriptions", extraQuery: url.Values{"status": {"all"}}},
	stripesync.KindSubscriptionItem:     {path: "/subscription_items", parentParam: "subscription"},
	stripesync.KindSubscriptionSchedule: {path: "/subscription_schedules"},
	stripesync.KindInvoice:              {path: "/invoices"},
	stripesync.KindCharge:               {path: "/charges"},
	stripesync.KindPaymentIntent:        {path: "/payment_intents"},
	stripesync.KindPaymentMethod:        {path: "/payment_methods", parentParam: "customer"},
	stripesync.KindSetupIntent:          {path: "/setup_intents"},
	stripesync.KindDispute:              {path: "/disputes"},
	stripesync.KindRefund:               {path: "/refunds"},
	stripesync.KindTaxID:                {path: "/tax_ids"},
	stripesync.KindCreditNote:           {path: "/credit_notes"},
	stripesync.KindCheckoutSession:      {path: "/checkout/sessions"},
	stripesync.KindCheckoutSessionLineItem: {
		path:       "/checkout/sessions",
		parentPath: "/checkout/sessions/%s/line_items",
	},
	stripesync.KindEarlyFraudWarning: {path: "/radar/early_fraud_warnings"},
	stripesync.KindReview:            {path: "/reviews"},
	stripesync.KindFeature:           {path: "/entitlements/features"},
	stripesync.KindActiveEntitlement: {
		path:        "/entitlements/active_entitlements",
		parentParam: "customer",
	},
}

// childEndpoints maps a parent kind and expandable field to the collection
// that serves the full child list.
var childEndpoints = map[stripesync.ObjectKind]map[string]endpoint{
	stripesync.KindSubscription: {
		"items": {path: "/subscription_items", parentParam: "subscription"},
	},
	stripesync.KindCharge: {
		"refunds": {path: "/refunds", parentParam: "charge"},
	},
	stripesync.KindInvoice: {
		"lines": {parentPath: "/invoices/%s/lines"},
	},
	stripesync.KindCreditNote: {
		"lines": {parentPath: "/credit_notes/%s/lines"},
	},
}

// Retrieve fetches one object by ID. Missing objects are reported via
// stripesync.ErrUpstreamNotFound so callers can distinguish absence from
// transport failure.
func (c *Client) Retrieve(ctx context.Context, kind stripesync.ObjectKind, id string) (stripesync.Entity, error) {
	ep, ok := endpoints[kind]
	if ok && ep.parentPath != "" {
		ok = false
	}
	if !ok {
		return nil, fmt.Errorf("no retrieve endpoint for %s", kind)
	}

	body, err := c.get(ctx, ep.path+"/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var entity stripesync.Entity
	if err := json.Unmarshal(body, &entity); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", kind, id, err)
	}
	return entity, nil
}

// List returns a lazy iterator over a collection. Pages are fetched on
// demand as the caller advances.
func (c *Client) List(ctx context.Context, kind stripesync.ObjectKind, params stripesync.ListParams) stripesync.EntityIterator {
	ep, ok := endpoints[kind]
	if !ok {
		return &pageIterator{err: fmt.Errorf("no list endpoint for %s", kind)}
	}

	path := ep.path
	query := url.Values{}
	for k, vs := range ep.extraQuery {
		query[k] = vs
	}
	if params.CreatedAfter > 0 {
		query.Set("created[gte]", strconv.FormatInt(params.CreatedAfter, 10))
	}
	if ep.parentPath != "" {
		if params.Parent == "" {
			return &pageIterator{err: fmt.Errorf("listing %s requires a parent id", kind)}
		}
		path = fmt.Sprintf(ep.parentPath, url.PathEscape(params.Parent))
	} else if ep.parentParam != "" {
		if params.Parent == "" {
			return &pageIterator{err: fmt.Errorf("listing %s requires a parent id", kind)}
		}
		query.Set(ep.parentParam, params.Parent)
	}

	return c.newPageIterator(ctx, path, query)
}

// ListChildren walks the full child collection behind an expandable field.
func (c *Client) ListChildren(ctx context.Context, parent stripesync.ObjectKind, field, parentID string) stripesync.EntityIterator {
	ep, ok := childEndpoints[parent][field]
	if !ok {
		return &pageIterator{err: fmt.Errorf("no child endpoint for %s.%s", parent, field)}
	}

	path := ep.path
	query := url.Values{}
	if ep.parentPath != "" {
		path = fmt.Sprintf(ep.parentPath, url.PathEscape(parentID))
	} else {
		query.Set(ep.parentParam, parentID)
	}
	return c.newPageIterator(ctx, path, query)
}

type listPage struct {
	Data    []stripesync.Entity `json:"data"`
	HasMore bool                `json:"has_more"`
}

// pageIterator drains a paginated collection using starting_after cursors.
type pageIterator struct {
	client *Client
	ctx    context.Context
	path   string
	query  url.Values

	page    []stripesync.Entity
	pos     int
	hasMore bool
	started bool
	err     error
}

func (c *Client) newPageIterator(ctx context.Context, path string, query url.Values) *pageIterator {
	return &pageIterator{
		client:  c,
		ctx:     ctx,
		path:    path,
		query:   query,
		hasMore: true,
	}
}

func (it *pageIterator) Next() bool {
	if it.err != nil {
		return false
	}
	it.pos++
	if it.pos < len(it.page) {
		return true
	}
	if it.started && !it.hasMore {
		return false
	}
	return it.fetchPage()
}

func (it *pageIterator) fetchPage() bool {
	query := url.Values{}
	for k, vs := range it.query {
		query[k] = vs
	}
	limit := it.client.PageLimit
	if limit <= 0 {
		limit = defaultPageLimit
	}
	query.Set("limit", strconv.Itoa(limit))
	if it.started && len(it.page) > 0 {
		if last := it.page[len(it.page)-1].ID(); last != "" {
			query.Set("starting_after", last)
		}
	}

	body, err := it.client.get(it.ctx, it.path, query)
	if err != nil {
		it.err = err
		return false
	}

	var page listPage
	if err := json.Unmarshal(body, &page); err != nil {
		it.err = fmt.Errorf("decode list page for %s: %w", it.path, err)
		return false
	}

	it.started = true
	it.page = page.Data
	it.pos = 0
	it.hasMore = page.HasMore
	return len(it.page) > 0
}

func (it *pageIterator) Entity() stripesync.Entity {
	if it.pos < 0 || it.pos >= len(it.page) {
		return nil
	}
	return it.page[it.pos]
}

func (it *pageIterator) Err() error {
	return it.err
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("stripe api key is not configured")
	}

	base := strings.TrimRight(c.BaseURL, "/")
	u, err := url.Parse(base + path)
	if err != nil {
		return nil, err
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeAPIError(resp.StatusCode, body)
	}
	return body, nil
}

// decodeAPIError turns a non-2xx response into an APIError, folding missing
// resources into the engine's not-found sentinel.
func decodeAPIError(status int, body []byte) error {
	var raw struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	_ = json.Unmarshal(body, &raw)

	apiErr := &APIError{
		StatusCode: status,
		Code:       raw.Error.Code,
		Message:    raw.Error.Message,
	}
	if status == http.StatusNotFound || raw.Error.Code == "resource_missing" {
		return fmt.Errorf("%w: %s", stripesync.ErrUpstreamNotFound, apiErr.Error())
	}
	return apiErr
}
