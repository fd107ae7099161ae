package stripeapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncforge/stripemirror/internal/pkg/stripesync"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := NewClient("sk_test_123")
	client.BaseURL = srv.URL
	return client
}

func TestRetrieve(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/customers/cus_1", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{"id": "cus_1", "object": "customer", "email": "a@example.com"})
	})

	entity, err := client.Retrieve(context.Background(), stripesync.KindCustomer, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "cus_1", entity.ID())
	assert.Equal(t, "a@example.com", entity["email"])
}

func TestRetrieveNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "resource_missing", "message": "No such customer"},
		})
	})

	_, err := client.Retrieve(context.Background(), stripesync.KindCustomer, "cus_gone")
	assert.ErrorIs(t, err, stripesync.ErrUpstreamNotFound)
}

func TestRetrieveAPIError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"code": "api_error", "message": "something broke"},
		})
	})

	_, err := client.Retrieve(context.Background(), stripesync.KindCustomer, "cus_1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, stripesync.ErrUpstreamNotFound)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "api_error", apiErr.Code)
}

func TestListPaginatesLazily(t *testing.T) {
	var requests []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		requests = append(requests, r.URL.RawQuery)
		assert.Equal(t, "/products", r.URL.Path)

		if r.URL.Query().Get("starting_after") == "" {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object":   "list",
				"has_more": true,
				"data": []map[string]any{
					{"id": "prod_1"}, {"id": "prod_2"},
				},
			})
			return
		}
		assert.Equal(t, "prod_2", r.URL.Query().Get("starting_after"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object":   "list",
			"has_more": false,
			"data": []map[string]any{
				{"id": "prod_3"},
			},
		})
	})

	it := client.List(context.Background(), stripesync.KindProduct, stripesync.ListParams{})
	var ids []string
	for it.Next() {
		ids = append(ids, it.Entity().ID())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"prod_1", "prod_2", "prod_3"}, ids)
	assert.Len(t, requests, 2)
}

func TestListSubscriptionsIncludesAllStatuses(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/subscriptions", r.URL.Path)
		assert.Equal(t, "all", r.URL.Query().Get("status"))
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "has_more": false, "data": []map[string]any{}})
	})

	it := client.List(context.Background(), stripesync.KindSubscription, stripesync.ListParams{})
	assert.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestListParentScoped(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_methods", r.URL.Path)
		assert.Equal(t, "cus_1", r.URL.Query().Get("customer"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list", "has_more": false,
			"data": []map[string]any{{"id": "pm_1"}},
		})
	})

	it := client.List(context.Background(), stripesync.KindPaymentMethod, stripesync.ListParams{Parent: "cus_1"})
	require.True(t, it.Next())
	assert.Equal(t, "pm_1", it.Entity().ID())
	assert.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestListParentScopedRequiresParent(t *testing.T) {
	client := NewClient("sk_test_123")

	it := client.List(context.Background(), stripesync.KindPaymentMethod, stripesync.ListParams{})
	assert.False(t, it.Next())
	assert.ErrorContains(t, it.Err(), "requires a parent id")
}

func TestListCreatedAfterFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1700000000", r.URL.Query().Get("created[gte]"))
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "has_more": false, "data": []map[string]any{}})
	})

	it := client.List(context.Background(), stripesync.KindProduct, stripesync.ListParams{CreatedAfter: 1700000000})
	assert.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestListCheckoutSessionLineItems(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/checkout/sessions/cs_1/line_items", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list", "has_more": false,
			"data": []map[string]any{{"id": "li_1"}},
		})
	})

	it := client.List(context.Background(), stripesync.KindCheckoutSessionLineItem, stripesync.ListParams{Parent: "cs_1"})
	require.True(t, it.Next())
	assert.Equal(t, "li_1", it.Entity().ID())
}

func TestListChildrenInvoiceLines(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/invoices/in_1/lines", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list", "has_more": false,
			"data": []map[string]any{{"id": "il_1"}, {"id": "il_2"}},
		})
	})

	it := client.ListChildren(context.Background(), stripesync.KindInvoice, "lines", "in_1")
	var ids []string
	for it.Next() {
		ids = append(ids, it.Entity().ID())
	}
	require.NoError(t, it.Err())
	assert.Equal(t, []string{"il_1", "il_2"}, ids)
}

func TestListChildrenChargeRefunds(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refunds", r.URL.Path)
		assert.Equal(t, "ch_1", r.URL.Query().Get("charge"))
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "has_more": false, "data": []map[string]any{}})
	})

	it := client.ListChildren(context.Background(), stripesync.KindCharge, "refunds", "ch_1")
	assert.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestListChildrenUnknownField(t *testing.T) {
	client := NewClient("sk_test_123")

	it := client.ListChildren(context.Background(), stripesync.KindCharge, "nonsense", "ch_1")
	assert.False(t, it.Next())
	assert.ErrorContains(t, it.Err(), "no child endpoint")
}

func TestMissingAPIKey(t *testing.T) {
	client := NewClient("")

	_, err := client.Retrieve(context.Background(), stripesync.KindCustomer, "cus_1")
	assert.ErrorContains(t, err, "api key is not configured")
}
