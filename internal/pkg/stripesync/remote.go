package stripesync

import "context"

// ListParams narrows a collection listing.
type ListParams struct {
	// CreatedAfter limits results to objects created at or after the given
	// unix time. Zero means no filter.
	CreatedAfter int64
	// Parent scopes child collections (subscription items by subscription,
	// payment methods and active entitlements by customer, line items by
	// checkout session).
	Parent string
}

// EntityIterator walks a lazily paginated remote collection. Pagination
// cursors are owned by the remote side; callers only consume.
type EntityIterator interface {
	Next() bool
	Entity() Entity
	Err() error
}

// RemoteClient is the capability the engine needs from the billing provider's
// API: point retrieval, collection listing, and nested sub-collection
// listing for expandable fields.
type RemoteClient interface {
	Retrieve(ctx context.Context, kind ObjectKind, id string) (Entity, error)
	List(ctx context.Context, kind ObjectKind, params ListParams) EntityIterator
	ListChildren(ctx context.Context, parent ObjectKind, field, parentID string) EntityIterator
}

func drainIterator(it EntityIterator) ([]Entity, error) {
	var out []Entity
	for it.Next() {
		out = append(out, it.Entity())
	}
	return out, it.Err()
}
