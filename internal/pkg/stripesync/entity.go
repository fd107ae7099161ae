package stripesync

import "encoding/json"

// Entity is an opaque, kind-tagged attribute bag as delivered by Stripe.
// The engine interprets identity, references and lifecycle fields only;
// everything else passes through to storage untouched.
type Entity map[string]any

// ID returns the remote identifier, or "" when absent.
func (e Entity) ID() string {
	id, _ := e["id"].(string)
	return id
}

// Clone returns a shallow copy so prepare hooks never mutate caller state.
func (e Entity) Clone() Entity {
	out := make(Entity, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}

// RefID normalizes a reference field to its bare ID: the value may be a
// plain ID string or an expanded sub-object carrying its own "id".
func (e Entity) RefID(field string) string {
	switch v := e[field].(type) {
	case string:
		return v
	case map[string]any:
		id, _ := v["id"].(string)
		return id
	case Entity:
		return v.ID()
	default:
		return ""
	}
}

// uniqueRefIDs collects the distinct, non-empty normalized IDs of one
// reference field across a batch, preserving first-seen order.
func uniqueRefIDs(entities []Entity, field string) []string {
	seen := make(map[string]struct{}, len(entities))
	ids := make([]string, 0, len(entities))
	for _, e := range entities {
		id := e.RefID(field)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}

func chunkEntities(entities []Entity, size int) [][]Entity {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]Entity, 0, (len(entities)+size-1)/size)
	for start := 0; start < len(entities); start += size {
		end := start + size
		if end > len(entities) {
			end = len(entities)
		}
		chunks = append(chunks, entities[start:end])
	}
	return chunks
}

func chunkStrings(ids []string, size int) [][]string {
	if size <= 0 {
		size = 1
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		chunks = append(chunks, ids[start:end])
	}
	return chunks
}

// cleanseRow serializes array and object attributes to JSON scalars, since
// they are not native column values, and leaves scalars untouched.
func cleanseRow(e Entity) map[string]any {
	out := make(map[string]any, len(e))
	for k, v := range e {
		switch v.(type) {
		case nil, string, bool, float64, int, int64:
			out[k] = v
		default:
			raw, err := json.Marshal(v)
			if err != nil {
				// Unencodable values are dropped rather than poisoning the row.
				continue
			}
			out[k] = string(raw)
		}
	}
	return out
}

// subListData extracts the "data" entries of a paginated sub-list attribute
// such as subscription.items or an entitlement summary's entitlements.
func subListData(e Entity, field string) []Entity {
	list, ok := e[field].(map[string]any)
	if !ok {
		return nil
	}
	raw, ok := list["data"].([]any)
	if !ok {
		return nil
	}
	out := make([]Entity, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]any); ok {
			out = append(out, Entity(m))
		}
	}
	return out
}
