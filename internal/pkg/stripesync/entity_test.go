package stripesync

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityRefID(t *testing.T) {
	t.Run("plain id string", func(t *testing.T) {
		e := Entity{"customer": "cus_123"}
		assert.Equal(t, "cus_123", e.RefID("customer"))
	})

	t.Run("expanded object", func(t *testing.T) {
		e := Entity{"customer": map[string]any{"id": "cus_456", "email": "x@example.com"}}
		assert.Equal(t, "cus_456", e.RefID("customer"))
	})

	t.Run("absent field", func(t *testing.T) {
		e := Entity{}
		assert.Equal(t, "", e.RefID("customer"))
	})

	t.Run("null field", func(t *testing.T) {
		e := Entity{"customer": nil}
		assert.Equal(t, "", e.RefID("customer"))
	})
}

func TestUniqueRefIDs(t *testing.T) {
	entities := []Entity{
		{"product": "prod_b"},
		{"product": map[string]any{"id": "prod_a"}},
		{"product": "prod_b"},
		{"product": nil},
		{},
	}

	assert.Equal(t, []string{"prod_b", "prod_a"}, uniqueRefIDs(entities, "product"))
}

func TestCleanseRow(t *testing.T) {
	row := Entity{
		"id":       "prod_1",
		"active":   true,
		"amount":   float64(500),
		"name":     "widget",
		"images":   []any{"https://a.example/img.png", "https://a.example/img2.png"},
		"metadata": map[string]any{"tier": "gold"},
		"missing":  nil,
	}

	out := cleanseRow(row)

	assert.Equal(t, "prod_1", out["id"])
	assert.Equal(t, true, out["active"])
	assert.Equal(t, float64(500), out["amount"])
	assert.Equal(t, `["https://a.example/img.png","https://a.example/img2.png"]`, out["images"])
	assert.Equal(t, `{"tier":"gold"}`, out["metadata"])
	assert.Nil(t, out["missing"])
	assert.Contains(t, out, "missing")
}

func TestChunkEntities(t *testing.T) {
	entities := make([]Entity, 12)
	for i := range entities {
		entities[i] = Entity{"id": string(rune('a' + i))}
	}

	chunks := chunkEntities(entities, 5)
	assert.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 5)
	assert.Len(t, chunks[1], 5)
	assert.Len(t, chunks[2], 2)

	assert.Empty(t, chunkEntities(nil, 5))
}

func TestSubListData(t *testing.T) {
	sub := Entity{
		"id": "sub_1",
		"items": map[string]any{
			"object":   "list",
			"has_more": false,
			"data": []any{
				map[string]any{"id": "si_1"},
				map[string]any{"id": "si_2"},
			},
		},
	}

	items := subListData(sub, "items")
	assert.Len(t, items, 2)
	assert.Equal(t, "si_1", items[0].ID())
	assert.Equal(t, "si_2", items[1].ID())

	assert.Nil(t, subListData(Entity{"id": "sub_2"}, "items"))
	assert.Nil(t, subListData(Entity{"items": "not a list"}, "items"))
}
