package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstJSONObject(t *testing.T) {
	t.Run("strict json inside script text", func(t *testing.T) {
		text := `window.__data = {"results":{"products":[{"name":"Drill {18V}"}]}}; init();`
		n, ok := FirstJSONObject(text)
		require.True(t, ok)
		products := Array(Path(n, "results", "products"))
		require.Len(t, products, 1)
		assert.Equal(t, "Drill {18V}", products[0]["name"])
	})

	t.Run("skips unbalanced and invalid regions", func(t *testing.T) {
		text := `{ not json at all } then {"ok":true}`
		n, ok := FirstJSONObject(text)
		require.True(t, ok)
		assert.Equal(t, true, n["ok"])
	})

	t.Run("json5 fallback", func(t *testing.T) {
		text := `data: {products: [{name: 'Saw', price: 12,},],}`
		n, ok := FirstJSONObject(text)
		require.True(t, ok)
		products := Array(n["products"])
		require.Len(t, products, 1)
		assert.Equal(t, "Saw", products[0]["name"])
	})

	t.Run("nothing to find", func(t *testing.T) {
		_, ok := FirstJSONObject(`plain text with no braces`)
		assert.False(t, ok)
		_, ok = FirstJSONObject(`{"open": [`)
		assert.False(t, ok)
	})
}

func TestBalancedEnd(t *testing.T) {
	assert.Equal(t, 1, balancedEnd(`{}`, 0))
	assert.Equal(t, 11, balancedEnd(`{"a":"}\"{"}}`, 0))
	assert.Equal(t, -1, balancedEnd(`{{}`, 0))
}
