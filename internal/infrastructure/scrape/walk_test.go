package scrape

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

func TestWalk_DepthBound(t *testing.T) {
	tree := decode(t, `{"a":{"b":{"c":{"d":1}}}}`)

	var deepest int
	Walk(tree, 2, func(_ any, depth int) bool {
		deepest = max(deepest, depth)
		return true
	})
	assert.Equal(t, 2, deepest)

	deepest = 0
	Walk(tree, Unlimited, func(_ any, depth int) bool {
		deepest = max(deepest, depth)
		return true
	})
	assert.Equal(t, 4, deepest)
}

func TestWalk_Stop(t *testing.T) {
	tree := decode(t, `[1,2,3,4]`)

	var seen int
	Walk(tree, Unlimited, func(v any, _ int) bool {
		seen++
		return v != 2.0
	})
	assert.Equal(t, 3, seen)
}

func TestFindFirst_Deterministic(t *testing.T) {
	tree := decode(t, `{"z":{"id":"z"},"a":{"id":"a"},"m":[{"id":"m"}]}`)

	for range 20 {
		n, ok := FindFirst(tree, Unlimited, func(n Node) bool { return Has(n, "id") })
		require.True(t, ok)
		assert.Equal(t, "a", n["id"])
	}
}

func TestCollectAll(t *testing.T) {
	tree := decode(t, `{"items":[{"sku":"1"},{"other":true},{"sku":"2","child":{"sku":"3"}}]}`)

	got := CollectAll(tree, Unlimited, func(n Node) bool { return Has(n, "sku") })
	var skus []string
	for _, n := range got {
		skus = append(skus, n["sku"].(string))
	}
	if diff := cmp.Diff([]string{"1", "2", "3"}, skus); diff != "" {
		t.Errorf("CollectAll mismatch (-want +got):\n%s", diff)
	}
}

func TestCollectArrays(t *testing.T) {
	tree := decode(t, `{"a":[1,[2]],"b":{"c":[]}}`)
	assert.Len(t, CollectArrays(tree, Unlimited), 3)
	assert.Len(t, CollectArrays(tree, 1), 1)
}

func TestFindBestEffortCandidate(t *testing.T) {
	t.Run("name and url", func(t *testing.T) {
		tree := decode(t, `{"page":{"meta":{"name":"Search"},"grid":[{"name":"Drill","url":"/p/1"}]}}`)
		n, ok := FindBestEffortCandidate(tree)
		require.True(t, ok)
		assert.Equal(t, "Drill", n["name"])
	})

	t.Run("alt and price", func(t *testing.T) {
		tree := decode(t, `{"tile":{"alt":"Saw","price":{"value":9}}}`)
		n, ok := FindBestEffortCandidate(tree)
		require.True(t, ok)
		assert.Equal(t, "Saw", n["alt"])
	})

	t.Run("name and price", func(t *testing.T) {
		tree := decode(t, `{"a":{"id":1},"b":{"name":"Hammer","priceInformation":{"currentPriceIncVat":{"amount":8}}}}`)
		n, ok := FindBestEffortCandidate(tree)
		require.True(t, ok)
		assert.Equal(t, "Hammer", n["name"])
	})

	t.Run("blank values do not count", func(t *testing.T) {
		tree := decode(t, `{"name":"  ","url":"/p/1"}`)
		_, ok := FindBestEffortCandidate(tree)
		assert.False(t, ok)
	})

	t.Run("none", func(t *testing.T) {
		_, ok := FindBestEffortCandidate(decode(t, `{"a":[1,2,{"b":"c"}]}`))
		assert.False(t, ok)
	})
}

func TestPathAndString(t *testing.T) {
	tree := decode(t, `{"pageProps":{"pageData":{"products":[{"name":" Hammer "}]}}}`)

	products := Array(Path(tree, "pageProps", "pageData", "products"))
	require.Len(t, products, 1)
	assert.Equal(t, "Hammer", String(products[0], "title", "name"))
	assert.Nil(t, Path(tree, "pageProps", "missing", "products"))
	assert.Nil(t, Array("not an array"))
}
