package bq

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/imageurl"
	"github.com/pricescout/backend/internal/infrastructure/scrape"
)

func testMapper() mapper {
	return mapper{
		origin: "https://www.diy.com",
		images: imageurl.Resolver{Origin: "https://www.diy.com", Selector: imageurl.NewSelector("", nil)},
	}
}

func TestParse_Envelope(t *testing.T) {
	body := `{"response":{"docs":[
		{"title":"Drill A","price":10,"url":"/a","imageUrl":"https://cdn.example.com/a.jpg"},
		{"name":"Drill B","price":"n/a"},
		{"price":3}
	]}}`

	results, err := testMapper().parse([]byte(body), 10)

	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "Drill A", results[0].Title)
	assert.Equal(t, 10.0, *results[0].Price)
	assert.Equal(t, "https://www.diy.com/a", *results[0].URL)
	assert.Equal(t, "https://cdn.example.com/a.jpg", *results[0].ImageURL)

	assert.Equal(t, "Drill B", results[1].Title)
	assert.Nil(t, results[1].Price)
	assert.Nil(t, results[1].URL)

	assert.Equal(t, "Top result", results[2].Title)
}

func TestParse_RespectsLimit(t *testing.T) {
	body := `{"response":{"docs":[{"title":"1"},{"title":"2"},{"title":"3"}]}}`

	results, err := testMapper().parse([]byte(body), 2)

	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestParse_BestEffortCandidate(t *testing.T) {
	body := `self.__ctx = {"page":{"hero":{"name":"Ryobi Sander","priceInformation":{"value":45}, "href":"/p/sander"}}};`

	results, err := testMapper().parse([]byte(body), 5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Ryobi Sander", results[0].Title)
	assert.Equal(t, "https://www.diy.com/p/sander", *results[0].URL)
	assert.Nil(t, results[0].Price)
}

func TestParse_NoProducts(t *testing.T) {
	results, err := testMapper().parse([]byte(`{"meta":{"count":0}}`), 5)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestProductArrays(t *testing.T) {
	tree := map[string]any{
		"a": []any{
			map[string]any{"url": "/1", "name": "one"},
			map[string]any{"url": "/2"},
			"string",
		},
		"b": map[string]any{"c": []any{map[string]any{"productUrl": "/3", "title": "three"}}},
	}

	got := productArrays(tree)
	require.Len(t, got, 2)
	assert.Equal(t, "one", got[0]["name"])
	assert.Equal(t, "three", got[1]["title"])
}

func TestFromItemList_DefaultTitle(t *testing.T) {
	results := testMapper().fromItemList(nil, 5)
	assert.Empty(t, results)

	results = testMapper().fromItemList([]scrape.LDProduct{{URL: "/x"}}, 5)
	require.Len(t, results, 1)
	assert.Equal(t, "Top result", results[0].Title)
	assert.Equal(t, domain.RetailerBQ, results[0].Retailer)
}
