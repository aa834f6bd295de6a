package screwfix

import (
	"encoding/json"
	"fmt"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/imageurl"
	"github.com/pricescout/backend/internal/infrastructure/scrape"
)

const (
	fallbackTitle = "Top result"
	// minProducts is how many products the primary path must yield before
	// alternative locations are skipped
	minProducts = 3
)

// primaryPath is where search results normally live
var primaryPath = []string{"pageProps", "pageData", "products"}

// alternativePaths are probed, in order, when the primary path is short
var alternativePaths = [][]string{
	{"pageProps", "pageData", "results", "products"},
	{"pageProps", "results", "products"},
	{"results", "products"},
	{"pageProps", "pageData", "category", "products"},
	{"pageProps", "category", "products"},
	{"category", "products"},
}

// product is the subset of a Screwfix product record that results are built from
type product struct {
	Name            string
	LongDescription string
	DetailPageURL   string
	PriceIncVat     *float64
	PriceExVat      *float64
	raw             scrape.Node
}

type mapper struct {
	origin string
	images imageurl.Resolver
}

func (m mapper) parse(body []byte, limit int) ([]domain.ProviderResult, error) {
	var tree any
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, fmt.Errorf("%w: Screwfix page data: %v", domain.ErrUpstreamFailure, err)
	}

	nodes := collectProducts(tree)
	if limit > 0 && len(nodes) > limit {
		nodes = nodes[:limit]
	}

	results := make([]domain.ProviderResult, 0, len(nodes))
	for _, n := range nodes {
		results = append(results, m.toResult(decodeProduct(n)))
	}
	return results, nil
}

// collectProducts reads the primary path, then the alternative paths, then a
// scan of the whole tree, stopping once enough products are found. Products
// are de-duplicated across all sources.
func collectProducts(tree any) []scrape.Node {
	seen := make(map[string]bool)
	var out []scrape.Node
	add := func(nodes []scrape.Node) {
		for _, n := range nodes {
			key := dedupeKey(n)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, n)
		}
	}

	add(scrape.Array(scrape.Path(tree, primaryPath...)))
	if len(out) >= minProducts {
		return out
	}

	for _, path := range alternativePaths {
		add(scrape.Array(scrape.Path(tree, path...)))
	}
	if len(out) >= minProducts {
		return out
	}

	add(scrape.CollectAll(tree, scrape.Unlimited, looksLikeProduct))
	return out
}

func looksLikeProduct(n scrape.Node) bool {
	if scrape.Has(n, "detailPageUrl") && scrape.Has(n, "longDescription", "name") {
		return true
	}
	return scrape.Has(n, "skuId") && scrape.Has(n, "imageUrl", "priceInformation")
}

func dedupeKey(n scrape.Node) string {
	for _, k := range []string{"skuId", "detailPageUrl", "longDescription"} {
		switch v := n[k].(type) {
		case string:
			if v != "" {
				return k + ":" + v
			}
		case float64:
			return fmt.Sprintf("%s:%v", k, v)
		}
	}
	raw, _ := json.Marshal(n)
	return string(raw)
}

func decodeProduct(n scrape.Node) product {
	return product{
		Name:            scrape.String(n, "name"),
		LongDescription: scrape.String(n, "longDescription"),
		DetailPageURL:   scrape.String(n, "detailPageUrl"),
		PriceIncVat:     scrape.ExtractPrice(scrape.Path(n, "priceInformation", "currentPriceIncVat", "amount")),
		PriceExVat:      scrape.ExtractPrice(scrape.Path(n, "priceInformation", "currentPriceExVat", "amount")),
		raw:             n,
	}
}

func (m mapper) toResult(p product) domain.ProviderResult {
	title := p.LongDescription
	if title == "" {
		title = p.Name
	}
	if title == "" {
		title = fallbackTitle
	}

	price := p.PriceIncVat
	if price == nil {
		price = p.PriceExVat
	}

	return domain.ProviderResult{
		Retailer: domain.RetailerScrewfix,
		Title:    title,
		Price:    price,
		URL:      domain.StringPtr(scrape.EnsureAbsolute(p.DetailPageURL, m.origin)),
		ImageURL: domain.StringPtr(m.images.Resolve(p.raw, "imageUrl")),
	}
}
