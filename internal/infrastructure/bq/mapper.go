package bq

import (
	"encoding/json"
	"fmt"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/imageurl"
	"github.com/pricescout/backend/internal/infrastructure/scrape"
)

const fallbackTitle = "Top result"

// docsEnvelope is the already-normalized {response:{docs}} shape
type docsEnvelope struct {
	Response struct {
		Docs []scrape.Node `json:"docs"`
	} `json:"response"`
}

type mapper struct {
	origin string
	images imageurl.Resolver
}

// parse decodes a search.data body. The shapes are tried in order: a docs
// envelope, arrays of product-like objects inside the payload (or the first
// embedded JSON object when the body is script text), then the first object
// that looks like a product anywhere in the tree.
func (m mapper) parse(body []byte, limit int) ([]domain.ProviderResult, error) {
	var env docsEnvelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Response.Docs) > 0 {
		return m.fromDocs(env.Response.Docs, limit), nil
	}

	tree, ok := scrape.Decode(body)
	if !ok {
		tree, ok = scrape.FirstJSONObject(string(body))
	}
	if !ok {
		return nil, fmt.Errorf("%w: B&Q: no JSON detected", domain.ErrUpstreamFailure)
	}

	candidates := productArrays(tree)
	if len(candidates) == 0 {
		if n, ok := scrape.FindBestEffortCandidate(tree); ok {
			candidates = []scrape.Node{n}
		}
	}
	return m.fromScript(candidates, limit), nil
}

// productArrays gathers array members that carry both a link and a name
func productArrays(tree any) []scrape.Node {
	var out []scrape.Node
	for _, arr := range scrape.CollectArrays(tree, scrape.Unlimited) {
		for _, item := range scrape.Array(arr) {
			if scrape.Has(item, "productUrl", "url") && scrape.Has(item, "title", "name") {
				out = append(out, item)
			}
		}
	}
	return out
}

func (m mapper) fromDocs(docs []scrape.Node, limit int) []domain.ProviderResult {
	docs = capped(docs, limit)
	results := make([]domain.ProviderResult, 0, len(docs))
	for _, d := range docs {
		results = append(results, domain.ProviderResult{
			Retailer: domain.RetailerBQ,
			Title:    titleOf(d),
			Price:    scrape.ExtractPrice(d["price"]),
			URL:      domain.StringPtr(scrape.EnsureAbsolute(scrape.String(d, "url"), m.origin)),
			ImageURL: domain.StringPtr(m.images.Resolve(d, "imageUrl", "image", "thumbnail")),
		})
	}
	return results
}

func (m mapper) fromScript(items []scrape.Node, limit int) []domain.ProviderResult {
	items = capped(items, limit)
	results := make([]domain.ProviderResult, 0, len(items))
	for _, p := range items {
		price := scrape.ExtractPrice(p["price"])
		if price == nil {
			price = scrape.ExtractPrice(p["priceValue"])
		}
		results = append(results, domain.ProviderResult{
			Retailer: domain.RetailerBQ,
			Title:    titleOf(p),
			Price:    price,
			URL:      domain.StringPtr(scrape.EnsureAbsolute(scrape.String(p, "productUrl", "url", "href"), m.origin)),
			ImageURL: domain.StringPtr(m.images.Resolve(p, "image", "imageUrl", "thumbnail")),
		})
	}
	return results
}

func (m mapper) fromItemList(products []scrape.LDProduct, limit int) []domain.ProviderResult {
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	results := make([]domain.ProviderResult, 0, len(products))
	for _, p := range products {
		title := p.Name
		if title == "" {
			title = fallbackTitle
		}
		results = append(results, domain.ProviderResult{
			Retailer: domain.RetailerBQ,
			Title:    title,
			Price:    scrape.ExtractPrice(p.Price),
			URL:      domain.StringPtr(scrape.EnsureAbsolute(p.URL, m.origin)),
			ImageURL: domain.StringPtr(m.images.Selector.Apply(imageurl.Normalize(p.Image, m.origin))),
		})
	}
	return results
}

func titleOf(n scrape.Node) string {
	if t := scrape.String(n, "title", "name"); t != "" {
		return t
	}
	return fallbackTitle
}

func capped(items []scrape.Node, limit int) []scrape.Node {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
