package toolstation

import (
	"encoding/json"
	"fmt"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/imageurl"
	"github.com/pricescout/backend/internal/infrastructure/scrape"
)

const fallbackTitle = "Top result"

// crsResponse is the search API envelope
type crsResponse struct {
	Response struct {
		Docs []crsDoc `json:"docs"`
	} `json:"response"`
}

type crsDoc struct {
	Title      string `json:"title"`
	GroupTitle string `json:"group_title"`
	SalePrice  any    `json:"sale_price"`
	Price      any    `json:"price"`
	URL        string `json:"url"`
	ThumbImage any    `json:"thumb_image"`
}

type mapper struct {
	origin string
	images imageurl.Resolver
}

func (m mapper) parseDocs(body []byte, limit int) ([]domain.ProviderResult, error) {
	var resp crsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: Toolstation search response: %v", domain.ErrUpstreamFailure, err)
	}

	docs := resp.Response.Docs
	if limit > 0 && len(docs) > limit {
		docs = docs[:limit]
	}
	results := make([]domain.ProviderResult, 0, len(docs))
	for _, d := range docs {
		results = append(results, m.fromDoc(d))
	}
	return results, nil
}

func (m mapper) fromDoc(d crsDoc) domain.ProviderResult {
	title := d.Title
	if title == "" {
		title = d.GroupTitle
	}
	if title == "" {
		title = fallbackTitle
	}

	price := scrape.ExtractPrice(d.SalePrice)
	if price == nil {
		price = scrape.ExtractPrice(d.Price)
	}

	return domain.ProviderResult{
		Retailer: domain.RetailerToolstation,
		Title:    title,
		Price:    price,
		URL:      domain.StringPtr(scrape.EnsureAbsolute(d.URL, m.origin)),
		ImageURL: domain.StringPtr(m.image(d.ThumbImage)),
	}
}

func (m mapper) fromItemList(products []scrape.LDProduct, limit int) []domain.ProviderResult {
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	results := make([]domain.ProviderResult, 0, len(products))
	for _, p := range products {
		results = append(results, m.fromDoc(crsDoc{
			Title:      p.Name,
			SalePrice:  p.Price,
			URL:        p.URL,
			ThumbImage: p.Image,
		}))
	}
	return results
}

func (m mapper) fromAnchor(a scrape.Anchor) domain.ProviderResult {
	title := a.Text
	if title == "" {
		title = fallbackTitle
	}
	return domain.ProviderResult{
		Retailer: domain.RetailerToolstation,
		Title:    title,
		Price:    a.Price,
		URL:      domain.StringPtr(scrape.EnsureAbsolute(a.Href, m.origin)),
	}
}

func (m mapper) image(raw any) string {
	return m.images.Selector.Apply(imageurl.Normalize(raw, m.origin))
}
