package domain

import (
	"fmt"
	"strings"
)

// Retailer identifies one of the upstream shops queried by a search
type Retailer string

const (
	RetailerBQ          Retailer = "B&Q"
	RetailerScrewfix    Retailer = "Screwfix"
	RetailerToolstation Retailer = "Toolstation"
)

// AllRetailers lists retailers in the order their results are merged
var AllRetailers = []Retailer{RetailerBQ, RetailerScrewfix, RetailerToolstation}

// Slug returns the URL path segment used for the retailer
func (r Retailer) Slug() string {
	switch r {
	case RetailerBQ:
		return "bq"
	case RetailerScrewfix:
		return "screwfix"
	case RetailerToolstation:
		return "toolstation"
	}
	return ""
}

// RetailerFromSlug resolves a URL path segment back to a retailer
func RetailerFromSlug(slug string) (Retailer, error) {
	for _, r := range AllRetailers {
		if r.Slug() == slug {
			return r, nil
		}
	}
	return "", ErrUnknownRetailer
}

// ProviderResult is a single normalized product listing from a retailer.
// Title is never empty. Price, URL and ImageURL are nil when unknown.
type ProviderResult struct {
	Retailer Retailer `json:"retailer"`
	Title    string   `json:"title"`
	Price    *float64 `json:"price"`
	URL      *string  `json:"url"`
	ImageURL *string  `json:"imageUrl"`
}

// HasPrice reports whether a numeric price was extracted
func (r ProviderResult) HasPrice() bool {
	return r.Price != nil
}

// DocsEnvelope is the {response:{docs:[...]}} shape returned at the per-retailer boundary
type DocsEnvelope struct {
	Response DocsResponse `json:"response"`
}

// DocsResponse wraps the docs list
type DocsResponse struct {
	Docs []ProviderResult `json:"docs"`
}

// NewDocsEnvelope wraps results, never producing a null docs list
func NewDocsEnvelope(results []ProviderResult) DocsEnvelope {
	if results == nil {
		results = []ProviderResult{}
	}
	return DocsEnvelope{Response: DocsResponse{Docs: results}}
}

// StringPtr returns a pointer to s, or nil for an empty string
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// FloatPtr returns a pointer to f
func FloatPtr(f float64) *float64 {
	return &f
}

// NewPlaceholder builds the single result returned when a retailer yields no products:
// an unpriced link to the retailer's own search page for term
func NewPlaceholder(retailer Retailer, term, searchURL string) ProviderResult {
	return ProviderResult{
		Retailer: retailer,
		Title:    fmt.Sprintf("Open %s results for %q", retailer, term),
		URL:      StringPtr(searchURL),
	}
}

// IsPlaceholder reports whether r was produced by NewPlaceholder
func (r ProviderResult) IsPlaceholder() bool {
	return r.Price == nil && r.ImageURL == nil && strings.HasPrefix(r.Title, fmt.Sprintf("Open %s results for ", r.Retailer))
}
