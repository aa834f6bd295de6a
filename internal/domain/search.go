package domain

import "fmt"

// SortOrder controls how aggregate results are ordered
type SortOrder string

const (
	SortRelevance SortOrder = "relevance"
	SortPriceLow  SortOrder = "price-low"
	SortPriceHigh SortOrder = "price-high"
)

// ParseSortOrder accepts an empty string as relevance
func ParseSortOrder(s string) (SortOrder, error) {
	switch SortOrder(s) {
	case "", SortRelevance:
		return SortRelevance, nil
	case SortPriceLow, SortPriceHigh:
		return SortOrder(s), nil
	}
	return "", fmt.Errorf("unknown sort order %q", s)
}

// SearchRequest is a cross-retailer search
type SearchRequest struct {
	Term   string
	Limit  int // per retailer
	Sort   SortOrder
	Dedupe bool // keep only the cheapest member of each group
}

// RetailerSummary reports how one retailer fared during a search
type RetailerSummary struct {
	Retailer    Retailer `json:"retailer"`
	Count       int      `json:"count"`
	Placeholder bool     `json:"placeholder"`
	Error       string   `json:"error,omitempty"`
}

// Failed reports whether the retailer produced nothing usable
func (s RetailerSummary) Failed() bool {
	return s.Error != ""
}

// GroupedResult is a result annotated with the equivalence group it landed in
type GroupedResult struct {
	ProviderResult
	GroupKey string `json:"groupKey"`
	Cheapest bool   `json:"cheapest"`
}

// GroupSummary describes one equivalence group
type GroupSummary struct {
	Key       string     `json:"key"`
	Size      int        `json:"size"`
	MinPrice  *float64   `json:"minPrice"`
	Retailers []Retailer `json:"retailers"`
}

// SearchResponse is the aggregate result of a cross-retailer search
type SearchResponse struct {
	Term      string            `json:"term"`
	Results   []GroupedResult   `json:"results"`
	Groups    []GroupSummary    `json:"groups"`
	Retailers []RetailerSummary `json:"retailers"`
	Cached    bool              `json:"cached"`
}

// Summarize describes every group in order
func (gs ProductGroups) Summarize() []GroupSummary {
	out := make([]GroupSummary, 0, len(gs))
	for _, g := range gs {
		out = append(out, GroupSummary{
			Key:       g.Key,
			Size:      len(g.Members),
			MinPrice:  g.MinPrice(),
			Retailers: g.Retailers(),
		})
	}
	return out
}
