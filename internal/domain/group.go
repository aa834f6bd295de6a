package domain

import "sort"

// ProductGroup is a cluster of results judged to describe the same product.
// Key is the normalized title of the first member.
type ProductGroup struct {
	Key     string           `json:"key"`
	Members []ProviderResult `json:"members"`
}

// Cheapest returns the member with the lowest non-nil price.
// Members without a price never count as cheapest.
func (g ProductGroup) Cheapest() (ProviderResult, bool) {
	var (
		best  ProviderResult
		found bool
	)
	for _, m := range g.Members {
		if m.Price == nil {
			continue
		}
		if !found || *m.Price < *best.Price {
			best = m
			found = true
		}
	}
	return best, found
}

// MinPrice returns the group's lowest price, or nil if no member is priced
func (g ProductGroup) MinPrice() *float64 {
	if c, ok := g.Cheapest(); ok {
		return FloatPtr(*c.Price)
	}
	return nil
}

// Retailers returns the distinct retailers present in the group, in member order
func (g ProductGroup) Retailers() []Retailer {
	seen := make(map[Retailer]bool)
	var out []Retailer
	for _, m := range g.Members {
		if !seen[m.Retailer] {
			seen[m.Retailer] = true
			out = append(out, m.Retailer)
		}
	}
	return out
}

// SortedByPrice returns a copy of the members ordered by ascending price, unpriced last
func (g ProductGroup) SortedByPrice() []ProviderResult {
	out := make([]ProviderResult, len(g.Members))
	copy(out, g.Members)
	sort.SliceStable(out, func(i, j int) bool {
		return PriceLess(out[i], out[j])
	})
	return out
}

// ProductGroups keeps groups in creation order so clustering stays deterministic
type ProductGroups []ProductGroup

// Lookup finds the group with the given key
func (gs ProductGroups) Lookup(key string) (ProductGroup, bool) {
	for _, g := range gs {
		if g.Key == key {
			return g, true
		}
	}
	return ProductGroup{}, false
}

// CheapestPrices maps every priced group key to its minimum price
func (gs ProductGroups) CheapestPrices() map[string]float64 {
	out := make(map[string]float64, len(gs))
	for _, g := range gs {
		if p := g.MinPrice(); p != nil {
			out[g.Key] = *p
		}
	}
	return out
}

// Size returns the total number of members across all groups
func (gs ProductGroups) Size() int {
	n := 0
	for _, g := range gs {
		n += len(g.Members)
	}
	return n
}

// PriceLess orders results by ascending price with unpriced results last
func PriceLess(a, b ProviderResult) bool {
	switch {
	case a.Price == nil:
		return false
	case b.Price == nil:
		return true
	default:
		return *a.Price < *b.Price
	}
}
