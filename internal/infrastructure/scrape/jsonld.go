package scrape

import (
	stdhtml "html"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// LDProduct is one entry of a schema.org ItemList embedded in a page
type LDProduct struct {
	Name  string
	URL   string
	Image any
	Price any
}

// JSONLDItemList returns the products of the first ItemList found in the page's
// application/ld+json blocks. Malformed blocks are skipped.
func JSONLDItemList(html string) []LDProduct {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var out []LDProduct
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, ok := Decode([]byte(strings.TrimSpace(s.Text())))
		if !ok {
			return true
		}
		for _, list := range itemLists(v) {
			for _, el := range Array(list["itemListElement"]) {
				if p, ok := ldProduct(el); ok {
					out = append(out, p)
				}
			}
			if len(out) > 0 {
				return false
			}
		}
		return true
	})
	return out
}

func itemLists(v any) []Node {
	return CollectAll(v, 3, func(n Node) bool {
		t, _ := n["@type"].(string)
		return strings.EqualFold(t, "ItemList")
	})
}

func ldProduct(el Node) (LDProduct, bool) {
	item := el
	if inner, ok := el["item"].(map[string]any); ok {
		item = inner
	}
	if t, ok := item["@type"].(string); ok && !strings.EqualFold(t, "Product") {
		return LDProduct{}, false
	}
	p := LDProduct{
		Name:  String(item, "name"),
		URL:   firstNonEmpty(String(item, "url"), String(el, "url")),
		Image: item["image"],
	}
	if offers, ok := item["offers"].(map[string]any); ok {
		p.Price = offers["price"]
	} else if offers := Array(item["offers"]); len(offers) > 0 {
		p.Price = offers[0]["price"]
	}
	if p.Name == "" && p.URL == "" {
		return LDProduct{}, false
	}
	return p, true
}

// Anchor is a product link lifted from raw HTML
type Anchor struct {
	Href  string
	Text  string
	Price *float64
}

var anchorPricePattern = regexp.MustCompile(`£\s*([0-9]+(?:\.[0-9]{1,2})?)`)

// pricePadding is how far either side of an anchor to look for a price
const pricePadding = 400

// FirstProductAnchor finds the first link whose href contains marker and none of
// exclude, and reads a price from the surrounding markup. mailto and tel links
// are never considered.
func FirstProductAnchor(html, marker string, exclude ...string) (Anchor, bool) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Anchor{}, false
	}

	var a Anchor
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, _ := s.Attr("href")
		if !strings.Contains(href, marker) || strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") {
			return true
		}
		for _, ex := range exclude {
			if strings.Contains(href, ex) {
				return true
			}
		}
		a.Href = href
		a.Text = strings.Join(strings.Fields(s.Text()), " ")
		return false
	})
	if a.Href == "" {
		return Anchor{}, false
	}
	a.Price = priceNear(html, a.Href)
	return a, true
}

// priceNear looks for a price around the anchor's href. The href is entity
// decoded by the parser, so the raw page is searched for its escaped forms too.
func priceNear(html, href string) *float64 {
	idx, n := -1, 0
	for _, form := range []string{href, strings.ReplaceAll(href, "&", "&amp;"), stdhtml.EscapeString(href)} {
		if idx = strings.Index(html, form); idx >= 0 {
			n = len(form)
			break
		}
	}
	if idx < 0 {
		return nil
	}
	lo := max(0, idx-pricePadding)
	hi := min(len(html), idx+n+pricePadding)
	m := anchorPricePattern.FindStringSubmatch(html[lo:hi])
	if m == nil {
		return nil
	}
	return ExtractPrice(m[1])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
