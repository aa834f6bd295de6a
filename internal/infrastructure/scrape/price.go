package scrape

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	priceNumberPattern = regexp.MustCompile(`[0-9]+(?:\.[0-9]{1,2})?`)
	thousandsPattern   = regexp.MustCompile(`(\d),(\d{3})`)
)

// ExtractPrice reads a price from a number, a nested {value: n} object or a string
// such as "£12.50 each". It returns nil when nothing numeric can be found.
func ExtractPrice(v any) *float64 {
	switch t := v.(type) {
	case nil:
		return nil
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return finite(float64(t))
	case int64:
		return finite(float64(t))
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil
		}
		return finite(f)
	case map[string]any:
		for _, key := range []string{"value", "amount"} {
			if inner, ok := t[key]; ok {
				return ExtractPrice(inner)
			}
		}
		return nil
	case string:
		return parsePriceString(t)
	}
	return nil
}

func parsePriceString(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for thousandsPattern.MatchString(s) {
		s = thousandsPattern.ReplaceAllString(s, "$1$2")
	}
	m := priceNumberPattern.FindString(s)
	if m == "" {
		return nil
	}
	f, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return nil
	}
	return finite(f)
}

func finite(f float64) *float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}
