package usecase

import (
	"regexp"
	"strings"
)

// SpecPattern recognises one kind of measurement token in a normalized title.
// When Unit is set, the first capture group holds the quantity and the token
// becomes quantity+Unit, so "10pcs" and "10 pc" both read as "10pc".
// Without a Unit the whole match is the token.
type SpecPattern struct {
	Name    string
	Pattern *regexp.Regexp
	Unit    string
}

// DefaultSpecPatterns are tuned for UK hardware listings: piece counts, metric
// volume/length/mass, imperial inches, dimension products, wattage and voltage.
// Unit patterns carry no leading word boundary so "10x5mm" still yields "5mm".
func DefaultSpecPatterns() []SpecPattern {
	return []SpecPattern{
		{Name: "count", Pattern: regexp.MustCompile(`(\d+)\s?(?:pcs?|pieces?)\b`), Unit: "pc"},
		{Name: "volume-ml", Pattern: regexp.MustCompile(`(\d+(?:\.\d+)?)\s?(?:ml|millilitres?|milliliters?)\b`), Unit: "ml"},
		{Name: "volume-l", Pattern: regexp.MustCompile(`(\d+(?:\.\d+)?)\s?(?:l|ltrs?|litres?|liters?)\b`), Unit: "l"},
		{Name: "length", Pattern: regexp.MustCompile(`(\d+(?:\.\d+)?)\s?mm\b`), Unit: "mm"},
		{Name: "fraction-inch", Pattern: regexp.MustCompile(`(\d+/\d+)\s?inch(?:es)?\b`), Unit: "inch"},
		{Name: "decimal-inch", Pattern: regexp.MustCompile(`(\d+\.\d+)\s?inch(?:es)?\b`), Unit: "inch"},
		{Name: "dimensions", Pattern: regexp.MustCompile(`\b\d+(?:\.\d+)?\s?x\s?\d+(?:\.\d+)?(?:\s?x\s?\d+(?:\.\d+)?)?`)},
		{Name: "mass", Pattern: regexp.MustCompile(`(\d+(?:\.\d+)?)\s?(?:kgs?|kilos?|kilograms?)\b`), Unit: "kg"},
		{Name: "power", Pattern: regexp.MustCompile(`(\d+(?:\.\d+)?)\s?(?:w|watts?)\b`), Unit: "w"},
		{Name: "voltage", Pattern: regexp.MustCompile(`(\d+(?:\.\d+)?)\s?(?:v|volts?)\b`), Unit: "v"},
	}
}

// extractSpecs returns the distinct measurement tokens in a normalized title,
// with internal whitespace removed so "18 v" and "18v" compare equal
func extractSpecs(normalized string, patterns []SpecPattern) map[string]bool {
	specs := make(map[string]bool)
	for _, p := range patterns {
		for _, m := range p.Pattern.FindAllStringSubmatch(normalized, -1) {
			token := m[0]
			if p.Unit != "" && len(m) > 1 && m[1] != "" {
				token = m[1] + p.Unit
			}
			specs[strings.Join(strings.Fields(token), "")] = true
		}
	}
	return specs
}
