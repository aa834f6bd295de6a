package usecase

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pricescout/backend/internal/domain"
)

// MaxTermLength caps the search term forwarded upstream, in characters
const MaxTermLength = 64

// Compiled regex patterns for query preprocessing
var (
	// Anything other than letters, digits, whitespace, hyphen and plus
	strictTermPattern = regexp.MustCompile(`[^\p{L}\p{N}\s\-+]`)

	// Multiple spaces cleanup
	multiSpacePattern = regexp.MustCompile(`\s+`)
)

// QueryPreprocessor cleans search terms before they reach a retailer
type QueryPreprocessor struct {
	logger *slog.Logger
}

// NewQueryPreprocessor creates a new query preprocessor
func NewQueryPreprocessor(logger *slog.Logger) *QueryPreprocessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryPreprocessor{logger: logger}
}

// CleanTerm trims the raw term and caps it at MaxTermLength characters.
// An empty result is rejected with ErrInvalidTerm.
func (p *QueryPreprocessor) CleanTerm(raw string) (string, error) {
	term := strings.TrimSpace(raw)
	if utf8.RuneCountInString(term) > MaxTermLength {
		term = strings.TrimSpace(string([]rune(term)[:MaxTermLength]))
	}
	if term == "" {
		return "", domain.ErrInvalidTerm
	}
	return term, nil
}

// TermFor applies the retailer-specific sanitising on top of a cleaned term.
// Screwfix and Toolstation reject punctuation in their search parameters, so
// it is replaced with spaces; if nothing survives the cleaned term is used as is.
func (p *QueryPreprocessor) TermFor(retailer domain.Retailer, term string) string {
	switch retailer {
	case domain.RetailerScrewfix, domain.RetailerToolstation:
	default:
		return term
	}

	sanitized := strictTermPattern.ReplaceAllString(term, " ")
	sanitized = strings.TrimSpace(multiSpacePattern.ReplaceAllString(sanitized, " "))
	if sanitized == "" {
		return term
	}

	if sanitized != term {
		p.logger.Debug("sanitized search term", "retailer", retailer, "input", term, "output", sanitized)
	}
	return sanitized
}

// CacheKey builds the aggregate cache key for a term and per-retailer limit
func (p *QueryPreprocessor) CacheKey(term string, limit int) string {
	return fmt.Sprintf("search:%s:%d", strings.ToLower(strings.Join(strings.Fields(term), " ")), limit)
}

// NormalizeTitle lowercases a product title, replaces punctuation with spaces and
// collapses whitespace. A '.' or '/' between two digits is kept so "2.5kg" and
// "1/2 inch" survive as measurements.
func NormalizeTitle(title string) string {
	runes := []rune(strings.ToLower(title))
	out := make([]rune, 0, len(runes))

	for i, r := range runes {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			out = append(out, r)
		case (r == '.' || r == '/') && i > 0 && i < len(runes)-1 &&
			unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]):
			out = append(out, r)
		default:
			out = append(out, ' ')
		}
	}

	return strings.Join(strings.Fields(string(out)), " ")
}
