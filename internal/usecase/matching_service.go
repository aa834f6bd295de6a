package usecase

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"

	"github.com/pricescout/backend/internal/domain"
)

var digitsPattern = regexp.MustCompile(`\d+`)

// Default grouping parameters
const (
	defaultThreshold = 0.5
	minTermLength    = 3
)

// stopWords are generic hardware-listing words that say nothing about which product it is
var stopWords = map[string]bool{
	// Connectives
	"the": true, "and": true, "for": true, "with": true,
	// Bundling
	"set": true, "pack": true, "kit": true, "tool": true, "tools": true,
	// Marketing / grade
	"professional": true, "pro": true, "premium": true, "standard": true,
	"basic": true, "deluxe": true, "heavy": true, "duty": true,
	// Placement
	"diy": true, "home": true, "garden": true, "indoor": true, "outdoor": true,
	// Colours and finishes
	"black": true, "white": true, "red": true, "blue": true, "green": true,
	"yellow": true, "orange": true, "silver": true, "gold": true, "chrome": true,
}

// Weights holds the per-signal contribution to a similarity score
type Weights struct {
	Term        float64
	Spec        float64
	Partial     float64
	Levenshtein float64
	Numbers     float64
}

// DefaultWeights favours measurement tokens, then shared words
func DefaultWeights() Weights {
	return Weights{Term: 0.25, Spec: 0.35, Partial: 0.20, Levenshtein: 0.15, Numbers: 0.05}
}

// MatchConfig holds configuration for the matching service
type MatchConfig struct {
	Threshold    float64
	Weights      Weights
	SpecPatterns []SpecPattern
	Logger       *slog.Logger
}

// MatchingService scores title similarity and clusters results into product groups
type MatchingService struct {
	threshold float64
	weights   Weights
	patterns  []SpecPattern
	logger    *slog.Logger
}

// NewMatchingService creates a new matching service with the given configuration
func NewMatchingService(config MatchConfig) *MatchingService {
	threshold := config.Threshold
	if threshold <= 0 || threshold >= 1 {
		threshold = defaultThreshold
	}

	weights := config.Weights
	if weights == (Weights{}) {
		weights = DefaultWeights()
	}

	patterns := config.SpecPatterns
	if patterns == nil {
		patterns = DefaultSpecPatterns()
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &MatchingService{
		threshold: threshold,
		weights:   weights,
		patterns:  patterns,
		logger:    logger,
	}
}

// Threshold returns the score a result must exceed to join an existing group
func (s *MatchingService) Threshold() float64 {
	return s.threshold
}

// titleFeatures is everything the scorer needs from one normalized title
type titleFeatures struct {
	norm    string
	length  int
	terms   map[string]bool
	specs   map[string]bool
	numbers map[string]bool
}

func (s *MatchingService) features(normalized string) titleFeatures {
	f := titleFeatures{
		norm:    normalized,
		length:  utf8.RuneCountInString(normalized),
		terms:   make(map[string]bool),
		specs:   extractSpecs(normalized, s.patterns),
		numbers: make(map[string]bool),
	}
	for _, w := range strings.Fields(normalized) {
		if utf8.RuneCountInString(w) >= minTermLength && !stopWords[w] {
			f.terms[w] = true
		}
	}
	for _, n := range digitsPattern.FindAllString(normalized, -1) {
		f.numbers[n] = true
	}
	return f
}

// Score returns the similarity of two product titles in [0,1].
// Titles equal after normalization score 1; titles with no shared words,
// no shared measurements and no substring-related words score 0.
func (s *MatchingService) Score(a, b string) float64 {
	return s.compare(s.features(NormalizeTitle(a)), s.features(NormalizeTitle(b)))
}

func (s *MatchingService) compare(a, b titleFeatures) float64 {
	if a.norm == b.norm {
		return 1.0
	}

	termCommon, termUnion := overlap(a.terms, b.terms)
	specCommon, specUnion := overlap(a.specs, b.specs)
	if termUnion == 0 && specUnion == 0 {
		return 0
	}

	partialA := partialMatches(a.terms, b.terms)
	partialB := partialMatches(b.terms, a.terms)
	if termCommon == 0 && specCommon == 0 && partialA == 0 && partialB == 0 {
		return 0
	}

	var termSim, specSim, partialSim, numberSim float64
	if termUnion > 0 {
		termSim = float64(termCommon) / float64(termUnion)
	}
	if specUnion > 0 {
		specSim = float64(specCommon) / float64(specUnion)
	}
	if larger := max(len(a.terms), len(b.terms)); larger > 0 {
		partialSim = float64(partialA+partialB) / float64(2*larger)
	}
	if len(a.numbers) > 0 && len(b.numbers) > 0 {
		shared, _ := overlap(a.numbers, b.numbers)
		numberSim = float64(shared) / float64(max(len(a.numbers), len(b.numbers)))
	}

	longer := max(a.length, b.length)
	levSim := float64(longer-matchr.Levenshtein(a.norm, b.norm)) / float64(longer)

	score := termSim*s.weights.Term +
		specSim*s.weights.Spec +
		partialSim*s.weights.Partial +
		levSim*s.weights.Levenshtein +
		numberSim*s.weights.Numbers

	return min(max(score, 0), 1.0)
}

// Group clusters results greedily in input order. Each result joins the
// best-scoring existing group when that score exceeds the threshold, otherwise
// it opens a new group keyed by its own normalized title.
func (s *MatchingService) Group(ctx context.Context, results []domain.ProviderResult) (domain.ProductGroups, error) {
	groups, _, err := s.Cluster(ctx, results)
	return groups, err
}

// Cluster is Group that also reports, for each input result, the index of its group
func (s *MatchingService) Cluster(ctx context.Context, results []domain.ProviderResult) (domain.ProductGroups, []int, error) {
	groups := make(domain.ProductGroups, 0)
	keys := make([]titleFeatures, 0)
	assigned := make([]int, len(results))

	for n, r := range results {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		f := s.features(NormalizeTitle(r.Title))

		best, bestScore := -1, 0.0
		for i := range keys {
			if score := s.compare(f, keys[i]); score > bestScore {
				best, bestScore = i, score
			}
		}

		if best >= 0 && bestScore > s.threshold {
			groups[best].Members = append(groups[best].Members, r)
			assigned[n] = best
			s.logger.Debug("grouped result",
				"retailer", r.Retailer, "title", r.Title, "group", groups[best].Key, "score", bestScore)
			continue
		}

		keys = append(keys, f)
		groups = append(groups, domain.ProductGroup{Key: f.norm, Members: []domain.ProviderResult{r}})
		assigned[n] = len(groups) - 1
	}

	return groups, assigned, nil
}

// overlap returns the shared and total distinct token counts of two sets
func overlap(a, b map[string]bool) (common, union int) {
	for t := range a {
		if b[t] {
			common++
		}
	}
	return common, len(a) + len(b) - common
}

// partialMatches counts terms in a that contain, or are contained in, some term of b
func partialMatches(a, b map[string]bool) int {
	n := 0
	for t1 := range a {
		for t2 := range b {
			if strings.Contains(t1, t2) || strings.Contains(t2, t1) {
				n++
				break
			}
		}
	}
	return n
}
