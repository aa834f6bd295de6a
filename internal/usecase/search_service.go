package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pricescout/backend/internal/domain"
)

// Search defaults
const (
	DefaultLimit          = 75
	MaxLimit              = 100
	defaultCacheTTL       = 10 * time.Minute
	defaultProviderBudget = 10 * time.Second
)

// SearchServiceConfig holds configuration for the search service
type SearchServiceConfig struct {
	CacheTTL       time.Duration
	DefaultTimeout time.Duration
	Timeouts       map[domain.Retailer]time.Duration
}

// SearchService fans a term out to every retailer, merges and groups the results
type SearchService struct {
	cache     domain.CacheRepository
	providers []domain.Provider
	matcher   *MatchingService
	terms     *QueryPreprocessor
	cacheTTL  time.Duration
	timeout   time.Duration
	timeouts  map[domain.Retailer]time.Duration
	logger    *slog.Logger
}

// cachedSearch is the cache payload: the merged list before grouping and sorting
type cachedSearch struct {
	Results   []domain.ProviderResult  `json:"results"`
	Retailers []domain.RetailerSummary `json:"retailers"`
}

// NewSearchService creates a new search service with dependencies.
// A nil cache disables caching. Providers are queried concurrently and merged in slice order.
func NewSearchService(
	cache domain.CacheRepository,
	providers []domain.Provider,
	matcher *MatchingService,
	config SearchServiceConfig,
	logger *slog.Logger,
) *SearchService {
	if logger == nil {
		logger = slog.Default()
	}
	if matcher == nil {
		matcher = NewMatchingService(MatchConfig{Logger: logger})
	}

	cacheTTL := config.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = defaultCacheTTL
	}

	timeout := config.DefaultTimeout
	if timeout <= 0 {
		timeout = defaultProviderBudget
	}

	return &SearchService{
		cache:     cache,
		providers: providers,
		matcher:   matcher,
		terms:     NewQueryPreprocessor(logger),
		cacheTTL:  cacheTTL,
		timeout:   timeout,
		timeouts:  config.Timeouts,
		logger:    logger,
	}
}

// Retailers lists the retailers this service queries, in merge order
func (s *SearchService) Retailers() []domain.Retailer {
	out := make([]domain.Retailer, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, p.Retailer())
	}
	return out
}

// Search runs a cross-retailer search.
// Flow: clean term -> check cache -> fan out -> cache -> group -> dedupe/sort -> return
func (s *SearchService) Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error) {
	term, err := s.terms.CleanTerm(req.Term)
	if err != nil {
		return nil, err
	}
	limit := ClampLimit(req.Limit)
	started := time.Now()

	cacheKey := s.terms.CacheKey(term, limit)

	merged, cached := s.getFromCache(ctx, cacheKey)
	if !cached {
		merged, err = s.fanOut(ctx, term, limit)
		if err != nil {
			return nil, err
		}
		if merged.cacheable() {
			s.setInCache(ctx, cacheKey, merged)
		}
	}

	groups, assigned, err := s.matcher.Cluster(ctx, merged.Results)
	if err != nil {
		return nil, err
	}

	resp := &domain.SearchResponse{
		Term:      term,
		Results:   present(merged.Results, groups, assigned, req.Dedupe),
		Groups:    groups.Summarize(),
		Retailers: merged.Retailers,
		Cached:    cached,
	}
	sortResults(resp.Results, req.Sort)

	s.logger.Info("search completed",
		"term", term,
		"results", len(resp.Results),
		"groups", len(resp.Groups),
		"cached", cached,
		"duration", time.Since(started))

	return resp, nil
}

// SearchRetailer queries a single retailer and returns its normalized results.
// Errors are returned rather than absorbed.
func (s *SearchService) SearchRetailer(ctx context.Context, retailer domain.Retailer, rawTerm string, limit int) ([]domain.ProviderResult, error) {
	term, err := s.terms.CleanTerm(rawTerm)
	if err != nil {
		return nil, err
	}

	for _, p := range s.providers {
		if p.Retailer() == retailer {
			return s.searchOne(ctx, p, term, ClampLimit(limit))
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrUnknownRetailer, retailer)
}

// ClampLimit applies the per-retailer default and ceiling
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}

// fanOut queries every provider concurrently. A provider failure is logged and
// recorded in its summary; only a failure of every provider is returned.
func (s *SearchService) fanOut(ctx context.Context, term string, limit int) (cachedSearch, error) {
	perProvider := make([][]domain.ProviderResult, len(s.providers))
	summaries := make([]domain.RetailerSummary, len(s.providers))
	errs := make([]error, len(s.providers))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range s.providers {
		g.Go(func() error {
			summaries[i] = domain.RetailerSummary{Retailer: p.Retailer()}

			results, err := s.searchOne(gctx, p, term, limit)
			if err != nil {
				errs[i] = err
				summaries[i].Error = err.Error()
				s.logger.Warn("retailer search failed", "retailer", p.Retailer(), "term", term, "error", err)
				return nil
			}

			perProvider[i] = results
			if len(results) == 1 && results[0].IsPlaceholder() {
				summaries[i].Placeholder = true
			} else {
				summaries[i].Count = len(results)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return cachedSearch{}, err
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if len(s.providers) > 0 && failed == len(s.providers) {
		return cachedSearch{}, fmt.Errorf("%w: %w", domain.ErrAllProvidersFailed, errors.Join(errs...))
	}

	merged := make([]domain.ProviderResult, 0)
	for _, results := range perProvider {
		merged = append(merged, results...)
	}
	return cachedSearch{Results: merged, Retailers: summaries}, nil
}

// searchOne calls a single provider within its time budget
func (s *SearchService) searchOne(ctx context.Context, p domain.Provider, term string, limit int) (results []domain.ProviderResult, err error) {
	retailer := p.Retailer()

	budget := s.timeout
	if t, ok := s.timeouts[retailer]; ok && t > 0 {
		budget = t
	}
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			results = nil
			err = fmt.Errorf("%w: %s provider panicked: %v", domain.ErrUpstreamFailure, retailer, r)
		}
	}()

	results, err = p.Search(ctx, s.terms.TermFor(retailer, term), limit)
	if err != nil {
		return nil, err
	}
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// cacheable is true only for complete outcomes: no retailer failed and at
// least one returned real products. A partial outcome would replay the
// failure for the whole TTL.
func (c cachedSearch) cacheable() bool {
	found := false
	for _, r := range c.Retailers {
		if r.Failed() {
			return false
		}
		if r.Count > 0 {
			found = true
		}
	}
	return found
}

func (s *SearchService) getFromCache(ctx context.Context, key string) (cachedSearch, bool) {
	if s.cache == nil {
		return cachedSearch{}, false
	}

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, domain.ErrCacheMiss) {
			s.logger.Warn("cache read failed", "key", key, "error", err)
		}
		return cachedSearch{}, false
	}

	var out cachedSearch
	if err := json.Unmarshal(data, &out); err != nil {
		s.logger.Warn("discarding unreadable cache entry", "key", key, "error", err)
		return cachedSearch{}, false
	}
	return out, true
}

func (s *SearchService) setInCache(ctx context.Context, key string, value cachedSearch) {
	if s.cache == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		s.logger.Warn("cache encode failed", "key", key, "error", err)
		return
	}
	if err := s.cache.Set(ctx, key, data, s.cacheTTL); err != nil {
		// Log but don't fail if caching fails
		s.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// present annotates results with their group. With dedupe only the cheapest
// member of each group is kept, in group order; unpriced groups keep their first member.
func present(results []domain.ProviderResult, groups domain.ProductGroups, assigned []int, dedupe bool) []domain.GroupedResult {
	annotate := func(r domain.ProviderResult, g domain.ProductGroup) domain.GroupedResult {
		low := g.MinPrice()
		return domain.GroupedResult{
			ProviderResult: r,
			GroupKey:       g.Key,
			Cheapest:       len(g.Members) > 1 && r.Price != nil && low != nil && *r.Price == *low,
		}
	}

	if dedupe {
		out := make([]domain.GroupedResult, 0, len(groups))
		for _, g := range groups {
			out = append(out, annotate(g.SortedByPrice()[0], g))
		}
		return out
	}

	out := make([]domain.GroupedResult, 0, len(results))
	for i, r := range results {
		out = append(out, annotate(r, groups[assigned[i]]))
	}
	return out
}

// sortResults orders results in place; unpriced results always sort last
func sortResults(results []domain.GroupedResult, order domain.SortOrder) {
	switch order {
	case domain.SortPriceLow:
		sort.SliceStable(results, func(i, j int) bool {
			return domain.PriceLess(results[i].ProviderResult, results[j].ProviderResult)
		})
	case domain.SortPriceHigh:
		sort.SliceStable(results, func(i, j int) bool {
			a, b := results[i].Price, results[j].Price
			switch {
			case a == nil:
				return false
			case b == nil:
				return true
			default:
				return *a > *b
			}
		})
	}
}
