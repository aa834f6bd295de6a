// Package bq searches B&Q (diy.com) through its search page structured data
// and the search.data route loader.
package bq

import (
	"context"
	"errors"

	"github.com/go-resty/resty/v2"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/imageurl"
	"github.com/pricescout/backend/internal/infrastructure/scrape"
)

const (
	searchPath     = "/search"
	searchDataPath = "/search.data"
	searchRoute    = "routes/search"
	acceptScript   = "text/x-script,application/json;q=0.9,*/*;q=0.8"
)

// Provider searches B&Q
type Provider struct {
	client *scrape.Client
	mapper mapper
}

// NewProvider creates a B&Q provider. Images on B&Q hosts are routed through selector.
func NewProvider(client *scrape.Client, selector imageurl.Selector) *Provider {
	return &Provider{
		client: client,
		mapper: mapper{
			origin: client.BaseURL(),
			images: imageurl.Resolver{Origin: client.BaseURL(), Selector: selector},
		},
	}
}

// Retailer returns domain.RetailerBQ
func (p *Provider) Retailer() domain.Retailer {
	return domain.RetailerBQ
}

// Search reads the ItemList embedded in the search page and falls back to the
// search.data endpoint when the page carries none.
func (p *Provider) Search(ctx context.Context, term string, limit int) ([]domain.ProviderResult, error) {
	logger := p.client.Logger()

	results, pageErr := p.searchPage(ctx, term, limit)
	if pageErr != nil {
		logger.Warn("search page failed, trying search.data", "term", term, "error", pageErr)
	} else if len(results) > 0 {
		logger.Debug("results from structured data", "term", term, "count", len(results))
		return results, nil
	}

	results, dataErr := p.searchData(ctx, term, limit)
	if dataErr != nil {
		if pageErr != nil {
			return nil, errors.Join(pageErr, dataErr)
		}
		return nil, dataErr
	}

	logger.Debug("results from search.data", "term", term, "count", len(results))
	return results, nil
}

func (p *Provider) searchPage(ctx context.Context, term string, limit int) ([]domain.ProviderResult, error) {
	resp, err := p.client.Do(ctx, resty.MethodGet, searchPath, func(r *resty.Request) {
		r.SetQueryParam("term", term)
		r.SetHeader("Accept", scrape.AcceptHTML)
		r.SetHeader("Referer", p.client.BaseURL()+"/")
	})
	if err != nil {
		return nil, err
	}
	return p.mapper.fromItemList(scrape.JSONLDItemList(resp.String()), limit), nil
}

func (p *Provider) searchData(ctx context.Context, term string, limit int) ([]domain.ProviderResult, error) {
	resp, err := p.client.Do(ctx, resty.MethodGet, searchDataPath, func(r *resty.Request) {
		r.SetQueryParam("term", term)
		r.SetQueryParam("_routes", searchRoute)
		r.SetHeader("Accept", acceptScript)
		r.SetHeader("Referer", scrape.SearchPageURL(p.client.BaseURL(), searchPath, "term", term))
	})
	if err != nil {
		return nil, err
	}
	return p.mapper.parse(resp.Body(), limit)
}
