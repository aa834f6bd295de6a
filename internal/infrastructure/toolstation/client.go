// Package toolstation searches Toolstation through its authenticated search API,
// falling back to the public search page when no session can be used.
package toolstation

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/imageurl"
	"github.com/pricescout/backend/internal/infrastructure/scrape"
)

const (
	apiPath    = "/api/search/crs"
	searchPath = "/search"
	searchKey  = "q"
	rows       = "24"
	fieldList  = "pid,slug,numberofreviews,title,brand,sale_price,promotion,thumb_image,sku_thumb_images,sku_swatch_images,sku_color_group,url,priceRange,description,formattedPrices,prices,ts_reviews,assettr,name_type,name_qty,variations,price,samedaydelivery,quantitymaximum,quantityminimum,quantitylabel,channel,group_title,sku_count,sku_group_price_range,sku_group_price_range_ex_vat,campaign"
	formType   = "application/x-www-form-urlencoded; charset=UTF-8"
	acceptAPI  = "application/json, text/plain, */*"
	refURL     = "https://www.google.com/"
	productDir = "/p/"
	helpDir    = "/help"
)

// Provider searches Toolstation
type Provider struct {
	client   *scrape.Client
	sessions domain.SessionSource
	mapper   mapper
	now      func() time.Time
}

// NewProvider creates a Toolstation provider authenticating through sessions
func NewProvider(client *scrape.Client, sessions domain.SessionSource, selector imageurl.Selector) *Provider {
	return &Provider{
		client:   client,
		sessions: sessions,
		mapper: mapper{
			origin: client.BaseURL(),
			images: imageurl.Resolver{Origin: client.BaseURL(), Selector: selector},
		},
		now: time.Now,
	}
}

// Retailer returns domain.RetailerToolstation
func (p *Provider) Retailer() domain.Retailer {
	return domain.RetailerToolstation
}

// Search queries the search API with a bearer session. When the API path fails
// the public search page is parsed instead. No products yields a placeholder.
func (p *Provider) Search(ctx context.Context, term string, limit int) ([]domain.ProviderResult, error) {
	logger := p.client.Logger()

	results, apiErr := p.searchAPI(ctx, term, limit)
	if apiErr == nil {
		return p.orPlaceholder(term, results), nil
	}
	logger.Warn("search API failed, parsing search page", "term", term, "error", apiErr)

	results, pageErr := p.searchPage(ctx, term, limit)
	if pageErr != nil {
		return nil, errors.Join(apiErr, pageErr)
	}
	return p.orPlaceholder(term, results), nil
}

func (p *Provider) orPlaceholder(term string, results []domain.ProviderResult) []domain.ProviderResult {
	if len(results) > 0 {
		return results
	}
	p.client.Logger().Info("no products, returning search page link", "term", term)
	return []domain.ProviderResult{domain.NewPlaceholder(domain.RetailerToolstation, term, p.searchPageURL(term))}
}

func (p *Provider) searchPageURL(term string) string {
	return scrape.SearchPageURL(p.client.BaseURL(), searchPath, searchKey, term)
}

// searchAPI calls the API with the current session, refreshing it once on an
// auth failure
func (p *Provider) searchAPI(ctx context.Context, term string, limit int) ([]domain.ProviderResult, error) {
	session, err := p.sessions.Current(ctx, term)
	if err != nil {
		return nil, err
	}

	body, err := p.callSearch(ctx, term, session)
	if domain.IsAuthFailure(err) {
		p.client.Logger().Info("search API rejected session, refreshing", "term", term, "error", err)
		session, err = p.sessions.Refresh(ctx, term, session)
		if err != nil {
			return nil, err
		}
		body, err = p.callSearch(ctx, term, session)
	}
	if err != nil {
		return nil, err
	}
	return p.mapper.parseDocs(body, limit)
}

// callSearch issues the API GET, retrying as a form POST when the GET is
// rejected with 400
func (p *Provider) callSearch(ctx context.Context, term string, session *domain.Session) ([]byte, error) {
	requestID := strconv.FormatInt(p.now().UnixMilli(), 10)

	query := p.baseParams(requestID, term)
	query.Set("fl", fieldList)
	query.Set("url", p.client.BaseURL())
	query.Set("ref_url", refURL)
	query.Set("search_type", "keyword")
	query.Set("skipCache", "true")
	query.Set("ts_visitor_id", uuid.NewString())

	resp, err := p.client.Do(ctx, resty.MethodGet, apiPath, func(r *resty.Request) {
		r.SetQueryParamsFromValues(query)
		p.apiHeaders(r, term, session)
		r.SetHeader("Accept", acceptAPI)
		r.SetHeader("Cache-Control", "no-cache")
		r.SetHeader("Pragma", "no-cache")
		r.SetHeader("Sec-Fetch-Dest", "empty")
		r.SetHeader("Sec-Fetch-Mode", "cors")
		r.SetHeader("Sec-Fetch-Site", "same-origin")
	})
	var status *domain.StatusError
	if !errors.As(err, &status) || status.Status != http.StatusBadRequest {
		if err != nil {
			return nil, err
		}
		return resp.Body(), nil
	}

	p.client.Logger().Debug("search API rejected GET, retrying as form POST", "term", term)
	resp, err = p.client.Do(ctx, resty.MethodPost, apiPath, func(r *resty.Request) {
		r.SetHeader("Content-Type", formType)
		r.SetBody(p.baseParams(requestID, term).Encode())
		p.apiHeaders(r, term, session)
		r.SetHeader("Accept", "application/json")
	})
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

func (p *Provider) baseParams(requestID, term string) url.Values {
	return url.Values{
		"request_id":              {requestID},
		"domain_key":              {"toolstation"},
		"view_id":                 {"gb"},
		"request_type":            {"search"},
		"stats_field":             {"price,channel"},
		"f.category.facet.prefix": {"/root,Home/"},
		"q":                       {term},
		"rows":                    {rows},
		"start":                   {"0"},
		"groupby":                 {"variant_group"},
	}
}

func (p *Provider) apiHeaders(r *resty.Request, term string, session *domain.Session) {
	r.SetHeader("Origin", p.client.BaseURL())
	r.SetHeader("X-Requested-With", "XMLHttpRequest")
	r.SetHeader("Referer", p.searchPageURL(term))
	r.SetAuthToken(session.Token)
	if session.CookieHeader != "" {
		r.SetHeader("Cookie", session.CookieHeader)
	}
}

// searchPage parses the public search page: structured data first, then the
// first product link in the markup
func (p *Provider) searchPage(ctx context.Context, term string, limit int) ([]domain.ProviderResult, error) {
	resp, err := p.client.Do(ctx, resty.MethodGet, searchPath, func(r *resty.Request) {
		r.SetQueryParam(searchKey, term)
		r.SetHeader("Accept", scrape.AcceptHTML)
	})
	if err != nil {
		return nil, err
	}

	html := resp.String()
	if products := scrape.JSONLDItemList(html); len(products) > 0 {
		return p.mapper.fromItemList(products, limit), nil
	}
	if a, ok := scrape.FirstProductAnchor(html, productDir, helpDir); ok {
		return []domain.ProviderResult{p.mapper.fromAnchor(a)}, nil
	}
	return nil, nil
}
