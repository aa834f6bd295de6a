// Package screwfix searches Screwfix through the Next.js data route behind its search page.
package screwfix

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/imageurl"
	"github.com/pricescout/backend/internal/infrastructure/scrape"
)

const (
	searchPath = "/search"
	searchKey  = "search"
	locale     = "en-GB"
)

var buildIDPattern = regexp.MustCompile(`"buildId":"([^"]+)"`)

// Provider searches Screwfix
type Provider struct {
	client *scrape.Client
	mapper mapper
}

// NewProvider creates a Screwfix provider
func NewProvider(client *scrape.Client, selector imageurl.Selector) *Provider {
	return &Provider{
		client: client,
		mapper: mapper{
			origin: client.BaseURL(),
			images: imageurl.Resolver{Origin: client.BaseURL(), Selector: selector},
		},
	}
}

// Retailer returns domain.RetailerScrewfix
func (p *Provider) Retailer() domain.Retailer {
	return domain.RetailerScrewfix
}

// Search resolves the current build id from the search page, fetches the page
// data JSON (following a category redirect if the search lands on one) and maps
// the products it carries. No products yields a single placeholder result.
func (p *Provider) Search(ctx context.Context, term string, limit int) ([]domain.ProviderResult, error) {
	logger := p.client.Logger()
	searchPage := p.searchPageURL(term)

	buildID, err := p.buildID(ctx, term)
	if err != nil {
		return nil, err
	}
	logger.Debug("resolved build id", "term", term, "build_id", buildID)

	body, err := p.pageData(ctx, p.dataPath(buildID, "search"), searchPage, url.Values{searchKey: {term}})
	if err != nil {
		return nil, err
	}

	if redirect := redirectTarget(body); redirect != "" {
		logger.Debug("following search redirect", "term", term, "path", redirect)
		body, err = p.pageData(ctx, p.dataPath(buildID, redirect), searchPage, nil)
		if err != nil {
			return nil, err
		}
	}

	results, err := p.mapper.parse(body, limit)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		logger.Info("no products, returning search page link", "term", term)
		return []domain.ProviderResult{domain.NewPlaceholder(domain.RetailerScrewfix, term, searchPage)}, nil
	}
	return results, nil
}

func (p *Provider) searchPageURL(term string) string {
	return scrape.SearchPageURL(p.client.BaseURL(), searchPath, searchKey, term)
}

func (p *Provider) dataPath(buildID, page string) string {
	return fmt.Sprintf("/_next/data/%s/%s/%s.json", buildID, locale, page)
}

// buildID reads the Next.js build id from the search page markup
func (p *Provider) buildID(ctx context.Context, term string) (string, error) {
	resp, err := p.client.Do(ctx, resty.MethodGet, searchPath, func(r *resty.Request) {
		r.SetQueryParam(searchKey, term)
		r.SetHeader("Accept", scrape.AcceptHTML)
		r.SetHeader("Cache-Control", "no-cache")
		r.SetHeader("Pragma", "no-cache")
		r.SetHeader("Upgrade-Insecure-Requests", "1")
		r.SetHeader("Referer", p.client.BaseURL()+"/")
	})
	if err != nil {
		return "", err
	}

	if id := ExtractBuildID(resp.String()); id != "" {
		return id, nil
	}
	return "", fmt.Errorf("%w: unable to determine Screwfix buildId", domain.ErrUpstreamFailure)
}

func (p *Provider) pageData(ctx context.Context, path, referer string, query url.Values) ([]byte, error) {
	resp, err := p.client.Do(ctx, resty.MethodGet, path, func(r *resty.Request) {
		if query != nil {
			r.SetQueryParamsFromValues(query)
		}
		r.SetHeader("Accept", scrape.AcceptJSON)
		r.SetHeader("Referer", referer)
	})
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// ExtractBuildID finds the Next.js build id in a page, first by pattern and
// then by decoding the __NEXT_DATA__ script
func ExtractBuildID(html string) string {
	if m := buildIDPattern.FindStringSubmatch(html); m != nil {
		return m[1]
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	var next struct {
		BuildID string `json:"buildId"`
	}
	if err := json.Unmarshal([]byte(doc.Find("script#__NEXT_DATA__").First().Text()), &next); err != nil {
		return ""
	}
	return next.BuildID
}

// redirectTarget returns the page path a search redirected to, without leading slashes
func redirectTarget(body []byte) string {
	var page struct {
		PageProps struct {
			Redirect string `json:"__N_REDIRECT"`
		} `json:"pageProps"`
	}
	if err := json.Unmarshal(body, &page); err != nil || page.PageProps.Redirect == "" {
		return ""
	}
	u, err := url.Parse(page.PageProps.Redirect)
	if err != nil {
		return ""
	}
	return strings.TrimLeft(u.Path, "/")
}
