package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/pricescout/backend/internal/domain"
	"github.com/pricescout/backend/internal/infrastructure/imageproxy"
)

// Version is reported by the health check
const Version = "1.0.0"

// SearchUsecase is the search behaviour the handlers depend on
type SearchUsecase interface {
	Search(ctx context.Context, req domain.SearchRequest) (*domain.SearchResponse, error)
	SearchRetailer(ctx context.Context, retailer domain.Retailer, term string, limit int) ([]domain.ProviderResult, error)
	Retailers() []domain.Retailer
}

// ImageFetcher fetches allow-listed images for the proxy endpoint
type ImageFetcher interface {
	Fetch(ctx context.Context, raw string) (imageproxy.Image, error)
}

// Handler holds dependencies for HTTP handlers
type Handler struct {
	search SearchUsecase
	images ImageFetcher
	logger *slog.Logger
}

// NewHandler creates a new HTTP handler. Nil dependencies make their endpoints answer 503.
func NewHandler(search SearchUsecase, images ImageFetcher, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{search: search, images: images, logger: logger}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	retailers := []domain.Retailer{}
	if h.search != nil {
		retailers = h.search.Retailers()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "pricescout",
		"version":   Version,
		"retailers": retailers,
	})
}

// Search handles GET /api/v1/search?term=&limit=&sort=&dedupe=
func (h *Handler) Search(c *gin.Context) {
	if h.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search service not configured"})
		return
	}

	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	sortOrder, err := domain.ParseSortOrder(c.Query("sort"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	dedupe := false
	if raw := c.Query("dedupe"); raw != "" {
		if dedupe, err = strconv.ParseBool(raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "dedupe must be a boolean"})
			return
		}
	}

	resp, err := h.search.Search(c.Request.Context(), domain.SearchRequest{
		Term:   c.Query("term"),
		Limit:  limit,
		Sort:   sortOrder,
		Dedupe: dedupe,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// RetailerSearch handles GET /api/v1/retailers/:retailer?term=&limit= and
// answers with the normalized {response:{docs:[...]}} envelope
func (h *Handler) RetailerSearch(c *gin.Context) {
	if h.search == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "search service not configured"})
		return
	}

	retailer, err := domain.RetailerFromSlug(c.Param("retailer"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown retailer " + strconv.Quote(c.Param("retailer"))})
		return
	}

	limit, ok := queryLimit(c)
	if !ok {
		return
	}

	results, err := h.search.SearchRetailer(c.Request.Context(), retailer, c.Query("term"), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, domain.NewDocsEnvelope(results))
}

// ImageProxy handles GET {image_proxy.path}?url=
func (h *Handler) ImageProxy(c *gin.Context) {
	if h.images == nil {
		c.String(http.StatusServiceUnavailable, "Image proxy not configured")
		return
	}

	raw := c.Query("url")
	if raw == "" {
		c.String(http.StatusBadRequest, "Missing url")
		return
	}

	img, err := h.images.Fetch(c.Request.Context(), raw)
	if err != nil {
		var upstream *imageproxy.UpstreamError
		switch {
		case errors.Is(err, domain.ErrInvalidURL):
			c.String(http.StatusBadRequest, "Invalid url")
		case errors.Is(err, domain.ErrHostNotAllowed):
			c.String(http.StatusForbidden, "Host not allowed")
		case errors.As(err, &upstream):
			body := upstream.Body
			if body == "" {
				body = "Upstream error"
			}
			c.Header("Cache-Control", "no-store")
			c.Header("X-Proxy-Url", upstream.URL)
			c.Data(upstream.Status, "text/plain", []byte(body))
		default:
			h.logger.Warn("image proxy failed", "url", raw, "error", err)
			c.Header("Cache-Control", "no-store")
			c.String(http.StatusBadGateway, "Upstream error")
		}
		return
	}

	c.Header("Cache-Control", "public, max-age=86400")
	c.Header("X-Proxy-Url", img.UpstreamURL)
	c.Data(http.StatusOK, img.ContentType, img.Body)
}

// queryLimit parses the optional limit parameter, writing a 400 when it is malformed
func queryLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return 0, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return 0, false
	}
	return limit, true
}

// writeError maps service errors onto HTTP statuses
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrInvalidTerm):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing term parameter. Usage: ?term=search_term"})
		return
	case errors.Is(err, domain.ErrUnknownRetailer):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrAllProvidersFailed), errors.Is(err, domain.ErrUpstreamFailure), errors.Is(err, domain.ErrNoSession):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	if status >= http.StatusInternalServerError {
		h.logger.Warn("request failed", "path", c.FullPath(), "status", status, "error", err)
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
