package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/biomarker-engine/internal/application/validation"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/internal/intelligence/normalizer"
	"github.com/turtacn/biomarker-engine/pkg/errors"
	"github.com/turtacn/biomarker-engine/pkg/types/biomarker"
)

// MaxBatchNames bounds one resolve request.
const MaxBatchNames = 500

// SharedCacheInvalidator drops override lookups cached outside the process.
type SharedCacheInvalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// ValidationHandler serves validation, resolution, classification and cache
// endpoints.
type ValidationHandler struct {
	svc    validation.Service
	shared SharedCacheInvalidator
	logger logging.Logger
}

// NewValidationHandler creates a ValidationHandler.  shared may be nil.
func NewValidationHandler(svc validation.Service, shared SharedCacheInvalidator, logger logging.Logger) *ValidationHandler {
	return &ValidationHandler{svc: svc, shared: shared, logger: logging.OrNop(logger).Named("handlers")}
}

// RegisterRoutes mounts the handler under api.
func (h *ValidationHandler) RegisterRoutes(api *gin.RouterGroup) {
	api.POST("/validate", h.Validate)
	api.POST("/resolve", h.Resolve)
	api.GET("/categories", h.Categories)
	api.GET("/specification/stats", h.SpecificationStats)
	api.GET("/cache/stats", h.CacheStats)
	api.DELETE("/cache", h.ClearCache)
}

// Validate handles POST /api/v1/validate.  The body is a submission payload
// with English or Portuguese keys.
func (h *ValidationHandler) Validate(c *gin.Context) {
	var payload biomarker.Payload
	if !bindJSON(c, &payload) {
		return
	}
	res, err := h.svc.Validate(c.Request.Context(), &validation.ValidateInput{Payload: payload, Source: "http"})
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ResolveRequest resolves one name or a batch.
type ResolveRequest struct {
	Name  string   `json:"name"`
	Names []string `json:"names"`
}

// ResolveBatchResponse wraps batch results in input order.
type ResolveBatchResponse struct {
	Results []normalizer.Resolution `json:"results"`
}

// Resolve handles POST /api/v1/resolve.
func (h *ValidationHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if !bindJSON(c, &req) {
		return
	}
	ctx := c.Request.Context()

	if len(req.Names) > 0 {
		if len(req.Names) > MaxBatchNames {
			writeAppError(c, errors.InvalidParam("too many names").WithDetailf("at most %d names per request", MaxBatchNames))
			return
		}
		out, err := h.svc.ResolveBatch(ctx, req.Names)
		if err != nil {
			writeAppError(c, err)
			return
		}
		c.JSON(http.StatusOK, ResolveBatchResponse{Results: out})
		return
	}

	if req.Name == "" {
		writeAppError(c, errors.InvalidParam("name or names is required"))
		return
	}
	r, err := h.svc.Resolve(ctx, req.Name)
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// CategoryResponse is the classification of one name.
type CategoryResponse struct {
	Name        string                   `json:"name"`
	Category    string                   `json:"category"`
	DisplayName string                   `json:"display_name"`
	Order       int                      `json:"order"`
	Source      biomarker.CategorySource `json:"source"`
}

// CategoryInfo describes one category key.
type CategoryInfo struct {
	Key         string `json:"key"`
	DisplayName string `json:"display_name"`
	Order       int    `json:"order"`
}

// Categories handles GET /api/v1/categories.  With ?name= it classifies the
// name, using ?fallback= as the caller's stored category; without it lists
// the category keys.
func (h *ValidationHandler) Categories(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		out := make([]CategoryInfo, 0, len(normalizer.SimplifiedCategories))
		for _, key := range normalizer.SimplifiedCategories {
			out = append(out, CategoryInfo{Key: key, DisplayName: normalizer.CategoryDisplayNames[key], Order: normalizer.CategoryOrder(key)})
		}
		c.JSON(http.StatusOK, gin.H{"categories": out})
		return
	}

	r := h.svc.GetCategoryWithSource(c.Request.Context(), name, c.Query("fallback"))
	display := normalizer.CategoryDisplayNames[r.Category]
	if display == "" {
		display = r.Category
	}
	c.JSON(http.StatusOK, CategoryResponse{
		Name:        name,
		Category:    r.Category,
		DisplayName: display,
		Order:       normalizer.CategoryOrder(r.Category),
		Source:      r.Source,
	})
}

// SpecificationStats handles GET /api/v1/specification/stats.
func (h *ValidationHandler) SpecificationStats(c *gin.Context) {
	stats, err := h.svc.SpecificationStats(c.Request.Context())
	if err != nil {
		writeAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// CacheStats handles GET /api/v1/cache/stats.
func (h *ValidationHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.CacheStats())
}

// ClearCacheResponse reports what DELETE /api/v1/cache evicted.
type ClearCacheResponse struct {
	Cleared       bool  `json:"cleared"`
	SharedEvicted int64 `json:"shared_evicted"`
}

// ClearCache handles DELETE /api/v1/cache.  The shared cache is cleared
// first so the local cache cannot refill from stale entries.
func (h *ValidationHandler) ClearCache(c *gin.Context) {
	var evicted int64
	if h.shared != nil {
		n, err := h.shared.Invalidate(c.Request.Context())
		if err != nil {
			writeAppError(c, err)
			return
		}
		evicted = n
	}
	h.svc.ClearCache()
	h.logger.Info("caches cleared via API", logging.Int64("shared_evicted", evicted))
	c.JSON(http.StatusOK, ClearCacheResponse{Cleared: true, SharedEvicted: evicted})
}
