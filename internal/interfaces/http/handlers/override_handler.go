package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/biomarker-engine/internal/infrastructure/database/postgres/repositories"
	"github.com/turtacn/biomarker-engine/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/biomarker-engine/internal/intelligence/normalizer"
	"github.com/turtacn/biomarker-engine/pkg/errors"
)

// HeaderActor names the operator recorded as created_by.
const HeaderActor = "X-Actor"

// OverrideStore is the admin side of the override repository.
type OverrideStore interface {
	ListOverrides(ctx context.Context) ([]repositories.Override, error)
	UpsertOverride(ctx context.Context, o repositories.Override, createdBy string) error
	DeleteOverride(ctx context.Context, name string) error
}

// OverrideHandler maintains category overrides.  Every change clears the
// shared and local classification caches.
type OverrideHandler struct {
	store   OverrideStore
	shared  SharedCacheInvalidator
	onWrite func()
	logger  logging.Logger
}

// NewOverrideHandler creates an OverrideHandler.  shared and onWrite may be nil.
func NewOverrideHandler(store OverrideStore, shared SharedCacheInvalidator, onWrite func(), logger logging.Logger) *OverrideHandler {
	return &OverrideHandler{store: store, shared: shared, onWrite: onWrite, logger: logging.OrNop(logger).Named("handlers")}
}

// RegisterRoutes mounts the handler under api.
func (h *OverrideHandler) RegisterRoutes(api *gin.RouterGroup) {
	g := api.Group("/overrides")
	g.GET("", h.List)
	g.PUT("/:name", h.Upsert)
	g.DELETE("/:name", h.Delete)
}

// List handles GET /api/v1/overrides.
func (h *OverrideHandler) List(c *gin.Context) {
	out, err := h.store.ListOverrides(c.Request.Context())
	if err != nil {
		writeAppError(c, err)
		return
	}
	if out == nil {
		out = []repositories.Override{}
	}
	c.JSON(http.StatusOK, gin.H{"overrides": out})
}

// UpsertOverrideRequest is the body of PUT /api/v1/overrides/:name.
type UpsertOverrideRequest struct {
	Category     string `json:"category"`
	DisplayOrder int    `json:"display_order"`
}

// Upsert handles PUT /api/v1/overrides/:name.  The category is stored as a
// category key.
func (h *OverrideHandler) Upsert(c *gin.Context) {
	var req UpsertOverrideRequest
	if !bindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Category) == "" {
		writeAppError(c, errors.InvalidParam("category is required"))
		return
	}
	o := repositories.Override{
		BiomarkerName: c.Param("name"),
		Category:      normalizer.NormalizeCategory(req.Category),
		DisplayOrder:  req.DisplayOrder,
	}
	if err := h.store.UpsertOverride(c.Request.Context(), o, c.GetHeader(HeaderActor)); err != nil {
		writeAppError(c, err)
		return
	}
	h.invalidate(c.Request.Context())
	c.JSON(http.StatusOK, o)
}

// Delete handles DELETE /api/v1/overrides/:name.
func (h *OverrideHandler) Delete(c *gin.Context) {
	if err := h.store.DeleteOverride(c.Request.Context(), c.Param("name")); err != nil {
		writeAppError(c, err)
		return
	}
	h.invalidate(c.Request.Context())
	c.Status(http.StatusNoContent)
}

func (h *OverrideHandler) invalidate(ctx context.Context) {
	if h.shared != nil {
		if _, err := h.shared.Invalidate(ctx); err != nil {
			h.logger.Warn("shared cache invalidation failed", logging.Err(err))
		}
	}
	if h.onWrite != nil {
		h.onWrite()
	}
}
