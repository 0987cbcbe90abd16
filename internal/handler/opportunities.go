package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/models"
	"github.com/Tomato007Tomats/crypto-analyst-agent/internal/repository"
)

const maxBodyBytes = 1 << 20

// Service is the opportunity workflow the routes delegate to.
type Service interface {
	List(ctx context.Context, filter repository.ListFilter) ([]models.Opportunity, error)
	Get(ctx context.Context, id string) (models.Opportunity, error)
	Create(ctx context.Context, c models.Candidate) (models.Opportunity, error)
	Update(ctx context.Context, id string, p models.Patch) (models.Opportunity, error)
	Delete(ctx context.Context, id string) error
}

type OpportunityHandler struct {
	Service Service
	Logger  *zap.Logger
}

// Register mounts the routes under /opportunities and /api/opportunities.
func (h *OpportunityHandler) Register(r gin.IRouter) {
	if h.Logger == nil {
		h.Logger = zap.NewNop()
	}
	for _, prefix := range []string{"/opportunities", "/api/opportunities"} {
		group := r.Group(prefix)
		group.GET("", h.listOpportunities)
		group.POST("", h.createOpportunity)
		group.GET("/:id", h.getOpportunity)
		group.PUT("/:id", h.updateOpportunity)
		group.DELETE("/:id", h.deleteOpportunity)
	}
}

// @Summary List opportunities
// @Tags opportunities
// @Produce json
// @Param status query string false "active, executed or discarded"
// @Param tags query string false "comma separated, any match"
// @Param min_confidence query number false "0..100"
// @Success 200 {object} listResponse
// @Failure 400 {object} errorResponse
// @Failure 500 {object} errorResponse
// @Failure 502 {object} errorResponse
// @Failure 504 {object} errorResponse
// @Router /opportunities [get]
func (h *OpportunityHandler) listOpportunities(c *gin.Context) {
	filter, detail := parseListFilter(c)
	if detail != "" {
		badRequest(c, msgInvalidQuery, detail)
		return
	}
	items, err := h.Service.List(c.Request.Context(), filter)
	if err != nil {
		status, _ := statusFor(err)
		if status < http.StatusInternalServerError {
			status = http.StatusInternalServerError
		}
		h.Logger.Error("list opportunities failed", zap.String("path", c.Request.URL.Path), errorField(err))
		c.JSON(status, errorResponse{Error: msgLoadFailed})
		return
	}
	if items == nil {
		items = []models.Opportunity{}
	}
	c.JSON(http.StatusOK, listResponse{Opportunities: items, Count: len(items)})
}

// @Summary Get an opportunity
// @Tags opportunities
// @Produce json
// @Param id path string true "opportunity id"
// @Success 200 {object} models.Opportunity
// @Failure 404 {object} errorResponse
// @Router /opportunities/{id} [get]
func (h *OpportunityHandler) getOpportunity(c *gin.Context) {
	o, err := h.Service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, h.Logger, "get", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Create an opportunity
// @Tags opportunities
// @Accept json
// @Produce json
// @Param body body models.Candidate true "new opportunity"
// @Success 201 {object} models.Opportunity
// @Failure 400 {object} errorResponse
// @Router /opportunities [post]
func (h *OpportunityHandler) createOpportunity(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	var in models.Candidate
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, msgInvalidBody, "")
		return
	}
	o, err := h.Service.Create(c.Request.Context(), in)
	if err != nil {
		fail(c, h.Logger, "create", err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// @Summary Update an opportunity
// @Description Accepts the changed fields either flat or wrapped as {"updates": {...}}.
// @Tags opportunities
// @Accept json
// @Produce json
// @Param id path string true "opportunity id"
// @Param body body models.Patch true "changed fields"
// @Success 200 {object} models.Opportunity
// @Failure 400 {object} errorResponse
// @Failure 404 {object} errorResponse
// @Router /opportunities/{id} [put]
func (h *OpportunityHandler) updateOpportunity(c *gin.Context) {
	p, ok := decodePatch(c.Request.Body)
	if !ok {
		badRequest(c, msgInvalidBody, "")
		return
	}
	o, err := h.Service.Update(c.Request.Context(), c.Param("id"), p)
	if err != nil {
		fail(c, h.Logger, "update", err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// @Summary Delete an opportunity
// @Tags opportunities
// @Param id path string true "opportunity id"
// @Success 204
// @Router /opportunities/{id} [delete]
func (h *OpportunityHandler) deleteOpportunity(c *gin.Context) {
	if err := h.Service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, h.Logger, "delete", err)
		return
	}
	c.Status(http.StatusNoContent)
}

// parseListFilter returns a non-empty detail when a query value is malformed.
func parseListFilter(c *gin.Context) (repository.ListFilter, string) {
	var filter repository.ListFilter

	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := models.Status(strings.ToLower(raw))
		if !status.Valid() {
			return filter, "status must be active, executed or discarded"
		}
		filter.Status = &status
	}

	if raw := strings.TrimSpace(c.Query("tags")); raw != "" {
		filter.Tags = models.CleanSet(strings.Split(raw, ","))
	}

	if raw := strings.TrimSpace(c.Query("min_confidence")); raw != "" {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return filter, "min_confidence must be a number"
		}
		v, _ := d.Float64()
		filter.MinConfidence = &v
	}
	return filter, ""
}

// decodePatch accepts a flat patch or the {"updates": {...}} envelope.
func decodePatch(body io.Reader) (models.Patch, bool) {
	raw, err := io.ReadAll(io.LimitReader(body, maxBodyBytes))
	if err != nil {
		return models.Patch{}, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return models.Patch{}, false
	}
	if inner, ok := fields["updates"]; ok && len(fields) == 1 {
		raw = inner
	}
	var p models.Patch
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&p); err != nil {
		return models.Patch{}, false
	}
	return p, true
}
