package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/ajharbinger/rei-deal-drop/internal/errors"
	"github.com/ajharbinger/rei-deal-drop/internal/ingest"
	"github.com/ajharbinger/rei-deal-drop/internal/models"
	"github.com/ajharbinger/rei-deal-drop/internal/repository"
	"github.com/ajharbinger/rei-deal-drop/internal/services"
)

// DealHandler handles deal endpoints
type DealHandler struct {
	dealService   services.DealService
	exportService *services.DealExportService
}

// NewDealHandler creates a new deal handler
func NewDealHandler(dealService services.DealService, exportService *services.DealExportService) *DealHandler {
	return &DealHandler{dealService: dealService, exportService: exportService}
}

// SoldRequest records a realized sale
type SoldRequest struct {
	SoldPrice ingest.Number `json:"sold_price"`
}

// ImportRequest names a listing page to start a draft deal from
type ImportRequest struct {
	URL string `json:"url" binding:"required"`
}

// Analyze scores a deal form without saving it
func (h *DealHandler) Analyze(c *gin.Context) {
	var form ingest.DealForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	result, normalized, err := h.dealService.Analyze(form)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"result":          result,
		"effective_rehab": normalized.EffectiveRehab,
		"financials":      normalized.Financials,
		"timestamp":       now(),
	})
}

// CreateDeal saves and scores a new deal
func (h *DealHandler) CreateDeal(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var form ingest.DealForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	view, err := h.dealService.CreateDeal(c.Request.Context(), userID, form)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"deal": view, "timestamp": now()})
}

// ImportListing starts a draft deal from a listing page
func (h *DealHandler) ImportListing(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	view, err := h.dealService.ImportListing(c.Request.Context(), userID, req.URL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"deal": view, "timestamp": now()})
}

// ListDeals lists the caller's deals
func (h *DealHandler) ListDeals(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	filter, err := parseDealFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	views, err := h.dealService.ListDeals(c.Request.Context(), userID, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deals":     views,
		"count":     len(views),
		"timestamp": now(),
	})
}

// ExportDeals downloads the caller's deals as CSV or JSON. It accepts the
// same filters as ListDeals plus format; without a limit every matching deal
// is exported.
func (h *DealHandler) ExportDeals(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	filter, err := parseDealFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}
	if c.Query("limit") == "" {
		filter.Limit = 0
	}

	format := services.ExportFormat(c.DefaultQuery("format", string(services.FormatCSV)))
	data, err := h.exportService.ExportDeals(c.Request.Context(), userID, filter, format)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="deals-%s.%s"`, now().UTC().Format("20060102"), format))
	c.Data(http.StatusOK, format.ContentType(), data)
}

// GetDeal returns one of the caller's deals
func (h *DealHandler) GetDeal(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	view, err := h.dealService.GetDeal(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deal": view, "timestamp": now()})
}

// UpdateDeal replaces a deal's inputs
func (h *DealHandler) UpdateDeal(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var form ingest.DealForm
	if err := c.ShouldBindJSON(&form); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	view, err := h.dealService.UpdateDeal(c.Request.Context(), userID, id, form)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deal": view, "timestamp": now()})
}

// DeleteDeal removes one of the caller's deals
func (h *DealHandler) DeleteDeal(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	if err := h.dealService.DeleteDeal(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Deal deleted", "timestamp": now()})
}

// MarkSold records a realized sale price
func (h *DealHandler) MarkSold(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req SoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	view, err := h.dealService.MarkSold(c.Request.Context(), userID, id, req.SoldPrice.Float64())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deal": view, "timestamp": now()})
}

// Publish adds a deal to the public feed
func (h *DealHandler) Publish(c *gin.Context) {
	h.setPublished(c, true)
}

// Unpublish removes a deal from the public feed
func (h *DealHandler) Unpublish(c *gin.Context) {
	h.setPublished(c, false)
}

func (h *DealHandler) setPublished(c *gin.Context, published bool) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	view, err := h.dealService.SetPublished(c.Request.Context(), userID, id, published)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deal": view, "timestamp": now()})
}

// EnrichDeal fills missing facts from the property data provider
func (h *DealHandler) EnrichDeal(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	view, err := h.dealService.EnrichDeal(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deal": view, "timestamp": now()})
}

// ListPublished serves the public deal feed
func (h *DealHandler) ListPublished(c *gin.Context) {
	limit, err := queryInt(c, "limit", repository.DefaultListLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		respondError(c, err)
		return
	}

	views, err := h.dealService.ListPublished(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deals":     views,
		"count":     len(views),
		"timestamp": now(),
	})
}

// parseDealFilter reads status, min_score, published, sort, limit and offset
func parseDealFilter(c *gin.Context) (repository.DealFilter, error) {
	var filter repository.DealFilter

	if raw := c.Query("status"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			filter.Statuses = append(filter.Statuses, models.DealStatus(strings.TrimSpace(s)))
		}
	}

	if c.Query("min_score") != "" {
		minScore, err := queryInt(c, "min_score", 0)
		if err != nil {
			return filter, err
		}
		filter.MinScore = &minScore
	}

	switch c.Query("published") {
	case "", "false":
	case "true":
		filter.PublishedOnly = true
	default:
		return filter, errors.InvalidInput("invalid published", nil).WithDetails(c.Query("published"))
	}

	filter.Sort = repository.DealSort(c.Query("sort"))

	var err error
	if filter.Limit, err = queryInt(c, "limit", repository.DefaultListLimit); err != nil {
		return filter, err
	}
	if filter.Offset, err = queryInt(c, "offset", 0); err != nil {
		return filter, err
	}
	return filter, nil
}
