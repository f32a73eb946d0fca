package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/runconquer/territory-backend-go/internal/models"
	"github.com/runconquer/territory-backend-go/internal/service"
	"github.com/runconquer/territory-backend-go/pkg/response"
)

// TerritoryHandler handles HTTP requests for the territory query surface
type TerritoryHandler struct {
	territories *service.TerritoryService
	sync        *service.SyncService
}

// NewTerritoryHandler creates a new territory handler
func NewTerritoryHandler(territories *service.TerritoryService, sync *service.SyncService) *TerritoryHandler {
	return &TerritoryHandler{territories: territories, sync: sync}
}

// GetRegion handles GET /api/v1/territories
func (h *TerritoryHandler) GetRegion(c *gin.Context) {
	var filter models.CellFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, "Invalid query parameters", err)
		return
	}
	if filter.MinLat > filter.MaxLat || filter.MinLon > filter.MaxLon {
		response.BadRequest(c, "Invalid bounding box", nil)
		return
	}

	cells := h.territories.Region(filter)
	response.Success(c, gin.H{
		"data":  cells,
		"count": len(cells),
	})
}

// GetByActivity handles GET /api/v1/territories/activity/:id
func (h *TerritoryHandler) GetByActivity(c *gin.Context) {
	activityID := c.Param("id")
	if activityID == "" {
		response.BadRequest(c, "Missing activity id", nil)
		return
	}

	cells := h.territories.ByActivity(activityID)
	response.Success(c, gin.H{
		"data":  cells,
		"count": len(cells),
	})
}

// GetOwnerAt handles GET /api/v1/territories/at
func (h *TerritoryHandler) GetOwnerAt(c *gin.Context) {
	lat, err := strconv.ParseFloat(c.Query("lat"), 64)
	if err != nil {
		response.BadRequest(c, "Invalid lat", err)
		return
	}
	lon, err := strconv.ParseFloat(c.Query("lon"), 64)
	if err != nil {
		response.BadRequest(c, "Invalid lon", err)
		return
	}

	cell, owned := h.territories.OwnerAt(models.Coordinate{Lat: lat, Lon: lon})
	if !owned {
		response.Success(c, gin.H{"owned": false})
		return
	}
	response.Success(c, gin.H{
		"owned": true,
		"cell":  cell,
	})
}

// GetLost handles GET /api/v1/territories/lost
func (h *TerritoryHandler) GetLost(c *gin.Context) {
	if h.sync == nil {
		response.Success(c, gin.H{"data": []interface{}{}, "count": 0})
		return
	}

	notes := h.sync.LostTerritories(c.Request.Context())
	response.Success(c, gin.H{
		"data":  notes,
		"count": len(notes),
	})
}

// GetRivals handles GET /api/v1/territories/rivals
func (h *TerritoryHandler) GetRivals(c *gin.Context) {
	if h.sync == nil {
		response.Success(c, gin.H{"data": []interface{}{}, "count": 0})
		return
	}

	cells := h.sync.RivalTerritories()
	response.Success(c, gin.H{
		"data":  cells,
		"count": len(cells),
	})
}
