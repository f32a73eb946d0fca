package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/runconquer/territory-backend-go/internal/models"
	"github.com/runconquer/territory-backend-go/internal/service"
	"github.com/runconquer/territory-backend-go/pkg/response"
)

// ActivityHandler handles activity ingest and score queries
type ActivityHandler struct {
	conquest *service.ConquestService
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(conquest *service.ConquestService) *ActivityHandler {
	return &ActivityHandler{conquest: conquest}
}

// ingestRequest accepts one activity or a batch
type ingestRequest struct {
	Activities []models.ActivityTrace `json:"activities" binding:"required"`
}

// ProcessActivities handles POST /api/v1/activities
func (h *ActivityHandler) ProcessActivities(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body", err)
		return
	}
	if len(req.Activities) == 0 {
		response.BadRequest(c, "No activities supplied", nil)
		return
	}

	for i := range req.Activities {
		if req.Activities[i].ID == "" {
			req.Activities[i].ID = uuid.NewString()
		}
	}

	scores, err := h.conquest.ProcessBatch(c.Request.Context(), req.Activities)
	if err != nil {
		response.InternalError(c, "Failed to process activities", err)
		return
	}

	response.Success(c, gin.H{
		"data":  scores,
		"count": len(scores),
	})
}

// GetScore handles GET /api/v1/activities/:id/score
func (h *ActivityHandler) GetScore(c *gin.Context) {
	activityID := c.Param("id")

	delta, xp, err := h.conquest.Score(activityID)
	if err != nil {
		response.InternalError(c, "Failed to get activity score", err)
		return
	}
	if delta == nil || xp == nil {
		response.NotFound(c, "Activity not processed")
		return
	}

	response.Success(c, gin.H{
		"delta": delta,
		"xp":    xp,
		"total": xp.Total(),
	})
}

// GetPending handles GET /api/v1/activities/pending
func (h *ActivityHandler) GetPending(c *gin.Context) {
	pending, err := h.conquest.PendingActivities()
	if err != nil {
		response.InternalError(c, "Failed to list pending activities", err)
		return
	}

	response.Success(c, gin.H{
		"data":  pending,
		"count": len(pending),
	})
}

// Logout handles POST /api/v1/session/logout
func (h *ActivityHandler) Logout(c *gin.Context) {
	h.conquest.Logout()
	c.JSON(http.StatusOK, gin.H{"message": "session closed"})
}
