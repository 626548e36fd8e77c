package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursedesk/coursedesk-api/internal/models"
	"github.com/coursedesk/coursedesk-api/internal/service"
	appErrors "github.com/coursedesk/coursedesk-api/pkg/errors"
	"github.com/coursedesk/coursedesk-api/pkg/response"
)

type dashboardSummarizer interface {
	Summary(ctx context.Context, viewer *models.JWTClaims) (*service.DashboardSummary, bool, error)
}

// DashboardHandler exposes the aggregate dashboard endpoint.
type DashboardHandler struct {
	dashboard dashboardSummarizer
}

// NewDashboardHandler constructs the handler.
func NewDashboardHandler(dashboard dashboardSummarizer) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Summary godoc
// @Summary Stat summary scoped to the viewer's role
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summary, cacheHit, err := h.dashboard.Summary(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, map[string]interface{}{"cache_hit": cacheHit})
}
