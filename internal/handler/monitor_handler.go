package handler

import (
	"net/http"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/hub"

	"github.com/gin-gonic/gin"
)

// MonitorHandler handles monitoring API endpoints
type MonitorHandler interface {
	GetBrokerStats(c *gin.Context)
}

type monitorHandler struct {
	monitorService *hub.MonitorService
}

// NewMonitorHandler creates a new monitor handler
func NewMonitorHandler(monitorService *hub.MonitorService) MonitorHandler {
	return &monitorHandler{
		monitorService: monitorService,
	}
}

// GetBrokerStats returns current broker and dispatcher statistics
// @Summary Get delivery broker statistics
// @Description Returns live subscription, typing and notification-queue state
// @Tags Monitor
// @Produce json
// @Success 200 {object} model.MonitorResponse
// @Router /sn/api/monitor/stats [get]
func (h *monitorHandler) GetBrokerStats(c *gin.Context) {
	stats := h.monitorService.GetStats()

	c.JSON(http.StatusOK, gin.H{
		"HttpStatusCode": http.StatusOK,
		"ResponseBody":   stats,
		"IsSuccess":      true,
		"Message":        "Broker statistics retrieved successfully",
	})
}
