package approuters

import (
	"github.com/abhinay-x/skillnest-connect-sub002/internal/configuration"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/handler"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/hub"

	"github.com/gin-gonic/gin"
)

// MonitorRouters sets up monitoring API routes
func MonitorRouters(router *gin.Engine, container *configuration.Container) {
	monitorService := hub.NewMonitorService(container.Broker, container.Presence, container.Dispatcher)
	monitorHandler := handler.NewMonitorHandler(monitorService)

	monitorGroup := router.Group("/sn/api/monitor")
	{
		monitorGroup.GET("/stats", monitorHandler.GetBrokerStats)
	}
}
