package approuters

import (
	"github.com/abhinay-x/skillnest-connect-sub002/internal/configuration"

	"github.com/gin-gonic/gin"
)

func NotificationRouters(router *gin.Engine, container *configuration.Container) {
	notificationRoute := router.Group("/sn/api/notifications", AuthRequired(container.TokenManager))
	{
		notificationRoute.GET("", container.NotificationHandler.ListNotifications)
		notificationRoute.POST("/:notificationId/read", container.NotificationHandler.MarkNotificationRead)
		notificationRoute.POST("/device-tokens", container.NotificationHandler.RegisterDeviceToken)
		notificationRoute.DELETE("/device-tokens", container.NotificationHandler.RemoveDeviceToken)
	}
}
