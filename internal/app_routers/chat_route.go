package approuters

import (
	"github.com/abhinay-x/skillnest-connect-sub002/internal/configuration"

	"github.com/gin-gonic/gin"
)

func ChatRouters(router *gin.Engine, container *configuration.Container) {
	chatRoute := router.Group("/sn/api/chat", AuthRequired(container.TokenManager))
	{
		chatRoute.POST("/conversations", container.ChatHandler.CreateConversation)
		chatRoute.GET("/conversations", container.ChatHandler.ListConversations)
		chatRoute.GET("/conversations/:conversationId/messages", container.ChatHandler.GetMessages)
		chatRoute.POST("/conversations/:conversationId/messages", container.ChatHandler.SendMessage)
		chatRoute.GET("/conversations/:conversationId/typing", container.ChatHandler.GetTyping)
		chatRoute.POST("/conversations/:conversationId/typing", container.ChatHandler.SetTyping)
		chatRoute.POST("/messages/:messageId/read", container.ChatHandler.MarkMessageRead)
	}
}
