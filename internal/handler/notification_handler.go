package handler

import (
	"net/http"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/service"

	"github.com/gin-gonic/gin"
)

type NotificationHandler interface {
	ListNotifications(c *gin.Context)
	MarkNotificationRead(c *gin.Context)
	RegisterDeviceToken(c *gin.Context)
	RemoveDeviceToken(c *gin.Context)
}

type notificationHandler struct {
	service *service.NotificationService
}

func NewNotificationHandler(service *service.NotificationService) NotificationHandler {
	return &notificationHandler{
		service: service,
	}
}

// ListNotifications returns the in-app notification list, which stays
// authoritative regardless of push delivery outcome.
func (h *notificationHandler) ListNotifications(c *gin.Context) {
	userID := c.GetString(CurrentUserID)
	unreadOnly := c.Query("unread") == "true"

	items, err := h.service.List(c.Request.Context(), userID, unreadOnly)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": items,
	})
}

func (h *notificationHandler) MarkNotificationRead(c *gin.Context) {
	userID := c.GetString(CurrentUserID)
	notificationID := c.Param("notificationId")

	if err := h.service.MarkRead(c.Request.Context(), userID, notificationID); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"read": true,
	})
}

type deviceTokenInput struct {
	Token string `json:"token" validate:"required"`
}

func (h *notificationHandler) RegisterDeviceToken(c *gin.Context) {
	userID := c.GetString(CurrentUserID)

	var input deviceTokenInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := validate.Struct(input); err != nil {
		handleValidationErrors(c, err)
		return
	}

	if err := h.service.RegisterDevice(c.Request.Context(), userID, input.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to register device token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"registered": true,
	})
}

func (h *notificationHandler) RemoveDeviceToken(c *gin.Context) {
	userID := c.GetString(CurrentUserID)

	var input deviceTokenInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := validate.Struct(input); err != nil {
		handleValidationErrors(c, err)
		return
	}

	if err := h.service.RemoveDevice(c.Request.Context(), userID, input.Token); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to remove device token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"removed": true,
	})
}
