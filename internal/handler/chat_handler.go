package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/abhinay-x/skillnest-connect-sub002/internal/model"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/repo"
	"github.com/abhinay-x/skillnest-connect-sub002/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// CurrentUserID is the context key set by the auth middleware.
const CurrentUserID = "userID"

type ChatHandler interface {
	CreateConversation(c *gin.Context)
	ListConversations(c *gin.Context)
	GetMessages(c *gin.Context)
	SendMessage(c *gin.Context)
	MarkMessageRead(c *gin.Context)
	GetTyping(c *gin.Context)
	SetTyping(c *gin.Context)
}

type chatHandler struct {
	service *service.ChatService
}

func NewChatHandler(service *service.ChatService) ChatHandler {
	return &chatHandler{
		service: service,
	}
}

type createConversationInput struct {
	BookingID  string `json:"bookingId" validate:"required"`
	CustomerID string `json:"customerId" validate:"required"`
	WorkerID   string `json:"workerId" validate:"required,nefield=CustomerID"`
}

// CreateConversation resolves the conversation for a booking, creating it on
// first call. The booking collaborator supplies the participant pair.
func (h *chatHandler) CreateConversation(c *gin.Context) {
	var input createConversationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := validate.Struct(input); err != nil {
		handleValidationErrors(c, err)
		return
	}

	conv, err := h.service.GetOrCreateConversation(c.Request.Context(), input.BookingID, input.CustomerID, input.WorkerID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversation": conv,
	})
}

func (h *chatHandler) ListConversations(c *gin.Context) {
	userID := c.GetString(CurrentUserID)

	convs, err := h.service.ListConversations(c.Request.Context(), userID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"conversations": convs,
	})
}

// GetMessages lists messages strictly after the supplied cursor
// (after + afterSeq), bounded by limit.
func (h *chatHandler) GetMessages(c *gin.Context) {
	userID := c.GetString(CurrentUserID)
	conversationID := c.Param("conversationId")

	var cur repo.Cursor
	if after := c.Query("after"); after != "" {
		ts, err := time.Parse(time.RFC3339Nano, after)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid after cursor"})
			return
		}
		cur.After = ts
		cur.AfterSeq, _ = strconv.ParseInt(c.Query("afterSeq"), 10, 64)
	}
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	msgs, err := h.service.ListMessages(c.Request.Context(), userID, conversationID, cur, limit)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"messages": msgs,
	})
}

type sendMessageInput struct {
	Text     string          `json:"text"`
	ImageRef string          `json:"imageRef"`
	Location *model.GeoPoint `json:"location"`
}

func (h *chatHandler) SendMessage(c *gin.Context) {
	userID := c.GetString(CurrentUserID)
	conversationID := c.Param("conversationId")

	var input sendMessageInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	msg, err := h.service.Append(c.Request.Context(), userID, conversationID, model.Payload{
		Text:     input.Text,
		ImageRef: input.ImageRef,
		Location: input.Location,
	})
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": msg,
	})
}

func (h *chatHandler) MarkMessageRead(c *gin.Context) {
	userID := c.GetString(CurrentUserID)
	messageID := c.Param("messageId")

	if err := h.service.MarkRead(c.Request.Context(), userID, messageID); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"read": true,
	})
}

func (h *chatHandler) GetTyping(c *gin.Context) {
	userID := c.GetString(CurrentUserID)
	conversationID := c.Param("conversationId")

	states, err := h.service.TypingSnapshot(c.Request.Context(), userID, conversationID)
	if err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"typing": states,
	})
}

type setTypingInput struct {
	IsTyping bool `json:"isTyping"`
}

func (h *chatHandler) SetTyping(c *gin.Context) {
	userID := c.GetString(CurrentUserID)
	conversationID := c.Param("conversationId")

	var input setTypingInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.service.SetTyping(c.Request.Context(), userID, conversationID, input.IsTyping); err != nil {
		writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"isTyping": input.IsTyping,
	})
}

// handleValidationErrors reports which input fields failed validation.
func handleValidationErrors(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			fields = append(fields, fe.Field())
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  "validation failed",
			"fields": fields,
		})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

// writeServiceError maps domain errors onto HTTP statuses.
func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidPayload),
		errors.Is(err, model.ErrPayloadTooLarge),
		errors.Is(err, repo.ErrInvalidConversationID):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrInvalidSender), errors.Is(err, model.ErrNotParticipant):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrConversationNotFound),
		errors.Is(err, model.ErrMessageNotFound),
		errors.Is(err, model.ErrNotificationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, model.ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "message could not be stored, retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
