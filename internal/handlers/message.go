package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"campus-chat/internal/chat"
	"campus-chat/internal/models"
	"campus-chat/internal/telemetry"
)

// MessageHandler is the HTTP fallback surface over the message service.
type MessageHandler struct {
	messages *chat.MessageService
	audit    *telemetry.AuditEmitter
}

// NewMessageHandler builds a MessageHandler.
func NewMessageHandler(messages *chat.MessageService, audit *telemetry.AuditEmitter) *MessageHandler {
	return &MessageHandler{messages: messages, audit: audit}
}

// List returns a page of messages in chronological order and marks the page
// read for the caller, mirroring what a socket client gets on join.
func (h *MessageHandler) List(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	opts := models.MessagePageOptions{
		Page:  intQuery(c, "page", 1),
		Limit: intQuery(c, "limit", 50),
	}

	views, err := h.messages.History(c.Request.Context(), conversationID, userID, opts, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": views})
}

// Post stores a message and broadcasts it to the conversation room.
func (h *MessageHandler) Post(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Content     string             `json:"content"`
		Kind        string             `json:"type"`
		Attachments models.Attachments `json:"attachments"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	view, err := h.messages.Send(c.Request.Context(), chat.SendParams{
		ConversationID: conversationID,
		SenderID:       userID,
		Content:        req.Content,
		Kind:           req.Kind,
		Attachments:    req.Attachments,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": view})
}

// MarkRead receipts a batch of messages for the caller.
func (h *MessageHandler) MarkRead(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	var req struct {
		MessageIDs []int `json:"messageIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	if err := h.messages.MarkRead(c.Request.Context(), conversationID, req.MessageIDs, userID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Edit replaces a message's content (sender only).
func (h *MessageHandler) Edit(c *gin.Context) {
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Content string `json:"content" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	view, err := h.messages.Edit(c.Request.Context(), messageID, userID, req.Content)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": view})
}

// Delete soft-deletes a message (sender only).
func (h *MessageHandler) Delete(c *gin.Context) {
	messageID, ok := messageIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	if err := h.messages.Delete(c.Request.Context(), messageID, userID); err != nil {
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "message_deleted", 0,
		"deleted message "+strconv.Itoa(messageID),
		requestIDFromContext(c), externalIDFromContext(c))
	c.Status(http.StatusNoContent)
}

func messageIDParam(c *gin.Context) (int, bool) {
	messageID, err := strconv.Atoi(c.Param("message_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid message id"})
		return 0, false
	}
	return messageID, true
}
