package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"campus-chat/internal/chat"
	"campus-chat/internal/models"
	"campus-chat/internal/telemetry"
)

// ConversationHandler is the HTTP fallback surface over the conversation
// service. Every mutation reaches live websocket clients through the shared
// services, so HTTP callers and socket callers see identical behavior.
type ConversationHandler struct {
	conversations *chat.ConversationService
	audit         *telemetry.AuditEmitter
}

// NewConversationHandler builds a ConversationHandler.
func NewConversationHandler(conversations *chat.ConversationService, audit *telemetry.AuditEmitter) *ConversationHandler {
	return &ConversationHandler{conversations: conversations, audit: audit}
}

// List returns the conversations visible to the authenticated user, newest
// activity first.
func (h *ConversationHandler) List(c *gin.Context) {
	userID := c.GetInt("userID")

	opts := models.ConversationListOptions{
		Page:            intQuery(c, "page", 1),
		Limit:           intQuery(c, "limit", 20),
		Kind:            models.ConversationKind(c.Query("kind")),
		IncludeArchived: c.Query("includeArchived") == "true",
	}
	if opts.Kind != "" && !opts.Kind.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kind"})
		return
	}

	views, err := h.conversations.List(c.Request.Context(), userID, opts)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": views})
}

// StartDirect creates or returns the direct conversation with another user.
func (h *ConversationHandler) StartDirect(c *gin.Context) {
	var req struct {
		UserID int `json:"userId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	view, err := h.conversations.StartDirect(c.Request.Context(), userID, req.UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": view})
}

// CreateGroup creates a group or broadcast conversation.
func (h *ConversationHandler) CreateGroup(c *gin.Context) {
	var req struct {
		Kind           string `json:"kind"`
		Name           string `json:"name" binding:"required"`
		Description    string `json:"description"`
		AllowedToPost  string `json:"allowedToPost"`
		ParticipantIDs []int  `json:"participantIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind := models.ConversationKind(req.Kind)
	if req.Kind == "" {
		kind = models.KindGroup
	}

	userID := c.GetInt("userID")
	view, err := h.conversations.CreateGroup(c.Request.Context(), chat.CreateGroupParams{
		Kind:           kind,
		CreatorID:      userID,
		Name:           req.Name,
		Description:    req.Description,
		AllowedToPost:  req.AllowedToPost,
		ParticipantIDs: req.ParticipantIDs,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "conversation_created", view.ID,
		fmt.Sprintf("created %s conversation %q", kind, req.Name),
		requestIDFromContext(c), externalIDFromContext(c))
	c.JSON(http.StatusCreated, gin.H{"conversation": view})
}

// Get returns one conversation the caller belongs to.
func (h *ConversationHandler) Get(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	view, err := h.conversations.Get(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": view})
}

// Update changes name, description or avatar. Absent fields are untouched.
func (h *ConversationHandler) Update(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	var req struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		AvatarURL   *string `json:"avatarUrl"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	view, err := h.conversations.Update(c.Request.Context(), conversationID, userID, req.Name, req.Description, req.AvatarURL)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "conversation_updated", conversationID,
		"updated conversation details", requestIDFromContext(c), externalIDFromContext(c))
	c.JSON(http.StatusOK, gin.H{"conversation": view})
}

// ToggleArchive flips the caller's personal archived flag.
func (h *ConversationHandler) ToggleArchive(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	userID := c.GetInt("userID")
	archived, err := h.conversations.ToggleArchive(c.Request.Context(), conversationID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": archived})
}

// AddParticipants adds users to a group conversation (admin only).
func (h *ConversationHandler) AddParticipants(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}

	var req struct {
		UserIDs []int `json:"userIds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	view, err := h.conversations.AddParticipants(c.Request.Context(), conversationID, userID, req.UserIDs)
	if err != nil {
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "participants_added", conversationID,
		fmt.Sprintf("added %d participants", len(req.UserIDs)),
		requestIDFromContext(c), externalIDFromContext(c))
	c.JSON(http.StatusOK, gin.H{"conversation": view})
}

// RemoveParticipant removes a member; members remove themselves, admins
// remove anyone.
func (h *ConversationHandler) RemoveParticipant(c *gin.Context) {
	conversationID, ok := conversationIDParam(c)
	if !ok {
		return
	}
	targetID, err := strconv.Atoi(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	userID := c.GetInt("userID")
	if err := h.conversations.RemoveParticipant(c.Request.Context(), conversationID, userID, targetID); err != nil {
		respondError(c, err)
		return
	}

	h.audit.Emit(c.Request.Context(), "participant_removed", conversationID,
		fmt.Sprintf("removed user %d", targetID),
		requestIDFromContext(c), externalIDFromContext(c))
	c.Status(http.StatusNoContent)
}

// JoinCourseGroup joins (or creates) the course group for the caller's
// university and returns it.
func (h *ConversationHandler) JoinCourseGroup(c *gin.Context) {
	var req struct {
		CourseCode string `json:"courseCode" binding:"required"`
		CourseName string `json:"courseName"`
		University string `json:"university" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	userID := c.GetInt("userID")
	result, err := h.conversations.JoinCourseGroup(c.Request.Context(), userID, req.CourseCode, req.CourseName, req.University)
	if err != nil {
		respondError(c, err)
		return
	}

	if result.Created {
		h.audit.Emit(c.Request.Context(), "course_group_created", result.Conversation.ID,
			fmt.Sprintf("created course group for %s at %s", req.CourseCode, req.University),
			requestIDFromContext(c), externalIDFromContext(c))
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"conversation":  result.Conversation,
		"created":       result.Created,
		"alreadyMember": result.AlreadyMember,
	})
}

func conversationIDParam(c *gin.Context) (int, bool) {
	conversationID, err := strconv.Atoi(c.Param("conversation_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid conversation id"})
		return 0, false
	}
	return conversationID, true
}

func intQuery(c *gin.Context, key string, fallback int) int {
	val := c.Query(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed < 1 {
		return fallback
	}
	return parsed
}
