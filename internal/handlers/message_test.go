package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"campus-chat/internal/models"
)

func setupMessageRouter(handler *MessageHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Set("externalID", "student-1")
		c.Next()
	})
	r.GET("/conversations/:conversation_id/messages", handler.List)
	r.POST("/conversations/:conversation_id/messages", handler.Post)
	r.POST("/conversations/:conversation_id/messages/read", handler.MarkRead)
	r.PATCH("/messages/:message_id", handler.Edit)
	r.DELETE("/messages/:message_id", handler.Delete)
	return r
}

func TestPostMessageCreated(t *testing.T) {
	f := newHandlerFixture()
	handler := NewMessageHandler(f.messages, testAudit())
	router := setupMessageRouter(handler)

	f.convRepo.On("Get", mock.Anything, 5).
		Return(models.Conversation{ID: 5, Kind: models.KindGroup}, nil).Once()
	f.convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	f.msgRepo.On("Create", mock.Anything, 5, 1, "hello", models.MessageText, models.Attachments(nil)).
		Return(models.Message{ID: 9, ConversationID: 5, SenderID: 1, Content: "hello", Kind: models.MessageText}, nil).Once()
	f.convRepo.On("TouchLastMessage", mock.Anything, 5, 9).Return(nil).Once()
	f.msgRepo.On("ReadReceipts", mock.Anything, []int{9}).
		Return(map[int][]models.ReadReceipt{}, nil).Once()
	f.userRepo.On("BulkByIDs", mock.Anything, []int{1}).
		Return([]models.User{{ID: 1, Name: "alice"}}, nil).Once()
	f.notifier.On("ToConversation", 5, mock.MatchedBy(func(event models.OutboundEvent) bool {
		return event.Event() == "message:new"
	})).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(`{"content":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	f.notifier.AssertExpectations(t)
}

func TestPostMessageForbiddenForOutsiders(t *testing.T) {
	f := newHandlerFixture()
	handler := NewMessageHandler(f.messages, testAudit())
	router := setupMessageRouter(handler)

	f.convRepo.On("Get", mock.Anything, 5).
		Return(models.Conversation{ID: 5, Kind: models.KindGroup}, nil).Once()
	f.convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages", bytes.NewBufferString(`{"content":"hello"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestListMessagesMarksPageRead(t *testing.T) {
	f := newHandlerFixture()
	handler := NewMessageHandler(f.messages, testAudit())
	router := setupMessageRouter(handler)

	msgs := []models.Message{{ID: 1, ConversationID: 5, SenderID: 2, Content: "hi"}}
	f.convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	f.msgRepo.On("ListPage", mock.Anything, 5, models.MessagePageOptions{Page: 1, Limit: 50}).Return(msgs, nil).Once()
	f.msgRepo.On("MarkRead", mock.Anything, 5, []int{1}, 1).Return(nil).Once()
	f.msgRepo.On("ReadReceipts", mock.Anything, []int{1}).
		Return(map[int][]models.ReadReceipt{1: {{MessageID: 1, UserID: 1}}}, nil).Once()
	f.userRepo.On("BulkByIDs", mock.Anything, []int{2}).
		Return([]models.User{{ID: 2, Name: "bob"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/5/messages", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["messages"], 1)
	f.msgRepo.AssertExpectations(t)
}

func TestMarkReadNoContent(t *testing.T) {
	f := newHandlerFixture()
	handler := NewMessageHandler(f.messages, testAudit())
	router := setupMessageRouter(handler)

	f.convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()
	f.msgRepo.On("MarkRead", mock.Anything, 5, []int{3, 4}, 1).Return(nil).Once()
	f.notifier.On("ToConversation", 5, models.MessagesRead{ConversationID: 5, MessageIDs: []int{3, 4}, UserID: 1}).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/messages/read", bytes.NewBufferString(`{"messageIds":[3,4]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	f.notifier.AssertExpectations(t)
}

func TestEditMessageForbiddenForNonSender(t *testing.T) {
	f := newHandlerFixture()
	handler := NewMessageHandler(f.messages, testAudit())
	router := setupMessageRouter(handler)

	f.msgRepo.On("Get", mock.Anything, 9).
		Return(models.Message{ID: 9, ConversationID: 5, SenderID: 2, Content: "original"}, nil).Once()

	req := httptest.NewRequest(http.MethodPatch, "/messages/9", bytes.NewBufferString(`{"content":"changed"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	f.msgRepo.AssertNotCalled(t, "Edit", mock.Anything, mock.Anything, mock.Anything)
}

func TestDeleteMessageNoContent(t *testing.T) {
	f := newHandlerFixture()
	handler := NewMessageHandler(f.messages, testAudit())
	router := setupMessageRouter(handler)

	f.msgRepo.On("Get", mock.Anything, 9).
		Return(models.Message{ID: 9, ConversationID: 5, SenderID: 1}, nil).Once()
	f.msgRepo.On("SoftDelete", mock.Anything, 9).Return(nil).Once()
	f.notifier.On("ToConversation", 5, models.MessageDeleted{ConversationID: 5, MessageID: 9}).Once()

	req := httptest.NewRequest(http.MethodDelete, "/messages/9", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	f.notifier.AssertExpectations(t)
}
