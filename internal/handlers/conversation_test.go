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

	"campus-chat/internal/chat"
	"campus-chat/internal/mocks"
	"campus-chat/internal/models"
	"campus-chat/internal/repositories"
	"campus-chat/internal/telemetry"
)

type handlerFixture struct {
	convRepo *mocks.ConversationRepositoryMock
	msgRepo  *mocks.MessageRepositoryMock
	userRepo *mocks.UserRepositoryMock
	notifier *mocks.NotifierMock

	conversations *chat.ConversationService
	messages      *chat.MessageService
}

func newHandlerFixture() *handlerFixture {
	f := &handlerFixture{
		convRepo: new(mocks.ConversationRepositoryMock),
		msgRepo:  new(mocks.MessageRepositoryMock),
		userRepo: new(mocks.UserRepositoryMock),
		notifier: new(mocks.NotifierMock),
	}
	f.conversations = chat.NewConversationService(f.convRepo, f.msgRepo, f.userRepo, new(mocks.CourseCatalogMock), f.notifier)
	f.messages = chat.NewMessageService(f.msgRepo, f.convRepo, f.userRepo, f.notifier)
	return f
}

func testAudit() *telemetry.AuditEmitter {
	return telemetry.NewAuditEmitter(nil, "audit_log.chat", "campus-chat", "test")
}

func setupConversationRouter(handler *ConversationHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("userID", 1)
		c.Set("externalID", "student-1")
		c.Next()
	})
	r.GET("/conversations", handler.List)
	r.POST("/conversations", handler.CreateGroup)
	r.POST("/conversations/direct", handler.StartDirect)
	r.GET("/conversations/:conversation_id", handler.Get)
	r.POST("/conversations/:conversation_id/participants", handler.AddParticipants)
	r.DELETE("/conversations/:conversation_id/participants/:user_id", handler.RemoveParticipant)
	r.POST("/courses/join", handler.JoinCourseGroup)
	return r
}

func TestListConversationsSuccess(t *testing.T) {
	f := newHandlerFixture()
	handler := NewConversationHandler(f.conversations, testAudit())
	router := setupConversationRouter(handler)

	summary := repositories.ConversationSummary{
		Conversation: models.Conversation{ID: 3, Kind: models.KindDirect},
		UnreadCount:  2,
	}
	f.convRepo.On("ListForUser", mock.Anything, 1, models.ConversationListOptions{Page: 1, Limit: 20}).
		Return([]repositories.ConversationSummary{summary}, nil).Once()
	f.convRepo.On("Participants", mock.Anything, 3).
		Return([]models.Participant{{ConversationID: 3, UserID: 1}}, nil).Once()
	f.userRepo.On("BulkByIDs", mock.Anything, []int{1}).
		Return([]models.User{{ID: 1, Name: "alice"}}, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp["conversations"], 1)
	f.convRepo.AssertExpectations(t)
}

func TestListConversationsRejectsBadKind(t *testing.T) {
	f := newHandlerFixture()
	handler := NewConversationHandler(f.conversations, testAudit())
	router := setupConversationRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/conversations?kind=banana", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartDirectWithSelfRejected(t *testing.T) {
	f := newHandlerFixture()
	handler := NewConversationHandler(f.conversations, testAudit())
	router := setupConversationRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/conversations/direct", bytes.NewBufferString(`{"userId":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetConversationForbiddenForOutsiders(t *testing.T) {
	f := newHandlerFixture()
	handler := NewConversationHandler(f.conversations, testAudit())
	router := setupConversationRouter(handler)

	f.convRepo.On("Get", mock.Anything, 5).
		Return(models.Conversation{ID: 5, Kind: models.KindGroup}, nil).Once()
	f.convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetConversationUnknownIsNotFound(t *testing.T) {
	f := newHandlerFixture()
	handler := NewConversationHandler(f.conversations, testAudit())
	router := setupConversationRouter(handler)

	f.convRepo.On("Get", mock.Anything, 99).
		Return(models.Conversation{}, repositories.ErrConversationNotFound).Once()

	req := httptest.NewRequest(http.MethodGet, "/conversations/99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddParticipantsForbiddenForNonAdmins(t *testing.T) {
	f := newHandlerFixture()
	handler := NewConversationHandler(f.conversations, testAudit())
	router := setupConversationRouter(handler)

	f.convRepo.On("Get", mock.Anything, 5).
		Return(models.Conversation{ID: 5, Kind: models.KindGroup}, nil).Once()
	f.convRepo.On("IsAdmin", mock.Anything, 5, 1).Return(false, nil).Once()

	req := httptest.NewRequest(http.MethodPost, "/conversations/5/participants", bytes.NewBufferString(`{"userIds":[4]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
	f.convRepo.AssertNotCalled(t, "AddParticipants", mock.Anything, mock.Anything, mock.Anything)
}

func TestRemoveParticipantSelfLeaveNoContent(t *testing.T) {
	f := newHandlerFixture()
	handler := NewConversationHandler(f.conversations, testAudit())
	router := setupConversationRouter(handler)

	f.convRepo.On("Get", mock.Anything, 5).
		Return(models.Conversation{ID: 5, Kind: models.KindGroup}, nil).Once()
	f.convRepo.On("RemoveParticipant", mock.Anything, 5, 1).Return(nil).Once()
	f.notifier.On("LeaveConversation", 1, 5).Once()
	f.notifier.On("ToConversation", 5, models.ParticipantLeft{ConversationID: 5, UserID: 1}).Once()

	req := httptest.NewRequest(http.MethodDelete, "/conversations/5/participants/1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	f.notifier.AssertExpectations(t)
}

func TestCreateGroupMissingNameRejected(t *testing.T) {
	f := newHandlerFixture()
	handler := NewConversationHandler(f.conversations, testAudit())
	router := setupConversationRouter(handler)

	req := httptest.NewRequest(http.MethodPost, "/conversations", bytes.NewBufferString(`{"participantIds":[2]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinCourseGroupWrongUniversityForbidden(t *testing.T) {
	f := newHandlerFixture()
	handler := NewConversationHandler(f.conversations, testAudit())
	router := setupConversationRouter(handler)

	f.userRepo.On("GetByID", mock.Anything, 1).
		Return(models.User{ID: 1, University: "State U"}, nil).Once()

	body := bytes.NewBufferString(`{"courseCode":"CS101","university":"Other U"}`)
	req := httptest.NewRequest(http.MethodPost, "/courses/join", body)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusForbidden, rec.Code)
}
