package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"campus-chat/internal/models"
	"campus-chat/internal/repositories"
)

type ConversationRepositoryMock struct {
	mock.Mock
}

func (m *ConversationRepositoryMock) FindOrCreateDirect(ctx context.Context, userA, userB int) (models.Conversation, error) {
	args := m.Called(ctx, userA, userB)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Create(ctx context.Context, params repositories.CreateConversationParams) (models.Conversation, error) {
	args := m.Called(ctx, params)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Get(ctx context.Context, conversationID int) (models.Conversation, error) {
	args := m.Called(ctx, conversationID)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

func (m *ConversationRepositoryMock) Participants(ctx context.Context, conversationID int) ([]models.Participant, error) {
	args := m.Called(ctx, conversationID)
	var list []models.Participant
	if val := args.Get(0); val != nil {
		list = val.([]models.Participant)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) IsParticipant(ctx context.Context, conversationID, userID int) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) IsAdmin(ctx context.Context, conversationID, userID int) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) AddParticipants(ctx context.Context, conversationID int, userIDs []int) error {
	args := m.Called(ctx, conversationID, userIDs)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) RemoveParticipant(ctx context.Context, conversationID, userID int) error {
	args := m.Called(ctx, conversationID, userID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) ToggleArchive(ctx context.Context, conversationID, userID int) (bool, error) {
	args := m.Called(ctx, conversationID, userID)
	return args.Bool(0), args.Error(1)
}

func (m *ConversationRepositoryMock) ListForUser(ctx context.Context, userID int, opts models.ConversationListOptions) ([]repositories.ConversationSummary, error) {
	args := m.Called(ctx, userID, opts)
	var list []repositories.ConversationSummary
	if val := args.Get(0); val != nil {
		list = val.([]repositories.ConversationSummary)
	}
	return list, args.Error(1)
}

func (m *ConversationRepositoryMock) UpdateDetails(ctx context.Context, conversationID int, name, description, avatar *string) error {
	args := m.Called(ctx, conversationID, name, description, avatar)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) TouchLastMessage(ctx context.Context, conversationID, messageID int) error {
	args := m.Called(ctx, conversationID, messageID)
	return args.Error(0)
}

func (m *ConversationRepositoryMock) IDsForUser(ctx context.Context, userID int) ([]int, error) {
	args := m.Called(ctx, userID)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

func (m *ConversationRepositoryMock) FindCourseGroup(ctx context.Context, courseCode, university string) (models.Conversation, error) {
	args := m.Called(ctx, courseCode, university)
	var conv models.Conversation
	if val := args.Get(0); val != nil {
		conv = val.(models.Conversation)
	}
	return conv, args.Error(1)
}

type MessageRepositoryMock struct {
	mock.Mock
}

func (m *MessageRepositoryMock) Create(ctx context.Context, conversationID, senderID int, content, kind string, attachments models.Attachments) (models.Message, error) {
	args := m.Called(ctx, conversationID, senderID, content, kind, attachments)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) Get(ctx context.Context, messageID int) (models.Message, error) {
	args := m.Called(ctx, messageID)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) ListPage(ctx context.Context, conversationID int, opts models.MessagePageOptions) ([]models.Message, error) {
	args := m.Called(ctx, conversationID, opts)
	var list []models.Message
	if val := args.Get(0); val != nil {
		list = val.([]models.Message)
	}
	return list, args.Error(1)
}

func (m *MessageRepositoryMock) MarkRead(ctx context.Context, conversationID int, messageIDs []int, userID int) error {
	args := m.Called(ctx, conversationID, messageIDs, userID)
	return args.Error(0)
}

func (m *MessageRepositoryMock) ReadReceipts(ctx context.Context, messageIDs []int) (map[int][]models.ReadReceipt, error) {
	args := m.Called(ctx, messageIDs)
	var receipts map[int][]models.ReadReceipt
	if val := args.Get(0); val != nil {
		receipts = val.(map[int][]models.ReadReceipt)
	}
	return receipts, args.Error(1)
}

func (m *MessageRepositoryMock) Edit(ctx context.Context, messageID int, content string) (models.Message, error) {
	args := m.Called(ctx, messageID, content)
	var msg models.Message
	if val := args.Get(0); val != nil {
		msg = val.(models.Message)
	}
	return msg, args.Error(1)
}

func (m *MessageRepositoryMock) SoftDelete(ctx context.Context, messageID int) error {
	args := m.Called(ctx, messageID)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetByID(ctx context.Context, userID int) (models.User, error) {
	args := m.Called(ctx, userID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) GetByExternalID(ctx context.Context, externalID string) (models.User, error) {
	args := m.Called(ctx, externalID)
	var user models.User
	if val := args.Get(0); val != nil {
		user = val.(models.User)
	}
	return user, args.Error(1)
}

func (m *UserRepositoryMock) BulkByIDs(ctx context.Context, userIDs []int) ([]models.User, error) {
	args := m.Called(ctx, userIDs)
	var list []models.User
	if val := args.Get(0); val != nil {
		list = val.([]models.User)
	}
	return list, args.Error(1)
}

func (m *UserRepositoryMock) Search(ctx context.Context, query, university string, excludeUserID int, limit int) ([]models.User, error) {
	args := m.Called(ctx, query, university, excludeUserID, limit)
	var list []models.User
	if val := args.Get(0); val != nil {
		list = val.([]models.User)
	}
	return list, args.Error(1)
}

func (m *UserRepositoryMock) ClassmatesForCourse(ctx context.Context, courseCode, university string, excludeUserID int, limit int) ([]int, error) {
	args := m.Called(ctx, courseCode, university, excludeUserID, limit)
	var ids []int
	if val := args.Get(0); val != nil {
		ids = val.([]int)
	}
	return ids, args.Error(1)
}

type CourseCatalogMock struct {
	mock.Mock
}

func (m *CourseCatalogMock) Lookup(ctx context.Context, courseCode, university string) (repositories.CatalogCourse, error) {
	args := m.Called(ctx, courseCode, university)
	var course repositories.CatalogCourse
	if val := args.Get(0); val != nil {
		course = val.(repositories.CatalogCourse)
	}
	return course, args.Error(1)
}
