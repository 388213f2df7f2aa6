package mocks

import (
	"github.com/stretchr/testify/mock"

	"campus-chat/internal/models"
)

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) ToConversation(conversationID int, event models.OutboundEvent) {
	m.Called(conversationID, event)
}

func (m *NotifierMock) ToUser(userID int, event models.OutboundEvent) {
	m.Called(userID, event)
}

func (m *NotifierMock) JoinConversation(userID, conversationID int) {
	m.Called(userID, conversationID)
}

func (m *NotifierMock) LeaveConversation(userID, conversationID int) {
	m.Called(userID, conversationID)
}
