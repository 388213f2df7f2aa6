package ws

import (
	"strconv"

	"github.com/google/uuid"
)

func newConnID() string {
	return uuid.NewString()
}

func conversationRoom(conversationID int) string {
	return "conversation:" + strconv.Itoa(conversationID)
}

func userRoom(userID int) string {
	return "user:" + strconv.Itoa(userID)
}
