package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"campus-chat/internal/chat"
	"campus-chat/internal/mocks"
	"campus-chat/internal/models"
)

// socketPair returns connected server- and client-side websocket conns.
func socketPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	accepted := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientSide, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientSide.Close() })

	serverSide := <-accepted
	t.Cleanup(func() { serverSide.Close() })
	return serverSide, clientSide
}

func readEnvelope(t *testing.T, conn *websocket.Conn) outboundEnvelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env outboundEnvelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

type routerFixture struct {
	hub      *Hub
	convRepo *mocks.ConversationRepositoryMock
	msgRepo  *mocks.MessageRepositoryMock
	userRepo *mocks.UserRepositoryMock
	router   *Router
}

func newRouterFixture() *routerFixture {
	f := &routerFixture{
		hub:      NewHub(),
		convRepo: new(mocks.ConversationRepositoryMock),
		msgRepo:  new(mocks.MessageRepositoryMock),
		userRepo: new(mocks.UserRepositoryMock),
	}
	conversations := chat.NewConversationService(f.convRepo, f.msgRepo, f.userRepo, new(mocks.CourseCatalogMock), f.hub)
	messages := chat.NewMessageService(f.msgRepo, f.convRepo, f.userRepo, f.hub)
	f.router = NewRouter(f.hub, conversations, messages)
	return f
}

func TestDispatchUnknownEventAnswersWithError(t *testing.T) {
	f := newRouterFixture()
	serverSide, clientSide := socketPair(t)
	client := NewClient(serverSide, ConnInfo{ConnID: "a", UserID: 1})
	f.hub.Register(client)

	f.router.Dispatch(context.Background(), client, []byte(`{"event":"bogus","data":{}}`))

	env := readEnvelope(t, clientSide)
	require.Equal(t, "error", env.Event)
	var payload models.ErrorEvent
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "validation_error", payload.Code)
}

func TestDispatchMalformedFrameAnswersWithError(t *testing.T) {
	f := newRouterFixture()
	serverSide, clientSide := socketPair(t)
	client := NewClient(serverSide, ConnInfo{ConnID: "a", UserID: 1})
	f.hub.Register(client)

	f.router.Dispatch(context.Background(), client, []byte(`not json`))

	env := readEnvelope(t, clientSide)
	require.Equal(t, "error", env.Event)
}

func TestJoinConversationDeliversHistory(t *testing.T) {
	f := newRouterFixture()
	serverSide, clientSide := socketPair(t)
	client := NewClient(serverSide, ConnInfo{ConnID: "a", UserID: 2})
	f.hub.Register(client)

	msgs := []models.Message{{ID: 1, ConversationID: 5, SenderID: 1, Content: "hi"}}
	f.convRepo.On("IsParticipant", mock.Anything, 5, 2).Return(true, nil)
	f.msgRepo.On("ListPage", mock.Anything, 5, models.MessagePageOptions{Page: 1, Limit: historyPageSize}).Return(msgs, nil).Once()
	f.msgRepo.On("MarkRead", mock.Anything, 5, []int{1}, 2).Return(nil).Once()
	f.msgRepo.On("ReadReceipts", mock.Anything, []int{1}).Return(map[int][]models.ReadReceipt{}, nil).Once()
	f.userRepo.On("BulkByIDs", mock.Anything, []int{1}).Return([]models.User{{ID: 1, Name: "alice"}}, nil).Once()

	f.router.Dispatch(context.Background(), client, []byte(`{"event":"conversation:join","data":{"conversationId":5}}`))

	env := readEnvelope(t, clientSide)
	require.Equal(t, "conversation:messages", env.Event)
	var payload models.ConversationMessages
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, 5, payload.ConversationID)
	require.Len(t, payload.Messages, 1)

	if len(f.hub.rooms[conversationRoom(5)]) != 1 {
		t.Fatalf("expected joining client to be subscribed to the room")
	}
	f.msgRepo.AssertExpectations(t)
}

func TestJoinConversationRejectsNonParticipant(t *testing.T) {
	f := newRouterFixture()
	serverSide, clientSide := socketPair(t)
	client := NewClient(serverSide, ConnInfo{ConnID: "a", UserID: 9})
	f.hub.Register(client)

	f.convRepo.On("IsParticipant", mock.Anything, 5, 9).Return(false, nil).Once()

	f.router.Dispatch(context.Background(), client, []byte(`{"event":"conversation:join","data":{"conversationId":5}}`))

	env := readEnvelope(t, clientSide)
	require.Equal(t, "error", env.Event)
	var payload models.ErrorEvent
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "not_authorized", payload.Code)

	if len(f.hub.rooms) != 0 {
		t.Fatalf("rejected client must not be subscribed")
	}
}

func TestTypingRelaySkipsSender(t *testing.T) {
	f := newRouterFixture()

	senderServer, senderClient := socketPair(t)
	peerServer, peerClient := socketPair(t)

	sender := NewClient(senderServer, ConnInfo{ConnID: "sender", UserID: 1})
	peer := NewClient(peerServer, ConnInfo{ConnID: "peer", UserID: 2})
	f.hub.Register(sender)
	f.hub.Register(peer)
	f.hub.Join(sender, conversationRoom(5))
	f.hub.Join(peer, conversationRoom(5))

	f.convRepo.On("IsParticipant", mock.Anything, 5, 1).Return(true, nil).Once()

	f.router.Dispatch(context.Background(), sender, []byte(`{"event":"typing:start","data":{"conversationId":5}}`))

	env := readEnvelope(t, peerClient)
	require.Equal(t, "user:typing", env.Event)
	var payload models.UserTyping
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, 1, payload.UserID)

	// The typist's own connection must stay quiet.
	require.NoError(t, senderClient.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err := senderClient.ReadMessage()
	require.Error(t, err)
}

func TestMarkReadDispatchBroadcastsReceipts(t *testing.T) {
	f := newRouterFixture()

	senderServer, _ := socketPair(t)
	peerServer, peerClient := socketPair(t)

	reader := NewClient(senderServer, ConnInfo{ConnID: "reader", UserID: 2})
	peer := NewClient(peerServer, ConnInfo{ConnID: "peer", UserID: 1})
	f.hub.Register(reader)
	f.hub.Register(peer)
	f.hub.Join(peer, conversationRoom(5))

	f.convRepo.On("IsParticipant", mock.Anything, 5, 2).Return(true, nil).Once()
	f.msgRepo.On("MarkRead", mock.Anything, 5, []int{3, 4}, 2).Return(nil).Once()

	f.router.Dispatch(context.Background(), reader, []byte(`{"event":"messages:markRead","data":{"conversationId":5,"messageIds":[3,4]}}`))

	env := readEnvelope(t, peerClient)
	require.Equal(t, "messages:read", env.Event)
	var payload models.MessagesRead
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, []int{3, 4}, payload.MessageIDs)
	assert.Equal(t, 2, payload.UserID)
	f.msgRepo.AssertExpectations(t)
}

func TestGroupLeaveDispatchEvictsAndAnnounces(t *testing.T) {
	f := newRouterFixture()

	leaverServer, _ := socketPair(t)
	peerServer, peerClient := socketPair(t)

	leaver := NewClient(leaverServer, ConnInfo{ConnID: "leaver", UserID: 2})
	peer := NewClient(peerServer, ConnInfo{ConnID: "peer", UserID: 1})
	f.hub.Register(leaver)
	f.hub.Register(peer)
	f.hub.Join(leaver, conversationRoom(8))
	f.hub.Join(peer, conversationRoom(8))

	f.convRepo.On("Get", mock.Anything, 8).Return(models.Conversation{ID: 8, Kind: models.KindGroup}, nil).Once()
	f.convRepo.On("RemoveParticipant", mock.Anything, 8, 2).Return(nil).Once()

	f.router.Dispatch(context.Background(), leaver, []byte(`{"event":"group:leave","data":{"conversationId":8}}`))

	env := readEnvelope(t, peerClient)
	require.Equal(t, "participant:left", env.Event)

	if len(f.hub.rooms[conversationRoom(8)]) != 1 {
		t.Fatalf("expected leaver to be evicted from the room")
	}
	f.convRepo.AssertExpectations(t)
}
