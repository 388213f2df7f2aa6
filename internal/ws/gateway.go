package ws

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"

	"campus-chat/internal/auth"
	"campus-chat/internal/chat"
	"campus-chat/internal/models"
	"campus-chat/internal/observability"
	"campus-chat/internal/repositories"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Gateway authenticates websocket handshakes, wires accepted connections
// into the hub and presence table, and pumps inbound frames through the
// router.
type Gateway struct {
	hub           *Hub
	presence      *Presence
	router        *Router
	conversations *chat.ConversationService
	users         repositories.UserRepository
	verifier      auth.Verifier
}

// NewGateway constructs a Gateway.
func NewGateway(
	hub *Hub,
	presence *Presence,
	router *Router,
	conversations *chat.ConversationService,
	users repositories.UserRepository,
	verifier auth.Verifier,
) *Gateway {
	return &Gateway{
		hub:           hub,
		presence:      presence,
		router:        router,
		conversations: conversations,
		users:         users,
		verifier:      verifier,
	}
}

// Handle authenticates and upgrades the connection. Rejections happen
// before the upgrade, as plain HTTP errors.
func (g *Gateway) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("campus-chat/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token := bearerToken(c)
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	subject, err := g.verifier.Verify(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	// The handshake carries both a credential and a claimed identity; the
	// claim must be present and match the token's subject.
	claimed := c.GetHeader("X-External-Id")
	if claimed == "" {
		claimed = c.Query("externalId")
	}
	if claimed == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return
	}
	if claimed != subject {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "identity mismatch"})
		return
	}

	user, err := g.users.GetByExternalID(ctx, subject)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	traceID := span.SpanContext().TraceID().String()
	requestID := observability.RequestIDFromRequest(c.Request)
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      user.ID,
		DeviceID:    observability.DeviceIDFromRequest(c.Request),
		IP:          observability.IPFromRequest(c.Request),
		RequestID:   requestID,
		TraceID:     traceID,
		ConnectedAt: time.Now(),
	}
	client := NewClient(conn, info)

	first := g.presence.Register(user.ID, info.ConnID)
	g.hub.Register(client)
	g.hub.Join(client, userRoom(user.ID))

	// Pre-subscribe to every conversation the user belongs to; a failure
	// here degrades to explicit conversation:join commands.
	if convIDs, err := g.conversations.ConversationIDsFor(ctx, user.ID); err == nil {
		for _, id := range convIDs {
			g.hub.Join(client, conversationRoom(id))
		}
	} else {
		log.Printf("list conversations for user %d: %v", user.ID, err)
	}

	if first {
		g.hub.BroadcastAll(models.PresenceOnline{UserID: user.ID}, client)
	}
	observability.SetOnlineUsers(len(g.presence.OnlineUsers()))

	observability.IncWSActive("conversations")
	observability.IncWSEvent("conversations", "ws_connect")
	_ = observability.PublishEvent(ctx, "ws_events.conversations", observability.EventEnvelope{
		EventType: "ws_events",
		EventName: "ws_connect",
		Payload:   g.wsPayload(info, "ws_connect", 0, ""),
	}, observability.BuildHeaders(requestID, traceID))

	go func() {
		var closeReason string
		defer func() {
			g.hub.Unregister(client)
			if userID, last := g.presence.Unregister(info.ConnID); last {
				g.hub.BroadcastAll(models.PresenceOffline{UserID: userID}, nil)
			}
			observability.SetOnlineUsers(len(g.presence.OnlineUsers()))
			observability.DecWSActive("conversations")
			observability.IncWSEvent("conversations", "ws_disconnect")
			_ = observability.PublishEvent(ctx, "ws_events.conversations", observability.EventEnvelope{
				EventType: "ws_events",
				EventName: "ws_disconnect",
				Payload:   g.wsPayload(info, "ws_disconnect", time.Since(info.ConnectedAt).Milliseconds(), closeReason),
			}, observability.BuildHeaders(requestID, traceID))
		}()
		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				closeReason = err.Error()
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					observability.IncWSEvent("conversations", "ws_error")
					_ = observability.PublishEvent(ctx, "ws_events.conversations", observability.EventEnvelope{
						EventType: "ws_events",
						EventName: "ws_error",
						Payload:   g.wsPayload(info, "ws_error", time.Since(info.ConnectedAt).Milliseconds(), closeReason),
					}, observability.BuildHeaders(requestID, traceID))
				}
				return
			}
			g.router.Dispatch(ctx, client, raw)
		}
	}()
}

func (g *Gateway) wsPayload(info ConnInfo, event string, durationMS int64, reason string) map[string]interface{} {
	return map[string]interface{}{
		"ws": map[string]interface{}{
			"kind":        "conversations",
			"event":       event,
			"conn_id":     info.ConnID,
			"duration_ms": durationMS,
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   info.UserID,
			"device_id": info.DeviceID,
			"ip":        info.IP,
		},
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header != "" {
		parts := strings.Split(header, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
		return ""
	}
	return c.Query("token")
}
