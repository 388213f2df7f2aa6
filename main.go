package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"campus-chat/internal/auth"
	"campus-chat/internal/chat"
	"campus-chat/internal/config"
	"campus-chat/internal/db"
	"campus-chat/internal/handlers"
	"campus-chat/internal/middleware"
	"campus-chat/internal/observability"
	"campus-chat/internal/rabbitmq"
	"campus-chat/internal/repositories"
	"campus-chat/internal/telemetry"
	"campus-chat/internal/ws"
)

const serviceName = "campus-chat"

func main() {
	cfg := config.Load()

	shutdownTracing, err := observability.InitTracing(context.Background(), serviceName, cfg.OTLPEndpoint)
	if err != nil {
		log.Fatalf("failed to init tracing: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	database, err := db.Connect(cfg.DBDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}

	auditPublisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer auditPublisher.Close()
	log.Printf("audit publisher mode=%s reason=%q", rabbitmq.PublisherMode(auditPublisher), rabbitmq.PublisherNoopReason(auditPublisher))
	audit := telemetry.NewAuditEmitter(auditPublisher, cfg.AuditRoutingKey, serviceName, cfg.Environment)

	if wsEventsPublisher, err := observability.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange); err != nil {
		log.Printf("ws event publishing disabled: %v", err)
	} else {
		observability.SetPublisher(wsEventsPublisher)
		defer wsEventsPublisher.Close()
	}

	userRepo := repositories.NewUserRepo(database)
	convRepo := repositories.NewConversationRepo(database)
	msgRepo := repositories.NewMessageRepo(database)
	catalogRepo := repositories.NewCatalogRepo(database)

	hub := ws.NewHub()
	presence := ws.NewPresence()

	conversationService := chat.NewConversationService(convRepo, msgRepo, userRepo, catalogRepo, hub)
	messageService := chat.NewMessageService(msgRepo, convRepo, userRepo, hub)

	verifier := auth.NewJWTVerifier(cfg.JWTSecret)

	wsRouter := ws.NewRouter(hub, conversationService, messageService)
	gateway := ws.NewGateway(hub, presence, wsRouter, conversationService, userRepo, verifier)

	conversationHandler := handlers.NewConversationHandler(conversationService, audit)
	messageHandler := handlers.NewMessageHandler(messageService, audit)
	userHandler := handlers.NewUserHandler(userRepo)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(observability.HTTPMetricsMiddleware())
	router.Use(otelgin.Middleware(serviceName))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.GET("/ws", gateway.Handle)

	authMiddleware := middleware.AuthMiddleware(verifier, userRepo)
	api := router.Group("/", authMiddleware)

	api.GET("/conversations", conversationHandler.List)
	api.POST("/conversations", conversationHandler.CreateGroup)
	api.POST("/conversations/direct", conversationHandler.StartDirect)
	api.GET("/conversations/:conversation_id", conversationHandler.Get)
	api.PATCH("/conversations/:conversation_id", conversationHandler.Update)
	api.POST("/conversations/:conversation_id/archive", conversationHandler.ToggleArchive)
	api.POST("/conversations/:conversation_id/participants", conversationHandler.AddParticipants)
	api.DELETE("/conversations/:conversation_id/participants/:user_id", conversationHandler.RemoveParticipant)

	api.GET("/conversations/:conversation_id/messages", messageHandler.List)
	api.POST("/conversations/:conversation_id/messages", messageHandler.Post)
	api.POST("/conversations/:conversation_id/messages/read", messageHandler.MarkRead)
	api.PATCH("/messages/:message_id", messageHandler.Edit)
	api.DELETE("/messages/:message_id", messageHandler.Delete)

	api.GET("/users/search", userHandler.Search)
	api.POST("/courses/join", conversationHandler.JoinCourseGroup)

	log.Printf("listening on :%s environment=%s", cfg.Port, cfg.Environment)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
