package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"board-service/internal/auth"
	"board-service/internal/config"
	"board-service/internal/db"
	"board-service/internal/grpcserver"
	"board-service/internal/handlers"
	"board-service/internal/logging"
	"board-service/internal/middleware"
	"board-service/internal/observability"
	"board-service/internal/presence"
	"board-service/internal/rabbitmq"
	"board-service/internal/repositories"
	"board-service/internal/storage"
	"board-service/internal/telemetry"
	"board-service/internal/ws"
)

func main() {
	boot, _ := zap.NewProduction()
	cfg, err := config.Load()
	if err != nil {
		boot.Fatal("load config", zap.Error(err))
	}

	logger, err := logging.New(cfg.Env, cfg.ServiceName)
	if err != nil {
		boot.Fatal("build logger", zap.Error(err))
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.Env)
	if err != nil {
		logger.Fatal("init tracing", zap.Error(err))
	}

	database, err := db.Connect(cfg.DBDSN, logger)
	if err != nil {
		logger.Fatal("failed to connect to db", zap.Error(err))
	}
	defer database.Close()

	store, closeStore, err := newPresenceStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to set up presence store", zap.Error(err))
	}
	defer closeStore()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)
	defer publisher.Close()
	observability.SetPublisher(publisher)
	logger.Info("event publisher ready",
		zap.String("mode", rabbitmq.PublisherMode(publisher)),
		zap.String("noop_reason", rabbitmq.PublisherNoopReason(publisher)))
	audit := telemetry.NewAuditEmitter(publisher, cfg.AuditRoutingKey, cfg.ServiceName, cfg.Env, logger)

	images, err := storage.NewImageStore(cfg.ImageStoragePath, cfg.MaxImageBytes)
	if err != nil {
		logger.Fatal("failed to prepare image storage", zap.Error(err))
	}

	boardRepo := repositories.NewBoardRepo(database)
	elementRepo := repositories.NewElementRepo(database)
	userRepo := repositories.NewUserRepo(database)

	validator := auth.NewValidator(cfg.JWTSecret, cfg.JWTIssuer)
	hub := ws.NewHub(ws.RepositoryLoader{Boards: boardRepo, Elements: elementRepo}, store, logger)

	boardHandler := handlers.NewBoardHandler(boardRepo, elementRepo, userRepo, hub, audit)
	elementHandler := handlers.NewElementHandler(boardRepo, elementRepo, images, hub, audit)
	contentHandler := handlers.NewContentHandler(images)
	boardWS := ws.NewBoardWebSocketHandler(hub, validator, ws.Options{
		SendBuffer:   cfg.WSSendBuffer,
		WriteTimeout: cfg.WSWriteTimeout,
		PongTimeout:  cfg.WSPongTimeout,
	}, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// middlewares
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/healthz", handlers.Health(database))
	router.GET("/content/:image_id", contentHandler.GetImage)
	handlers.RegisterDebugRoutes(router, audit, hub, cfg.DebugRoutes)

	authMiddleware := middleware.AuthMiddleware(validator, userRepo)

	router.POST("/boards", authMiddleware, boardHandler.CreateBoard)
	router.GET("/boards", authMiddleware, boardHandler.ListBoards)
	router.GET("/boards/:board_id", authMiddleware, boardHandler.GetBoard)
	router.PUT("/boards/:board_id", authMiddleware, boardHandler.UpdateBoard)
	router.DELETE("/boards/:board_id", authMiddleware, boardHandler.DeleteBoard)
	router.POST("/boards/:board_id/users", authMiddleware, boardHandler.AddMember)
	router.DELETE("/boards/:board_id/users/:user_id", authMiddleware, boardHandler.RemoveMember)

	router.GET("/boards/:board_id/elements", authMiddleware, elementHandler.ListElements)
	router.POST("/boards/:board_id/elements", authMiddleware, elementHandler.CreateElement)
	router.POST("/boards/:board_id/elements/:element_id/image", authMiddleware, elementHandler.AttachImage)
	router.DELETE("/boards/:board_id/elements/:element_id", authMiddleware, elementHandler.DeleteElement)

	router.GET("/ws/boards", boardWS.Handle)

	grpcServer := grpcserver.New(logger)
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		logger.Fatal("grpc listen", zap.String("addr", cfg.GRPCAddr), zap.Error(err))
	}
	go func() {
		if err := grpcServer.Serve(grpcLis); err != nil {
			logger.Error("grpc server error", zap.Error(err))
		}
	}()

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()
	grpcServer.SetServing(true)

	<-ctx.Done()
	logger.Info("shutting down")
	grpcServer.SetServing(false)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	grpcServer.Stop(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown", zap.Error(err))
	}
}

func newPresenceStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (presence.Store, func(), error) {
	if cfg.PresenceBackend != config.PresenceRedis {
		logger.Info("presence store ready", zap.String("backend", config.PresenceMemory))
		return presence.NewMapping(), func() {}, nil
	}

	client, err := presence.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("presence store ready",
		zap.String("backend", config.PresenceRedis),
		zap.String("addr", cfg.RedisAddr))
	return presence.NewRedisStore(client, cfg.ServiceName+":presence"), func() { _ = client.Close() }, nil
}
