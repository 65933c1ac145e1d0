package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"community_chat/internal/config"
	"community_chat/internal/gateway"
	"community_chat/internal/handler"
	"community_chat/internal/hub"
	"community_chat/internal/middleware"
	"community_chat/internal/repository"
	"community_chat/internal/service"
	"community_chat/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log.Level)

	dbPool, err := pgxpool.New(context.Background(), cfg.Database.DSN)
	if err != nil {
		appLogger.Fatal("Failed to connect to database", "error", err)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(context.Background()); err != nil {
		appLogger.Fatal("Failed to ping database", "error", err)
	}
	appLogger.Info("Database connection established")

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		appLogger.Fatal("Failed to connect to Redis", "error", err)
	}
	appLogger.Info("Redis connection established")

	repos := repository.NewRepositories(dbPool, rdb, appLogger)

	eventHub := hub.New(appLogger)
	services := service.NewServices(repos, eventHub, cfg, appLogger)

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	go services.Typing.RunSweeper(sweepCtx)

	authMiddleware := middleware.NewAuthMiddleware(services.Auth, appLogger)
	rateLimitMiddleware := middleware.NewRateLimitMiddleware(services.RateLimit, appLogger)

	handlers := handler.NewHandlers(services, cfg, appLogger)
	wsGateway := gateway.New(eventHub, services, cfg.Chat, appLogger)

	router := setupRouter(handlers, wsGateway, authMiddleware, rateLimitMiddleware, cfg, appLogger)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		appLogger.Info("Starting server", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Fatal("Failed to start server", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	stopSweeper()
	eventHub.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Fatal("Server forced to shutdown", "error", err)
	}

	appLogger.Info("Server exited")
}

func setupRouter(
	handlers *handler.Handlers,
	wsGateway *gateway.Gateway,
	authMiddleware *middleware.AuthMiddleware,
	rateLimitMiddleware *middleware.RateLimitMiddleware,
	cfg *config.Config,
	log logger.Logger,
) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.RequestLogger(log))
	router.Use(middleware.ErrorHandler())

	router.GET("/health", handlers.Health.Check)

	authLimit := rateLimitMiddleware.Limit(20, time.Minute)
	apiLimit := rateLimitMiddleware.Limit(300, time.Minute)

	v1 := router.Group("/api/v1")
	{
		public := v1.Group("/auth")
		{
			public.POST("/register", authLimit, handlers.Auth.Register)
			public.POST("/login", authLimit, handlers.Auth.Login)
			public.POST("/refresh", handlers.Auth.RefreshToken)
			public.POST("/logout", handlers.Auth.Logout)
		}

		protected := v1.Group("")
		protected.Use(authMiddleware.RequireAuth(), apiLimit)
		{
			users := protected.Group("/users")
			{
				users.GET("/me", handlers.User.Me)
				users.PUT("/me", handlers.User.UpdateProfile)
				users.GET("/by-username/:username", handlers.User.GetByUsername)
				users.GET("/:userID/status", handlers.Presence.UserStatus)
			}

			protected.GET("/online", handlers.Presence.OnlineUsers)
			protected.GET("/activity", handlers.Presence.RecentActivity)

			rooms := protected.Group("/rooms")
			{
				rooms.POST("", handlers.Room.Create)
				rooms.GET("", handlers.Room.List)
				rooms.GET("/:roomID", handlers.Room.Get)
				rooms.PUT("/:roomID", handlers.Room.Update)
				rooms.POST("/:roomID/join", handlers.Room.Join)
				rooms.POST("/:roomID/leave", handlers.Room.Leave)
				rooms.GET("/:roomID/members", handlers.Room.Members)
				rooms.PUT("/:roomID/mute", handlers.Room.SetMuted)
				rooms.PUT("/:roomID/pin", handlers.Room.SetPinned)
				rooms.POST("/:roomID/read", handlers.Room.MarkRead)
				rooms.GET("/:roomID/activity", handlers.Presence.RoomActivity)

				rooms.GET("/:roomID/messages", handlers.Message.List)
				rooms.POST("/:roomID/messages", handlers.Message.Send)
				rooms.GET("/:roomID/messages/search", handlers.Message.Search)
				rooms.GET("/:roomID/unread", handlers.Message.Unread)
			}

			messages := protected.Group("/messages")
			{
				messages.GET("/:messageID", handlers.Message.Get)
				messages.PUT("/:messageID", handlers.Message.Edit)
				messages.DELETE("/:messageID", handlers.Message.Delete)
				messages.POST("/:messageID/reactions", handlers.Message.React)
			}
		}
	}

	ws := router.Group("/ws")
	ws.Use(authMiddleware.RequireAuth())
	{
		ws.GET("/chat/:roomID", wsGateway.RoomSocket)
		ws.GET("/rooms", wsGateway.RoomListSocket)
	}

	return router
}
