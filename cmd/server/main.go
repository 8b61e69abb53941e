package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/opentalk/chatroom/internal/cache"
	"github.com/opentalk/chatroom/internal/config"
	"github.com/opentalk/chatroom/internal/directory"
	"github.com/opentalk/chatroom/internal/domain"
	"github.com/opentalk/chatroom/internal/gateway"
	"github.com/opentalk/chatroom/internal/handler"
	"github.com/opentalk/chatroom/internal/hub"
	"github.com/opentalk/chatroom/internal/presence"
	"github.com/opentalk/chatroom/internal/repository"
	"github.com/opentalk/chatroom/internal/routing"
	"github.com/opentalk/chatroom/internal/service"
	"github.com/opentalk/chatroom/pkg/database"
	"github.com/opentalk/chatroom/pkg/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := log.L()
		l.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Init(log.Config{
		Level:       cfg.Log.Level,
		ServiceName: "chatroom",
	})
	logger := log.L()

	db, err := database.New(&database.Config{
		Driver:          cfg.Database.Driver,
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		DBName:          cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		FilePath:        cfg.Database.FilePath,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	if err := database.AutoMigrate(db, &domain.RoomModel{}, &domain.ChatMessageModel{}); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database")
	}

	roomRepo := repository.NewGormRoomRepository(db)
	msgRepo := repository.NewGormMessageRepository(db)

	dir := directory.New()
	wsHub := hub.New(cfg.WebSocket)

	var roomCache cache.RoomCache
	if cfg.Cache.Enabled {
		rc, err := cache.NewRedisRoomCache(cfg.Redis, cfg.Cache.Prefix)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer rc.Close()
		roomCache = rc
		logger.Info().Str("address", cfg.Redis.Address).Msg("room cache enabled")
	}

	manager := presence.NewManager(dir, roomRepo, msgRepo, wsHub, presence.Config{
		IdleTimeout:   cfg.Chat.IdleTimeout,
		PurgeInterval: cfg.Chat.PurgeInterval,
	})
	router := routing.NewRouter(dir, roomRepo, msgRepo, wsHub)
	gw := gateway.New(wsHub, manager, router, cfg.WebSocket)

	roomService := service.NewRoomService(roomRepo, roomCache, cfg.Cache, dir)
	httpHandler := handler.NewHandler(roomService)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(log.GinMiddleware(logger))

	httpHandler.RegisterRoutes(engine)
	engine.GET("/chat/ws", func(c *gin.Context) {
		gw.HandleWebSocket(c.Writer, c.Request)
	})
	engine.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		wsHub.Run(gctx)
		return nil
	})

	g.Go(func() error {
		return manager.RunPurgeLoop(gctx)
	})

	g.Go(func() error {
		logger.Info().Str("address", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}

	logger.Info().Msg("server stopped")
}
