package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/fmonfasani/nexus/internal/audit"
	"github.com/fmonfasani/nexus/internal/cache"
	"github.com/fmonfasani/nexus/internal/config"
	"github.com/fmonfasani/nexus/internal/domain"
	"github.com/fmonfasani/nexus/internal/handler"
	"github.com/fmonfasani/nexus/internal/hub"
	"github.com/fmonfasani/nexus/internal/lifecycle"
	"github.com/fmonfasani/nexus/internal/quality"
	"github.com/fmonfasani/nexus/internal/registry"
	"github.com/fmonfasani/nexus/internal/relay"
	"github.com/fmonfasani/nexus/internal/repository"
	"github.com/fmonfasani/nexus/internal/service"
	"github.com/fmonfasani/nexus/internal/transcription"
	"github.com/fmonfasani/nexus/pkg/database"
	"github.com/fmonfasani/nexus/pkg/jwt"
	"github.com/fmonfasani/nexus/pkg/log"
	"github.com/fmonfasani/nexus/pkg/middleware"
	"github.com/fmonfasani/nexus/pkg/pubsub"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log.Init(log.Config{
		Level:       cfg.Log.Level,
		ServiceName: "meeting-service",
	})
	l := log.L()

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
		l.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.AutoMigrate(db, &domain.MeetingModel{}); err != nil {
		l.Fatal().Err(err).Msg("failed to run migrations")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ps, err := pubsub.NewPubSub(cfg.PubSub)
	if err != nil {
		l.Fatal().Err(err).Msg("failed to connect to pubsub")
	}
	defer ps.Close()

	tokens := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.AccessDuration, cfg.JWT.Issuer)

	h := hub.NewHub(cfg.WebSocket)
	lc := lifecycle.NewManager(cfg.Meeting.GracePeriod)
	reg := registry.New(h, lc, cfg.Meeting.MaxParticipants)
	rel := relay.New(reg, h)
	qual := quality.New(cfg.Quality, h)
	bridge := transcription.NewBridge(ps, h, reg)

	repo := repository.NewGormMeetingRepository(db)
	meetingCache := cache.NewMeetingCache(redisClient, cfg.Cache.Prefix, cfg.Cache.TTL)
	auditLog := audit.NewLogger()

	svc := service.NewMeetingService(cfg, h, reg, rel, qual, lc, bridge, repo, meetingCache, auditLog, tokens)

	wsHandler := handler.NewWSHandler(h, svc, cfg.WebSocket)
	httpHandler := handler.NewHTTPHandler(svc)
	auth := middleware.NewAuthMiddleware(tokens)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(l))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/ws", wsHandler.HandleWebSocket)

	api := router.Group("/api/v1")
	httpHandler.RegisterRoutes(api, auth)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	go func() {
		l.Info().Str("addr", srv.Addr).Msg("meeting service listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			l.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	svc.Stop(ctx)
	if err := srv.Shutdown(ctx); err != nil {
		l.Error().Err(err).Msg("forced shutdown")
	}

	l.Info().Msg("meeting service stopped")
}
