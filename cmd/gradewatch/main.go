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
	"go.uber.org/zap"

	"github.com/alexchen1337/SpeakWell/internal/authcache"
	"github.com/alexchen1337/SpeakWell/internal/client"
	"github.com/alexchen1337/SpeakWell/internal/config"
	"github.com/alexchen1337/SpeakWell/internal/coordinator"
	handler "github.com/alexchen1337/SpeakWell/internal/delivery/http"
	"github.com/alexchen1337/SpeakWell/internal/publisher"
)

func main() {
	// Initialize logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	logger.Info("Starting GradeWatch")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.GinMode)

	// Grading API client
	api := client.NewGradeAPI(cfg.GradeAPI.BaseURL, cfg.GradeAPI.Token, cfg.GradeAPI.FetchTimeout, logger)

	// Verify credentials and warm the identity cache
	auth := authcache.New(api, cfg.Auth.CacheTTL, logger)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.GradeAPI.FetchTimeout)
	user, err := auth.CurrentUser(ctx)
	cancel()
	if err != nil {
		logger.Warn("Could not verify grading API credentials", zap.Error(err))
	} else {
		logger.Info("Authenticated against grading API", zap.String("user_id", user.ID), zap.String("email", user.Email))
	}

	// Event publisher
	var pub publisher.Publisher = publisher.Nop{}
	if cfg.RabbitMQ.Enabled {
		pub, err = publisher.NewRabbitMQPublisher(cfg.RabbitMQ.URL, logger)
		if err != nil {
			logger.Fatal("Failed to initialize RabbitMQ publisher", zap.Error(err))
		}
		logger.Info("Connected to RabbitMQ")
	}
	defer pub.Close()

	// Watch manager
	manager := coordinator.NewManager(api, pub, cfg.Watch.PollInterval, logger)
	defer manager.Close()

	// Start watches configured at boot
	for _, audioID := range cfg.Watch.BootAudioIDs {
		if _, err := manager.Watch(context.Background(), audioID); err != nil {
			logger.Warn("Failed to start boot watch", zap.String("audio_id", audioID), zap.Error(err))
		}
	}

	// Initialize router
	router := handler.NewRouter(handler.RouterDeps{
		Manager:         manager,
		Auth:            auth,
		Logger:          logger,
		RateLimitPerMin: cfg.Server.RateLimit,
	})

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("GradeWatch listening", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down GradeWatch...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("GradeWatch stopped")
}
