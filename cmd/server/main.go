package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apptreasury "github.com/tresoria/backend/internal/application/treasury"
	"github.com/tresoria/backend/internal/domain/treasury"
	"github.com/tresoria/backend/internal/infrastructure/auth"
	"github.com/tresoria/backend/internal/infrastructure/config"
	"github.com/tresoria/backend/internal/infrastructure/event"
	"github.com/tresoria/backend/internal/infrastructure/logger"
	"github.com/tresoria/backend/internal/infrastructure/persistence"
	"github.com/tresoria/backend/internal/infrastructure/treasuryapi"
	"github.com/tresoria/backend/internal/interfaces/http/handler"
	"github.com/tresoria/backend/internal/interfaces/http/router"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting Tresoria backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("gateway_mode", cfg.Gateway.Mode),
	)

	// Select the treasury gateway: remote talks to the treasury backend
	// over HTTP, embedded serves the lifecycle from the local database
	var gateway treasury.Gateway
	var ready func(c *gin.Context) error
	if cfg.Gateway.Mode == config.GatewayModeRemote {
		gateway = treasuryapi.NewClient(cfg.Gateway, log)
	} else {
		db, err := persistence.NewDatabase(cfg.Database, log, cfg.Log.Level)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}()
		if err := db.Migrate(); err != nil {
			log.Fatal("Failed to migrate database", zap.Error(err))
		}
		gateway = persistence.NewEmbeddedGateway(db, log)
		ready = func(c *gin.Context) error {
			return db.Ping(c.Request.Context())
		}
	}

	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	// The history cache invalidates itself on every confirmed sheet change
	historyRefresher := apptreasury.NewHistoryRefreshHandler(gateway, log)
	eventBus.Subscribe(historyRefresher)

	sheetService := apptreasury.NewReceiptSheetService(gateway, eventBus, log)
	jwtService := auth.NewJWTService(cfg.JWT)

	engine := router.Setup(cfg, log, jwtService, router.Handlers{
		System:       handler.NewSystemHandler(cfg, ready),
		ReceiptSheet: handler.NewReceiptSheetHandler(sheetService, log),
		Reference:    handler.NewReferenceHandler(sheetService, log),
	})

	server := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error("Forced shutdown", zap.Error(err))
	}
	if err := eventBus.Stop(ctx); err != nil {
		log.Error("Event bus stop failed", zap.Error(err))
	}
	log.Info("Stopped")
}
