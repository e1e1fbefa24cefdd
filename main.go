package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/ailayzer/boltchat/api"
	"github.com/ailayzer/boltchat/config"
	"github.com/ailayzer/boltchat/rag"
	"github.com/ailayzer/boltchat/store"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("starting boltchat",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("database", cfg.DatabaseURL),
		zap.String("rag_backend", cfg.RAGBaseURL))

	// Initialize store
	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer db.Close()

	// Temporary sessions do not survive restarts.
	purged, err := db.PurgeTemporary(context.Background())
	if err != nil {
		logger.Warn("failed to purge temporary sessions", zap.Error(err))
	} else if purged > 0 {
		logger.Info("purged temporary sessions", zap.Int("count", purged))
	}

	// Initialize RAG client
	ragClient := rag.NewClient(cfg.RAGBaseURL, cfg.RAGTimeout, logger)

	// Initialize handler
	h := api.NewHandler(db, ragClient, logger)

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	h.RegisterRoutes(e)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()

	logger.Info("gateway started", zap.Int("port", cfg.HTTPPort))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server gracefully", zap.Error(err))
	}

	logger.Info("stopped")
}

// newLogger builds the process logger. Console encoding keeps local runs
// readable; debug mode surfaces per-chunk stream telemetry.
func newLogger(debug bool) *zap.Logger {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder

	level := zap.InfoLevel
	if debug {
		level = zap.DebugLevel
	}

	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderConfig),
		zapcore.AddSync(os.Stdout),
		level,
	)

	return zap.New(core)
}
