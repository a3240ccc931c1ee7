// Command matchengine runs the HTTP/WebSocket front end over a registry of
// per-symbol order books, loading its instrument catalog and listen
// configuration from the environment (optionally via a .env file).
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"echomill/instrument"
	"echomill/registry"
	"echomill/server"
)

const defaultListenAddr = ":8080"

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env file", zap.Error(err))
	}

	catalogPath := getEnv("INSTRUMENT_CATALOG", "instruments.yaml")
	catalog, err := instrument.LoadFromFile(catalogPath)
	if err != nil {
		logger.Fatal("failed to load instrument catalog", zap.String("path", catalogPath), zap.Error(err))
	}
	logger.Info("loaded instrument catalog", zap.Int("count", catalog.Count()))

	reg := registry.New(catalog)
	defer reg.StopAll()

	cfg := server.Config{
		CORSOrigin: getEnv("CORS_ORIGIN", "*"),
		AuthToken:  os.Getenv("AUTH_TOKEN"),
	}
	srv := server.New(reg, catalog, logger, cfg)

	listenAddr := getEnv("LISTEN_ADDR", defaultListenAddr)
	httpServer := &http.Server{Addr: listenAddr, Handler: srv.Handler()}

	go func() {
		logger.Info("listening", zap.String("addr", listenAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
