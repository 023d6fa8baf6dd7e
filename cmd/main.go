package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Nzyazin/settlement/internal/core/logger"
	"github.com/Nzyazin/settlement/internal/server"
	"github.com/Nzyazin/settlement/pkg/config"
)

func main() {
	log, cleanup := logger.NewLogger()
	defer cleanup()

	cfg, err := config.LoadConfigServer()
	if err != nil {
		log.Error("Failed to load server config", logger.ErrorField("error", err))
		return
	}

	srv, err := server.NewServer(log)
	if err != nil {
		log.Error("Failed to create server", logger.ErrorField("error", err))
		return
	}

	go func() {
		log.Info("Starting server", logger.StringField("addr", cfg.Addr))
		if err := srv.Run(cfg.Addr); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", logger.ErrorField("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server shutdown failed", logger.ErrorField("error", err))
	}

	log.Info("Server exited properly")
}
