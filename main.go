package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/linesmerrill/region-chat-api/api/handlers"
	"github.com/linesmerrill/region-chat-api/config"
)

const shutdownTimeout = 15 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := handlers.App{}
	a.Config = *config.New()

	//initialize database, broker and router
	if err := a.Initialize(ctx); err != nil {
		zap.S().Fatalw("failed to initialize", "error", err)
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%v", a.Config.Port),
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.S().Infow("region-chat-api is up and running",
			"port", a.Config.Port,
			"url", a.Config.BaseURL,
			"region", a.Config.RegionHandle,
			"messaging", a.Coordinator.Enabled(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.S().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	zap.S().Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zap.S().Warnw("server shutdown failed", "error", err)
	}
	a.Close(shutdownCtx)
	_ = zap.L().Sync()
}
