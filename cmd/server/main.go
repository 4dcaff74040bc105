package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/multiplayer-trader/internal/auth"
	"github.com/example/multiplayer-trader/internal/config"
	srv "github.com/example/multiplayer-trader/internal/server"
	"github.com/example/multiplayer-trader/internal/store"
	"go.uber.org/zap"
)

func mustRegisterLogger(mode string) {
	switch mode {
	case "prod":
		zap.ReplaceGlobals(zap.Must(zap.NewProduction()))
	default:
		zap.ReplaceGlobals(zap.Must(zap.NewDevelopment()))
	}
}

func main() {
	envFile := flag.String("env", ".env", "Path to an optional .env file")
	flag.Parse()

	conf, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load config:", err)
		os.Exit(1)
	}
	mustRegisterLogger(conf.LogMode)
	defer zap.L().Sync()

	st := store.NewMemStore(conf.DefaultSession, conf.MaxPlayers)
	gs := srv.NewGameServer(st, srv.Options{
		DefaultSession: conf.DefaultSession,
		ChatHistory:    conf.ChatHistory,
		ActivityFeed:   conf.ActivityFeed,
		SendBuffer:     conf.SendBuffer,
		AllowedOrigin:  conf.AllowedOrigin,
	})
	adminAuth := auth.NewAdminConfig(conf.AdminJWTSecret)
	if !adminAuth.Enabled() {
		zap.L().Warn("ADMIN_JWT_SECRET not set, admin API disabled")
	}

	server := &http.Server{
		Addr:              conf.HTTPAddr,
		Handler:           gs.Routes(adminAuth),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zap.L().Info("Starting server", zap.String("addr", conf.HTTPAddr), zap.String("session", conf.DefaultSession))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	<-c

	zap.L().Info("Shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		zap.L().Warn("Error shutting down server", zap.Error(err))
	}
}
