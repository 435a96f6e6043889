package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"ragchat/internal/app"
	"ragchat/internal/config"
	"ragchat/internal/logger"
	"ragchat/internal/server"
	"ragchat/internal/session"
)

func main() {
	_ = godotenv.Load()

	var cfgPath, addr string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragchat/config.yaml if not provided)")
	flag.StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if addr == "" {
		addr = cfg.Server.Addr
	}

	lg := logger.New(cfg.Log, os.Stdout)
	if logger.ParseLevel(cfg.Log.Level) != slog.LevelDebug {
		gin.SetMode(gin.ReleaseMode)
	}
	a, err := app.New(cfg, lg)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	lg.Info("starting", "addr", addr, "model", a.Generator.Model(), "embedder", a.NewEmbedder().Name())

	sessions := session.NewManager(a.NewController, cfg.Server.SessionTTL(), lg)
	srv := server.New(sessions, server.Options{
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
		CORSOrigins:    cfg.Server.CORSOrigins,
		SessionTTL:     cfg.Server.SessionTTL(),
		Logger:         lg,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx, addr); err != nil {
		lg.Error("server stopped", "error", err)
		os.Exit(1)
	}
	lg.Info("server exited")
}
