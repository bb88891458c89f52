package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/auth"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/config"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/server"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/store"
	"github.com/Damian-Sonwa/Nchekwa-Afrika-sub000/internal/telemetry"
)

const retentionSweepInterval = time.Hour

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := telemetry.InitLogger(cfg.LogFile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ctx := context.Background()
	metrics, shutdownMetrics, err := telemetry.InitTelemetry(ctx, "")
	if err != nil {
		logger.Error("telemetry init failed", "error", err)
		os.Exit(1)
	}
	defer shutdownMetrics()

	gin.SetMode(cfg.GinMode)
	st := store.NewWithOptions(store.Options{
		StateFile: cfg.StateFile,
		Retention: cfg.Retention,
	})

	stop := make(chan struct{})
	defer close(stop)
	go st.StartRetentionLoop(retentionSweepInterval, stop)

	tokenCfg := auth.TokenConfig{
		Secret: cfg.ChatSecret,
		Expiry: cfg.TokenExpiry,
		Issuer: "nchekwa-chat",
	}

	router := server.NewRouter(server.Deps{
		Store:       st,
		TokenConfig: tokenCfg,
		Metrics:     metrics,
	})
	logger.Info("listening", "addr", fmt.Sprintf(":%d", cfg.Port))
	if err := server.Run(cfg, router); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
