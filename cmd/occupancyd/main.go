package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"occupancy/internal/config"
	"occupancy/internal/logger"
	"occupancy/internal/server"
)

func main() {
	configDir := flag.String("config", ".", "directory searched for occupancy.yaml")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		logger.Init("info", false)
		logger.Logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger.Init(cfg.Log.Level, cfg.Log.Pretty)
	log := logger.WithComponent("main")

	srv, err := server.New(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("server exited with error")
		stop()
		os.Exit(1)
	}
	log.Info().Msg("exited")
}
