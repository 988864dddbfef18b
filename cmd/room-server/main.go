package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/videoroom/room/internal/config"
	"github.com/videoroom/room/internal/logging"
	"github.com/videoroom/room/internal/mock"
	"github.com/videoroom/room/internal/server"
)

func main() {
	mockMode := flag.Bool("mock", false, "Simulate remote participants")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	log := logging.New(cfg.Log, os.Stderr)
	hub := server.NewHub(cfg.Session.SessionID, log)
	srv := server.New(cfg, hub, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *mockMode {
		log.Info("starting in mock mode", "participants", cfg.Mock.Participants, "interval", cfg.Mock.Interval)
		gen := mock.NewGenerator(hub, cfg.Mock.Participants, cfg.Mock.Interval, log)
		gen.Start(ctx)
	}

	err = server.ListenAndServe(ctx, cfg.Addr(), srv.Handler(), log)
	log.Info("shutting down")
	hub.Close()
	if err != nil {
		log.Error("server error", "err", err)
		os.Exit(1)
	}
}
