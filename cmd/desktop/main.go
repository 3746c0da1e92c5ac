// Package main runs the local offline agent for desktop platforms.
// The app talks to it over REST and WebSocket on localhost:8090; every path
// outside /_offline is answered through the interceptor.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kimhsiao/tripplanner/backend/cmd/desktop/handlers"
	"github.com/kimhsiao/tripplanner/backend/internal/app"
	"github.com/kimhsiao/tripplanner/backend/internal/config"
	"github.com/kimhsiao/tripplanner/backend/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Getenv("TRIP_CONFIG")); err != nil {
		logging.Error("Desktop agent stopped", err, nil)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath, ".env")
	if err != nil {
		return err
	}
	logging.Init(os.Stdout, logging.ParseLevel(cfg.Log.Level), cfg.Log.Pretty)

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	return handlers.Run(ctx, a)
}
