package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Brownie44l1/classroom-http/internal/config"
	"github.com/Brownie44l1/classroom-http/internal/router"
	"github.com/Brownie44l1/classroom-http/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "httpserver: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := server.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	if err != nil {
		return err
	}

	ln := server.New(cfg.Server, log)

	app := newClassroom(ln.Metrics().Snapshot)
	seed(app)

	r := router.New()
	r.Use(router.Logging(log), router.Recovery(log))
	app.routes(r)
	ln.SetOnReceive(r.Handle)

	for _, rt := range r.Routes() {
		log.Debug().Str("method", rt.Method).Str("pattern", rt.Pattern).Msg("route registered")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ln.CreateSocket(ctx); err != nil {
		return err
	}
	if err := ln.Serve(ctx); err != nil {
		return err
	}

	stats := ln.Metrics().Snapshot()
	log.Info().
		Int64("requests_total", stats.RequestsTotal).
		Int64("errors_4xx", stats.Errors4xx).
		Int64("errors_5xx", stats.Errors5xx).
		Int64("timeouts", stats.Timeouts).
		Msg("server stopped")
	return nil
}

func seed(c *classroom) {
	now := time.Now().UTC().Truncate(time.Hour)
	c.addAssignment(Assignment{ID: "1", ClassroomID: "cs101", Title: "Sockets and framing", Due: now.Add(72 * time.Hour)})
	c.addAssignment(Assignment{ID: "2", ClassroomID: "cs101", Title: "Multipart uploads", Due: now.Add(168 * time.Hour)})
	c.addAssignment(Assignment{ID: "3", ClassroomID: "cs204", Title: "Worker pools", Due: now.Add(48 * time.Hour)})
}
