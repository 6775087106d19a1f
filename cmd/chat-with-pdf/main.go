package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/app"
	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/config"
	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "Path to config YAML")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	components, err := app.Build(cfg)
	if err != nil {
		log.Fatalf("failed to assemble pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.New(components.Chain, components.Pipeline, cfg.Ingest.PDFPath, cfg.Server.Addr)
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
