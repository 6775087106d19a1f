package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/app"
	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/config"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "Path to config YAML")
	pdfPath := flag.String("pdf", "", "Path to the source PDF (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	path := cfg.Ingest.PDFPath
	if *pdfPath != "" {
		path = *pdfPath
	}
	if path == "" {
		fmt.Println("Usage: ingest [--config=config.yaml] --pdf=document.pdf")
		os.Exit(1)
	}

	components, err := app.Build(cfg)
	if err != nil {
		log.Fatalf("failed to assemble pipeline: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	count, err := components.Pipeline.Ingest(ctx, path)
	if err != nil {
		log.Fatalf("ingest failed: %v", err)
	}
	fmt.Printf("wrote %d entries from %s\n", count, path)
}
