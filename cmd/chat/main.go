package main

import (
	"flag"
	"log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/app"
	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/config"
	"github.com/iamvartikasingh/chat-with-multiple-pdf/internal/tui"
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

	m := tui.New(components.Chain)
	if _, err := tea.NewProgram(m, tea.WithAltScreen()).Run(); err != nil {
		log.Fatal(err)
	}
}
