package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"ragchat/internal/app"
	"ragchat/internal/config"
	"ragchat/internal/logger"
	"ragchat/internal/tui"
)

func main() {
	_ = godotenv.Load()

	var cfgPath string
	flag.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/ragchat/config.yaml if not provided)")
	flag.Parse()

	var cfg *config.AppConfig
	var err error
	usedPath := cfgPath
	if cfgPath == "" {
		cfg, usedPath, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// the TUI owns the terminal, so logs go to a file
	logPath := cfg.Log.File
	if logPath == "" {
		logPath = filepath.Join(filepath.Dir(usedPath), "ragchat.log")
	}
	lg, closer, err := logger.NewFile(cfg.Log, logPath)
	if err != nil {
		log.Fatalf("failed to open log file: %v", err)
	}
	defer closer.Close()

	a, err := app.New(cfg, lg)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	lg.Info("starting", "config", usedPath, "model", a.Generator.Model(), "embedder", a.NewEmbedder().Name())

	if _, err := tea.NewProgram(tui.New(a.NewController()), tea.WithAltScreen()).Run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
