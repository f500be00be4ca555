package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/schriftgut/internal/classify"
	"github.com/schriftgut/internal/config"
	"github.com/schriftgut/internal/extractor"
	"github.com/schriftgut/internal/inbox"
	"github.com/schriftgut/internal/mlruntime"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	modelDir   = flag.String("model-dir", "", "Trained model directory (overrides config)")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if *modelDir != "" {
		cfg.Server.ModelDir = *modelDir
	}
	if cfg.Server.ModelDir == "" {
		log.Fatalf("no model directory configured; set server.model_dir or pass -model-dir")
	}
	if len(cfg.Inbox.WatchPaths) == 0 {
		log.Fatalf("inbox.watch_paths is empty; nothing to watch")
	}
	journal := cfg.Inbox.JournalPath
	if journal == "" {
		journal = "inbox.jsonl"
	}

	runtime := mlruntime.NewClient(cfg.Runtime.BaseURL, cfg.Runtime.Timeout)
	ext := extractor.New(extractor.Config{
		TesseractBin: cfg.Extraction.TesseractBin,
		Language:     cfg.Extraction.Language,
		TessdataDir:  cfg.Extraction.TessdataDir,
		DPI:          cfg.Extraction.DPI,
	})
	cache := classify.NewCache(runtime, ext)

	watcher := inbox.NewWatcher(cfg.Inbox.WatchPaths, cache, cfg.Server.ModelDir, journal, cfg.Inbox.SettleDelay)
	if err := watcher.Start(); err != nil {
		log.Fatalf("failed to start watcher: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Println("Shutting down watcher...")
	watcher.Stop()
}
