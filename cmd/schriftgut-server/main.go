package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/schriftgut/internal/classify"
	"github.com/schriftgut/internal/config"
	"github.com/schriftgut/internal/extractor"
	"github.com/schriftgut/internal/mlruntime"
	"github.com/schriftgut/internal/server"
)

var (
	configPath = flag.String("config", "", "Path to config file")
	httpPort   = flag.Int("port", 0, "HTTP server port (overrides config)")
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
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}
	if *modelDir != "" {
		cfg.Server.ModelDir = *modelDir
	}
	if cfg.Server.ModelDir == "" {
		log.Fatalf("no model directory configured; set server.model_dir or pass -model-dir")
	}

	runtime := mlruntime.NewClient(cfg.Runtime.BaseURL, cfg.Runtime.Timeout)
	ext := extractor.New(extractor.Config{
		TesseractBin: cfg.Extraction.TesseractBin,
		Language:     cfg.Extraction.Language,
		TessdataDir:  cfg.Extraction.TessdataDir,
		DPI:          cfg.Extraction.DPI,
	})
	cache := classify.NewCache(runtime, ext)

	// Fail at startup, not on the first request, if the model is unusable.
	if _, err := cache.Get(context.Background(), cfg.Server.ModelDir); err != nil {
		log.Fatalf("failed to load model from %s: %v", cfg.Server.ModelDir, err)
	}

	predictHandler := server.NewPredictHandler(cache, cfg.Server.ModelDir, cfg.Server.UploadDir)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/health", server.HandleHealth)
	mux.HandleFunc("/api/v1/predict", predictHandler.HandlePredict)

	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: mux,
	}

	go func() {
		log.Printf("HTTP server listening on %d, serving model %s", cfg.Server.Port, cfg.Server.ModelDir)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	waitForShutdown(httpServer)
}

func waitForShutdown(httpServer *http.Server) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	log.Println("Shutting down server...")
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
}
