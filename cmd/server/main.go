//go:build !js && !wasm
// +build !js,!wasm

package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	osSignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/himanishpuri/PeakEditor/pkg/logger"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/storage"
)

var (
	port           string
	signalPath     string
	peaksPath      string
	sampleRate     float64
	windowSize     float64
	outputDir      string
	journalPath    string
	demoSeconds    float64
	allowedOrigins string
)

func init() {
	flag.StringVar(&port, "port", getEnvOrDefault("PEAKEDIT_PORT", "8080"), "HTTP server port")
	flag.StringVar(&signalPath, "signal", "", "ECG recording (.wav, .npy, .csv, .txt)")
	flag.StringVar(&peaksPath, "peaks", "", "Initial R-peak indices (.npy or text)")
	flag.Float64Var(&sampleRate, "rate", 0, "Sampling rate in Hz (required unless the file is WAV)")
	flag.Float64Var(&windowSize, "window", 0, "Initial window size in seconds (default 20)")
	flag.StringVar(&outputDir, "out", getEnvOrDefault("PEAKEDIT_OUTPUT_DIR", storage.DefaultOutputDir), "Directory for saved peak files")
	flag.StringVar(&journalPath, "journal", getEnvOrDefault("PEAKEDIT_JOURNAL", ""), "SQLite save journal (empty disables)")
	flag.Float64Var(&demoSeconds, "demo", 0, "Serve a synthetic ECG of this many seconds instead of -signal")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()

	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	opts := []peakedit.Option{
		peakedit.WithOutputDir(outputDir),
		peakedit.WithWindowSize(windowSize),
		peakedit.WithJournalPath(journalPath),
		peakedit.WithLogger(logger.GetLogger().Named("editor")),
	}

	var (
		editor *peakedit.Editor
		source string
		err    error
	)
	switch {
	case signalPath != "":
		editor, err = peakedit.Open(signalPath, peaksPath, sampleRate, opts...)
		source = signalPath
	case demoSeconds > 0:
		rate := sampleRate
		if rate == 0 {
			rate = 250
		}
		editor, err = peakedit.Demo(rate, demoSeconds, opts...)
		source = "synthetic"
	default:
		log.Fatalf("Either -signal or -demo is required")
	}
	if err != nil {
		log.Fatalf("Failed to create editor: %v", err)
	}
	defer editor.Close()

	config := &ServerConfig{
		Port:           port,
		Source:         source,
		OutputDir:      outputDir,
		JournalPath:    journalPath,
		AllowedOrigins: origins,
	}

	server := NewServer(editor, config)
	httpServer := server.HTTPServer()
	server.Banner()

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	ch := make(chan os.Signal, 1)
	osSignal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	<-ch

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown failed: %v", err)
	}
	logger.Infof("Server stopped")
}
