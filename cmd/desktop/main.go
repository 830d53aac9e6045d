package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/himanishpuri/PeakEditor/internal/ui"
	"github.com/himanishpuri/PeakEditor/pkg/logger"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/render"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/storage"
)

const (
	screenWidth  = 1200
	screenHeight = 760
)

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	signalPath := flag.String("signal", "", "ECG recording (.wav, .npy, .csv or .txt)")
	peaksPath := flag.String("peaks", "", "Initial R-peak indices (.npy or text)")
	rate := flag.Float64("rate", 0, "Sampling rate in Hz for .npy/.csv/.txt recordings")
	window := flag.Float64("window", 0, "Initial window size in seconds (default 20)")
	outputDir := flag.String("out", getEnvOrDefault("PEAKEDIT_OUTPUT_DIR", storage.DefaultOutputDir), "Directory for saved peak files")
	journalPath := flag.String("journal", getEnvOrDefault("PEAKEDIT_JOURNAL", ""), "SQLite save journal (empty disables)")
	demo := flag.Float64("demo", 0, "Use a synthetic ECG of this many seconds instead of -signal")
	flag.Parse()

	log := logger.GetLogger()

	opts := []peakedit.Option{
		peakedit.WithOutputDir(*outputDir),
		peakedit.WithWindowSize(*window),
		peakedit.WithJournalPath(*journalPath),
		peakedit.WithLogger(log.Named("editor")),
	}

	var ed *peakedit.Editor
	var err error
	switch {
	case *signalPath != "":
		ed, err = peakedit.Open(*signalPath, *peaksPath, *rate, opts...)
	case *demo > 0:
		r := *rate
		if r == 0 {
			r = 250
		}
		ed, err = peakedit.Demo(r, *demo, opts...)
	default:
		err = fmt.Errorf("-signal or -demo is required")
	}
	if err != nil {
		log.Errorf("Failed to open recording: %v", err)
		os.Exit(1)
	}
	defer ed.Close()

	log.Infof("Editing %s (%d peaks, %.1f s)", ed.Recording(), ed.PeakCount(), ed.Duration())

	ebiten.SetWindowTitle(render.Title)
	ebiten.SetWindowSize(screenWidth, screenHeight)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)

	g := newGame(ui.NewControls(ed, screenWidth, screenHeight))
	if err := ebiten.RunGame(g); err != nil {
		log.Errorf("Window closed with error: %v", err)
		os.Exit(1)
	}
}
