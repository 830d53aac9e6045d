package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/himanishpuri/PeakEditor/pkg/logger"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/render"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/signal"
	"github.com/himanishpuri/PeakEditor/pkg/utils"
)

func handleEdit(args []string) {
	log := logger.GetLogger()

	path, flagArgs := splitArgs(args)
	editCmd := flag.NewFlagSet("edit", flag.ExitOnError)
	rf := addRecordingFlags(editCmd)
	editCmd.Parse(flagArgs)

	ed, err := openEditor(path, rf)
	if err != nil {
		fmt.Printf("❌ Failed to open recording: %v\n", err)
		log.Errorf("Open failed: %v", err)
		os.Exit(1)
	}
	defer ed.Close()

	if !utils.DirExists(ed.OutputDir()) {
		fmt.Printf("⚠️  Output directory %s does not exist; saves will fail until it is created (peakedit mkdir)\n", ed.OutputDir())
	}

	if err := runREPL(ed, os.Stdin, os.Stdout); err != nil {
		log.Errorf("Reading input failed: %v", err)
		os.Exit(1)
	}
}

func handleRender(args []string) {
	log := logger.GetLogger()

	path, flagArgs := splitArgs(args)
	renderCmd := flag.NewFlagSet("render", flag.ExitOnError)
	rf := addRecordingFlags(renderCmd)
	at := renderCmd.Float64("at", 0, "Window start in seconds")
	outPath := renderCmd.String("o", "view.png", "Output PNG path")
	width := renderCmd.Int("width", 1200, "Image width in pixels")
	height := renderCmd.Int("height", 720, "Image height in pixels")
	renderCmd.Parse(flagArgs)

	ed, err := openEditor(path, rf)
	if err != nil {
		fmt.Printf("❌ Failed to open recording: %v\n", err)
		log.Errorf("Open failed: %v", err)
		os.Exit(1)
	}
	defer ed.Close()

	if *at != 0 {
		if err := ed.JumpTo(*at); err != nil {
			fmt.Printf("❌ %v\n", err)
			os.Exit(1)
		}
	}

	f := ed.Frame()
	if err := render.SavePNG(*outPath, ed.Waveform(), f, *width, *height); err != nil {
		fmt.Printf("❌ Failed to render: %v\n", err)
		log.Errorf("SavePNG failed: %v", err)
		os.Exit(1)
	}

	size, _ := utils.FileSize(*outPath)
	fmt.Printf("🖼️  Rendered %s [%.1f, %.1f] s with %d peaks to %s (%s)\n",
		ed.Recording(), f.XLim[0], f.XLim[1], len(f.PeakIndices), *outPath, humanize.Bytes(uint64(size)))
}

func handleInfo(args []string) {
	log := logger.GetLogger()

	path, flagArgs := splitArgs(args)
	infoCmd := flag.NewFlagSet("info", flag.ExitOnError)
	rf := addRecordingFlags(infoCmd)
	infoCmd.Parse(flagArgs)

	ed, err := openEditor(path, rf)
	if err != nil {
		fmt.Printf("❌ Failed to open recording: %v\n", err)
		log.Errorf("Open failed: %v", err)
		os.Exit(1)
	}
	defer ed.Close()

	sum := summarize(ed.Waveform(), ed.Peaks())

	fmt.Printf("\n📈 %s\n", ed.Recording())
	if path != "" {
		if size, err := utils.FileSize(path); err == nil {
			fmt.Printf("   File:      %s (%s)\n", filepath.Clean(path), humanize.Bytes(uint64(size)))
		}
	}
	fmt.Printf("   Samples:   %s at %s Hz\n", humanize.Comma(int64(sum.Samples)), humanize.Ftoa(sum.Rate))
	fmt.Printf("   Duration:  %s\n", sum.Duration)
	fmt.Printf("   Amplitude: %.3f to %.3f\n", sum.Min, sum.Max)
	fmt.Printf("   Peaks:     %d\n", sum.Peaks)
	if sum.Peaks > 1 {
		fmt.Printf("   Heart:     %.1f bpm\n", sum.HeartRate)
		fmt.Printf("   RR:        mean %.0f ms, sd %.0f ms, range %.0f-%.0f ms\n",
			sum.RRMean, sum.RRStd, sum.RRMin, sum.RRMax)
	}
	if sum.Rhythm > 0 {
		fmt.Printf("   Rhythm:    %.1f bpm (from the trace, ignores peaks)\n", sum.Rhythm)
	}
}

func handleSaves(args []string) {
	log := logger.GetLogger()

	savesCmd := flag.NewFlagSet("saves", flag.ExitOnError)
	recording := savesCmd.String("recording", "", "Only list saves of this recording")
	limit := savesCmd.Int("limit", 20, "Maximum number of saves to list")
	savesCmd.Parse(args)

	if journalPath == "" {
		fmt.Println("❌ No journal configured (use -journal or PEAKEDIT_JOURNAL)")
		os.Exit(1)
	}

	j, err := peakedit.NewSQLiteJournal(journalPath)
	if err != nil {
		fmt.Printf("❌ Failed to open journal: %v\n", err)
		log.Errorf("Journal open failed: %v", err)
		os.Exit(1)
	}
	defer j.Close()

	records, err := j.List(*recording, *limit)
	if err != nil {
		fmt.Printf("❌ Failed to list saves: %v\n", err)
		log.Errorf("List failed: %v", err)
		os.Exit(1)
	}

	if len(records) == 0 {
		fmt.Println("\n📭 No saves recorded")
		return
	}

	fmt.Printf("\n💾 %d save(s):\n\n", len(records))
	for i, rec := range records {
		fmt.Printf("%d. %s (%s)\n", i+1, filepath.Join(rec.Dir, rec.Snapshot), humanize.Time(rec.CreatedAt))
		fmt.Printf("   Recording: %s | Peaks: %d | Size: %s\n", rec.Recording, rec.Count, humanize.Bytes(uint64(rec.Bytes)))
		fmt.Printf("   ID: %s\n\n", rec.ID)
	}
}

// recordingSummary holds the numbers printed by info.
type recordingSummary struct {
	Samples   int
	Rate      float64
	Duration  time.Duration
	Min, Max  float64
	Peaks     int
	HeartRate float64 // beats per minute from the mean RR interval
	Rhythm    float64 // beats per minute estimated from the trace alone, 0 if unknown

	// RR interval statistics in milliseconds.
	RRMean, RRStd, RRMin, RRMax float64
}

func summarize(w signal.Waveform, peaks []int) recordingSummary {
	sum := recordingSummary{
		Samples:  w.Len(),
		Rate:     w.Rate,
		Duration: time.Duration(w.Duration() * float64(time.Second)).Round(time.Millisecond),
		Peaks:    len(peaks),
	}
	if w.Len() > 0 {
		sum.Min = floats.Min(w.Samples)
		sum.Max = floats.Max(w.Samples)
	}
	if bpm, ok := signal.EstimateRate(w); ok {
		sum.Rhythm = bpm
	}
	if len(peaks) < 2 {
		return sum
	}

	rr := make([]float64, len(peaks)-1)
	for i := 1; i < len(peaks); i++ {
		rr[i-1] = float64(peaks[i]-peaks[i-1]) / w.Rate * 1000
	}
	if len(rr) > 1 {
		sum.RRMean, sum.RRStd = stat.MeanStdDev(rr, nil)
	} else {
		sum.RRMean = rr[0]
	}
	sum.RRMin = floats.Min(rr)
	sum.RRMax = floats.Max(rr)
	sum.HeartRate = 60000 / sum.RRMean
	return sum
}
