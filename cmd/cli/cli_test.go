package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/PeakEditor/pkg/logger"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/signal"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/storage"
)

func setupEditor(t *testing.T) (*peakedit.Editor, string) {
	t.Helper()
	samples := make([]float64, 10000)
	samples[1030] = 1
	dir := t.TempDir()
	ed, err := peakedit.New(signal.Waveform{Samples: samples, Rate: 100}, []int{500, 1500, 2500},
		peakedit.WithOutputDir(dir),
		peakedit.WithLogger(logger.Discard()),
	)
	require.NoError(t, err)
	return ed, dir
}

func TestREPLSession(t *testing.T) {
	ed, dir := setupEditor(t)

	script := strings.Join([]string{
		"view",
		"next",
		"window 5",
		"window abc",
		"window 0.2",
		"jump 10",
		"jump 500",
		"add 10.28",
		"add 10.28",
		"peaks",
		"remove 10.3",
		"remove 60",
		"add soon",
		"save",
		"bogus",
		"quit",
		"next",
	}, "\n")

	var out bytes.Buffer
	require.NoError(t, runREPL(ed, strings.NewReader(script), &out))
	got := out.String()

	assert.Contains(t, got, ed.Title())
	assert.Contains(t, got, "Position: 20.0 s")
	assert.Contains(t, got, `Invalid window size "abc"`)
	assert.Contains(t, got, "Window size must be between 1 and 100.0 seconds")
	assert.Contains(t, got, "Time out of range (0 to 95.0)")
	assert.Contains(t, got, "Added peak at 10.30 seconds (sample 1030)")
	assert.Contains(t, got, "Peak already at 10.30 seconds")
	assert.Contains(t, got, "sample 1030")
	assert.Contains(t, got, "Removed peak at 10.30 seconds")
	assert.Contains(t, got, "No change")
	assert.Contains(t, got, `Invalid time value "soon"`)
	assert.Contains(t, got, "✅ Peaks saved to 'r_peaks_edited_")
	assert.Contains(t, got, "Unknown command: bogus")

	assert.Equal(t, 10.0, ed.View().Position, "commands after quit are not run")
	assert.Equal(t, 5.0, ed.View().Window)
	assert.Equal(t, []int{500, 1500, 2500}, ed.Peaks())
	assert.FileExists(t, filepath.Join(dir, storage.LatestName))
}

func TestREPLEndsAtEOF(t *testing.T) {
	ed, _ := setupEditor(t)
	var out bytes.Buffer
	require.NoError(t, runREPL(ed, strings.NewReader("next\nnext"), &out))
	assert.Equal(t, 40.0, ed.View().Position)
}

func TestREPLSaveFailureKeepsGoing(t *testing.T) {
	ed, dir := setupEditor(t)
	require.NoError(t, os.Remove(dir))

	var out bytes.Buffer
	require.NoError(t, runREPL(ed, strings.NewReader("save\nadd 10.3\nquit\n"), &out))
	assert.Contains(t, out.String(), "❌ Failed to save peaks")
	assert.Contains(t, out.String(), "Added peak at 10.30 seconds")
}

func TestSparkline(t *testing.T) {
	ed, _ := setupEditor(t)
	require.NoError(t, ed.JumpTo(0))
	s := sparkline(ed.Frame(), 40)

	lines := strings.Split(s, "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, 40, utf8.RuneCountInString(lines[0]))
	assert.Equal(t, 40, utf8.RuneCountInString(lines[1]))
	assert.Equal(t, 2, strings.Count(lines[1], "^"), "peaks at 5 s and 15 s")
}

func TestSplitArgs(t *testing.T) {
	path, rest := splitArgs([]string{"ecg.wav", "-peaks", "p.npy"})
	assert.Equal(t, "ecg.wav", path)
	assert.Equal(t, []string{"-peaks", "p.npy"}, rest)

	path, rest = splitArgs([]string{"-demo", "30"})
	assert.Empty(t, path)
	assert.Equal(t, []string{"-demo", "30"}, rest)
}

func TestSummarize(t *testing.T) {
	w := signal.Waveform{Samples: []float64{-0.5, 0, 1.5, 0, 0, 0, 0, 0}, Rate: 2}
	sum := summarize(w, []int{0, 2, 6})

	assert.Equal(t, 8, sum.Samples)
	assert.Equal(t, "4s", sum.Duration.String())
	assert.Equal(t, -0.5, sum.Min)
	assert.Equal(t, 1.5, sum.Max)
	assert.Equal(t, 3, sum.Peaks)
	assert.InDelta(t, 1500, sum.RRMean, 1e-9)
	assert.InDelta(t, 1000, sum.RRMin, 1e-9)
	assert.InDelta(t, 2000, sum.RRMax, 1e-9)
	assert.InDelta(t, 707.1068, sum.RRStd, 1e-3)
	assert.InDelta(t, 40, sum.HeartRate, 1e-9)

	assert.Zero(t, sum.Rhythm, "too short for a rhythm estimate")

	one := summarize(w, []int{3})
	assert.Zero(t, one.RRMean)

	pair := summarize(w, []int{0, 2})
	assert.InDelta(t, 1000, pair.RRMean, 1e-9)
	assert.Zero(t, pair.RRStd, "a single interval has no spread")
	assert.InDelta(t, 60, pair.HeartRate, 1e-9)
}

func TestSummarizeSynthetic(t *testing.T) {
	w, peaks := signal.SyntheticECG(250, 60, 72, 0.02)
	sum := summarize(w, peaks)

	assert.InDelta(t, 72, sum.HeartRate, 1)
	assert.InDelta(t, 72, sum.Rhythm, 1)
}
