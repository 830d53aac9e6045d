package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/himanishpuri/PeakEditor/pkg/logger"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/storage"
	"github.com/himanishpuri/PeakEditor/pkg/utils"
)

// Global flags
var (
	outputDir   string
	journalPath string
	sampleRate  float64
)

func init() {
	// Global flags that can be used with any command
	flag.StringVar(&outputDir, "out", getEnvOrDefault("PEAKEDIT_OUTPUT_DIR", storage.DefaultOutputDir), "Directory for saved peak files")
	flag.StringVar(&journalPath, "journal", getEnvOrDefault("PEAKEDIT_JOURNAL", ""), "SQLite save journal (empty disables)")
	flag.Float64Var(&sampleRate, "rate", 0, "Sampling rate in Hz for .npy/.csv/.txt recordings")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// recordingFlags are shared by the commands that open a recording.
type recordingFlags struct {
	peaks  *string
	window *float64
	demo   *float64
}

func addRecordingFlags(fs *flag.FlagSet) recordingFlags {
	return recordingFlags{
		peaks:  fs.String("peaks", "", "Initial R-peak indices (.npy or text)"),
		window: fs.Float64("window", 0, "Initial window size in seconds (default 20)"),
		demo:   fs.Float64("demo", 0, "Use a synthetic ECG of this many seconds instead of a file"),
	}
}

// openEditor builds an editor from a positional recording path or -demo.
func openEditor(path string, rf recordingFlags) (*peakedit.Editor, error) {
	opts := []peakedit.Option{
		peakedit.WithOutputDir(outputDir),
		peakedit.WithWindowSize(*rf.window),
		peakedit.WithJournalPath(journalPath),
		peakedit.WithLogger(logger.GetLogger().Named("editor")),
	}

	if path == "" {
		if *rf.demo <= 0 {
			return nil, fmt.Errorf("a recording path or -demo <seconds> is required")
		}
		rate := sampleRate
		if rate == 0 {
			rate = 250
		}
		return peakedit.Demo(rate, *rf.demo, opts...)
	}
	return peakedit.Open(path, *rf.peaks, sampleRate, opts...)
}

// splitArgs separates the first positional argument from the flags after it.
func splitArgs(args []string) (string, []string) {
	var positional string
	var flagArgs []string
	for i, arg := range args {
		if !strings.HasPrefix(arg, "-") && positional == "" {
			positional = arg
		} else {
			flagArgs = append(flagArgs, args[i:]...)
			break
		}
	}
	return positional, flagArgs
}

func main() {
	flag.Usage = printUsage
	flag.Parse()

	log := logger.GetLogger()

	if flag.NArg() < 1 {
		printBanner()
		printUsage()
		os.Exit(1)
	}

	command := flag.Arg(0)
	args := flag.Args()[1:]
	log.Debugf("Executing command: %s", command)

	switch command {
	case "edit":
		printBanner()
		handleEdit(args)
	case "render":
		handleRender(args)
	case "info":
		handleInfo(args)
	case "saves":
		handleSaves(args)
	case "mkdir":
		handleMkdir()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
 ____             _    _____    _ _ _
|  _ \ ___  __ _| | _| ____|__| (_) |_ ___  _ __
| |_) / _ \/ _' | |/ /  _| / _' | | __/ _ \| '__|
|  __/  __/ (_| |   <| |__| (_| | | || (_) | |
|_|   \___|\__,_|_|\_\_____\__,_|_|\__\___/|_|

           ECG R-peak correction tool
`
	fmt.Println(banner)
}

func handleMkdir() {
	if err := utils.MakeDir(outputDir); err != nil {
		fmt.Printf("❌ Failed to create %s: %v\n", outputDir, err)
		os.Exit(1)
	}
	fmt.Printf("📁 Output directory ready: %s\n", outputDir)
}

func printUsage() {
	fmt.Println("PeakEditor - ECG R-peak editor")
	fmt.Println("\nGlobal Options:")
	fmt.Println("  -out <dir>         Directory for saved peaks (env: PEAKEDIT_OUTPUT_DIR, default: r_peaks)")
	fmt.Println("  -journal <path>    SQLite save journal (env: PEAKEDIT_JOURNAL, default: disabled)")
	fmt.Println("  -rate <hz>         Sampling rate for .npy/.csv/.txt recordings")
	fmt.Println("\nUsage:")
	fmt.Println("  peakedit [global-options] edit <recording> [-peaks <file>] [-window <s>]")
	fmt.Println("  peakedit [global-options] edit -demo <seconds>")
	fmt.Println("  peakedit [global-options] render <recording> [-peaks <file>] [-at <s>] [-window <s>] [-o <png>]")
	fmt.Println("  peakedit [global-options] info <recording> [-peaks <file>]")
	fmt.Println("  peakedit [global-options] saves [-recording <name>] [-limit <n>]")
	fmt.Println("  peakedit [global-options] mkdir")
	fmt.Println("\nExamples:")
	fmt.Println("  # Edit a WAV recording with detector output")
	fmt.Println("  peakedit edit ecg.wav -peaks r_peaks/detected.npy")
	fmt.Println()
	fmt.Println("  # Edit a raw array sampled at 500 Hz, journaling every save")
	fmt.Println("  peakedit -rate 500 -journal saves.sqlite3 edit ecg.npy -peaks peaks.txt")
	fmt.Println()
	fmt.Println("  # Render the window starting at 120 s")
	fmt.Println("  peakedit render ecg.wav -peaks r_peaks/r_peaks_edited_latest.npy -at 120 -o view.png")
}
