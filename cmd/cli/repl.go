package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/PeakEditor/pkg/peakedit"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/render"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/session"
)

const replHelp = `Commands:
  next | n              next window
  prev | p              previous window
  window | w <seconds>  set window size
  jump | j <seconds>    jump to time
  add | a <seconds>     add a peak near time (snaps to the local maximum)
  remove | r <seconds>  remove the nearest peak within 100 ms
  peaks                 list peaks in the current window
  view | v              show the current window
  save | s              save peaks
  help | h              show this help
  quit | q              exit`

// repl reads commands from in and applies them to ed until quit or EOF.
type repl struct {
	ed  *peakedit.Editor
	out io.Writer
}

func runREPL(ed *peakedit.Editor, in io.Reader, out io.Writer) error {
	r := &repl{ed: ed, out: out}
	fmt.Fprintln(out, ed.Title())
	r.printView()
	fmt.Fprint(out, "> ")

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) > 0 {
			if quit := r.exec(fields[0], fields[1:]); quit {
				return nil
			}
		}
		fmt.Fprint(out, "> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func (r *repl) exec(cmd string, args []string) (quit bool) {
	arg := strings.Join(args, " ")

	switch strings.ToLower(cmd) {
	case "next", "n":
		r.ed.Next()
		r.printView()
	case "prev", "p":
		r.ed.Prev()
		r.printView()
	case "window", "w":
		ok, err := r.ed.WindowText(arg)
		switch {
		case err != nil:
			fmt.Fprintf(r.out, "❌ Invalid window size %q\n", arg)
		case !ok:
			fmt.Fprintf(r.out, "Window size must be between 1 and %.1f seconds\n", r.ed.Duration())
		default:
			r.printView()
		}
	case "jump", "j":
		err := r.ed.JumpText(arg)
		var rerr *session.RangeError
		switch {
		case errors.Is(err, peakedit.ErrInvalidNumber):
			fmt.Fprintf(r.out, "❌ Invalid time value %q\n", arg)
		case errors.As(err, &rerr):
			fmt.Fprintf(r.out, "❌ Time out of range (0 to %.1f)\n", rerr.Max)
		default:
			r.printView()
		}
	case "add", "a":
		r.click(peakedit.ButtonPrimary, arg)
	case "remove", "rm", "r":
		r.click(peakedit.ButtonSecondary, arg)
	case "peaks":
		r.printPeaks()
	case "view", "v":
		r.printView()
	case "save", "s":
		res, err := r.ed.Save()
		if err != nil {
			fmt.Fprintf(r.out, "❌ Failed to save peaks: %v\n", err)
			return false
		}
		fmt.Fprintf(r.out, "✅ Peaks saved to '%s' and '%s' (%d peaks, %s)\n",
			res.Snapshot, res.Latest, res.Count, humanize.Bytes(uint64(res.Bytes)))
	case "help", "h", "?":
		fmt.Fprintln(r.out, replHelp)
	case "quit", "q", "exit":
		return true
	default:
		fmt.Fprintf(r.out, "Unknown command: %s (type help)\n", cmd)
	}
	return false
}

func (r *repl) click(button int, arg string) {
	t, err := strconv.ParseFloat(strings.TrimSpace(arg), 64)
	if err != nil {
		fmt.Fprintf(r.out, "❌ Invalid time value %q\n", arg)
		return
	}
	res := r.ed.Click(button, t)
	switch {
	case res.Action == peakedit.ActionAdd && res.Changed:
		fmt.Fprintf(r.out, "Added peak at %.2f seconds (sample %d)\n", res.Time, res.Index)
	case res.Action == peakedit.ActionAdd:
		fmt.Fprintf(r.out, "Peak already at %.2f seconds (sample %d)\n", res.Time, res.Index)
	case res.Action == peakedit.ActionRemove:
		fmt.Fprintf(r.out, "Removed peak at %.2f seconds (sample %d)\n", res.Time, res.Index)
	default:
		fmt.Fprintln(r.out, "No change")
	}
}

func (r *repl) printView() {
	f := r.ed.Frame()
	fmt.Fprintf(r.out, "Position: %s s  [%.1f, %.1f] of %.1f s  |  %d of %d peaks visible\n",
		f.Position, f.XLim[0], f.XLim[1], r.ed.Duration(), len(f.PeakIndices), r.ed.PeakCount())
	fmt.Fprintln(r.out, sparkline(f, 60))
}

func (r *repl) printPeaks() {
	f := r.ed.Frame()
	if len(f.Peaks) == 0 {
		fmt.Fprintln(r.out, "No peaks in this window")
		return
	}
	for i, p := range f.Peaks {
		fmt.Fprintf(r.out, "%3d. %8.3f s  sample %-8d  %.3f\n", i+1, p.T, f.PeakIndices[i], p.V)
	}
}

var sparkLevels = []rune("▁▂▃▄▅▆▇█")

// sparkline draws the detail window as one line of block characters using
// the column envelope maxima, with peaks marked underneath.
func sparkline(f render.Frame, cols int) string {
	if len(f.Values) == 0 || cols <= 0 {
		return ""
	}
	lo, hi := f.YLim[0], f.YLim[1]
	if hi <= lo {
		hi = lo + 1
	}

	span := f.XLim[1] - f.XLim[0]
	line := make([]rune, cols)
	marks := []rune(strings.Repeat(" ", cols))
	best := make([]float64, cols)
	seen := make([]bool, cols)
	for i, v := range f.Values {
		c := int((f.Times[i] - f.XLim[0]) / span * float64(cols))
		c = min(max(c, 0), cols-1)
		if !seen[c] || v > best[c] {
			best[c], seen[c] = v, true
		}
	}
	for c := range line {
		if !seen[c] {
			line[c] = ' '
			continue
		}
		lvl := int((best[c] - lo) / (hi - lo) * float64(len(sparkLevels)-1))
		line[c] = sparkLevels[min(max(lvl, 0), len(sparkLevels)-1)]
	}
	for _, p := range f.Peaks {
		c := int((p.T - f.XLim[0]) / span * float64(cols))
		marks[min(max(c, 0), cols-1)] = '^'
	}
	return string(line) + "\n" + string(marks)
}
