//go:build js && wasm
// +build js,wasm

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"syscall/js"

	"github.com/himanishpuri/PeakEditor/pkg/logger"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/session"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/signal"
)

// Error codes returned to JavaScript
const (
	ErrorNone = iota
	ErrorInvalidArgs
	ErrorNotLoaded
	ErrorLoadFailed
	ErrorOutOfRange
	ErrorEncoding
)

// defaultViewPoints bounds the samples sent per view.
const defaultViewPoints = 2000

var editor *peakedit.Editor

// Loads a recording into the editor.
// Args: samples (Array|Float64Array), sampleRate, peaks (Array, optional), windowSize (optional)
// Returns: {error: number, data: view | string}
func peakEditorLoad(this js.Value, args []js.Value) interface{} {
	if len(args) < 2 {
		return makeErrorResponse(ErrorInvalidArgs, "Expected at least 2 arguments: samples, sampleRate")
	}

	samplesJS := args[0]
	rateJS := args[1]

	if samplesJS.Type() != js.TypeObject {
		return makeErrorResponse(ErrorInvalidArgs, "samples must be an Array or Float64Array")
	}
	if rateJS.Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "sampleRate must be a number")
	}

	samples, err := floatArray(samplesJS, "samples")
	if err != nil {
		return makeErrorResponse(ErrorInvalidArgs, err.Error())
	}

	var peaks []int
	if len(args) > 2 && args[2].Type() == js.TypeObject {
		values, err := floatArray(args[2], "peaks")
		if err != nil {
			return makeErrorResponse(ErrorInvalidArgs, err.Error())
		}
		peaks = make([]int, len(values))
		for i, v := range values {
			if v != math.Trunc(v) {
				return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("peaks element %d is not an integer", i))
			}
			peaks[i] = int(v)
		}
	}

	opts := []peakedit.Option{
		peakedit.WithRecording("browser"),
		peakedit.WithLogger(logger.GetLogger().Named("wasm")),
	}
	if len(args) > 3 && args[3].Type() == js.TypeNumber {
		opts = append(opts, peakedit.WithWindowSize(args[3].Float()))
	}

	ed, err := peakedit.New(signal.Waveform{Samples: samples, Rate: rateJS.Float()}, peaks, opts...)
	if err != nil {
		return makeErrorResponse(ErrorLoadFailed, fmt.Sprintf("Failed to load recording: %v", err))
	}
	editor = ed

	return viewResponse(defaultViewPoints)
}

// Applies a click on the detail plot.
// Args: time (seconds), button (1 add, 3 remove)
// Returns: {error: number, data: {action, index, time, changed, view}}
func peakEditorClick(this js.Value, args []js.Value) interface{} {
	if editor == nil {
		return makeErrorResponse(ErrorNotLoaded, "No recording loaded")
	}
	if len(args) < 2 || args[0].Type() != js.TypeNumber || args[1].Type() != js.TypeNumber {
		return makeErrorResponse(ErrorInvalidArgs, "Expected 2 numeric arguments: time, button")
	}

	res := editor.Click(args[1].Int(), args[0].Float())

	payload := map[string]interface{}{
		"action":  res.Action,
		"index":   res.Index,
		"time":    res.Time,
		"changed": res.Changed,
		"view":    editor.Frame().Downsample(defaultViewPoints),
	}
	return encodeResponse(payload)
}

// Moves the window.
// Args: action ("next" | "prev" | "jump" | "window"), value (string, for jump and window)
// Returns: {error: number, data: {accepted, view} | string}
func peakEditorNavigate(this js.Value, args []js.Value) interface{} {
	if editor == nil {
		return makeErrorResponse(ErrorNotLoaded, "No recording loaded")
	}
	if len(args) < 1 || args[0].Type() != js.TypeString {
		return makeErrorResponse(ErrorInvalidArgs, "action must be a string")
	}

	value := ""
	if len(args) > 1 {
		value = args[1].String()
	}

	accepted := true
	switch action := args[0].String(); action {
	case "next":
		editor.Next()
	case "prev":
		editor.Prev()
	case "jump":
		err := editor.JumpText(value)
		switch {
		case errors.Is(err, peakedit.ErrInvalidNumber):
			return makeErrorResponse(ErrorInvalidArgs, "Invalid time value")
		case errors.Is(err, session.ErrTimeOutOfRange):
			return makeErrorResponse(ErrorOutOfRange, err.Error())
		}
	case "window":
		ok, err := editor.WindowText(value)
		if err != nil {
			return makeErrorResponse(ErrorInvalidArgs, "Invalid window size value")
		}
		accepted = ok
	default:
		return makeErrorResponse(ErrorInvalidArgs, fmt.Sprintf("Unknown action: %s", action))
	}

	return encodeResponse(map[string]interface{}{
		"accepted": accepted,
		"view":     editor.Frame().Downsample(defaultViewPoints),
	})
}

// Returns the current frame.
// Args: maxPoints (optional)
// Returns: {error: number, data: view | string}
func peakEditorView(this js.Value, args []js.Value) interface{} {
	if editor == nil {
		return makeErrorResponse(ErrorNotLoaded, "No recording loaded")
	}
	points := defaultViewPoints
	if len(args) > 0 && args[0].Type() == js.TypeNumber && args[0].Int() > 0 {
		points = args[0].Int()
	}
	return viewResponse(points)
}

// Returns every peak index, for saving on the page.
// Returns: {error: number, data: array | string}
func peakEditorPeaks(this js.Value, args []js.Value) interface{} {
	if editor == nil {
		return makeErrorResponse(ErrorNotLoaded, "No recording loaded")
	}

	peaks := editor.Peaks()
	arr := js.Global().Get("Array").New(len(peaks))
	for i, p := range peaks {
		arr.SetIndex(i, p)
	}

	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", arr)
	return result
}

func floatArray(v js.Value, name string) ([]float64, error) {
	length := v.Length()
	if length == 0 && name == "samples" {
		return nil, fmt.Errorf("%s is empty", name)
	}
	out := make([]float64, length)
	for i := 0; i < length; i++ {
		val := v.Index(i)
		if val.Type() != js.TypeNumber {
			return nil, fmt.Errorf("%s element %d is not a number", name, i)
		}
		out[i] = val.Float()
	}
	return out, nil
}

func viewResponse(points int) js.Value {
	return encodeResponse(editor.Frame().Downsample(points))
}

// encodeResponse hands v to JavaScript through JSON.parse.
func encodeResponse(v interface{}) js.Value {
	data, err := json.Marshal(v)
	if err != nil {
		return makeErrorResponse(ErrorEncoding, fmt.Sprintf("Failed to encode response: %v", err))
	}
	result := js.Global().Get("Object").New()
	result.Set("error", ErrorNone)
	result.Set("data", js.Global().Get("JSON").Call("parse", string(data)))
	return result
}

func makeErrorResponse(errorCode int, message string) js.Value {
	result := js.Global().Get("Object").New()
	result.Set("error", errorCode)
	result.Set("data", message)
	return result
}

func main() {
	console := js.Global().Get("console")
	if !console.IsUndefined() {
		console.Call("log", "🔧 PeakEditor WASM module initializing...")
	}

	done := make(chan struct{})

	js.Global().Set("peakEditorLoad", js.FuncOf(peakEditorLoad))
	js.Global().Set("peakEditorClick", js.FuncOf(peakEditorClick))
	js.Global().Set("peakEditorNavigate", js.FuncOf(peakEditorNavigate))
	js.Global().Set("peakEditorView", js.FuncOf(peakEditorView))
	js.Global().Set("peakEditorPeaks", js.FuncOf(peakEditorPeaks))

	window := js.Global().Get("window")
	if !window.IsUndefined() {
		eventInit := js.Global().Get("Object").New()
		event := js.Global().Get("CustomEvent").New("wasmReady", eventInit)
		window.Call("dispatchEvent", event)
	} else if !console.IsUndefined() {
		console.Call("error", "❌ window object is undefined!")
	}

	if !console.IsUndefined() {
		console.Call("log", "✅ PeakEditor WASM module loaded and ready")
	}

	<-done
}
