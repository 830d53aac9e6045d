package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/himanishpuri/PeakEditor/pkg/peakedit"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/render"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/session"
)

// Limits for query parameters
const (
	// DefaultViewPoints is the detail series length sent to clients when
	// ?points is not given.
	DefaultViewPoints = 2000
	MaxViewPoints     = 100000

	DefaultImageWidth  = 1200
	DefaultImageHeight = 720
	MinImageSide       = 200
	MaxImageSide       = 4000

	DefaultSavesLimit = 50
)

// ClickRequest is the request body for POST /api/click
type ClickRequest struct {
	// Time is the click position on the detail plot, in seconds.
	Time float64 `json:"time"`
	// Button is 1 (primary, add) or 3 (secondary, remove).
	Button int `json:"button"`
}

// Validate checks if the request is valid
func (r *ClickRequest) Validate() error {
	if math.IsNaN(r.Time) || math.IsInf(r.Time, 0) {
		return fmt.Errorf("time must be a finite number")
	}
	if r.Button != peakedit.ButtonPrimary && r.Button != peakedit.ButtonSecondary {
		return fmt.Errorf("button must be %d (add) or %d (remove), got %d",
			peakedit.ButtonPrimary, peakedit.ButtonSecondary, r.Button)
	}
	return nil
}

// TextRequest carries the raw contents of a text field, as typed.
// Used by POST /api/window and POST /api/jump.
type TextRequest struct {
	Text string `json:"text"`
}

// Validate checks if the request is valid
func (r *TextRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return fmt.Errorf("text is required")
	}
	return nil
}

// ViewResponse is the response for GET /api/view and the websocket push
type ViewResponse struct {
	Type       string       `json:"type,omitempty"`
	Recording  string       `json:"recording"`
	Duration   float64      `json:"duration"`
	PeakCount  int          `json:"peak_count"`
	HasJournal bool         `json:"has_journal"`
	Frame      render.Frame `json:"frame"`
}

// NavigateResponse is returned by next, prev, jump and window.
type NavigateResponse struct {
	View     session.View `json:"view"`
	Accepted bool         `json:"accepted"`
}

// ClickResponse is the response for POST /api/click
type ClickResponse struct {
	peakedit.ClickResult
	PeakCount int `json:"peak_count"`
}

// PeaksResponse is the response for GET /api/peaks
type PeaksResponse struct {
	Peaks []int     `json:"peaks"`
	Times []float64 `json:"times"`
	Count int       `json:"count"`
}

// SaveResponse is the response for POST /api/save
type SaveResponse struct {
	Message   string    `json:"message"`
	Dir       string    `json:"dir"`
	Snapshot  string    `json:"snapshot"`
	Latest    string    `json:"latest"`
	Count     int       `json:"count"`
	Size      string    `json:"size"`
	SavedAt   time.Time `json:"saved_at"`
	JournalID string    `json:"journal_id,omitempty"`
}

// SaveDTO represents a journaled save in API responses
type SaveDTO struct {
	ID        string    `json:"id"`
	Recording string    `json:"recording"`
	Snapshot  string    `json:"snapshot"`
	Count     int       `json:"count"`
	Size      string    `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Age       string    `json:"age"`
}

// ListSavesResponse is the response for GET /api/saves
type ListSavesResponse struct {
	Saves []SaveDTO `json:"saves"`
	Count int       `json:"count"`
}

// ErrorResponse is the standard error response format
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}
