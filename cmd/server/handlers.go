package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/himanishpuri/PeakEditor/pkg/logger"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/render"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/session"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/storage"
)

// Server encapsulates the HTTP server and its dependencies.
//
// The editor is single-threaded; every handler that touches it holds mu,
// so requests are applied one at a time in arrival order.
type Server struct {
	mu      sync.Mutex
	editor  *peakedit.Editor
	hub     *Hub
	config  *ServerConfig
	log     peakedit.Logger
	started time.Time
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           string
	Source         string
	OutputDir      string
	JournalPath    string
	AllowedOrigins []string
}

// NewServer creates a new server instance
func NewServer(editor *peakedit.Editor, config *ServerConfig) *Server {
	log := logger.GetLogger().Named("server")
	return &Server{
		editor:  editor,
		hub:     newHub(log),
		config:  config,
		log:     log,
		started: time.Now(),
	}
}

// respondJSON writes a JSON response
func (s *Server) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Errorf("Failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response
func (s *Server) respondError(w http.ResponseWriter, statusCode int, message string) {
	s.respondJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

// decodeBody reads a JSON request body into v and validates it.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v interface{ Validate() error }) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.log.Warnf("Failed to decode request: %v", err)
		s.respondError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := v.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// queryInt parses an integer query parameter, falling back to def when it is
// absent and rejecting values outside [lo, hi].
func queryInt(r *http.Request, name string, def, lo, hi int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", name)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%s must be between %d and %d", name, lo, hi)
	}
	return v, nil
}

// viewLocked builds the view payload. The caller holds s.mu.
func (s *Server) viewLocked(points int) ViewResponse {
	return ViewResponse{
		Recording:  s.editor.Recording(),
		Duration:   s.editor.Duration(),
		PeakCount:  s.editor.PeakCount(),
		HasJournal: s.editor.HasJournal(),
		Frame:      s.editor.Frame().Downsample(points),
	}
}

// publishLocked pushes the current view to websocket clients. The caller
// holds s.mu; encoding happens under the lock, sending does not block it
// beyond the hub's write deadline.
func (s *Server) publishLocked() {
	if s.hub.size() == 0 {
		return
	}
	msg := s.viewLocked(DefaultViewPoints)
	msg.Type = "view"
	b, err := json.Marshal(msg)
	if err != nil {
		s.log.Errorf("Failed to encode view update: %v", err)
		return
	}
	s.hub.broadcastText(b)
}

// handleRoot handles GET /
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]any{
		"service": "PeakEditor API",
		"title":   render.Title,
		"version": "1.0.0",
		"endpoints": map[string]string{
			"health":   "GET /health",
			"view":     "GET /api/view?points=N",
			"viewPng":  "GET /api/view.png?width=W&height=H",
			"click":    "POST /api/click",
			"next":     "POST /api/next",
			"prev":     "POST /api/prev",
			"window":   "POST /api/window",
			"jump":     "POST /api/jump",
			"save":     "POST /api/save",
			"peaks":    "GET /api/peaks",
			"saves":    "GET /api/saves",
			"realtime": "GET /ws",
		},
	})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"time":    time.Now().Format(time.RFC3339),
		"started": humanize.Time(s.started),
	})
}

// handleView handles GET /api/view
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	points, err := queryInt(r, "points", DefaultViewPoints, 2, MaxViewPoints)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	resp := s.viewLocked(points)
	s.mu.Unlock()

	s.respondJSON(w, http.StatusOK, resp)
}

// handleViewPNG handles GET /api/view.png
func (s *Server) handleViewPNG(w http.ResponseWriter, r *http.Request) {
	width, err := queryInt(r, "width", DefaultImageWidth, MinImageSide, MaxImageSide)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	height, err := queryInt(r, "height", DefaultImageHeight, MinImageSide, MaxImageSide)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	wave := s.editor.Waveform()
	frame := s.editor.Frame()
	s.mu.Unlock()

	var buf bytes.Buffer
	if err := render.WritePNG(&buf, wave, frame, width, height); err != nil {
		s.log.Errorf("Failed to render view: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to render view")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// handleClick handles POST /api/click
func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req ClickRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	res := s.editor.Click(req.Button, req.Time)
	count := s.editor.PeakCount()
	if res.Changed {
		s.publishLocked()
	}
	s.mu.Unlock()

	s.respondJSON(w, http.StatusOK, ClickResponse{ClickResult: res, PeakCount: count})
}

// handleNext handles POST /api/next
func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	v := s.editor.Next()
	s.publishLocked()
	s.mu.Unlock()

	s.respondJSON(w, http.StatusOK, NavigateResponse{View: v, Accepted: true})
}

// handlePrev handles POST /api/prev
func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	v := s.editor.Prev()
	s.publishLocked()
	s.mu.Unlock()

	s.respondJSON(w, http.StatusOK, NavigateResponse{View: v, Accepted: true})
}

// handleWindow handles POST /api/window. Sizes outside [1, duration] are
// not an error; the response reports accepted=false.
func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	accepted, err := s.editor.WindowText(req.Text)
	if accepted {
		s.publishLocked()
	}
	v := s.editor.View()
	s.mu.Unlock()

	if err != nil {
		s.respondError(w, http.StatusBadRequest, "Invalid window size value")
		return
	}
	s.respondJSON(w, http.StatusOK, NavigateResponse{View: v, Accepted: accepted})
}

// handleJump handles POST /api/jump
func (s *Server) handleJump(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !s.decodeBody(w, r, &req) {
		return
	}

	s.mu.Lock()
	err := s.editor.JumpText(req.Text)
	if err == nil {
		s.publishLocked()
	}
	v := s.editor.View()
	s.mu.Unlock()

	switch {
	case errors.Is(err, peakedit.ErrInvalidNumber):
		s.respondError(w, http.StatusBadRequest, "Invalid time value")
	case errors.Is(err, session.ErrTimeOutOfRange):
		s.respondError(w, http.StatusUnprocessableEntity, err.Error())
	case err != nil:
		s.respondError(w, http.StatusInternalServerError, err.Error())
	default:
		s.respondJSON(w, http.StatusOK, NavigateResponse{View: v, Accepted: true})
	}
}

// handleSave handles POST /api/save
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	res, err := s.editor.Save()
	s.mu.Unlock()

	if err != nil {
		msg := "Failed to save peaks"
		if errors.Is(err, storage.ErrOutputDirMissing) {
			msg = fmt.Sprintf("Output directory %q does not exist", s.editor.OutputDir())
		}
		s.respondError(w, http.StatusInternalServerError, msg)
		return
	}

	s.respondJSON(w, http.StatusOK, SaveResponse{
		Message:   fmt.Sprintf("Peaks saved to '%s' and '%s'", res.Snapshot, res.Latest),
		Dir:       res.Dir,
		Snapshot:  res.Snapshot,
		Latest:    res.Latest,
		Count:     res.Count,
		Size:      humanize.Bytes(uint64(res.Bytes)),
		SavedAt:   res.SavedAt,
		JournalID: res.JournalID,
	})
}

// handlePeaks handles GET /api/peaks
func (s *Server) handlePeaks(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	peaks := s.editor.Peaks()
	wave := s.editor.Waveform()
	s.mu.Unlock()

	times := make([]float64, len(peaks))
	for i, p := range peaks {
		times[i] = wave.TimeAt(p)
	}
	s.respondJSON(w, http.StatusOK, PeaksResponse{
		Peaks: peaks,
		Times: times,
		Count: len(peaks),
	})
}

// handleSaves handles GET /api/saves
func (s *Server) handleSaves(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", DefaultSavesLimit, 1, 1000)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.mu.Lock()
	records, err := s.editor.Saves(limit)
	s.mu.Unlock()

	if errors.Is(err, peakedit.ErrNoJournal) {
		s.respondError(w, http.StatusNotFound, "Save journal is not enabled")
		return
	}
	if err != nil {
		s.log.Errorf("Failed to list saves: %v", err)
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve saves")
		return
	}

	now := time.Now()
	dtos := make([]SaveDTO, len(records))
	for i, rec := range records {
		dtos[i] = SaveDTO{
			ID:        rec.ID,
			Recording: rec.Recording,
			Snapshot:  rec.Snapshot,
			Count:     rec.Count,
			Size:      humanize.Bytes(uint64(rec.Bytes)),
			CreatedAt: rec.CreatedAt,
			Age:       humanize.RelTime(rec.CreatedAt, now, "ago", "from now"),
		}
	}

	s.respondJSON(w, http.StatusOK, ListSavesResponse{
		Saves: dtos,
		Count: len(dtos),
	})
}

// handleWS handles GET /ws. The current view is sent on connect and again
// after every change.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnf("Websocket upgrade failed: %v", err)
		return
	}

	// Registering under mu orders the first frame before any broadcast.
	s.mu.Lock()
	msg := s.viewLocked(DefaultViewPoints)
	msg.Type = "view"
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	err = conn.WriteJSON(msg)
	if err == nil {
		s.hub.add(conn)
	}
	s.mu.Unlock()
	if err != nil {
		conn.Close()
		return
	}

	defer func() {
		s.hub.remove(conn)
		conn.Close()
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
