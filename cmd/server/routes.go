package main

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/himanishpuri/PeakEditor/pkg/logger"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit"
)

const wsWriteTimeout = 200 * time.Millisecond

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks websocket clients that receive view updates.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
	log   peakedit.Logger
}

func newHub(log peakedit.Logger) *Hub {
	return &Hub{conns: make(map[*websocket.Conn]bool), log: log}
}

func (h *Hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = true
	n := len(h.conns)
	h.mu.Unlock()
	h.log.Debugf("Websocket client connected (%d total)", n)
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *Hub) size() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

func (h *Hub) snapshot() []*websocket.Conn {
	h.mu.Lock()
	clients := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	return clients
}

func (h *Hub) broadcastText(b []byte) {
	for _, c := range h.snapshot() {
		_ = c.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			_ = c.Close()
			h.remove(c)
		}
	}
}

// only rejects requests whose method is not m.
func (s *Server) only(m string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != m {
			s.respondError(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		h(w, r)
	}
}

// setupRoutes registers all HTTP routes and middleware
func (s *Server) setupRoutes() http.Handler {
	mux := http.NewServeMux()

	// Root endpoint
	mux.HandleFunc("/", s.handleRoot)

	// Health endpoints
	mux.HandleFunc("/health", s.handleHealth)

	// View endpoints
	mux.HandleFunc("/api/view", s.only(http.MethodGet, s.handleView))
	mux.HandleFunc("/api/view.png", s.only(http.MethodGet, s.handleViewPNG))
	mux.HandleFunc("/api/peaks", s.only(http.MethodGet, s.handlePeaks))

	// Editing endpoints
	mux.HandleFunc("/api/click", s.only(http.MethodPost, s.handleClick))
	mux.HandleFunc("/api/next", s.only(http.MethodPost, s.handleNext))
	mux.HandleFunc("/api/prev", s.only(http.MethodPost, s.handlePrev))
	mux.HandleFunc("/api/window", s.only(http.MethodPost, s.handleWindow))
	mux.HandleFunc("/api/jump", s.only(http.MethodPost, s.handleJump))

	// Persistence endpoints
	mux.HandleFunc("/api/save", s.only(http.MethodPost, s.handleSave))
	mux.HandleFunc("/api/saves", s.only(http.MethodGet, s.handleSaves))

	// Live updates
	mux.HandleFunc("/ws", s.handleWS)

	// Wrap with CORS middleware
	return corsMiddleware(s.config.AllowedOrigins)(mux)
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			if len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*") {
				w.Header().Set("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, allowedOrigin := range allowedOrigins {
					if allowedOrigin == origin {
						w.Header().Set("Access-Control-Allow-Origin", origin)
						allowed = true
						break
					}
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
				w.Header().Set("Access-Control-Max-Age", "3600")
			}

			// Handle preflight requests
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs all HTTP requests
func loggingMiddleware(next http.Handler) http.Handler {
	log := logger.GetLogger().Named("http")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(wrapped, r)

		log.Debugf("%s %s from %s -> %d (%s)", r.Method, r.URL.Path, getClientIP(r),
			wrapped.statusCode, time.Since(start).Round(time.Microsecond))
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Hijack passes the connection through for the /ws upgrade.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response does not support hijacking")
	}
	return h.Hijack()
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	ip := r.RemoteAddr
	if idx := strings.LastIndex(ip, ":"); idx != -1 {
		ip = ip[:idx]
	}
	return ip
}

// Handler returns the routed handler with request logging.
func (s *Server) Handler() http.Handler {
	return loggingMiddleware(s.setupRoutes())
}

// Banner logs the listening address and endpoint list.
func (s *Server) Banner() {
	s.log.Infof("🚀 PeakEditor server starting on :%s", s.config.Port)
	s.log.Infof("   Recording: %s (%s)", s.editor.Recording(), s.config.Source)
	s.log.Infof("   Duration: %.1f s, %d peaks", s.editor.Duration(), s.editor.PeakCount())
	s.log.Infof("   Output Dir: %s", s.config.OutputDir)
	if s.config.JournalPath != "" {
		s.log.Infof("   Journal: %s", s.config.JournalPath)
	}
	s.log.Infof("   CORS Origins: %v", s.config.AllowedOrigins)
	s.log.Infof("\nEndpoints:")
	s.log.Infof("   GET    /health                  - Health check")
	s.log.Infof("   GET    /api/view                - Current frame (JSON)")
	s.log.Infof("   GET    /api/view.png            - Current frame (PNG)")
	s.log.Infof("   GET    /api/peaks               - Current peak indices")
	s.log.Infof("   POST   /api/click               - Add (button 1) or remove (button 3) a peak")
	s.log.Infof("   POST   /api/next                - Next window")
	s.log.Infof("   POST   /api/prev                - Previous window")
	s.log.Infof("   POST   /api/window              - Set window size")
	s.log.Infof("   POST   /api/jump                - Jump to time")
	s.log.Infof("   POST   /api/save                - Save peaks")
	s.log.Infof("   GET    /api/saves               - Save history")
	s.log.Infof("   GET    /ws                      - Live view updates")
}

// HTTPServer returns an http.Server for the configured port.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%s", s.config.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
