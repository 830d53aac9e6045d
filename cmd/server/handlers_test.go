package main

import (
	"bytes"
	"encoding/json"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/himanishpuri/PeakEditor/pkg/logger"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit"
	"github.com/himanishpuri/PeakEditor/pkg/peakedit/signal"
)

func setupTestServer(t *testing.T, opts ...peakedit.Option) (*Server, string) {
	t.Helper()
	logger.GetLogger().SetLevel(logger.ERROR)

	dir := t.TempDir()
	samples := make([]float64, 10000)
	samples[1030] = 1
	samples[5000] = 1
	w := signal.Waveform{Samples: samples, Rate: 100}

	opts = append([]peakedit.Option{
		peakedit.WithOutputDir(dir),
		peakedit.WithLogger(logger.Discard()),
	}, opts...)
	editor, err := peakedit.New(w, []int{500, 1500, 2500}, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { editor.Close() })

	return NewServer(editor, &ServerConfig{Port: "0", OutputDir: dir, AllowedOrigins: []string{"*"}}), dir
}

func do(t *testing.T, h http.Handler, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s, _ := setupTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", decode[map[string]string](t, rec)["status"])
}

func TestView(t *testing.T) {
	s, _ := setupTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodGet, "/api/view", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[ViewResponse](t, rec)
	assert.Equal(t, 100.0, v.Duration)
	assert.Equal(t, 3, v.PeakCount)
	assert.Equal(t, 0, v.Frame.Start)
	assert.Equal(t, 2000, v.Frame.End)
	assert.Equal(t, []int{500, 1500}, v.Frame.PeakIndices)
	assert.Len(t, v.Frame.Overview.Markers, 3)

	rec = do(t, h, http.MethodGet, "/api/view?points=100", nil)
	v = decode[ViewResponse](t, rec)
	assert.LessOrEqual(t, len(v.Frame.Values), 100)

	rec = do(t, h, http.MethodGet, "/api/view?points=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/view", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestViewPNG(t *testing.T) {
	s, _ := setupTestServer(t)
	rec := do(t, s.Handler(), http.MethodGet, "/api/view.png?width=400&height=300", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	img, err := png.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())

	rec = do(t, s.Handler(), http.MethodGet, "/api/view.png?width=10", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClick(t *testing.T) {
	s, _ := setupTestServer(t)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/api/click", ClickRequest{Time: 10.28, Button: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[ClickResponse](t, rec)
	assert.Equal(t, peakedit.ActionAdd, res.Action)
	assert.Equal(t, 1030, res.Index)
	assert.Equal(t, 4, res.PeakCount)

	rec = do(t, h, http.MethodPost, "/api/click", ClickRequest{Time: 10.4, Button: 3})
	res = decode[ClickResponse](t, rec)
	assert.Equal(t, peakedit.ActionRemove, res.Action)
	assert.Equal(t, 3, res.PeakCount)

	rec = do(t, h, http.MethodPost, "/api/click", ClickRequest{Time: 10.4, Button: 2})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/click", "not an object")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decode[ErrorResponse](t, rec).Message)
}

func TestNavigation(t *testing.T) {
	s, _ := setupTestServer(t)
	h := s.Handler()

	nav := decode[NavigateResponse](t, do(t, h, http.MethodPost, "/api/next", nil))
	assert.Equal(t, 20.0, nav.View.Position)

	nav = decode[NavigateResponse](t, do(t, h, http.MethodPost, "/api/prev", nil))
	assert.Equal(t, 0.0, nav.View.Position)

	nav = decode[NavigateResponse](t, do(t, h, http.MethodPost, "/api/window", TextRequest{Text: "5"}))
	assert.True(t, nav.Accepted)
	assert.Equal(t, 5.0, nav.View.Window)

	rec := do(t, h, http.MethodPost, "/api/window", TextRequest{Text: "500"})
	require.Equal(t, http.StatusOK, rec.Code, "out of range sizes are ignored, not rejected")
	assert.False(t, decode[NavigateResponse](t, rec).Accepted)

	rec = do(t, h, http.MethodPost, "/api/window", TextRequest{Text: "five"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	nav = decode[NavigateResponse](t, do(t, h, http.MethodPost, "/api/jump", TextRequest{Text: "10"}))
	assert.Equal(t, 10.0, nav.View.Position)

	rec = do(t, h, http.MethodPost, "/api/jump", TextRequest{Text: "99"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = do(t, h, http.MethodPost, "/api/jump", TextRequest{Text: "soon"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid time value", decode[ErrorResponse](t, rec).Message)

	v := decode[ViewResponse](t, do(t, h, http.MethodGet, "/api/view", nil))
	assert.Equal(t, 1000, v.Frame.Start)
	assert.Equal(t, 1500, v.Frame.End)
	assert.Empty(t, v.Frame.PeakIndices)
}

func TestPeaksAndSave(t *testing.T) {
	s, dir := setupTestServer(t)
	h := s.Handler()

	p := decode[PeaksResponse](t, do(t, h, http.MethodGet, "/api/peaks", nil))
	assert.Equal(t, []int{500, 1500, 2500}, p.Peaks)
	assert.Equal(t, []float64{5, 15, 25}, p.Times)

	rec := do(t, h, http.MethodPost, "/api/save", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	save := decode[SaveResponse](t, rec)
	assert.Equal(t, 3, save.Count)
	assert.True(t, strings.HasPrefix(save.Snapshot, "r_peaks_edited_"))
	assert.FileExists(t, filepath.Join(dir, save.Snapshot))
	assert.FileExists(t, filepath.Join(dir, "r_peaks_edited_latest.npy"))

	rec = do(t, h, http.MethodGet, "/api/saves", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "no journal configured")
}

func TestSaveMissingDir(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")
	s, _ := setupTestServer(t, peakedit.WithOutputDir(missing))

	rec := do(t, s.Handler(), http.MethodPost, "/api/save", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Message, "does not exist")

	require.NoError(t, os.Mkdir(missing, 0o755))
	rec = do(t, s.Handler(), http.MethodPost, "/api/save", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSavesWithJournal(t *testing.T) {
	s, _ := setupTestServer(t, peakedit.WithJournalPath(filepath.Join(t.TempDir(), "j.sqlite3")))
	h := s.Handler()

	require.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/save", nil).Code)

	list := decode[ListSavesResponse](t, do(t, h, http.MethodGet, "/api/saves", nil))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, 3, list.Saves[0].Count)
	assert.NotEmpty(t, list.Saves[0].ID)
}

func TestCORSPreflight(t *testing.T) {
	s, _ := setupTestServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/click", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebsocketPushesViewUpdates(t *testing.T) {
	s, _ := setupTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() ViewResponse {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		var v ViewResponse
		require.NoError(t, conn.ReadJSON(&v))
		return v
	}

	first := read()
	assert.Equal(t, "view", first.Type)
	assert.Equal(t, 0, first.Frame.Start)

	resp, err := http.Post(ts.URL+"/api/next", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()

	next := read()
	assert.Equal(t, 2000, next.Frame.Start)

	body, _ := json.Marshal(ClickRequest{Time: 50, Button: 1})
	resp, err = http.Post(ts.URL+"/api/click", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()

	clicked := read()
	assert.Equal(t, 4, clicked.PeakCount)
}
