package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aouyang1/pckiosk/api/client"
	"github.com/aouyang1/pckiosk/api/models"
	"github.com/aouyang1/pckiosk/liveness"
	"github.com/aouyang1/pckiosk/slideshow"
	"github.com/aouyang1/pckiosk/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBackend struct {
	mu sync.Mutex

	wakeErr     error
	uploads     map[string]string
	uploadErr   error
	macros      *models.MacroConfig
	macroCalls  int
	opened      []string
	switched    []string
	sessions    []models.AudioSession
	volumes     map[string]int
	spotify     []string
	spotifyResp json.RawMessage

	stats       json.RawMessage
	song        json.RawMessage
	audioLevels []models.AudioVolume
	outputs     []models.AudioOutputDevice
	output      string
	icons       map[string]string
	macroOps    []string
	mutateErr   error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		uploads: map[string]string{},
		volumes: map[string]int{},
		icons:   map[string]string{},
	}
}

func (f *fakeBackend) Wake(context.Context) error { return f.wakeErr }

func (f *fakeBackend) UploadMedia(_ context.Context, name string, r io.Reader) (*models.UploadResponse, error) {
	if f.uploadErr != nil {
		return nil, f.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads[name] = string(data)
	return &models.UploadResponse{UploadedFiles: []string{name}}, nil
}

func (f *fakeBackend) Macros(context.Context) (*models.MacroConfig, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.macroCalls++
	if f.macros == nil {
		return nil, errors.New("macro server down")
	}
	return f.macros, nil
}

func (f *fakeBackend) RawStats(context.Context) (json.RawMessage, error) {
	if f.stats == nil {
		return nil, errors.New("backend down")
	}
	return f.stats, nil
}

func (f *fakeBackend) recordMacroOp(op string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mutateErr != nil {
		return f.mutateErr
	}
	f.macroOps = append(f.macroOps, op)
	return nil
}

func (f *fakeBackend) SaveMacro(_ context.Context, m models.Macro) error {
	return f.recordMacroOp(fmt.Sprintf("save %d %s %s", m.Position, m.Label, m.Command))
}

func (f *fakeBackend) DeleteMacro(_ context.Context, position int) error {
	return f.recordMacroOp(fmt.Sprintf("delete %d", position))
}

func (f *fakeBackend) SwapMacros(_ context.Context, from, to int) error {
	return f.recordMacroOp(fmt.Sprintf("swap %d %d", from, to))
}

func (f *fakeBackend) ResizeGrid(_ context.Context, grid models.MacroGrid) error {
	return f.recordMacroOp(fmt.Sprintf("resize %dx%d", grid.Columns, grid.Rows))
}

func (f *fakeBackend) UploadMacroIcon(_ context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	f.icons[name] = string(data)
	return "icons/" + name, nil
}

func (f *fakeBackend) OpenApp(_ context.Context, appPath string) error {
	f.opened = append(f.opened, appPath)
	return nil
}

func (f *fakeBackend) SwitchAccount(_ context.Context, steamID string) error {
	f.switched = append(f.switched, steamID)
	return nil
}

func (f *fakeBackend) AudioSessions(context.Context) ([]models.AudioSession, error) {
	return f.sessions, nil
}

func (f *fakeBackend) AudioVolumes(context.Context) ([]models.AudioVolume, error) {
	return f.audioLevels, nil
}

func (f *fakeBackend) AudioOutputDevices(context.Context) ([]models.AudioOutputDevice, error) {
	return f.outputs, nil
}

func (f *fakeBackend) SetAudioOutputDevice(_ context.Context, deviceID string) error {
	f.output = deviceID
	return nil
}

func (f *fakeBackend) SetAppVolume(_ context.Context, appName string, volume int) error {
	f.volumes[appName] = volume
	return nil
}

func (f *fakeBackend) SpotifyCommand(_ context.Context, command string) (json.RawMessage, error) {
	f.spotify = append(f.spotify, command)
	return f.spotifyResp, nil
}

func (f *fakeBackend) CurrentSong(context.Context) (json.RawMessage, error) {
	return f.song, nil
}

type fakeSlideshow struct {
	mu     sync.Mutex
	loads  int
	events []slideshow.Event
	skips  int
	snap   slideshow.Snapshot
}

func (f *fakeSlideshow) Load(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return nil
}

func (f *fakeSlideshow) Loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

func (f *fakeSlideshow) Post(ev slideshow.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
}

func (f *fakeSlideshow) Skip() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.skips++
}

func (f *fakeSlideshow) Snapshot() slideshow.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

type fakeCache struct {
	dir   string
	files map[string]string
	err   error
}

func (f *fakeCache) Ensure(_ context.Context, name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", slideshow.ErrInvalidName
	}
	if f.err != nil {
		return "", f.err
	}
	content, ok := f.files[name]
	if !ok {
		return "", &client.StatusError{Code: http.StatusNotFound}
	}
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

type fakeLiveness struct {
	state liveness.State
}

func (f *fakeLiveness) Snapshot() liveness.State { return f.state }

type serverFixture struct {
	ws       *WebServer
	db       *store.Database
	backend  *fakeBackend
	show     *fakeSlideshow
	surface  *slideshow.WebSurface
	cache    *fakeCache
	liveness *fakeLiveness
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()
	db, err := store.NewDatabase(filepath.Join(t.TempDir(), "kiosk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	f := &serverFixture{
		db:       db,
		backend:  newFakeBackend(),
		show:     &fakeSlideshow{},
		surface:  slideshow.NewWebSurface(MediaURL),
		cache:    &fakeCache{dir: t.TempDir(), files: map[string]string{}},
		liveness: &fakeLiveness{state: liveness.State{LastOutcome: liveness.OutcomeOnline}},
	}
	ws, err := NewWebServer(Options{
		DB:        db,
		Backend:   f.backend,
		Liveness:  f.liveness,
		Slideshow: f.show,
		Surface:   f.surface,
		Cache:     f.cache,
		MacroTTL:  time.Minute,
	})
	require.NoError(t, err)
	f.ws = ws
	return f
}

func (f *serverFixture) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.ws.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestNewWebServerValidation(t *testing.T) {
	_, err := NewWebServer(Options{})
	assert.Error(t, err)
}

func TestLanding(t *testing.T) {
	f := newServerFixture(t)
	require.NoError(t, f.db.SetDefaultPage("/spotify"))

	w := f.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/spotify", w.Header().Get("Location"))

	f.liveness.state = liveness.State{ConsecutiveFailures: 2, LastOutcome: liveness.OutcomeOffline}
	w = f.do(t, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "PC offline")
	assert.Contains(t, w.Body.String(), `data-default-page="/spotify"`)
	assert.Contains(t, w.Body.String(), "--accent:#5ad1a2;")
}

func TestStatusAndOffline(t *testing.T) {
	f := newServerFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.ws.runReloads(ctx)

	status := decode[models.LivenessStatusResponse](t, f.do(t, http.MethodGet, "/kiosk/status", nil))
	assert.True(t, status.Online)
	assert.Equal(t, "online", status.LastOutcome)
	assert.EqualValues(t, 0, status.RedirectSeq)

	f.ws.HandleOffline()
	f.ws.HandleOffline()

	status = decode[models.LivenessStatusResponse](t, f.do(t, http.MethodGet, "/kiosk/status", nil))
	assert.EqualValues(t, 2, status.RedirectSeq)
	assert.Eventually(t, func() bool { return f.show.Loads() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestWake(t *testing.T) {
	f := newServerFixture(t)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/wake", nil).Code)

	f.backend.wakeErr = errors.New("no route")
	assert.Equal(t, http.StatusBadGateway, f.do(t, http.MethodPost, "/wake", nil).Code)
}

func TestSlideshowState(t *testing.T) {
	f := newServerFixture(t)
	f.surface.Load(1, slideshow.MediaRef{FileName: "my clip.mp4", Kind: slideshow.KindVideo})
	f.surface.Place(1, slideshow.PositionCenter, false)
	f.surface.Play(1)
	f.show.snap = slideshow.Snapshot{State: slideshow.StateShowing, Index: 2, Length: 5, Active: 1, Preloaded: "b.jpg"}

	state := decode[models.SlideshowStateResponse](t, f.do(t, http.MethodGet, "/slideshow/state", nil))
	assert.Equal(t, "showing", state.State)
	assert.Equal(t, 2, state.Index)
	assert.Equal(t, 5, state.Length)
	assert.Equal(t, "b.jpg", state.PreloadedMedia)
	require.Len(t, state.Buffers, 2)
	assert.Empty(t, state.Buffers[0].Src)
	assert.False(t, state.Buffers[0].Active)
	assert.Equal(t, "/slideshow/uploads/my%20clip.mp4", state.Buffers[1].Src)
	assert.Equal(t, "video", state.Buffers[1].Kind)
	assert.Equal(t, "center", state.Buffers[1].Position)
	assert.True(t, state.Buffers[1].Playing)
	assert.True(t, state.Buffers[1].Active)
}

func TestMediaEvents(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(t, http.MethodPost, "/slideshow/events", models.MediaEventRequest{Buffer: 1, Event: "ended", Media: "b.mp4"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, f.show.events, 1)
	assert.Equal(t, slideshow.MediaEvent(slideshow.EventEnded, 1, "b.mp4"), f.show.events[0])

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/slideshow/events", models.MediaEventRequest{Buffer: 2, Event: "ended"}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/slideshow/events", models.MediaEventRequest{Buffer: 0, Event: "settle"}).Code)
	assert.Len(t, f.show.events, 1)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/slideshow/next", nil).Code)
	assert.Equal(t, 1, f.show.skips)
}

func TestCapabilities(t *testing.T) {
	f := newServerFixture(t)
	w := f.do(t, http.MethodPost, "/slideshow/capabilities", models.CapabilitiesRequest{FrameCallback: true})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, slideshow.Capabilities{FrameCallback: true}, f.surface.Capabilities())
}

func TestMedia(t *testing.T) {
	f := newServerFixture(t)
	f.cache.files["a.jpg"] = "jpeg"

	w := f.do(t, http.MethodGet, "/slideshow/uploads/a.jpg", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jpeg", w.Body.String())

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/slideshow/uploads/missing.jpg", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/slideshow/uploads/..hidden.jpg", nil).Code)

	f.cache.err = errors.New("backend down")
	assert.Equal(t, http.StatusBadGateway, f.do(t, http.MethodGet, "/slideshow/uploads/a.jpg", nil).Code)
}

func newUploadRequest(t *testing.T, files map[string]string) *http.Request {
	t.Helper()
	return newMultipartRequest(t, "/slideshow/upload", "file", files)
}

func newMultipartRequest(t *testing.T, target, field string, files map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUpload(t *testing.T) {
	f := newServerFixture(t)

	w := httptest.NewRecorder()
	f.ws.router.ServeHTTP(w, newUploadRequest(t, map[string]string{"a.jpg": "one", "b.mp4": "two"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[models.UploadResponse](t, w)
	assert.ElementsMatch(t, []string{"a.jpg", "b.mp4"}, resp.UploadedFiles)
	assert.Equal(t, map[string]string{"a.jpg": "one", "b.mp4": "two"}, f.backend.uploads)
	assert.Len(t, f.ws.reloads, 1)
}

func TestUploadRejected(t *testing.T) {
	f := newServerFixture(t)

	w := httptest.NewRecorder()
	f.ws.router.ServeHTTP(w, newUploadRequest(t, map[string]string{"a.jpg": "one", "notes.txt": "two"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, f.backend.uploads)

	w = httptest.NewRecorder()
	f.ws.router.ServeHTTP(w, newUploadRequest(t, nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.backend.uploadErr = errors.New("disk full")
	w = httptest.NewRecorder()
	f.ws.router.ServeHTTP(w, newUploadRequest(t, map[string]string{"a.jpg": "one"}))
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Len(t, f.ws.reloads, 0)
}

func TestSettings(t *testing.T) {
	f := newServerFixture(t)

	page := decode[models.DefaultPageRequest](t, f.do(t, http.MethodGet, "/settings/default-page", nil))
	assert.Equal(t, "/dashboard", page.Page)

	w := f.do(t, http.MethodPut, "/settings/hidden-pages", models.HiddenPagesRequest{Pages: []string{"/dashboard"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"/dashboard"}, decode[models.HiddenPagesRequest](t, w).Pages)

	page = decode[models.DefaultPageRequest](t, f.do(t, http.MethodGet, "/settings/default-page", nil))
	assert.Equal(t, "/spotify", page.Page)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/settings/default-page", models.DefaultPageRequest{Page: "/dashboard"}).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/settings/default-page", models.DefaultPageRequest{Page: "/resources"}).Code)

	w = f.do(t, http.MethodPut, "/settings/hidden-pages", models.HiddenPagesRequest{Pages: store.SwipePages})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	theme := decode[models.ThemeResponse](t, f.do(t, http.MethodGet, "/settings/theme", nil))
	assert.Equal(t, "ocean", theme.Name)
	theme = decode[models.ThemeResponse](t, f.do(t, http.MethodPut, "/settings/theme", models.ThemeRequest{Name: "mono"}))
	assert.Equal(t, "mono", theme.Name)
	assert.Equal(t, "#8fb1ff", theme.Vars["--accent"])
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/settings/theme", models.ThemeRequest{Name: "neon"}).Code)

	theme = decode[models.ThemeResponse](t, f.do(t, http.MethodDelete, "/settings/theme", nil))
	assert.Equal(t, "ocean", theme.Name)
	assert.Equal(t, "#5ad1a2", theme.Vars["--accent"])
	theme = decode[models.ThemeResponse](t, f.do(t, http.MethodGet, "/settings/theme", nil))
	assert.Equal(t, "ocean", theme.Name)

	w = f.do(t, http.MethodPut, "/settings/hidden-sessions", models.HiddenSessionsRequest{IDs: []string{"steam.exe", "chrome.exe"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"chrome.exe", "steam.exe"}, decode[models.HiddenSessionsRequest](t, w).IDs)
}

func TestMacrosCached(t *testing.T) {
	f := newServerFixture(t)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	f.ws.now = func() time.Time { return now }

	assert.Equal(t, http.StatusBadGateway, f.do(t, http.MethodGet, "/macros", nil).Code)

	f.backend.macros = &models.MacroConfig{
		Grid:   models.MacroGrid{Columns: 3, Rows: 2},
		Macros: []models.Macro{{Label: "Steam", Command: "open_app:C:/steam.exe"}},
	}
	cfg := decode[models.MacroConfig](t, f.do(t, http.MethodGet, "/macros", nil))
	assert.Equal(t, 3, cfg.Grid.Columns)
	assert.Equal(t, "Steam", cfg.Macros[0].Label)
	assert.Equal(t, 2, f.backend.macroCalls)

	f.backend.macros.Grid.Columns = 4
	now = now.Add(30 * time.Second)
	cfg = decode[models.MacroConfig](t, f.do(t, http.MethodGet, "/macros", nil))
	assert.Equal(t, 3, cfg.Grid.Columns)
	assert.Equal(t, 2, f.backend.macroCalls)

	now = now.Add(time.Minute)
	cfg = decode[models.MacroConfig](t, f.do(t, http.MethodGet, "/macros", nil))
	assert.Equal(t, 4, cfg.Grid.Columns)
	assert.Equal(t, 3, f.backend.macroCalls)
}

func TestMacroMutations(t *testing.T) {
	f := newServerFixture(t)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	f.ws.now = func() time.Time { return now }
	f.backend.macros = &models.MacroConfig{
		Grid:   models.MacroGrid{Columns: 2, Rows: 2},
		Macros: []models.Macro{{Label: "Steam", Command: "open_app:C:/steam.exe", Position: 3}},
	}

	w := f.do(t, http.MethodPost, "/macros", models.Macro{Label: "Alt", Command: "switch_account:7656", Position: 0})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/macros/swap", models.SwapMacrosRequest{From: 0, To: 1}).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/macros/swap", models.SwapMacrosRequest{From: 1, To: 1}).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodDelete, "/macros/1", nil).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPut, "/macros/grid", models.MacroGrid{Columns: 4, Rows: 1}).Code)

	assert.Equal(t, []string{
		"save 0 Alt switch_account:7656",
		"swap 0 1",
		"delete 1",
		"resize 4x1",
	}, f.backend.macroOps)
}

func TestMacroMutationsRejected(t *testing.T) {
	f := newServerFixture(t)
	f.backend.macros = &models.MacroConfig{
		Grid:   models.MacroGrid{Columns: 2, Rows: 2},
		Macros: []models.Macro{{Label: "Steam", Command: "open_app:C:/steam.exe", Position: 3}},
	}

	for _, m := range []models.Macro{
		{Command: "open_app:C:/steam.exe"},
		{Label: "Reboot", Command: "reboot:now"},
		{Label: "Steam", Command: "open_app:C:/steam.exe", Position: -1},
	} {
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/macros", m).Code, m)
	}
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodDelete, "/macros/first", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodDelete, "/macros/-2", nil).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/macros/swap", models.SwapMacrosRequest{From: -1, To: 0}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/macros/grid", models.MacroGrid{Columns: 0, Rows: 3}).Code)

	w := f.do(t, http.MethodPut, "/macros/grid", models.MacroGrid{Columns: 3, Rows: 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "Steam")
	assert.Empty(t, f.backend.macroOps)

	f.backend.mutateErr = errors.New("macro server down")
	assert.Equal(t, http.StatusBadGateway, f.do(t, http.MethodDelete, "/macros/3", nil).Code)
}

func TestMacroMutationClearsCache(t *testing.T) {
	f := newServerFixture(t)
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	f.ws.now = func() time.Time { return now }
	f.backend.macros = &models.MacroConfig{
		Grid:   models.MacroGrid{Columns: 2, Rows: 1},
		Macros: []models.Macro{{Label: "Steam", Command: "open_app:C:/steam.exe"}},
	}

	decode[models.MacroConfig](t, f.do(t, http.MethodGet, "/macros", nil))
	require.Equal(t, 1, f.backend.macroCalls)

	f.backend.macros.Macros = append(f.backend.macros.Macros, models.Macro{Label: "Alt", Command: "switch_account:7656", Position: 1})
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/macros", f.backend.macros.Macros[1]).Code)

	cfg := decode[models.MacroConfig](t, f.do(t, http.MethodGet, "/macros", nil))
	assert.Len(t, cfg.Macros, 2)
	assert.Equal(t, 2, f.backend.macroCalls)
}

func TestUploadMacroIcon(t *testing.T) {
	f := newServerFixture(t)

	w := httptest.NewRecorder()
	f.ws.router.ServeHTTP(w, newMultipartRequest(t, "/macros/icon", "icon", map[string]string{"Steam.PNG": "icon-bytes"}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "icons/Steam.PNG", decode[models.MacroIconResponse](t, w).IconPath)
	assert.Equal(t, map[string]string{"Steam.PNG": "icon-bytes"}, f.backend.icons)

	w = httptest.NewRecorder()
	f.ws.router.ServeHTTP(w, newMultipartRequest(t, "/macros/icon", "icon", map[string]string{"clip.mp4": "video"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	f.ws.router.ServeHTTP(w, newMultipartRequest(t, "/macros/icon", "file", map[string]string{"steam.png": "icon-bytes"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, f.backend.icons, 1)
}

func TestRunMacro(t *testing.T) {
	f := newServerFixture(t)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/macros/run", models.RunMacroRequest{Command: "open_app:C:/Games/steam.exe"}).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/macros/run", models.RunMacroRequest{Command: "switch_account:7656119"}).Code)
	assert.Equal(t, []string{"C:/Games/steam.exe"}, f.backend.opened)
	assert.Equal(t, []string{"7656119"}, f.backend.switched)

	for _, cmd := range []string{"", "open_app", "open_app:", "reboot:now"} {
		assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/macros/run", models.RunMacroRequest{Command: cmd}).Code, cmd)
	}
}

func TestParseMacroCommand(t *testing.T) {
	kind, arg, err := parseMacroCommand("open_app:C:/a:b.exe")
	require.NoError(t, err)
	assert.Equal(t, macroOpenApp, kind)
	assert.Equal(t, "C:/a:b.exe", arg)

	_, _, err = parseMacroCommand("launch:x")
	assert.ErrorIs(t, err, errUnknownMacro)
}

func TestAudio(t *testing.T) {
	f := newServerFixture(t)
	f.backend.sessions = []models.AudioSession{{Name: "spotify.exe", Volume: 40}, {Name: "discord.exe", Volume: 80}}
	require.NoError(t, f.db.SetHiddenSessions([]string{"discord.exe"}))

	sessions := decode[[]models.AudioSession](t, f.do(t, http.MethodGet, "/audio/sessions", nil))
	assert.Equal(t, []models.AudioSession{{Name: "spotify.exe", Volume: 40}}, sessions)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/audio/volume", models.SetVolumeRequest{AppName: "spotify.exe", Volume: 55}).Code)
	assert.Equal(t, 55, f.backend.volumes["spotify.exe"])
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/audio/volume", models.SetVolumeRequest{AppName: "spotify.exe", Volume: 101}).Code)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPost, "/audio/volume", models.SetVolumeRequest{Volume: 10}).Code)
}

func TestAudioVolumes(t *testing.T) {
	f := newServerFixture(t)
	f.backend.audioLevels = []models.AudioVolume{{Name: "spotify.exe", Volume: 40}, {Name: "discord.exe", Volume: 80}}
	require.NoError(t, f.db.SetHiddenSessions([]string{"discord.exe"}))

	w := f.do(t, http.MethodGet, "/audio/volumes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.Equal(t, []models.AudioVolume{{Name: "spotify.exe", Volume: 40}}, decode[[]models.AudioVolume](t, w))
}

func TestAudioOutputs(t *testing.T) {
	f := newServerFixture(t)

	assert.JSONEq(t, `[]`, f.do(t, http.MethodGet, "/audio/outputs", nil).Body.String())

	f.backend.outputs = []models.AudioOutputDevice{
		{ID: "{a}", Name: "Speakers", IsDefault: true},
		{ID: "{b}", Name: "Headset"},
	}
	devices := decode[[]models.AudioOutputDevice](t, f.do(t, http.MethodGet, "/audio/outputs", nil))
	assert.Equal(t, f.backend.outputs, devices)

	w := f.do(t, http.MethodPut, "/audio/outputs/default", models.SetOutputDeviceRequest{DeviceID: "{b}"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "{b}", f.backend.output)
	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodPut, "/audio/outputs/default", models.SetOutputDeviceRequest{}).Code)
}

func TestStats(t *testing.T) {
	f := newServerFixture(t)

	assert.Equal(t, http.StatusBadGateway, f.do(t, http.MethodGet, "/stats", nil).Code)

	f.backend.stats = json.RawMessage(`{"cpu_usage": 12.5, "cpu_temp": "41,0 °C"}`)
	w := f.do(t, http.MethodGet, "/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
	assert.JSONEq(t, `{"cpu_usage": 12.5, "cpu_temp": "41,0 °C"}`, w.Body.String())
}

func TestCurrentSong(t *testing.T) {
	f := newServerFixture(t)

	w := f.do(t, http.MethodGet, "/spotify/current-song", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())

	f.backend.song = json.RawMessage(`{"song": "Intro", "artist": "The xx"}`)
	w = f.do(t, http.MethodGet, "/spotify/current-song", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"song": "Intro", "artist": "The xx"}`, w.Body.String())
}

func TestSpotify(t *testing.T) {
	f := newServerFixture(t)
	f.backend.spotifyResp = json.RawMessage(`{"is_playing":true}`)

	w := f.do(t, http.MethodPost, "/spotify/play", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"is_playing":true}`, w.Body.String())
	assert.Equal(t, []string{"play"}, f.backend.spotify)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/spotify/prev", nil).Code)
	assert.Equal(t, []string{"play", "prev"}, f.backend.spotify)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, "/spotify/shuffle", nil).Code)
}
