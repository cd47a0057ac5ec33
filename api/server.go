// Package api is the kiosk web server: pages, slideshow state, settings and
// thin proxies to the PC backend
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aouyang1/pckiosk/api/models"
	"github.com/aouyang1/pckiosk/api/web/templates"
	"github.com/aouyang1/pckiosk/liveness"
	"github.com/aouyang1/pckiosk/slideshow"
	"github.com/aouyang1/pckiosk/store"
)

const (
	defaultMacroTTL = 5 * time.Minute
	reloadTimeout   = 30 * time.Second
)

// Backend is the part of the PC backend client the server proxies to.
type Backend interface {
	Wake(ctx context.Context) error
	RawStats(ctx context.Context) (json.RawMessage, error)
	UploadMedia(ctx context.Context, name string, r io.Reader) (*models.UploadResponse, error)

	Macros(ctx context.Context) (*models.MacroConfig, error)
	SaveMacro(ctx context.Context, m models.Macro) error
	DeleteMacro(ctx context.Context, position int) error
	SwapMacros(ctx context.Context, from, to int) error
	ResizeGrid(ctx context.Context, grid models.MacroGrid) error
	UploadMacroIcon(ctx context.Context, name string, r io.Reader) (string, error)
	OpenApp(ctx context.Context, appPath string) error
	SwitchAccount(ctx context.Context, steamID string) error

	AudioSessions(ctx context.Context) ([]models.AudioSession, error)
	AudioVolumes(ctx context.Context) ([]models.AudioVolume, error)
	SetAppVolume(ctx context.Context, appName string, volume int) error
	AudioOutputDevices(ctx context.Context) ([]models.AudioOutputDevice, error)
	SetAudioOutputDevice(ctx context.Context, deviceID string) error

	SpotifyCommand(ctx context.Context, command string) (json.RawMessage, error)
	CurrentSong(ctx context.Context) (json.RawMessage, error)
}

type LivenessReporter interface {
	Snapshot() liveness.State
}

type Slideshow interface {
	Load(ctx context.Context) error
	Post(ev slideshow.Event)
	Skip()
	Snapshot() slideshow.Snapshot
}

type MediaCache interface {
	Ensure(ctx context.Context, name string) (string, error)
}

type Options struct {
	DB        *store.Database
	Backend   Backend
	Liveness  LivenessReporter
	Slideshow Slideshow
	Surface   *slideshow.WebSurface
	Cache     MediaCache
	MacroTTL  time.Duration
}

type WebServer struct {
	router *gin.Engine
	db     *store.Database

	backend  Backend
	liveness LivenessReporter
	show     Slideshow
	surface  *slideshow.WebSurface
	cache    MediaCache
	macroTTL time.Duration
	now      func() time.Time

	// redirectSeq bumps every time the PC is declared offline; pages poll
	// it and navigate to the landing page when it changes
	redirectSeq atomic.Uint64
	reloading   atomic.Bool
	reloads     chan struct{}
}

func NewWebServer(opts Options) (*WebServer, error) {
	switch {
	case opts.DB == nil:
		return nil, errors.New("no database provided for web server")
	case opts.Backend == nil:
		return nil, errors.New("no backend provided for web server")
	case opts.Slideshow == nil || opts.Surface == nil:
		return nil, errors.New("no slideshow provided for web server")
	case opts.Cache == nil:
		return nil, errors.New("no media cache provided for web server")
	}
	if opts.MacroTTL <= 0 {
		opts.MacroTTL = defaultMacroTTL
	}

	ws := &WebServer{
		router:   gin.Default(),
		db:       opts.DB,
		backend:  opts.Backend,
		liveness: opts.Liveness,
		show:     opts.Slideshow,
		surface:  opts.Surface,
		cache:    opts.Cache,
		macroTTL: opts.MacroTTL,
		now:      time.Now,
		reloads:  make(chan struct{}, 1),
	}

	// Setup routes
	ws.setupRoutes()

	return ws, nil
}

// MediaURL is where pages fetch a slideshow file from.
func MediaURL(name string) string {
	return "/slideshow/uploads/" + url.PathEscape(name)
}

func (ws *WebServer) setupRoutes() {
	ws.router.GET("/", ws.handleLanding)
	ws.router.GET("/kiosk/status", ws.handleStatus)
	ws.router.POST("/wake", ws.handleWake)
	ws.router.GET("/stats", ws.handleStats)

	ws.router.GET("/slideshow", ws.handleSlideshowPage)
	ws.router.GET("/slideshow/state", ws.handleSlideshowState)
	ws.router.POST("/slideshow/events", ws.handleMediaEvent)
	ws.router.POST("/slideshow/capabilities", ws.handleCapabilities)
	ws.router.POST("/slideshow/next", ws.handleNext)
	ws.router.GET("/slideshow/uploads/:file", ws.handleMedia)
	ws.router.POST("/slideshow/upload", ws.handleUpload)

	ws.router.GET("/settings/default-page", ws.handleGetDefaultPage)
	ws.router.PUT("/settings/default-page", ws.handleUpdateDefaultPage)
	ws.router.GET("/settings/hidden-pages", ws.handleGetHiddenPages)
	ws.router.PUT("/settings/hidden-pages", ws.handleUpdateHiddenPages)
	ws.router.GET("/settings/theme", ws.handleGetTheme)
	ws.router.PUT("/settings/theme", ws.handleUpdateTheme)
	ws.router.DELETE("/settings/theme", ws.handleResetTheme)
	ws.router.GET("/settings/hidden-sessions", ws.handleGetHiddenSessions)
	ws.router.PUT("/settings/hidden-sessions", ws.handleUpdateHiddenSessions)

	ws.router.GET("/macros", ws.handleGetMacros)
	ws.router.POST("/macros", ws.handleSaveMacro)
	ws.router.DELETE("/macros/:position", ws.handleDeleteMacro)
	ws.router.POST("/macros/swap", ws.handleSwapMacros)
	ws.router.PUT("/macros/grid", ws.handleResizeGrid)
	ws.router.POST("/macros/icon", ws.handleUploadMacroIcon)
	ws.router.POST("/macros/run", ws.handleRunMacro)

	ws.router.GET("/audio/sessions", ws.handleAudioSessions)
	ws.router.GET("/audio/volumes", ws.handleAudioVolumes)
	ws.router.POST("/audio/volume", ws.handleSetVolume)
	ws.router.GET("/audio/outputs", ws.handleAudioOutputs)
	ws.router.PUT("/audio/outputs/default", ws.handleSetAudioOutput)

	ws.router.GET("/spotify/current-song", ws.handleCurrentSong)
	ws.router.POST("/spotify/:command", ws.handleSpotify)
}

// Start serves until ctx is done, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context, addr string) error {
	go ws.runReloads(ctx)

	srv := &http.Server{
		Addr:    addr,
		Handler: ws.router,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting web server", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("web server stopped: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down web server: %w", err)
	}
	return nil
}

// HandleOffline is the liveness monitor's trip handler: every page is sent
// back to the landing page and the slideshow restarts from a fresh playlist.
func (ws *WebServer) HandleOffline() {
	seq := ws.redirectSeq.Add(1)
	slog.Warn("pc declared offline, redirecting pages", "redirect_seq", seq)
	ws.RequestReload()
}

// RequestReload asks for the slideshow playlist to be refetched. Requests
// made while a reload is pending collapse into one.
func (ws *WebServer) RequestReload() {
	select {
	case ws.reloads <- struct{}{}:
	default:
	}
}

func (ws *WebServer) runReloads(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ws.reloads:
			ws.reloadSlideshow(ctx)
		}
	}
}

func (ws *WebServer) reloadSlideshow(ctx context.Context) {
	if !ws.reloading.CompareAndSwap(false, true) {
		return
	}
	defer ws.reloading.Store(false)

	ctx, cancel := context.WithTimeout(ctx, reloadTimeout)
	defer cancel()
	if err := ws.show.Load(ctx); err != nil {
		slog.Error("failed to reload slideshow", "error", err)
		return
	}
	slog.Info("slideshow reloaded")
}

func (ws *WebServer) livenessState() liveness.State {
	if ws.liveness == nil {
		return liveness.State{LastOutcome: liveness.OutcomeOnline}
	}
	return ws.liveness.Snapshot()
}

func (ws *WebServer) handleLanding(c *gin.Context) {
	page, err := ws.db.DefaultPage()
	if err != nil {
		c.String(http.StatusInternalServerError, fmt.Sprintf("Failed to get default page: %v", err))
		return
	}

	// until a probe has failed there is nothing to show here
	state := ws.livenessState()
	if state.LastOutcome != liveness.OutcomeOffline && state.LastOutcome != liveness.OutcomeAmbiguous {
		c.Redirect(http.StatusFound, page)
		return
	}

	theme, err := ws.db.Theme()
	if err != nil {
		c.String(http.StatusInternalServerError, fmt.Sprintf("Failed to get theme: %v", err))
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := templates.Landing(templates.LandingPage{
		Theme:       theme.Vars,
		DefaultPage: page,
		Outcome:     state.LastOutcome.String(),
		Failures:    state.ConsecutiveFailures,
		LastSuccess: state.LastSuccess,
	}).Render(c.Request.Context(), c.Writer); err != nil {
		slog.Error("failed to render landing page", "error", err)
	}
}

func (ws *WebServer) handleStatus(c *gin.Context) {
	state := ws.livenessState()
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, models.LivenessStatusResponse{
		Online:              state.Online(),
		ConsecutiveFailures: state.ConsecutiveFailures,
		LastSuccess:         state.LastSuccess,
		LastOutcome:         state.LastOutcome.String(),
		RedirectSeq:         ws.redirectSeq.Load(),
	})
}

func (ws *WebServer) handleWake(c *gin.Context) {
	if err := ws.backend.Wake(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to wake pc: %v", err)})
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: "wake signal sent"})
}

// handleStats relays the hardware monitor payload for the stats page.
func (ws *WebServer) handleStats(c *gin.Context) {
	raw, err := ws.backend.RawStats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to get stats: %v", err)})
		return
	}
	if len(raw) == 0 {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: "Failed to get stats: empty response"})
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/json; charset=utf-8", raw)
}
