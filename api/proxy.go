package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/gin-gonic/gin"

	"github.com/aouyang1/pckiosk/api/models"
	"github.com/aouyang1/pckiosk/store"
	"github.com/aouyang1/pckiosk/util"
)

var spotifyCommands = mapset.NewSet("play", "pause", "next", "prev")

const (
	macroOpenApp       = "open_app"
	macroSwitchAccount = "switch_account"
)

var errUnknownMacro = errors.New("unknown macro command")

// parseMacroCommand splits "open_app:<path>" or "switch_account:<id>".
func parseMacroCommand(command string) (string, string, error) {
	kind, arg, ok := strings.Cut(command, ":")
	if !ok || arg == "" {
		return "", "", fmt.Errorf("%w: %q", errUnknownMacro, command)
	}
	switch kind {
	case macroOpenApp, macroSwitchAccount:
		return kind, arg, nil
	default:
		return "", "", fmt.Errorf("%w: %q", errUnknownMacro, command)
	}
}

func (ws *WebServer) handleGetMacros(c *gin.Context) {
	now := ws.now()
	body, err := ws.db.GetMacroCache(now)
	if err == nil {
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		slog.Warn("unable to read macro cache", "error", err)
	}

	cfg, err := ws.backend.Macros(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to get macros: %v", err)})
		return
	}
	body, err = json.Marshal(cfg)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: fmt.Sprintf("Failed to encode macros: %v", err)})
		return
	}
	if err := ws.db.UpsertMacroCache(body, now.Add(ws.macroTTL)); err != nil {
		slog.Warn("unable to cache macros", "error", err)
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", body)
}

// invalidateMacros drops the cached grid after a change on the macro server.
func (ws *WebServer) invalidateMacros() {
	if err := ws.db.ClearMacroCache(); err != nil {
		slog.Warn("unable to clear macro cache", "error", err)
	}
}

func (ws *WebServer) handleSaveMacro(c *gin.Context) {
	var req models.Macro
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if strings.TrimSpace(req.Label) == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "label is required"})
		return
	}
	if req.Position < 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "position must not be negative"})
		return
	}
	if _, _, err := parseMacroCommand(req.Command); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	if err := ws.backend.SaveMacro(c.Request.Context(), req); err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to save macro: %v", err)})
		return
	}
	ws.invalidateMacros()
	c.JSON(http.StatusOK, req)
}

func (ws *WebServer) handleDeleteMacro(c *gin.Context) {
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil || position < 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid position: %s", c.Param("position"))})
		return
	}
	if err := ws.backend.DeleteMacro(c.Request.Context(), position); err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to delete macro: %v", err)})
		return
	}
	ws.invalidateMacros()
	c.JSON(http.StatusOK, models.DeleteMacroRequest{Position: position})
}

func (ws *WebServer) handleSwapMacros(c *gin.Context) {
	var req models.SwapMacrosRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if req.From < 0 || req.To < 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "positions must not be negative"})
		return
	}
	if req.From == req.To {
		c.JSON(http.StatusOK, req)
		return
	}
	if err := ws.backend.SwapMacros(c.Request.Context(), req.From, req.To); err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to swap macros: %v", err)})
		return
	}
	ws.invalidateMacros()
	c.JSON(http.StatusOK, req)
}

// handleResizeGrid refuses to shrink the grid past a configured macro.
func (ws *WebServer) handleResizeGrid(c *gin.Context) {
	var req models.MacroGrid
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if req.Columns < 1 || req.Rows < 1 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "columns and rows must be at least 1"})
		return
	}

	ctx := c.Request.Context()
	cfg, err := ws.backend.Macros(ctx)
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to get macros: %v", err)})
		return
	}
	slots := req.Columns * req.Rows
	for _, m := range cfg.Macros {
		if m.Position >= slots {
			c.JSON(http.StatusConflict, models.ErrorResponse{
				Error: fmt.Sprintf("Macro %q at position %d does not fit a %dx%d grid", m.Label, m.Position, req.Columns, req.Rows),
			})
			return
		}
	}

	if err := ws.backend.ResizeGrid(ctx, req); err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to resize grid: %v", err)})
		return
	}
	ws.invalidateMacros()
	c.JSON(http.StatusOK, req)
}

func (ws *WebServer) handleUploadMacroIcon(c *gin.Context) {
	file, err := c.FormFile("icon")
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "No icon provided"})
		return
	}
	if !util.ImageExt.Contains(util.Ext(file.Filename)) {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Unsupported icon type: %s", file.Filename)})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Failed to read upload: %v", err)})
		return
	}
	defer f.Close()

	path, err := ws.backend.UploadMacroIcon(c.Request.Context(), file.Filename, f)
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to upload icon: %v", err)})
		return
	}
	c.JSON(http.StatusOK, models.MacroIconResponse{IconPath: path})
}

func (ws *WebServer) handleRunMacro(c *gin.Context) {
	var req models.RunMacroRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	kind, arg, err := parseMacroCommand(req.Command)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	switch kind {
	case macroOpenApp:
		err = ws.backend.OpenApp(ctx, arg)
	case macroSwitchAccount:
		err = ws.backend.SwitchAccount(ctx, arg)
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to run macro: %v", err)})
		return
	}
	c.JSON(http.StatusOK, models.MessageResponse{Message: fmt.Sprintf("%s sent", kind)})
}

func (ws *WebServer) handleAudioSessions(c *gin.Context) {
	sessions, err := ws.backend.AudioSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to get audio sessions: %v", err)})
		return
	}
	hidden, err := ws.db.HiddenSessions()
	if err != nil {
		settingsError(c, "get hidden sessions", err)
		return
	}

	visible := make([]models.AudioSession, 0, len(sessions))
	for _, s := range sessions {
		if hidden.Contains(s.Name) {
			continue
		}
		visible = append(visible, s)
	}
	c.JSON(http.StatusOK, visible)
}

// handleAudioVolumes is the lightweight poll behind the volume sliders.
func (ws *WebServer) handleAudioVolumes(c *gin.Context) {
	volumes, err := ws.backend.AudioVolumes(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to get audio volumes: %v", err)})
		return
	}
	hidden, err := ws.db.HiddenSessions()
	if err != nil {
		settingsError(c, "get hidden sessions", err)
		return
	}

	visible := make([]models.AudioVolume, 0, len(volumes))
	for _, v := range volumes {
		if hidden.Contains(v.Name) {
			continue
		}
		visible = append(visible, v)
	}
	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, visible)
}

func (ws *WebServer) handleAudioOutputs(c *gin.Context) {
	devices, err := ws.backend.AudioOutputDevices(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to get output devices: %v", err)})
		return
	}
	if devices == nil {
		devices = []models.AudioOutputDevice{}
	}
	c.JSON(http.StatusOK, devices)
}

func (ws *WebServer) handleSetAudioOutput(c *gin.Context) {
	var req models.SetOutputDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if req.DeviceID == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "device_id is required"})
		return
	}
	if err := ws.backend.SetAudioOutputDevice(c.Request.Context(), req.DeviceID); err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to set output device: %v", err)})
		return
	}
	c.JSON(http.StatusOK, req)
}

func (ws *WebServer) handleSetVolume(c *gin.Context) {
	var req models.SetVolumeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if req.AppName == "" {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "app_name is required"})
		return
	}
	if req.Volume < 0 || req.Volume > 100 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "volume must be between 0 and 100"})
		return
	}
	if err := ws.backend.SetAppVolume(c.Request.Context(), req.AppName, req.Volume); err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to set volume: %v", err)})
		return
	}
	c.JSON(http.StatusOK, req)
}

func (ws *WebServer) handleSpotify(c *gin.Context) {
	command := c.Param("command")
	if !spotifyCommands.Contains(command) {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: fmt.Sprintf("Unknown spotify command: %s", command)})
		return
	}
	resp, err := ws.backend.SpotifyCommand(c.Request.Context(), command)
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to send %s to spotify: %v", command, err)})
		return
	}
	if len(resp) == 0 {
		c.JSON(http.StatusOK, models.MessageResponse{Message: command + " sent"})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", resp)
}

func (ws *WebServer) handleCurrentSong(c *gin.Context) {
	song, err := ws.backend.CurrentSong(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to get current song: %v", err)})
		return
	}
	c.Header("Cache-Control", "no-store")
	if len(song) == 0 {
		c.Status(http.StatusNoContent)
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", song)
}
