package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/aouyang1/pckiosk/api/client"
	"github.com/aouyang1/pckiosk/api/models"
	"github.com/aouyang1/pckiosk/api/web/templates"
	"github.com/aouyang1/pckiosk/slideshow"
	"github.com/aouyang1/pckiosk/util"
)

func (ws *WebServer) handleSlideshowPage(c *gin.Context) {
	theme, err := ws.db.Theme()
	if err != nil {
		c.String(http.StatusInternalServerError, fmt.Sprintf("Failed to get theme: %v", err))
		return
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(http.StatusOK)
	if err := templates.Slideshow(templates.SlideshowPage{Theme: theme.Vars}).Render(c.Request.Context(), c.Writer); err != nil {
		slog.Error("failed to render slideshow page", "error", err)
	}
}

func (ws *WebServer) handleSlideshowState(c *gin.Context) {
	snap := ws.show.Snapshot()
	surface := ws.surface.Buffers()

	buffers := make([]models.BufferState, len(surface))
	for id, b := range surface {
		state := models.BufferState{
			ID:       id,
			Position: b.Position.String(),
			Animate:  b.Animate,
			Playing:  b.Playing,
			Active:   snap.State != slideshow.StateIdle && id == snap.Active,
		}
		if b.Loaded {
			state.Src = b.Src
			state.Kind = b.Media.Kind.String()
		}
		buffers[id] = state
	}

	c.Header("Cache-Control", "no-store")
	c.JSON(http.StatusOK, models.SlideshowStateResponse{
		State:          snap.State.String(),
		Index:          snap.Index,
		Length:         snap.Length,
		FrameCallback:  ws.surface.Capabilities().FrameCallback,
		Buffers:        buffers,
		PreloadedMedia: snap.Preloaded,
	})
}

func (ws *WebServer) handleMediaEvent(c *gin.Context) {
	var req models.MediaEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if req.Buffer != 0 && req.Buffer != 1 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "buffer must be 0 or 1"})
		return
	}
	eventType, err := slideshow.ParseEventType(req.Event)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	}

	ws.show.Post(slideshow.MediaEvent(eventType, req.Buffer, req.Media))
	c.Status(http.StatusNoContent)
}

func (ws *WebServer) handleCapabilities(c *gin.Context) {
	var req models.CapabilitiesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	ws.surface.SetCapabilities(slideshow.Capabilities{
		FrameCallback: req.FrameCallback,
		PlayingEvent:  req.PlayingEvent,
	})
	c.Status(http.StatusNoContent)
}

func (ws *WebServer) handleNext(c *gin.Context) {
	ws.show.Skip()
	c.JSON(http.StatusOK, models.MessageResponse{Message: "skipping to next item"})
}

func (ws *WebServer) handleMedia(c *gin.Context) {
	name := c.Param("file")
	path, err := ws.cache.Ensure(c.Request.Context(), name)
	switch {
	case errors.Is(err, slideshow.ErrInvalidName):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error()})
		return
	case client.IsStatus(err, http.StatusNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: fmt.Sprintf("Media file not found: %s", name)})
		return
	case err != nil:
		c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to fetch media: %v", err)})
		return
	}

	c.File(path)
}

func (ws *WebServer) handleUpload(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "No file provided"})
		return
	}
	files := form.File["file"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "No file provided"})
		return
	}

	// Validate every extension before forwarding anything
	for _, file := range files {
		ext := filepath.Ext(file.Filename)
		if !util.SupportedExt.Contains(util.Ext(file.Filename)) {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: fmt.Sprintf("Unsupported file extension: %s", ext),
			})
			return
		}
	}

	var uploaded []string
	for _, file := range files {
		f, err := file.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Failed to read upload: %v", err)})
			return
		}
		_, err = ws.backend.UploadMedia(c.Request.Context(), file.Filename, f)
		f.Close()
		if err != nil {
			if len(uploaded) > 0 {
				ws.RequestReload()
			}
			c.JSON(http.StatusBadGateway, models.ErrorResponse{Error: fmt.Sprintf("Failed to upload %s: %v", file.Filename, err)})
			return
		}
		uploaded = append(uploaded, file.Filename)
	}

	c.JSON(http.StatusOK, models.UploadResponse{
		Message:       "Files uploaded successfully!",
		UploadedFiles: uploaded,
	})

	// trigger slideshow restart
	ws.RequestReload()
}
