package api

import (
	"errors"
	"fmt"
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/aouyang1/pckiosk/api/models"
	"github.com/aouyang1/pckiosk/store"
)

// settingsError answers a store error, treating validation failures as bad
// requests.
func settingsError(c *gin.Context, action string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrUnknownPage),
		errors.Is(err, store.ErrPageHidden),
		errors.Is(err, store.ErrNoVisiblePage),
		errors.Is(err, store.ErrUnknownTheme):
		status = http.StatusBadRequest
	}
	c.JSON(status, models.ErrorResponse{Error: fmt.Sprintf("Failed to %s: %v", action, err)})
}

func (ws *WebServer) handleGetDefaultPage(c *gin.Context) {
	page, err := ws.db.DefaultPage()
	if err != nil {
		settingsError(c, "get default page", err)
		return
	}
	c.JSON(http.StatusOK, models.DefaultPageRequest{Page: page})
}

func (ws *WebServer) handleUpdateDefaultPage(c *gin.Context) {
	var req models.DefaultPageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if err := ws.db.SetDefaultPage(req.Page); err != nil {
		settingsError(c, "update default page", err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (ws *WebServer) handleGetHiddenPages(c *gin.Context) {
	pages, err := ws.db.HiddenPages()
	if err != nil {
		settingsError(c, "get hidden pages", err)
		return
	}
	c.JSON(http.StatusOK, models.HiddenPagesRequest{Pages: pages})
}

func (ws *WebServer) handleUpdateHiddenPages(c *gin.Context) {
	var req models.HiddenPagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if err := ws.db.SetHiddenPages(req.Pages); err != nil {
		settingsError(c, "update hidden pages", err)
		return
	}

	pages, err := ws.db.HiddenPages()
	if err != nil {
		settingsError(c, "get hidden pages", err)
		return
	}
	c.JSON(http.StatusOK, models.HiddenPagesRequest{Pages: pages})
}

func (ws *WebServer) handleGetTheme(c *gin.Context) {
	theme, err := ws.db.Theme()
	if err != nil {
		settingsError(c, "get theme", err)
		return
	}
	c.JSON(http.StatusOK, models.ThemeResponse{Name: theme.Name, Vars: theme.Vars})
}

func (ws *WebServer) handleUpdateTheme(c *gin.Context) {
	var req models.ThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	theme, err := ws.db.SetTheme(req.Name)
	if err != nil {
		settingsError(c, "update theme", err)
		return
	}
	c.JSON(http.StatusOK, models.ThemeResponse{Name: theme.Name, Vars: theme.Vars})
}

func (ws *WebServer) handleResetTheme(c *gin.Context) {
	theme, err := ws.db.ResetTheme()
	if err != nil {
		settingsError(c, "reset theme", err)
		return
	}
	c.JSON(http.StatusOK, models.ThemeResponse{Name: theme.Name, Vars: theme.Vars})
}

func (ws *WebServer) handleGetHiddenSessions(c *gin.Context) {
	ids, err := ws.db.HiddenSessions()
	if err != nil {
		settingsError(c, "get hidden sessions", err)
		return
	}
	sorted := ids.ToSlice()
	slices.Sort(sorted)
	c.JSON(http.StatusOK, models.HiddenSessionsRequest{IDs: sorted})
}

func (ws *WebServer) handleUpdateHiddenSessions(c *gin.Context) {
	var req models.HiddenSessionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: fmt.Sprintf("Invalid request body: %v", err)})
		return
	}
	if err := ws.db.SetHiddenSessions(req.IDs); err != nil {
		settingsError(c, "update hidden sessions", err)
		return
	}
	ws.handleGetHiddenSessions(c)
}
