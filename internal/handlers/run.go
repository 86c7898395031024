package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/gustavoairestiago/cadastro-retorno/internal/services"
	"github.com/gustavoairestiago/cadastro-retorno/pkg/export"
)

// RunHandler handles reconciliation run API requests
type RunHandler struct {
	runs *services.RunService
	sync *services.SyncService
}

// NewRunHandler creates a new run handler
func NewRunHandler(runs *services.RunService, sync *services.SyncService) *RunHandler {
	return &RunHandler{runs: runs, sync: sync}
}

// RegisterRoutes registers the run routes under a project
func (h *RunHandler) RegisterRoutes(g *echo.Group) {
	projects := g.Group("/projects/:id")
	projects.POST("/refresh", h.Refresh)
	projects.POST("/sync", h.Sync)
	projects.GET("/report", h.Report)
	projects.GET("/stats", h.Stats)
	projects.GET("/history", h.History)
}

// Refresh handles POST /projects/:id/refresh. The run is synchronous: the
// response carries the full classified list, stats, and warnings.
func (h *RunHandler) Refresh(c echo.Context) error {
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	result, err := h.runs.Run(c.Request().Context(), id, "refresh")
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

// Sync handles POST /projects/:id/sync. The mode query parameter selects
// tracking submissions (default) or a CSV media attachment.
func (h *RunHandler) Sync(c echo.Context) error {
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	mode := services.SyncMode(c.QueryParam("mode"))
	report, err := h.sync.Sync(c.Request().Context(), id, mode)
	if err != nil {
		return err
	}
	return SuccessResponse(c, report)
}

// Report handles GET /projects/:id/report. It runs a fresh reconciliation
// and streams the pending households as a spreadsheet. format=xlsx (default)
// or format=csv.
func (h *RunHandler) Report(c echo.Context) error {
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	format := c.QueryParam("format")
	if format == "" {
		format = "xlsx"
	}

	result, err := h.runs.Run(c.Request().Context(), id, "report")
	if err != nil {
		return err
	}

	switch format {
	case "xlsx":
		content, err := export.XLSX(result.Pending)
		if err != nil {
			return err
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="pendencias.xlsx"`)
		return c.Blob(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", content)
	case "csv":
		content, err := export.CSV(result.Pending)
		if err != nil {
			return err
		}
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="pendencias.csv"`)
		return c.Blob(http.StatusOK, "text/csv", content)
	default:
		return BadRequest(fmt.Sprintf("unknown report format %q", format))
	}
}

// Stats handles GET /projects/:id/stats
func (h *RunHandler) Stats(c echo.Context) error {
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	stats, err := h.runs.Stats(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return SuccessResponse(c, stats)
}

// History handles GET /projects/:id/history
func (h *RunHandler) History(c echo.Context) error {
	id, err := ParseUUID(c, "id")
	if err != nil {
		return err
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			return BadRequest("limit must be a non-negative integer")
		}
	}

	entries, err := h.runs.History(c.Request().Context(), id, limit)
	if err != nil {
		return err
	}
	return SuccessResponse(c, entries)
}
