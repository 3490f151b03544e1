package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type gridService interface {
	Week(ctx context.Context, groupID string, opts service.GridOptions) (*models.WeeklyGrid, bool, error)
	Layout(req service.LayoutRequest) (models.LayoutResult, error)
}

type exportService interface {
	Export(ctx context.Context, groupID string, format service.ExportFormat, locale string) (*service.ExportFile, error)
}

// GridHandler serves the calendar geometry endpoints.
type GridHandler struct {
	grids   gridService
	exports exportService
}

// NewGridHandler constructs handler.
func NewGridHandler(grids gridService, exports exportService) *GridHandler {
	return &GridHandler{grids: grids, exports: exports}
}

// Week godoc
// @Summary Weekly grid with block geometry
// @Tags Grid
// @Produce json
// @Param groupId path string true "Group ID"
// @Param minContentHeight query number false "Minimum pixel height needed by block content"
// @Param lang query string false "Locale for weekday labels (en, id, es)"
// @Success 200 {object} response.Envelope
// @Router /groups/{groupId}/schedules/grid [get]
func (h *GridHandler) Week(c *gin.Context) {
	opts := service.GridOptions{Locale: c.Query("lang")}
	if raw := c.Query("minContentHeight"); raw != "" {
		value, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "minContentHeight must be a number"))
			return
		}
		opts.ContentMinHeightPx = &value
	}

	grid, hit, err := h.grids.Week(c.Request.Context(), c.Param("groupId"), opts)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	middleware.SetDegradedLayouts(c, grid.DegradedCount)
	response.JSON(c, http.StatusOK, grid, middleware.ExtractMeta(c))
}

// Layout godoc
// @Summary Geometry of a single block
// @Tags Grid
// @Accept json
// @Produce json
// @Param payload body service.LayoutRequest true "Block times and grid"
// @Success 200 {object} response.Envelope
// @Router /schedules/layout [post]
func (h *GridHandler) Layout(c *gin.Context) {
	var req service.LayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	result, err := h.grids.Layout(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Export godoc
// @Summary Printable weekly timetable
// @Tags Grid
// @Produce application/pdf
// @Produce text/csv
// @Param groupId path string true "Group ID"
// @Param format query string false "pdf or csv" default(pdf)
// @Param lang query string false "Locale for weekday labels"
// @Success 200 {file} file
// @Router /groups/{groupId}/schedules/export [get]
func (h *GridHandler) Export(c *gin.Context) {
	file, err := h.exports.Export(c.Request.Context(), c.Param("groupId"), service.ExportFormat(c.DefaultQuery("format", "pdf")), c.Query("lang"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// Weekdays godoc
// @Summary Localised weekday table
// @Tags Grid
// @Produce json
// @Param lang query string false "Locale (en, id, es)"
// @Success 200 {object} response.Envelope
// @Router /weekdays [get]
func (h *GridHandler) Weekdays(c *gin.Context) {
	response.JSON(c, http.StatusOK, models.WeekdayLabels(c.Query("lang")), map[string]interface{}{
		"locales": models.SupportedLocales(),
	})
}
