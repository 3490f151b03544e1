package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type scheduleService interface {
	List(ctx context.Context, groupID string, day *models.Weekday) ([]models.ScheduleEntry, error)
	Validate(ctx context.Context, groupID string, req service.ScheduleRequest, excludeID string) (*service.ValidationResult, error)
	Create(ctx context.Context, groupID string, req service.ScheduleRequest) (*models.ScheduleEntry, error)
	Update(ctx context.Context, groupID, id string, req service.ScheduleRequest) (*models.ScheduleEntry, error)
	Delete(ctx context.Context, groupID, id string) error
}

// ScheduleHandler manages a group's weekly schedule endpoints.
type ScheduleHandler struct {
	service scheduleService
}

// NewScheduleHandler constructs handler.
func NewScheduleHandler(svc scheduleService) *ScheduleHandler {
	return &ScheduleHandler{service: svc}
}

// List godoc
// @Summary List a group's schedule entries
// @Tags Schedules
// @Produce json
// @Param groupId path string true "Group ID"
// @Param day query string false "Weekday index (0=Sunday) or localised name"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /groups/{groupId}/schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	var day *models.Weekday
	if raw := c.Query("day"); raw != "" {
		parsed, err := models.ParseWeekday(raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid day"))
			return
		}
		day = &parsed
	}

	entries, err := h.service.List(c.Request.Context(), c.Param("groupId"), day)
	if err != nil {
		response.Error(c, err)
		return
	}
	if entries == nil {
		entries = []models.ScheduleEntry{}
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}

// Validate godoc
// @Summary Check a schedule entry without saving it
// @Tags Schedules
// @Accept json
// @Produce json
// @Param groupId path string true "Group ID"
// @Param excludeId query string false "Entry being edited"
// @Param payload body service.ScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /groups/{groupId}/schedules/validate [post]
func (h *ScheduleHandler) Validate(c *gin.Context) {
	req, ok := bindScheduleRequest(c)
	if !ok {
		return
	}
	result, err := h.service.Validate(c.Request.Context(), c.Param("groupId"), req, c.Query("excludeId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Create godoc
// @Summary Create a schedule entry
// @Tags Schedules
// @Accept json
// @Produce json
// @Param groupId path string true "Group ID"
// @Param payload body service.ScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{groupId}/schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	req, ok := bindScheduleRequest(c)
	if !ok {
		return
	}
	entry, err := h.service.Create(c.Request.Context(), c.Param("groupId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Update godoc
// @Summary Replace a schedule entry
// @Tags Schedules
// @Accept json
// @Produce json
// @Param groupId path string true "Group ID"
// @Param id path string true "Schedule ID"
// @Param payload body service.ScheduleRequest true "Schedule payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /groups/{groupId}/schedules/{id} [put]
func (h *ScheduleHandler) Update(c *gin.Context) {
	req, ok := bindScheduleRequest(c)
	if !ok {
		return
	}
	entry, err := h.service.Update(c.Request.Context(), c.Param("groupId"), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry)
}

// Delete godoc
// @Summary Delete a schedule entry
// @Tags Schedules
// @Param groupId path string true "Group ID"
// @Param id path string true "Schedule ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /groups/{groupId}/schedules/{id} [delete]
func (h *ScheduleHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("groupId"), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

func bindScheduleRequest(c *gin.Context) (service.ScheduleRequest, bool) {
	var req service.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return req, false
	}
	return req, true
}
