package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableService interface {
	GenerateTimetable(ctx context.Context, sectionID string, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	CreateEntry(ctx context.Context, req dto.CreateTimetableEntryRequest) (*models.TimeTableEntry, error)
	UpdateEntry(ctx context.Context, id string, req dto.UpdateTimetableEntryRequest) (*models.TimeTableEntry, error)
	CancelEntry(ctx context.Context, id string, req dto.CancelTimetableEntryRequest) (*models.TimeTableEntry, error)
	CheckSlotAvailability(ctx context.Context, query dto.SlotAvailabilityQuery) (*models.SlotAvailabilityResult, error)
	SectionTimetable(ctx context.Context, sectionID string) (*dto.SectionTimetableResponse, error)
	TeacherTimetable(ctx context.Context, teacherID string) (*dto.TeacherTimetableResponse, error)
}

type timetableExporter interface {
	Export(ctx context.Context, sectionID string, format dto.ExportFormat) (*dto.ExportedFile, error)
}

// TimetableHandler exposes timetable generation, entry editing and read endpoints.
type TimetableHandler struct {
	service  timetableService
	exporter timetableExporter
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc timetableService, exporter timetableExporter) *TimetableHandler {
	return &TimetableHandler{service: svc, exporter: exporter}
}

// Generate godoc
// @Summary Generate a weekly timetable for a section
// @Description Places every mapped subject's weekly periods into free slots. Existing active entries are replaced only when overwriteExisting is true.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Section ID"
// @Param payload body dto.GenerateTimetableRequest false "Generation options"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /sections/{id}/timetable/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	var req dto.GenerateTimetableRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
			return
		}
	}
	result, err := h.service.GenerateTimetable(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if result.EntriesCreated > 0 {
		status = http.StatusCreated
	}
	response.Message(c, status, result, result.Message)
}

// CreateEntry godoc
// @Summary Place a single timetable entry
// @Tags Timetable
// @Accept json
// @Produce json
// @Param payload body dto.CreateTimetableEntryRequest true "Entry payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/entries [post]
func (h *TimetableHandler) CreateEntry(c *gin.Context) {
	var req dto.CreateTimetableEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return
	}
	entry, err := h.service.CreateEntry(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// UpdateEntry godoc
// @Summary Change subject, teacher, window or room of an active entry
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body dto.UpdateTimetableEntryRequest true "Entry changes"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetable/entries/{id} [put]
func (h *TimetableHandler) UpdateEntry(c *gin.Context) {
	var req dto.UpdateTimetableEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid entry payload"))
		return
	}
	entry, err := h.service.UpdateEntry(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry)
}

// CancelEntry godoc
// @Summary Cancel an active entry and free its slot
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Entry ID"
// @Param payload body dto.CancelTimetableEntryRequest false "Cancellation reason"
// @Success 200 {object} response.Envelope
// @Router /timetable/entries/{id}/cancel [post]
func (h *TimetableHandler) CancelEntry(c *gin.Context) {
	var req dto.CancelTimetableEntryRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid cancel payload"))
			return
		}
	}
	if req.Reason == "" {
		if claims := middleware.CurrentClaims(c); claims != nil {
			req.Reason = "cancelled by " + claims.UserID
		}
	}
	entry, err := h.service.CancelEntry(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry)
}

// Availability godoc
// @Summary Check whether a slot is free for a section, teacher and room
// @Tags Timetable
// @Produce json
// @Param sectionId query string true "Section ID"
// @Param teacherId query string true "Teacher ID"
// @Param roomNumber query string false "Room number"
// @Param dayOfWeek query string true "Day, e.g. MONDAY or 1"
// @Param periodNumber query int true "Period number"
// @Param excludeEntryId query string false "Entry to ignore, typically the one being edited"
// @Success 200 {object} response.Envelope
// @Router /timetable/availability [get]
func (h *TimetableHandler) Availability(c *gin.Context) {
	var query dto.SlotAvailabilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid availability query"))
		return
	}
	result, err := h.service.CheckSlotAvailability(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// SectionTimetable godoc
// @Summary Active weekly timetable of a section
// @Tags Timetable
// @Produce json
// @Param id path string true "Section ID"
// @Success 200 {object} response.Envelope
// @Router /sections/{id}/timetable [get]
func (h *TimetableHandler) SectionTimetable(c *gin.Context) {
	result, err := h.service.SectionTimetable(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{"entries": len(result.Entries)})
}

// TeacherTimetable godoc
// @Summary Active weekly timetable of a teacher across sections
// @Tags Timetable
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/timetable [get]
func (h *TimetableHandler) TeacherTimetable(c *gin.Context) {
	result, err := h.service.TeacherTimetable(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, map[string]interface{}{"entries": len(result.Entries)})
}

// Export godoc
// @Summary Download a section timetable as CSV, PDF or XLSX
// @Tags Timetable
// @Produce octet-stream
// @Param id path string true "Section ID"
// @Param format query string false "csv, pdf or xlsx" default(csv)
// @Success 200 {file} file
// @Router /sections/{id}/timetable/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	var query dto.ExportTimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), c.Param("id"), dto.ExportFormat(query.Format))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.FileName))
	c.Data(http.StatusOK, file.ContentType, file.Content)
}
