package dto

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// Day is a day of week as sent by clients: a name such as "MONDAY" or "mon", or an ISO number
// quoted or not. It is kept raw so the service can report INVALID_DAY_OF_WEEK for unknown days.
type Day string

// UnmarshalJSON accepts a JSON string or integer.
func (d *Day) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		return nil
	case len(data) > 0 && data[0] == '"':
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*d = Day(name)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("day of week must be a name or a number, got %s", data)
	}
	*d = Day(number.String())
	return nil
}

// Parse resolves the day, rejecting anything but Monday to Friday.
func (d Day) Parse() (models.DayOfWeek, error) {
	return models.ParseDayOfWeek(string(d))
}

// GenerateTimetableRequest tunes one generation run. Omitted fields fall back to configured defaults;
// an omitted workingDays means Monday–Friday while an explicit empty list means no days.
type GenerateTimetableRequest struct {
	PeriodsPerDay                *int     `json:"periodsPerDay" validate:"omitempty,min=0"`
	PeriodDurationMinutes        *int     `json:"periodDurationMinutes" validate:"omitempty,min=1"`
	BreakAfterPeriod             *int     `json:"breakAfterPeriod" validate:"omitempty,min=0"`
	BreakDurationMinutes         *int     `json:"breakDurationMinutes" validate:"omitempty,min=0"`
	SchoolStartTime              string   `json:"schoolStartTime" validate:"omitempty"`
	OverwriteExisting            bool     `json:"overwriteExisting"`
	WorkingDays                  []Day    `json:"workingDays"`
	Rooms                        []string `json:"rooms" validate:"omitempty,dive,max=32"`
	PreferDistinctSubjectsPerDay *bool    `json:"preferDistinctSubjectsPerDay"`
	RequeuePolicy                string   `json:"requeuePolicy" validate:"omitempty,oneof=ONCE NEVER once never"`
}

// GenerateTimetableResponse reports the outcome of a generation run.
type GenerateTimetableResponse struct {
	SectionID        string                   `json:"sectionId"`
	EntriesCreated   int                      `json:"entriesCreated"`
	EntriesSkipped   int                      `json:"entriesSkipped"`
	CancelledEntries int64                    `json:"cancelledEntries"`
	Entries          []*models.TimeTableEntry `json:"entries"`
	SkippedSlots     []models.SkippedSlotInfo `json:"skippedSlots"`
	Warnings         []string                 `json:"warnings"`
	Message          string                   `json:"message"`
}

// CreateTimetableEntryRequest places a single entry. An empty teacherId uses the subject's assigned teacher.
type CreateTimetableEntryRequest struct {
	SectionID    string `json:"sectionId" validate:"required"`
	SubjectID    string `json:"subjectId" validate:"required"`
	TeacherID    string `json:"teacherId"`
	DayOfWeek    Day    `json:"dayOfWeek" validate:"required"`
	PeriodNumber int    `json:"periodNumber" validate:"required"`
	StartTime    string `json:"startTime" validate:"required"`
	EndTime      string `json:"endTime" validate:"required"`
	RoomNumber   string `json:"roomNumber"`
}

// UpdateTimetableEntryRequest replaces the mutable fields of an active entry.
type UpdateTimetableEntryRequest struct {
	SubjectID  string `json:"subjectId" validate:"required"`
	TeacherID  string `json:"teacherId" validate:"required"`
	StartTime  string `json:"startTime" validate:"required"`
	EndTime    string `json:"endTime" validate:"required"`
	RoomNumber string `json:"roomNumber"`
}

// CancelTimetableEntryRequest carries an optional cancellation reason.
type CancelTimetableEntryRequest struct {
	Reason string `json:"reason" validate:"max=255"`
}

// SlotAvailabilityQuery asks whether a placement would collide with active entries.
type SlotAvailabilityQuery struct {
	SectionID      string `form:"sectionId" validate:"required"`
	TeacherID      string `form:"teacherId" validate:"required"`
	RoomNumber     string `form:"roomNumber"`
	DayOfWeek      string `form:"dayOfWeek" validate:"required"`
	PeriodNumber   int    `form:"periodNumber" validate:"required"`
	ExcludeEntryID string `form:"excludeEntryId"`
}

// SectionTimetableResponse is the active week of a section.
type SectionTimetableResponse struct {
	SectionID   string                  `json:"sectionId"`
	SectionName string                  `json:"sectionName"`
	HomeRoom    models.RoomNumber       `json:"homeRoom,omitempty"`
	Entries     []models.TimeTableEntry `json:"entries"`
}

// TeacherTimetableResponse is the active week of a teacher across sections.
type TeacherTimetableResponse struct {
	TeacherID string                  `json:"teacherId"`
	Entries   []models.TimeTableEntry `json:"entries"`
}

// ExportFormat selects the export encoding.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// ExportTimetableQuery selects the export format.
type ExportTimetableQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf xlsx"`
}

// ExportedFile is a rendered export ready to stream.
type ExportedFile struct {
	FileName    string
	ContentType string
	Content     []byte
}
