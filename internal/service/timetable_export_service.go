package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

type sectionTimetableReader interface {
	SectionTimetable(ctx context.Context, sectionID string) (*dto.SectionTimetableResponse, error)
}

type subjectLister interface {
	ListSubjects(ctx context.Context, sectionID string) ([]models.SectionSubjectMapping, error)
}

type gridRenderer interface {
	Render(grid export.Grid) ([]byte, error)
}

// TimetableExportService renders a section's week as a period × day grid.
type TimetableExportService struct {
	timetable sectionTimetableReader
	subjects  subjectLister
	renderers map[dto.ExportFormat]gridRenderer
	logger    *zap.Logger
}

// NewTimetableExportService wires the CSV, PDF and XLSX renderers.
func NewTimetableExportService(timetable sectionTimetableReader, subjects subjectLister, logger *zap.Logger) *TimetableExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableExportService{
		timetable: timetable,
		subjects:  subjects,
		renderers: map[dto.ExportFormat]gridRenderer{
			dto.ExportFormatCSV:  export.NewCSVExporter(),
			dto.ExportFormatPDF:  export.NewPDFExporter(),
			dto.ExportFormatXLSX: export.NewXLSXExporter(),
		},
		logger: logger,
	}
}

var exportContentTypes = map[dto.ExportFormat]string{
	dto.ExportFormatCSV:  "text/csv",
	dto.ExportFormatPDF:  "application/pdf",
	dto.ExportFormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
}

// Export renders the section timetable in the requested format. CSV is the default.
func (s *TimetableExportService) Export(ctx context.Context, sectionID string, format dto.ExportFormat) (*dto.ExportedFile, error) {
	if format == "" {
		format = dto.ExportFormatCSV
	}
	format = dto.ExportFormat(strings.ToLower(string(format)))
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	timetable, err := s.timetable.SectionTimetable(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	subjects, err := s.subjects.ListSubjects(ctx, timetable.SectionID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section subjects")
	}

	content, err := renderer.Render(BuildTimetableGrid(timetable, subjects))
	if err != nil {
		s.logger.Error("timetable export failed", zap.String("section_id", sectionID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable export")
	}
	return &dto.ExportedFile{
		FileName:    fmt.Sprintf("timetable-%s.%s", timetable.SectionID, format),
		ContentType: exportContentTypes[format],
		Content:     content,
	}, nil
}

// BuildTimetableGrid lays entries out with one row per period and one column per teaching day.
func BuildTimetableGrid(timetable *dto.SectionTimetableResponse, subjects []models.SectionSubjectMapping) export.Grid {
	names := make(map[string]models.SectionSubjectMapping, len(subjects))
	for _, subject := range subjects {
		if _, ok := names[subject.SubjectID]; !ok {
			names[subject.SubjectID] = subject
		}
	}

	days := models.TeachingDays()
	headers := []string{"Period"}
	column := make(map[models.DayOfWeek]int, len(days))
	for i, day := range days {
		headers = append(headers, day.String())
		column[day] = i + 1
	}

	maxPeriod := 0
	windows := map[int]models.TimePeriod{}
	cells := map[[2]int]string{}
	for _, entry := range timetable.Entries {
		if !entry.IsActive() {
			continue
		}
		col, ok := column[entry.DayOfWeek]
		if !ok {
			continue
		}
		if entry.PeriodNumber > maxPeriod {
			maxPeriod = entry.PeriodNumber
		}
		if _, ok := windows[entry.PeriodNumber]; !ok {
			windows[entry.PeriodNumber] = entry.Period()
		}
		cells[[2]int{entry.PeriodNumber, col}] = describeEntry(entry, names)
	}

	rows := make([][]string, 0, maxPeriod)
	for period := 1; period <= maxPeriod; period++ {
		row := make([]string, len(headers))
		row[0] = fmt.Sprintf("%d", period)
		if window, ok := windows[period]; ok {
			row[0] = fmt.Sprintf("%d (%s)", period, window)
		}
		for col := 1; col < len(headers); col++ {
			row[col] = cells[[2]int{period, col}]
		}
		rows = append(rows, row)
	}

	title := timetable.SectionName
	if title == "" {
		title = timetable.SectionID
	}
	return export.Grid{Title: "Timetable " + title, Headers: headers, Rows: rows}
}

func describeEntry(entry models.TimeTableEntry, names map[string]models.SectionSubjectMapping) string {
	subject := entry.SubjectID
	teacher := entry.TeacherID
	if mapping, ok := names[entry.SubjectID]; ok {
		if mapping.SubjectName != "" {
			subject = mapping.SubjectName
		}
		if mapping.TeacherID == entry.TeacherID && mapping.TeacherName != "" {
			teacher = mapping.TeacherName
		}
	}
	parts := []string{subject, teacher}
	if entry.RoomNumber.IsAssigned() {
		parts = append(parts, "Room "+entry.RoomNumber.String())
	}
	return strings.Join(parts, "\n")
}
