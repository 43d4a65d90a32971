package service

import (
	"fmt"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ConflictDetectionStrategy turns the entries occupying a slot into conflict details.
type ConflictDetectionStrategy interface {
	DetectConflicts(req models.SlotRequest, existing models.ExistingSlotEntries) []models.ConflictDetail
}

// DefaultConflictDetectionStrategy reports section, teacher and room clashes independently.
type DefaultConflictDetectionStrategy struct{}

// DetectConflicts emits one detail per active occupying entry. Room clashes count only when a room is requested.
func (DefaultConflictDetectionStrategy) DetectConflicts(req models.SlotRequest, existing models.ExistingSlotEntries) []models.ConflictDetail {
	conflicts := make([]models.ConflictDetail, 0, 3)

	if entry := existing.Section; entry.IsActive() {
		conflicts = append(conflicts, models.ConflictDetail{
			Type:                 models.ConflictTypeSection,
			ConflictingEntryID:   entry.ID,
			Description:          fmt.Sprintf("section %s already has subject %s on %s period %d", entry.SectionID, entry.SubjectID, entry.DayOfWeek, entry.PeriodNumber),
			StartTime:            entry.StartTime,
			EndTime:              entry.EndTime,
			ConflictingSectionID: entry.SectionID,
			ConflictingTeacherID: entry.TeacherID,
			ConflictingSubjectID: entry.SubjectID,
		})
	}

	if entry := existing.Teacher; entry.IsActive() {
		conflicts = append(conflicts, models.ConflictDetail{
			Type:                 models.ConflictTypeTeacher,
			ConflictingEntryID:   entry.ID,
			Description:          fmt.Sprintf("teacher %s already teaches section %s on %s period %d", entry.TeacherID, entry.SectionID, entry.DayOfWeek, entry.PeriodNumber),
			StartTime:            entry.StartTime,
			EndTime:              entry.EndTime,
			ConflictingSectionID: entry.SectionID,
			ConflictingTeacherID: entry.TeacherID,
			ConflictingSubjectID: entry.SubjectID,
		})
	}

	if entry := existing.Room; req.RoomNumber.IsAssigned() && entry.IsActive() {
		conflicts = append(conflicts, models.ConflictDetail{
			Type:                  models.ConflictTypeRoom,
			ConflictingEntryID:    entry.ID,
			Description:           fmt.Sprintf("room %s is booked by section %s on %s period %d", entry.RoomNumber, entry.SectionID, entry.DayOfWeek, entry.PeriodNumber),
			StartTime:             entry.StartTime,
			EndTime:               entry.EndTime,
			ConflictingSectionID:  entry.SectionID,
			ConflictingSubjectID:  entry.SubjectID,
			ConflictingRoomNumber: entry.RoomNumber,
		})
	}

	return conflicts
}
