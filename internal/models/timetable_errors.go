package models

import (
	"fmt"
	"time"
)

// InvalidDayOfWeekError is returned for days outside Monday–Friday.
type InvalidDayOfWeekError struct {
	Provided string
}

func (e *InvalidDayOfWeekError) Error() string {
	return fmt.Sprintf("day %q is not a teaching day", e.Provided)
}

// InvalidPeriodNumberError is returned for periods outside [1, Max].
type InvalidPeriodNumberError struct {
	Provided int
	Max      int
}

func (e *InvalidPeriodNumberError) Error() string {
	return fmt.Sprintf("period number %d must be between 1 and %d", e.Provided, e.Max)
}

// MinimumPeriodDurationError is returned when a period is too short.
type MinimumPeriodDurationError struct {
	Provided time.Duration
	Minimum  time.Duration
}

func (e *MinimumPeriodDurationError) Error() string {
	return fmt.Sprintf("period duration %s is shorter than minimum %s", e.Provided, e.Minimum)
}

// InvalidRoomNumberError is returned for malformed room tokens.
type InvalidRoomNumberError struct {
	Room   string
	Reason string
}

func (e *InvalidRoomNumberError) Error() string {
	return fmt.Sprintf("invalid room number %q: %s", e.Room, e.Reason)
}

// InvalidSectionError is returned when the section does not exist.
type InvalidSectionError struct {
	SectionID string
}

func (e *InvalidSectionError) Error() string {
	return fmt.Sprintf("section %s not found", e.SectionID)
}

// InvalidSubjectError is returned when a subject is missing or not mapped to the section.
type InvalidSubjectError struct {
	SectionID string
	SubjectID string
	Reason    string
}

func (e *InvalidSubjectError) Error() string {
	if e.SubjectID == "" {
		return fmt.Sprintf("section %s: %s", e.SectionID, e.Reason)
	}
	return fmt.Sprintf("subject %s in section %s: %s", e.SubjectID, e.SectionID, e.Reason)
}

// TeacherNotAssignedError is returned when a subject has no teacher.
type TeacherNotAssignedError struct {
	SectionID string
	SubjectID string
}

func (e *TeacherNotAssignedError) Error() string {
	return fmt.Sprintf("subject %s in section %s has no teacher assigned", e.SubjectID, e.SectionID)
}

// TimeTableConflictError is returned when a create or update hits an occupied slot.
type TimeTableConflictError struct {
	ConflictingEntryID string           `json:"conflictingEntryId"`
	DayOfWeek          DayOfWeek        `json:"dayOfWeek"`
	PeriodNumber       int              `json:"periodNumber"`
	Conflicts          []ConflictDetail `json:"conflicts"`
}

func (e *TimeTableConflictError) Error() string {
	return fmt.Sprintf("slot %s period %d conflicts with entry %s", e.DayOfWeek, e.PeriodNumber, e.ConflictingEntryID)
}

// TimeTableEntryCancelledError is returned when a cancelled entry is mutated.
type TimeTableEntryCancelledError struct {
	EntryID string
}

func (e *TimeTableEntryCancelledError) Error() string {
	return fmt.Sprintf("timetable entry %s is cancelled", e.EntryID)
}
