package models

import (
	"time"

	"github.com/google/uuid"
)

// EntryStatus tracks the lifecycle of a timetable entry.
type EntryStatus string

const (
	EntryStatusActive    EntryStatus = "ACTIVE"
	EntryStatusCancelled EntryStatus = "CANCELLED"
)

// TimeTableEntry is one scheduled period for a section.
type TimeTableEntry struct {
	ID           string      `db:"id" json:"id"`
	SectionID    string      `db:"section_id" json:"sectionId"`
	SubjectID    string      `db:"subject_id" json:"subjectId"`
	TeacherID    string      `db:"teacher_id" json:"teacherId"`
	DayOfWeek    DayOfWeek   `db:"day_of_week" json:"dayOfWeek"`
	PeriodNumber int         `db:"period_number" json:"periodNumber"`
	StartTime    TimeOfDay   `db:"start_time" json:"startTime"`
	EndTime      TimeOfDay   `db:"end_time" json:"endTime"`
	RoomNumber   RoomNumber  `db:"room_number" json:"roomNumber,omitempty"`
	Status       EntryStatus `db:"status" json:"status"`
	CancelReason *string     `db:"cancel_reason" json:"cancelReason,omitempty"`
	CancelledAt  *time.Time  `db:"cancelled_at" json:"cancelledAt,omitempty"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`

	events []TimeTableEvent
}

// NewEntryParams holds the raw placement of a new entry.
type NewEntryParams struct {
	ID           string
	SectionID    string
	SubjectID    string
	TeacherID    string
	DayOfWeek    DayOfWeek
	PeriodNumber int
	Period       TimePeriod
	RoomNumber   RoomNumber
}

// NewTimeTableEntry validates the placement and raises ENTRY_CREATED.
func NewTimeTableEntry(params NewEntryParams, rules SlotRules) (*TimeTableEntry, error) {
	rules = rules.Normalize()
	if !params.DayOfWeek.IsTeachingDay() {
		return nil, &InvalidDayOfWeekError{Provided: params.DayOfWeek.String()}
	}
	if err := ValidatePeriodNumber(params.PeriodNumber, rules.MaxPeriodsPerDay); err != nil {
		return nil, err
	}
	period, err := NewTimePeriod(params.Period.Start, params.Period.End, rules.MinimumPeriodDuration)
	if err != nil {
		return nil, err
	}
	id := params.ID
	if id == "" {
		id = uuid.NewString()
	}
	entry := &TimeTableEntry{
		ID:           id,
		SectionID:    params.SectionID,
		SubjectID:    params.SubjectID,
		TeacherID:    params.TeacherID,
		DayOfWeek:    params.DayOfWeek,
		PeriodNumber: params.PeriodNumber,
		StartTime:    period.Start,
		EndTime:      period.End,
		RoomNumber:   params.RoomNumber,
		Status:       EntryStatusActive,
	}
	entry.raise(EventEntryCreated, nil)
	return entry, nil
}

// EntryChange describes an in-place update of an active entry.
type EntryChange struct {
	SubjectID  string
	TeacherID  string
	Period     TimePeriod
	RoomNumber RoomNumber
}

// IsActive reports whether the entry still occupies its slot.
func (e *TimeTableEntry) IsActive() bool {
	return e != nil && e.Status == EntryStatusActive
}

// Period returns the entry's time window.
func (e *TimeTableEntry) Period() TimePeriod {
	return TimePeriod{Start: e.StartTime, End: e.EndTime}
}

// Update mutates subject, teacher, window and room. Conflicts must be checked by the caller.
func (e *TimeTableEntry) Update(change EntryChange, rules SlotRules) error {
	if !e.IsActive() {
		return &TimeTableEntryCancelledError{EntryID: e.ID}
	}
	rules = rules.Normalize()
	period, err := NewTimePeriod(change.Period.Start, change.Period.End, rules.MinimumPeriodDuration)
	if err != nil {
		return err
	}
	previousTeacher := e.TeacherID
	diff := map[string]string{}
	if e.SubjectID != change.SubjectID {
		diff["subjectId"] = e.SubjectID + "->" + change.SubjectID
	}
	if e.TeacherID != change.TeacherID {
		diff["teacherId"] = e.TeacherID + "->" + change.TeacherID
	}
	if e.Period() != period {
		diff["period"] = e.Period().String() + "->" + period.String()
	}
	if e.RoomNumber != change.RoomNumber {
		diff["roomNumber"] = e.RoomNumber.String() + "->" + change.RoomNumber.String()
	}
	e.SubjectID = change.SubjectID
	e.TeacherID = change.TeacherID
	e.StartTime = period.Start
	e.EndTime = period.End
	e.RoomNumber = change.RoomNumber
	e.raise(EventEntryUpdated, diff, previousTeacher)
	return nil
}

// Cancel soft-deletes the entry. Cancelling twice is an error.
func (e *TimeTableEntry) Cancel(reason string, at time.Time) error {
	if !e.IsActive() {
		return &TimeTableEntryCancelledError{EntryID: e.ID}
	}
	e.Status = EntryStatusCancelled
	e.CancelledAt = &at
	if reason != "" {
		e.CancelReason = &reason
	}
	var meta map[string]string
	if reason != "" {
		meta = map[string]string{"reason": reason}
	}
	e.raise(EventEntryCancelled, meta)
	return nil
}

// PullEvents drains the events raised since the last call.
func (e *TimeTableEntry) PullEvents() []TimeTableEvent {
	events := e.events
	e.events = nil
	return events
}

func (e *TimeTableEntry) raise(kind TimeTableEventType, changes map[string]string, otherTeachers ...string) {
	e.events = append(e.events, TimeTableEvent{
		ID:                 uuid.NewString(),
		Type:               kind,
		EntryID:            e.ID,
		SectionID:          e.SectionID,
		TeacherID:          e.TeacherID,
		DayOfWeek:          e.DayOfWeek,
		PeriodNumber:       e.PeriodNumber,
		Changes:            changes,
		AffectedTeacherIDs: uniqueIDs(append([]string{e.TeacherID}, otherTeachers...)),
		OccurredAt:         time.Now().UTC(),
	})
}

// NewGeneratedEvent summarises a generation run for a section.
func NewGeneratedEvent(sectionID string, teacherIDs []string, summary map[string]string) TimeTableEvent {
	return TimeTableEvent{
		ID:                 uuid.NewString(),
		Type:               EventTimetableGenerated,
		SectionID:          sectionID,
		Changes:            summary,
		AffectedTeacherIDs: uniqueIDs(teacherIDs),
		OccurredAt:         time.Now().UTC(),
	}
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// TimeTableEventType tags domain events.
type TimeTableEventType string

const (
	EventEntryCreated       TimeTableEventType = "TIMETABLE_ENTRY_CREATED"
	EventEntryUpdated       TimeTableEventType = "TIMETABLE_ENTRY_UPDATED"
	EventEntryCancelled     TimeTableEventType = "TIMETABLE_ENTRY_CANCELLED"
	EventTimetableGenerated TimeTableEventType = "TIMETABLE_GENERATED"
)

// TimeTableEvent is a domain event drained by the caller after a successful save.
type TimeTableEvent struct {
	ID           string             `json:"id"`
	Type         TimeTableEventType `json:"type"`
	EntryID      string             `json:"entryId,omitempty"`
	SectionID    string             `json:"sectionId"`
	TeacherID    string             `json:"teacherId,omitempty"`
	DayOfWeek    DayOfWeek          `json:"dayOfWeek,omitempty"`
	PeriodNumber int                `json:"periodNumber,omitempty"`
	Changes      map[string]string  `json:"changes,omitempty"`
	OccurredAt   time.Time          `json:"occurredAt"`

	// AffectedTeacherIDs lists every teacher whose week changed, including a replaced teacher.
	AffectedTeacherIDs []string `json:"affectedTeacherIds,omitempty"`
}
