package models

import (
	"fmt"
	"strings"
	"time"
)

// Section is the class group a timetable belongs to.
type Section struct {
	ID        string     `db:"id" json:"id"`
	ClassID   string     `db:"class_id" json:"classId"`
	Name      string     `db:"name" json:"name"`
	HomeRoom  RoomNumber `db:"home_room" json:"homeRoom,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `db:"updated_at" json:"updatedAt"`
}

// SectionSubjectMapping is one subject assigned to a section with its weekly demand.
type SectionSubjectMapping struct {
	SubjectID     string `db:"subject_id" json:"subjectId"`
	SubjectName   string `db:"subject_name" json:"subjectName"`
	SubjectCode   string `db:"subject_code" json:"subjectCode"`
	TeacherID     string `db:"teacher_id" json:"teacherId"`
	TeacherName   string `db:"teacher_name" json:"teacherName"`
	WeeklyPeriods int    `db:"weekly_periods" json:"weeklyPeriods"`
	IsMandatory   bool   `db:"is_mandatory" json:"isMandatory"`
}

// RequeuePolicy decides whether a blocked demand unit gets a second attempt.
type RequeuePolicy string

const (
	// RequeueOnce moves a blocked unit to the back of the queue once; it keeps competing for later slots.
	RequeueOnce RequeuePolicy = "ONCE"
	// RequeueNever skips a blocked unit permanently at the slot that blocked it.
	RequeueNever RequeuePolicy = "NEVER"
)

// ParseRequeuePolicy maps config or request values, defaulting to RequeueOnce.
func ParseRequeuePolicy(raw string) (RequeuePolicy, error) {
	switch RequeuePolicy(strings.ToUpper(strings.TrimSpace(raw))) {
	case "", RequeueOnce:
		return RequeueOnce, nil
	case RequeueNever:
		return RequeueNever, nil
	default:
		return "", fmt.Errorf("unknown requeue policy %q", raw)
	}
}

// GenerationOptions shapes the weekly slot grid.
type GenerationOptions struct {
	PeriodsPerDay                int
	PeriodDuration               time.Duration
	BreakAfterPeriod             int
	BreakDuration                time.Duration
	SchoolStartTime              TimeOfDay
	OverwriteExisting            bool
	WorkingDays                  []DayOfWeek
	Rooms                        []RoomNumber
	PreferDistinctSubjectsPerDay bool
	Requeue                      RequeuePolicy
}

// SkippedSlotInfo explains why a demand unit could not be placed.
type SkippedSlotInfo struct {
	DayOfWeek    DayOfWeek `json:"dayOfWeek"`
	PeriodNumber int       `json:"periodNumber"`
	SubjectID    string    `json:"subjectId"`
	SubjectName  string    `json:"subjectName"`
	Reason       string    `json:"reason"`
}

// GenerationResult is the outcome of one generation run.
type GenerationResult struct {
	Entries        []*TimeTableEntry `json:"entries"`
	EntriesCreated int               `json:"entriesCreated"`
	EntriesSkipped int               `json:"entriesSkipped"`
	SkippedSlots   []SkippedSlotInfo `json:"skippedSlots"`
	Warnings       []string          `json:"warnings"`
}

// Summary renders the counts for user-facing messages.
func (r *GenerationResult) Summary() string {
	if r.EntriesSkipped == 0 {
		return fmt.Sprintf("created %d entries", r.EntriesCreated)
	}
	return fmt.Sprintf("created %d entries; skipped %d demand units", r.EntriesCreated, r.EntriesSkipped)
}
