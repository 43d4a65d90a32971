package models

// ConflictType names the resource that is double-booked.
type ConflictType string

const (
	ConflictTypeSection ConflictType = "SECTION"
	ConflictTypeTeacher ConflictType = "TEACHER"
	ConflictTypeRoom    ConflictType = "ROOM"
)

// ConflictDetail describes an existing entry that occupies a requested slot.
type ConflictDetail struct {
	Type                  ConflictType `json:"type"`
	ConflictingEntryID    string       `json:"conflictingEntryId"`
	Description           string       `json:"description"`
	StartTime             TimeOfDay    `json:"startTime"`
	EndTime               TimeOfDay    `json:"endTime"`
	ConflictingSectionID  string       `json:"conflictingSectionId,omitempty"`
	ConflictingTeacherID  string       `json:"conflictingTeacherId,omitempty"`
	ConflictingSubjectID  string       `json:"conflictingSubjectId,omitempty"`
	ConflictingRoomNumber RoomNumber   `json:"conflictingRoomNumber,omitempty"`
}

// SlotRequest is a candidate (section, teacher, room) placement at a day and period.
type SlotRequest struct {
	SectionID    string     `json:"sectionId"`
	TeacherID    string     `json:"teacherId"`
	RoomNumber   RoomNumber `json:"roomNumber,omitempty"`
	DayOfWeek    DayOfWeek  `json:"dayOfWeek"`
	PeriodNumber int        `json:"periodNumber"`
}

// ExistingSlotEntries holds the entries already at the requested slot, keyed by resource.
type ExistingSlotEntries struct {
	Section *TimeTableEntry
	Teacher *TimeTableEntry
	Room    *TimeTableEntry
}

// Without drops any entry carrying the given id.
func (e ExistingSlotEntries) Without(entryID string) ExistingSlotEntries {
	if entryID == "" {
		return e
	}
	drop := func(entry *TimeTableEntry) *TimeTableEntry {
		if entry != nil && entry.ID == entryID {
			return nil
		}
		return entry
	}
	return ExistingSlotEntries{Section: drop(e.Section), Teacher: drop(e.Teacher), Room: drop(e.Room)}
}

// SlotAvailabilityResult is the verdict for a candidate slot.
type SlotAvailabilityResult struct {
	IsAvailable bool             `json:"isAvailable"`
	Conflicts   []ConflictDetail `json:"conflicts"`
}

// HasConflict reports whether a conflict of the given type was found.
func (r SlotAvailabilityResult) HasConflict(kind ConflictType) bool {
	for _, conflict := range r.Conflicts {
		if conflict.Type == kind {
			return true
		}
	}
	return false
}
