package service

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func newTestGenerator() *TimeTableGenerationService {
	svc := NewTimeTableGenerationService(
		NewSlotAvailabilityService(nil, nil),
		models.SlotRules{MaxPeriodsPerDay: 10, MinimumPeriodDuration: 30 * time.Minute},
		nil,
	)
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("gen-%03d", seq)
	}
	return svc
}

func weekOptions() models.GenerationOptions {
	return models.GenerationOptions{
		PeriodsPerDay:                6,
		PeriodDuration:               40 * time.Minute,
		SchoolStartTime:              models.TimeOfDay(7 * 60),
		PreferDistinctSubjectsPerDay: true,
		Requeue:                      models.RequeueOnce,
	}
}

func mathAndEnglish() []models.SectionSubjectMapping {
	return []models.SectionSubjectMapping{
		{SubjectID: "math", SubjectName: "Mathematics", SubjectCode: "MATH", TeacherID: "t1", WeeklyPeriods: 4, IsMandatory: true},
		{SubjectID: "english", SubjectName: "English", SubjectCode: "ENG", TeacherID: "t2", WeeklyPeriods: 3, IsMandatory: true},
	}
}

func busyEntry(id, section, teacher string, day models.DayOfWeek, period int, room models.RoomNumber) models.TimeTableEntry {
	return models.TimeTableEntry{
		ID:           id,
		SectionID:    section,
		SubjectID:    "other",
		TeacherID:    teacher,
		DayOfWeek:    day,
		PeriodNumber: period,
		StartTime:    models.TimeOfDay(7 * 60),
		EndTime:      models.TimeOfDay(7*60 + 40),
		RoomNumber:   room,
		Status:       models.EntryStatusActive,
	}
}

type slotKey struct {
	day    models.DayOfWeek
	period int
}

func assertNoDoubleBooking(t *testing.T, entries []*models.TimeTableEntry, existing []models.TimeTableEntry) {
	t.Helper()
	teachers := map[string]map[slotKey]bool{}
	rooms := map[models.RoomNumber]map[slotKey]bool{}
	sections := map[string]map[slotKey]bool{}
	claim := func(index map[string]map[slotKey]bool, owner string, key slotKey) {
		if index[owner] == nil {
			index[owner] = map[slotKey]bool{}
		}
		assert.False(t, index[owner][key], "%s double booked at %v", owner, key)
		index[owner][key] = true
	}
	all := append([]models.TimeTableEntry(nil), existing...)
	for _, entry := range entries {
		all = append(all, *entry)
	}
	for _, entry := range all {
		key := slotKey{entry.DayOfWeek, entry.PeriodNumber}
		claim(teachers, entry.TeacherID, key)
		claim(sections, entry.SectionID, key)
		if entry.RoomNumber.IsAssigned() {
			if rooms[entry.RoomNumber] == nil {
				rooms[entry.RoomNumber] = map[slotKey]bool{}
			}
			assert.False(t, rooms[entry.RoomNumber][key], "room %s double booked at %v", entry.RoomNumber, key)
			rooms[entry.RoomNumber][key] = true
		}
	}
}

func TestBuildWeekSlots(t *testing.T) {
	gen := newTestGenerator()
	opts := weekOptions()
	opts.BreakAfterPeriod = 4
	opts.BreakDuration = 20 * time.Minute

	slots, err := gen.BuildWeekSlots(opts)
	require.NoError(t, err)
	require.Len(t, slots, 30)

	assert.Equal(t, models.Monday, slots[0].DayOfWeek)
	assert.Equal(t, 1, slots[0].PeriodNumber)
	assert.Equal(t, models.TimeOfDay(7*60), slots[0].Window.Start)
	assert.Equal(t, models.TimeOfDay(9*60+40), slots[3].Window.End)
	assert.Equal(t, models.TimeOfDay(10*60), slots[4].Window.Start)
	assert.Equal(t, models.TimeOfDay(11*60+20), slots[5].Window.End)
	assert.Equal(t, models.Tuesday, slots[6].DayOfWeek)
	assert.Equal(t, 1, slots[6].PeriodNumber)
	assert.Equal(t, models.Friday, slots[29].DayOfWeek)
}

func TestBuildWeekSlotsValidation(t *testing.T) {
	gen := newTestGenerator()

	t.Run("period shorter than minimum", func(t *testing.T) {
		opts := weekOptions()
		opts.PeriodDuration = 20 * time.Minute
		_, err := gen.BuildWeekSlots(opts)
		var durationErr *models.MinimumPeriodDurationError
		require.True(t, errors.As(err, &durationErr))
		assert.Equal(t, 20*time.Minute, durationErr.Provided)
		assert.Equal(t, 30*time.Minute, durationErr.Minimum)
	})

	t.Run("too many periods", func(t *testing.T) {
		opts := weekOptions()
		opts.PeriodsPerDay = 11
		_, err := gen.BuildWeekSlots(opts)
		var periodErr *models.InvalidPeriodNumberError
		assert.True(t, errors.As(err, &periodErr))
	})

	t.Run("weekend working day", func(t *testing.T) {
		opts := weekOptions()
		opts.WorkingDays = []models.DayOfWeek{models.Monday, models.Saturday}
		_, err := gen.BuildWeekSlots(opts)
		var dayErr *models.InvalidDayOfWeekError
		assert.True(t, errors.As(err, &dayErr))
	})

	t.Run("runs past midnight", func(t *testing.T) {
		opts := weekOptions()
		opts.SchoolStartTime = models.TimeOfDay(22 * 60)
		_, err := gen.BuildWeekSlots(opts)
		assert.Error(t, err)
	})

	t.Run("last period ending at midnight", func(t *testing.T) {
		opts := weekOptions()
		opts.PeriodsPerDay = 1
		opts.SchoolStartTime = models.TimeOfDay(23*60 + 20)
		_, err := gen.BuildWeekSlots(opts)
		assert.ErrorContains(t, err, "runs past midnight")
	})

	t.Run("break after the last period is ignored", func(t *testing.T) {
		opts := weekOptions()
		opts.PeriodsPerDay = 1
		opts.SchoolStartTime = models.TimeOfDay(22*60 + 40)
		opts.BreakAfterPeriod = 1
		opts.BreakDuration = 60 * time.Minute
		slots, err := gen.BuildWeekSlots(opts)
		require.NoError(t, err)
		require.NotEmpty(t, slots)
		assert.Equal(t, "23:20", slots[0].Window.End.String())
	})

	t.Run("duplicate working days collapse", func(t *testing.T) {
		opts := weekOptions()
		opts.WorkingDays = []models.DayOfWeek{models.Wednesday, models.Wednesday}
		slots, err := gen.BuildWeekSlots(opts)
		require.NoError(t, err)
		assert.Len(t, slots, 6)
	})
}

func TestGenerateTimeTablePlacesAllDemand(t *testing.T) {
	gen := newTestGenerator()
	section := models.Section{ID: "s1"}

	result, err := gen.GenerateTimeTable(section, mathAndEnglish(), nil, weekOptions())
	require.NoError(t, err)

	assert.Equal(t, 7, result.EntriesCreated)
	assert.Equal(t, 0, result.EntriesSkipped)
	assert.Empty(t, result.Warnings)
	assert.Empty(t, result.SkippedSlots)
	require.Len(t, result.Entries, 7)

	perDay := map[models.DayOfWeek]map[string]int{}
	for _, entry := range result.Entries {
		assert.Equal(t, "s1", entry.SectionID)
		assert.True(t, entry.IsActive())
		if perDay[entry.DayOfWeek] == nil {
			perDay[entry.DayOfWeek] = map[string]int{}
		}
		perDay[entry.DayOfWeek][entry.SubjectID]++
	}
	for day, subjects := range perDay {
		for subject, count := range subjects {
			assert.Equal(t, 1, count, "%s scheduled %d times on %s", subject, count, day)
		}
	}
	assertNoDoubleBooking(t, result.Entries, nil)
}

func TestGenerateTimeTableWithoutDistinctPreferenceFillsDayFirst(t *testing.T) {
	gen := newTestGenerator()
	opts := weekOptions()
	opts.PreferDistinctSubjectsPerDay = false

	result, err := gen.GenerateTimeTable(models.Section{ID: "s1"}, mathAndEnglish(), nil, opts)
	require.NoError(t, err)

	require.Len(t, result.Entries, 7)
	for i := 0; i < 6; i++ {
		assert.Equal(t, models.Monday, result.Entries[i].DayOfWeek)
		assert.Equal(t, i+1, result.Entries[i].PeriodNumber)
	}
	assert.Equal(t, "math", result.Entries[0].SubjectID)
	assert.Equal(t, "english", result.Entries[4].SubjectID)
	assert.Equal(t, models.Tuesday, result.Entries[6].DayOfWeek)
}

func TestGenerateTimeTableRoutesAroundTeacherConflict(t *testing.T) {
	gen := newTestGenerator()
	existing := []models.TimeTableEntry{busyEntry("other-1", "s2", "t1", models.Monday, 1, "")}

	result, err := gen.GenerateTimeTable(models.Section{ID: "s1"}, mathAndEnglish(), existing, weekOptions())
	require.NoError(t, err)

	assert.Equal(t, 7, result.EntriesCreated)
	assert.Equal(t, 0, result.EntriesSkipped)
	assert.Empty(t, result.SkippedSlots)
	for _, entry := range result.Entries {
		if entry.DayOfWeek == models.Monday && entry.PeriodNumber == 1 {
			assert.NotEqual(t, "t1", entry.TeacherID)
		}
	}
	assertNoDoubleBooking(t, result.Entries, existing)
}

func TestGenerateTimeTableSearchDoesNotCountAsConflicts(t *testing.T) {
	metrics := NewMetricsService()
	gen := NewTimeTableGenerationService(
		NewSlotAvailabilityService(nil, metrics),
		models.SlotRules{MaxPeriodsPerDay: 10, MinimumPeriodDuration: 30 * time.Minute},
		nil,
	)
	existing := []models.TimeTableEntry{
		busyEntry("other-1", "s2", "t1", models.Monday, 1, ""),
		busyEntry("other-2", "s3", "t9", models.Monday, 2, "R1"),
	}
	opts := weekOptions()
	opts.Rooms = []models.RoomNumber{"R2"}

	result, err := gen.GenerateTimeTable(models.Section{ID: "s1", HomeRoom: "R1"}, mathAndEnglish(), existing, opts)
	require.NoError(t, err)
	assert.Equal(t, 7, result.EntriesCreated)
	assert.Zero(t, metrics.Snapshot().ConflictsTotal)
}

func TestGenerateTimeTableNeverPolicyDropsBlockedUnit(t *testing.T) {
	gen := newTestGenerator()
	subjects := []models.SectionSubjectMapping{
		{SubjectID: "math", SubjectName: "Mathematics", SubjectCode: "MATH", TeacherID: "t1", WeeklyPeriods: 1},
	}
	existing := []models.TimeTableEntry{busyEntry("other-1", "s2", "t1", models.Monday, 1, "")}

	opts := weekOptions()
	opts.Requeue = models.RequeueNever
	result, err := gen.GenerateTimeTable(models.Section{ID: "s1"}, subjects, existing, opts)
	require.NoError(t, err)

	assert.Equal(t, 0, result.EntriesCreated)
	assert.Equal(t, 1, result.EntriesSkipped)
	require.Len(t, result.SkippedSlots, 1)
	assert.Equal(t, models.Monday, result.SkippedSlots[0].DayOfWeek)
	assert.Equal(t, 1, result.SkippedSlots[0].PeriodNumber)
	assert.Contains(t, result.SkippedSlots[0].Reason, "teacher t1")
	assert.Contains(t, result.Warnings, "subject Mathematics (MATH): 1 of 1 weekly periods not scheduled")

	opts.Requeue = models.RequeueOnce
	result, err = gen.GenerateTimeTable(models.Section{ID: "s1"}, subjects, existing, opts)
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, models.Monday, result.Entries[0].DayOfWeek)
	assert.Equal(t, 2, result.Entries[0].PeriodNumber)
}

func TestGenerateTimeTableTeacherBusyAllWeek(t *testing.T) {
	gen := newTestGenerator()
	subjects := []models.SectionSubjectMapping{
		{SubjectID: "math", SubjectName: "Mathematics", SubjectCode: "MATH", TeacherID: "t1", WeeklyPeriods: 2},
		{SubjectID: "art", SubjectName: "Art", SubjectCode: "ART", TeacherID: "t3", WeeklyPeriods: 1},
	}
	var existing []models.TimeTableEntry
	for _, day := range models.TeachingDays() {
		for period := 1; period <= 6; period++ {
			existing = append(existing, busyEntry(fmt.Sprintf("busy-%s-%d", day, period), "s2", "t1", day, period, ""))
		}
	}

	result, err := gen.GenerateTimeTable(models.Section{ID: "s1"}, subjects, existing, weekOptions())
	require.NoError(t, err)

	assert.Equal(t, 1, result.EntriesCreated)
	assert.Equal(t, 2, result.EntriesSkipped)
	assert.Equal(t, 3, result.EntriesCreated+result.EntriesSkipped)
	require.Len(t, result.SkippedSlots, 2)
	for _, skipped := range result.SkippedSlots {
		assert.Equal(t, "math", skipped.SubjectID)
		assert.Contains(t, skipped.Reason, "teacher t1")
	}
	assert.Equal(t, []string{"subject Mathematics (MATH): 2 of 2 weekly periods not scheduled"}, result.Warnings)
}

func TestGenerateTimeTableConservesDemandWhenOverbooked(t *testing.T) {
	gen := newTestGenerator()
	subjects := []models.SectionSubjectMapping{
		{SubjectID: "math", SubjectName: "Mathematics", SubjectCode: "MATH", TeacherID: "t1", WeeklyPeriods: 24},
		{SubjectID: "english", SubjectName: "English", SubjectCode: "ENG", TeacherID: "t2", WeeklyPeriods: 10},
		{SubjectID: "club", SubjectName: "Club", SubjectCode: "CLB", TeacherID: "t3", WeeklyPeriods: 0},
	}

	result, err := gen.GenerateTimeTable(models.Section{ID: "s1"}, subjects, nil, weekOptions())
	require.NoError(t, err)

	assert.Equal(t, 30, result.EntriesCreated)
	assert.Equal(t, 4, result.EntriesSkipped)
	assert.Empty(t, result.SkippedSlots)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "English (ENG): 4 of 10")
	assertNoDoubleBooking(t, result.Entries, nil)
}

func TestGenerateTimeTableIsDeterministic(t *testing.T) {
	subjects := mathAndEnglish()
	subjects = append(subjects, models.SectionSubjectMapping{SubjectID: "art", TeacherID: "t3", WeeklyPeriods: 3})
	existing := []models.TimeTableEntry{busyEntry("other-1", "s2", "t2", models.Tuesday, 2, "")}

	first, err := newTestGenerator().GenerateTimeTable(models.Section{ID: "s1"}, subjects, existing, weekOptions())
	require.NoError(t, err)
	second, err := newTestGenerator().GenerateTimeTable(models.Section{ID: "s1"}, subjects, existing, weekOptions())
	require.NoError(t, err)

	require.Equal(t, len(first.Entries), len(second.Entries))
	for i := range first.Entries {
		assert.Equal(t, first.Entries[i].ID, second.Entries[i].ID)
		assert.Equal(t, first.Entries[i].SubjectID, second.Entries[i].SubjectID)
		assert.Equal(t, first.Entries[i].DayOfWeek, second.Entries[i].DayOfWeek)
		assert.Equal(t, first.Entries[i].PeriodNumber, second.Entries[i].PeriodNumber)
	}
	assert.Equal(t, first.Warnings, second.Warnings)
}

func TestGenerateTimeTableAssignsRooms(t *testing.T) {
	gen := newTestGenerator()
	subjects := []models.SectionSubjectMapping{{SubjectID: "math", TeacherID: "t1", WeeklyPeriods: 1}}
	existing := []models.TimeTableEntry{busyEntry("other-1", "s2", "t9", models.Monday, 1, "R1")}
	section := models.Section{ID: "s1", HomeRoom: "R1"}

	opts := weekOptions()
	opts.Rooms = []models.RoomNumber{"R1", "", "R2"}
	result, err := gen.GenerateTimeTable(section, subjects, existing, opts)
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, models.RoomNumber("R2"), result.Entries[0].RoomNumber)
	assert.Empty(t, result.Warnings)

	opts.Rooms = nil
	result, err = gen.GenerateTimeTable(section, subjects, existing, opts)
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, models.NoRoom, result.Entries[0].RoomNumber)
	assert.Equal(t, []string{"1 entries scheduled without a free room"}, result.Warnings)
}

func TestGenerateTimeTableRespectsOwnEntriesUnlessOverwriting(t *testing.T) {
	gen := newTestGenerator()
	subjects := []models.SectionSubjectMapping{{SubjectID: "math", TeacherID: "t1", WeeklyPeriods: 1}}
	existing := []models.TimeTableEntry{busyEntry("own-1", "s1", "t5", models.Monday, 1, "")}

	result, err := gen.GenerateTimeTable(models.Section{ID: "s1"}, subjects, existing, weekOptions())
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, 2, result.Entries[0].PeriodNumber)
	assert.Contains(t, result.Warnings, "1 slots already occupied for section s1 were left untouched")

	opts := weekOptions()
	opts.OverwriteExisting = true
	result, err = gen.GenerateTimeTable(models.Section{ID: "s1"}, subjects, existing, opts)
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, 1, result.Entries[0].PeriodNumber)
	assert.Empty(t, result.Warnings)
}

func TestGenerateTimeTableWithNoWorkingDays(t *testing.T) {
	gen := newTestGenerator()
	opts := weekOptions()
	opts.WorkingDays = []models.DayOfWeek{}

	result, err := gen.GenerateTimeTable(models.Section{ID: "s1"}, mathAndEnglish(), nil, opts)
	require.NoError(t, err)

	assert.Equal(t, 0, result.EntriesCreated)
	assert.Equal(t, 0, result.EntriesSkipped)
	assert.Empty(t, result.Entries)
	assert.Equal(t, []string{"no teaching slots configured; nothing was scheduled"}, result.Warnings)
}

func TestBuildDemandQueueOrdering(t *testing.T) {
	queue := buildDemandQueue([]models.SectionSubjectMapping{
		{SubjectID: "elective", WeeklyPeriods: 2},
		{SubjectID: "core", WeeklyPeriods: 2, IsMandatory: true},
		{SubjectID: "math", WeeklyPeriods: 3},
		{SubjectID: "none", WeeklyPeriods: 0},
	})

	got := make([]string, 0, len(queue))
	for _, unit := range queue {
		got = append(got, unit.mapping.SubjectID)
	}
	assert.Equal(t, []string{"math", "math", "math", "core", "core", "elective", "elective"}, got)
}
