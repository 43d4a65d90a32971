package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimeTableGenerationService fills a section's week greedily, slot by slot.
// It never persists anything and never fails for partially met demand.
type TimeTableGenerationService struct {
	availability *SlotAvailabilityService
	rules        models.SlotRules
	newID        func() string
	logger       *zap.Logger
}

// NewTimeTableGenerationService wires the generator.
func NewTimeTableGenerationService(availability *SlotAvailabilityService, rules models.SlotRules, logger *zap.Logger) *TimeTableGenerationService {
	if availability == nil {
		availability = NewSlotAvailabilityService(nil, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeTableGenerationService{
		availability: availability,
		rules:        rules.Normalize(),
		newID:        uuid.NewString,
		logger:       logger,
	}
}

// WeekSlot is one candidate (day, period) with its computed window.
type WeekSlot struct {
	DayOfWeek    models.DayOfWeek
	PeriodNumber int
	Window       models.TimePeriod
}

// BuildWeekSlots lays out the week day-major, period-minor. A nil WorkingDays
// means Monday–Friday; an empty non-nil slice means no working days.
func (s *TimeTableGenerationService) BuildWeekSlots(opts models.GenerationOptions) ([]WeekSlot, error) {
	if opts.PeriodsPerDay < 0 || opts.PeriodsPerDay > s.rules.MaxPeriodsPerDay {
		return nil, &models.InvalidPeriodNumberError{Provided: opts.PeriodsPerDay, Max: s.rules.MaxPeriodsPerDay}
	}
	if opts.BreakAfterPeriod < 0 || opts.BreakDuration < 0 {
		return nil, fmt.Errorf("break settings must not be negative")
	}
	days, err := normalizeWorkingDays(opts.WorkingDays)
	if err != nil {
		return nil, err
	}
	if len(days) == 0 || opts.PeriodsPerDay == 0 {
		return nil, nil
	}

	windows := make([]models.TimePeriod, 0, opts.PeriodsPerDay)
	cursor := opts.SchoolStartTime
	for period := 1; period <= opts.PeriodsPerDay; period++ {
		end, ok := cursor.Add(opts.PeriodDuration)
		if !ok {
			return nil, fmt.Errorf("period %d starting %s runs past midnight", period, cursor)
		}
		window, err := models.NewTimePeriod(cursor, end, s.rules.MinimumPeriodDuration)
		if err != nil {
			return nil, err
		}
		windows = append(windows, window)
		cursor = end
		if opts.BreakAfterPeriod > 0 && period == opts.BreakAfterPeriod && period < opts.PeriodsPerDay {
			if cursor, ok = cursor.Add(opts.BreakDuration); !ok {
				return nil, fmt.Errorf("break after period %d runs past midnight", period)
			}
		}
	}

	slots := make([]WeekSlot, 0, len(days)*len(windows))
	for _, day := range days {
		for i, window := range windows {
			slots = append(slots, WeekSlot{DayOfWeek: day, PeriodNumber: i + 1, Window: window})
		}
	}
	return slots, nil
}

// GenerateTimeTable places the section's weekly demand against existing entries.
// The caller validates the section and mappings and cancels old entries when overwriting.
func (s *TimeTableGenerationService) GenerateTimeTable(
	section models.Section,
	subjects []models.SectionSubjectMapping,
	existing []models.TimeTableEntry,
	opts models.GenerationOptions,
) (*models.GenerationResult, error) {
	slots, err := s.BuildWeekSlots(opts)
	if err != nil {
		return nil, err
	}

	result := &models.GenerationResult{
		Entries:      []*models.TimeTableEntry{},
		SkippedSlots: []models.SkippedSlotInfo{},
		Warnings:     []string{},
	}
	queue := buildDemandQueue(subjects)
	if len(slots) == 0 {
		if len(queue) > 0 {
			result.Warnings = append(result.Warnings, "no teaching slots configured; nothing was scheduled")
		}
		return result, nil
	}

	run := &generationRun{
		svc:       s,
		section:   section,
		opts:      opts,
		ledger:    newSlotLedger(existing, section.ID, opts.OverwriteExisting),
		queue:     queue,
		placedDay: make(map[models.DayOfWeek]map[string]bool),
		rooms:     candidateRooms(section, opts.Rooms),
		result:    result,
	}

	filled := make([]bool, len(slots))
	occupied := 0
	for i, slot := range slots {
		if run.ledger.sectionEntry(section.ID, slot) != nil {
			filled[i] = true
			occupied++
			continue
		}
		filled[i] = run.fillSlot(slot, opts.PreferDistinctSubjectsPerDay)
	}
	if run.pending() > 0 {
		for i, slot := range slots {
			if filled[i] {
				continue
			}
			filled[i] = run.fillSlot(slot, false)
		}
	}

	run.finish(occupied)
	s.logger.Debug("timetable generated",
		zap.String("section_id", section.ID),
		zap.Int("slots", len(slots)),
		zap.Int("created", result.EntriesCreated),
		zap.Int("skipped", result.EntriesSkipped),
	)
	return result, nil
}

type demandUnit struct {
	order     int
	mapping   models.SectionSubjectMapping
	requeued  bool
	skipped   bool
	lastBlock *models.SkippedSlotInfo
}

// buildDemandQueue expands mappings into one unit per weekly period, ordered by
// descending weekly periods, mandatory first, then mapping order.
func buildDemandQueue(subjects []models.SectionSubjectMapping) []*demandUnit {
	indexes := make([]int, 0, len(subjects))
	for i, subject := range subjects {
		if subject.WeeklyPeriods > 0 {
			indexes = append(indexes, i)
		}
	}
	sort.SliceStable(indexes, func(a, b int) bool {
		left, right := subjects[indexes[a]], subjects[indexes[b]]
		if left.WeeklyPeriods != right.WeeklyPeriods {
			return left.WeeklyPeriods > right.WeeklyPeriods
		}
		return left.IsMandatory && !right.IsMandatory
	})

	var queue []*demandUnit
	for _, idx := range indexes {
		for n := 0; n < subjects[idx].WeeklyPeriods; n++ {
			queue = append(queue, &demandUnit{order: idx, mapping: subjects[idx]})
		}
	}
	return queue
}

func normalizeWorkingDays(days []models.DayOfWeek) ([]models.DayOfWeek, error) {
	if days == nil {
		return models.TeachingDays(), nil
	}
	seen := make(map[models.DayOfWeek]bool, len(days))
	result := make([]models.DayOfWeek, 0, len(days))
	for _, day := range days {
		if !day.IsTeachingDay() {
			return nil, &models.InvalidDayOfWeekError{Provided: day.String()}
		}
		if seen[day] {
			continue
		}
		seen[day] = true
		result = append(result, day)
	}
	return result, nil
}

func candidateRooms(section models.Section, pool []models.RoomNumber) []models.RoomNumber {
	var rooms []models.RoomNumber
	seen := map[models.RoomNumber]bool{}
	if section.HomeRoom.IsAssigned() {
		rooms = append(rooms, section.HomeRoom)
		seen[section.HomeRoom] = true
	}
	for _, room := range pool {
		if !room.IsAssigned() || seen[room] {
			continue
		}
		seen[room] = true
		rooms = append(rooms, room)
	}
	return rooms
}

type generationRun struct {
	svc       *TimeTableGenerationService
	section   models.Section
	opts      models.GenerationOptions
	ledger    *slotLedger
	queue     []*demandUnit
	placedDay map[models.DayOfWeek]map[string]bool
	rooms     []models.RoomNumber
	roomless  int
	dropped   []*demandUnit
	result    *models.GenerationResult
}

func (r *generationRun) pending() int {
	return len(r.queue)
}

// fillSlot tries queued units in order and places the first one that fits.
func (r *generationRun) fillSlot(slot WeekSlot, preferDistinct bool) bool {
	blockedTeachers := map[string]bool{}
	candidates := append([]*demandUnit(nil), r.queue...)
	for _, unit := range candidates {
		if unit.skipped || blockedTeachers[unit.mapping.TeacherID] {
			continue
		}
		if preferDistinct && r.placedDay[slot.DayOfWeek][unit.mapping.SubjectID] {
			continue
		}
		req := models.SlotRequest{
			SectionID:    r.section.ID,
			TeacherID:    unit.mapping.TeacherID,
			DayOfWeek:    slot.DayOfWeek,
			PeriodNumber: slot.PeriodNumber,
		}
		verdict := r.check(req)
		if !verdict.IsAvailable {
			blockedTeachers[unit.mapping.TeacherID] = true
			r.block(unit, slot, verdict)
			continue
		}
		if r.place(unit, slot) {
			return true
		}
	}
	return false
}

func (r *generationRun) check(req models.SlotRequest) models.SlotAvailabilityResult {
	existing := r.ledger.lookup(req)
	return r.svc.availability.Evaluate(req, existing.Section, existing.Teacher, existing.Room)
}

func (r *generationRun) block(unit *demandUnit, slot WeekSlot, verdict models.SlotAvailabilityResult) {
	reasons := make([]string, 0, len(verdict.Conflicts))
	for _, conflict := range verdict.Conflicts {
		reasons = append(reasons, conflict.Description)
	}
	unit.lastBlock = &models.SkippedSlotInfo{
		DayOfWeek:    slot.DayOfWeek,
		PeriodNumber: slot.PeriodNumber,
		SubjectID:    unit.mapping.SubjectID,
		SubjectName:  unit.mapping.SubjectName,
		Reason:       strings.Join(reasons, "; "),
	}

	switch {
	case r.opts.Requeue == models.RequeueNever:
		unit.skipped = true
		r.dequeue(unit)
		r.dropped = append(r.dropped, unit)
	case !unit.requeued:
		unit.requeued = true
		r.dequeue(unit)
		r.queue = append(r.queue, unit)
	}
}

func (r *generationRun) place(unit *demandUnit, slot WeekSlot) bool {
	room := r.pickRoom(unit, slot)
	entry, err := models.NewTimeTableEntry(models.NewEntryParams{
		ID:           r.svc.newID(),
		SectionID:    r.section.ID,
		SubjectID:    unit.mapping.SubjectID,
		TeacherID:    unit.mapping.TeacherID,
		DayOfWeek:    slot.DayOfWeek,
		PeriodNumber: slot.PeriodNumber,
		Period:       slot.Window,
		RoomNumber:   room,
	}, r.svc.rules)
	if err != nil {
		// Slots were validated when the week was built.
		r.svc.logger.Warn("generated entry rejected", zap.Error(err))
		return false
	}
	r.ledger.reserve(entry)
	r.dequeue(unit)
	if r.placedDay[slot.DayOfWeek] == nil {
		r.placedDay[slot.DayOfWeek] = map[string]bool{}
	}
	r.placedDay[slot.DayOfWeek][unit.mapping.SubjectID] = true
	r.result.Entries = append(r.result.Entries, entry)
	return true
}

func (r *generationRun) pickRoom(unit *demandUnit, slot WeekSlot) models.RoomNumber {
	if len(r.rooms) == 0 {
		return models.NoRoom
	}
	for _, room := range r.rooms {
		req := models.SlotRequest{
			SectionID:    r.section.ID,
			TeacherID:    unit.mapping.TeacherID,
			RoomNumber:   room,
			DayOfWeek:    slot.DayOfWeek,
			PeriodNumber: slot.PeriodNumber,
		}
		if r.check(req).IsAvailable {
			return room
		}
	}
	r.roomless++
	return models.NoRoom
}

func (r *generationRun) dequeue(target *demandUnit) {
	for i, unit := range r.queue {
		if unit == target {
			r.queue = append(r.queue[:i], r.queue[i+1:]...)
			return
		}
	}
}

func (r *generationRun) finish(occupied int) {
	result := r.result
	result.EntriesCreated = len(result.Entries)

	unmet := map[int]int{}
	skipped := append(append([]*demandUnit(nil), r.queue...), r.dropped...)
	sort.SliceStable(skipped, func(i, j int) bool { return skipped[i].order < skipped[j].order })

	for _, unit := range skipped {
		unmet[unit.order]++
		if unit.lastBlock != nil {
			result.SkippedSlots = append(result.SkippedSlots, *unit.lastBlock)
		}
	}
	result.EntriesSkipped = len(skipped)

	seen := map[int]bool{}
	for _, unit := range skipped {
		if seen[unit.order] {
			continue
		}
		seen[unit.order] = true
		mapping := unit.mapping
		result.Warnings = append(result.Warnings, fmt.Sprintf("subject %s (%s): %d of %d weekly periods not scheduled",
			mapping.SubjectName, mapping.SubjectCode, unmet[unit.order], mapping.WeeklyPeriods))
	}
	if occupied > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d slots already occupied for section %s were left untouched", occupied, r.section.ID))
	}
	if r.roomless > 0 {
		result.Warnings = append(result.Warnings, fmt.Sprintf("%d entries scheduled without a free room", r.roomless))
	}
}

type ledgerKey struct {
	day    models.DayOfWeek
	period int
	owner  string
}

// slotLedger indexes active entries by section, teacher and room for one run.
type slotLedger struct {
	sections map[ledgerKey]*models.TimeTableEntry
	teachers map[ledgerKey]*models.TimeTableEntry
	rooms    map[ledgerKey]*models.TimeTableEntry
}

func newSlotLedger(existing []models.TimeTableEntry, sectionID string, overwrite bool) *slotLedger {
	ledger := &slotLedger{
		sections: make(map[ledgerKey]*models.TimeTableEntry),
		teachers: make(map[ledgerKey]*models.TimeTableEntry),
		rooms:    make(map[ledgerKey]*models.TimeTableEntry),
	}
	for i := range existing {
		entry := &existing[i]
		if !entry.IsActive() {
			continue
		}
		if overwrite && entry.SectionID == sectionID {
			continue
		}
		ledger.reserve(entry)
	}
	return ledger
}

func (l *slotLedger) reserve(entry *models.TimeTableEntry) {
	l.sections[ledgerKey{entry.DayOfWeek, entry.PeriodNumber, entry.SectionID}] = entry
	l.teachers[ledgerKey{entry.DayOfWeek, entry.PeriodNumber, entry.TeacherID}] = entry
	if entry.RoomNumber.IsAssigned() {
		l.rooms[ledgerKey{entry.DayOfWeek, entry.PeriodNumber, string(entry.RoomNumber)}] = entry
	}
}

func (l *slotLedger) sectionEntry(sectionID string, slot WeekSlot) *models.TimeTableEntry {
	return l.sections[ledgerKey{slot.DayOfWeek, slot.PeriodNumber, sectionID}]
}

func (l *slotLedger) lookup(req models.SlotRequest) models.ExistingSlotEntries {
	found := models.ExistingSlotEntries{
		Section: l.sections[ledgerKey{req.DayOfWeek, req.PeriodNumber, req.SectionID}],
		Teacher: l.teachers[ledgerKey{req.DayOfWeek, req.PeriodNumber, req.TeacherID}],
	}
	if req.RoomNumber.IsAssigned() {
		found.Room = l.rooms[ledgerKey{req.DayOfWeek, req.PeriodNumber, string(req.RoomNumber)}]
	}
	return found
}
