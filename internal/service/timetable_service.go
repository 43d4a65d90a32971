package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const regenerationCancelReason = "replaced by timetable regeneration"

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type timetableEntryStore interface {
	FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TimeTableEntry, error)
	GetBySlot(ctx context.Context, exec sqlx.ExtContext, sectionID string, day models.DayOfWeek, period int) (*models.TimeTableEntry, error)
	GetTeacherSchedule(ctx context.Context, exec sqlx.ExtContext, teacherID string, day models.DayOfWeek, period int) (*models.TimeTableEntry, error)
	GetByRoomAndSlot(ctx context.Context, exec sqlx.ExtContext, room models.RoomNumber, day models.DayOfWeek, period int) (*models.TimeTableEntry, error)
	GetBySectionID(ctx context.Context, exec sqlx.ExtContext, sectionID string) ([]models.TimeTableEntry, error)
	ListByTeacher(ctx context.Context, teacherID string) ([]models.TimeTableEntry, error)
	ListActiveForConflicts(ctx context.Context, exec sqlx.ExtContext, sectionID string, teacherIDs []string, rooms []models.RoomNumber) ([]models.TimeTableEntry, error)
	Create(ctx context.Context, exec sqlx.ExtContext, entry *models.TimeTableEntry) error
	BulkCreate(ctx context.Context, exec sqlx.ExtContext, entries []*models.TimeTableEntry) error
	Update(ctx context.Context, exec sqlx.ExtContext, entry *models.TimeTableEntry) error
	Cancel(ctx context.Context, exec sqlx.ExtContext, entry *models.TimeTableEntry) error
	CancelBySection(ctx context.Context, exec sqlx.ExtContext, sectionID, reason string) (int64, error)
	LockSection(ctx context.Context, exec sqlx.ExtContext, sectionID string) error
}

type sectionReader interface {
	FindByID(ctx context.Context, id string) (*models.Section, error)
	ListSubjects(ctx context.Context, sectionID string) ([]models.SectionSubjectMapping, error)
	FindSubject(ctx context.Context, sectionID, subjectID string) (*models.SectionSubjectMapping, error)
}

// TimetableDefaults are the generation options used when a request leaves them out.
type TimetableDefaults struct {
	PeriodsPerDay                int
	PeriodDuration               time.Duration
	BreakAfterPeriod             int
	BreakDuration                time.Duration
	SchoolStartTime              models.TimeOfDay
	PreferDistinctSubjectsPerDay bool
	Requeue                      models.RequeuePolicy
	CacheTTL                     time.Duration
}

// TimetableService validates commands, loads collaborators and persists timetable changes.
type TimetableService struct {
	entries      timetableEntryStore
	sections     sectionReader
	tx           txProvider
	generator    *TimeTableGenerationService
	availability *SlotAvailabilityService
	publisher    EventPublisher
	cache        *CacheService
	metrics      *MetricsService
	rules        models.SlotRules
	defaults     TimetableDefaults
	validator    *validator.Validate
	logger       *zap.Logger
	now          func() time.Time
}

// TimetableServiceDeps groups the collaborators of TimetableService.
type TimetableServiceDeps struct {
	Entries      timetableEntryStore
	Sections     sectionReader
	Tx           txProvider
	Generator    *TimeTableGenerationService
	Availability *SlotAvailabilityService
	Publisher    EventPublisher
	Cache        *CacheService
	Metrics      *MetricsService
	Rules        models.SlotRules
	Defaults     TimetableDefaults
	Validator    *validator.Validate
	Logger       *zap.Logger
}

// NewTimetableService wires the timetable command and query handlers.
func NewTimetableService(deps TimetableServiceDeps) *TimetableService {
	validate := deps.Validator
	if validate == nil {
		validate = validator.New()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	availability := deps.Availability
	if availability == nil {
		availability = NewSlotAvailabilityService(nil, deps.Metrics)
	}
	rules := deps.Rules.Normalize()
	generator := deps.Generator
	if generator == nil {
		generator = NewTimeTableGenerationService(availability, rules, logger)
	}
	return &TimetableService{
		entries:      deps.Entries,
		sections:     deps.Sections,
		tx:           deps.Tx,
		generator:    generator,
		availability: availability,
		publisher:    deps.Publisher,
		cache:        deps.Cache,
		metrics:      deps.Metrics,
		rules:        rules,
		defaults:     deps.Defaults,
		validator:    validate,
		logger:       logger,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// GenerateTimetable regenerates a section's week inside one locked transaction.
func (s *TimetableService) GenerateTimetable(ctx context.Context, sectionID string, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	opts, err := s.buildOptions(req)
	if err != nil {
		return nil, err
	}
	section, err := s.loadSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	subjects, err := s.sections.ListSubjects(ctx, section.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section subjects")
	}
	if err := validateMappings(section.ID, subjects); err != nil {
		return nil, translateDomainError(err, "invalid section subjects")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	started := time.Now()
	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
			s.metrics.ObserveGeneration(nil, time.Since(started))
		}
	}()

	if err = s.entries.LockSection(ctx, tx, section.ID); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to lock section")
		return nil, err
	}

	teacherIDs := mappingTeachers(subjects)
	queried := time.Now()
	existing, err := s.entries.ListActiveForConflicts(ctx, tx, section.ID, teacherIDs, append([]models.RoomNumber{section.HomeRoom}, opts.Rooms...))
	s.metrics.ObserveDBQuery("generation_conflicts", time.Since(queried))
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load existing entries")
		return nil, err
	}

	own := sectionEntries(existing, section.ID)
	if len(own) > 0 && !opts.OverwriteExisting {
		err = appErrors.Clone(appErrors.ErrPreconditionFailed, "section already has "+strconv.Itoa(len(own))+" active entries; set overwriteExisting to regenerate")
		return nil, err
	}

	var cancelled int64
	if opts.OverwriteExisting && len(own) > 0 {
		if cancelled, err = s.entries.CancelBySection(ctx, tx, section.ID, regenerationCancelReason); err != nil {
			err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel existing entries")
			return nil, err
		}
	}

	result, err := s.generator.GenerateTimeTable(*section, subjects, existing, opts)
	if err != nil {
		err = translateDomainError(err, "invalid generation options")
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable generation aborted")
		return nil, err
	}

	for _, entry := range result.Entries {
		entry.PullEvents()
	}
	if err = s.entries.BulkCreate(ctx, tx, result.Entries); err != nil {
		err = translateWriteError(err, "failed to persist generated entries")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable generation")
		return nil, err
	}
	s.metrics.ObserveGeneration(result, time.Since(started))

	affected := teacherIDs
	for _, entry := range own {
		affected = append(affected, entry.TeacherID)
	}
	s.publish(ctx, models.NewGeneratedEvent(section.ID, affected, map[string]string{
		"created":   strconv.Itoa(result.EntriesCreated),
		"skipped":   strconv.Itoa(result.EntriesSkipped),
		"cancelled": strconv.FormatInt(cancelled, 10),
	}))

	s.logger.Info("timetable generated",
		zap.String("section_id", section.ID),
		zap.Int("created", result.EntriesCreated),
		zap.Int("skipped", result.EntriesSkipped),
		zap.Int64("cancelled", cancelled),
	)

	return &dto.GenerateTimetableResponse{
		SectionID:        section.ID,
		EntriesCreated:   result.EntriesCreated,
		EntriesSkipped:   result.EntriesSkipped,
		CancelledEntries: cancelled,
		Entries:          result.Entries,
		SkippedSlots:     result.SkippedSlots,
		Warnings:         result.Warnings,
		Message:          result.Summary(),
	}, nil
}

// CreateEntry places one entry after checking the section, subject, teacher and slot.
func (s *TimetableService) CreateEntry(ctx context.Context, req dto.CreateTimetableEntryRequest) (*models.TimeTableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable entry payload")
	}
	day, err := req.DayOfWeek.Parse()
	if err != nil {
		return nil, translateDomainError(err, "invalid dayOfWeek")
	}
	period, err := parseWindow(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	room, err := models.NewRoomNumber(req.RoomNumber)
	if err != nil {
		return nil, translateDomainError(err, "invalid room number")
	}
	section, err := s.loadSection(ctx, req.SectionID)
	if err != nil {
		return nil, err
	}
	mapping, err := s.loadMapping(ctx, section.ID, req.SubjectID)
	if err != nil {
		return nil, err
	}
	teacherID := req.TeacherID
	if teacherID == "" {
		teacherID = mapping.TeacherID
	}
	if teacherID == "" {
		return nil, translateDomainError(&models.TeacherNotAssignedError{SectionID: section.ID, SubjectID: req.SubjectID}, "")
	}

	entry, err := models.NewTimeTableEntry(models.NewEntryParams{
		SectionID:    section.ID,
		SubjectID:    req.SubjectID,
		TeacherID:    teacherID,
		DayOfWeek:    day,
		PeriodNumber: req.PeriodNumber,
		Period:       period,
		RoomNumber:   room,
	}, s.rules)
	if err != nil {
		return nil, translateDomainError(err, "invalid timetable entry")
	}

	if err := s.ensureAvailable(ctx, entry, ""); err != nil {
		return nil, err
	}
	if err := s.entries.Create(ctx, nil, entry); err != nil {
		return nil, translateWriteError(err, "failed to create timetable entry")
	}
	s.publish(ctx, entry.PullEvents()...)
	return entry, nil
}

// UpdateEntry changes subject, teacher, window and room of an active entry. Day and period stay fixed.
func (s *TimetableService) UpdateEntry(ctx context.Context, id string, req dto.UpdateTimetableEntryRequest) (*models.TimeTableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable entry payload")
	}
	period, err := parseWindow(req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}
	room, err := models.NewRoomNumber(req.RoomNumber)
	if err != nil {
		return nil, translateDomainError(err, "invalid room number")
	}
	entry, err := s.loadEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entry.IsActive() {
		return nil, translateDomainError(&models.TimeTableEntryCancelledError{EntryID: entry.ID}, "")
	}
	if _, err := s.loadMapping(ctx, entry.SectionID, req.SubjectID); err != nil {
		return nil, err
	}

	candidate := *entry
	if err := candidate.Update(models.EntryChange{
		SubjectID:  req.SubjectID,
		TeacherID:  req.TeacherID,
		Period:     period,
		RoomNumber: room,
	}, s.rules); err != nil {
		return nil, translateDomainError(err, "invalid timetable entry")
	}
	if err := s.ensureAvailable(ctx, &candidate, entry.ID); err != nil {
		return nil, err
	}
	if err := s.entries.Update(ctx, nil, &candidate); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, translateDomainError(&models.TimeTableEntryCancelledError{EntryID: entry.ID}, "")
		}
		return nil, translateWriteError(err, "failed to update timetable entry")
	}
	s.publish(ctx, candidate.PullEvents()...)
	return &candidate, nil
}

// CancelEntry soft-deletes an active entry.
func (s *TimetableService) CancelEntry(ctx context.Context, id string, req dto.CancelTimetableEntryRequest) (*models.TimeTableEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid cancel payload")
	}
	entry, err := s.loadEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := entry.Cancel(req.Reason, s.now()); err != nil {
		return nil, translateDomainError(err, "")
	}
	if err := s.entries.Cancel(ctx, nil, entry); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, translateDomainError(&models.TimeTableEntryCancelledError{EntryID: entry.ID}, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel timetable entry")
	}
	s.publish(ctx, entry.PullEvents()...)
	return entry, nil
}

// CheckSlotAvailability reports every conflict a placement would cause.
func (s *TimetableService) CheckSlotAvailability(ctx context.Context, query dto.SlotAvailabilityQuery) (*models.SlotAvailabilityResult, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid availability query")
	}
	day, err := models.ParseDayOfWeek(query.DayOfWeek)
	if err != nil {
		return nil, translateDomainError(err, "invalid day of week")
	}
	if err := models.ValidatePeriodNumber(query.PeriodNumber, s.rules.MaxPeriodsPerDay); err != nil {
		return nil, translateDomainError(err, "invalid period number")
	}
	room, err := models.NewRoomNumber(query.RoomNumber)
	if err != nil {
		return nil, translateDomainError(err, "invalid room number")
	}
	req := models.SlotRequest{
		SectionID:    query.SectionID,
		TeacherID:    query.TeacherID,
		RoomNumber:   room,
		DayOfWeek:    day,
		PeriodNumber: query.PeriodNumber,
	}
	existing, err := s.lookupSlot(ctx, req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot occupants")
	}
	existing = existing.Without(query.ExcludeEntryID)
	result := s.availability.CheckAvailability(req, existing.Section, existing.Teacher, existing.Room)
	return &result, nil
}

// SectionTimetable returns a section's active week, served from cache when possible.
func (s *TimetableService) SectionTimetable(ctx context.Context, sectionID string) (*dto.SectionTimetableResponse, error) {
	var cached dto.SectionTimetableResponse
	if hit, _ := s.cache.Get(ctx, SectionTimetableKey(sectionID), &cached); hit {
		return &cached, nil
	}
	section, err := s.loadSection(ctx, sectionID)
	if err != nil {
		return nil, err
	}
	queried := time.Now()
	entries, err := s.entries.GetBySectionID(ctx, nil, section.ID)
	s.metrics.ObserveDBQuery("section_timetable", time.Since(queried))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section timetable")
	}
	if entries == nil {
		entries = []models.TimeTableEntry{}
	}
	resp := &dto.SectionTimetableResponse{
		SectionID:   section.ID,
		SectionName: section.Name,
		HomeRoom:    section.HomeRoom,
		Entries:     entries,
	}
	_ = s.cache.Set(ctx, SectionTimetableKey(sectionID), resp, s.defaults.CacheTTL)
	return resp, nil
}

// TeacherTimetable returns a teacher's active week across sections.
func (s *TimetableService) TeacherTimetable(ctx context.Context, teacherID string) (*dto.TeacherTimetableResponse, error) {
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}
	var cached dto.TeacherTimetableResponse
	if hit, _ := s.cache.Get(ctx, TeacherTimetableKey(teacherID), &cached); hit {
		return &cached, nil
	}
	queried := time.Now()
	entries, err := s.entries.ListByTeacher(ctx, teacherID)
	s.metrics.ObserveDBQuery("teacher_timetable", time.Since(queried))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher timetable")
	}
	if entries == nil {
		entries = []models.TimeTableEntry{}
	}
	resp := &dto.TeacherTimetableResponse{TeacherID: teacherID, Entries: entries}
	_ = s.cache.Set(ctx, TeacherTimetableKey(teacherID), resp, s.defaults.CacheTTL)
	return resp, nil
}

func (s *TimetableService) buildOptions(req dto.GenerateTimetableRequest) (models.GenerationOptions, error) {
	opts := models.GenerationOptions{
		PeriodsPerDay:                s.defaults.PeriodsPerDay,
		PeriodDuration:               s.defaults.PeriodDuration,
		BreakAfterPeriod:             s.defaults.BreakAfterPeriod,
		BreakDuration:                s.defaults.BreakDuration,
		SchoolStartTime:              s.defaults.SchoolStartTime,
		OverwriteExisting:            req.OverwriteExisting,
		PreferDistinctSubjectsPerDay: s.defaults.PreferDistinctSubjectsPerDay,
		Requeue:                      s.defaults.Requeue,
	}
	if opts.Requeue == "" {
		opts.Requeue = models.RequeueOnce
	}
	if req.WorkingDays != nil {
		opts.WorkingDays = make([]models.DayOfWeek, 0, len(req.WorkingDays))
		for _, raw := range req.WorkingDays {
			day, err := raw.Parse()
			if err != nil {
				return opts, translateDomainError(err, "invalid workingDays")
			}
			opts.WorkingDays = append(opts.WorkingDays, day)
		}
	}
	if req.PeriodsPerDay != nil {
		opts.PeriodsPerDay = *req.PeriodsPerDay
	}
	if req.PeriodDurationMinutes != nil {
		opts.PeriodDuration = time.Duration(*req.PeriodDurationMinutes) * time.Minute
	}
	if req.BreakAfterPeriod != nil {
		opts.BreakAfterPeriod = *req.BreakAfterPeriod
	}
	if req.BreakDurationMinutes != nil {
		opts.BreakDuration = time.Duration(*req.BreakDurationMinutes) * time.Minute
	}
	if req.PreferDistinctSubjectsPerDay != nil {
		opts.PreferDistinctSubjectsPerDay = *req.PreferDistinctSubjectsPerDay
	}
	if req.SchoolStartTime != "" {
		start, err := models.ParseTimeOfDay(req.SchoolStartTime)
		if err != nil {
			return opts, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schoolStartTime")
		}
		opts.SchoolStartTime = start
	}
	if req.RequeuePolicy != "" {
		policy, err := models.ParseRequeuePolicy(req.RequeuePolicy)
		if err != nil {
			return opts, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid requeuePolicy")
		}
		opts.Requeue = policy
	}
	for _, raw := range req.Rooms {
		room, err := models.NewRoomNumber(raw)
		if err != nil {
			return opts, translateDomainError(err, "invalid room number")
		}
		if room.IsAssigned() {
			opts.Rooms = append(opts.Rooms, room)
		}
	}
	return opts, nil
}

func (s *TimetableService) loadSection(ctx context.Context, sectionID string) (*models.Section, error) {
	if sectionID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "section id is required")
	}
	section, err := s.sections.FindByID(ctx, sectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, translateDomainError(&models.InvalidSectionError{SectionID: sectionID}, "")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section")
	}
	return section, nil
}

func (s *TimetableService) loadMapping(ctx context.Context, sectionID, subjectID string) (*models.SectionSubjectMapping, error) {
	mapping, err := s.sections.FindSubject(ctx, sectionID, subjectID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section subject")
	}
	if mapping == nil {
		return nil, translateDomainError(&models.InvalidSubjectError{
			SectionID: sectionID,
			SubjectID: subjectID,
			Reason:    "subject is not mapped to the section",
		}, "")
	}
	return mapping, nil
}

func (s *TimetableService) loadEntry(ctx context.Context, id string) (*models.TimeTableEntry, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "entry id is required")
	}
	entry, err := s.entries.FindByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}
	return entry, nil
}

// lookupSlot fetches the section, teacher and room occupants of a slot concurrently.
func (s *TimetableService) lookupSlot(ctx context.Context, req models.SlotRequest) (models.ExistingSlotEntries, error) {
	var found models.ExistingSlotEntries
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		found.Section, err = s.entries.GetBySlot(gctx, nil, req.SectionID, req.DayOfWeek, req.PeriodNumber)
		return err
	})
	g.Go(func() (err error) {
		found.Teacher, err = s.entries.GetTeacherSchedule(gctx, nil, req.TeacherID, req.DayOfWeek, req.PeriodNumber)
		return err
	})
	if req.RoomNumber.IsAssigned() {
		g.Go(func() (err error) {
			found.Room, err = s.entries.GetByRoomAndSlot(gctx, nil, req.RoomNumber, req.DayOfWeek, req.PeriodNumber)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return models.ExistingSlotEntries{}, err
	}
	return found, nil
}

// ensureAvailable rejects the entry's slot when occupied by anything but excludeID.
func (s *TimetableService) ensureAvailable(ctx context.Context, entry *models.TimeTableEntry, excludeID string) error {
	req := models.SlotRequest{
		SectionID:    entry.SectionID,
		TeacherID:    entry.TeacherID,
		RoomNumber:   entry.RoomNumber,
		DayOfWeek:    entry.DayOfWeek,
		PeriodNumber: entry.PeriodNumber,
	}
	existing, err := s.lookupSlot(ctx, req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load slot occupants")
	}
	existing = existing.Without(excludeID)
	verdict := s.availability.CheckAvailability(req, existing.Section, existing.Teacher, existing.Room)
	if verdict.IsAvailable {
		return nil
	}
	return translateDomainError(&models.TimeTableConflictError{
		ConflictingEntryID: verdict.Conflicts[0].ConflictingEntryID,
		DayOfWeek:          entry.DayOfWeek,
		PeriodNumber:       entry.PeriodNumber,
		Conflicts:          verdict.Conflicts,
	}, "")
}

// publish drops this node's cached weeks before handing events to the
// dispatcher, so a read that follows the write never sees the old week.
func (s *TimetableService) publish(ctx context.Context, events ...models.TimeTableEvent) {
	for _, event := range events {
		if err := s.cache.InvalidateTimetable(ctx, event.SectionID, event.AffectedTeacherIDs...); err != nil {
			s.logger.Warn("inline cache invalidation failed", zap.String("event_id", event.ID), zap.Error(err))
		}
	}
	if s.publisher == nil || len(events) == 0 {
		return
	}
	if err := s.publisher.Publish(ctx, events...); err != nil {
		s.logger.Warn("failed to publish timetable events", zap.Int("events", len(events)), zap.Error(err))
	}
}

func parseWindow(startRaw, endRaw string) (models.TimePeriod, error) {
	start, err := models.ParseTimeOfDay(startRaw)
	if err != nil {
		return models.TimePeriod{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid startTime")
	}
	end, err := models.ParseTimeOfDay(endRaw)
	if err != nil {
		return models.TimePeriod{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid endTime")
	}
	return models.TimePeriod{Start: start, End: end}, nil
}

func validateMappings(sectionID string, subjects []models.SectionSubjectMapping) error {
	if len(subjects) == 0 {
		return &models.InvalidSubjectError{SectionID: sectionID, Reason: "no subjects are mapped to the section"}
	}
	for _, subject := range subjects {
		if subject.TeacherID == "" {
			return &models.TeacherNotAssignedError{SectionID: sectionID, SubjectID: subject.SubjectID}
		}
	}
	return nil
}

func mappingTeachers(subjects []models.SectionSubjectMapping) []string {
	seen := map[string]bool{}
	var ids []string
	for _, subject := range subjects {
		if subject.TeacherID == "" || seen[subject.TeacherID] {
			continue
		}
		seen[subject.TeacherID] = true
		ids = append(ids, subject.TeacherID)
	}
	return ids
}

func sectionEntries(entries []models.TimeTableEntry, sectionID string) []models.TimeTableEntry {
	var own []models.TimeTableEntry
	for _, entry := range entries {
		if entry.SectionID == sectionID && entry.IsActive() {
			own = append(own, entry)
		}
	}
	return own
}

// translateDomainError maps domain errors to API errors carrying their codes.
func translateDomainError(err error, fallback string) error {
	var (
		appErr       *appErrors.Error
		dayErr       *models.InvalidDayOfWeekError
		periodErr    *models.InvalidPeriodNumberError
		durationErr  *models.MinimumPeriodDurationError
		roomErr      *models.InvalidRoomNumberError
		sectionErr   *models.InvalidSectionError
		subjectErr   *models.InvalidSubjectError
		teacherErr   *models.TeacherNotAssignedError
		conflictErr  *models.TimeTableConflictError
		cancelledErr *models.TimeTableEntryCancelledError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.As(err, &dayErr):
		return wrapAs(err, appErrors.ErrInvalidDayOfWeek)
	case errors.As(err, &periodErr):
		return wrapAs(err, appErrors.ErrInvalidPeriodNumber)
	case errors.As(err, &durationErr):
		return wrapAs(err, appErrors.ErrMinimumPeriodDuration)
	case errors.As(err, &roomErr):
		return wrapAs(err, appErrors.ErrInvalidRoomNumber)
	case errors.As(err, &sectionErr):
		return wrapAs(err, appErrors.ErrInvalidSection)
	case errors.As(err, &subjectErr):
		return wrapAs(err, appErrors.ErrInvalidSubject)
	case errors.As(err, &teacherErr):
		return wrapAs(err, appErrors.ErrTeacherNotAssigned)
	case errors.As(err, &conflictErr):
		return wrapAs(err, appErrors.ErrTimeTableConflict).WithDetails(conflictErr)
	case errors.As(err, &cancelledErr):
		return wrapAs(err, appErrors.ErrEntryCancelled)
	}
	message := err.Error()
	if fallback != "" {
		message = fallback + ": " + message
	}
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func translateWriteError(err error, message string) error {
	if errors.Is(err, repository.ErrSlotTaken) {
		return appErrors.Wrap(err, appErrors.ErrTimeTableConflict.Code, appErrors.ErrTimeTableConflict.Status, "timetable slot was taken concurrently")
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, message)
}

func wrapAs(err error, base *appErrors.Error) *appErrors.Error {
	return appErrors.Wrap(err, base.Code, base.Status, err.Error())
}
