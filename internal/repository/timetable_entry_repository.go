package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const timetableEntryColumns = `id, section_id, subject_id, teacher_id, day_of_week, period_number, start_time, end_time,
room_number, status, cancel_reason, cancelled_at, created_at, updated_at`

// ErrSlotTaken reports a write rejected by the active-slot unique indexes.
var ErrSlotTaken = errors.New("timetable slot already taken")

// TimetableEntryRepository persists timetable entries.
type TimetableEntryRepository struct {
	db *sqlx.DB
}

// NewTimetableEntryRepository constructs the repository.
func NewTimetableEntryRepository(db *sqlx.DB) *TimetableEntryRepository {
	return &TimetableEntryRepository{db: db}
}

func (r *TimetableEntryRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// FindByID returns an entry regardless of status.
func (r *TimetableEntryRepository) FindByID(ctx context.Context, exec sqlx.ExtContext, id string) (*models.TimeTableEntry, error) {
	query := `SELECT ` + timetableEntryColumns + ` FROM timetable_entries WHERE id = $1`
	var entry models.TimeTableEntry
	if err := sqlx.GetContext(ctx, r.exec(exec), &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// GetBySlot returns the active entry of a section at a day and period, or nil.
func (r *TimetableEntryRepository) GetBySlot(ctx context.Context, exec sqlx.ExtContext, sectionID string, day models.DayOfWeek, period int) (*models.TimeTableEntry, error) {
	query := `SELECT ` + timetableEntryColumns + ` FROM timetable_entries
WHERE section_id = $1 AND day_of_week = $2 AND period_number = $3 AND status = 'ACTIVE'`
	return r.getOptional(ctx, exec, "get section slot", query, sectionID, day, period)
}

// GetTeacherSchedule returns the active entry a teacher has at a day and period, or nil.
func (r *TimetableEntryRepository) GetTeacherSchedule(ctx context.Context, exec sqlx.ExtContext, teacherID string, day models.DayOfWeek, period int) (*models.TimeTableEntry, error) {
	query := `SELECT ` + timetableEntryColumns + ` FROM timetable_entries
WHERE teacher_id = $1 AND day_of_week = $2 AND period_number = $3 AND status = 'ACTIVE'`
	return r.getOptional(ctx, exec, "get teacher slot", query, teacherID, day, period)
}

// GetByRoomAndSlot returns the active entry holding a room at a day and period, or nil.
func (r *TimetableEntryRepository) GetByRoomAndSlot(ctx context.Context, exec sqlx.ExtContext, room models.RoomNumber, day models.DayOfWeek, period int) (*models.TimeTableEntry, error) {
	if !room.IsAssigned() {
		return nil, nil
	}
	query := `SELECT ` + timetableEntryColumns + ` FROM timetable_entries
WHERE room_number = $1 AND day_of_week = $2 AND period_number = $3 AND status = 'ACTIVE'`
	return r.getOptional(ctx, exec, "get room slot", query, room, day, period)
}

func (r *TimetableEntryRepository) getOptional(ctx context.Context, exec sqlx.ExtContext, label, query string, args ...interface{}) (*models.TimeTableEntry, error) {
	var entry models.TimeTableEntry
	if err := sqlx.GetContext(ctx, r.exec(exec), &entry, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", label, err)
	}
	return &entry, nil
}

// GetBySectionID lists the active entries of a section ordered by day and period.
func (r *TimetableEntryRepository) GetBySectionID(ctx context.Context, exec sqlx.ExtContext, sectionID string) ([]models.TimeTableEntry, error) {
	query := `SELECT ` + timetableEntryColumns + ` FROM timetable_entries
WHERE section_id = $1 AND status = 'ACTIVE' ORDER BY day_of_week ASC, period_number ASC`
	var entries []models.TimeTableEntry
	if err := sqlx.SelectContext(ctx, r.exec(exec), &entries, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section timetable: %w", err)
	}
	return entries, nil
}

// ListByTeacher lists the active entries of a teacher ordered by day and period.
func (r *TimetableEntryRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.TimeTableEntry, error) {
	query := `SELECT ` + timetableEntryColumns + ` FROM timetable_entries
WHERE teacher_id = $1 AND status = 'ACTIVE' ORDER BY day_of_week ASC, period_number ASC`
	var entries []models.TimeTableEntry
	if err := r.db.SelectContext(ctx, &entries, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher timetable: %w", err)
	}
	return entries, nil
}

// ListActiveForConflicts preloads the active entries that may collide with a generation run:
// the section's own, the given teachers' and the given rooms'.
func (r *TimetableEntryRepository) ListActiveForConflicts(ctx context.Context, exec sqlx.ExtContext, sectionID string, teacherIDs []string, rooms []models.RoomNumber) ([]models.TimeTableEntry, error) {
	roomValues := make([]string, 0, len(rooms))
	for _, room := range rooms {
		if room.IsAssigned() {
			roomValues = append(roomValues, string(room))
		}
	}
	query := `SELECT ` + timetableEntryColumns + ` FROM timetable_entries
WHERE status = 'ACTIVE' AND (section_id = $1 OR teacher_id = ANY($2) OR (room_number <> '' AND room_number = ANY($3)))
ORDER BY day_of_week ASC, period_number ASC, created_at ASC`
	var entries []models.TimeTableEntry
	if err := sqlx.SelectContext(ctx, r.exec(exec), &entries, query, sectionID, pq.Array(teacherIDs), pq.Array(roomValues)); err != nil {
		return nil, fmt.Errorf("list conflicting entries: %w", err)
	}
	return entries, nil
}

// Create inserts a single entry.
func (r *TimetableEntryRepository) Create(ctx context.Context, exec sqlx.ExtContext, entry *models.TimeTableEntry) error {
	return r.BulkCreate(ctx, exec, []*models.TimeTableEntry{entry})
}

// BulkCreate inserts entries one statement at a time inside the caller's transaction.
func (r *TimetableEntryRepository) BulkCreate(ctx context.Context, exec sqlx.ExtContext, entries []*models.TimeTableEntry) error {
	if len(entries) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO timetable_entries (id, section_id, subject_id, teacher_id, day_of_week, period_number, start_time, end_time,
    room_number, status, cancel_reason, cancelled_at, created_at, updated_at)
VALUES (:id, :section_id, :subject_id, :teacher_id, :day_of_week, :period_number, :start_time, :end_time,
    :room_number, :status, :cancel_reason, :cancelled_at, :created_at, :updated_at)`

	for _, entry := range entries {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		entry.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, entry); err != nil {
			return wrapSlotWrite("insert timetable entry", err)
		}
	}
	return nil
}

// Update persists subject, teacher, window and room of an entry.
func (r *TimetableEntryRepository) Update(ctx context.Context, exec sqlx.ExtContext, entry *models.TimeTableEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `
UPDATE timetable_entries
SET subject_id = :subject_id, teacher_id = :teacher_id, start_time = :start_time, end_time = :end_time,
    room_number = :room_number, updated_at = :updated_at
WHERE id = :id AND status = 'ACTIVE'`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry)
	if err != nil {
		return wrapSlotWrite("update timetable entry", err)
	}
	return expectAffected(res, entry.ID)
}

// Cancel stores the cancelled state of an entry.
func (r *TimetableEntryRepository) Cancel(ctx context.Context, exec sqlx.ExtContext, entry *models.TimeTableEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `
UPDATE timetable_entries
SET status = :status, cancel_reason = :cancel_reason, cancelled_at = :cancelled_at, updated_at = :updated_at
WHERE id = :id AND status = 'ACTIVE'`
	res, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, entry)
	if err != nil {
		return fmt.Errorf("cancel timetable entry: %w", err)
	}
	return expectAffected(res, entry.ID)
}

// CancelBySection cancels every active entry of a section and returns how many changed.
func (r *TimetableEntryRepository) CancelBySection(ctx context.Context, exec sqlx.ExtContext, sectionID, reason string) (int64, error) {
	const query = `
UPDATE timetable_entries
SET status = 'CANCELLED', cancel_reason = $2, cancelled_at = $3, updated_at = $3
WHERE section_id = $1 AND status = 'ACTIVE'`
	res, err := r.exec(exec).ExecContext(ctx, query, sectionID, reason, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("cancel section timetable: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("cancel section timetable rows: %w", err)
	}
	return affected, nil
}

// LockSection serialises writers of one section until the transaction ends.
func (r *TimetableEntryRepository) LockSection(ctx context.Context, exec sqlx.ExtContext, sectionID string) error {
	if _, err := r.exec(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, sectionID); err != nil {
		return fmt.Errorf("lock section %s: %w", sectionID, err)
	}
	return nil
}

func wrapSlotWrite(label string, err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("%s: %w", label, ErrSlotTaken)
	}
	return fmt.Errorf("%s: %w", label, err)
}

func expectAffected(res sql.Result, id string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable entry rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("timetable entry %s: %w", id, sql.ErrNoRows)
	}
	return nil
}
