package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// SectionRepository reads sections and their subject assignments.
type SectionRepository struct {
	db *sqlx.DB
}

// NewSectionRepository constructs a SectionRepository.
func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

// FindByID fetches a section. sql.ErrNoRows is returned untouched.
func (r *SectionRepository) FindByID(ctx context.Context, id string) (*models.Section, error) {
	const query = `SELECT id, class_id, name, home_room, created_at, updated_at FROM sections WHERE id = $1`
	var section models.Section
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// ListSubjects returns the subject mappings of a section in assignment order.
func (r *SectionRepository) ListSubjects(ctx context.Context, sectionID string) ([]models.SectionSubjectMapping, error) {
	const query = `
SELECT ss.subject_id, s.name AS subject_name, s.code AS subject_code,
       COALESCE(ss.teacher_id, '') AS teacher_id, COALESCE(t.full_name, '') AS teacher_name,
       ss.weekly_periods, ss.is_mandatory
FROM section_subjects ss
JOIN subjects s ON s.id = ss.subject_id
LEFT JOIN teachers t ON t.id = ss.teacher_id
WHERE ss.section_id = $1
ORDER BY ss.position ASC, ss.created_at ASC`
	var mappings []models.SectionSubjectMapping
	if err := r.db.SelectContext(ctx, &mappings, query, sectionID); err != nil {
		return nil, fmt.Errorf("list section subjects: %w", err)
	}
	return mappings, nil
}

// FindSubject returns one subject mapping of a section, or nil when the subject is not assigned.
func (r *SectionRepository) FindSubject(ctx context.Context, sectionID, subjectID string) (*models.SectionSubjectMapping, error) {
	const query = `
SELECT ss.subject_id, s.name AS subject_name, s.code AS subject_code,
       COALESCE(ss.teacher_id, '') AS teacher_id, COALESCE(t.full_name, '') AS teacher_name,
       ss.weekly_periods, ss.is_mandatory
FROM section_subjects ss
JOIN subjects s ON s.id = ss.subject_id
LEFT JOIN teachers t ON t.id = ss.teacher_id
WHERE ss.section_id = $1 AND ss.subject_id = $2
ORDER BY ss.position ASC
LIMIT 1`
	var mapping models.SectionSubjectMapping
	if err := r.db.GetContext(ctx, &mapping, query, sectionID, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find section subject: %w", err)
	}
	return &mapping, nil
}
