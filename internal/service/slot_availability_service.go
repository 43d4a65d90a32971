package service

import (
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// SlotAvailabilityService decides whether a slot is free from already-fetched entries.
type SlotAvailabilityService struct {
	strategy ConflictDetectionStrategy
	metrics  *MetricsService
}

// NewSlotAvailabilityService wires the conflict strategy. A nil strategy uses the default.
func NewSlotAvailabilityService(strategy ConflictDetectionStrategy, metrics *MetricsService) *SlotAvailabilityService {
	if strategy == nil {
		strategy = DefaultConflictDetectionStrategy{}
	}
	return &SlotAvailabilityService{strategy: strategy, metrics: metrics}
}

// CheckAvailability is available iff the strategy reports no conflicts. Every reported conflict
// is counted. Callers updating an entry must leave that entry out of the three lookups.
func (s *SlotAvailabilityService) CheckAvailability(req models.SlotRequest, sectionEntry, teacherEntry, roomEntry *models.TimeTableEntry) models.SlotAvailabilityResult {
	result := s.Evaluate(req, sectionEntry, teacherEntry, roomEntry)
	for _, conflict := range result.Conflicts {
		s.metrics.RecordConflict(conflict.Type)
	}
	return result
}

// Evaluate returns the same verdict as CheckAvailability without recording metrics.
// The generator uses it while searching for a slot or a free room.
func (s *SlotAvailabilityService) Evaluate(req models.SlotRequest, sectionEntry, teacherEntry, roomEntry *models.TimeTableEntry) models.SlotAvailabilityResult {
	conflicts := s.strategy.DetectConflicts(req, models.ExistingSlotEntries{
		Section: sectionEntry,
		Teacher: teacherEntry,
		Room:    roomEntry,
	})
	return models.SlotAvailabilityResult{
		IsAvailable: len(conflicts) == 0,
		Conflicts:   conflicts,
	}
}
