package engine

import (
	"context"

	"github.com/easyarb/arbbot/internal/domain"
)

// StaticFees is a FeeStore backed by an in-memory table, used when no
// database is configured. The table comes from config and never changes at
// runtime.
type StaticFees map[string]domain.FeeSchedule

var _ domain.FeeStore = (StaticFees)(nil)

// GetFees returns the configured schedule for a venue.
func (s StaticFees) GetFees(_ context.Context, venueID string) (domain.FeeSchedule, error) {
	schedule, ok := s[venueID]
	if !ok {
		return domain.FeeSchedule{}, domain.ErrNotFound
	}
	return schedule, nil
}
