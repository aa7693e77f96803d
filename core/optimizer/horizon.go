package optimizer

import (
	"fmt"

	"github.com/kilianp07/battopt/core/model"
)

// Horizon is the zero-based sequence of forecast entries being planned.
// Step t maps to Steps[t].Index in the original forecast. Gaps between
// indices are planned as consecutive steps.
type Horizon struct {
	Steps []model.ForecastEntry
}

// Len returns the number of steps.
func (h Horizon) Len() int { return len(h.Steps) }

// OriginalIndex returns the forecast index of step t.
func (h Horizon) OriginalIndex(t int) int { return h.Steps[t].Index }

// BuildHorizon selects the entries whose index is at least currentIndex, in
// ascending index order.
func BuildHorizon(f model.Forecast, currentIndex int) (Horizon, error) {
	var h Horizon
	for _, e := range f.ByIndex() {
		if e.Index >= currentIndex {
			h.Steps = append(h.Steps, e)
		}
	}
	if len(h.Steps) == 0 {
		return Horizon{}, fmt.Errorf("%w: no entry at or after index %d", ErrEmptyHorizon, currentIndex)
	}
	return h, nil
}
