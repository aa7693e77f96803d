package optimizer

import (
	"errors"

	"github.com/kilianp07/battopt/core/model"
)

var (
	// ErrDomain is returned when the round-trip efficiency is negative.
	ErrDomain = errors.New("efficiency outside the square root domain")
	// ErrDivision is returned when the one-way efficiency is zero.
	ErrDivision = errors.New("zero one-way efficiency")
	// ErrEmptyHorizon is returned when no forecast entry is at or after the
	// current index.
	ErrEmptyHorizon = errors.New("empty optimization horizon")
)

// StatusText maps an optimization error to the status string reported to
// callers in place of a solver status.
func StatusText(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, model.ErrInvalidForecast):
		return "Error parsing forecast data: " + err.Error()
	case errors.Is(err, model.ErrInvalidBattery):
		return "Error parsing battery parameters: " + err.Error()
	case errors.Is(err, ErrDomain):
		return "Error calculating efficiency (sqrt negative?)"
	case errors.Is(err, ErrDivision):
		return "Error calculating efficiency (zero efficiency?)"
	case errors.Is(err, ErrEmptyHorizon):
		return "No future time steps found for optimization."
	default:
		return "Internal optimization error: " + err.Error()
	}
}
