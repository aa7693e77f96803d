package mqtt

import (
	"context"

	"github.com/kilianp07/battopt/core/model"
)

// ForecastSource fetches the latest raw price forecast document.
type ForecastSource interface {
	// FetchForecast blocks until a forecast payload is available or ctx is
	// done. The payload is returned undecoded.
	FetchForecast(ctx context.Context) ([]byte, error)
}

// SchedulePublisher publishes an optimal plan to downstream consumers.
type SchedulePublisher interface {
	// PublishSchedule sends the plan and returns the number of publish
	// attempts made.
	PublishSchedule(ctx context.Context, steps []model.ScheduleStep) (attempts int, err error)
}
