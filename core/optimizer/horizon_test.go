package optimizer

import (
	"errors"
	"testing"

	"github.com/kilianp07/battopt/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func forecastOf(prices ...float64) model.Forecast {
	f := model.Forecast{Data: make([]model.ForecastEntry, len(prices))}
	for i, p := range prices {
		f.Data[i] = model.ForecastEntry{Index: i, Hour: i % 24, Date: "2025-04-01", AdjustedPrice: model.Price(p)}
	}
	return f
}

func TestBuildHorizon(t *testing.T) {
	f := forecastOf(10, 20, 30, 40)

	h, err := BuildHorizon(f, 1)
	require.NoError(t, err)
	require.Equal(t, 3, h.Len())
	assert.Equal(t, 1, h.OriginalIndex(0))
	assert.Equal(t, 3, h.OriginalIndex(2))

	h, err = BuildHorizon(f, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, h.Len(), "last index gives a single step")

	_, err = BuildHorizon(f, 4)
	assert.True(t, errors.Is(err, ErrEmptyHorizon))

	h, err = BuildHorizon(f, -5)
	require.NoError(t, err)
	assert.Equal(t, 4, h.Len())
}

func TestBuildHorizonOrdersAndCompactsGaps(t *testing.T) {
	f := model.Forecast{Data: []model.ForecastEntry{
		{Index: 12, Hour: 12, AdjustedPrice: 3},
		{Index: 7, Hour: 7, AdjustedPrice: 1},
		{Index: 9, Hour: 9, AdjustedPrice: 2},
		{Index: 9, Hour: 9, AdjustedPrice: 5},
	}}
	h, err := BuildHorizon(f, 8)
	require.NoError(t, err)
	require.Equal(t, 2, h.Len())
	assert.Equal(t, 9, h.OriginalIndex(0))
	assert.Equal(t, model.Price(5), h.Steps[0].AdjustedPrice)
	assert.Equal(t, 12, h.OriginalIndex(1))
}

func TestBuildHorizonEmptyForecast(t *testing.T) {
	_, err := BuildHorizon(model.Forecast{}, 0)
	assert.True(t, errors.Is(err, ErrEmptyHorizon))
}
