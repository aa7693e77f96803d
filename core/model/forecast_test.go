package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseForecastNumericAndStringPrices(t *testing.T) {
	payload := `{"data":[
		{"index":0,"hour":22,"date":"2025-01-02","adjustedPrice":0.2512},
		{"index":1,"hour":23,"date":"2025-01-02","tibberTotal":"0.3000","adjustedPrice":"0.1875"}
	]}`
	f, err := ParseForecast([]byte(payload))
	require.NoError(t, err)
	require.Len(t, f.Data, 2)
	assert.InDelta(t, 0.2512, float64(f.Data[0].AdjustedPrice), 1e-12)
	assert.InDelta(t, 0.1875, float64(f.Data[1].AdjustedPrice), 1e-12)
	assert.Equal(t, 23, f.Data[1].Hour)
	assert.Equal(t, "2025-01-02", f.Data[1].Date)
}

func TestParseForecastErrors(t *testing.T) {
	cases := map[string]string{
		"malformed":   `{"data":[`,
		"missing key": `{"prices":[]}`,
		"bad price":   `{"data":[{"index":0,"hour":0,"date":"d","adjustedPrice":"abc"}]}`,
		"nan price":   `{"data":[{"index":0,"hour":0,"date":"d","adjustedPrice":"NaN"}]}`,
		"no price":    `{"data":[{"index":0,"hour":0,"date":"d"}]}`,
		"not object":  `{"data":[42]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseForecast([]byte(payload))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidForecast))
		})
	}
}

func TestForecastByIndexSortsAndDeduplicates(t *testing.T) {
	f := Forecast{Data: []ForecastEntry{
		{Index: 5, AdjustedPrice: 1},
		{Index: 2, AdjustedPrice: 2},
		{Index: 5, AdjustedPrice: 3},
	}}
	got := f.ByIndex()
	require.Len(t, got, 2)
	assert.Equal(t, 2, got[0].Index)
	assert.Equal(t, 5, got[1].Index)
	assert.Equal(t, Price(3), got[1].AdjustedPrice)
}
