package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrInvalidForecast is returned when a forecast payload cannot be decoded.
var ErrInvalidForecast = errors.New("invalid forecast data")

// Price is a price per kWh. It decodes from a JSON number or from a decimal
// string because the price table producer formats prices with fixed decimals.
// NaN and infinities are rejected.
type Price float64

// UnmarshalJSON implements json.Unmarshaler.
func (p *Price) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		d, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("price %q: %w", s, err)
		}
		*p = Price(d.InexactFloat64())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Price(v)
	return nil
}

// ForecastEntry is one slot of the adjusted price forecast.
type ForecastEntry struct {
	Index         int    `json:"index"`
	Hour          int    `json:"hour"`
	Date          string `json:"date"`
	AdjustedPrice Price  `json:"adjustedPrice"`
}

// Forecast is the ordered price forecast, wrapped as {"data": [...]} on the wire.
type Forecast struct {
	Data []ForecastEntry `json:"data"`
}

// ParseForecast decodes a forecast payload. A payload without a "data" key is
// rejected.
func ParseForecast(payload []byte) (Forecast, error) {
	var raw struct {
		Data *[]json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return Forecast{}, fmt.Errorf("%w: %v", ErrInvalidForecast, err)
	}
	if raw.Data == nil {
		return Forecast{}, fmt.Errorf("%w: missing key \"data\"", ErrInvalidForecast)
	}
	f := Forecast{Data: make([]ForecastEntry, 0, len(*raw.Data))}
	for i, item := range *raw.Data {
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(item, &fields); err != nil {
			return Forecast{}, fmt.Errorf("%w: entry %d: %v", ErrInvalidForecast, i, err)
		}
		for _, key := range []string{"index", "hour", "date", "adjustedPrice"} {
			if _, ok := fields[key]; !ok {
				return Forecast{}, fmt.Errorf("%w: entry %d: missing key %q", ErrInvalidForecast, i, key)
			}
		}
		var e ForecastEntry
		if err := json.Unmarshal(item, &e); err != nil {
			return Forecast{}, fmt.Errorf("%w: entry %d: %v", ErrInvalidForecast, i, err)
		}
		f.Data = append(f.Data, e)
	}
	return f, nil
}

// ByIndex returns the entries keyed by index, sorted ascending. When an index
// appears more than once the last entry wins.
func (f Forecast) ByIndex() []ForecastEntry {
	m := make(map[int]ForecastEntry, len(f.Data))
	for _, e := range f.Data {
		m[e.Index] = e
	}
	out := make([]ForecastEntry, 0, len(m))
	for _, e := range m {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
