package model

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidBattery is returned when battery parameters are missing or not usable.
var ErrInvalidBattery = errors.New("invalid battery parameters")

// BatteryParams describes the physical limits of a stationary battery.
type BatteryParams struct {
	CapacityKWh         float64 `json:"capacity_kwh"`
	MaxRateKW           float64 `json:"max_rate_kw"`
	MinSOCPercent       float64 `json:"min_soc_percent"`
	EfficiencyRoundtrip float64 `json:"efficiency_roundtrip"`
}

// DefaultBatteryParams returns the parameters of a typical residential battery.
func DefaultBatteryParams() BatteryParams {
	return BatteryParams{
		CapacityKWh:         7.4,
		MaxRateKW:           0.8,
		MinSOCPercent:       10,
		EfficiencyRoundtrip: 0.90,
	}
}

// Validate checks that every parameter is a finite number and that capacity
// and rate are usable. The sign of the efficiency is left to the normalizer.
func (p BatteryParams) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"capacity_kwh", p.CapacityKWh},
		{"max_rate_kw", p.MaxRateKW},
		{"min_soc_percent", p.MinSOCPercent},
		{"efficiency_roundtrip", p.EfficiencyRoundtrip},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) {
			return fmt.Errorf("%w: %s is not a finite number", ErrInvalidBattery, f.name)
		}
	}
	if p.CapacityKWh <= 0 {
		return fmt.Errorf("%w: capacity_kwh must be positive", ErrInvalidBattery)
	}
	if p.MaxRateKW < 0 {
		return fmt.Errorf("%w: max_rate_kw must not be negative", ErrInvalidBattery)
	}
	return nil
}

// PartialBatteryParams mirrors BatteryParams with optional fields so that a
// missing key can be told apart from an explicit zero.
type PartialBatteryParams struct {
	CapacityKWh         *float64 `json:"capacity_kwh"`
	MaxRateKW           *float64 `json:"max_rate_kw"`
	MinSOCPercent       *float64 `json:"min_soc_percent"`
	EfficiencyRoundtrip *float64 `json:"efficiency_roundtrip"`
}

// Resolve returns the complete parameter set or an error naming the first
// missing key.
func (p PartialBatteryParams) Resolve() (BatteryParams, error) {
	var out BatteryParams
	fields := []struct {
		name string
		src  *float64
		dst  *float64
	}{
		{"capacity_kwh", p.CapacityKWh, &out.CapacityKWh},
		{"max_rate_kw", p.MaxRateKW, &out.MaxRateKW},
		{"min_soc_percent", p.MinSOCPercent, &out.MinSOCPercent},
		{"efficiency_roundtrip", p.EfficiencyRoundtrip, &out.EfficiencyRoundtrip},
	}
	for _, f := range fields {
		if f.src == nil {
			return BatteryParams{}, fmt.Errorf("%w: missing key %q", ErrInvalidBattery, f.name)
		}
		*f.dst = *f.src
	}
	return out, nil
}
