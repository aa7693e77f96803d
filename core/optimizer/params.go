package optimizer

import (
	"fmt"
	"math"

	"github.com/kilianp07/battopt/core/model"
)

// Bounds are the battery limits expressed in energy per step.
type Bounds struct {
	MinSOCKWh               float64 `json:"min_soc_kwh"`
	MaxSOCKWh               float64 `json:"max_soc_kwh"`
	InitialSOCKWh           float64 `json:"initial_soc_kwh"`
	OneWayEfficiency        float64 `json:"one_way_efficiency"`
	InverseOneWayEfficiency float64 `json:"inverse_one_way_efficiency"`
	MaxEnergyPerStep        float64 `json:"max_energy_per_step"`
	// InitialClamped is set when the requested initial SOC lay outside
	// [MinSOCKWh, MaxSOCKWh] and was moved onto the nearest bound.
	InitialClamped bool `json:"initial_clamped"`
}

// Normalize converts battery parameters and the initial SOC percentage into
// energy bounds. An out-of-range initial SOC is clamped rather than rejected.
// A min SOC above 100 percent is passed through and makes the program
// infeasible.
func Normalize(p model.BatteryParams, initialSOCPercent float64) (Bounds, error) {
	b := Bounds{
		MinSOCKWh:        p.CapacityKWh * p.MinSOCPercent / 100,
		MaxSOCKWh:        p.CapacityKWh,
		InitialSOCKWh:    p.CapacityKWh * initialSOCPercent / 100,
		MaxEnergyPerStep: p.MaxRateKW * StepHours,
	}
	if b.InitialSOCKWh < b.MinSOCKWh {
		b.InitialSOCKWh, b.InitialClamped = b.MinSOCKWh, true
	}
	if b.InitialSOCKWh > b.MaxSOCKWh {
		b.InitialSOCKWh, b.InitialClamped = b.MaxSOCKWh, true
	}

	if p.EfficiencyRoundtrip < 0 {
		return Bounds{}, fmt.Errorf("%w: efficiency_roundtrip %v", ErrDomain, p.EfficiencyRoundtrip)
	}
	b.OneWayEfficiency = math.Sqrt(p.EfficiencyRoundtrip)
	if b.OneWayEfficiency == 0 {
		return Bounds{}, fmt.Errorf("%w: efficiency_roundtrip %v", ErrDivision, p.EfficiencyRoundtrip)
	}
	b.InverseOneWayEfficiency = 1 / b.OneWayEfficiency
	return b, nil
}
