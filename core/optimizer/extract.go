package optimizer

import (
	"fmt"
	"math"
	"strings"

	"github.com/kilianp07/battopt/core/milp"
	"github.com/kilianp07/battopt/core/model"
)

// extraction is the caller-facing view of an optimal solution.
type extraction struct {
	schedule []model.ScheduleStep
	action   float64
	digest   string
}

// extract turns the solved values into the per-step schedule. Energies below
// the zero threshold are treated as solver noise and reported as a hold.
func extract(f *formulation, sol milp.Solution, b Bounds, h Horizon, capacity float64, cfg Config) extraction {
	var out extraction
	val := func(i int) float64 { return sol.Values[i] }

	c0, d0 := val(f.charge[0]), val(f.discharge[0])
	switch {
	case c0 > cfg.ZeroThresholdKWh:
		out.action = c0
	case d0 > cfg.ZeroThresholdKWh:
		out.action = -d0
	}

	var cumulative float64
	digest := make([]string, 0, cfg.DigestSteps)
	out.schedule = make([]model.ScheduleStep, h.Len())
	for t, e := range h.Steps {
		charge, discharge, soc := val(f.charge[t]), val(f.discharge[t]), val(f.soc[t])
		price := float64(e.AdjustedPrice)
		hourly := (discharge - charge) * price
		cumulative += hourly

		action, energy := model.ActionHold, 0.0
		switch {
		case charge > cfg.ZeroThresholdKWh:
			action, energy = model.ActionCharge, charge
		case discharge > cfg.ZeroThresholdKWh:
			action, energy = model.ActionDischarge, -discharge
		}
		rate := 0.0
		if b.MaxEnergyPerStep > 0 {
			rate = energy / b.MaxEnergyPerStep
		}

		out.schedule[t] = model.ScheduleStep{
			Index:            e.Index,
			Hour:             e.Hour,
			Date:             e.Date,
			Price:            price,
			Action:           action,
			EnergyKWh:        round(energy, 4),
			ChangeRate:       round(rate, 2),
			SOCEndPercent:    round(soc/capacity*100, 2),
			SOCEndKWh:        round(soc, 4),
			HourlySaving:     round(hourly, 4),
			CumulativeSaving: round(cumulative, 4),
		}

		if t < cfg.DigestSteps {
			switch action {
			case model.ActionCharge:
				digest = append(digest, fmt.Sprintf("Hour %d: Charge %.2f kWh", e.Hour, charge))
			case model.ActionDischarge:
				digest = append(digest, fmt.Sprintf("Hour %d: Discharge %.2f kWh", e.Hour, discharge))
			default:
				digest = append(digest, fmt.Sprintf("Hour %d: Hold", e.Hour))
			}
		}
	}
	out.digest = strings.Join(digest, " | ")
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}
