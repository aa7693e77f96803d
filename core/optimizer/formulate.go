package optimizer

import (
	"fmt"

	"github.com/kilianp07/battopt/core/milp"
)

// formulation is the program for one horizon together with the variable
// indices of every step.
type formulation struct {
	problem       *milp.Problem
	charge        []int
	discharge     []int
	soc           []int
	isCharging    []int
	isDischarging []int
}

// formulate builds the schedule program:
//
//	maximize   sum_t (discharge_t - charge_t) * price_t
//	subject to soc_t = soc_{t-1} + charge_t*eta - discharge_t/eta
//	           charge_t <= isCharging_t * maxEnergy
//	           discharge_t <= isDischarging_t * maxEnergy
//	           isCharging_t + isDischarging_t <= 1
//
// with soc_{-1} the initial SOC and soc_t bounded by [min, max] directly.
func formulate(b Bounds, h Horizon) *formulation {
	n := h.Len()
	p := milp.NewProblem("Battery_Schedule_Optimization", milp.Maximize)
	f := &formulation{
		problem:       p,
		charge:        make([]int, n),
		discharge:     make([]int, n),
		soc:           make([]int, n),
		isCharging:    make([]int, n),
		isDischarging: make([]int, n),
	}

	objective := make([]milp.Term, 0, 2*n)
	for t := 0; t < n; t++ {
		f.charge[t] = p.AddVar(fmt.Sprintf("Charge_%d", t), 0, b.MaxEnergyPerStep, false)
		f.discharge[t] = p.AddVar(fmt.Sprintf("Discharge_%d", t), 0, b.MaxEnergyPerStep, false)
		f.soc[t] = p.AddVar(fmt.Sprintf("SOC_%d", t), b.MinSOCKWh, b.MaxSOCKWh, false)
		f.isCharging[t] = p.AddBinary(fmt.Sprintf("IsCharging_%d", t))
		f.isDischarging[t] = p.AddBinary(fmt.Sprintf("IsDischarging_%d", t))

		price := float64(h.Steps[t].AdjustedPrice)
		objective = append(objective,
			milp.Term{Var: f.discharge[t], Coef: price},
			milp.Term{Var: f.charge[t], Coef: -price},
		)
	}
	p.SetObjective(objective...)

	for t := 0; t < n; t++ {
		balance := []milp.Term{
			{Var: f.soc[t], Coef: 1},
			{Var: f.charge[t], Coef: -b.OneWayEfficiency},
			{Var: f.discharge[t], Coef: b.InverseOneWayEfficiency},
		}
		rhs := b.InitialSOCKWh
		if t > 0 {
			balance = append(balance, milp.Term{Var: f.soc[t-1], Coef: -1})
			rhs = 0
		}
		p.AddConstraint(fmt.Sprintf("SOC_Balance_%d", t), milp.Equal, rhs, balance...)

		p.AddConstraint(fmt.Sprintf("Charge_Rate_%d", t), milp.LessEq, 0,
			milp.Term{Var: f.charge[t], Coef: 1},
			milp.Term{Var: f.isCharging[t], Coef: -b.MaxEnergyPerStep})
		p.AddConstraint(fmt.Sprintf("Discharge_Rate_%d", t), milp.LessEq, 0,
			milp.Term{Var: f.discharge[t], Coef: 1},
			milp.Term{Var: f.isDischarging[t], Coef: -b.MaxEnergyPerStep})
		p.AddConstraint(fmt.Sprintf("Mutual_Exclusivity_%d", t), milp.LessEq, 1,
			milp.Term{Var: f.isCharging[t], Coef: 1},
			milp.Term{Var: f.isDischarging[t], Coef: 1})
	}
	return f
}
