package solver

import (
	"os/exec"

	"github.com/kilianp07/battopt/core/factory"
	"github.com/kilianp07/battopt/core/milp"
)

// lookPath resolves the cbc executable for the auto backend. Tests replace it.
var lookPath = exec.LookPath

// init registers the built-in backends.
func init() {
	_ = milp.RegisterSolver("gonum", newGonum)
	_ = milp.RegisterSolver("cbc", newCBC)

	// auto prefers cbc when the binary is installed. Options of either backend
	// may be given; the other backend's keys are ignored.
	_ = milp.RegisterSolver("auto", func(conf map[string]any) (milp.Solver, error) {
		var o CBCOptions
		if err := factory.Decode(conf, &o); err != nil {
			return nil, err
		}
		o.SetDefaults()
		if path, err := lookPath(o.Path); err == nil {
			o.Path = path
			return NewCBC(o), nil
		}
		return newGonum(conf)
	})
}

func newGonum(conf map[string]any) (milp.Solver, error) {
	var o BnBOptions
	if err := factory.Decode(conf, &o); err != nil {
		return nil, err
	}
	return NewBranchAndBound(o), nil
}

func newCBC(conf map[string]any) (milp.Solver, error) {
	var o CBCOptions
	if err := factory.Decode(conf, &o); err != nil {
		return nil, err
	}
	return NewCBC(o), nil
}
