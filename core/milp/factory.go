package milp

import "github.com/kilianp07/battopt/core/factory"

// DefaultSolverType is used when no solver type is configured. It picks cbc
// when the binary is on PATH and the gonum backend otherwise.
const DefaultSolverType = "auto"

var solverRegistry = factory.NewRegistry[Solver]()

// RegisterSolver adds a solver factory identified by name.
func RegisterSolver(name string, f factory.Factory[Solver]) error {
	return solverRegistry.Register(name, f)
}

// NewSolver creates a Solver from the provided configuration.
func NewSolver(cfg factory.ModuleConfig) (Solver, error) {
	if cfg.Type == "" {
		cfg.Type = DefaultSolverType
	}
	return solverRegistry.Create(cfg)
}

// SolverTypes lists the registered backends.
func SolverTypes() []string { return solverRegistry.Types() }
