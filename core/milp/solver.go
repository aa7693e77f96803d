package milp

import (
	"context"
	"errors"
	"fmt"
)

// ErrLimitReached is wrapped by backends that stop on a work limit before
// proving optimality. It accompanies a non-optimal status.
var ErrLimitReached = errors.New("solver limit reached")

// Status is the outcome of a solve.
type Status int

const (
	StatusNotSolved Status = iota
	StatusOptimal
	StatusInfeasible
	StatusUnbounded
	StatusUndefined
	StatusTimedOut
)

// String returns the canonical status name.
func (s Status) String() string {
	switch s {
	case StatusNotSolved:
		return "Not Solved"
	case StatusOptimal:
		return "Optimal"
	case StatusInfeasible:
		return "Infeasible"
	case StatusUnbounded:
		return "Unbounded"
	case StatusUndefined:
		return "Undefined"
	case StatusTimedOut:
		return "Timed Out"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(b []byte) error {
	for st := StatusNotSolved; st <= StatusTimedOut; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown solver status %q", b)
}

// Solution holds the solver output. Values and Objective are only meaningful
// when Status is StatusOptimal.
type Solution struct {
	Status    Status
	Values    []float64
	Objective float64
	// Nodes is the number of subproblems explored, when the backend reports it.
	Nodes int
}

// Solver solves a Problem. Implementations must be safe for concurrent use
// and must not retain the problem after returning. A cancelled or expired
// context yields StatusTimedOut.
type Solver interface {
	Solve(ctx context.Context, p *Problem) (Solution, error)
}

// SolverFunc adapts a function to the Solver interface.
type SolverFunc func(ctx context.Context, p *Problem) (Solution, error)

// Solve calls f.
func (f SolverFunc) Solve(ctx context.Context, p *Problem) (Solution, error) { return f(ctx, p) }
