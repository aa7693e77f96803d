package solver

import (
	"errors"
	"fmt"

	"github.com/kilianp07/battopt/core/milp"
)

var (
	// ErrNodeLimit is returned when branch-and-bound exhausts its node budget
	// before proving optimality.
	ErrNodeLimit = fmt.Errorf("solver: node limit: %w", milp.ErrLimitReached)
	// ErrSolverFailed wraps backend failures that are not a solve status.
	ErrSolverFailed = errors.New("solver: backend failure")
)
