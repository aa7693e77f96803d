// Package solver provides milp.Solver backends.
//
// "gonum" runs a depth-first branch-and-bound over the gonum simplex method and
// needs no external tooling. "cbc" shells out to the COIN-OR CBC binary.
// "auto" uses cbc when the binary is found and gonum otherwise. All are
// registered in the milp solver registry on import.
package solver
