// Package milp describes mixed-integer linear programs independently of the
// backend that solves them.
//
// A Problem is built incrementally with AddVar and AddConstraint and handed to
// a Solver. Backends live in infra/solver.
package milp
