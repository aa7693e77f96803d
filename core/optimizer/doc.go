// Package optimizer computes the economically optimal charge and discharge
// schedule of a single battery over a price forecast.
//
// An optimization runs in five stages: battery parameters are normalized into
// energy bounds, the forecast is cut down to the horizon starting at the
// current index, a mixed-integer program is formulated over that horizon, the
// program is handed to a milp.Solver and the solved values are turned into a
// per-step schedule.
//
// The package performs no I/O. Every call builds a fresh problem, so an
// Optimizer can be shared between goroutines.
package optimizer
