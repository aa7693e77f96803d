package solver

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/kilianp07/battopt/core/milp"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// BnBOptions tunes the branch-and-bound search.
type BnBOptions struct {
	// Tolerance is the relative gap under which a node cannot improve the
	// incumbent and is pruned.
	Tolerance float64 `json:"tolerance"`
	// IntegralityTolerance is the distance to the nearest integer accepted as
	// integral.
	IntegralityTolerance float64 `json:"integrality_tolerance"`
	// SimplexTolerance is passed to lp.Simplex.
	SimplexTolerance float64 `json:"simplex_tolerance"`
	MaxNodes         int     `json:"max_nodes"`
}

// SetDefaults fills zero fields.
func (o *BnBOptions) SetDefaults() {
	if o.Tolerance <= 0 {
		o.Tolerance = 1e-9
	}
	if o.IntegralityTolerance <= 0 {
		o.IntegralityTolerance = 1e-6
	}
	if o.SimplexTolerance <= 0 {
		o.SimplexTolerance = 1e-8
	}
	if o.MaxNodes <= 0 {
		o.MaxNodes = 20000
	}
}

// simplexFunc is the signature of lp.Simplex.
type simplexFunc func(c []float64, A mat.Matrix, b []float64, tol float64, initialBasic []int) (float64, []float64, error)

// simplex points to the LP routine. It can be overridden in tests to simulate
// solver failures.
var simplex simplexFunc = lp.Simplex

// errOverdetermined is reported when a relaxation has more rows than columns
// after presolve, which lp.Simplex does not accept.
var errOverdetermined = errors.New("more equality rows than columns")

// feasibilityTolerance bounds the row violation accepted from a rounded point.
const feasibilityTolerance = 1e-6

// BranchAndBound solves mixed-integer programs by depth-first branch-and-bound
// over LP relaxations. It keeps no state between calls.
type BranchAndBound struct {
	opts BnBOptions
}

// NewBranchAndBound returns a solver using opts. Zero fields take defaults.
func NewBranchAndBound(opts BnBOptions) *BranchAndBound {
	opts.SetDefaults()
	return &BranchAndBound{opts: opts}
}

// row is a constraint with duplicate terms merged.
type row struct {
	terms []milp.Term
	op    milp.Op
	rhs   float64
}

type node struct {
	lower, upper []float64
	// bound is the parent's relaxation objective in minimization form.
	bound float64
}

type relaxation struct {
	x   []float64
	obj float64
	err error
}

// Solve implements milp.Solver. A relaxation that fails for another reason
// than infeasibility leaves part of the tree unexplored, so such a search
// never reports an optimum.
func (b *BranchAndBound) Solve(ctx context.Context, p *milp.Problem) (milp.Solution, error) {
	if err := p.Validate(); err != nil {
		return milp.Solution{Status: milp.StatusNotSolved}, fmt.Errorf("%w: %w", ErrSolverFailed, err)
	}

	cost := make([]float64, len(p.Vars))
	sign := 1.0
	if p.Sense == milp.Maximize {
		sign = -1
	}
	for _, t := range p.Objective {
		cost[t.Var] += sign * t.Coef
	}
	rows := mergeRows(p.Constraints)
	occ := occurrences(rows, len(p.Vars))
	solve := simplex

	root := node{
		lower: make([]float64, len(p.Vars)),
		upper: make([]float64, len(p.Vars)),
		bound: math.Inf(-1),
	}
	for i, v := range p.Vars {
		root.lower[i], root.upper[i] = v.Lower, v.Upper
	}

	var (
		stack   = []node{root}
		best    = math.Inf(1)
		bestX   []float64
		nodes   int
		failure error
	)
	for len(stack) > 0 {
		if ctx.Err() != nil {
			return b.finish(p, milp.StatusTimedOut, bestX, nodes), nil
		}
		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if nd.bound >= best-b.gap(best) {
			continue
		}
		if nodes >= b.opts.MaxNodes {
			return b.finish(p, milp.StatusNotSolved, bestX, nodes), ErrNodeLimit
		}
		nodes++

		r, ok := b.relaxWithin(ctx, solve, cost, rows, nd.lower, nd.upper)
		if !ok {
			return b.finish(p, milp.StatusTimedOut, bestX, nodes), nil
		}
		switch {
		case errors.Is(r.err, lp.ErrInfeasible):
			continue
		case errors.Is(r.err, lp.ErrUnbounded):
			return milp.Solution{Status: milp.StatusUnbounded, Nodes: nodes}, nil
		case r.err != nil:
			if failure == nil {
				failure = r.err
			}
			continue
		}
		if r.obj >= best-b.gap(best) {
			continue
		}

		j := b.branchVar(p, r.x)
		if j < 0 {
			best, bestX = r.obj, r.x
			continue
		}
		if y, obj, ok := b.roundToIncumbent(p, rows, occ, cost, r.x, nd.lower, nd.upper); ok && obj < best {
			best, bestX = obj, y
			if r.obj >= best-b.gap(best) {
				continue
			}
		}
		down := node{lower: nd.lower, upper: clone(nd.upper), bound: r.obj}
		down.upper[j] = math.Floor(r.x[j])
		up := node{lower: clone(nd.lower), upper: nd.upper, bound: r.obj}
		up.lower[j] = math.Ceil(r.x[j])
		// Last pushed is explored first.
		stack = append(stack, down, up)
	}

	if failure != nil {
		return milp.Solution{Status: milp.StatusNotSolved, Nodes: nodes}, fmt.Errorf("%w: %w", ErrSolverFailed, failure)
	}
	if bestX == nil {
		return milp.Solution{Status: milp.StatusInfeasible, Nodes: nodes}, nil
	}
	return b.finish(p, milp.StatusOptimal, bestX, nodes), nil
}

// relaxWithin runs one relaxation and gives up when ctx ends first. The
// abandoned simplex finishes in the background and its result is dropped.
func (b *BranchAndBound) relaxWithin(ctx context.Context, solve simplexFunc, cost []float64, rows []row, lower, upper []float64) (relaxation, bool) {
	done := make(chan relaxation, 1)
	go func() {
		x, obj, err := b.relax(solve, cost, rows, lower, upper)
		done <- relaxation{x: x, obj: obj, err: err}
	}()
	select {
	case <-ctx.Done():
		return relaxation{}, false
	case r := <-done:
		return r, true
	}
}

func (b *BranchAndBound) gap(best float64) float64 {
	if math.IsInf(best, 0) {
		return 0
	}
	return b.opts.Tolerance * math.Max(1, math.Abs(best))
}

// branchVar returns the most fractional integer variable or -1.
func (b *BranchAndBound) branchVar(p *milp.Problem, x []float64) int {
	idx, worst := -1, b.opts.IntegralityTolerance
	for i, v := range p.Vars {
		if !v.Integer {
			continue
		}
		if f := math.Abs(x[i] - math.Round(x[i])); f > worst {
			idx, worst = i, f
		}
	}
	return idx
}

// occurrence is one appearance of a variable in a merged row.
type occurrence struct {
	row  int
	coef float64
}

func occurrences(rows []row, n int) [][]occurrence {
	out := make([][]occurrence, n)
	for k, r := range rows {
		for _, t := range r.terms {
			out[t.Var] = append(out[t.Var], occurrence{row: k, coef: t.Coef})
		}
	}
	return out
}

// roundToIncumbent rounds the fractional integer variables of a relaxation
// one at a time, down when every row holding the variable stays satisfied and
// up otherwise. A variable that fits neither way waits until its neighbours
// are rounded. The point is returned only when every variable found a value.
func (b *BranchAndBound) roundToIncumbent(p *milp.Problem, rows []row, occ [][]occurrence, cost, x, lower, upper []float64) ([]float64, float64, bool) {
	y := clone(x)
	lhs := make([]float64, len(rows))
	for k, r := range rows {
		for _, t := range r.terms {
			lhs[k] += t.Coef * y[t.Var]
		}
	}
	var pending []int
	for i, v := range p.Vars {
		if v.Integer && math.Abs(y[i]-math.Round(y[i])) > b.opts.IntegralityTolerance {
			pending = append(pending, i)
		}
	}

	try := func(i int, v float64) bool {
		if v < lower[i]-b.opts.IntegralityTolerance || v > upper[i]+b.opts.IntegralityTolerance {
			return false
		}
		delta := v - y[i]
		for _, o := range occ[i] {
			r := rows[o.row]
			if !holds(lhs[o.row]+o.coef*delta, r.op, r.rhs, feasibilityTolerance*math.Max(1, math.Abs(r.rhs))) {
				return false
			}
		}
		for _, o := range occ[i] {
			lhs[o.row] += o.coef * delta
		}
		y[i] = v
		return true
	}

	for len(pending) > 0 {
		var waiting []int
		for _, i := range pending {
			if try(i, math.Floor(y[i])) || try(i, math.Ceil(y[i])) {
				continue
			}
			waiting = append(waiting, i)
		}
		if len(waiting) == len(pending) {
			return nil, 0, false
		}
		pending = waiting
	}

	var obj float64
	for j, v := range y {
		obj += cost[j] * v
	}
	return y, obj, true
}

// finish snaps integer values, clamps to the original bounds and evaluates the
// objective in the problem's own sense.
func (b *BranchAndBound) finish(p *milp.Problem, status milp.Status, x []float64, nodes int) milp.Solution {
	sol := milp.Solution{Status: status, Nodes: nodes}
	if x == nil {
		return sol
	}
	vals := make([]float64, len(x))
	for i, v := range p.Vars {
		val := x[i]
		if v.Integer {
			val = math.Round(val)
		}
		vals[i] = math.Min(math.Max(val, v.Lower), v.Upper)
	}
	sol.Values = vals
	sol.Objective = p.Evaluate(vals)
	return sol
}

// leRow is a row in "terms <= rhs" form over variables shifted to their
// lower bound.
type leRow struct {
	terms []milp.Term
	rhs   float64
}

// lessEqForms rewrites rows as shifted "<=" rows. Equalities give two rows.
func lessEqForms(rows []row, lower []float64) []leRow {
	out := make([]leRow, 0, len(rows))
	for _, r := range rows {
		rhs := r.rhs
		for _, t := range r.terms {
			rhs -= t.Coef * lower[t.Var]
		}
		neg := make([]milp.Term, len(r.terms))
		for i, t := range r.terms {
			neg[i] = milp.Term{Var: t.Var, Coef: -t.Coef}
		}
		switch r.op {
		case milp.LessEq:
			out = append(out, leRow{terms: r.terms, rhs: rhs})
		case milp.GreaterEq:
			out = append(out, leRow{terms: neg, rhs: -rhs})
		default:
			out = append(out, leRow{terms: r.terms, rhs: rhs}, leRow{terms: neg, rhs: -rhs})
		}
	}
	return out
}

// cappedByRows reports the free variables whose upper bound already follows
// from the rows, so the relaxation needs no bound row for them.
//
// The first pass uses rows whose free terms are all nonnegative: with every
// shifted variable at least zero, a*y <= rhs caps y. The second pass allows
// negative terms on variables capped by the first pass only, so no bound is
// dropped on the strength of another dropped bound.
func (b *BranchAndBound) cappedByRows(rows []row, lower, upper []float64, col []int) []bool {
	forms := lessEqForms(rows, lower)
	room := func(j int) float64 { return upper[j] - lower[j] }
	within := func(limit float64, j int) bool {
		return limit <= room(j)+b.opts.Tolerance*math.Max(1, math.Abs(room(j)))
	}

	byRows := make([]bool, len(lower))
	for _, f := range forms {
		nonneg := true
		for _, t := range f.terms {
			if col[t.Var] >= 0 && t.Coef < 0 {
				nonneg = false
				break
			}
		}
		if !nonneg {
			continue
		}
		for _, t := range f.terms {
			if col[t.Var] >= 0 && t.Coef > 0 && within(f.rhs/t.Coef, t.Var) {
				byRows[t.Var] = true
			}
		}
	}

	capped := cloneBools(byRows)
	for _, f := range forms {
		for _, t := range f.terms {
			if col[t.Var] < 0 || t.Coef <= 0 || capped[t.Var] {
				continue
			}
			rest, ok := 0.0, true
			for _, o := range f.terms {
				if o.Var == t.Var || col[o.Var] < 0 || o.Coef >= 0 {
					continue
				}
				if !byRows[o.Var] || math.IsInf(upper[o.Var], 1) {
					ok = false
					break
				}
				rest += o.Coef * room(o.Var)
			}
			if ok && within((f.rhs-rest)/t.Coef, t.Var) {
				capped[t.Var] = true
			}
		}
	}
	return capped
}

// relax solves the LP relaxation with the given bounds in minimization form.
//
// Each variable is shifted to its lower bound (x = l + y, y >= 0). Fixed
// variables are substituted out, finite upper bounds the rows do not already
// imply become rows y <= u - l, inequalities get slack columns and rows with
// a negative right-hand side are negated, giving the standard form lp.Simplex
// expects.
func (b *BranchAndBound) relax(solve simplexFunc, cost []float64, rows []row, lower, upper []float64) ([]float64, float64, error) {
	n := len(lower)
	col := make([]int, n)
	ncol := 0
	for j := range lower {
		if upper[j] < lower[j]-b.opts.IntegralityTolerance {
			return nil, 0, lp.ErrInfeasible
		}
		if upper[j] <= lower[j] {
			col[j] = -1
			continue
		}
		col[j] = ncol
		ncol++
	}

	type denseRow struct {
		coef []float64
		op   milp.Op
		rhs  float64
	}
	var dense []denseRow
	for _, r := range rows {
		coef := make([]float64, ncol)
		rhs := r.rhs
		for _, t := range r.terms {
			rhs -= t.Coef * lower[t.Var]
			if c := col[t.Var]; c >= 0 {
				coef[c] += t.Coef
			}
		}
		nz := false
		for _, v := range coef {
			if v != 0 {
				nz = true
				break
			}
		}
		if !nz {
			if !holds(0, r.op, rhs, b.opts.Tolerance*math.Max(1, math.Abs(r.rhs))) {
				return nil, 0, lp.ErrInfeasible
			}
			continue
		}
		dense = append(dense, denseRow{coef: coef, op: r.op, rhs: rhs})
	}
	capped := b.cappedByRows(rows, lower, upper, col)
	for j := range lower {
		c := col[j]
		if c < 0 || math.IsInf(upper[j], 1) || capped[j] {
			continue
		}
		coef := make([]float64, ncol)
		coef[c] = 1
		dense = append(dense, denseRow{coef: coef, op: milp.LessEq, rhs: upper[j] - lower[j]})
	}

	// Columns that appear in no row sit at their lower bound unless their cost
	// pulls them to an infinite upper bound.
	used := make([]bool, ncol)
	for _, r := range dense {
		for c, v := range r.coef {
			if v != 0 {
				used[c] = true
			}
		}
	}
	final := make([]int, ncol)
	nused := 0
	for j := range lower {
		c := col[j]
		if c < 0 {
			continue
		}
		if !used[c] {
			if cost[j] < 0 {
				return nil, 0, lp.ErrUnbounded
			}
			final[c] = -1
			continue
		}
		final[c] = nused
		nused++
	}

	x := clone(lower)
	m := len(dense)
	if m > 0 {
		nslack := 0
		for _, r := range dense {
			if r.op != milp.Equal {
				nslack++
			}
		}
		width := nused + nslack
		if m > width {
			return nil, 0, errOverdetermined
		}

		data := make([]float64, m*width)
		rhs := make([]float64, m)
		slack := nused
		for i, r := range dense {
			line := data[i*width : (i+1)*width]
			for c, v := range r.coef {
				if final[c] >= 0 {
					line[final[c]] = v
				}
			}
			switch r.op {
			case milp.LessEq:
				line[slack] = 1
				slack++
			case milp.GreaterEq:
				line[slack] = -1
				slack++
			}
			rhs[i] = r.rhs
			if rhs[i] < 0 {
				rhs[i] = -rhs[i]
				for k := range line {
					line[k] = -line[k]
				}
			}
		}
		c := make([]float64, width)
		for j := range lower {
			if col[j] >= 0 && final[col[j]] >= 0 {
				c[final[col[j]]] = cost[j]
			}
		}

		_, y, err := solve(c, mat.NewDense(m, width, data), rhs, b.opts.SimplexTolerance, nil)
		if err != nil {
			return nil, 0, err
		}
		for j := range lower {
			if col[j] >= 0 && final[col[j]] >= 0 {
				x[j] += y[final[col[j]]]
			}
		}
	}

	var obj float64
	for j, v := range x {
		obj += cost[j] * v
	}
	return x, obj, nil
}

func mergeRows(cons []milp.Constraint) []row {
	out := make([]row, 0, len(cons))
	for _, c := range cons {
		pos := make(map[int]int, len(c.Terms))
		terms := make([]milp.Term, 0, len(c.Terms))
		for _, t := range c.Terms {
			if i, ok := pos[t.Var]; ok {
				terms[i].Coef += t.Coef
				continue
			}
			pos[t.Var] = len(terms)
			terms = append(terms, t)
		}
		out = append(out, row{terms: terms, op: c.Op, rhs: c.RHS})
	}
	return out
}

func holds(lhs float64, op milp.Op, rhs, tol float64) bool {
	switch op {
	case milp.LessEq:
		return lhs <= rhs+tol
	case milp.GreaterEq:
		return lhs >= rhs-tol
	default:
		return math.Abs(lhs-rhs) <= tol
	}
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func cloneBools(v []bool) []bool {
	out := make([]bool, len(v))
	copy(out, v)
	return out
}
