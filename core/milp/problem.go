package milp

import (
	"errors"
	"fmt"
	"math"
)

// Sense is the optimization direction.
type Sense int

const (
	Minimize Sense = iota
	Maximize
)

// Op is the relation of a linear constraint.
type Op int

const (
	LessEq Op = iota
	Equal
	GreaterEq
)

// String returns the LP file notation of the relation.
func (o Op) String() string {
	switch o {
	case LessEq:
		return "<="
	case Equal:
		return "="
	case GreaterEq:
		return ">="
	default:
		return "?"
	}
}

// Var is a decision variable. Lower must be finite; Upper may be +Inf.
type Var struct {
	Name    string
	Lower   float64
	Upper   float64
	Integer bool
}

// Term is coef * x[Var].
type Term struct {
	Var  int
	Coef float64
}

// Constraint is sum(terms) Op RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Op    Op
	RHS   float64
}

// Problem is a mixed-integer linear program.
type Problem struct {
	Name        string
	Sense       Sense
	Vars        []Var
	Objective   []Term
	Constraints []Constraint
}

// ErrInvalidProblem is returned by Validate.
var ErrInvalidProblem = errors.New("invalid problem")

// NewProblem returns an empty problem.
func NewProblem(name string, sense Sense) *Problem {
	return &Problem{Name: name, Sense: sense}
}

// AddVar appends a variable and returns its index.
func (p *Problem) AddVar(name string, lower, upper float64, integer bool) int {
	p.Vars = append(p.Vars, Var{Name: name, Lower: lower, Upper: upper, Integer: integer})
	return len(p.Vars) - 1
}

// AddBinary appends a 0/1 variable and returns its index.
func (p *Problem) AddBinary(name string) int {
	return p.AddVar(name, 0, 1, true)
}

// AddConstraint appends a linear constraint.
func (p *Problem) AddConstraint(name string, op Op, rhs float64, terms ...Term) {
	p.Constraints = append(p.Constraints, Constraint{Name: name, Terms: terms, Op: op, RHS: rhs})
}

// SetObjective replaces the objective terms.
func (p *Problem) SetObjective(terms ...Term) {
	p.Objective = terms
}

// Evaluate returns the objective value for the assignment x.
func (p *Problem) Evaluate(x []float64) float64 {
	var v float64
	for _, t := range p.Objective {
		v += t.Coef * x[t.Var]
	}
	return v
}

// Validate checks variable references and bounds.
func (p *Problem) Validate() error {
	n := len(p.Vars)
	if n == 0 {
		return fmt.Errorf("%w: no variables", ErrInvalidProblem)
	}
	for i, v := range p.Vars {
		if math.IsNaN(v.Lower) || math.IsInf(v.Lower, 0) {
			return fmt.Errorf("%w: variable %d (%s) needs a finite lower bound", ErrInvalidProblem, i, v.Name)
		}
		if math.IsNaN(v.Upper) || math.IsInf(v.Upper, -1) {
			return fmt.Errorf("%w: variable %d (%s) has an invalid upper bound", ErrInvalidProblem, i, v.Name)
		}
	}
	check := func(where string, terms []Term) error {
		for _, t := range terms {
			if t.Var < 0 || t.Var >= n {
				return fmt.Errorf("%w: %s references unknown variable %d", ErrInvalidProblem, where, t.Var)
			}
			if math.IsNaN(t.Coef) || math.IsInf(t.Coef, 0) {
				return fmt.Errorf("%w: %s has a non-finite coefficient", ErrInvalidProblem, where)
			}
		}
		return nil
	}
	if err := check("objective", p.Objective); err != nil {
		return err
	}
	for _, c := range p.Constraints {
		if err := check("constraint "+c.Name, c.Terms); err != nil {
			return err
		}
		if math.IsNaN(c.RHS) || math.IsInf(c.RHS, 0) {
			return fmt.Errorf("%w: constraint %s has a non-finite right-hand side", ErrInvalidProblem, c.Name)
		}
	}
	return nil
}

// Feasible reports whether x satisfies bounds, integrality and constraints
// within tol.
func (p *Problem) Feasible(x []float64, tol float64) bool {
	if len(x) != len(p.Vars) {
		return false
	}
	for i, v := range p.Vars {
		if x[i] < v.Lower-tol || x[i] > v.Upper+tol {
			return false
		}
		if v.Integer && math.Abs(x[i]-math.Round(x[i])) > tol {
			return false
		}
	}
	for _, c := range p.Constraints {
		var lhs float64
		for _, t := range c.Terms {
			lhs += t.Coef * x[t.Var]
		}
		switch c.Op {
		case LessEq:
			if lhs > c.RHS+tol {
				return false
			}
		case GreaterEq:
			if lhs < c.RHS-tol {
				return false
			}
		case Equal:
			if math.Abs(lhs-c.RHS) > tol {
				return false
			}
		}
	}
	return true
}
