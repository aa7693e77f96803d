package milp

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProblemBuildAndEvaluate(t *testing.T) {
	p := NewProblem("t", Maximize)
	x := p.AddVar("x", 0, 4, false)
	y := p.AddBinary("y")
	p.SetObjective(Term{x, 2}, Term{y, 3})
	p.AddConstraint("c", LessEq, 0, Term{x, 1}, Term{y, -4})

	require.NoError(t, p.Validate())
	assert.Equal(t, 11.0, p.Evaluate([]float64{4, 1}))
	assert.True(t, p.Feasible([]float64{4, 1}, 1e-9))
	assert.False(t, p.Feasible([]float64{4, 0}, 1e-9), "x must be zero when y is zero")
	assert.False(t, p.Feasible([]float64{2, 0.5}, 1e-9), "y must be integral")
}

func TestProblemValidate(t *testing.T) {
	p := NewProblem("t", Minimize)
	require.Error(t, p.Validate())

	p.AddVar("free", math.Inf(-1), 1, false)
	assert.True(t, errors.Is(p.Validate(), ErrInvalidProblem))

	p = NewProblem("t", Minimize)
	p.AddVar("x", 0, math.Inf(1), false)
	p.AddConstraint("bad", LessEq, 1, Term{Var: 3, Coef: 1})
	assert.True(t, errors.Is(p.Validate(), ErrInvalidProblem))
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "Optimal", StatusOptimal.String())
	assert.Equal(t, "Not Solved", StatusNotSolved.String())
	assert.Equal(t, "Timed Out", StatusTimedOut.String())
	b, err := StatusInfeasible.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Infeasible", string(b))
}

func TestStatusUnmarshalText(t *testing.T) {
	var s Status
	require.NoError(t, s.UnmarshalText([]byte("Timed Out")))
	assert.Equal(t, StatusTimedOut, s)
	assert.Error(t, s.UnmarshalText([]byte("Solved-ish")))
}
