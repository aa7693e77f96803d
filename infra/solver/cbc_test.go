package solver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"

	"github.com/kilianp07/battopt/core/milp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteLP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLP(&buf, integerProgram()))
	out := buf.String()

	for _, want := range []string{
		"\\ Problem: ip\n",
		"Maximize\n OBJ: + 5 x0 + 4 x1\n",
		"Subject To\n r0: + 6 x0 + 4 x1 <= 24\n r1: + 1 x0 + 2 x1 <= 6\n",
		"Bounds\n 0 <= x0 <= 10\n 0 <= x1 <= 10\n",
		"Generals\n  x0 x1\n",
	} {
		assert.Contains(t, out, want)
	}
	assert.True(t, strings.HasSuffix(out, "End\n"))
}

func TestWriteLP_BoundsAndLongRows(t *testing.T) {
	p := milp.NewProblem("rows", milp.Minimize)
	var terms []milp.Term
	for i := 0; i < 10; i++ {
		terms = append(terms, milp.Term{Var: p.AddVar(fmt.Sprintf("v%d", i), 0, posInf, false), Coef: -1.5})
	}
	p.AddVar("fixed", 3, 3, false)
	p.AddConstraint("wide", milp.GreaterEq, -2, terms...)

	var buf bytes.Buffer
	require.NoError(t, WriteLP(&buf, p))
	out := buf.String()
	assert.Contains(t, out, "Minimize\n OBJ: 0 x0\n")
	assert.Contains(t, out, " - 1.5 x7\n   - 1.5 x8")
	assert.Contains(t, out, ">= -2\n")
	assert.Contains(t, out, " x0 >= 0\n")
	assert.Contains(t, out, " x10 = 3\n")
	assert.NotContains(t, out, "Generals")
}

func TestParseSolution(t *testing.T) {
	src := "Optimal - objective value 20.00000000\n" +
		"      0 x0                       4                      5\n" +
		"**    1 x1                   1e-12                      4\n" +
		"      7 x9                       2                      0\n"
	sol, err := parseSolution(strings.NewReader(src), 2)
	require.NoError(t, err)
	assert.Equal(t, milp.StatusOptimal, sol.Status)
	assert.Equal(t, []float64{4, 1e-12}, sol.Values)
}

func TestParseSolution_Errors(t *testing.T) {
	_, err := parseSolution(strings.NewReader(""), 1)
	assert.Error(t, err)
	_, err = parseSolution(strings.NewReader("Optimal\n 0 x0 abc 0\n"), 1)
	assert.Error(t, err)
}

func TestParseStatus(t *testing.T) {
	cases := map[string]milp.Status{
		"Optimal - objective value 1":             milp.StatusOptimal,
		"Infeasible - objective value 0":          milp.StatusInfeasible,
		"Integer infeasible - objective value 0":  milp.StatusInfeasible,
		"Unbounded - objective value 0":           milp.StatusUnbounded,
		"Stopped on time - objective value 12":    milp.StatusTimedOut,
		"Stopped on iterations - objective value": milp.StatusNotSolved,
		"garbage":                                 milp.StatusUndefined,
	}
	for line, want := range cases {
		assert.Equal(t, want, parseStatus(line), line)
	}
}

// fakeCBC runs this test binary as the cbc process. The helper writes the
// given solution text to the path following -solution.
func fakeCBC(solution string, exit int) func(ctx context.Context, name string, args ...string) *exec.Cmd {
	return func(ctx context.Context, name string, args ...string) *exec.Cmd {
		cs := append([]string{"-test.run=TestHelperProcess", "--", name}, args...)
		cmd := exec.CommandContext(ctx, os.Args[0], cs...)
		cmd.Env = append(os.Environ(),
			"GO_WANT_HELPER_PROCESS=1",
			"FAKE_CBC_SOLUTION="+solution,
			fmt.Sprintf("FAKE_CBC_EXIT=%d", exit),
		)
		return cmd
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	args := os.Args
	for i, a := range args {
		if a == "-solution" && i+1 < len(args) {
			_ = os.WriteFile(args[i+1], []byte(os.Getenv("FAKE_CBC_SOLUTION")), 0o600)
		}
	}
	if os.Getenv("FAKE_CBC_EXIT") != "0" {
		fmt.Fprintln(os.Stderr, "cbc: licence trouble")
		os.Exit(1)
	}
	os.Exit(0)
}

func TestCBC_SolveWithFakeProcess(t *testing.T) {
	orig := execCommand
	defer func() { execCommand = orig }()

	execCommand = fakeCBC("Optimal - objective value 20\n 0 x0 3.9999999 0\n 1 x1 0 0\n", 0)
	sol, err := NewCBC(CBCOptions{TempDir: t.TempDir()}).Solve(context.Background(), integerProgram())
	require.NoError(t, err)
	assert.Equal(t, milp.StatusOptimal, sol.Status)
	assert.Equal(t, []float64{4, 0}, sol.Values)
	assert.Equal(t, 20.0, sol.Objective)

	execCommand = fakeCBC("Infeasible - objective value 0\n", 0)
	sol, err = NewCBC(CBCOptions{}).Solve(context.Background(), integerProgram())
	require.NoError(t, err)
	assert.Equal(t, milp.StatusInfeasible, sol.Status)
	assert.Nil(t, sol.Values)

	execCommand = fakeCBC("", 1)
	_, err = NewCBC(CBCOptions{}).Solve(context.Background(), integerProgram())
	assert.True(t, errors.Is(err, ErrSolverFailed))
	assert.Contains(t, err.Error(), "licence trouble")
}

func TestCBC_KeepFiles(t *testing.T) {
	orig := execCommand
	defer func() { execCommand = orig }()
	execCommand = fakeCBC("Optimal - objective value 0\n", 0)

	dir := t.TempDir()
	_, err := NewCBC(CBCOptions{TempDir: dir, KeepFiles: true}).Solve(context.Background(), integerProgram())
	require.NoError(t, err)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	_, err = os.Stat(dir + "/" + entries[0].Name() + "/model.lp")
	assert.NoError(t, err)
}

func TestCBC_Integration(t *testing.T) {
	path, err := exec.LookPath("cbc")
	if err != nil {
		t.Skip("cbc not installed")
	}
	sol, err := NewCBC(CBCOptions{Path: path, TimeLimitSeconds: 10}).Solve(context.Background(), integerProgram())
	require.NoError(t, err)
	require.Equal(t, milp.StatusOptimal, sol.Status)
	assert.InDelta(t, 20, sol.Objective, 1e-6)
}
