package solver

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/kilianp07/battopt/core/milp"
)

// CBCOptions configures the external CBC backend.
type CBCOptions struct {
	// Path to the cbc executable. Defaults to "cbc" resolved via PATH.
	Path             string  `json:"path"`
	TimeLimitSeconds float64 `json:"time_limit_seconds"`
	// KeepFiles leaves the model and solution files in TempDir for inspection.
	KeepFiles bool   `json:"keep_files"`
	TempDir   string `json:"temp_dir"`
}

// SetDefaults fills zero fields.
func (o *CBCOptions) SetDefaults() {
	if o.Path == "" {
		o.Path = "cbc"
	}
}

// execCommand builds the cbc process. Tests replace it.
var execCommand = exec.CommandContext

// CBC solves problems with the COIN-OR CBC command line solver. Every call
// runs its own process in its own temporary directory.
type CBC struct {
	opts CBCOptions
}

// NewCBC returns a CBC backend.
func NewCBC(opts CBCOptions) *CBC {
	opts.SetDefaults()
	return &CBC{opts: opts}
}

// Solve implements milp.Solver.
func (c *CBC) Solve(ctx context.Context, p *milp.Problem) (milp.Solution, error) {
	if err := p.Validate(); err != nil {
		return milp.Solution{Status: milp.StatusNotSolved}, fmt.Errorf("%w: %w", ErrSolverFailed, err)
	}
	dir, err := os.MkdirTemp(c.opts.TempDir, "battopt-cbc-")
	if err != nil {
		return milp.Solution{Status: milp.StatusNotSolved}, fmt.Errorf("%w: temp dir: %w", ErrSolverFailed, err)
	}
	if !c.opts.KeepFiles {
		defer os.RemoveAll(dir)
	}

	model := filepath.Join(dir, "model.lp")
	result := filepath.Join(dir, "solution.txt")
	if err := writeLPFile(model, p); err != nil {
		return milp.Solution{Status: milp.StatusNotSolved}, fmt.Errorf("%w: write model: %w", ErrSolverFailed, err)
	}

	args := []string{model}
	if c.opts.TimeLimitSeconds > 0 {
		args = append(args, "-sec", strconv.FormatFloat(c.opts.TimeLimitSeconds, 'f', -1, 64))
	}
	args = append(args, "-solve", "-printingOptions", "all", "-solution", result)
	out, runErr := execCommand(ctx, c.opts.Path, args...).CombinedOutput()
	if ctx.Err() != nil {
		return milp.Solution{Status: milp.StatusTimedOut}, nil
	}
	if runErr != nil {
		return milp.Solution{Status: milp.StatusNotSolved}, fmt.Errorf("%w: cbc: %w: %s", ErrSolverFailed, runErr, lastLine(out))
	}

	f, err := os.Open(result)
	if err != nil {
		return milp.Solution{Status: milp.StatusNotSolved}, fmt.Errorf("%w: read solution: %w", ErrSolverFailed, err)
	}
	defer f.Close()
	sol, err := parseSolution(f, len(p.Vars))
	if err != nil {
		return milp.Solution{Status: milp.StatusNotSolved}, fmt.Errorf("%w: %w", ErrSolverFailed, err)
	}
	if sol.Status != milp.StatusOptimal {
		sol.Values = nil
		return sol, nil
	}
	for i, v := range p.Vars {
		val := sol.Values[i]
		if v.Integer {
			val = math.Round(val)
		}
		sol.Values[i] = math.Min(math.Max(val, v.Lower), v.Upper)
	}
	sol.Objective = p.Evaluate(sol.Values)
	return sol, nil
}

func writeLPFile(path string, p *milp.Problem) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteLP(f, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

const termsPerLine = 8

// WriteLP writes p in CPLEX LP format. Variables are named x<i> and rows r<i>
// so that arbitrary problem names never need escaping.
func WriteLP(w io.Writer, p *milp.Problem) error {
	bw := bufio.NewWriter(w)
	if p.Name != "" {
		fmt.Fprintf(bw, "\\ Problem: %s\n", strings.ReplaceAll(p.Name, "\n", " "))
	}
	if p.Sense == milp.Maximize {
		bw.WriteString("Maximize\n")
	} else {
		bw.WriteString("Minimize\n")
	}
	bw.WriteString(" OBJ:")
	writeTerms(bw, p.Objective)
	bw.WriteString("\nSubject To\n")
	for i, c := range p.Constraints {
		fmt.Fprintf(bw, " r%d:", i)
		writeTerms(bw, c.Terms)
		fmt.Fprintf(bw, " %s %s\n", c.Op, formatNum(c.RHS))
	}

	bw.WriteString("Bounds\n")
	var ints []int
	for i, v := range p.Vars {
		switch {
		case v.Lower == v.Upper:
			fmt.Fprintf(bw, " x%d = %s\n", i, formatNum(v.Lower))
		case math.IsInf(v.Upper, 1):
			fmt.Fprintf(bw, " x%d >= %s\n", i, formatNum(v.Lower))
		default:
			fmt.Fprintf(bw, " %s <= x%d <= %s\n", formatNum(v.Lower), i, formatNum(v.Upper))
		}
		if v.Integer {
			ints = append(ints, i)
		}
	}
	if len(ints) > 0 {
		bw.WriteString("Generals\n")
		for k, i := range ints {
			if k%termsPerLine == 0 {
				if k > 0 {
					bw.WriteString("\n")
				}
				bw.WriteString(" ")
			}
			fmt.Fprintf(bw, " x%d", i)
		}
		bw.WriteString("\n")
	}
	bw.WriteString("End\n")
	return bw.Flush()
}

func writeTerms(w *bufio.Writer, terms []milp.Term) {
	if len(terms) == 0 {
		w.WriteString(" 0 x0")
		return
	}
	for k, t := range terms {
		if k > 0 && k%termsPerLine == 0 {
			w.WriteString("\n  ")
		}
		sign := "+"
		if t.Coef < 0 {
			sign = "-"
		}
		fmt.Fprintf(w, " %s %s x%d", sign, formatNum(math.Abs(t.Coef)), t.Var)
	}
}

func formatNum(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// parseSolution reads a CBC solution file. The first line carries the status,
// the following lines are "index name value reduced-cost", optionally prefixed
// with "**" for values outside their bounds.
func parseSolution(r io.Reader, nvars int) (milp.Solution, error) {
	sc := bufio.NewScanner(r)
	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return milp.Solution{}, err
		}
		return milp.Solution{}, fmt.Errorf("empty solution file")
	}
	sol := milp.Solution{Status: parseStatus(sc.Text()), Values: make([]float64, nvars)}
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) > 0 && fields[0] == "**" {
			fields = fields[1:]
		}
		if len(fields) < 3 || !strings.HasPrefix(fields[1], "x") {
			continue
		}
		idx, err := strconv.Atoi(fields[1][1:])
		if err != nil || idx < 0 || idx >= nvars {
			continue
		}
		val, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return milp.Solution{}, fmt.Errorf("variable %s: %w", fields[1], err)
		}
		sol.Values[idx] = val
	}
	return sol, sc.Err()
}

func parseStatus(line string) milp.Status {
	line = strings.TrimSpace(line)
	switch {
	case strings.HasPrefix(line, "Optimal"):
		return milp.StatusOptimal
	case strings.HasPrefix(line, "Infeasible"), strings.HasPrefix(line, "Integer infeasible"):
		return milp.StatusInfeasible
	case strings.HasPrefix(line, "Unbounded"):
		return milp.StatusUnbounded
	case strings.HasPrefix(line, "Stopped on time"):
		return milp.StatusTimedOut
	case strings.HasPrefix(line, "Stopped"):
		return milp.StatusNotSolved
	default:
		return milp.StatusUndefined
	}
}

func lastLine(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	return lines[len(lines)-1]
}
