// Package stats implements the fixed set of association tests used by the
// analysis layer: ordinary least squares, logistic regression, Pearson and
// Spearman correlation, one-way ANOVA and the Kruskal-Wallis H-test.
//
// All procedures are deterministic. Linear algebra and distribution
// functions come from gonum.
package stats

import (
	"errors"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat/distuv"
)

var (
	ErrSingular      = errors.New("design matrix is singular")
	ErrNoVariance    = errors.New("input has no variance")
	ErrNotConverged  = errors.New("model did not converge")
	ErrSeparation    = errors.New("outcome is perfectly separated by the predictors")
	ErrDimension     = errors.New("mismatched input lengths")
	ErrTooFewSamples = errors.New("too few observations")
)

// ConfidenceLevel is the coverage of every reported confidence interval.
const ConfidenceLevel = 0.95

// Coefficient is one estimated model term.
type Coefficient struct {
	Name      string
	Estimate  float64
	StdErr    float64
	Statistic float64
	PValue    float64
	CILower   float64
	CIUpper   float64
}

// Rank returns the 1-based ranks of x, assigning tied values the average of
// the ranks they span.
func Rank(x []float64) []float64 {
	idx := make([]int, len(x))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return x[idx[a]] < x[idx[b]] })

	ranks := make([]float64, len(x))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && x[idx[j+1]] == x[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}
	return ranks
}

// tieSum returns sum(t^3 - t) over groups of tied values in x.
func tieSum(x []float64) float64 {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	var sum float64
	for i := 0; i < len(sorted); {
		j := i
		for j+1 < len(sorted) && sorted[j+1] == sorted[i] {
			j++
		}
		t := float64(j - i + 1)
		sum += t*t*t - t
		i = j + 1
	}
	return sum
}

// BenjaminiHochberg returns FDR-adjusted p-values (q-values) in the input
// order. NaN inputs are skipped and yield NaN.
func BenjaminiHochberg(p []float64) []float64 {
	out := make([]float64, len(p))
	idx := make([]int, 0, len(p))
	for i, v := range p {
		out[i] = math.NaN()
		if !math.IsNaN(v) {
			idx = append(idx, i)
		}
	}
	m := len(idx)
	if m == 0 {
		return out
	}
	sort.SliceStable(idx, func(a, b int) bool { return p[idx[a]] < p[idx[b]] })

	running := 1.0
	for r := m - 1; r >= 0; r-- {
		q := p[idx[r]] * float64(m) / float64(r+1)
		if q < running {
			running = q
		}
		out[idx[r]] = math.Min(running, 1)
	}
	return out
}

func twoSidedT(est, se float64, dist distuv.StudentsT) (float64, float64) {
	switch {
	case se == 0 && est == 0:
		return math.NaN(), math.NaN()
	case se == 0:
		return math.Copysign(math.Inf(1), est), 0
	}
	t := est / se
	return t, 2 * dist.Survival(math.Abs(t))
}

func twoSidedZ(est, se float64) (float64, float64) {
	switch {
	case se == 0 && est == 0:
		return math.NaN(), math.NaN()
	case se == 0:
		return math.Copysign(math.Inf(1), est), 0
	}
	z := est / se
	return z, 2 * distuv.UnitNormal.Survival(math.Abs(z))
}

func criticalZ() float64 {
	return distuv.UnitNormal.Quantile(1 - (1-ConfidenceLevel)/2)
}

// designRows prepends an intercept column to the regressor columns and
// returns the design in row-major form.
func designRows(n int, cols [][]float64) [][]float64 {
	rows := make([][]float64, n)
	for i := 0; i < n; i++ {
		row := make([]float64, len(cols)+1)
		row[0] = 1
		for j, c := range cols {
			row[j+1] = c[i]
		}
		rows[i] = row
	}
	return rows
}

func checkColumns(n int, cols [][]float64, names []string) error {
	if len(names) != len(cols) {
		return ErrDimension
	}
	for _, c := range cols {
		if len(c) != n {
			return ErrDimension
		}
	}
	return nil
}
