package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Correlation is a bivariate correlation estimate.
type Correlation struct {
	R       float64
	PValue  float64
	StdErr  float64 // on the Fisher-z scale
	CILower float64
	CIUpper float64
	N       int
}

// Pearson computes the product-moment correlation of x and y with a t-test
// p-value and a Fisher-z confidence interval.
func Pearson(x, y []float64) (*Correlation, error) {
	if err := checkPair(x, y); err != nil {
		return nil, err
	}
	return correlate(x, y, 1)
}

// Spearman computes the rank correlation of x and y. The confidence interval
// uses the Fieller-Hartley-Pearson variance 1.06/(n-3) on the Fisher-z scale.
func Spearman(x, y []float64) (*Correlation, error) {
	if err := checkPair(x, y); err != nil {
		return nil, err
	}
	return correlate(Rank(x), Rank(y), 1.06)
}

func checkPair(x, y []float64) error {
	if len(x) != len(y) {
		return ErrDimension
	}
	if len(x) < 4 {
		return ErrTooFewSamples
	}
	if constant(x) || constant(y) {
		return ErrNoVariance
	}
	return nil
}

func correlate(x, y []float64, varianceFactor float64) (*Correlation, error) {
	n := len(x)
	r := stat.Correlation(x, y, nil)
	r = math.Max(-1, math.Min(1, r))

	df := float64(n - 2)
	var p float64
	if math.Abs(r) < 1 {
		t := r * math.Sqrt(df/(1-r*r))
		p = 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(math.Abs(t))
	}

	se := math.Sqrt(varianceFactor / float64(n-3))
	crit := criticalZ()
	z := math.Atanh(r)
	return &Correlation{
		R:       r,
		PValue:  p,
		StdErr:  se,
		CILower: math.Tanh(z - crit*se),
		CIUpper: math.Tanh(z + crit*se),
		N:       n,
	}, nil
}

func constant(x []float64) bool {
	for _, v := range x[1:] {
		if v != x[0] {
			return false
		}
	}
	return true
}
