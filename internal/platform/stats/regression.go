package stats

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// InterceptName is the name of the constant term in fitted models.
const InterceptName = "const"

// LinearFit is the result of an ordinary least squares fit.
type LinearFit struct {
	Coefficients []Coefficient // intercept first
	RSquared     float64
	AdjRSquared  float64
	N            int
	DF           int
}

// Coefficient returns the named term.
func (f *LinearFit) Coefficient(name string) (Coefficient, bool) {
	return findCoefficient(f.Coefficients, name)
}

// OLS fits y = b0 + sum(b_j * cols[j]) by ordinary least squares. names
// labels each regressor column.
func OLS(y []float64, cols [][]float64, names []string) (*LinearFit, error) {
	n := len(y)
	if err := checkColumns(n, cols, names); err != nil {
		return nil, err
	}
	p := len(cols) + 1
	if n <= p {
		return nil, ErrTooFewSamples
	}

	rows := designRows(n, cols)
	x := mat.NewDense(n, p, flatten(rows))

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, ErrSingular
	}

	yv := mat.NewVecDense(n, append([]float64(nil), y...))
	var xty mat.VecDense
	xty.MulVec(x.T(), yv)
	var beta mat.VecDense
	beta.MulVec(&inv, &xty)
	var fitted mat.VecDense
	fitted.MulVec(x, &beta)

	mean := stat.Mean(y, nil)
	var sse, sst float64
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		sse += r * r
		d := y[i] - mean
		sst += d * d
	}
	if sst == 0 {
		return nil, ErrNoVariance
	}

	df := n - p
	sigma2 := sse / float64(df)
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: float64(df)}
	crit := tdist.Quantile(1 - (1-ConfidenceLevel)/2)

	fit := &LinearFit{
		Coefficients: make([]Coefficient, p),
		N:            n,
		DF:           df,
	}
	for j := 0; j < p; j++ {
		b := beta.AtVec(j)
		se := math.Sqrt(math.Max(sigma2*inv.At(j, j), 0))
		t, pv := twoSidedT(b, se, tdist)
		fit.Coefficients[j] = Coefficient{
			Name:      termName(j, names),
			Estimate:  b,
			StdErr:    se,
			Statistic: t,
			PValue:    pv,
			CILower:   b - crit*se,
			CIUpper:   b + crit*se,
		}
	}
	fit.RSquared = math.Max(0, 1-sse/sst)
	fit.AdjRSquared = 1 - (1-fit.RSquared)*float64(n-1)/float64(df)
	return fit, nil
}

// LogisticFit is the result of a maximum-likelihood logistic regression.
type LogisticFit struct {
	Coefficients  []Coefficient // intercept first, log-odds scale
	N             int
	Iterations    int
	LogLikelihood float64
}

// Coefficient returns the named term.
func (f *LogisticFit) Coefficient(name string) (Coefficient, bool) {
	return findCoefficient(f.Coefficients, name)
}

const (
	logisticMaxIterations = 100
	logisticTolerance     = 1e-8
	// Coefficients beyond this magnitude on the log-odds scale only occur
	// when the likelihood has no finite maximum.
	logisticDivergence = 30
)

// Logistic fits a binary outcome (0/1) by iteratively reweighted least
// squares. Standard errors and confidence intervals are Wald intervals from
// the inverse Fisher information at convergence.
func Logistic(y []float64, cols [][]float64, names []string) (*LogisticFit, error) {
	n := len(y)
	if err := checkColumns(n, cols, names); err != nil {
		return nil, err
	}
	p := len(cols) + 1
	if n <= p {
		return nil, ErrTooFewSamples
	}
	for _, v := range y {
		if v != 0 && v != 1 {
			return nil, ErrDimension
		}
	}

	rows := designRows(n, cols)
	beta := make([]float64, p)
	var inv mat.Dense
	var ll float64

	for iter := 1; iter <= logisticMaxIterations; iter++ {
		info := mat.NewDense(p, p, nil)
		grad := mat.NewVecDense(p, nil)
		ll = 0
		for i, row := range rows {
			mu := sigmoid(dot(row, beta))
			w := mu * (1 - mu)
			ll += logLikelihoodTerm(y[i], mu)
			for a := 0; a < p; a++ {
				grad.SetVec(a, grad.AtVec(a)+(y[i]-mu)*row[a])
				for b := 0; b < p; b++ {
					info.Set(a, b, info.At(a, b)+w*row[a]*row[b])
				}
			}
		}
		if err := inv.Inverse(info); err != nil {
			if iter == 1 {
				return nil, ErrSingular
			}
			return nil, ErrSeparation
		}

		var step mat.VecDense
		step.MulVec(&inv, grad)
		var maxStep float64
		for j := 0; j < p; j++ {
			beta[j] += step.AtVec(j)
			maxStep = math.Max(maxStep, math.Abs(step.AtVec(j)))
			if math.Abs(beta[j]) > logisticDivergence {
				return nil, ErrSeparation
			}
		}
		if maxStep < logisticTolerance {
			return logisticResult(beta, &inv, names, n, iter, ll), nil
		}
	}
	return nil, ErrNotConverged
}

func logisticResult(beta []float64, inv *mat.Dense, names []string, n, iter int, ll float64) *LogisticFit {
	crit := criticalZ()
	fit := &LogisticFit{
		Coefficients:  make([]Coefficient, len(beta)),
		N:             n,
		Iterations:    iter,
		LogLikelihood: ll,
	}
	for j, b := range beta {
		se := math.Sqrt(math.Max(inv.At(j, j), 0))
		z, pv := twoSidedZ(b, se)
		fit.Coefficients[j] = Coefficient{
			Name:      termName(j, names),
			Estimate:  b,
			StdErr:    se,
			Statistic: z,
			PValue:    pv,
			CILower:   b - crit*se,
			CIUpper:   b + crit*se,
		}
	}
	return fit
}

func sigmoid(eta float64) float64 {
	if eta >= 0 {
		return 1 / (1 + math.Exp(-eta))
	}
	e := math.Exp(eta)
	return e / (1 + e)
}

func logLikelihoodTerm(y, mu float64) float64 {
	const eps = 1e-15
	mu = math.Min(math.Max(mu, eps), 1-eps)
	return y*math.Log(mu) + (1-y)*math.Log(1-mu)
}

func dot(a, b []float64) float64 {
	var s float64
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func flatten(rows [][]float64) []float64 {
	if len(rows) == 0 {
		return nil
	}
	out := make([]float64, 0, len(rows)*len(rows[0]))
	for _, r := range rows {
		out = append(out, r...)
	}
	return out
}

func termName(j int, names []string) string {
	if j == 0 {
		return InterceptName
	}
	return names[j-1]
}

func findCoefficient(cs []Coefficient, name string) (Coefficient, bool) {
	for _, c := range cs {
		if c.Name == name {
			return c, true
		}
	}
	return Coefficient{}, false
}
