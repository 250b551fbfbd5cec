package association

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/pankbase/functional/internal/domain/cohort"
	"github.com/pankbase/functional/internal/platform/metrics"
	"github.com/pankbase/functional/internal/platform/stats"
)

// DefaultMinSampleMargin is the number of complete observations required
// beyond the parameter count.
const DefaultMinSampleMargin = 2

// Request names the columns of one run. Empty Outcomes means every trait.
type Request struct {
	Outcomes  []string
	Variables []string
	Controls  []string
	Method    Method
}

type Options struct {
	// Workers bounds the pairs evaluated at once. Zero means GOMAXPROCS.
	Workers int
	// MinSampleMargin is added to 1+len(controls) to form the minimum
	// sample. Negative values are treated as zero.
	MinSampleMargin int
}

// Engine evaluates association requests over a cohort frame. It holds no
// per-run state and is safe for concurrent use.
type Engine struct {
	workers int
	margin  int
	logger  zerolog.Logger
}

func NewEngine(opts Options, logger zerolog.Logger) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.MinSampleMargin < 0 {
		opts.MinSampleMargin = 0
	}
	return &Engine{
		workers: opts.Workers,
		margin:  opts.MinSampleMargin,
		logger:  logger.With().Str("component", "association").Logger(),
	}
}

type pair struct {
	outcome  *cohort.Column
	variable *cohort.Column
}

// Run evaluates every (variable, outcome) pair over the donors at rows.
// Request-level problems fail the call; pair-level problems are recorded in
// that pair's result.
func (e *Engine) Run(ctx context.Context, f *cohort.Frame, rows []int, req Request) (*Report, error) {
	start := time.Now()
	if !req.Method.Valid() {
		return nil, &InvalidRequestError{Reason: fmt.Sprintf("unknown method %q", req.Method)}
	}
	if len(req.Variables) == 0 {
		return nil, &InvalidRequestError{Reason: "at least one variable of interest is required"}
	}

	outcomes := req.Outcomes
	if len(outcomes) == 0 {
		for _, c := range f.ColumnsFrom(cohort.SourceTrait) {
			outcomes = append(outcomes, c.Name)
		}
		if len(outcomes) == 0 {
			return nil, &InvalidRequestError{Reason: "no outcomes requested and the dataset has no traits"}
		}
	}

	outcomeCols, err := resolve(f, "outcome", outcomes)
	if err != nil {
		return nil, err
	}
	variableCols, err := resolve(f, "variable", req.Variables)
	if err != nil {
		return nil, err
	}
	controlCols, err := resolve(f, "control variable", req.Controls)
	if err != nil {
		return nil, err
	}
	controls := make(map[string]bool, len(req.Controls))
	for _, c := range req.Controls {
		controls[c] = true
	}
	for _, v := range req.Variables {
		if controls[v] {
			return nil, &InvalidRequestError{Reason: fmt.Sprintf("%q is both a variable of interest and a control", v)}
		}
	}

	pairs := make([]pair, 0, len(variableCols)*len(outcomeCols))
	for _, v := range variableCols {
		for _, o := range outcomeCols {
			pairs = append(pairs, pair{outcome: o, variable: v})
		}
	}

	results := make([]Result, len(pairs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, p := range pairs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.evaluate(p, controlCols, rows, req.Method)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{
		Method:    req.Method,
		Outcomes:  append([]string(nil), outcomes...),
		Variables: append([]string(nil), req.Variables...),
		Controls:  append([]string{}, req.Controls...),
		Results:   results,
	}
	adjust(report.Results)
	for _, r := range report.Results {
		if r.OK() {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	elapsed := time.Since(start)
	metrics.ObserveAssociation(string(req.Method), report.Succeeded, report.Failed, elapsed)
	e.logger.Info().
		Str("method", string(req.Method)).
		Int("pairs", len(pairs)).
		Int("failed", report.Failed).
		Int("donors", len(rows)).
		Dur("elapsed", elapsed).
		Msg("association run complete")
	return report, nil
}

func resolve(f *cohort.Frame, kind string, names []string) ([]*cohort.Column, error) {
	out := make([]*cohort.Column, len(names))
	for i, n := range names {
		col, ok := f.Column(n)
		if !ok {
			return nil, &cohort.UnknownFieldError{Kind: kind, Name: n}
		}
		out[i] = col
	}
	return out, nil
}

// adjust fills Benjamini-Hochberg q-values across the successful pairs.
func adjust(results []Result) {
	var idx []int
	var p []float64
	for i, r := range results {
		if r.OK() && r.PValue != nil {
			idx = append(idx, i)
			p = append(p, *r.PValue)
		}
	}
	for k, q := range stats.BenjaminiHochberg(p) {
		results[idx[k]].QValue = num(q)
	}
}

func (e *Engine) evaluate(p pair, controls []*cohort.Column, rows []int, method Method) Result {
	res := Result{
		Outcome:  p.outcome.Name,
		Variable: p.variable.Name,
		Method:   method,
		Status:   StatusOK,
	}
	if err := e.fit(&res, p, controls, rows, method); err != nil {
		res.fail(err)
	}
	return res
}

func (e *Engine) fit(res *Result, p pair, controls []*cohort.Column, rows []int, method Method) error {
	if len(controls) > 0 && !method.SupportsControls() {
		names := make([]string, len(controls))
		for i, c := range controls {
			names[i] = c.Name
		}
		return &ControlVariablesUnsupportedError{Method: method, Controls: names}
	}

	cols := append([]*cohort.Column{p.outcome, p.variable}, controls...)
	sample := completeRows(rows, cols...)
	res.N = len(sample)
	required := 1 + len(controls) + e.margin + 1
	if res.N < required {
		return &InsufficientDataError{N: res.N, Required: required}
	}

	switch method {
	case LinearRegression:
		return e.linear(res, p, controls, sample)
	case LogisticRegression:
		return e.logistic(res, p, controls, sample)
	case CorrelationPearson, CorrelationSpearman:
		return e.correlation(res, p, sample, method)
	case ANOVA, KruskalWallis:
		return e.groups(res, p, sample, method)
	}
	return &UnsupportedMethodError{Method: method, Reason: "unknown method"}
}

func requireNumeric(method Method, role string, col *cohort.Column) error {
	if col.Kind == cohort.KindCategorical {
		return &UnsupportedMethodError{Method: method, Reason: fmt.Sprintf("%s %q is categorical", role, col.Name)}
	}
	return nil
}

func (e *Engine) linear(res *Result, p pair, controls []*cohort.Column, rows []int) error {
	if err := requireNumeric(LinearRegression, "outcome", p.outcome); err != nil {
		return err
	}
	d, err := buildDesign(p.variable, controls, rows)
	if err != nil {
		return err
	}
	if len(rows) <= d.width() {
		return &InsufficientDataError{N: len(rows), Required: d.width() + 1, Reason: "fewer observations than model terms"}
	}
	fit, err := stats.OLS(numbers(p.outcome, rows), d.cols, d.names)
	if err != nil {
		return statsError(err, len(rows))
	}
	c, _ := fit.Coefficient(d.term)
	res.Term = d.term
	res.N = fit.N
	setCoefficient(res, c)
	res.RSquared = num(fit.RSquared)
	return nil
}

func (e *Engine) logistic(res *Result, p pair, controls []*cohort.Column, rows []int) error {
	lv := levels(p.outcome, rows)
	if len(lv) != 2 {
		return &UnsupportedMethodError{
			Method: LogisticRegression,
			Reason: fmt.Sprintf("outcome %q has %d distinct values, need exactly 2", p.outcome.Name, len(lv)),
		}
	}
	res.EventLevel = lv[1]
	y := make([]float64, len(rows))
	for i, k := range labels(p.outcome, rows) {
		if k == lv[1] {
			y[i] = 1
		}
	}

	d, err := buildDesign(p.variable, controls, rows)
	if err != nil {
		return err
	}
	if len(rows) <= d.width() {
		return &InsufficientDataError{N: len(rows), Required: d.width() + 1, Reason: "fewer observations than model terms"}
	}
	fit, err := stats.Logistic(y, d.cols, d.names)
	if err != nil {
		return statsError(err, len(rows))
	}
	c, _ := fit.Coefficient(d.term)
	res.Term = d.term
	res.N = fit.N
	setCoefficient(res, c)
	res.OddsRatio = num(math.Exp(c.Estimate))
	return nil
}

func (e *Engine) correlation(res *Result, p pair, rows []int, method Method) error {
	if err := requireNumeric(method, "outcome", p.outcome); err != nil {
		return err
	}
	if err := requireNumeric(method, "variable", p.variable); err != nil {
		return err
	}
	x, y := numbers(p.variable, rows), numbers(p.outcome, rows)
	corr := stats.Pearson
	if method == CorrelationSpearman {
		corr = stats.Spearman
	}
	r, err := corr(x, y)
	if err != nil {
		return statsError(err, len(rows))
	}
	res.Term = p.variable.Name
	res.N = r.N
	res.Coefficient = num(r.R)
	res.Statistic = num(r.R)
	res.StdErr = num(r.StdErr)
	res.PValue = num(r.PValue)
	res.CILower = num(r.CILower)
	res.CIUpper = num(r.CIUpper)
	res.RSquared = num(r.R * r.R)
	return nil
}

// minGroupSize is the smallest group kept in a k-sample test.
const minGroupSize = 2

func (e *Engine) groups(res *Result, p pair, rows []int, method Method) error {
	if err := requireNumeric(method, "outcome", p.outcome); err != nil {
		return err
	}
	byLevel := make(map[string][]float64)
	keys := labels(p.variable, rows)
	for i, row := range rows {
		byLevel[keys[i]] = append(byLevel[keys[i]], p.outcome.Cells[row].Num)
	}
	names := make([]string, 0, len(byLevel))
	for k, v := range byLevel {
		if len(v) >= minGroupSize {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	kept := make([][]float64, len(names))
	n := 0
	for i, k := range names {
		kept[i] = byLevel[k]
		n += len(kept[i])
	}
	res.N = n
	if len(kept) < 2 {
		return &InsufficientDataError{
			N:      n,
			Reason: fmt.Sprintf("%d group(s) with at least %d observations, need 2", len(kept), minGroupSize),
		}
	}
	if required := 1 + e.margin + 1; n < required {
		return &InsufficientDataError{N: n, Required: required}
	}

	test := stats.OneWayANOVA
	if method == KruskalWallis {
		test = stats.KruskalWallis
	}
	gt, err := test(kept)
	if err != nil {
		return statsError(err, n)
	}
	res.Term = p.variable.Name
	res.N = gt.N
	res.Groups = gt.Groups
	res.Statistic = num(gt.Statistic)
	res.Coefficient = num(gt.Statistic)
	res.PValue = num(gt.PValue)
	res.EffectSize = num(gt.EffectSize)
	return nil
}

func setCoefficient(res *Result, c stats.Coefficient) {
	res.Coefficient = num(c.Estimate)
	res.Statistic = num(c.Statistic)
	res.StdErr = num(c.StdErr)
	res.PValue = num(c.PValue)
	res.CILower = num(c.CILower)
	res.CIUpper = num(c.CIUpper)
}

func statsError(err error, n int) error {
	switch {
	case errors.Is(err, stats.ErrTooFewSamples):
		return &InsufficientDataError{N: n, Reason: err.Error()}
	case errors.Is(err, stats.ErrSingular):
		return &FitError{Reason: "singular design", Err: err}
	case errors.Is(err, stats.ErrNoVariance):
		return &FitError{Reason: "no variance", Err: err}
	case errors.Is(err, stats.ErrSeparation), errors.Is(err, stats.ErrNotConverged):
		return &FitError{Reason: "logistic fit", Err: err}
	}
	return &FitError{Reason: "estimation", Err: err}
}
