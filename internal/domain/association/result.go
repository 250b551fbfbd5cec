package association

import (
	"errors"
	"math"
)

const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Failure is the typed reason a pair produced no estimate.
type Failure struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

// Result is the outcome of one (outcome, variable) pair. Estimates that do
// not apply to the method, or are not finite, are null.
type Result struct {
	Outcome  string `json:"outcome"`
	Variable string `json:"variable"`
	Term     string `json:"term,omitempty"`
	Method   Method `json:"method"`
	Status   string `json:"status"`
	N        int    `json:"n_samples"`

	Coefficient *float64 `json:"coefficient"`
	Statistic   *float64 `json:"statistic"`
	StdErr      *float64 `json:"std_error"`
	PValue      *float64 `json:"p_value"`
	QValue      *float64 `json:"q_value"`
	CILower     *float64 `json:"ci_lower"`
	CIUpper     *float64 `json:"ci_upper"`
	RSquared    *float64 `json:"r_squared,omitempty"`
	OddsRatio   *float64 `json:"odds_ratio,omitempty"`
	EffectSize  *float64 `json:"effect_size,omitempty"`
	Groups      int      `json:"groups,omitempty"`
	// EventLevel is the outcome level coded 1 in a logistic fit.
	EventLevel string `json:"event_level,omitempty"`

	Failure *Failure `json:"failure,omitempty"`
}

// OK reports whether the pair was estimated.
func (r Result) OK() bool { return r.Status == StatusOK }

func (r *Result) fail(err error) {
	r.Status = StatusFailed
	kind := KindFit
	var pe pairError
	if errors.As(err, &pe) {
		kind = pe.kind()
	}
	r.Failure = &Failure{Kind: kind, Reason: err.Error()}
}

// num returns a pointer to v, or nil when v is not finite.
func num(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// Report is the full result set of one run.
type Report struct {
	Method    Method   `json:"method"`
	Outcomes  []string `json:"traits"`
	Variables []string `json:"variables_of_interest"`
	Controls  []string `json:"control_variables"`
	Results   []Result `json:"results"`
	Succeeded int      `json:"succeeded"`
	Failed    int      `json:"failed"`
}

// Find returns the result for one pair.
func (r *Report) Find(outcome, variable string) (Result, bool) {
	for _, res := range r.Results {
		if res.Outcome == outcome && res.Variable == variable {
			return res, true
		}
	}
	return Result{}, false
}
