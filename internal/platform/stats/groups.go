package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// GroupTest is the result of a k-sample location test.
type GroupTest struct {
	Statistic  float64
	PValue     float64
	EffectSize float64 // eta squared for ANOVA, epsilon squared for Kruskal-Wallis
	DFBetween  int
	DFWithin   int
	N          int
	Groups     int
}

// OneWayANOVA tests equality of group means. Every group must hold at least
// one observation and at least two groups are required.
func OneWayANOVA(groups [][]float64) (*GroupTest, error) {
	n, err := checkGroups(groups)
	if err != nil {
		return nil, err
	}
	k := len(groups)
	if n <= k {
		return nil, ErrTooFewSamples
	}

	all := make([]float64, 0, n)
	for _, g := range groups {
		all = append(all, g...)
	}
	grand := stat.Mean(all, nil)

	var ssb, ssw float64
	for _, g := range groups {
		m := stat.Mean(g, nil)
		ssb += float64(len(g)) * (m - grand) * (m - grand)
		for _, v := range g {
			ssw += (v - m) * (v - m)
		}
	}
	sst := ssb + ssw
	if sst == 0 {
		return nil, ErrNoVariance
	}

	dfb, dfw := k-1, n-k
	res := &GroupTest{
		DFBetween:  dfb,
		DFWithin:   dfw,
		N:          n,
		Groups:     k,
		EffectSize: ssb / sst,
	}
	if ssw == 0 {
		res.Statistic = math.Inf(1)
		res.PValue = 0
		return res, nil
	}
	res.Statistic = (ssb / float64(dfb)) / (ssw / float64(dfw))
	res.PValue = distuv.F{D1: float64(dfb), D2: float64(dfw)}.Survival(res.Statistic)
	return res, nil
}

// KruskalWallis tests whether the groups come from the same distribution
// using the rank-based H statistic with tie correction. The effect size is
// epsilon squared, H / (N - 1).
func KruskalWallis(groups [][]float64) (*GroupTest, error) {
	n, err := checkGroups(groups)
	if err != nil {
		return nil, err
	}
	k := len(groups)

	all := make([]float64, 0, n)
	for _, g := range groups {
		all = append(all, g...)
	}
	ranks := Rank(all)
	nf := float64(n)

	var h float64
	off := 0
	for _, g := range groups {
		var sum float64
		for i := range g {
			sum += ranks[off+i]
		}
		off += len(g)
		h += sum * sum / float64(len(g))
	}
	h = 12/(nf*(nf+1))*h - 3*(nf+1)

	correction := 1 - tieSum(all)/(nf*nf*nf-nf)
	if correction <= 0 {
		return nil, ErrNoVariance
	}
	h /= correction

	return &GroupTest{
		Statistic:  h,
		PValue:     distuv.ChiSquared{K: float64(k - 1)}.Survival(h),
		EffectSize: h / (nf - 1),
		DFBetween:  k - 1,
		DFWithin:   n - k,
		N:          n,
		Groups:     k,
	}, nil
}

func checkGroups(groups [][]float64) (int, error) {
	if len(groups) < 2 {
		return 0, ErrTooFewSamples
	}
	n := 0
	for _, g := range groups {
		if len(g) == 0 {
			return 0, ErrTooFewSamples
		}
		n += len(g)
	}
	return n, nil
}
