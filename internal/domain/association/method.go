package association

import (
	"fmt"
	"strings"
)

// Method is a statistical test. The set is closed.
type Method string

const (
	LinearRegression    Method = "linear_regression"
	LogisticRegression  Method = "logistic_regression"
	CorrelationPearson  Method = "correlation_pearson"
	CorrelationSpearman Method = "correlation_spearman"
	ANOVA               Method = "anova"
	KruskalWallis       Method = "kruskal_wallis"
)

// DefaultMethod is used when a request names no method.
const DefaultMethod = LinearRegression

// MethodInfo describes a method for the method catalog.
type MethodInfo struct {
	Value            Method `json:"value"`
	Label            string `json:"label"`
	Description      string `json:"description"`
	UseWhen          string `json:"use_when"`
	SupportsControls bool   `json:"supports_controls"`
}

var catalog = []MethodInfo{
	{
		Value:            LinearRegression,
		Label:            "Linear Regression",
		Description:      "OLS regression for continuous outcomes. Supports control variables.",
		UseWhen:          "Variable of interest and outcome are continuous, or testing multiple predictors",
		SupportsControls: true,
	},
	{
		Value:            LogisticRegression,
		Label:            "Logistic Regression",
		Description:      "Maximum-likelihood logistic regression for binary outcomes. Reports odds ratios.",
		UseWhen:          "Outcome takes exactly two values",
		SupportsControls: true,
	},
	{
		Value:       CorrelationPearson,
		Label:       "Pearson Correlation",
		Description: "Pearson correlation coefficient between two continuous variables.",
		UseWhen:     "Simple bivariate relationship between two continuous variables",
	},
	{
		Value:       CorrelationSpearman,
		Label:       "Spearman Correlation",
		Description: "Rank correlation between two variables.",
		UseWhen:     "Monotonic relationship, or data with outliers or non-normal distributions",
	},
	{
		Value:       ANOVA,
		Label:       "One-way ANOVA",
		Description: "Compare means across categorical groups (parametric).",
		UseWhen:     "Variable of interest is categorical with 2+ groups, outcome is continuous and normally distributed",
	},
	{
		Value:       KruskalWallis,
		Label:       "Kruskal-Wallis H-test",
		Description: "Non-parametric alternative to ANOVA.",
		UseWhen:     "Variable of interest is categorical, outcome may not be normally distributed",
	},
}

// Methods returns the method catalog.
func Methods() []MethodInfo {
	return append([]MethodInfo(nil), catalog...)
}

// ParseMethod resolves a method name. The empty string selects
// DefaultMethod and "correlation" is accepted for Pearson.
func ParseMethod(s string) (Method, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return DefaultMethod, nil
	case "correlation", "pearson":
		return CorrelationPearson, nil
	case "spearman":
		return CorrelationSpearman, nil
	}
	m := Method(s)
	if !m.Valid() {
		return "", &InvalidRequestError{Reason: fmt.Sprintf("unknown method %q", s)}
	}
	return m, nil
}

// Valid reports whether m is one of the supported methods.
func (m Method) Valid() bool {
	for _, info := range catalog {
		if info.Value == m {
			return true
		}
	}
	return false
}

// SupportsControls reports whether the method accepts control variables.
func (m Method) SupportsControls() bool {
	return m == LinearRegression || m == LogisticRegression
}
