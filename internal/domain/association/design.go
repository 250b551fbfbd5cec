package association

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pankbase/functional/internal/domain/cohort"
)

// regressor is one coded design column.
type regressor struct {
	name   string
	values []float64
}

// present reports whether col holds a usable value at row. Numerical and
// boolean columns need a number; categorical columns any label.
func present(col *cohort.Column, row int) bool {
	c := col.Cells[row]
	if !c.Valid {
		return false
	}
	if col.Kind == cohort.KindCategorical {
		return true
	}
	return c.IsNum
}

// completeRows keeps the rows at which every column is present.
func completeRows(rows []int, cols ...*cohort.Column) []int {
	out := make([]int, 0, len(rows))
	for _, row := range rows {
		ok := true
		for _, col := range cols {
			if !present(col, row) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out
}

// numbers reads col at rows. Callers have filtered rows with completeRows.
func numbers(col *cohort.Column, rows []int) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = col.Cells[row].Num
	}
	return out
}

func labels(col *cohort.Column, rows []int) []string {
	out := make([]string, len(rows))
	for i, row := range rows {
		out[i] = levelKey(col, row)
	}
	return out
}

// levelKey is the grouping key of a cell: its trimmed label for categorical
// columns, its canonical number otherwise.
func levelKey(col *cohort.Column, row int) string {
	c := col.Cells[row]
	if col.Kind == cohort.KindCategorical || !c.IsNum {
		return strings.TrimSpace(c.Text)
	}
	return strconv.FormatFloat(c.Num, 'g', -1, 64)
}

// levels returns the distinct keys of col at rows, in numeric order for
// numerical and boolean columns and string order otherwise.
func levels(col *cohort.Column, rows []int) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, row := range rows {
		k := levelKey(col, row)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	if col.Kind == cohort.KindCategorical {
		sort.Strings(out)
		return out
	}
	sort.Slice(out, func(i, j int) bool {
		a, errA := strconv.ParseFloat(out[i], 64)
		b, errB := strconv.ParseFloat(out[j], 64)
		if errA != nil || errB != nil {
			return out[i] < out[j]
		}
		return a < b
	})
	return out
}

// encode codes col over rows. Numerical and boolean columns enter as they
// are; categorical columns are dummy coded against their first sorted
// level, one indicator per remaining level.
func encode(col *cohort.Column, rows []int) []regressor {
	if col.Kind != cohort.KindCategorical {
		return []regressor{{name: col.Name, values: numbers(col, rows)}}
	}
	lv := levels(col, rows)
	if len(lv) < 2 {
		return nil
	}
	keys := labels(col, rows)
	out := make([]regressor, 0, len(lv)-1)
	for _, level := range lv[1:] {
		vals := make([]float64, len(rows))
		for i, k := range keys {
			if k == level {
				vals[i] = 1
			}
		}
		out = append(out, regressor{name: dummyName(col.Name, level), values: vals})
	}
	return out
}

func dummyName(column, level string) string {
	return fmt.Sprintf("%s[T.%s]", column, level)
}

// design is the coded regressor set of one regression pair. The variable of
// interest comes first.
type design struct {
	cols  [][]float64
	names []string
	term  string
}

func buildDesign(variable *cohort.Column, controls []*cohort.Column, rows []int) (*design, error) {
	d := &design{}
	vterms := encode(variable, rows)
	if len(vterms) == 0 {
		return nil, &FitError{Reason: fmt.Sprintf("variable %q has a single level in the sample", variable.Name)}
	}
	d.term = vterms[0].name
	for _, r := range vterms {
		d.cols = append(d.cols, r.values)
		d.names = append(d.names, r.name)
	}
	for _, c := range controls {
		for _, r := range encode(c, rows) {
			d.cols = append(d.cols, r.values)
			d.names = append(d.names, r.name)
		}
	}
	return d, nil
}

// width is the number of estimated parameters including the intercept.
func (d *design) width() int { return len(d.cols) + 1 }
