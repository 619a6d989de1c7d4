package pipeline

import (
	"errors"
	"fmt"
	"sort"

	"visits-pipeline/internal/model"
	"visits-pipeline/pkg/utils"
)

// ErrNonNumeric is returned when a metric value cannot be summed
var ErrNonNumeric = errors.New("non-numeric metric value")

// Aggregate runs one group-by-sum reduction per SummarySpec over the combined table
func Aggregate(combined *model.Table, specs []model.SummarySpec) ([]model.Summary, error) {
	summaries := make([]model.Summary, 0, len(specs))
	for _, spec := range specs {
		s, err := GroupSum(combined, spec)
		if err != nil {
			return nil, fmt.Errorf("aggregating %q: %w", spec.Title, err)
		}
		summaries = append(summaries, s)
	}
	return summaries, nil
}

// GroupSum groups table by spec.Dimension and sums spec.Metric.
//
// NULL metric values count as zero and NULL dimension values are grouped under
// model.NotSetKey, so the summary total always equals the column total.
// Groups are returned in ascending key order.
func GroupSum(table *model.Table, spec model.SummarySpec) (model.Summary, error) {
	summary := model.Summary{
		Title:     spec.Title,
		Dimension: spec.Dimension,
		Metric:    spec.Metric,
	}

	di := table.ColumnIndex(spec.Dimension)
	if di < 0 {
		return summary, fmt.Errorf("unknown dimension column %q", spec.Dimension)
	}
	mi := table.ColumnIndex(spec.Metric)
	if mi < 0 {
		return summary, fmt.Errorf("unknown metric column %q", spec.Metric)
	}

	groups := make(map[string]model.Number)
	for i, row := range table.Rows {
		n, err := toNumber(row[mi])
		if err != nil {
			return summary, fmt.Errorf("row %d: %w", i, err)
		}
		key := groupKey(row[di])
		groups[key] = groups[key].Add(n)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	summary.Rows = make([]model.SummaryRow, 0, len(keys))
	for _, k := range keys {
		summary.Rows = append(summary.Rows, model.SummaryRow{Key: k, Total: groups[k]})
	}
	return summary, nil
}

// ColumnTotal sums a metric column without grouping, under the same NULL rule
func ColumnTotal(table *model.Table, metric string) (model.Number, error) {
	mi := table.ColumnIndex(metric)
	if mi < 0 {
		return model.Number{}, fmt.Errorf("unknown metric column %q", metric)
	}
	var total model.Number
	for i, row := range table.Rows {
		n, err := toNumber(row[mi])
		if err != nil {
			return model.Number{}, fmt.Errorf("row %d: %w", i, err)
		}
		total = total.Add(n)
	}
	return total, nil
}

func groupKey(v interface{}) string {
	if v == nil {
		return model.NotSetKey
	}
	return utils.Stringify(v)
}

func toNumber(v interface{}) (model.Number, error) {
	i, f, isFloat, ok := utils.ParseNumber(v)
	if !ok {
		return model.Number{}, fmt.Errorf("%w: %v (%T)", ErrNonNumeric, v, v)
	}
	if isFloat {
		return model.Number{Float: f, IsFloat: true}, nil
	}
	return model.Number{Int: i}, nil
}
