package pipeline

import "visits-pipeline/internal/model"

// SheetValues converts a summary into the block written to a worksheet:
// the header row followed by one row per group, every value as a string.
func SheetValues(s model.Summary) [][]string {
	values := make([][]string, 0, len(s.Rows)+1)
	values = append(values, s.Header())
	for _, r := range s.Rows {
		values = append(values, []string{r.Key, r.Total.String()})
	}
	return values
}
