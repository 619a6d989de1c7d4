package utils

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"strconv"
	"strings"
	"unicode"
)

// Stringify renders a cell value the way it is written to a sheet
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// ParseNumber converts a warehouse value to a number. nil and NaN are treated
// as zero. ok is false when the value is not numeric.
func ParseNumber(v interface{}) (i int64, f float64, isFloat bool, ok bool) {
	switch val := v.(type) {
	case nil:
		return 0, 0, false, true
	case int64:
		return val, 0, false, true
	case int:
		return int64(val), 0, false, true
	case float64:
		if math.IsNaN(val) {
			return 0, 0, false, true
		}
		return 0, val, true, true
	case *big.Rat:
		if val == nil {
			return 0, 0, false, true
		}
		if val.IsInt() && val.Num().IsInt64() {
			return val.Num().Int64(), 0, false, true
		}
		fv, _ := val.Float64()
		return 0, fv, true, true
	case string:
		s := strings.TrimSpace(val)
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, 0, false, true
		}
		if fv, err := strconv.ParseFloat(s, 64); err == nil {
			return ParseNumber(fv)
		}
		return 0, 0, false, false
	}

	rv := reflect.ValueOf(v)
	switch {
	case rv.Kind() >= reflect.Int && rv.Kind() <= reflect.Int64:
		return rv.Int(), 0, false, true
	case rv.Kind() >= reflect.Uint && rv.Kind() <= reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, float64(u), true, true
		}
		return int64(u), 0, false, true
	case rv.Kind() == reflect.Float32:
		return ParseNumber(rv.Float())
	}
	return 0, 0, false, false
}

// Slug turns a title into a file-name friendly string: "Visits per Country" -> "visits-per-country"
func Slug(title string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
