package census

import (
	"math"
	"strconv"
	"strings"
)

// ACS publishes these codes in estimate cells in place of a value
// (e.g. -666666666: too few sample observations to compute a median).
var annotationCodes = map[float64]bool{
	-111111111: true,
	-222222222: true,
	-333333333: true,
	-555555555: true,
	-666666666: true,
	-888888888: true,
	-999999999: true,
}

// Num returns a pointer to v, or nil when v is NaN or infinite.
func Num(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// ParseNum parses an estimate cell. Blank cells, non-numeric text and ACS
// annotation codes all yield nil.
func ParseNum(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	s = strings.ReplaceAll(s, ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || annotationCodes[v] {
		return nil
	}
	return Num(v)
}

// Ratio returns num/den, or nil when either side is missing or den is zero.
func Ratio(num, den *float64) *float64 {
	if num == nil || den == nil || *den == 0 {
		return nil
	}
	return Num(*num / *den)
}

// Percent returns 100*num/den with the same missing rules as Ratio.
func Percent(num, den *float64) *float64 {
	r := Ratio(num, den)
	if r == nil {
		return nil
	}
	return Num(*r * 100)
}

// Mean averages the non-missing values. It returns nil and zero when none are present.
func Mean(values []*float64) (*float64, int) {
	var sum float64
	var n int
	for _, v := range values {
		if v == nil {
			continue
		}
		sum += *v
		n++
	}
	if n == 0 {
		return nil, 0
	}
	return Num(sum / float64(n)), n
}

// FormatNum renders a value for text exports; missing becomes "".
func FormatNum(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
