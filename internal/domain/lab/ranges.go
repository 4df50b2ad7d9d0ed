package lab

import (
	"strings"

	"github.com/shopspring/decimal"
)

// RangeKind tells how a normal range constrains a measured value.
type RangeKind int

const (
	// RangeNone never flags a value.
	RangeNone RangeKind = iota
	// RangeNumeric bounds a numeric value on one or both sides.
	RangeNumeric
	// RangeQualitative expects a textual value such as "Negativo".
	RangeQualitative
)

// NormalRange is a parsed reference interval. Nil bounds are open.
type NormalRange struct {
	Kind     RangeKind
	Low      *decimal.Decimal
	High     *decimal.Decimal
	LowOpen  bool
	HighOpen bool
	Expected string
}

// ParseRange interprets the free-text reference interval typed by staff.
// Accepted forms are "lo-hi", "lo – hi", "lo to hi", one-sided bounds such as
// "<5", ">=1.2" or "≤ 40", and plain text for qualitative results. Anything
// else yields a RangeNone that never flags a value.
func ParseRange(raw string) NormalRange {
	s := strings.TrimSpace(raw)
	if s == "" {
		return NormalRange{}
	}

	for _, op := range []struct {
		prefix string
		upper  bool
		open   bool
	}{
		{"<=", true, false}, {"≤", true, false}, {"<", true, true},
		{">=", false, false}, {"≥", false, false}, {">", false, true},
	} {
		if !strings.HasPrefix(s, op.prefix) {
			continue
		}
		bound, ok := parseNumber(strings.TrimPrefix(s, op.prefix))
		if !ok {
			return NormalRange{}
		}
		if op.upper {
			return NormalRange{Kind: RangeNumeric, High: &bound, HighOpen: op.open}
		}
		return NormalRange{Kind: RangeNumeric, Low: &bound, LowOpen: op.open}
	}

	if lo, hi, ok := splitInterval(s); ok {
		if lo.GreaterThan(hi) {
			return NormalRange{}
		}
		return NormalRange{Kind: RangeNumeric, Low: &lo, High: &hi}
	}

	// Something that starts like a number but is not a clean interval is a
	// malformed numeric range, not an expected text value.
	if startsNumeric(s) {
		return NormalRange{}
	}
	return NormalRange{Kind: RangeQualitative, Expected: s}
}

func splitInterval(s string) (lo, hi decimal.Decimal, ok bool) {
	for _, sep := range []string{" to ", "–", "—"} {
		if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
			return parsePair(parts[0], parts[1])
		}
	}
	// Plain hyphen: skip a leading sign so "-5-5" splits at the second one.
	if i := strings.Index(s[1:], "-"); i >= 0 {
		return parsePair(s[:i+1], s[i+2:])
	}
	return lo, hi, false
}

func parsePair(a, b string) (lo, hi decimal.Decimal, ok bool) {
	lo, okLo := parseNumber(a)
	hi, okHi := parseNumber(b)
	return lo, hi, okLo && okHi
}

// parseNumber accepts a decimal with either '.' or ',' as separator and an
// optional trailing unit, which is ignored.
func parseNumber(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if f := strings.Fields(s); len(f) > 1 {
		s = f[0]
	}
	s = strings.ReplaceAll(s, ",", ".")
	if s == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

func startsNumeric(s string) bool {
	c := s[0]
	return (c >= '0' && c <= '9') || c == '.' || c == '-' || c == '+'
}

// Excludes reports whether value lies outside the range. Ranges of kind
// RangeNone exclude nothing, and a non-numeric value is never judged against
// a numeric range.
func (r NormalRange) Excludes(value string) bool {
	switch r.Kind {
	case RangeNumeric:
		v, ok := parseNumber(value)
		if !ok {
			return false
		}
		if r.Low != nil {
			if r.LowOpen && v.LessThanOrEqual(*r.Low) {
				return true
			}
			if !r.LowOpen && v.LessThan(*r.Low) {
				return true
			}
		}
		if r.High != nil {
			if r.HighOpen && v.GreaterThanOrEqual(*r.High) {
				return true
			}
			if !r.HighOpen && v.GreaterThan(*r.High) {
				return true
			}
		}
		return false
	case RangeQualitative:
		return !strings.EqualFold(strings.TrimSpace(value), r.Expected)
	}
	return false
}
