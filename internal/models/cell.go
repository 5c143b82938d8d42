package models

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

var integralNumber = regexp.MustCompile(`^-?\d+\.0+$`)

// missingMarkers are spreadsheet renderings of an empty cell.
var missingMarkers = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"#n/a": true,
	"nan":  true,
	"null": true,
	"none": true,
}

var currencyMarkers = []string{"₹", "rs.", "rs", "inr", "$"}

// NormalizeOrderID returns the join key for an order identifier cell.
// Identifiers are compared as trimmed strings; integral numbers are rendered
// without a fractional part so "1001", 1001 and "1001.0" all match.
func NormalizeOrderID(v any) string {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return ""
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		s = fmt.Sprint(v)
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))

	if integralNumber.MatchString(s) {
		s = s[:strings.IndexByte(s, '.')]
	}
	return s
}

// ParseNumber converts a cell into a decimal. Empty cells return zero with
// empty set to true. Text that cannot be read as a number returns an error;
// callers decide whether that is fatal.
//
// Accepted text forms: thousands separators ("1,234.50"), a leading or
// trailing currency marker ("₹ 500", "Rs. 500", "500 INR") and accounting
// negatives ("(50)"). Sign and currency marker may appear in either order.
func ParseNumber(v any) (value decimal.Decimal, empty bool, err error) {
	switch t := v.(type) {
	case nil:
		return decimal.Zero, true, nil
	case decimal.Decimal:
		return t, false, nil
	case float64:
		if math.IsNaN(t) {
			return decimal.Zero, true, nil
		}
		if math.IsInf(t, 0) {
			return decimal.Zero, false, fmt.Errorf("infinite value")
		}
		return decimal.NewFromFloat(t), false, nil
	case float32:
		return ParseNumber(float64(t))
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		n, err := cast.ToInt64E(t)
		if err != nil {
			return decimal.Zero, false, err
		}
		return decimal.NewFromInt(n), false, nil
	case bool:
		return decimal.Zero, false, fmt.Errorf("boolean value %t", t)
	}

	s, err := cast.ToStringE(v)
	if err != nil {
		return decimal.Zero, false, err
	}
	s = strings.TrimSpace(s)
	if missingMarkers[strings.ToLower(s)] {
		return decimal.Zero, true, nil
	}

	s, negative := stripNumberMarkers(s)
	if strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
		return decimal.Zero, false, fmt.Errorf("more than one sign in %q", v)
	}
	s = strings.ReplaceAll(s, ",", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, err
	}
	if negative {
		d = d.Neg()
	}
	return d, false, nil
}

// stripNumberMarkers removes one sign or accounting parentheses and one
// currency marker, in any order, and reports whether the value is negative.
func stripNumberMarkers(s string) (string, bool) {
	negative, signed, currency := false, false, false
	for {
		s = strings.TrimSpace(s)
		switch {
		case !signed && strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")"):
			signed, negative = true, true
			s = s[1 : len(s)-1]
		case !signed && (strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+")):
			signed, negative = true, s[0] == '-'
			s = s[1:]
		case !currency:
			rest, ok := trimCurrency(s)
			if !ok {
				return s, negative
			}
			currency = true
			s = rest
		default:
			return s, negative
		}
	}
}

// trimCurrency removes a leading or trailing currency marker.
func trimCurrency(s string) (string, bool) {
	lower := strings.ToLower(s)
	for _, marker := range currencyMarkers {
		if strings.HasPrefix(lower, marker) {
			return s[len(marker):], true
		}
		if strings.HasSuffix(lower, marker) {
			return s[:len(s)-len(marker)], true
		}
	}
	return s, false
}
