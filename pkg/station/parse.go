package station

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrInvalidValue is returned when a value field is not a finite decimal number.
var ErrInvalidValue = errors.New("invalid decimal value")

// ParseValue parses a decimal value field.
// The canonical shape -?d+.d is decoded without allocation. Other spellings
// with at most one fractional digit, such as "12" or "-.5", go through
// strconv. Anything finer than a tenth is rejected: sums are kept in tenths.
func ParseValue(field []byte) (float64, error) {
	if tenths, ok := parseCanonical(field); ok {
		return float64(tenths) / scale, nil
	}

	value, err := strconv.ParseFloat(string(field), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, field)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) || !isDecimal(field) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, field)
	}

	return value, nil
}

// parseCanonical decodes -?d+.d into tenths.
func parseCanonical(field []byte) (int64, bool) {
	n := len(field)
	if n < 3 || field[n-2] != '.' {
		return 0, false
	}

	digits := field[:n-2]

	negative := digits[0] == '-'
	if negative {
		digits = digits[1:]
	}

	if len(digits) == 0 || len(digits) > 15 {
		return 0, false
	}

	var tenths int64

	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}

		tenths = tenths*10 + int64(c-'0')
	}

	frac := field[n-1]
	if frac < '0' || frac > '9' {
		return 0, false
	}

	tenths = tenths*10 + int64(frac-'0')

	if negative {
		tenths = -tenths
	}

	return tenths, true
}

// isDecimal accepts -?digits with an optional '.' and at most one fractional
// digit. It rejects what strconv would otherwise take, such as exponents,
// hex floats, underscores and a leading '+'.
func isDecimal(field []byte) bool {
	if len(field) == 0 {
		return false
	}

	start := 0
	if field[0] == '-' {
		start = 1
	}

	seenDigit := false
	seenDot := false
	fraction := 0

	for _, c := range field[start:] {
		switch {
		case c >= '0' && c <= '9':
			seenDigit = true

			if seenDot {
				fraction++
			}
		case c == '.' && !seenDot:
			seenDot = true
		default:
			return false
		}
	}

	return seenDigit && fraction <= 1
}
