// Package safeconv provides clamping integer conversions for byte counts and sizes.
package safeconv

import "math"

// MaxInt is the maximum value for int type (platform-dependent).
const MaxInt = int(^uint(0) >> 1)

// ClampToInt converts v to int, clamping to MaxInt on overflow.
func ClampToInt(v uint64) int {
	if v > uint64(MaxInt) {
		return MaxInt
	}

	return int(v)
}

// ClampToInt64 converts v to int64, clamping to math.MaxInt64 on overflow.
func ClampToInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(v)
}

// NonNegative converts a byte count to uint64, mapping negative values to 0.
// Use it when feeding counters to humanize.
func NonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}

	return uint64(v)
}
