// Package station provides the per-name running statistics and the tables
// that hold them while records are folded and merged.
package station

import "math"

// scale is the fixed-point factor applied to every value before summation.
// Values carry exactly one fractional digit, so sums are exact integers.
const scale = 10

// Accumulator holds min/max/sum/count for one name.
// Sum is kept in tenths so that billions of additions never drift. Being an
// int64 it is exact while |Sum| stays below 2^63 tenths, e.g. for up to about
// 9e15 records of magnitude 99.9 per name.
type Accumulator struct {
	Min   float64
	Max   float64
	Sum   int64 // Tenths.
	Count uint64
}

// Seed creates an accumulator from the first observed value.
func Seed(value float64) *Accumulator {
	return &Accumulator{
		Min:   value,
		Max:   value,
		Sum:   toTenths(value),
		Count: 1,
	}
}

// Fold adds one observation.
func (a *Accumulator) Fold(value float64) {
	if value < a.Min {
		a.Min = value
	}

	if value > a.Max {
		a.Max = value
	}

	a.Sum += toTenths(value)
	a.Count++
}

// Join combines other into a. The operation is commutative and associative,
// which lets partial results be merged in any arrival order.
func (a *Accumulator) Join(other *Accumulator) {
	a.Min = min(a.Min, other.Min)
	a.Max = max(a.Max, other.Max)
	a.Sum += other.Sum
	a.Count += other.Count
}

// Finalize returns min, mean and max, with the mean rounded to one
// fractional digit (half-up toward positive infinity).
func (a *Accumulator) Finalize() (minV, mean, maxV float64) {
	if a.Count == 0 {
		return a.Min, 0, a.Max
	}

	// Round in tenths directly so the value is rescaled only once.
	tenths := math.Floor(float64(a.Sum)/float64(a.Count) + 0.5)

	return a.Min, normalizeZero(tenths / scale), a.Max
}

// Clone returns an independent copy of a.
func (a *Accumulator) Clone() *Accumulator {
	c := *a

	return &c
}

// normalizeZero drops the sign of negative zero so it renders as "0.0".
func normalizeZero(v float64) float64 {
	if v == 0 {
		return 0
	}

	return v
}

func toTenths(value float64) int64 {
	return int64(math.Round(value * scale))
}
