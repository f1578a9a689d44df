package station

import (
	"slices"
)

// Table maps a name to its accumulator.
// A table is owned by one goroutine at a time; ownership moves, it is never shared.
type Table map[string]*Accumulator

// NewTable creates an empty table with room for sizeHint names.
func NewTable(sizeHint int) Table {
	return make(Table, sizeHint)
}

// Observe folds value into the accumulator for name, seeding it on first sight.
// The name bytes are copied only when a new entry is created.
func (t Table) Observe(name []byte, value float64) {
	if acc, ok := t[string(name)]; ok {
		acc.Fold(value)

		return
	}

	t[string(name)] = Seed(value)
}

// Merge moves every entry of other into t, joining names present in both.
// other must not be used afterwards: its accumulators may now belong to t.
func (t Table) Merge(other Table) {
	for name, acc := range other {
		if existing, ok := t[name]; ok {
			existing.Join(acc)

			continue
		}

		t[name] = acc
	}
}

// Names returns the table's names in ascending byte order.
func (t Table) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Records returns the total number of folded values.
func (t Table) Records() uint64 {
	var total uint64

	for _, acc := range t {
		total += acc.Count
	}

	return total
}

// Clone returns a deep copy of t.
func (t Table) Clone() Table {
	clone := make(Table, len(t))

	for name, acc := range t {
		clone[name] = acc.Clone()
	}

	return clone
}

// Equal reports whether both tables hold the same names with identical statistics.
func (t Table) Equal(other Table) bool {
	if len(t) != len(other) {
		return false
	}

	for name, acc := range t {
		o, ok := other[name]
		if !ok || *o != *acc {
			return false
		}
	}

	return true
}
