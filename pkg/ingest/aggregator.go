package ingest

import "github.com/LetzteFee/1brc/pkg/station"

// Aggregator folds partial tables into the global table as they arrive.
// It is owned by a single goroutine.
type Aggregator struct {
	global   station.Table
	partials int
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// MergeIn folds partial into the global table and takes ownership of it.
// The first partial is adopted as-is; later ones are joined name by name.
func (a *Aggregator) MergeIn(partial station.Table) {
	a.partials++

	if a.global == nil {
		a.global = partial

		return
	}

	if len(partial) > len(a.global) {
		// Join the smaller table into the larger one.
		a.global, partial = partial, a.global
	}

	a.global.Merge(partial)
}

// Partials returns how many partial tables have been merged.
func (a *Aggregator) Partials() int {
	return a.partials
}

// Result returns the global table. It is final once the last partial is merged.
func (a *Aggregator) Result() station.Table {
	if a.global == nil {
		return station.NewTable(0)
	}

	return a.global
}
