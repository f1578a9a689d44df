package chunk

import "sync"

// DefaultMaxIdle is the idle buffer bound used when NewRecycler gets a non-positive value.
const DefaultMaxIdle = 8

// RecyclerStats counts how buffer requests were served.
type RecyclerStats struct {
	Reused    int64
	Allocated int64
	Dropped   int64
	Idle      int
}

// Recycler keeps released chunk buffers for reuse by later reads.
// It only bounds allocation churn; a nil *Recycler is valid and always allocates.
type Recycler struct {
	mu      sync.Mutex
	idle    [][]byte
	maxIdle int
	stats   RecyclerStats
}

// NewRecycler creates a recycler holding at most maxIdle idle buffers.
func NewRecycler(maxIdle int) *Recycler {
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}

	return &Recycler{
		idle:    make([][]byte, 0, maxIdle),
		maxIdle: maxIdle,
	}
}

// Acquire returns an empty buffer with at least minCap capacity.
// The smallest idle buffer that fits is preferred; otherwise a new one is allocated.
func (r *Recycler) Acquire(minCap int) []byte {
	if r == nil {
		return make([]byte, 0, minCap)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	best := -1

	for i, buf := range r.idle {
		if cap(buf) < minCap {
			continue
		}

		if best < 0 || cap(buf) < cap(r.idle[best]) {
			best = i
		}
	}

	if best < 0 {
		r.stats.Allocated++

		return make([]byte, 0, minCap)
	}

	buf := r.idle[best]
	last := len(r.idle) - 1
	r.idle[best] = r.idle[last]
	r.idle[last] = nil // Avoid holding a stale reference.
	r.idle = r.idle[:last]
	r.stats.Reused++

	return buf[:0]
}

// Release hands buf back for reuse. Buffers beyond the idle bound are dropped.
func (r *Recycler) Release(buf []byte) {
	if r == nil || cap(buf) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.idle) >= r.maxIdle {
		r.stats.Dropped++

		return
	}

	r.idle = append(r.idle, buf[:0])
}

// Stats returns a snapshot of the recycler counters and the idle buffer count.
func (r *Recycler) Stats() RecyclerStats {
	if r == nil {
		return RecyclerStats{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stats := r.stats
	stats.Idle = len(r.idle)

	return stats
}
