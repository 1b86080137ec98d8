package supervisor

import "gonum.org/v1/gonum/stat"

// Window is a fixed-capacity FIFO of vector samples used to compute
// trailing per-agent averages. It acts as a debounce filter: a predicate
// backed by a Window must not answer until the window holds exactly
// capacity samples, so single noisy readings cannot flip the phase.
type Window struct {
	capacity int
	samples  [][]float64
}

// NewWindow creates a Window holding up to capacity samples.
func NewWindow(capacity int) *Window {
	if capacity < 1 {
		capacity = 1
	}
	return &Window{capacity: capacity}
}

// Push appends a sample, overwriting the oldest when full. The sample
// slice is retained; callers must not reuse it.
func (w *Window) Push(sample []float64) {
	if len(w.samples) == w.capacity {
		copy(w.samples, w.samples[1:])
		w.samples[len(w.samples)-1] = sample
		return
	}
	w.samples = append(w.samples, sample)
}

// Ready reports whether the window holds exactly capacity samples.
func (w *Window) Ready() bool {
	return len(w.samples) == w.capacity
}

// Len returns the number of samples currently held.
func (w *Window) Len() int {
	return len(w.samples)
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return w.capacity
}

// Clear empties the window without resizing it.
func (w *Window) Clear() {
	w.samples = w.samples[:0]
}

// ColumnMeans returns the trailing average per column (agent), averaging
// each column over all held samples.
func (w *Window) ColumnMeans() []float64 {
	if len(w.samples) == 0 {
		return nil
	}
	cols := len(w.samples[0])
	means := make([]float64, cols)
	col := make([]float64, len(w.samples))
	for c := 0; c < cols; c++ {
		for i, s := range w.samples {
			col[i] = s[c]
		}
		means[c] = stat.Mean(col, nil)
	}
	return means
}
