package gesture

// MotionWindow is a fixed-capacity ring buffer of horizontal positions for
// one limb. Pushing onto a full window evicts the oldest sample.
type MotionWindow struct {
	samples []float64
	start   int
	size    int
}

// NewMotionWindow creates a window holding at most capacity samples.
// A capacity below 1 is treated as 1.
func NewMotionWindow(capacity int) *MotionWindow {
	if capacity < 1 {
		capacity = 1
	}
	return &MotionWindow{samples: make([]float64, capacity)}
}

// Push appends a sample, evicting the oldest one when full.
func (w *MotionWindow) Push(x float64) {
	capacity := len(w.samples)
	if w.size < capacity {
		w.samples[(w.start+w.size)%capacity] = x
		w.size++
		return
	}
	w.samples[w.start] = x
	w.start = (w.start + 1) % capacity
}

// Clear drops every sample.
func (w *MotionWindow) Clear() {
	w.start = 0
	w.size = 0
}

// Len returns the number of samples held.
func (w *MotionWindow) Len() int {
	return w.size
}

// Cap returns the window capacity.
func (w *MotionWindow) Cap() int {
	return len(w.samples)
}

// Full reports whether the window holds Cap samples.
func (w *MotionWindow) Full() bool {
	return w.size == len(w.samples)
}

// Samples returns the held samples, oldest first.
func (w *MotionWindow) Samples() []float64 {
	out := make([]float64, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.samples[(w.start+i)%len(w.samples)]
	}
	return out
}

// Energy returns max - min over the window, or 0 until the window is full.
func (w *MotionWindow) Energy() float64 {
	if !w.Full() {
		return 0
	}

	lo, hi := w.samples[0], w.samples[0]
	for _, x := range w.samples[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}
	return hi - lo
}
