package ear

// window is a bounded FIFO of samples, oldest evicted first.
type window struct {
	values []float64
	size   int
}

func newWindow(size int) window {
	if size < 1 {
		size = 1
	}

	return window{values: make([]float64, 0, size+1), size: size}
}

func (w *window) push(v float64) {
	w.values = append(w.values, v)
	if len(w.values) > w.size {
		w.values = w.values[1:]
	}
}

// mean returns 0 for an empty window.
func (w *window) mean() float64 {
	if len(w.values) == 0 {
		return 0
	}

	sum := 0.0
	for _, v := range w.values {
		sum += v
	}

	return sum / float64(len(w.values))
}

func (w *window) len() int {
	return len(w.values)
}

func (w *window) reset() {
	w.values = w.values[:0]
}

// Smoother is a moving average over the most recent ratios.
type Smoother struct {
	w window
}

func NewSmoother(size int) *Smoother {
	return &Smoother{w: newWindow(size)}
}

// Smooth appends v and returns the mean of the current window.
func (s *Smoother) Smooth(v float64) float64 {
	s.w.push(v)
	return s.w.mean()
}

func (s *Smoother) Len() int {
	return s.w.len()
}

func (s *Smoother) Reset() {
	s.w.reset()
}

// BaselineTracker estimates the open-eye ratio from samples above the
// static threshold.
type BaselineTracker struct {
	w       window
	gate    float64
	enabled bool
}

func NewBaselineTracker(size int, gate float64) *BaselineTracker {
	return &BaselineTracker{
		w:       newWindow(size),
		gate:    gate,
		enabled: true,
	}
}

// Update records v when tracking is enabled and v is above the gate.
func (b *BaselineTracker) Update(v float64) {
	if !b.enabled || v <= b.gate {
		return
	}

	b.w.push(v)
}

// Baseline returns the mean open-eye ratio, or 0 while unset.
func (b *BaselineTracker) Baseline() float64 {
	return b.w.mean()
}

func (b *BaselineTracker) Len() int {
	return b.w.len()
}

func (b *BaselineTracker) SetGate(gate float64) {
	b.gate = gate
}

func (b *BaselineTracker) SetEnabled(enabled bool) {
	b.enabled = enabled
}

func (b *BaselineTracker) Reset() {
	b.w.reset()
}
