package physics

// DefaultHistorySize is the number of samples used for the approach speed.
const DefaultHistorySize = 30

// FlightHistory is a fixed-capacity FIFO of downward speed samples.
type FlightHistory struct {
	samples []float64
	next    int
	count   int
}

// NewFlightHistory creates an empty history holding at most size samples.
func NewFlightHistory(size int) *FlightHistory {
	if size < 1 {
		size = DefaultHistorySize
	}
	return &FlightHistory{samples: make([]float64, size)}
}

// Push appends a sample, evicting the oldest one when full.
// Non-finite samples are recorded as zero.
func (h *FlightHistory) Push(sample float64) {
	if !IsFinite(sample) {
		sample = 0
	}
	if h.count < len(h.samples) {
		h.count++
	}
	h.samples[h.next] = sample
	h.next = (h.next + 1) % len(h.samples)
}

// Len returns the number of stored samples.
func (h *FlightHistory) Len() int { return h.count }

// Cap returns the maximum number of samples.
func (h *FlightHistory) Cap() int { return len(h.samples) }

// Mean returns the average of the stored samples, or fallback when empty.
func (h *FlightHistory) Mean(fallback float64) float64 {
	if h.count == 0 {
		return fallback
	}
	total := 0.0
	for _, s := range h.Values() {
		total += s
	}
	return total / float64(h.count)
}

// Values returns the samples oldest first.
func (h *FlightHistory) Values() []float64 {
	out := make([]float64, 0, h.count)
	start := (h.next - h.count + len(h.samples)) % len(h.samples)
	for i := 0; i < h.count; i++ {
		out = append(out, h.samples[(start+i)%len(h.samples)])
	}
	return out
}

// Reset clears all samples.
func (h *FlightHistory) Reset() {
	for i := range h.samples {
		h.samples[i] = 0
	}
	h.next, h.count = 0, 0
}
