package processing

// Waveform is a fixed-capacity ring of smoothed display samples. While
// filling it appends; once full, writes wrap and overwrite the oldest
// entry. The write index always stays within [0, capacity).
type Waveform struct {
	buf   []float64
	index int
}

func NewWaveform(capacity int) *Waveform {
	if capacity < 1 {
		capacity = 1
	}
	return &Waveform{buf: make([]float64, 0, capacity)}
}

func (w *Waveform) Push(v float64) {
	if len(w.buf) < cap(w.buf) {
		w.buf = append(w.buf, v)
		w.index = len(w.buf) % cap(w.buf)
		return
	}
	w.buf[w.index] = v
	w.index = (w.index + 1) % len(w.buf)
}

// Snapshot returns the buffered samples oldest-first.
func (w *Waveform) Snapshot() []float64 {
	if len(w.buf) < cap(w.buf) {
		out := make([]float64, len(w.buf))
		copy(out, w.buf)
		return out
	}
	out := make([]float64, 0, len(w.buf))
	out = append(out, w.buf[w.index:]...)
	out = append(out, w.buf[:w.index]...)
	return out
}

func (w *Waveform) Len() int {
	return len(w.buf)
}

func (w *Waveform) Reset() {
	w.buf = w.buf[:0]
	w.index = 0
}
