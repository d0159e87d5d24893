package processing

import (
	"reflect"
	"testing"
)

func TestWaveformFillsThenWraps(t *testing.T) {
	w := NewWaveform(4)

	w.Push(1)
	w.Push(2)
	w.Push(3)
	if got := w.Snapshot(); !reflect.DeepEqual(got, []float64{1, 2, 3}) {
		t.Fatalf("partial snapshot = %v, want [1 2 3]", got)
	}

	w.Push(4)
	w.Push(5)
	w.Push(6)
	if got := w.Snapshot(); !reflect.DeepEqual(got, []float64{3, 4, 5, 6}) {
		t.Fatalf("wrapped snapshot = %v, want [3 4 5 6]", got)
	}
	if w.Len() != 4 {
		t.Fatalf("len = %d, want 4", w.Len())
	}
}

func TestWaveformReset(t *testing.T) {
	w := NewWaveform(2)
	w.Push(1)
	w.Push(2)
	w.Push(3)

	w.Reset()
	if w.Len() != 0 || len(w.Snapshot()) != 0 {
		t.Fatalf("reset left %d samples", w.Len())
	}

	w.Push(7)
	if got := w.Snapshot(); !reflect.DeepEqual(got, []float64{7}) {
		t.Fatalf("snapshot after reset = %v, want [7]", got)
	}
}

func TestWaveformMinimumCapacity(t *testing.T) {
	w := NewWaveform(0)
	w.Push(1)
	w.Push(2)
	if got := w.Snapshot(); !reflect.DeepEqual(got, []float64{2}) {
		t.Fatalf("snapshot = %v, want [2]", got)
	}
}
