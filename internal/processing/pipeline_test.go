package processing

import (
	"math"
	"reflect"
	"testing"
)

func TestEffectiveRate(t *testing.T) {
	cases := []struct {
		name string
		ts   []float64
		want float64
	}{
		{"regular spacing", []float64{0, 0.5, 1.0, 1.5}, 2},
		{"empty", nil, 30},
		{"single", []float64{4.2}, 30},
		{"zero span", []float64{1, 1, 1}, 30},
	}
	for _, tc := range cases {
		if got := effectiveRate(tc.ts); math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("%s: rate = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestNormalizeChannel(t *testing.T) {
	got := normalizeChannel([]float64{1, 3})
	if !reflect.DeepEqual(got, []float64{-0.5, 0.5}) {
		t.Fatalf("normalized = %v, want [-0.5 0.5]", got)
	}

	// A zero-mean channel cannot be scaled and passes through.
	in := []float64{-1, 1}
	if got := normalizeChannel(in); !reflect.DeepEqual(got, in) {
		t.Fatalf("zero-mean channel = %v, want unchanged", got)
	}
}

func TestSpectralHeartRateBinAligned(t *testing.T) {
	cfg := DefaultConfig()
	const n = 512
	signal := make([]float64, n)
	for i := range signal {
		signal[i] = math.Sin(2 * math.Pi * 26 * float64(i) / n)
	}

	// Bin 26 at 30 Hz over 512 samples is 1.5234375 Hz.
	got := spectralHeartRate(cfg, signal, 30)
	if math.Abs(got-91.40625) > 1e-9 {
		t.Fatalf("spectral rate = %v, want 91.40625", got)
	}

	if hr := heartRate(cfg, nil, signal, 30); math.Abs(hr-91.40625) > 1e-9 {
		t.Fatalf("fallback rate = %v, want 91.40625", hr)
	}
}

func TestSpectralHeartRateTruncatesToPowerOfTwo(t *testing.T) {
	cfg := DefaultConfig()
	signal := make([]float64, 600)
	for i := 88; i < 600; i++ {
		signal[i] = math.Sin(2 * math.Pi * 26 * float64(i-88) / 512)
	}

	got := spectralHeartRate(cfg, signal, 30)
	if math.Abs(got-91.40625) > 1e-9 {
		t.Fatalf("rate = %v, want 91.40625 from the trailing 512 samples", got)
	}
}

func TestSpectralHeartRateDegenerateInput(t *testing.T) {
	cfg := DefaultConfig()
	if got := spectralHeartRate(cfg, make([]float64, 256), 30); got != 0 {
		t.Fatalf("rate = %v for a flat signal, want 0", got)
	}
	if got := spectralHeartRate(cfg, []float64{0.4}, 30); got != 0 {
		t.Fatalf("rate = %v for a single sample, want 0", got)
	}
}

func TestLargestPow2(t *testing.T) {
	cases := []struct{ in, want int }{
		{0, 1}, {1, 1}, {2, 2}, {3, 2}, {255, 128}, {256, 256}, {900, 512},
	}
	for _, tc := range cases {
		if got := largestPow2(tc.in); got != tc.want {
			t.Fatalf("largestPow2(%d) = %d, want %d", tc.in, got, tc.want)
		}
	}
}
