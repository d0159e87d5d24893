package hrv

import (
	"math"
	"testing"
)

func TestRMSSD(t *testing.T) {
	if got := RMSSD(nil); got != 0 {
		t.Fatalf("empty input: got %v", got)
	}
	if got := RMSSD([]float64{0.8}); got != 0 {
		t.Fatalf("single interval: got %v", got)
	}
	if got := RMSSD([]float64{0.8, 0.8, 0.8}); got != 0 {
		t.Fatalf("constant intervals: got %v", got)
	}

	// Differences are +0.2 and -0.2 seconds: RMSSD = 200 ms.
	got := RMSSD([]float64{0.8, 1.0, 0.8})
	if math.Abs(got-200) > 1e-9 {
		t.Fatalf("got %v, want 200", got)
	}
}

func TestCorrectRMSSD(t *testing.T) {
	cases := []struct {
		measured float64
		want     float64
	}{
		{0, 0},
		{50, 0},
		// Just below the 60*sqrt(2) noise floor.
		{84.852, 0},
		{100, math.Sqrt(100*100 - 2*JitterSigma*JitterSigma)},
		{200, math.Sqrt(200*200 - 2*JitterSigma*JitterSigma)},
	}
	for _, tc := range cases {
		got := CorrectRMSSD(tc.measured)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Fatalf("CorrectRMSSD(%v) = %v, want %v", tc.measured, got, tc.want)
		}
	}
}
