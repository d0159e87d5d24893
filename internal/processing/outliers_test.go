package processing

import (
	"math"
	"reflect"
	"testing"
)

func TestRemoveDoubleBeatOutliersMergesSplitBeat(t *testing.T) {
	ibis := []float64{0.8, 0.8, 0.3, 0.55, 0.8}

	cleaned, removed := removeDoubleBeatOutliers(ibis)

	want := []float64{0.8, 0.8, 0.85, 0.8}
	if len(cleaned) != len(want) {
		t.Fatalf("cleaned = %v, want %v", cleaned, want)
	}
	for i := range want {
		if math.Abs(cleaned[i]-want[i]) > 1e-9 {
			t.Fatalf("cleaned[%d] = %v, want %v", i, cleaned[i], want[i])
		}
	}
	if !reflect.DeepEqual(removed, []int{3}) {
		t.Fatalf("removed = %v, want [3]", removed)
	}
}

func TestRemoveDoubleBeatOutliersMergesMultiple(t *testing.T) {
	ibis := []float64{0.8, 0.8, 0.8, 0.8, 0.3, 0.55, 0.8, 0.3, 0.5, 0.8}

	cleaned, removed := removeDoubleBeatOutliers(ibis)

	if len(cleaned) != 8 {
		t.Fatalf("cleaned = %v, want 8 intervals", cleaned)
	}
	if !reflect.DeepEqual(removed, []int{5, 8}) {
		t.Fatalf("removed = %v, want [5 8]", removed)
	}
	if math.Abs(cleaned[4]-0.85) > 1e-9 || math.Abs(cleaned[6]-0.8) > 1e-9 {
		t.Fatalf("merged intervals = %v, %v, want 0.85, 0.8", cleaned[4], cleaned[6])
	}
}

func TestRemoveDoubleBeatOutliersKeepsPlausibleIntervals(t *testing.T) {
	cases := []struct {
		name string
		ibis []float64
	}{
		{"regular", []float64{0.8, 0.8, 0.8, 0.8}},
		{"sum overshoots", []float64{0.8, 0.3, 0.8}},
		{"short tail has no successor", []float64{0.8, 0.8, 0.3}},
		{"single", []float64{0.8}},
		{"empty", nil},
	}
	for _, tc := range cases {
		cleaned, removed := removeDoubleBeatOutliers(tc.ibis)
		if len(cleaned) != len(tc.ibis) {
			t.Fatalf("%s: cleaned = %v, want %v", tc.name, cleaned, tc.ibis)
		}
		for i := range tc.ibis {
			if cleaned[i] != tc.ibis[i] {
				t.Fatalf("%s: cleaned[%d] = %v, want %v", tc.name, i, cleaned[i], tc.ibis[i])
			}
		}
		if removed != nil {
			t.Fatalf("%s: removed = %v, want none", tc.name, removed)
		}
	}
}

func TestMedian(t *testing.T) {
	if got := median([]float64{3, 1, 2}); got != 2 {
		t.Fatalf("odd median = %v, want 2", got)
	}
	if got := median([]float64{4, 1, 3, 2}); got != 2.5 {
		t.Fatalf("even median = %v, want 2.5", got)
	}
}
