package afib

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Physiologic bounds on a plausible inter-beat interval, seconds.
const (
	minRR = 0.3
	maxRR = 2.0
)

// ExtractFeatures derives the model's feature vector from detected peak
// indices, the per-sample timestamps and the raw pulse signal. It
// returns false when fewer than three peaks are available or fewer than
// two intervals survive the physiologic bounds.
func ExtractFeatures(peakIdx []int, timestamps, signal []float64) (map[string]float64, bool) {
	if len(peakIdx) < 3 {
		return nil, false
	}

	rr := make([]float64, 0, len(peakIdx)-1)
	for i := 1; i < len(peakIdx); i++ {
		d := timestamps[peakIdx[i]] - timestamps[peakIdx[i-1]]
		if d < minRR || d > maxRR {
			continue
		}
		rr = append(rr, d)
	}
	if len(rr) < 2 {
		return nil, false
	}

	hr := make([]float64, len(rr))
	for i, d := range rr {
		hr[i] = 60 / d
	}

	var sumSqDiff float64
	var nn50 int
	for i := 1; i < len(rr); i++ {
		d := rr[i] - rr[i-1]
		sumSqDiff += d * d
		if math.Abs(d) > 0.05 {
			nn50++
		}
	}
	rmssd := math.Sqrt(sumSqDiff / float64(len(rr)-1))
	pnn50 := float64(nn50) / float64(len(rr)-1)

	span := timestamps[len(timestamps)-1] - timestamps[0]
	var beatsPerSec float64
	if span > 0 {
		beatsPerSec = float64(len(peakIdx)) / span
	}

	return map[string]float64{
		"rr_mean":       stat.Mean(rr, nil),
		"rr_median":     median(rr),
		"rr_std":        stat.StdDev(rr, nil),
		"rr_rmssd":      rmssd,
		"pnn50":         pnn50,
		"hr_mean":       stat.Mean(hr, nil),
		"hr_std":        stat.StdDev(hr, nil),
		"beat_count":    float64(len(peakIdx)),
		"beats_per_sec": beatsPerSec,
		"signal_mean":   stat.Mean(signal, nil),
		"signal_std":    stat.StdDev(signal, nil),
	}, true
}

func median(values []float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
