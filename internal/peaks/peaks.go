package peaks

import (
	"math"
	"sort"
)

const (
	// Threshold above the trailing-window mean, in standard deviations.
	thresholdWeight = 0.1
	// Minimum distance between accepted peaks, as a fraction of the
	// sample rate (refractory suppression during amplitude selection).
	refractoryFraction = 0.3
	// Minimum spacing enforced on the final index-ordered list.
	minSpacingFraction = 0.4
)

// Detect returns the indices of pulse peaks in signal, ascending. The
// threshold adapts to a trailing window of one second of samples; of any
// cluster of candidates closer than the refractory distance the largest
// amplitude wins, and a final pass drops the smaller of two survivors
// closer than the minimum spacing.
func Detect(signal []float64, sampleRate float64) []int {
	n := len(signal)
	if n < 3 {
		return nil
	}
	window := int(math.Round(sampleRate))
	if window < 1 {
		window = 1
	}

	prefix := make([]float64, n+1)
	prefixSq := make([]float64, n+1)
	for i, v := range signal {
		prefix[i+1] = prefix[i] + v
		prefixSq[i+1] = prefixSq[i] + v*v
	}

	var candidates []int
	for i := 1; i < n-1; i++ {
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		count := float64(i - lo + 1)
		mean := (prefix[i+1] - prefix[lo]) / count
		variance := (prefixSq[i+1]-prefixSq[lo])/count - mean*mean
		if variance < 0 {
			variance = 0
		}
		threshold := mean + thresholdWeight*math.Sqrt(variance)
		if signal[i] > threshold && signal[i] > signal[i-1] && signal[i] >= signal[i+1] {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.Slice(candidates, func(a, b int) bool {
		return signal[candidates[a]] > signal[candidates[b]]
	})
	refractory := refractoryFraction * sampleRate
	accepted := make([]int, 0, len(candidates))
	for _, c := range candidates {
		clear := true
		for _, p := range accepted {
			if math.Abs(float64(c-p)) < refractory {
				clear = false
				break
			}
		}
		if clear {
			accepted = append(accepted, c)
		}
	}
	sort.Ints(accepted)

	minSpacing := minSpacingFraction * sampleRate
	out := accepted[:0]
	for _, p := range accepted {
		if len(out) > 0 && float64(p-out[len(out)-1]) < minSpacing {
			if signal[p] > signal[out[len(out)-1]] {
				out[len(out)-1] = p
			}
			continue
		}
		out = append(out, p)
	}
	return out
}
