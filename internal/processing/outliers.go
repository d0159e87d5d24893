package processing

import "sort"

// removeDoubleBeatOutliers merges spurious double detections of a single
// beat. An interval below 0.6x the median whose sum with its successor
// lands within [0.8, 1.2]x the median is folded into one interval. The
// returned indices are the removed intervals' original positions, which
// equal the removed middle peaks' positions in the peak list.
func removeDoubleBeatOutliers(ibis []float64) ([]float64, []int) {
	if len(ibis) < 2 {
		return append([]float64(nil), ibis...), nil
	}

	med := median(ibis)
	cleaned := make([]float64, 0, len(ibis))
	var removed []int
	for i := 0; i < len(ibis); i++ {
		if i+1 < len(ibis) && ibis[i] < 0.6*med {
			if sum := ibis[i] + ibis[i+1]; sum >= 0.8*med && sum <= 1.2*med {
				cleaned = append(cleaned, sum)
				removed = append(removed, i+1)
				i++
				continue
			}
		}
		cleaned = append(cleaned, ibis[i])
	}
	return cleaned, removed
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
