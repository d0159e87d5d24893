package hrv

import "math"

// Camera frame-timing jitter in milliseconds; it inflates measured
// RMSSD by 2*sigma^2 under the variance sum.
const JitterSigma = 60.0

// RMSSD over inter-beat intervals given in seconds, returned in milliseconds.
func RMSSD(ibis []float64) float64 {
	if len(ibis) < 2 {
		return 0
	}
	var sum float64
	for i := 1; i < len(ibis); i++ {
		d := ibis[i] - ibis[i-1]
		sum += d * d
	}
	return math.Sqrt(sum/float64(len(ibis)-1)) * 1000
}

func CorrectRMSSD(measured float64) float64 {
	corrected := measured*measured - 2*JitterSigma*JitterSigma
	if corrected <= 0 {
		return 0
	}
	return math.Sqrt(corrected)
}
