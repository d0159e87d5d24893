package filtering

import (
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Bandpass keeps the [lowCut, highCut] Hz band of signal and returns a
// slice of identical length. The input is zero-padded to the next power
// of two, transformed, masked in the frequency domain and transformed
// back. Sequences of length <= 1 are returned unchanged.
func Bandpass(signal []float64, sampleRate, lowCut, highCut float64) []float64 {
	if len(signal) <= 1 {
		return signal
	}

	n := nextPow2(len(signal))
	buf := make([]complex128, n)
	for i, v := range signal {
		buf[i] = complex(v, 0)
	}

	fft := fourier.NewCmplxFFT(n)
	coeff := fft.Coefficients(nil, buf)
	for k := range coeff {
		if f := math.Abs(binFrequency(k, n, sampleRate)); f < lowCut || f > highCut {
			coeff[k] = 0
		}
	}
	seq := fft.Sequence(nil, coeff)

	out := make([]float64, len(signal))
	scale := 1 / float64(n)
	for i := range out {
		out[i] = real(seq[i]) * scale
	}
	return out
}

// BandpassIIR is the transform-free fallback: a first-order high-pass at
// lowCut chained into a first-order low-pass at highCut, both seeded
// with the first sample. Same length contract as Bandpass.
func BandpassIIR(signal []float64, sampleRate, lowCut, highCut float64) []float64 {
	if len(signal) <= 1 {
		return signal
	}

	dt := 1 / sampleRate

	rc := 1 / (2 * math.Pi * lowCut)
	alpha := rc / (rc + dt)
	high := make([]float64, len(signal))
	high[0] = signal[0]
	for i := 1; i < len(signal); i++ {
		high[i] = alpha * (high[i-1] + signal[i] - signal[i-1])
	}

	rc = 1 / (2 * math.Pi * highCut)
	alpha = dt / (rc + dt)
	band := make([]float64, len(signal))
	band[0] = signal[0]
	for i := 1; i < len(signal); i++ {
		band[i] = band[i-1] + alpha*(high[i]-band[i-1])
	}
	return band
}

// FFT returns the one-sided normalized magnitude spectrum |DFT(k)|/N for
// k < N/2. The input length must be a power of two; any other length
// yields an empty result and the caller is expected to truncate or pad.
func FFT(signal []float64) []float64 {
	n := len(signal)
	if n == 0 || n&(n-1) != 0 {
		return nil
	}

	fft := fourier.NewFFT(n)
	coeff := fft.Coefficients(nil, signal)
	out := make([]float64, n/2)
	for k := range out {
		out[k] = cmplx.Abs(coeff[k]) / float64(n)
	}
	return out
}

// SmoothMovingAverage applies a trailing moving average of the given
// width, clamping the window at the start of the sequence.
func SmoothMovingAverage(signal []float64, width int) []float64 {
	out := make([]float64, len(signal))
	if width < 1 {
		copy(out, signal)
		return out
	}
	sum := 0.0
	for i, v := range signal {
		sum += v
		if i >= width {
			sum -= signal[i-width]
		}
		count := i + 1
		if count > width {
			count = width
		}
		out[i] = sum / float64(count)
	}
	return out
}

// binFrequency maps bin k of an n-point transform to Hz, folding bins
// above the Nyquist frequency to their negative counterparts.
func binFrequency(k, n int, sampleRate float64) float64 {
	if k > n/2 {
		return float64(k-n) * sampleRate / float64(n)
	}
	return float64(k) * sampleRate / float64(n)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
