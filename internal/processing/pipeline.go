package processing

import (
	"gonum.org/v1/gonum/stat"

	"pulsescan-go/internal/filtering"
	"pulsescan-go/internal/hrv"
	"pulsescan-go/internal/peaks"
	"pulsescan-go/internal/types"
)

// pipelineResult carries everything one pulse-extraction pass produces.
type pipelineResult struct {
	rate       float64
	raw        []float64
	filtered   []float64
	timestamps []float64
	peaks      []int
	ibis       []float64
	ibisRaw    []float64
	removed    []int
	vitals     types.Vitals
	vitalsRaw  types.Vitals
}

func runPipeline(cfg Config, samples []types.ColorSample) pipelineResult {
	r, g, b, ts := splitChannels(samples)
	rate := effectiveRate(ts)

	pulse := chromPulse(normalizeChannel(r), normalizeChannel(g), normalizeChannel(b))
	filtered := applyBandpass(cfg, pulse, rate)

	idx := peaks.Detect(filtered, rate)
	ibisRaw := intervals(idx, ts)
	ibis, removed := removeDoubleBeatOutliers(ibisRaw)

	return pipelineResult{
		rate:       rate,
		raw:        pulse,
		filtered:   filtered,
		timestamps: ts,
		peaks:      idx,
		ibis:       ibis,
		ibisRaw:    ibisRaw,
		removed:    removed,
		vitals:     vitalsFrom(cfg, ibis, filtered, rate),
		vitalsRaw:  vitalsFrom(cfg, ibisRaw, filtered, rate),
	}
}

func splitChannels(samples []types.ColorSample) (r, g, b, ts []float64) {
	r = make([]float64, len(samples))
	g = make([]float64, len(samples))
	b = make([]float64, len(samples))
	ts = make([]float64, len(samples))
	for i, s := range samples {
		r[i], g[i], b[i], ts[i] = s.R, s.G, s.B, s.Timestamp
	}
	return r, g, b, ts
}

// effectiveRate derives the sample rate from the timestamp span, falling
// back to the nominal camera rate when timestamps are unusable.
func effectiveRate(timestamps []float64) float64 {
	n := len(timestamps)
	if n < 2 {
		return nominalRate
	}
	span := timestamps[n-1] - timestamps[0]
	if span <= 0 {
		return nominalRate
	}
	return float64(n-1) / span
}

func normalizeChannel(values []float64) []float64 {
	mean := stat.Mean(values, nil)
	if mean == 0 {
		return values
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = (v - mean) / mean
	}
	return out
}

// chromPulse projects the normalized channels onto the chrominance plane
// and combines them into a single motion-robust pulse signal.
func chromPulse(r, g, b []float64) []float64 {
	x := make([]float64, len(r))
	y := make([]float64, len(r))
	for i := range r {
		x[i] = 3*r[i] - 2*g[i]
		y[i] = 1.5*r[i] + g[i] - 1.5*b[i]
	}

	alpha := 0.0
	if len(r) > 1 {
		if sy := stat.StdDev(y, nil); sy > 0 {
			alpha = stat.StdDev(x, nil) / sy
		}
	}

	s := make([]float64, len(r))
	for i := range s {
		s[i] = x[i] - alpha*y[i]
	}
	return s
}

func applyBandpass(cfg Config, signal []float64, rate float64) []float64 {
	if cfg.Filter == FilterIIR {
		return filtering.BandpassIIR(signal, rate, cfg.LowCut, cfg.HighCut)
	}
	return filtering.Bandpass(signal, rate, cfg.LowCut, cfg.HighCut)
}

func intervals(peakIdx []int, timestamps []float64) []float64 {
	if len(peakIdx) < 2 {
		return nil
	}
	out := make([]float64, 0, len(peakIdx)-1)
	for i := 1; i < len(peakIdx); i++ {
		out = append(out, timestamps[peakIdx[i]]-timestamps[peakIdx[i-1]])
	}
	return out
}

func vitalsFrom(cfg Config, ibis, filtered []float64, rate float64) types.Vitals {
	v := types.Vitals{HeartRate: heartRate(cfg, ibis, filtered, rate)}
	v.HRVMeasured = hrv.RMSSD(ibis)
	v.HRVCorrected = hrv.CorrectRMSSD(v.HRVMeasured)
	return v
}

func heartRate(cfg Config, ibis, filtered []float64, rate float64) float64 {
	if len(ibis) > 0 {
		if mean := stat.Mean(ibis, nil); mean > 0 {
			return 60 / mean
		}
	}
	return spectralHeartRate(cfg, filtered, rate)
}

// spectralHeartRate estimates bpm from the dominant passband frequency,
// truncating the signal to its largest power-of-two trailing
// subsequence. Leading samples are discarded, never interpolated.
func spectralHeartRate(cfg Config, filtered []float64, rate float64) float64 {
	p := largestPow2(len(filtered))
	if p < 2 {
		return 0
	}
	spectrum := filtering.FFT(filtered[len(filtered)-p:])

	best := -1
	bestMag := 0.0
	for k, mag := range spectrum {
		freq := float64(k) * rate / float64(p)
		if freq < cfg.LowCut || freq > cfg.HighCut {
			continue
		}
		if mag > bestMag {
			bestMag = mag
			best = k
		}
	}
	if best < 0 {
		return 0
	}
	return float64(best) * rate / float64(p) * 60
}

func largestPow2(n int) int {
	p := 1
	for p*2 <= n {
		p *= 2
	}
	return p
}
