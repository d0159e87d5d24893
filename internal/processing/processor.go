package processing

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"pulsescan-go/internal/afib"
	"pulsescan-go/internal/filtering"
	"pulsescan-go/internal/types"
)

const (
	FilterFFT = "fft"
	FilterIIR = "iir"
)

const (
	nominalRate = 30.0 // assumed when timestamps are unusable
	smoothWidth = 5
)

type Config struct {
	LowCut          float64
	HighCut         float64
	WindowSize      int
	WaveformSeconds float64
	Filter          string
}

func DefaultConfig() Config {
	return Config{
		LowCut:          0.7,
		HighCut:         4.0,
		WindowSize:      256,
		WaveformSeconds: 12,
		Filter:          FilterFFT,
	}
}

type mode int

const (
	modeIdle mode = iota
	modeLive
	modeMeasurement
)

func (m mode) String() string {
	switch m {
	case modeLive:
		return "live"
	case modeMeasurement:
		return "measurement"
	default:
		return "idle"
	}
}

// Processor's mu guards the sample buffers and cached results;
// analysisMu serializes pipeline runs so they never compute under the
// data lock. The first entry point called after a reset selects the mode.
type Processor struct {
	cfg      Config
	detector *afib.Detector

	mu           sync.Mutex
	mode         mode
	buf          []types.ColorSample
	ingested     int
	emitted      int
	lastVitals   types.Vitals
	hasVitals    bool
	lastAnalysis *types.SignalAnalysis
	waveform     *Waveform

	analysisMu sync.Mutex

	waveformJobs chan struct{}
	done         chan struct{}
	closeOnce    sync.Once
}

func NewProcessor(cfg Config, detector *afib.Detector) *Processor {
	def := DefaultConfig()
	if cfg.LowCut <= 0 {
		cfg.LowCut = def.LowCut
	}
	if cfg.HighCut <= cfg.LowCut {
		cfg.HighCut = def.HighCut
	}
	if cfg.WindowSize < 2 {
		cfg.WindowSize = def.WindowSize
	}
	if cfg.WaveformSeconds <= 0 {
		cfg.WaveformSeconds = def.WaveformSeconds
	}

	p := &Processor{
		cfg:          cfg,
		detector:     detector,
		waveform:     NewWaveform(int(cfg.WaveformSeconds * nominalRate)),
		waveformJobs: make(chan struct{}, 1),
		done:         make(chan struct{}),
	}
	go p.waveformLoop()
	return p
}

func (p *Processor) Close() {
	p.closeOnce.Do(func() { close(p.done) })
}

func (p *Processor) Config() Config {
	return p.cfg
}

func (p *Processor) Process(sample types.ColorSample) (types.Vitals, bool) {
	p.mu.Lock()
	if p.mode == modeIdle {
		p.mode = modeLive
	}
	if p.mode != modeLive || !sample.ROI {
		v, ok := p.lastVitals, p.hasVitals
		p.mu.Unlock()
		return v, ok
	}

	p.buf = append(p.buf, sample)
	p.ingested++
	if len(p.buf) < p.cfg.WindowSize {
		v, ok := p.lastVitals, p.hasVitals
		p.mu.Unlock()
		return v, ok
	}

	window := make([]types.ColorSample, p.cfg.WindowSize)
	copy(window, p.buf[len(p.buf)-p.cfg.WindowSize:])
	keep := p.cfg.WindowSize / 2
	p.buf = append(p.buf[:0], p.buf[len(p.buf)-keep:]...)
	ingested := p.ingested
	p.mu.Unlock()

	p.analysisMu.Lock()
	res := runPipeline(p.cfg, window)
	p.analysisMu.Unlock()

	smoothed := filtering.SmoothMovingAverage(res.filtered, smoothWidth)

	p.mu.Lock()
	if p.mode == modeLive {
		p.lastVitals = res.vitals
		p.hasVitals = true
		p.pushWaveformLocked(smoothed, ingested)
	}
	v, ok := p.lastVitals, p.hasVitals
	p.mu.Unlock()
	return v, ok
}

func (p *Processor) ProcessMeasurement(sample types.ColorSample) (types.Vitals, bool) {
	p.mu.Lock()
	if p.mode == modeIdle {
		p.mode = modeMeasurement
	}
	if p.mode != modeMeasurement || !sample.ROI {
		v, ok := p.lastVitals, p.hasVitals
		p.mu.Unlock()
		return v, ok
	}

	p.buf = append(p.buf, sample)
	p.ingested++
	v, ok := p.lastVitals, p.hasVitals
	p.mu.Unlock()

	select {
	case p.waveformJobs <- struct{}{}:
	default:
	}
	return v, ok
}

// ctx bounds only the optional remote AF fallback.
func (p *Processor) AnalyzeMeasurement(ctx context.Context) (*types.SignalAnalysis, bool) {
	p.mu.Lock()
	if p.mode != modeMeasurement || len(p.buf) < p.cfg.WindowSize {
		p.mu.Unlock()
		return nil, false
	}
	samples := make([]types.ColorSample, len(p.buf))
	copy(samples, p.buf)
	p.mu.Unlock()

	p.analysisMu.Lock()
	res := runPipeline(p.cfg, samples)
	p.analysisMu.Unlock()

	analysis := p.buildAnalysis(ctx, res)

	p.mu.Lock()
	if p.mode == modeMeasurement {
		p.lastVitals = res.vitals
		p.hasVitals = true
		p.lastAnalysis = analysis
	}
	p.mu.Unlock()
	return analysis, true
}

func (p *Processor) Reset() {
	p.mu.Lock()
	p.mode = modeIdle
	p.buf = nil
	p.ingested = 0
	p.emitted = 0
	p.lastVitals = types.Vitals{}
	p.hasVitals = false
	p.lastAnalysis = nil
	p.waveform.Reset()
	p.mu.Unlock()
}

func (p *Processor) Vitals() (types.Vitals, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastVitals, p.hasVitals
}

func (p *Processor) Analysis() *types.SignalAnalysis {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastAnalysis
}

func (p *Processor) WaveformSnapshot() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waveform.Snapshot()
}

func (p *Processor) Mode() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode.String()
}

func (p *Processor) buildAnalysis(ctx context.Context, res pipelineResult) *types.SignalAnalysis {
	analysis := &types.SignalAnalysis{
		ID:          uuid.New(),
		Raw:         res.raw,
		Filtered:    res.filtered,
		Timestamps:  res.timestamps,
		Peaks:       res.peaks,
		Vitals:      res.vitals,
		VitalsRaw:   res.vitalsRaw,
		HasOutliers: len(res.removed) > 0,
		FrameRate:   res.rate,
	}

	cleanPeaks := res.peaks
	if len(res.removed) > 0 {
		removedSet := make(map[int]bool, len(res.removed))
		outliers := make([]int, 0, len(res.removed))
		for _, pos := range res.removed {
			removedSet[pos] = true
			outliers = append(outliers, res.peaks[pos])
		}
		analysis.OutlierPeaks = outliers

		cleanPeaks = make([]int, 0, len(res.peaks)-len(res.removed))
		for i, idx := range res.peaks {
			if !removedSet[i] {
				cleanPeaks = append(cleanPeaks, idx)
			}
		}
	}

	if features, ok := afib.ExtractFeatures(res.peaks, res.timestamps, res.raw); ok {
		analysis.AFRaw = p.score(ctx, features)
	}
	if features, ok := afib.ExtractFeatures(cleanPeaks, res.timestamps, res.raw); ok {
		analysis.AF = p.score(ctx, features)
	}
	return analysis
}

func (p *Processor) score(ctx context.Context, features map[string]float64) types.AFResult {
	result := types.AFResult{Features: features}
	if p.detector == nil {
		return result
	}
	prob, err := p.detector.ProbabilityWithFallback(ctx, features)
	if err != nil {
		return result
	}
	result.Probability = prob
	result.Available = true
	return result
}

func (p *Processor) waveformLoop() {
	for {
		select {
		case <-p.done:
			return
		case <-p.waveformJobs:
			p.refreshWaveform()
		}
	}
}

// refreshWaveform recomputes the display trace over a trailing half
// window; the emitted watermark keeps overlapping refreshes from
// duplicating ring content.
func (p *Processor) refreshWaveform() {
	p.mu.Lock()
	if p.mode != modeMeasurement || len(p.buf) == 0 {
		p.mu.Unlock()
		return
	}
	window := p.cfg.WindowSize / 2
	if window > len(p.buf) {
		window = len(p.buf)
	}
	samples := make([]types.ColorSample, window)
	copy(samples, p.buf[len(p.buf)-window:])
	ingested := p.ingested
	p.mu.Unlock()

	r, g, b, ts := splitChannels(samples)
	rate := effectiveRate(ts)
	pulse := chromPulse(normalizeChannel(r), normalizeChannel(g), normalizeChannel(b))
	smoothed := filtering.SmoothMovingAverage(applyBandpass(p.cfg, pulse, rate), smoothWidth)

	p.mu.Lock()
	if p.mode == modeMeasurement {
		p.pushWaveformLocked(smoothed, ingested)
	}
	p.mu.Unlock()
}

func (p *Processor) pushWaveformLocked(smoothed []float64, ingested int) {
	fresh := ingested - p.emitted
	if fresh <= 0 {
		return
	}
	if fresh > len(smoothed) {
		fresh = len(smoothed)
	}
	for _, v := range smoothed[len(smoothed)-fresh:] {
		p.waveform.Push(v)
	}
	p.emitted = ingested
}
