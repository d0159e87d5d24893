package types

// Events pushed to websocket feed clients.

type WaveformEvent struct {
	Type    string    `json:"type"`
	Samples []float64 `json:"samples"`
}

type VitalsEvent struct {
	Type   string `json:"type"`
	Vitals Vitals `json:"vitals"`
}

type AnalysisEvent struct {
	Type     string         `json:"type"`
	Analysis SignalAnalysis `json:"analysis"`
}

// SnapshotEvent is the reply to a snapshot_request: everything a client
// needs to paint its initial state in one frame.
type SnapshotEvent struct {
	Type     string          `json:"type"`
	Waveform []float64       `json:"waveform"`
	Vitals   *Vitals         `json:"vitals,omitempty"`
	Analysis *SignalAnalysis `json:"analysis,omitempty"`
}

func NewWaveformEvent(samples []float64) WaveformEvent {
	return WaveformEvent{Type: "waveform", Samples: samples}
}

func NewVitalsEvent(v Vitals) VitalsEvent {
	return VitalsEvent{Type: "vitals", Vitals: v}
}

func NewAnalysisEvent(a SignalAnalysis) AnalysisEvent {
	return AnalysisEvent{Type: "analysis", Analysis: a}
}

func NewSnapshotEvent(waveform []float64, vitals *Vitals, analysis *SignalAnalysis) SnapshotEvent {
	return SnapshotEvent{Type: "snapshot", Waveform: waveform, Vitals: vitals, Analysis: analysis}
}
