package types

import "github.com/google/uuid"

// ColorSample is one ROI-averaged color measurement for a single frame.
// R, G and B are fractions of full pixel range in [0,1]; Timestamp is in
// seconds. ROI is false when the frame had no usable face region.
type ColorSample struct {
	R         float64 `json:"r"`
	G         float64 `json:"g"`
	B         float64 `json:"b"`
	Timestamp float64 `json:"timestamp"`
	ROI       bool    `json:"roi"`
}

type Vitals struct {
	HeartRate    float64 `json:"heart_rate"`
	HRVCorrected float64 `json:"hrv_corrected"`
	HRVMeasured  float64 `json:"hrv_measured"`
}

// AFResult carries one atrial-fibrillation score. Available is false
// when no probability could be produced, which is distinct from a
// probability of zero.
type AFResult struct {
	Probability float64            `json:"probability"`
	Available   bool               `json:"available"`
	Features    map[string]float64 `json:"features,omitempty"`
}

// RawMessage is one decoded wire message from a camera client. Type is
// "start", "sample" or "end"; SessionID and Mode are set on session
// boundaries, Seq and Sample on sample messages.
type RawMessage struct {
	Type      string
	SessionID string
	Mode      string
	Seq       int
	Sample    ColorSample
}

// SignalAnalysis is the immutable result of one full measurement pass.
// Peaks and OutlierPeaks index into Raw/Filtered/Timestamps.
type SignalAnalysis struct {
	ID           uuid.UUID `json:"id"`
	Raw          []float64 `json:"raw"`
	Filtered     []float64 `json:"filtered"`
	Timestamps   []float64 `json:"timestamps"`
	Peaks        []int     `json:"peaks"`
	OutlierPeaks []int     `json:"outlier_peaks"`
	Vitals       Vitals    `json:"vitals"`
	VitalsRaw    Vitals    `json:"vitals_raw"`
	HasOutliers  bool      `json:"has_outliers"`
	FrameRate    float64   `json:"frame_rate"`
	AF           AFResult  `json:"af"`
	AFRaw        AFResult  `json:"af_raw"`
}
