package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"

	"pulsescan-go/internal/types"
)

// Timestamp names the output artifacts of one session.
func Timestamp() string {
	return time.Now().Format("20060102_150405")
}

// WriteAnalysis persists one measurement analysis: the full result as
// JSON and the sample series as CSV for notebook work.
func WriteAnalysis(outputDir string, runTimestamp string, analysis *types.SignalAnalysis) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return err
	}
	jsonPath := filepath.Join(outputDir, fmt.Sprintf("%s_analysis_%s.json", runTimestamp, analysis.ID))
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return err
	}

	csvPath := filepath.Join(outputDir, fmt.Sprintf("%s_signal_%s.csv", runTimestamp, analysis.ID))
	f, err := os.Create(csvPath)
	if err != nil {
		return err
	}
	peaks := indexSet(analysis.Peaks)
	outliers := indexSet(analysis.OutlierPeaks)
	_, _ = fmt.Fprintln(f, "index, timestamp, raw, filtered, peak, outlier")
	for i := range analysis.Raw {
		_, _ = fmt.Fprintf(
			f,
			"%d, %.6f, %.8f, %.8f, %d, %d\n",
			i,
			analysis.Timestamps[i],
			analysis.Raw[i],
			analysis.Filtered[i],
			mark(peaks[i]),
			mark(outliers[i]),
		)
	}
	return f.Close()
}

// WriteMetadata persists one session boundary record.
func WriteMetadata(outputDir string, runTimestamp string, kind string, meta map[string]any) error {
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(NormalizeJSONValue(meta), "", "  ")
	if err != nil {
		return err
	}
	path := filepath.Join(outputDir, fmt.Sprintf("%s_%s_meta.json", runTimestamp, kind))
	return os.WriteFile(path, data, 0o644)
}

// NormalizeJSONValue rewrites CBOR-decoded values into JSON-encodable
// ones. CBOR allows non-string map keys and tagged content, both of
// which encoding/json rejects.
func NormalizeJSONValue(value any) any {
	switch v := value.(type) {
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = NormalizeJSONValue(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = NormalizeJSONValue(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = NormalizeJSONValue(item)
		}
		return out
	case cbor.Tag:
		return NormalizeJSONValue(v.Content)
	default:
		return value
	}
}

func indexSet(indices []int) map[int]bool {
	set := make(map[int]bool, len(indices))
	for _, i := range indices {
		set[i] = true
	}
	return set
}

func mark(b bool) int {
	if b {
		return 1
	}
	return 0
}
