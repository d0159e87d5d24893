package output

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/google/uuid"

	"pulsescan-go/internal/types"
)

func TestWriteAnalysis(t *testing.T) {
	dir := t.TempDir()
	analysis := &types.SignalAnalysis{
		ID:           uuid.New(),
		Raw:          []float64{0.1, 0.9, 0.2, 0.8},
		Filtered:     []float64{0.05, 0.85, 0.15, 0.75},
		Timestamps:   []float64{0, 0.033, 0.066, 0.1},
		Peaks:        []int{1, 3},
		OutlierPeaks: []int{3},
		Vitals:       types.Vitals{HeartRate: 71.2},
		HasOutliers:  true,
		FrameRate:    30,
	}

	if err := WriteAnalysis(dir, "20240301_101500", analysis); err != nil {
		t.Fatalf("write analysis: %v", err)
	}

	jsonPath := filepath.Join(dir, "20240301_101500_analysis_"+analysis.ID.String()+".json")
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatalf("read json: %v", err)
	}
	var restored types.SignalAnalysis
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if restored.ID != analysis.ID || restored.Vitals.HeartRate != 71.2 {
		t.Fatalf("restored analysis = %+v", restored)
	}

	csvPath := filepath.Join(dir, "20240301_101500_signal_"+analysis.ID.String()+".csv")
	body, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(lines) != 5 {
		t.Fatalf("csv has %d lines, want header plus 4 rows", len(lines))
	}
	if !strings.HasPrefix(lines[0], "index, timestamp") {
		t.Fatalf("csv header = %q", lines[0])
	}
	// Row 3 (index 3) is both a peak and an outlier.
	if !strings.HasSuffix(lines[4], "1, 1") {
		t.Fatalf("outlier row = %q", lines[4])
	}
	if !strings.HasSuffix(lines[2], "1, 0") {
		t.Fatalf("peak row = %q", lines[2])
	}
}

func TestWriteMetadata(t *testing.T) {
	dir := t.TempDir()
	meta := map[string]any{"session_id": "c1d7", "mode": "measurement"}

	if err := WriteMetadata(dir, "20240301_101500", "end", meta); err != nil {
		t.Fatalf("write metadata: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "20240301_101500_end_meta.json"))
	if err != nil {
		t.Fatalf("read metadata: %v", err)
	}
	var restored map[string]any
	if err := json.Unmarshal(data, &restored); err != nil {
		t.Fatalf("parse metadata: %v", err)
	}
	if restored["session_id"] != "c1d7" || restored["mode"] != "measurement" {
		t.Fatalf("restored metadata = %v", restored)
	}
}

func TestNormalizeJSONValue(t *testing.T) {
	in := map[any]any{
		"session": map[any]any{uint64(1): "a"},
		"list":    []any{map[any]any{"k": uint64(2)}},
	}

	got := NormalizeJSONValue(in)
	want := map[string]any{
		"session": map[string]any{"1": "a"},
		"list":    []any{map[string]any{"k": uint64(2)}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("normalized = %#v, want %#v", got, want)
	}
	if _, err := json.Marshal(got); err != nil {
		t.Fatalf("normalized value not JSON encodable: %v", err)
	}
}

func TestRawLogRoundTrip(t *testing.T) {
	dir := t.TempDir()
	w, err := NewRawLogWriter(dir, "session")
	if err != nil {
		t.Fatalf("new raw log: %v", err)
	}
	records := [][]byte{[]byte("first"), []byte("second payload")}
	for _, rec := range records {
		if err := w.Record(rec); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Record([]byte("late")); err == nil {
		t.Fatal("record after close succeeded")
	}

	f, err := os.Open(w.Path())
	if err != nil {
		t.Fatalf("open recording: %v", err)
	}
	defer f.Close()

	magic := make([]byte, len(RawLogMagic))
	if _, err := io.ReadFull(f, magic); err != nil {
		t.Fatalf("read magic: %v", err)
	}
	if string(magic) != RawLogMagic {
		t.Fatalf("magic = %q, want %q", magic, RawLogMagic)
	}

	for i, want := range records {
		var header [12]byte
		if _, err := io.ReadFull(f, header[:]); err != nil {
			t.Fatalf("record %d header: %v", i, err)
		}
		if ts := binary.LittleEndian.Uint64(header[:8]); ts == 0 {
			t.Fatalf("record %d has no timestamp", i)
		}
		size := binary.LittleEndian.Uint32(header[8:12])
		payload := make([]byte, size)
		if _, err := io.ReadFull(f, payload); err != nil {
			t.Fatalf("record %d payload: %v", i, err)
		}
		if string(payload) != string(want) {
			t.Fatalf("record %d = %q, want %q", i, payload, want)
		}
	}
	if _, err := f.Read(make([]byte, 1)); err != io.EOF {
		t.Fatalf("trailing bytes after last record: %v", err)
	}
}
