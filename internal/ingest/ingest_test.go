package ingest

import (
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func encode(t *testing.T, msg map[string]any) []byte {
	t.Helper()
	payload, err := cbor.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal error: %v", err)
	}
	return payload
}

func TestDecodeMessageSample(t *testing.T) {
	payload := encode(t, map[string]any{
		"type":      "sample",
		"seq":       7,
		"timestamp": 1.25,
		"roi":       true,
		"r":         0.52,
		"g":         0.47,
		"b":         0.41,
	})

	msg, ok := decodeMessage(payload, 1)
	if !ok {
		t.Fatalf("decodeMessage returned ok=false")
	}
	if msg.Type != "sample" {
		t.Fatalf("unexpected type: %q", msg.Type)
	}
	if msg.Seq != 7 {
		t.Fatalf("unexpected seq: %d", msg.Seq)
	}
	if msg.Sample.Timestamp != 1.25 {
		t.Fatalf("unexpected timestamp: %v", msg.Sample.Timestamp)
	}
	if !msg.Sample.ROI {
		t.Fatalf("roi flag lost")
	}
	if msg.Sample.R != 0.52 || msg.Sample.G != 0.47 || msg.Sample.B != 0.41 {
		t.Fatalf("unexpected channels: %+v", msg.Sample)
	}
}

func TestDecodeMessageROIDefaultsTrue(t *testing.T) {
	payload := encode(t, map[string]any{
		"type":      "sample",
		"seq":       1,
		"timestamp": 0.033,
		"r":         0.5,
		"g":         0.5,
		"b":         0.5,
	})

	msg, ok := decodeMessage(payload, 1)
	if !ok {
		t.Fatalf("decodeMessage returned ok=false")
	}
	if !msg.Sample.ROI {
		t.Fatalf("missing roi flag should default to true")
	}
}

func TestDecodeMessageDroppedROIMayOmitChannels(t *testing.T) {
	payload := encode(t, map[string]any{
		"type":      "sample",
		"seq":       42,
		"timestamp": 1.4,
		"roi":       false,
	})

	msg, ok := decodeMessage(payload, 1)
	if !ok {
		t.Fatalf("decodeMessage returned ok=false")
	}
	if msg.Sample.ROI {
		t.Fatalf("roi flag lost")
	}
	if msg.Sample.R != 0 || msg.Sample.G != 0 || msg.Sample.B != 0 {
		t.Fatalf("channels should stay zero: %+v", msg.Sample)
	}
}

func TestDecodeMessageSessionBoundaries(t *testing.T) {
	start, ok := decodeMessage(encode(t, map[string]any{
		"type":       "start",
		"session_id": "c1d7",
		"mode":       "measurement",
	}), 1)
	if !ok || start.Type != "start" || start.SessionID != "c1d7" || start.Mode != "measurement" {
		t.Fatalf("unexpected start message: %+v ok=%v", start, ok)
	}

	end, ok := decodeMessage(encode(t, map[string]any{
		"type":       "end",
		"session_id": "c1d7",
	}), 1)
	if !ok || end.Type != "end" || end.SessionID != "c1d7" {
		t.Fatalf("unexpected end message: %+v ok=%v", end, ok)
	}
}

func TestDecodeMessageRejectsBadPayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload []byte
	}{
		{"not cbor", []byte{0xff, 0x00, 0x01}},
		{"unknown type", encode(t, map[string]any{"type": "telemetry"})},
		{"missing channel", encode(t, map[string]any{
			"type": "sample", "seq": 1, "timestamp": 0.1, "r": 0.5, "g": 0.5,
		})},
		{"bad seq", encode(t, map[string]any{
			"type": "sample", "seq": "first", "timestamp": 0.1,
			"r": 0.5, "g": 0.5, "b": 0.5,
		})},
	}
	for _, tc := range cases {
		if _, ok := decodeMessage(tc.payload, 1); ok {
			t.Fatalf("%s: decode accepted", tc.name)
		}
	}
}

func TestDecodeMessageCountsFailures(t *testing.T) {
	before := DecodeFailures()
	decodeMessage([]byte{0xff}, 1)
	if DecodeFailures() != before+1 {
		t.Fatalf("decode failure not counted")
	}
}
