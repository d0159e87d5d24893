package ingest

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"pulsescan-go/internal/types"
)

// RawRecorder receives every raw payload before decoding, for replayable
// session recordings.
type RawRecorder interface {
	Record(payload []byte) error
}

// Stream returns a channel of messages from a camera client.
// Expects CBOR messages shaped like the capture pipeline:
// { "type": "sample", "seq": <int>, "timestamp": <float>, "roi": <bool>,
//   "r": <float>, "g": <float>, "b": <float> }
// plus "start"/"end" session boundaries carrying a session_id.
func Stream(ctx context.Context, endpoint string) (<-chan types.RawMessage, error) {
	return streamWithConfig(ctx, endpoint, 1, nil)
}

func StreamWithLogEvery(ctx context.Context, endpoint string, logEvery int) (<-chan types.RawMessage, error) {
	return streamWithConfig(ctx, endpoint, logEvery, nil)
}

func StreamWithLogEveryAndRecorder(ctx context.Context, endpoint string, logEvery int, recorder RawRecorder) (<-chan types.RawMessage, error) {
	return streamWithConfig(ctx, endpoint, logEvery, recorder)
}

func streamWithConfig(ctx context.Context, endpoint string, logEvery int, recorder RawRecorder) (<-chan types.RawMessage, error) {
	if logEvery < 1 {
		logEvery = 1
	}
	socket, err := zmq4.NewSocket(zmq4.PULL)
	if err != nil {
		return nil, err
	}
	if err := socket.Connect(endpoint); err != nil {
		_ = socket.Close()
		return nil, err
	}

	out := make(chan types.RawMessage, 128)
	go func() {
		defer close(out)
		defer socket.Close()

		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			payload, err := socket.RecvBytes(0)
			if err != nil {
				logEveryN(logEvery, "ingest recv error: %v", err)
				continue
			}
			if recorder != nil {
				if err := recorder.Record(payload); err != nil {
					logEveryN(logEvery, "ingest raw record failed: %v", err)
				}
			}

			msg, ok := decodeMessage(payload, logEvery)
			if !ok {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- msg:
			}
		}
	}()

	return out, nil
}

func decodeMessage(payload []byte, logEvery int) (types.RawMessage, bool) {
	start := time.Now()
	defer func() {
		decodeCount.Add(1)
		decodeNanos.Add(uint64(time.Since(start).Nanoseconds()))
	}()

	var fields map[string]any
	if err := cbor.Unmarshal(payload, &fields); err != nil {
		decodeFailures.Add(1)
		logEveryN(logEvery, "ingest CBOR decode error: %v", err)
		return types.RawMessage{}, false
	}

	msgType, _ := fields["type"].(string)
	switch msgType {
	case "start":
		sessionID, _ := fields["session_id"].(string)
		mode, _ := fields["mode"].(string)
		return types.RawMessage{Type: "start", SessionID: sessionID, Mode: mode}, true
	case "end":
		sessionID, _ := fields["session_id"].(string)
		return types.RawMessage{Type: "end", SessionID: sessionID}, true
	case "sample":
	default:
		decodeFailures.Add(1)
		logEveryN(logEvery, "ingest ignoring message type %q", msgType)
		return types.RawMessage{}, false
	}

	seq, err := toInt(fields["seq"])
	if err != nil {
		decodeFailures.Add(1)
		logEveryN(logEvery, "ingest invalid seq: %v", err)
		return types.RawMessage{}, false
	}
	timestamp, err := toFloat(fields["timestamp"])
	if err != nil {
		decodeFailures.Add(1)
		logEveryN(logEvery, "ingest invalid timestamp: %v", err)
		return types.RawMessage{}, false
	}

	sample := types.ColorSample{Timestamp: timestamp, ROI: true}
	if v, present := fields["roi"]; present {
		roi, err := toBool(v)
		if err != nil {
			decodeFailures.Add(1)
			logEveryN(logEvery, "ingest invalid roi flag: %v", err)
			return types.RawMessage{}, false
		}
		sample.ROI = roi
	}
	// Channels are only guaranteed on frames with a usable ROI.
	for key, dst := range map[string]*float64{"r": &sample.R, "g": &sample.G, "b": &sample.B} {
		raw, present := fields[key]
		if !present {
			if sample.ROI {
				decodeFailures.Add(1)
				logEveryN(logEvery, "ingest missing channel %q", key)
				return types.RawMessage{}, false
			}
			continue
		}
		value, err := toFloat(raw)
		if err != nil {
			decodeFailures.Add(1)
			logEveryN(logEvery, "ingest invalid channel %q: %v", key, err)
			return types.RawMessage{}, false
		}
		*dst = value
	}

	return types.RawMessage{Type: "sample", Seq: seq, Sample: sample}, true
}

func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case uint64:
		return int(n), nil
	case uint32:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("unsupported int type %T", v)
	}
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("unsupported float type %T", v)
	}
}

func toBool(v any) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case int64:
		return b != 0, nil
	case uint64:
		return b != 0, nil
	default:
		return false, errors.New("unsupported bool type")
	}
}

var (
	decodeFailures atomic.Uint64
	decodeCount    atomic.Uint64
	decodeNanos    atomic.Uint64
)

// DecodeFailures reports how many messages were dropped during decode.
func DecodeFailures() uint64 {
	return decodeFailures.Load()
}

// DecodeTiming reports the decode call count and cumulative nanoseconds.
func DecodeTiming() (uint64, uint64) {
	return decodeCount.Load(), decodeNanos.Load()
}

var logCounter int

func logEveryN(n int, format string, args ...any) {
	logCounter++
	if logCounter%n == 0 {
		log.Printf(format, args...)
	}
}
