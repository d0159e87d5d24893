package simulator

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"pulsescan-go/internal/types"
)

const sampleRate = 30.0

// Options shape the synthetic subject.
type Options struct {
	Mode           string
	PulseRate      float64 // beats per minute
	Jitter         float64 // fractional beat-to-beat variation
	SessionSeconds float64 // measurement session length
}

// Stream synthesizes the message stream of a camera client watching one
// subject: a session start followed by ROI color samples at ~30 Hz. The
// pulse lands mostly in the green channel, beat lengths wander by the
// jitter fraction and the ROI drops out now and then, like a face
// tracker losing lock. A live session runs until ctx is done;
// measurement sessions end after SessionSeconds, pause briefly and
// start over with a fresh session id.
func Stream(ctx context.Context, opts Options) <-chan types.RawMessage {
	out := make(chan types.RawMessage)
	go func() {
		defer close(out)

		if opts.PulseRate <= 0 {
			opts.PulseRate = 72
		}
		if opts.Jitter <= 0 {
			opts.Jitter = 0.03
		}
		if opts.SessionSeconds <= 0 {
			opts.SessionSeconds = 45
		}

		ticker := time.NewTicker(time.Second / sampleRate)
		defer ticker.Stop()

		for {
			if !runSession(ctx, out, ticker, opts) {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(2 * time.Second):
			}
		}
	}()

	return out
}

// runSession emits one start/sample/end sequence and reports false once
// ctx has ended the stream.
func runSession(ctx context.Context, out chan<- types.RawMessage, ticker *time.Ticker, opts Options) bool {
	baseFreq := opts.PulseRate / 60.0
	id := uuid.NewString()

	start := types.RawMessage{Type: "start", SessionID: id, Mode: opts.Mode}
	select {
	case <-ctx.Done():
		return false
	case out <- start:
	}

	limit := -1
	if opts.Mode == "measurement" {
		limit = int(opts.SessionSeconds * sampleRate)
	}

	var (
		phase    float64
		beat     int
		beatFreq = baseFreq
		dropLeft int
	)
	for seq := 0; limit < 0 || seq < limit; seq++ {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		phase += beatFreq / sampleRate
		if int(phase) > beat {
			beat = int(phase)
			beatFreq = baseFreq * (1 + opts.Jitter*rand.NormFloat64())
			if beatFreq < 0.3*baseFreq {
				beatFreq = 0.3 * baseFreq
			}
		}

		pulse := math.Sin(2*math.Pi*phase) + 0.35*math.Sin(4*math.Pi*phase+1.1)
		sample := types.ColorSample{
			R:         0.55 + 0.006*pulse + 0.002*rand.NormFloat64(),
			G:         0.50 + 0.012*pulse + 0.002*rand.NormFloat64(),
			B:         0.45 + 0.004*pulse + 0.002*rand.NormFloat64(),
			Timestamp: float64(time.Now().UnixNano()) / 1e9,
			ROI:       true,
		}

		if dropLeft > 0 {
			dropLeft--
			sample.ROI = false
		} else if rand.Float64() < 0.004 {
			dropLeft = 5 + rand.Intn(15)
		}

		msg := types.RawMessage{Type: "sample", Seq: seq, Sample: sample}
		select {
		case <-ctx.Done():
			return false
		case out <- msg:
		}
	}

	end := types.RawMessage{Type: "end", SessionID: id}
	select {
	case <-ctx.Done():
		return false
	case out <- end:
	}
	return true
}
