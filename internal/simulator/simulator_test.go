package simulator

import (
	"context"
	"testing"
	"time"
)

func TestStreamEmitsSessionThenSamples(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stream := Stream(ctx, Options{Mode: "live", PulseRate: 72})

	first, ok := <-stream
	if !ok {
		t.Fatal("stream closed before the session start")
	}
	if first.Type != "start" || first.SessionID == "" || first.Mode != "live" {
		t.Fatalf("first message = %+v, want a session start", first)
	}

	for i := 0; i < 5; i++ {
		msg, ok := <-stream
		if !ok {
			t.Fatalf("stream closed after %d samples", i)
		}
		if msg.Type != "sample" {
			t.Fatalf("message %d type = %q", i, msg.Type)
		}
		if msg.Seq != i {
			t.Fatalf("message %d seq = %d", i, msg.Seq)
		}
		s := msg.Sample
		if s.R < 0.4 || s.R > 0.7 || s.G < 0.35 || s.G > 0.65 || s.B < 0.3 || s.B > 0.6 {
			t.Fatalf("sample %d channels out of range: %+v", i, s)
		}
		if s.Timestamp <= 0 {
			t.Fatalf("sample %d has no timestamp", i)
		}
	}

	cancel()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-stream:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("stream did not close after cancel")
		}
	}
}

func TestStreamMeasurementSessionEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := Stream(ctx, Options{Mode: "measurement", PulseRate: 72, SessionSeconds: 0.2})

	first, ok := <-stream
	if !ok {
		t.Fatal("stream closed before the session start")
	}
	if first.Type != "start" || first.Mode != "measurement" {
		t.Fatalf("first message = %+v, want a measurement start", first)
	}

	deadline := time.After(5 * time.Second)
	samples := 0
	for {
		select {
		case <-deadline:
			t.Fatalf("no end message after %d samples", samples)
		case msg, ok := <-stream:
			if !ok {
				t.Fatalf("stream closed after %d samples without an end", samples)
			}
			if msg.Type == "sample" {
				samples++
				if samples > 100 {
					t.Fatalf("session did not end after %d samples", samples)
				}
				continue
			}
			if msg.Type != "end" {
				t.Fatalf("unexpected message type %q", msg.Type)
			}
			if msg.SessionID != first.SessionID {
				t.Fatalf("end session %q does not match start %q", msg.SessionID, first.SessionID)
			}
			if samples == 0 {
				t.Fatal("session ended without emitting samples")
			}
			return
		}
	}
}
