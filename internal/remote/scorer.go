package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Scorer asks a remote model service for an atrial-fibrillation
// probability over NATS request/reply. It satisfies the detector's
// fallback interface.
type Scorer struct {
	nc      *nats.Conn
	subject string
}

type scoreRequest struct {
	Features map[string]float64 `json:"features"`
}

type scoreReply struct {
	Probability float64 `json:"probability"`
	Error       string  `json:"error,omitempty"`
}

func Connect(url string, subject string) (*Scorer, error) {
	nc, err := nats.Connect(
		url,
		nats.Name("pulsescan"),
		nats.Timeout(3*time.Second),
		nats.ReconnectWait(500*time.Millisecond),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, err
	}
	return &Scorer{nc: nc, subject: subject}, nil
}

func (s *Scorer) Close() {
	_ = s.nc.Drain()
}

// Probability sends the feature vector and waits for a score. ctx bounds
// the round trip.
func (s *Scorer) Probability(ctx context.Context, features map[string]float64) (float64, error) {
	payload, err := json.Marshal(scoreRequest{Features: features})
	if err != nil {
		return 0, err
	}
	msg, err := s.nc.RequestWithContext(ctx, s.subject, payload)
	if err != nil {
		return 0, fmt.Errorf("af score request: %w", err)
	}
	return parseScoreReply(msg.Data)
}

func parseScoreReply(data []byte) (float64, error) {
	var reply scoreReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return 0, fmt.Errorf("af score reply: %w", err)
	}
	if reply.Error != "" {
		return 0, errors.New(reply.Error)
	}
	if reply.Probability < 0 || reply.Probability > 1 {
		return 0, fmt.Errorf("af score %v out of range", reply.Probability)
	}
	return reply.Probability, nil
}
