package afib

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnavailable = errors.New("af probability unavailable")

type RemoteScorer interface {
	Probability(ctx context.Context, features map[string]float64) (float64, error)
}

type Detector struct {
	model  *Model
	remote RemoteScorer
}

// NewDetector wires a detector. model may be nil when the artifact
// failed to load; remote may be nil when no fallback is available.
func NewDetector(model *Model, remote RemoteScorer) *Detector {
	return &Detector{model: model, remote: remote}
}

func (d *Detector) Probability(features map[string]float64) (float64, bool) {
	if d.model == nil {
		return 0, false
	}
	return d.model.Probability(features)
}

// ProbabilityWithFallback consults the remote scorer only when the local
// model cannot produce a result; all failures wrap ErrUnavailable.
func (d *Detector) ProbabilityWithFallback(ctx context.Context, features map[string]float64) (float64, error) {
	if p, ok := d.Probability(features); ok {
		return p, nil
	}
	if d.remote == nil {
		return 0, ErrUnavailable
	}
	p, err := d.remote.Probability(ctx, features)
	if err != nil {
		return 0, fmt.Errorf("%w: remote: %v", ErrUnavailable, err)
	}
	return p, nil
}
