package afib

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"math"
	"os"
)

//go:embed model.json
var bundledModel []byte

// Feature is one standardized input of the logistic model. Mean and
// Scale are the scaler statistics the model was trained with.
type Feature struct {
	Name        string  `json:"name"`
	Mean        float64 `json:"mean"`
	Scale       float64 `json:"scale"`
	Coefficient float64 `json:"coefficient"`
}

// Model is a standardized logistic regression over a named feature
// vector, loaded once from a versioned artifact and immutable afterward.
type Model struct {
	Version   string    `json:"version"`
	Intercept float64   `json:"intercept"`
	Features  []Feature `json:"features"`
}

// LoadModel reads a model artifact from disk.
func LoadModel(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model: %w", err)
	}
	return ParseModel(data)
}

// ParseModel decodes and sanity-checks a model artifact.
func ParseModel(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse model: %w", err)
	}
	if len(m.Features) == 0 {
		return nil, fmt.Errorf("model %q has no features", m.Version)
	}
	for _, f := range m.Features {
		if f.Name == "" {
			return nil, fmt.Errorf("model %q has an unnamed feature", m.Version)
		}
	}
	return &m, nil
}

// BundledModel returns the artifact compiled into the binary.
func BundledModel() (*Model, error) {
	return ParseModel(bundledModel)
}

// Probability evaluates the model over the named feature values. The
// boolean is false when a required feature is missing or its scaler is
// degenerate, meaning no probability can be produced from this vector.
func (m *Model) Probability(features map[string]float64) (float64, bool) {
	linear := m.Intercept
	for _, f := range m.Features {
		value, ok := features[f.Name]
		if !ok || f.Scale == 0 {
			return 0, false
		}
		linear += f.Coefficient * (value - f.Mean) / f.Scale
	}
	return 1 / (1 + math.Exp(-linear)), true
}
