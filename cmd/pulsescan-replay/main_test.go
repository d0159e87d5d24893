package main

import (
	"os"
	"path/filepath"
	"testing"

	"pulsescan-go/internal/afib"
)

func TestLoadModelMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.json")
	if err := os.WriteFile(path, []byte(`{"version": 1, "features": [`), 0o644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	model := loadModel(path)
	if model != nil {
		t.Fatalf("malformed artifact produced a model: %+v", model)
	}
	if _, ok := afib.NewDetector(model, nil).Probability(map[string]float64{"rr_mean": 0.8}); ok {
		t.Fatal("nil model reported a probability")
	}
}

func TestLoadModelMissing(t *testing.T) {
	if model := loadModel(filepath.Join(t.TempDir(), "absent.json")); model != nil {
		t.Fatalf("missing artifact produced a model: %+v", model)
	}
}

func TestLoadModelBundled(t *testing.T) {
	if loadModel("") == nil {
		t.Fatal("bundled model did not load")
	}
}
