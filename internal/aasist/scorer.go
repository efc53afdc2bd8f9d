// Package aasist wraps AASIST anti-spoofing classifiers behind a scorer
// interface and a read-only model registry.
package aasist

import (
	"context"

	"github.com/veridict/voiceguard-go/internal/myaudio"
)

// ModelScore is a two-class probability distribution produced by one scorer
// for one analysis window. Probabilities sum to one.
type ModelScore struct {
	ModelID   string
	Synthetic float64 // probability the window is machine-generated speech
	Bonafide  float64 // probability the window is genuine human speech
}

// Scorer maps a fixed-length waveform window to a two-class score. Scoring is
// deterministic for a given model and window and must not mutate shared model
// state, so a single scorer instance serves concurrent requests.
type Scorer interface {
	// ID returns the stable model identifier referenced by fusion rules.
	ID() string
	// Score classifies one window. The context bounds the inference call.
	Score(ctx context.Context, window myaudio.Window) (ModelScore, error)
}
