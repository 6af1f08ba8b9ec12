package scorer

import (
	"fmt"
	"math"
	"os"

	"github.com/go-jose/go-jose/v4/json"
)

// Decision is the outcome handed back to the payment flow.
type Decision string

const (
	DecisionBlock   Decision = "BLOCK"
	DecisionApprove Decision = "APPROVE"
)

// Model is a linear fraud classifier: a weight per feature, an intercept,
// and the decision threshold picked offline on validation data. Training
// happens elsewhere; this package only loads and applies the artifact.
type Model struct {
	Version   string             `json:"version"`
	Intercept float64            `json:"intercept"`
	Threshold float64            `json:"threshold"`
	Weights   map[string]float64 `json:"weights"`
}

// Load reads a model artifact from disk.
func Load(path string) (*Model, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}

	var m Model
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse model %s: %w", path, err)
	}
	if len(m.Weights) == 0 {
		return nil, fmt.Errorf("model %s has no weights", path)
	}
	if m.Threshold <= 0 || m.Threshold >= 1 {
		return nil, fmt.Errorf("model %s has invalid threshold %v", path, m.Threshold)
	}
	return &m, nil
}

// Probability returns the fraud probability for a feature vector. Features
// the model has no weight for are ignored; weighted features missing from
// the vector contribute zero.
func (m *Model) Probability(features map[string]float64) float64 {
	z := m.Intercept
	for name, w := range m.Weights {
		z += w * features[name]
	}
	return 1.0 / (1.0 + math.Exp(-z))
}

// Decide applies the decision threshold.
func (m *Model) Decide(probability float64) Decision {
	if probability >= m.Threshold {
		return DecisionBlock
	}
	return DecisionApprove
}
