package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
)

// LogisticTrainer fits a two-class LogisticRegression by full-batch
// gradient descent. Params: learning_rate (0.1), epochs (300), l2 (0).
type LogisticTrainer struct{}

func (LogisticTrainer) Name() string { return "logistic_regression" }

func (LogisticTrainer) Train(features [][]float64, labels []string, params Params) (Predictor, error) {
	m := &LogisticRegression{
		Lr:     params.Get("learning_rate", 0.1),
		Epochs: int(params.Get("epochs", 300)),
		L2:     params.Get("l2", 0),
	}
	if err := m.Fit(features, labels); err != nil {
		return nil, err
	}
	return m, nil
}

// LogisticRegression models the probability of the second class in sorted
// order with a sigmoid over a linear score.
type LogisticRegression struct {
	ClassNames []string  `json:"classes"`
	W          []float64 `json:"weights"`
	B          float64   `json:"bias"`
	Lr         float64   `json:"learning_rate"`
	Epochs     int       `json:"epochs"`
	L2         float64   `json:"l2"`
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// Fit starts from zero weights, so equal inputs give equal models.
func (m *LogisticRegression) Fit(features [][]float64, labels []string) error {
	if err := checkTrainingSet(features, labels); err != nil {
		return err
	}
	classes, ys := classIndex(labels)
	if len(classes) != 2 {
		return fmt.Errorf("logistic regression needs exactly 2 classes, got %d", len(classes))
	}
	if m.Lr <= 0 {
		m.Lr = 0.1
	}
	if m.Epochs <= 0 {
		m.Epochs = 300
	}
	width := len(features[0])
	m.ClassNames = classes
	m.W = make([]float64, width)
	m.B = 0

	n := float64(len(features))
	gW := make([]float64, width)
	for ep := 0; ep < m.Epochs; ep++ {
		for j := range gW {
			gW[j] = 0
		}
		gb := 0.0
		for i, row := range features {
			if len(row) != width {
				return fmt.Errorf("record %d has %d features, want %d", i, len(row), width)
			}
			diff := m.score(row) - float64(ys[i])
			for j, v := range row {
				gW[j] += diff * v
			}
			gb += diff
		}
		for j := range m.W {
			m.W[j] -= m.Lr * (gW[j]/n + m.L2*m.W[j])
		}
		m.B -= m.Lr * gb / n
	}
	return nil
}

func (m *LogisticRegression) score(row []float64) float64 {
	sum := m.B
	for j, v := range row {
		sum += m.W[j] * v
	}
	return sigmoid(sum)
}

func (m *LogisticRegression) Classes() []string {
	return append([]string(nil), m.ClassNames...)
}

func (m *LogisticRegression) PredictProbability(features [][]float64) ([][]float64, error) {
	if len(m.ClassNames) != 2 {
		return nil, errors.New("model not trained")
	}
	out := make([][]float64, len(features))
	for i, row := range features {
		if len(row) != len(m.W) {
			return nil, fmt.Errorf("record %d has %d features, model has %d", i, len(row), len(m.W))
		}
		p := m.score(row)
		out[i] = []float64{1 - p, p}
	}
	return out, nil
}

func (m *LogisticRegression) Save(path string) error {
	if len(m.ClassNames) != 2 {
		return errors.New("model not trained")
	}
	payload, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return os.WriteFile(path, payload, 0o600)
}

func (m *LogisticRegression) Load(path string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var loaded LogisticRegression
	if err := json.Unmarshal(payload, &loaded); err != nil {
		return err
	}
	if len(loaded.ClassNames) != 2 {
		return errors.New("model file is empty")
	}
	*m = loaded
	return nil
}
