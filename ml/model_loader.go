package ml

import (
	"errors"
	"fmt"
)

// NewTrainer returns the trainer registered under modelType.
func NewTrainer(modelType string) (Trainer, error) {
	switch modelType {
	case "decision_tree", "tree", "":
		return TreeTrainer{}, nil
	case "logistic_regression", "logistic", "glm":
		return LogisticTrainer{}, nil
	default:
		return nil, fmt.Errorf("unsupported model type %q", modelType)
	}
}

// LoadModel reads a model previously written with Save.
func LoadModel(modelType, path string) (Model, error) {
	switch modelType {
	case "decision_tree", "tree", "":
		model := &DecisionTree{}
		if err := model.Load(path); err != nil {
			return nil, err
		}
		return model, nil
	case "logistic_regression", "logistic", "glm":
		model := &LogisticRegression{}
		if err := model.Load(path); err != nil {
			return nil, err
		}
		return model, nil
	default:
		return nil, errors.New("unsupported model type")
	}
}
