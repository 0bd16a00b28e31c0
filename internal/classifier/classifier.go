// Package classifier scores feature rows against a pretrained
// gradient-boosted-tree model. The inference engine is a capability
// boundary: anything that can map a feature vector to a class index is
// substitutable.
package classifier

import (
	"fmt"
	"time"

	"github.com/dmitryikh/leaves"

	"github.com/lettse/littlemovers/internal/types"
)

// EpochClassifier maps one feature vector to a raw class index.
type EpochClassifier interface {
	NumClasses() int
	PredictClass(features []float64) (int, error)
}

// LeavesClassifier runs a pretrained XGBoost ensemble with the leaves
// inference engine.
type LeavesClassifier struct {
	ensemble *leaves.Ensemble
	scores   []float64
}

// LoadModel loads a pretrained boosted-tree artifact. A missing or
// corrupt artifact is fatal to the batch; the error is surfaced to the
// caller with no recovery path.
func LoadModel(path string) (*LeavesClassifier, error) {
	ensemble, err := leaves.XGEnsembleFromFile(path, true)
	if err != nil {
		return nil, fmt.Errorf("loading model artifact %s: %w", path, err)
	}
	return &LeavesClassifier{
		ensemble: ensemble,
		scores:   make([]float64, ensemble.NOutputGroups()),
	}, nil
}

// NumClasses returns the number of output classes in the ensemble.
func (c *LeavesClassifier) NumClasses() int {
	return c.ensemble.NOutputGroups()
}

// PredictClass scores one feature vector and returns the index of the
// highest-scoring class.
func (c *LeavesClassifier) PredictClass(features []float64) (int, error) {
	if len(c.scores) == 1 {
		// Binary models emit a single score.
		if c.ensemble.PredictSingle(features, 0) > 0.5 {
			return 1, nil
		}
		return 0, nil
	}

	if err := c.ensemble.Predict(features, 0, c.scores); err != nil {
		return 0, fmt.Errorf("scoring feature vector: %w", err)
	}
	best := 0
	for i, s := range c.scores {
		if s > c.scores[best] {
			best = i
		}
	}
	return best, nil
}

// Predict scores every feature row and attaches the decoded label and
// originating epoch start time. Prediction is all-or-nothing for the
// row set: the first scoring error aborts with no partial result.
func Predict(clf EpochClassifier, rows []types.FeatureRow, startTimes []time.Time, vocab Vocabulary) ([]types.LabeledEpoch, error) {
	if len(rows) != len(startTimes) {
		return nil, fmt.Errorf("feature rows (%d) and start times (%d) are not parallel", len(rows), len(startTimes))
	}

	predictions := make([]types.LabeledEpoch, 0, len(rows))
	for i, row := range rows {
		idx, err := clf.PredictClass(row.Values)
		if err != nil {
			return nil, fmt.Errorf("predicting epoch %d: %w", i, err)
		}
		label, err := vocab.Label(idx)
		if err != nil {
			return nil, fmt.Errorf("predicting epoch %d: %w", i, err)
		}
		predictions = append(predictions, types.LabeledEpoch{
			StartTime: startTimes[i],
			Label:     label,
			Features:  row.Values,
		})
	}
	return predictions, nil
}
