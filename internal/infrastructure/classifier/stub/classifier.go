// Package stub provides the fixed classifier used until a real model is
// plugged in behind ports.Classifier.
package stub

import (
	"context"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

const (
	HealthyStatus      = "No Disease Detected"
	HealthyConfidence  = 94
	HealthyExplanation = "Based on your health metrics, all indicators show excellent cardiovascular health. " +
		"Your BMI, blood pressure, and cholesterol levels are all within optimal ranges."
)

type Classifier struct{}

func NewClassifier() *Classifier {
	return &Classifier{}
}

// Classify ignores the snapshot and always reports a healthy result.
func (c *Classifier) Classify(ctx context.Context, _ domain.HealthMetricsSnapshot) (domain.ClassificationResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ClassificationResult{}, err
	}
	return domain.ClassificationResult{
		Prediction:  domain.PredictionNotDetected,
		Status:      HealthyStatus,
		Confidence:  HealthyConfidence,
		Explanation: HealthyExplanation,
	}, nil
}
