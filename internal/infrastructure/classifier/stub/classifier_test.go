package stub

import (
	"context"
	"testing"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier()

	snapshots := []domain.HealthMetricsSnapshot{
		domain.DefaultExtractionResult,
		{Age: 90, BloodPressure: 190, Cholesterol: 390, Glucose: 290, HeartRate: 190, BMI: 49, Smoking: domain.SmokingYes, Exercise: domain.ExerciseRare},
	}
	for _, snapshot := range snapshots {
		got, err := c.Classify(context.Background(), snapshot)
		if err != nil {
			t.Fatalf("Classify() error = %v", err)
		}
		if got.Prediction != domain.PredictionNotDetected || got.Status != HealthyStatus || got.Confidence != 94 {
			t.Fatalf("unexpected result: %+v", got)
		}
		if got.Explanation != HealthyExplanation {
			t.Fatalf("unexpected explanation: %q", got.Explanation)
		}
	}
}

func TestClassifyHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewClassifier().Classify(ctx, domain.DefaultExtractionResult); err == nil {
		t.Fatalf("expected context error")
	}
}
