package domain

import (
	"strings"
	"time"
)

type Prediction int

const (
	PredictionNotDetected Prediction = 0
	PredictionDetected    Prediction = 1
)

type ClassificationResult struct {
	Prediction   Prediction `json:"prediction"`
	Status       string     `json:"status"`
	Confidence   int        `json:"confidence"`
	Explanation  string     `json:"explanation"`
	ClassifiedAt time.Time  `json:"classified_at"`
}

func (r ClassificationResult) DiseaseDetected() bool {
	return r.Prediction == PredictionDetected
}

type ExportFormat string

const (
	ExportPDF  ExportFormat = "pdf"
	ExportCSV  ExportFormat = "csv"
	ExportJSON ExportFormat = "json"
	ExportXLSX ExportFormat = "xlsx"
)

// ParseExportFormat accepts pdf, csv, json and xlsx in any case.
func ParseExportFormat(raw string) (ExportFormat, bool) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(raw))); f {
	case ExportPDF, ExportCSV, ExportJSON, ExportXLSX:
		return f, true
	default:
		return "", false
	}
}

type ExportRequest struct {
	SessionID   string
	Format      ExportFormat
	Document    *UploadedDocument
	Snapshot    HealthMetricsSnapshot
	Result      ClassificationResult
	GeneratedAt time.Time
}

type ExportArtifact struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ResultView is the display projection of a ClassificationResult.
type ResultView struct {
	Prediction      Prediction `json:"prediction"`
	Status          string     `json:"status"`
	Confidence      int        `json:"confidence"`
	ConfidenceLabel string     `json:"confidence_label"`
	Explanation     string     `json:"explanation"`
	Tone            string     `json:"tone"`
}
