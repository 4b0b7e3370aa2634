package domain

import (
	"math"
	"strconv"
)

type MetricField string

const (
	FieldAge           MetricField = "age"
	FieldBloodPressure MetricField = "bloodPressure"
	FieldCholesterol   MetricField = "cholesterol"
	FieldGlucose       MetricField = "glucose"
	FieldHeartRate     MetricField = "heartRate"
	FieldBMI           MetricField = "bmi"
	FieldSmoking       MetricField = "smoking"
	FieldExercise      MetricField = "exercise"
)

type MetricKind string

const (
	KindInteger MetricKind = "integer"
	KindReal    MetricKind = "real"
	KindEnum    MetricKind = "enum"
)

type MetricSpec struct {
	Field   MetricField `json:"field"`
	Label   string      `json:"label"`
	Kind    MetricKind  `json:"kind"`
	Min     float64     `json:"min,omitempty"`
	Max     float64     `json:"max,omitempty"`
	Step    float64     `json:"step,omitempty"`
	Options []string    `json:"options,omitempty"`
}

func (s MetricSpec) Numeric() bool {
	return s.Kind == KindInteger || s.Kind == KindReal
}

var metricSpecs = []MetricSpec{
	{Field: FieldAge, Label: "Age (years)", Kind: KindInteger, Min: 18, Max: 100, Step: 1},
	{Field: FieldBloodPressure, Label: "Blood Pressure (systolic)", Kind: KindInteger, Min: 80, Max: 200, Step: 1},
	{Field: FieldCholesterol, Label: "Cholesterol (mg/dL)", Kind: KindInteger, Min: 100, Max: 400, Step: 1},
	{Field: FieldGlucose, Label: "Glucose (mg/dL)", Kind: KindInteger, Min: 70, Max: 200, Step: 1},
	{Field: FieldHeartRate, Label: "Heart Rate (bpm)", Kind: KindInteger, Min: 50, Max: 120, Step: 1},
	{Field: FieldBMI, Label: "BMI", Kind: KindReal, Min: 15, Max: 40, Step: 0.1},
	{Field: FieldSmoking, Label: "Smoking History", Kind: KindEnum, Options: []string{"yes", "no"}},
	{Field: FieldExercise, Label: "Exercise Frequency", Kind: KindEnum, Options: []string{"regular", "occasional", "rare"}},
}

// MetricSpecs returns the declared field table in display order.
func MetricSpecs() []MetricSpec {
	out := make([]MetricSpec, len(metricSpecs))
	copy(out, metricSpecs)
	return out
}

func LookupMetricSpec(field MetricField) (MetricSpec, bool) {
	for _, spec := range metricSpecs {
		if spec.Field == field {
			return spec, true
		}
	}
	return MetricSpec{}, false
}

// MetricValue carries either a numeric reading or an enum option.
type MetricValue struct {
	Number float64 `json:"number,omitempty"`
	Option string  `json:"option,omitempty"`
}

func NumberValue(n float64) MetricValue { return MetricValue{Number: n} }
func OptionValue(o string) MetricValue  { return MetricValue{Option: o} }

func (v MetricValue) IsOption() bool { return v.Option != "" }

func (v MetricValue) String() string {
	if v.IsOption() {
		return v.Option
	}
	return strconv.FormatFloat(v.Number, 'f', -1, 64)
}

type SmokingStatus string

const (
	SmokingYes SmokingStatus = "yes"
	SmokingNo  SmokingStatus = "no"
)

type ExerciseFrequency string

const (
	ExerciseRegular    ExerciseFrequency = "regular"
	ExerciseOccasional ExerciseFrequency = "occasional"
	ExerciseRare       ExerciseFrequency = "rare"
)

type HealthMetricsSnapshot struct {
	Age           int               `json:"age"`
	BloodPressure int               `json:"bloodPressure"`
	Cholesterol   int               `json:"cholesterol"`
	Glucose       int               `json:"glucose"`
	HeartRate     int               `json:"heartRate"`
	BMI           float64           `json:"bmi"`
	Smoking       SmokingStatus     `json:"smoking"`
	Exercise      ExerciseFrequency `json:"exercise"`
}

// DefaultExtractionResult is the provisional snapshot produced when
// extraction completes. Replace it once a real extractor is wired in.
var DefaultExtractionResult = HealthMetricsSnapshot{
	Age:           45,
	BloodPressure: 120,
	Cholesterol:   200,
	Glucose:       95,
	HeartRate:     72,
	BMI:           24.5,
	Smoking:       SmokingNo,
	Exercise:      ExerciseRegular,
}

// Get reads a field. ok is false for unknown fields.
func (s HealthMetricsSnapshot) Get(field MetricField) (MetricValue, bool) {
	switch field {
	case FieldAge:
		return NumberValue(float64(s.Age)), true
	case FieldBloodPressure:
		return NumberValue(float64(s.BloodPressure)), true
	case FieldCholesterol:
		return NumberValue(float64(s.Cholesterol)), true
	case FieldGlucose:
		return NumberValue(float64(s.Glucose)), true
	case FieldHeartRate:
		return NumberValue(float64(s.HeartRate)), true
	case FieldBMI:
		return NumberValue(s.BMI), true
	case FieldSmoking:
		return OptionValue(string(s.Smoking)), true
	case FieldExercise:
		return OptionValue(string(s.Exercise)), true
	default:
		return MetricValue{}, false
	}
}

// With returns a copy of the snapshot with one field replaced. The value is
// stored as-is; callers validate first.
func (s HealthMetricsSnapshot) With(field MetricField, v MetricValue) (HealthMetricsSnapshot, bool) {
	switch field {
	case FieldAge:
		s.Age = roundInt(v.Number)
	case FieldBloodPressure:
		s.BloodPressure = roundInt(v.Number)
	case FieldCholesterol:
		s.Cholesterol = roundInt(v.Number)
	case FieldGlucose:
		s.Glucose = roundInt(v.Number)
	case FieldHeartRate:
		s.HeartRate = roundInt(v.Number)
	case FieldBMI:
		s.BMI = v.Number
	case FieldSmoking:
		s.Smoking = SmokingStatus(v.Option)
	case FieldExercise:
		s.Exercise = ExerciseFrequency(v.Option)
	default:
		return s, false
	}
	return s, true
}

func roundInt(f float64) int {
	return int(math.Round(f))
}
