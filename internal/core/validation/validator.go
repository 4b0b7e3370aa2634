// Package validation holds the range and option rules for health metric edits.
package validation

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
)

type EditPolicy string

const (
	// EditPolicyClamp pulls out-of-range numbers into [min,max].
	EditPolicyClamp EditPolicy = "clamp"
	// EditPolicyReject refuses out-of-range numbers.
	EditPolicyReject EditPolicy = "reject"
)

func ParseEditPolicy(raw string) EditPolicy {
	switch EditPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case EditPolicyReject:
		return EditPolicyReject
	default:
		return EditPolicyClamp
	}
}

type MetricValidator struct {
	policy EditPolicy
}

func NewMetricValidator(policy EditPolicy) *MetricValidator {
	if policy != EditPolicyReject {
		policy = EditPolicyClamp
	}
	return &MetricValidator{policy: policy}
}

func (v *MetricValidator) Policy() EditPolicy {
	return v.policy
}

// Validate normalizes a raw edit for one field.
func (v *MetricValidator) Validate(field domain.MetricField, raw string) (domain.MetricValue, error) {
	spec, ok := domain.LookupMetricSpec(field)
	if !ok {
		return domain.MetricValue{}, domain.NewValidationError(field, domain.ReasonUnknownField)
	}
	if spec.Numeric() {
		return v.validateNumber(spec, raw)
	}
	return validateOption(spec, raw)
}

// decimalNumber is what a numeric input field produces. ParseFloat alone
// would also take hex floats ("0x1p6") and digit separators.
var decimalNumber = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

func (v *MetricValidator) validateNumber(spec domain.MetricSpec, raw string) (domain.MetricValue, error) {
	raw = strings.TrimSpace(raw)
	if !decimalNumber.MatchString(raw) {
		return domain.MetricValue{}, domain.NewValidationError(spec.Field, domain.ReasonNotANumber)
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return domain.MetricValue{}, domain.NewValidationError(spec.Field, domain.ReasonNotANumber)
	}
	if n < spec.Min || n > spec.Max {
		if v.policy == EditPolicyReject {
			return domain.MetricValue{}, domain.NewValidationError(spec.Field, domain.ReasonOutOfRange)
		}
		n = math.Min(math.Max(n, spec.Min), spec.Max)
	}
	return domain.NumberValue(roundToStep(n, spec.Step)), nil
}

func validateOption(spec domain.MetricSpec, raw string) (domain.MetricValue, error) {
	candidate := strings.ToLower(strings.TrimSpace(raw))
	for _, option := range spec.Options {
		if candidate == option {
			return domain.OptionValue(option), nil
		}
	}
	return domain.MetricValue{}, domain.NewValidationError(spec.Field, domain.ReasonInvalidOption)
}

// CheckSnapshot reports every field of the snapshot that is not acceptable
// for analysis as stored. Values are never clamped here.
func (v *MetricValidator) CheckSnapshot(snapshot domain.HealthMetricsSnapshot) []*domain.ValidationError {
	var out []*domain.ValidationError
	for _, spec := range domain.MetricSpecs() {
		value, _ := snapshot.Get(spec.Field)
		if inSpec(spec, value) {
			continue
		}
		reason := domain.ReasonOutOfRange
		if spec.Kind == domain.KindEnum {
			reason = domain.ReasonInvalidOption
		}
		out = append(out, domain.NewValidationError(spec.Field, reason))
	}
	return out
}

// ValidateSnapshot joins the CheckSnapshot findings into one error.
func (v *MetricValidator) ValidateSnapshot(snapshot domain.HealthMetricsSnapshot) error {
	var errs []error
	for _, verr := range v.CheckSnapshot(snapshot) {
		errs = append(errs, verr)
	}
	return errors.Join(errs...)
}

func inSpec(spec domain.MetricSpec, value domain.MetricValue) bool {
	if spec.Kind == domain.KindEnum {
		for _, option := range spec.Options {
			if value.Option == option {
				return true
			}
		}
		return false
	}
	return value.Number >= spec.Min && value.Number <= spec.Max
}

func roundToStep(n, step float64) float64 {
	if step <= 0 {
		return n
	}
	decimals := stepDecimals(step)
	scale := math.Pow10(decimals)
	rounded := math.Round(n/step) * step
	return math.Round(rounded*scale) / scale
}

func stepDecimals(step float64) int {
	s := strconv.FormatFloat(step, 'f', -1, 64)
	if i := strings.IndexByte(s, '.'); i >= 0 {
		return len(s) - i - 1
	}
	return 0
}
