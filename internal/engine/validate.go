package engine

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"

	"github.com/splitlab/splitlab/internal/store"
)

// splitTolerance is how far the variant traffic splits may drift from 100
// before creation is rejected.
const splitTolerance = 0.1

// TestSpec is the caller-supplied definition of a new test.
type TestSpec struct {
	CampaignID        string             `json:"campaign_id" validate:"required"`
	Name              string             `json:"name" validate:"required"`
	Description       string             `json:"description"`
	Variants          []VariantSpec      `json:"variants" validate:"required,min=2,dive"`
	PrimaryMetric     store.Metric       `json:"primary_metric" validate:"required"`
	SecondaryMetrics  []store.Metric     `json:"secondary_metrics"`
	SignificanceLevel float64            `json:"significance_level" validate:"gte=0,lt=1"`
	MinimumSampleSize int                `json:"minimum_sample_size" validate:"gte=0"`
	SampleSource      store.SampleSource `json:"sample_source" validate:"omitempty,oneof=impressions clicks"`
	TargetAudience    string             `json:"target_audience"`
	CreatedBy         string             `json:"created_by"`
}

type VariantSpec struct {
	Name         string            `json:"name" validate:"required"`
	Description  string            `json:"description"`
	Type         store.VariantType `json:"type" validate:"required,oneof=creative copy offer targeting"`
	Content      json.RawMessage   `json:"content"`
	TrafficSplit float64           `json:"traffic_split" validate:"gt=0,lte=100"`
}

// validateSpec collects every violation into a single ValidationError
// instead of stopping at the first one.
func (e *Engine) validateSpec(spec *TestSpec) error {
	var violations []string

	if err := e.validate.Struct(spec); err != nil {
		verrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("validate spec: %w", err)
		}
		for _, fe := range verrs {
			violations = append(violations, describeFieldError(fe))
		}
	}

	if spec.PrimaryMetric != "" {
		if _, err := store.ParseMetric(string(spec.PrimaryMetric)); err != nil {
			violations = append(violations, fmt.Sprintf("primary metric: %v", err))
		}
	}
	for _, m := range spec.SecondaryMetrics {
		if _, err := store.ParseMetric(string(m)); err != nil {
			violations = append(violations, fmt.Sprintf("secondary metric: %v", err))
		}
	}

	if len(spec.Variants) >= 2 {
		sum := 0.0
		for _, v := range spec.Variants {
			sum += v.TrafficSplit
		}
		if math.Abs(sum-100) > splitTolerance {
			violations = append(violations,
				fmt.Sprintf("variant traffic splits sum to %.2f, must sum to 100 (±%.1f)", sum, splitTolerance))
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Violations: violations}
	}
	return nil
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Namespace())
	case "min":
		return fmt.Sprintf("%s needs at least %s entries", fe.Namespace(), fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", fe.Namespace(), fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", fe.Namespace(), fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", fe.Namespace(), fe.Param())
	case "lt":
		return fmt.Sprintf("%s must be less than %s", fe.Namespace(), fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be at most %s", fe.Namespace(), fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", fe.Namespace(), fe.Tag())
	}
}
