package store

import (
	"encoding/json"
	"fmt"
	"time"
)

type TestStatus string

const (
	StatusDraft     TestStatus = "draft"
	StatusRunning   TestStatus = "running"
	StatusPaused    TestStatus = "paused"
	StatusCompleted TestStatus = "completed"
)

type VariantType string

const (
	VariantCreative  VariantType = "creative"
	VariantCopy      VariantType = "copy"
	VariantOffer     VariantType = "offer"
	VariantTargeting VariantType = "targeting"
)

// EventType enumerates the events the recorder accepts.
type EventType string

const (
	EventImpression EventType = "impression"
	EventClick      EventType = "click"
	EventConversion EventType = "conversion"
	EventRevenue    EventType = "revenue"

	// EventSpend is written to the log by RecordSpend only; it is not a
	// recordable event type and ParseEventType rejects it.
	EventSpend EventType = "spend"
)

// ParseEventType rejects unknown event names instead of silently dropping them.
func ParseEventType(s string) (EventType, error) {
	switch EventType(s) {
	case EventImpression, EventClick, EventConversion, EventRevenue:
		return EventType(s), nil
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// Metric identifies a raw or derived measurement a test can optimize for.
type Metric string

const (
	MetricImpressions    Metric = "impressions"
	MetricClicks         Metric = "clicks"
	MetricConversions    Metric = "conversions"
	MetricRevenue        Metric = "revenue"
	MetricCTR            Metric = "ctr"
	MetricConversionRate Metric = "conversion_rate"
	MetricCPA            Metric = "cpa"
	MetricROAS           Metric = "roas"
	MetricEngagementRate Metric = "engagement_rate"
)

// ParseMetric rejects unknown metric names; there is no "missing metric
// reads as zero" fallback anywhere downstream.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricImpressions, MetricClicks, MetricConversions, MetricRevenue,
		MetricCTR, MetricConversionRate, MetricCPA, MetricROAS, MetricEngagementRate:
		return Metric(s), nil
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

// SampleSource selects which event type counts toward a variant's sample
// size, i.e. the denominator of the test's primary metric.
type SampleSource string

const (
	SampleByImpressions SampleSource = "impressions"
	SampleByClicks      SampleSource = "clicks"
)

type Test struct {
	ID                string       `json:"id"`
	CampaignID        string       `json:"campaign_id"` // opaque reference, never dereferenced here
	Name              string       `json:"name"`
	Description       string       `json:"description,omitempty"`
	Status            TestStatus   `json:"status"`
	Variants          []Variant    `json:"variants"`
	PrimaryMetric     Metric       `json:"primary_metric"`
	SecondaryMetrics  []Metric     `json:"secondary_metrics,omitempty"`
	SignificanceLevel float64      `json:"significance_level"`
	MinimumSampleSize int          `json:"minimum_sample_size"`
	SampleSource      SampleSource `json:"sample_source"`
	TargetAudience    string       `json:"target_audience,omitempty"` // opaque descriptor
	StartDate         *time.Time   `json:"start_date,omitempty"`
	EndDate           *time.Time   `json:"end_date,omitempty"`
	Results           *TestResult  `json:"results,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	CreatedBy         string       `json:"created_by,omitempty"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Control returns the control arm. Variant order is declaration order and
// variants[0] is always the control.
func (t *Test) Control() *Variant {
	return &t.Variants[0]
}

// Clone deep-copies the test through JSON so callers never share mutable
// state with the original.
func (t *Test) Clone() *Test {
	b, err := json.Marshal(t)
	if err != nil {
		// Test only contains JSON-serializable fields.
		panic(fmt.Sprintf("store: clone test: %v", err))
	}
	var clone Test
	if err := json.Unmarshal(b, &clone); err != nil {
		panic(fmt.Sprintf("store: clone test: %v", err))
	}
	return &clone
}

// VariantByID returns nil when the variant does not belong to this test.
func (t *Test) VariantByID(id string) *Variant {
	for i := range t.Variants {
		if t.Variants[i].ID == id {
			return &t.Variants[i]
		}
	}
	return nil
}

type Variant struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Description  string          `json:"description,omitempty"`
	Type         VariantType     `json:"type"`
	Content      json.RawMessage `json:"content,omitempty"` // opaque treatment config
	TrafficSplit float64         `json:"traffic_split"`     // percentage of traffic, (0..100]
	Metrics      VariantMetrics  `json:"metrics"`
}

// VariantMetrics carries the raw counters plus values derived from them.
// Derived fields are a recomputed cache, never a source of truth.
type VariantMetrics struct {
	Impressions uint64  `json:"impressions"`
	Clicks      uint64  `json:"clicks"`
	Conversions uint64  `json:"conversions"`
	Revenue     float64 `json:"revenue"`
	Cost        float64 `json:"cost"`
	SampleSize  uint64  `json:"sample_size"`

	CTR                float64             `json:"ctr"`
	ConversionRate     float64             `json:"conversion_rate"`
	CPA                float64             `json:"cpa"`
	ROAS               float64             `json:"roas"`
	EngagementRate     float64             `json:"engagement_rate"`
	Confidence         float64             `json:"confidence"`
	ConfidenceInterval *ConfidenceInterval `json:"confidence_interval,omitempty"`
}

type ConfidenceInterval struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
}

// TestResult is overwritten on each evaluation while the test is RUNNING or
// being PAUSED, and frozen once the test is COMPLETED.
type TestResult struct {
	Winner          WinnerSummary       `json:"winner"`
	Significance    SignificanceSummary `json:"significance"`
	Comparison      []VariantComparison `json:"comparison"`
	Recommendations []string            `json:"recommendations"`
	Insights        []string            `json:"insights"`
	EvaluatedAt     time.Time           `json:"evaluated_at"`
}

type WinnerSummary struct {
	VariantID   string  `json:"variant_id"`
	Confidence  float64 `json:"confidence"`
	Uplift      float64 `json:"uplift"`
	Significant bool    `json:"significant"`
}

type SignificanceSummary struct {
	PValue        float64 `json:"p_value"`
	IsSignificant bool    `json:"is_significant"`
	Confidence    float64 `json:"confidence"`
}

type VariantComparison struct {
	VariantID   string         `json:"variant_id"`
	Metrics     VariantMetrics `json:"metrics"`
	Performance Performance    `json:"performance"`
}

type Performance struct {
	Primary   float64            `json:"primary"`
	Secondary map[Metric]float64 `json:"secondary,omitempty"`
}

// Event is one row of the append-only event log. Counters are rebuilt from
// this log after a restart.
type Event struct {
	ID        int64
	TestID    string
	VariantID string
	Type      EventType
	Value     float64
	CreatedAt time.Time
}

// VariantTotals is the aggregate of the event log for one variant, used to
// hydrate live counters.
type VariantTotals struct {
	VariantID   string
	Impressions uint64
	Clicks      uint64
	Conversions uint64
	Revenue     float64
	Cost        float64
}
