// Package provenance computes and validates data provenance records: where
// a metric value came from, how fresh it is, how well independent sources
// agree, and whether the value should be trusted by downstream report
// generation.
package provenance

import (
	"strings"
	"time"

	"dataguard/internal/stats"
)

// SourceStatus classifies a single data source within a provenance record.
type SourceStatus string

const (
	SourceActive      SourceStatus = "active"
	SourceWarning     SourceStatus = "warning"
	SourceError       SourceStatus = "error"
	SourceBlacklisted SourceStatus = "blacklisted"
)

// ValidationStatus is the overall verdict for a provenance record.
// fail dominates warning dominates pass.
type ValidationStatus string

const (
	StatusPass    ValidationStatus = "pass"
	StatusWarning ValidationStatus = "warning"
	StatusFail    ValidationStatus = "fail"
)

// rank orders statuses for escalation; a status is never downgraded within
// one validation call.
func (s ValidationStatus) rank() int {
	switch s {
	case StatusFail:
		return 2
	case StatusWarning:
		return 1
	default:
		return 0
	}
}

// escalate returns the worse of the two statuses.
func escalate(current, next ValidationStatus) ValidationStatus {
	if next.rank() > current.rank() {
		return next
	}
	return current
}

// MetricClass buckets metrics for per-class freshness and deviation limits.
type MetricClass string

const (
	ClassPrice       MetricClass = "price"
	ClassSupply      MetricClass = "supply"
	ClassVolume      MetricClass = "volume"
	ClassOnChain     MetricClass = "onchain"
	ClassSocial      MetricClass = "social"
	ClassDevActivity MetricClass = "dev_activity"
)

// ClassifyMetric maps a metric name onto its class by case-insensitive
// substring match, defaulting to price.
func ClassifyMetric(metric string) MetricClass {
	name := strings.ToLower(metric)
	switch {
	case strings.Contains(name, "price"):
		return ClassPrice
	case strings.Contains(name, "supply"):
		return ClassSupply
	case strings.Contains(name, "volume"):
		return ClassVolume
	case strings.Contains(name, "chain"):
		return ClassOnChain
	case strings.Contains(name, "social"):
		return ClassSocial
	case strings.Contains(name, "dev"):
		return ClassDevActivity
	default:
		return ClassPrice
	}
}

// Source describes one origin of a metric observation, with derived
// freshness and trust fields.
type Source struct {
	Name             string       `json:"name"`
	Type             string       `json:"type"`
	URL              string       `json:"url,omitempty"`
	Timestamp        time.Time    `json:"timestamp"`
	Confidence       int          `json:"confidence"`
	IsStale          bool         `json:"is_stale"`
	StalenessMinutes int          `json:"staleness_minutes"`
	Status           SourceStatus `json:"status"`
	StaleCount       int          `json:"stale_count"`
}

// ConsensusInfo summarises cross-source agreement for one metric.
type ConsensusInfo struct {
	Method       stats.ConsensusMethod `json:"method"`
	Value        float64               `json:"value"`
	DeviationPct float64               `json:"deviation_pct"`
	Outliers     []string              `json:"outliers"`
}

// Provenance is the validation output for one metric: its sources, the
// consensus block when more than one value was observed, and the verdict.
type Provenance struct {
	Metric             string           `json:"metric"`
	Value              float64          `json:"value"`
	Sources            []Source         `json:"sources"`
	Consensus          *ConsensusInfo   `json:"consensus,omitempty"`
	ValidationStatus   ValidationStatus `json:"validation_status"`
	ValidationMessages []string         `json:"validation_messages,omitempty"`
}

// RuleContext carries the caller-supplied values custom rule conditions can
// reference.
type RuleContext struct {
	Volume *float64
}

// Lookup resolves a condition field against the context.
func (c *RuleContext) Lookup(field string) (float64, bool) {
	if c == nil {
		return 0, false
	}
	if field == "volume" && c.Volume != nil {
		return *c.Volume, true
	}
	return 0, false
}
