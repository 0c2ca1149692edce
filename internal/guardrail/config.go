// Package guardrail holds the data-quality guardrail configuration: mode
// presets, per-metric-class freshness and deviation thresholds, and the
// custom validation rules gating the provenance engine's checks.
package guardrail

import (
	"dataguard/internal/stats"
)

// Mode names a bundle of threshold presets.
type Mode string

const (
	// ModeStrict enforces tight freshness and deviation limits suitable for
	// API-sourced data.
	ModeStrict Mode = "strict"
	// ModeWebScraping relaxes limits to accommodate slower, noisier scraped
	// sources.
	ModeWebScraping Mode = "web_scraping"
	// ModeCustom starts from moderate defaults and preserves user edits.
	ModeCustom Mode = "custom"
)

// OutlierRule selects the outlier detection applied during consensus.
type OutlierRule string

const (
	OutlierMAD    OutlierRule = "mad"
	OutlierIQR    OutlierRule = "iqr"
	OutlierCustom OutlierRule = "custom"
)

// Config is the full guardrail threshold set. Exactly one mode is active at
// a time; switching mode replaces every threshold with the preset values.
// All ages are minutes, all deviations are percent.
type Config struct {
	Mode Mode `json:"mode"`

	MaxPriceAgeMinutes       int `json:"max_price_age_minutes"`
	MaxSupplyAgeMinutes      int `json:"max_supply_age_minutes"`
	MaxVolumeAgeMinutes      int `json:"max_volume_age_minutes"`
	MaxOnChainAgeMinutes     int `json:"max_onchain_age_minutes"`
	MaxSocialAgeMinutes      int `json:"max_social_age_minutes"`
	MaxDevActivityAgeMinutes int `json:"max_dev_activity_age_minutes"`

	MinConsensusSources int                   `json:"min_consensus_sources"`
	ConsensusMethod     stats.ConsensusMethod `json:"consensus_method"`

	MaxPriceDeviationPct  float64 `json:"max_price_deviation_pct"`
	MaxSupplyDeviationPct float64 `json:"max_supply_deviation_pct"`
	MaxVolumeDeviationPct float64 `json:"max_volume_deviation_pct"`

	OutlierRule OutlierRule `json:"outlier_rule"`

	AutoBlacklistAfterStaleCount int `json:"auto_blacklist_after_stale_count"`

	CustomRules []Rule `json:"custom_rules"`
}

// Preset returns the threshold bundle associated with a mode. Unknown modes
// fall back to strict.
func Preset(mode Mode) Config {
	switch mode {
	case ModeWebScraping:
		seeded, _ := NewRule(
			"Low-volume price tolerance",
			"volume < 500000",
			ActionDisregardPriceDeviation,
			true,
		)
		return Config{
			Mode:                         ModeWebScraping,
			MaxPriceAgeMinutes:           30,
			MaxSupplyAgeMinutes:          360,
			MaxVolumeAgeMinutes:          60,
			MaxOnChainAgeMinutes:         120,
			MaxSocialAgeMinutes:          240,
			MaxDevActivityAgeMinutes:     2880,
			MinConsensusSources:          2,
			ConsensusMethod:              stats.MethodMean,
			MaxPriceDeviationPct:         15,
			MaxSupplyDeviationPct:        5,
			MaxVolumeDeviationPct:        30,
			OutlierRule:                  OutlierIQR,
			AutoBlacklistAfterStaleCount: 5,
			CustomRules:                  []Rule{seeded},
		}
	case ModeCustom:
		return Config{
			Mode:                         ModeCustom,
			MaxPriceAgeMinutes:           15,
			MaxSupplyAgeMinutes:          120,
			MaxVolumeAgeMinutes:          30,
			MaxOnChainAgeMinutes:         60,
			MaxSocialAgeMinutes:          120,
			MaxDevActivityAgeMinutes:     1440,
			MinConsensusSources:          2,
			ConsensusMethod:              stats.MethodMedian,
			MaxPriceDeviationPct:         10,
			MaxSupplyDeviationPct:        2,
			MaxVolumeDeviationPct:        20,
			OutlierRule:                  OutlierMAD,
			AutoBlacklistAfterStaleCount: 3,
			CustomRules:                  []Rule{},
		}
	default:
		return Config{
			Mode:                         ModeStrict,
			MaxPriceAgeMinutes:           5,
			MaxSupplyAgeMinutes:          60,
			MaxVolumeAgeMinutes:          10,
			MaxOnChainAgeMinutes:         30,
			MaxSocialAgeMinutes:          60,
			MaxDevActivityAgeMinutes:     1440,
			MinConsensusSources:          3,
			ConsensusMethod:              stats.MethodMedian,
			MaxPriceDeviationPct:         5,
			MaxSupplyDeviationPct:        1,
			MaxVolumeDeviationPct:        15,
			OutlierRule:                  OutlierMAD,
			AutoBlacklistAfterStaleCount: 3,
			CustomRules:                  []Rule{},
		}
	}
}

// clone returns a deep copy so callers can never alias the service's state.
func (c Config) clone() Config {
	out := c
	out.CustomRules = append([]Rule(nil), c.CustomRules...)
	return out
}

// Patch is a shallow-merge update; nil fields leave the current value
// untouched. Mode and custom rules are managed by their dedicated calls.
type Patch struct {
	MaxPriceAgeMinutes       *int
	MaxSupplyAgeMinutes      *int
	MaxVolumeAgeMinutes      *int
	MaxOnChainAgeMinutes     *int
	MaxSocialAgeMinutes      *int
	MaxDevActivityAgeMinutes *int

	MinConsensusSources *int
	ConsensusMethod     *stats.ConsensusMethod

	MaxPriceDeviationPct  *float64
	MaxSupplyDeviationPct *float64
	MaxVolumeDeviationPct *float64

	OutlierRule *OutlierRule

	AutoBlacklistAfterStaleCount *int
}

func (c *Config) apply(p Patch) {
	if p.MaxPriceAgeMinutes != nil {
		c.MaxPriceAgeMinutes = *p.MaxPriceAgeMinutes
	}
	if p.MaxSupplyAgeMinutes != nil {
		c.MaxSupplyAgeMinutes = *p.MaxSupplyAgeMinutes
	}
	if p.MaxVolumeAgeMinutes != nil {
		c.MaxVolumeAgeMinutes = *p.MaxVolumeAgeMinutes
	}
	if p.MaxOnChainAgeMinutes != nil {
		c.MaxOnChainAgeMinutes = *p.MaxOnChainAgeMinutes
	}
	if p.MaxSocialAgeMinutes != nil {
		c.MaxSocialAgeMinutes = *p.MaxSocialAgeMinutes
	}
	if p.MaxDevActivityAgeMinutes != nil {
		c.MaxDevActivityAgeMinutes = *p.MaxDevActivityAgeMinutes
	}
	if p.MinConsensusSources != nil {
		c.MinConsensusSources = *p.MinConsensusSources
	}
	if p.ConsensusMethod != nil {
		c.ConsensusMethod = *p.ConsensusMethod
	}
	if p.MaxPriceDeviationPct != nil {
		c.MaxPriceDeviationPct = *p.MaxPriceDeviationPct
	}
	if p.MaxSupplyDeviationPct != nil {
		c.MaxSupplyDeviationPct = *p.MaxSupplyDeviationPct
	}
	if p.MaxVolumeDeviationPct != nil {
		c.MaxVolumeDeviationPct = *p.MaxVolumeDeviationPct
	}
	if p.OutlierRule != nil {
		c.OutlierRule = *p.OutlierRule
	}
	if p.AutoBlacklistAfterStaleCount != nil {
		c.AutoBlacklistAfterStaleCount = *p.AutoBlacklistAfterStaleCount
	}
}
