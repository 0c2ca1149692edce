package provenance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"dataguard/internal/guardrail"
	"dataguard/internal/marketdata"
	"dataguard/internal/stats"
)

const (
	freshConfidence = 95
	staleConfidence = 60
)

// ConfigSource supplies the active guardrail configuration.
type ConfigSource interface {
	Config() guardrail.Config
}

// SourceLedger is the tracker surface the engine needs: blacklist membership
// and stale-event accounting.
type SourceLedger interface {
	IsBlacklisted(name string) bool
	TrackStale(ctx context.Context, name string)
	StaleCount(ctx context.Context, name string) int
}

// Engine composes the statistics primitives, guardrail configuration, and
// source ledger into provenance records. All methods are total: degenerate
// inputs produce "no signal" results, never errors — insufficient data is
// flagged through the warning path, not by blocking the caller.
type Engine struct {
	config ConfigSource
	ledger SourceLedger
	logger zerolog.Logger

	now func() time.Time
}

// NewEngine constructs a provenance engine.
func NewEngine(config ConfigSource, ledger SourceLedger, logger zerolog.Logger) *Engine {
	return &Engine{
		config: config,
		ledger: ledger,
		logger: logger.With().Str("component", "provenance").Logger(),
		now:    time.Now,
	}
}

// maxAgeMinutes returns the freshness limit for a metric class.
func maxAgeMinutes(cfg guardrail.Config, class MetricClass) int {
	switch class {
	case ClassSupply:
		return cfg.MaxSupplyAgeMinutes
	case ClassVolume:
		return cfg.MaxVolumeAgeMinutes
	case ClassOnChain:
		return cfg.MaxOnChainAgeMinutes
	case ClassSocial:
		return cfg.MaxSocialAgeMinutes
	case ClassDevActivity:
		return cfg.MaxDevActivityAgeMinutes
	default:
		return cfg.MaxPriceAgeMinutes
	}
}

// maxDeviationPct returns the deviation limit for a metric class. Classes
// without their own limit fall back to the price limit.
func maxDeviationPct(cfg guardrail.Config, class MetricClass) float64 {
	switch class {
	case ClassSupply:
		return cfg.MaxSupplyDeviationPct
	case ClassVolume:
		return cfg.MaxVolumeDeviationPct
	default:
		return cfg.MaxPriceDeviationPct
	}
}

// NewSource derives a Source from a raw observation. Detecting staleness is
// itself a tracked stale event for the source; blacklist membership wins
// over staleness when deriving the status.
func (e *Engine) NewSource(ctx context.Context, name, typ, url string, observedAt time.Time, class MetricClass) Source {
	cfg := e.config.Config()

	staleness := int(e.now().Sub(observedAt).Minutes())
	if staleness < 0 {
		staleness = 0
	}
	isStale := staleness > maxAgeMinutes(cfg, class)

	if isStale {
		e.ledger.TrackStale(ctx, name)
	}

	confidence := freshConfidence
	if isStale {
		confidence = staleConfidence
	}

	status := SourceActive
	switch {
	case e.ledger.IsBlacklisted(name):
		status = SourceBlacklisted
	case isStale:
		status = SourceWarning
	}

	return Source{
		Name:             name,
		Type:             typ,
		URL:              url,
		Timestamp:        observedAt,
		Confidence:       confidence,
		IsStale:          isStale,
		StalenessMinutes: staleness,
		Status:           status,
		StaleCount:       e.ledger.StaleCount(ctx, name),
	}
}

// SourceFromMarketData builds a Source from an external market-data record,
// trusting the record's own last-updated field for freshness.
func (e *Engine) SourceFromMarketData(ctx context.Context, rec marketdata.Record, class MetricClass) Source {
	name := rec.SourceName
	if name == "" {
		name = "coingecko"
	}
	return e.NewSource(ctx, name, "api", rec.SourceURL, rec.LastUpdated, class)
}

// CreateProvenance assembles a provenance record. A consensus block is only
// attached when more than one numeric value was observed.
func (e *Engine) CreateProvenance(metric string, value float64, sources []Source, numericValues []float64) Provenance {
	p := Provenance{
		Metric:           metric,
		Value:            value,
		Sources:          sources,
		ValidationStatus: StatusPass,
	}

	if len(numericValues) <= 1 {
		return p
	}

	cfg := e.config.Config()
	consensus := stats.Consensus(numericValues, cfg.ConsensusMethod)

	maxDeviation := 0.0
	for _, v := range numericValues {
		if d := stats.RelativeDeviation(v, consensus); d > maxDeviation {
			maxDeviation = d
		}
	}

	var outlierIdx []int
	switch cfg.OutlierRule {
	case guardrail.OutlierIQR:
		outlierIdx = stats.DetectOutliersIQR(numericValues)
	case guardrail.OutlierCustom:
		// No custom outlier detector is implemented; selecting it yields no
		// detection rather than failing the validation run.
		e.logger.Warn().Str("metric", metric).Msg("custom outlier rule selected but unsupported; skipping outlier detection")
	default:
		outlierIdx = stats.DetectOutliersMAD(numericValues, stats.DefaultMADThreshold)
	}

	outliers := make([]string, 0, len(outlierIdx))
	for _, idx := range outlierIdx {
		if idx < len(sources) {
			outliers = append(outliers, sources[idx].Name)
		} else {
			outliers = append(outliers, fmt.Sprintf("source_%d", idx+1))
		}
	}

	p.Consensus = &ConsensusInfo{
		Method:       cfg.ConsensusMethod,
		Value:        consensus,
		DeviationPct: maxDeviation,
		Outliers:     outliers,
	}
	return p
}

// ValidateProvenance runs the four validation checks and returns the record
// with its final status and messages. fail dominates warning dominates pass;
// once failed, later checks can only append messages.
func (e *Engine) ValidateProvenance(p Provenance, rctx *RuleContext) Provenance {
	cfg := e.config.Config()
	status := StatusPass
	messages := append([]string(nil), p.ValidationMessages...)

	if len(p.Sources) < cfg.MinConsensusSources {
		messages = append(messages, fmt.Sprintf(
			"insufficient sources: %d available, %d required for consensus",
			len(p.Sources), cfg.MinConsensusSources))
		status = escalate(status, StatusWarning)
	}

	var staleNames []string
	for _, src := range p.Sources {
		if src.IsStale {
			staleNames = append(staleNames, src.Name)
		}
	}
	if len(staleNames) > 0 {
		messages = append(messages, fmt.Sprintf(
			"stale source(s) detected: %s", strings.Join(staleNames, ", ")))
		status = escalate(status, StatusWarning)
	}

	if len(p.Sources) > 0 && allBlacklisted(p.Sources) {
		messages = append(messages, "all sources blacklisted")
		status = escalate(status, StatusFail)
	}

	if p.Consensus != nil {
		limit := maxDeviationPct(cfg, ClassifyMetric(p.Metric))
		if rule, ok := guardrail.FirstSuppression(cfg.CustomRules, rctx.Lookup); ok {
			messages = append(messages, fmt.Sprintf(
				"deviation check disregarded by rule %q (%s)", rule.Name, rule.Condition))
		} else if p.Consensus.DeviationPct > limit {
			messages = append(messages, fmt.Sprintf(
				"consensus deviation %.2f%% exceeds maximum %.2f%%",
				p.Consensus.DeviationPct, limit))
			status = escalate(status, StatusFail)
		}
	}

	p.ValidationStatus = status
	p.ValidationMessages = messages

	e.logger.Debug().
		Str("metric", p.Metric).
		Str("status", string(status)).
		Int("sources", len(p.Sources)).
		Msg("provenance validated")
	return p
}

func allBlacklisted(sources []Source) bool {
	for _, src := range sources {
		if src.Status != SourceBlacklisted {
			return false
		}
	}
	return true
}

// EvaluateObservations is the end-to-end path for a caller-supplied
// observation document: derive sources, compute consensus, validate.
func (e *Engine) EvaluateObservations(ctx context.Context, set marketdata.ObservationSet) Provenance {
	class := ClassifyMetric(set.Metric)

	sources := make([]Source, len(set.Observations))
	for i, obs := range set.Observations {
		typ := obs.Type
		if typ == "" {
			typ = "api"
		}
		sources[i] = e.NewSource(ctx, obs.Source, typ, obs.URL, obs.Timestamp, class)
	}

	values := set.Values()

	reported := 0.0
	switch {
	case !set.Reported.IsZero():
		reported = set.Reported.InexactFloat64()
	case len(values) > 1:
		reported = stats.Consensus(values, e.config.Config().ConsensusMethod)
	case len(values) == 1:
		reported = values[0]
	}

	p := e.CreateProvenance(set.Metric, reported, sources, values)
	return e.ValidateProvenance(p, &RuleContext{Volume: set.Volume})
}
