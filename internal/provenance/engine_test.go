package provenance

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataguard/internal/guardrail"
	"dataguard/internal/kv"
	"dataguard/internal/marketdata"
	"dataguard/internal/stats"
	"dataguard/internal/tracker"
)

var testNow = time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, *guardrail.Service, *tracker.Ledger) {
	t.Helper()
	store := kv.NewMemory()
	svc := guardrail.NewService(store, "", zerolog.Nop())
	ledger := tracker.NewLedger(store, svc, zerolog.Nop())
	engine := NewEngine(svc, ledger, zerolog.Nop())
	engine.now = func() time.Time { return testNow }
	return engine, svc, ledger
}

func freshSources(names ...string) []Source {
	sources := make([]Source, len(names))
	for i, name := range names {
		sources[i] = Source{
			Name:       name,
			Type:       "api",
			Timestamp:  testNow,
			Confidence: 95,
			Status:     SourceActive,
		}
	}
	return sources
}

func TestClassifyMetric(t *testing.T) {
	assert.Equal(t, ClassPrice, ClassifyMetric("BTC price (USD)"))
	assert.Equal(t, ClassSupply, ClassifyMetric("circulating_supply"))
	assert.Equal(t, ClassVolume, ClassifyMetric("24h Volume"))
	assert.Equal(t, ClassOnChain, ClassifyMetric("on-chain tx count"))
	assert.Equal(t, ClassSocial, ClassifyMetric("social sentiment"))
	assert.Equal(t, ClassDevActivity, ClassifyMetric("dev commits"))
	assert.Equal(t, ClassPrice, ClassifyMetric("something else"))
}

func TestCreateProvenanceSingleValueHasNoConsensus(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	p := engine.CreateProvenance("price", 100, freshSources("a"), []float64{100})
	assert.Nil(t, p.Consensus)
	assert.Equal(t, StatusPass, p.ValidationStatus)
}

func TestCreateProvenanceConsensusAndDeviation(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	values := []float64{100, 102, 98, 500}
	p := engine.CreateProvenance("price", 100, freshSources("a", "b", "c", "d"), values)

	require.NotNil(t, p.Consensus)
	assert.Equal(t, stats.MethodMedian, p.Consensus.Method)
	assert.InDelta(t, 101, p.Consensus.Value, 1e-9)
	// 500 against a consensus of 101.
	assert.InDelta(t, 395.0495, p.Consensus.DeviationPct, 0.001)
	assert.Equal(t, []string{"d"}, p.Consensus.Outliers)
}

func TestCreateProvenanceOutlierPlaceholderNames(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	// More values than sources: the flagged index falls off the source list.
	values := []float64{100, 101, 99, 100, 5000}
	p := engine.CreateProvenance("price", 100, freshSources("a", "b"), values)

	require.NotNil(t, p.Consensus)
	assert.Equal(t, []string{"source_5"}, p.Consensus.Outliers)
}

func TestCreateProvenanceCustomOutlierRuleIsInert(t *testing.T) {
	engine, svc, _ := newTestEngine(t)
	rule := guardrail.OutlierCustom
	svc.Update(guardrail.Patch{OutlierRule: &rule})

	p := engine.CreateProvenance("price", 100, freshSources("a", "b", "c"), []float64{100, 101, 5000})
	require.NotNil(t, p.Consensus)
	assert.Empty(t, p.Consensus.Outliers)
}

func TestValidateFailsOnExcessiveDeviation(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	values := []float64{100, 102, 98, 500}
	p := engine.CreateProvenance("price", 100, freshSources("a", "b", "c", "d"), values)
	p = engine.ValidateProvenance(p, nil)

	assert.Equal(t, StatusFail, p.ValidationStatus)
	require.NotEmpty(t, p.ValidationMessages)
	assert.Contains(t, p.ValidationMessages[len(p.ValidationMessages)-1], "exceeds maximum")
}

func TestValidateCustomRuleSuppressesDeviationCheck(t *testing.T) {
	engine, svc, _ := newTestEngine(t)
	_, err := svc.AddRule("thin market", "volume < 500000", guardrail.ActionDisregardPriceDeviation, true)
	require.NoError(t, err)

	values := []float64{100, 102, 98, 500}
	p := engine.CreateProvenance("price", 100, freshSources("a", "b", "c", "d"), values)

	volume := 100000.0
	p = engine.ValidateProvenance(p, &RuleContext{Volume: &volume})

	// 4 fresh sources satisfy the strict minimum of 3, so with the deviation
	// check suppressed the record passes.
	assert.Equal(t, StatusPass, p.ValidationStatus)
	require.Len(t, p.ValidationMessages, 1)
	assert.Contains(t, p.ValidationMessages[0], "disregarded by rule")
}

func TestValidateRuleNotMatchedWithoutContext(t *testing.T) {
	engine, svc, _ := newTestEngine(t)
	_, err := svc.AddRule("thin market", "volume < 500000", guardrail.ActionDisregardPriceDeviation, true)
	require.NoError(t, err)

	values := []float64{100, 102, 98, 500}
	p := engine.CreateProvenance("price", 100, freshSources("a", "b", "c", "d"), values)
	p = engine.ValidateProvenance(p, nil)

	assert.Equal(t, StatusFail, p.ValidationStatus)
}

func TestValidateInsufficientSourcesWarns(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	p := engine.CreateProvenance("price", 100, freshSources("a"), []float64{100})
	p = engine.ValidateProvenance(p, nil)

	assert.Equal(t, StatusWarning, p.ValidationStatus)
	require.Len(t, p.ValidationMessages, 1)
	assert.Contains(t, p.ValidationMessages[0], "insufficient sources")
}

func TestValidateStaleSourceWarns(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	sources := freshSources("a", "b", "c")
	sources[1].IsStale = true
	sources[1].Status = SourceWarning

	p := engine.CreateProvenance("price", 100, sources, []float64{100, 100, 100})
	p = engine.ValidateProvenance(p, nil)

	assert.Equal(t, StatusWarning, p.ValidationStatus)
	require.Len(t, p.ValidationMessages, 1)
	assert.Contains(t, p.ValidationMessages[0], "stale source(s) detected: b")
}

func TestValidateAllBlacklistedFails(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	sources := freshSources("shady")
	sources[0].Status = SourceBlacklisted

	p := engine.CreateProvenance("price", 100, sources, []float64{100})
	p = engine.ValidateProvenance(p, nil)

	assert.Equal(t, StatusFail, p.ValidationStatus)
	assert.Contains(t, p.ValidationMessages, "all sources blacklisted")
}

func TestValidateFailNeverDowngraded(t *testing.T) {
	engine, svc, _ := newTestEngine(t)
	_, err := svc.AddRule("always", "volume < 500000", guardrail.ActionDisregardPriceDeviation, true)
	require.NoError(t, err)

	sources := freshSources("x", "y")
	sources[0].Status = SourceBlacklisted
	sources[1].Status = SourceBlacklisted

	p := engine.CreateProvenance("price", 100, sources, []float64{100, 900})
	volume := 1.0
	p = engine.ValidateProvenance(p, &RuleContext{Volume: &volume})

	// Deviation suppression still appends its message but cannot lift fail.
	assert.Equal(t, StatusFail, p.ValidationStatus)
}

func TestSupplyMetricUsesSupplyThreshold(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	// Max deviation ~1.23%: over the strict 1% supply limit, under the 5%
	// price limit.
	values := []float64{1000, 1025}
	p := engine.CreateProvenance("circulating supply", 1000, freshSources("a", "b", "c"), values)
	p = engine.ValidateProvenance(p, nil)

	assert.Equal(t, StatusFail, p.ValidationStatus)
}

func TestNewSourceFreshness(t *testing.T) {
	engine, _, ledger := newTestEngine(t)
	ctx := context.Background()

	fresh := engine.NewSource(ctx, "CoinGecko", "api", "", testNow.Add(-2*time.Minute), ClassPrice)
	assert.False(t, fresh.IsStale)
	assert.Equal(t, 95, fresh.Confidence)
	assert.Equal(t, SourceActive, fresh.Status)
	assert.Equal(t, 2, fresh.StalenessMinutes)
	assert.Equal(t, 0, fresh.StaleCount)

	// Strict price max age is 5 minutes.
	stale := engine.NewSource(ctx, "CoinGecko", "api", "", testNow.Add(-10*time.Minute), ClassPrice)
	assert.True(t, stale.IsStale)
	assert.Equal(t, 60, stale.Confidence)
	assert.Equal(t, SourceWarning, stale.Status)
	assert.Equal(t, 10, stale.StalenessMinutes)
	assert.Equal(t, 1, stale.StaleCount, "deriving a stale source records a stale event")

	ledger.Blacklist("coingecko")
	listed := engine.NewSource(ctx, "CoinGecko", "api", "", testNow, ClassPrice)
	assert.Equal(t, SourceBlacklisted, listed.Status)
}

func TestNewSourceClassSpecificMaxAge(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := context.Background()

	// 30 minutes is stale for price (5m limit) but fresh for supply (60m).
	observed := testNow.Add(-30 * time.Minute)
	assert.True(t, engine.NewSource(ctx, "a", "api", "", observed, ClassPrice).IsStale)
	assert.False(t, engine.NewSource(ctx, "b", "api", "", observed, ClassSupply).IsStale)
}

func TestRepeatedStalenessAutoBlacklists(t *testing.T) {
	engine, _, ledger := newTestEngine(t)
	ctx := context.Background()
	observed := testNow.Add(-time.Hour)

	// Strict auto-blacklist threshold is 3 stale events.
	engine.NewSource(ctx, "flaky", "api", "", observed, ClassPrice)
	engine.NewSource(ctx, "flaky", "api", "", observed, ClassPrice)
	assert.False(t, ledger.IsBlacklisted("flaky"))

	src := engine.NewSource(ctx, "flaky", "api", "", observed, ClassPrice)
	assert.True(t, ledger.IsBlacklisted("flaky"))
	assert.Equal(t, SourceBlacklisted, src.Status)
	assert.Equal(t, 3, src.StaleCount)
}

func TestSourceFromMarketData(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	rec := marketdata.Record{
		ID:           "bitcoin",
		Symbol:       "btc",
		SourceName:   "CoinGecko",
		CurrentPrice: decimal.NewFromInt(65000),
		LastUpdated:  testNow.Add(-time.Minute),
	}
	src := engine.SourceFromMarketData(context.Background(), rec, ClassPrice)

	assert.Equal(t, "CoinGecko", src.Name)
	assert.Equal(t, "api", src.Type)
	assert.False(t, src.IsStale)
	assert.Equal(t, rec.LastUpdated, src.Timestamp)
}

func TestEvaluateObservationsEndToEnd(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	set := marketdata.ObservationSet{
		Metric: "price",
		Observations: []marketdata.Observation{
			{Source: "a", Value: decimal.NewFromInt(100), Timestamp: testNow},
			{Source: "b", Value: decimal.NewFromInt(102), Timestamp: testNow},
			{Source: "c", Value: decimal.NewFromInt(98), Timestamp: testNow},
			{Source: "d", Value: decimal.NewFromInt(500), Timestamp: testNow},
		},
	}

	p := engine.EvaluateObservations(context.Background(), set)
	assert.Equal(t, StatusFail, p.ValidationStatus)
	require.NotNil(t, p.Consensus)
	assert.InDelta(t, 101, p.Value, 1e-9, "reported value defaults to the consensus")
	assert.Equal(t, []string{"d"}, p.Consensus.Outliers)
}
