package tracker

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dataguard/internal/kv"
)

type fixedThreshold int

func (f fixedThreshold) AutoBlacklistThreshold() int { return int(f) }

func newTestLedger(t *testing.T, threshold int) (*Ledger, *kv.Memory) {
	t.Helper()
	store := kv.NewMemory()
	return NewLedger(store, fixedThreshold(threshold), zerolog.Nop()), store
}

func TestBlacklistIdempotentAndLowercased(t *testing.T) {
	ledger, _ := newTestLedger(t, 3)

	ledger.Blacklist("CoinGecko")
	ledger.Blacklist("coingecko")

	assert.Equal(t, []string{"coingecko"}, ledger.BlacklistedSources())
	assert.True(t, ledger.IsBlacklisted("COINGECKO"))

	ledger.Unblacklist("CoinGecko")
	assert.Empty(t, ledger.BlacklistedSources())
}

func TestTrackStaleAutoBlacklistsAtThreshold(t *testing.T) {
	ledger, _ := newTestLedger(t, 3)
	ctx := context.Background()

	ledger.TrackStale(ctx, "Foo")
	ledger.TrackStale(ctx, "Foo")
	assert.False(t, ledger.IsBlacklisted("foo"), "below threshold")
	assert.Equal(t, 2, ledger.StaleCount(ctx, "Foo"))

	ledger.TrackStale(ctx, "Foo")
	assert.Contains(t, ledger.BlacklistedSources(), "foo")
}

func TestTrackStaleNormalizesCounterKeys(t *testing.T) {
	ledger, store := newTestLedger(t, 10)
	ctx := context.Background()

	ledger.TrackStale(ctx, "Coin Market Cap")

	keys, err := store.Keys(ctx, StaleCountPrefix)
	require.NoError(t, err)
	require.Equal(t, []string{StaleCountPrefix + "coin_market_cap"}, keys)

	assert.Equal(t, 1, ledger.StaleCount(ctx, "coin market CAP"))
}

func TestBlacklistSurvivesReload(t *testing.T) {
	store := kv.NewMemory()
	ledger := NewLedger(store, fixedThreshold(3), zerolog.Nop())
	ledger.Blacklist("shadySource")

	reloaded := NewLedger(store, fixedThreshold(3), zerolog.Nop())
	assert.True(t, reloaded.IsBlacklisted("shadysource"))
}

func TestResetClearsEverything(t *testing.T) {
	ledger, store := newTestLedger(t, 5)
	ctx := context.Background()

	ledger.Blacklist("a")
	ledger.Blacklist("b")
	ledger.TrackStale(ctx, "source one")
	ledger.TrackStale(ctx, "source one")
	ledger.TrackStale(ctx, "source two")

	ledger.Reset(ctx)

	assert.Empty(t, ledger.BlacklistedSources())
	keys, err := store.Keys(ctx, StaleCountPrefix)
	require.NoError(t, err)
	assert.Empty(t, keys)

	// A previously-tracked source starts from 1 again.
	ledger.TrackStale(ctx, "source one")
	assert.Equal(t, 1, ledger.StaleCount(ctx, "source one"))
}

func TestNilStoreIsTolerated(t *testing.T) {
	ledger := NewLedger(nil, fixedThreshold(2), zerolog.Nop())
	ctx := context.Background()

	ledger.TrackStale(ctx, "x")
	ledger.TrackStale(ctx, "x")

	// With no persistence every event counts as the first, so the threshold
	// of 2 is never reached.
	assert.False(t, ledger.IsBlacklisted("x"))

	ledger.Blacklist("x")
	assert.True(t, ledger.IsBlacklisted("x"))
	ledger.Reset(ctx)
	assert.False(t, ledger.IsBlacklisted("x"))
}
