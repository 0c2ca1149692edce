// Package tracker maintains per-source staleness counters and the source
// blacklist. Counters persist across sessions; the blacklist set is held in
// memory and re-persisted on every change. None of the operations return
// errors: persistence failures are logged and the in-memory state remains
// authoritative for the session.
package tracker

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"dataguard/internal/kv"
)

const (
	// BlacklistKey is the logical key the blacklist set persists under.
	BlacklistKey = "dataguard:source_blacklist"
	// StaleCountPrefix prefixes the per-source stale counter keys.
	StaleCountPrefix = "dataguard:stale_count:"
)

// ThresholdSource supplies the stale-event count at which a source is
// auto-blacklisted. The guardrail configuration service implements it.
type ThresholdSource interface {
	AutoBlacklistThreshold() int
}

// Ledger tracks stale events per source and the blacklist set.
type Ledger struct {
	store     kv.Store
	threshold ThresholdSource
	logger    zerolog.Logger

	mu          sync.Mutex
	blacklisted map[string]struct{}
}

// NewLedger builds a ledger, restoring any persisted blacklist.
func NewLedger(store kv.Store, threshold ThresholdSource, logger zerolog.Logger) *Ledger {
	l := &Ledger{
		store:       store,
		threshold:   threshold,
		logger:      logger.With().Str("component", "tracker").Logger(),
		blacklisted: make(map[string]struct{}),
	}
	l.loadBlacklist()
	return l
}

// normalizeKey lowercases a source name and collapses whitespace to
// underscores for use in counter keys.
func normalizeKey(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}

func (l *Ledger) loadBlacklist() {
	if l.store == nil {
		return
	}
	raw, ok, err := l.store.Get(context.Background(), BlacklistKey)
	if err != nil {
		l.logger.Warn().Err(err).Msg("failed to load blacklist; starting empty")
		return
	}
	if !ok {
		return
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		l.logger.Warn().Err(err).Msg("persisted blacklist is corrupt; starting empty")
		return
	}
	for _, name := range names {
		l.blacklisted[strings.ToLower(name)] = struct{}{}
	}
}

func (l *Ledger) persistBlacklistLocked() {
	if l.store == nil {
		return
	}
	names := make([]string, 0, len(l.blacklisted))
	for name := range l.blacklisted {
		names = append(names, name)
	}
	sort.Strings(names)
	raw, err := json.Marshal(names)
	if err != nil {
		l.logger.Error().Err(err).Msg("failed to serialize blacklist")
		return
	}
	if err := l.store.Set(context.Background(), BlacklistKey, raw); err != nil {
		l.logger.Warn().Err(err).Msg("failed to persist blacklist; in-memory set remains authoritative")
	}
}

// TrackStale increments the persisted stale counter for a source and
// blacklists it once the counter reaches the configured threshold.
func (l *Ledger) TrackStale(ctx context.Context, sourceName string) {
	key := StaleCountPrefix + normalizeKey(sourceName)

	count := 1
	if l.store != nil {
		if raw, ok, err := l.store.Get(ctx, key); err != nil {
			l.logger.Warn().Err(err).Str("source", sourceName).Msg("failed to read stale counter")
		} else if ok {
			if prev, convErr := strconv.Atoi(strings.TrimSpace(string(raw))); convErr == nil {
				count = prev + 1
			}
		}
		if err := l.store.Set(ctx, key, []byte(strconv.Itoa(count))); err != nil {
			l.logger.Warn().Err(err).Str("source", sourceName).Msg("failed to persist stale counter")
		}
	}

	threshold := 0
	if l.threshold != nil {
		threshold = l.threshold.AutoBlacklistThreshold()
	}

	l.logger.Debug().Str("source", sourceName).Int("stale_count", count).Msg("stale event recorded")

	if threshold > 0 && count >= threshold {
		l.logger.Warn().Str("source", sourceName).Int("stale_count", count).
			Int("threshold", threshold).Msg("source auto-blacklisted after repeated staleness")
		l.Blacklist(sourceName)
	}
}

// StaleCount reports the persisted stale counter for a source.
func (l *Ledger) StaleCount(ctx context.Context, sourceName string) int {
	if l.store == nil {
		return 0
	}
	raw, ok, err := l.store.Get(ctx, StaleCountPrefix+normalizeKey(sourceName))
	if err != nil || !ok {
		return 0
	}
	count, convErr := strconv.Atoi(strings.TrimSpace(string(raw)))
	if convErr != nil {
		return 0
	}
	return count
}

// Blacklist adds a source (lowercased) to the blacklist set. Idempotent.
func (l *Ledger) Blacklist(sourceName string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blacklisted[strings.ToLower(sourceName)] = struct{}{}
	l.persistBlacklistLocked()
}

// Unblacklist removes a source from the blacklist set.
func (l *Ledger) Unblacklist(sourceName string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.blacklisted, strings.ToLower(sourceName))
	l.persistBlacklistLocked()
}

// IsBlacklisted reports blacklist membership, case-insensitively.
func (l *Ledger) IsBlacklisted(sourceName string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.blacklisted[strings.ToLower(sourceName)]
	return ok
}

// BlacklistedSources lists the blacklist in sorted order.
func (l *Ledger) BlacklistedSources() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.blacklisted))
	for name := range l.blacklisted {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Reset clears the blacklist set and deletes every persisted stale counter.
// Destructive and irreversible; confirmation is the caller's concern.
func (l *Ledger) Reset(ctx context.Context) {
	l.mu.Lock()
	l.blacklisted = make(map[string]struct{})
	l.persistBlacklistLocked()
	l.mu.Unlock()

	if l.store == nil {
		return
	}
	if err := l.store.DeletePrefix(ctx, StaleCountPrefix); err != nil {
		l.logger.Warn().Err(err).Msg("failed to delete stale counters")
	}
	if err := l.store.Delete(ctx, BlacklistKey); err != nil {
		l.logger.Warn().Err(err).Msg("failed to delete persisted blacklist")
	}
}
