package guardrail

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"dataguard/internal/kv"
)

// ConfigKey is the logical key the guardrail configuration persists under.
const ConfigKey = "dataguard:guardrail_config"

// Service owns the guardrail configuration and its persistence handle. It is
// constructed explicitly and passed to collaborators; there is no package
// singleton. Persistence failures are logged and swallowed — the in-memory
// state stays authoritative for the session.
type Service struct {
	store  kv.Store
	key    string
	logger zerolog.Logger

	mu  sync.Mutex
	cfg Config

	// customEdits remembers the last thresholds used in custom mode so that
	// switching away and back does not discard them.
	customEdits *Config
}

// NewService loads persisted configuration or falls back to the strict
// preset when no prior state exists or it fails to deserialize.
func NewService(store kv.Store, key string, logger zerolog.Logger) *Service {
	if key == "" {
		key = ConfigKey
	}
	s := &Service{
		store:  store,
		key:    key,
		logger: logger.With().Str("component", "guardrail").Logger(),
	}
	s.cfg = s.load()
	if s.cfg.Mode == ModeCustom {
		snapshot := s.cfg.clone()
		s.customEdits = &snapshot
	}
	return s
}

func (s *Service) load() Config {
	if s.store == nil {
		return Preset(ModeStrict)
	}

	raw, ok, err := s.store.Get(context.Background(), s.key)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load guardrail config; using strict preset")
		return Preset(ModeStrict)
	}
	if !ok {
		return Preset(ModeStrict)
	}

	var cfg Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		s.logger.Warn().Err(err).Msg("persisted guardrail config is corrupt; using strict preset")
		return Preset(ModeStrict)
	}
	if cfg.CustomRules == nil {
		cfg.CustomRules = []Rule{}
	}
	for i := range cfg.CustomRules {
		cfg.CustomRules[i].compile()
	}
	return cfg
}

// persistLocked serializes the full config after every mutation.
func (s *Service) persistLocked() {
	if s.store == nil {
		return
	}
	raw, err := json.Marshal(s.cfg)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to serialize guardrail config")
		return
	}
	if err := s.store.Set(context.Background(), s.key, raw); err != nil {
		s.logger.Warn().Err(err).Msg("failed to persist guardrail config; in-memory state remains authoritative")
	}
}

// snapshotCustomLocked records the current thresholds when editing in custom
// mode.
func (s *Service) snapshotCustomLocked() {
	if s.cfg.Mode != ModeCustom {
		return
	}
	snapshot := s.cfg.clone()
	s.customEdits = &snapshot
}

// Config returns a defensive copy of the current configuration.
func (s *Service) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.clone()
}

// SetMode replaces the entire threshold set with the named preset. Switching
// to custom restores the last custom edits when any exist.
func (s *Service) SetMode(mode Mode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if mode == ModeCustom && s.customEdits != nil {
		s.cfg = s.customEdits.clone()
		s.cfg.Mode = ModeCustom
	} else {
		s.cfg = Preset(mode)
	}
	s.snapshotCustomLocked()
	s.persistLocked()
}

// Update shallow-merges the patch into the current configuration without
// changing mode.
func (s *Service) Update(p Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.apply(p)
	s.snapshotCustomLocked()
	s.persistLocked()
}

// AddRule parses and appends a custom rule, returning the stored copy.
func (s *Service) AddRule(name, condition string, action RuleAction, enabled bool) (Rule, error) {
	rule, err := NewRule(name, condition, action, enabled)
	if err != nil {
		return Rule{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.cfg.CustomRules = append(s.cfg.CustomRules, rule)
	s.snapshotCustomLocked()
	s.persistLocked()
	return rule, nil
}

// RemoveRule deletes a rule by id. Unknown ids leave the list unchanged.
func (s *Service) RemoveRule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.cfg.CustomRules[:0]
	for _, rule := range s.cfg.CustomRules {
		if rule.ID != id {
			kept = append(kept, rule)
		}
	}
	if len(kept) == len(s.cfg.CustomRules) {
		return
	}
	s.cfg.CustomRules = kept
	s.snapshotCustomLocked()
	s.persistLocked()
}

// RulePatch mutates selected fields of an existing rule.
type RulePatch struct {
	Name      *string
	Condition *string
	Action    *RuleAction
	Enabled   *bool
}

// UpdateRule applies a patch to the rule with the given id. An unknown id is
// a no-op; a patched condition that fails to parse is rejected.
func (s *Service) UpdateRule(id string, p RulePatch) error {
	if p.Condition != nil {
		if _, err := ParseCondition(*p.Condition); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.cfg.CustomRules {
		rule := &s.cfg.CustomRules[i]
		if rule.ID != id {
			continue
		}
		if p.Name != nil {
			rule.Name = *p.Name
		}
		if p.Condition != nil {
			rule.Condition = *p.Condition
			rule.compile()
		}
		if p.Action != nil {
			rule.Action = *p.Action
		}
		if p.Enabled != nil {
			rule.Enabled = *p.Enabled
		}
		s.snapshotCustomLocked()
		s.persistLocked()
		return nil
	}
	return nil
}

// AutoBlacklistThreshold exposes the stale-event count at which sources are
// auto-blacklisted; the tracker ledger reads it per tracking call.
func (s *Service) AutoBlacklistThreshold() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.AutoBlacklistAfterStaleCount
}
