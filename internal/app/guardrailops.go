package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"dataguard/internal/guardrail"
)

// ShowConfig prints the active guardrail configuration.
func (a *App) ShowConfig(ctx context.Context) error {
	svcs, closer, err := a.newServices(ctx)
	if err != nil {
		return err
	}
	defer closer()
	return printJSON(svcs.guardrails.Config())
}

// SetMode switches the guardrail preset.
func (a *App) SetMode(ctx context.Context, mode string) error {
	switch guardrail.Mode(mode) {
	case guardrail.ModeStrict, guardrail.ModeWebScraping, guardrail.ModeCustom:
	default:
		return fmt.Errorf("mode %q is not one of strict, web_scraping, custom", mode)
	}

	svcs, closer, err := a.newServices(ctx)
	if err != nil {
		return err
	}
	defer closer()

	svcs.guardrails.SetMode(guardrail.Mode(mode))
	a.Logger.Info().Str("mode", mode).Msg("guardrail mode switched")
	return printJSON(svcs.guardrails.Config())
}

// UpdateThresholds shallow-merges flag-supplied threshold overrides.
func (a *App) UpdateThresholds(ctx context.Context, patch guardrail.Patch) error {
	svcs, closer, err := a.newServices(ctx)
	if err != nil {
		return err
	}
	defer closer()

	svcs.guardrails.Update(patch)
	return printJSON(svcs.guardrails.Config())
}

// RuleOptions configure rule creation.
type RuleOptions struct {
	Name      string
	Condition string
	Action    string
	Disabled  bool
}

// AddRule appends a custom validation rule.
func (a *App) AddRule(ctx context.Context, opts RuleOptions) error {
	action := guardrail.RuleAction(opts.Action)
	switch action {
	case guardrail.ActionWarning, guardrail.ActionError,
		guardrail.ActionDisregardPriceDeviation, guardrail.ActionBlacklistSource:
	default:
		return fmt.Errorf("action %q is not a valid rule action", opts.Action)
	}

	svcs, closer, err := a.newServices(ctx)
	if err != nil {
		return err
	}
	defer closer()

	rule, err := svcs.guardrails.AddRule(opts.Name, opts.Condition, action, !opts.Disabled)
	if err != nil {
		return err
	}
	return printJSON(rule)
}

// RemoveRule deletes a rule by id.
func (a *App) RemoveRule(ctx context.Context, id string) error {
	svcs, closer, err := a.newServices(ctx)
	if err != nil {
		return err
	}
	defer closer()

	svcs.guardrails.RemoveRule(id)
	return nil
}

// SetRuleEnabled toggles a rule by id.
func (a *App) SetRuleEnabled(ctx context.Context, id string, enabled bool) error {
	svcs, closer, err := a.newServices(ctx)
	if err != nil {
		return err
	}
	defer closer()

	return svcs.guardrails.UpdateRule(id, guardrail.RulePatch{Enabled: &enabled})
}

// ListRules prints the custom rule list in insertion (evaluation) order.
func (a *App) ListRules(ctx context.Context) error {
	svcs, closer, err := a.newServices(ctx)
	if err != nil {
		return err
	}
	defer closer()

	rules := svcs.guardrails.Config().CustomRules
	if len(rules) == 0 {
		fmt.Fprintln(os.Stdout, "no custom rules configured")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tName\tCondition\tAction\tEnabled")
	for _, rule := range rules {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%v\n",
			rule.ID, rule.Name, rule.Condition, rule.Action, rule.Enabled)
	}
	writer.Flush()
	return nil
}

// ShowBlacklist prints the blacklisted source names.
func (a *App) ShowBlacklist(ctx context.Context) error {
	svcs, closer, err := a.newServices(ctx)
	if err != nil {
		return err
	}
	defer closer()

	names := svcs.ledger.BlacklistedSources()
	if len(names) == 0 {
		fmt.Fprintln(os.Stdout, "no sources blacklisted")
		return nil
	}
	for _, name := range names {
		fmt.Fprintln(os.Stdout, name)
	}
	return nil
}

// BlacklistSource adds a source to the blacklist.
func (a *App) BlacklistSource(ctx context.Context, name string) error {
	svcs, closer, err := a.newServices(ctx)
	if err != nil {
		return err
	}
	defer closer()

	svcs.ledger.Blacklist(name)
	return nil
}

// UnblacklistSource removes a source from the blacklist.
func (a *App) UnblacklistSource(ctx context.Context, name string) error {
	svcs, closer, err := a.newServices(ctx)
	if err != nil {
		return err
	}
	defer closer()

	svcs.ledger.Unblacklist(name)
	return nil
}

// TrackStale records one stale event for a source.
func (a *App) TrackStale(ctx context.Context, name string) error {
	svcs, closer, err := a.newServices(ctx)
	if err != nil {
		return err
	}
	defer closer()

	svcs.ledger.TrackStale(ctx, name)
	fmt.Fprintf(os.Stdout, "stale count for %s: %d\n", name, svcs.ledger.StaleCount(ctx, name))
	return nil
}

// ResetTracking clears the blacklist and all stale counters. Destructive and
// irreversible; the caller must pass confirm explicitly.
func (a *App) ResetTracking(ctx context.Context, confirm bool) error {
	if !confirm {
		return errors.New("reset-tracking is irreversible; re-run with --yes to confirm")
	}

	svcs, closer, err := a.newServices(ctx)
	if err != nil {
		return err
	}
	defer closer()

	svcs.ledger.Reset(ctx)
	a.Logger.Info().Msg("source tracking state reset")
	return nil
}
