package guardrail

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RuleAction describes what a matching custom rule does.
type RuleAction string

const (
	ActionWarning RuleAction = "warning"
	ActionError   RuleAction = "error"
	// ActionDisregardPriceDeviation suppresses the deviation check entirely
	// for the provenance computation it matches.
	ActionDisregardPriceDeviation RuleAction = "disregard_price_deviation"
	ActionBlacklistSource         RuleAction = "blacklist_source"
)

// CompareOp is a numeric comparison operator in a rule condition.
type CompareOp string

const (
	OpLess      CompareOp = "<"
	OpLessEq    CompareOp = "<="
	OpGreater   CompareOp = ">"
	OpGreaterEq CompareOp = ">="
	OpEqual     CompareOp = "=="
)

// Comparison is a rule condition parsed into its three parts. Conditions are
// parsed once at rule creation, not re-scanned on every evaluation.
type Comparison struct {
	Field     string
	Op        CompareOp
	Threshold float64
}

// Eval applies the comparison to a context value for the condition's field.
func (c Comparison) Eval(value float64) bool {
	switch c.Op {
	case OpLess:
		return value < c.Threshold
	case OpLessEq:
		return value <= c.Threshold
	case OpGreater:
		return value > c.Threshold
	case OpGreaterEq:
		return value >= c.Threshold
	case OpEqual:
		return value == c.Threshold
	default:
		return false
	}
}

// ParseCondition parses `<field> <op> <number>` into a Comparison. Anything
// else is a malformed condition.
func ParseCondition(condition string) (Comparison, error) {
	tokens := strings.Fields(condition)
	if len(tokens) != 3 {
		return Comparison{}, fmt.Errorf("condition %q: want `<field> <op> <number>`", condition)
	}

	field := strings.ToLower(tokens[0])

	op := CompareOp(tokens[1])
	switch op {
	case OpLess, OpLessEq, OpGreater, OpGreaterEq, OpEqual:
	default:
		return Comparison{}, fmt.Errorf("condition %q: unsupported operator %q", condition, tokens[1])
	}

	threshold, err := strconv.ParseFloat(tokens[2], 64)
	if err != nil {
		return Comparison{}, fmt.Errorf("condition %q: threshold is not numeric: %w", condition, err)
	}

	return Comparison{Field: field, Op: op, Threshold: threshold}, nil
}

// Rule is a user-defined validation rule. The Condition text is kept for
// display and persistence; the compiled form drives evaluation.
type Rule struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Condition string     `json:"condition"`
	Action    RuleAction `json:"action"`
	Enabled   bool       `json:"enabled"`

	compiled *Comparison
}

// NewRule builds a rule with a fresh id, rejecting malformed conditions up
// front instead of having them silently never match.
func NewRule(name, condition string, action RuleAction, enabled bool) (Rule, error) {
	cmp, err := ParseCondition(condition)
	if err != nil {
		return Rule{}, err
	}
	return Rule{
		ID:        newRuleID(),
		Name:      name,
		Condition: condition,
		Action:    action,
		Enabled:   enabled,
		compiled:  &cmp,
	}, nil
}

// newRuleID generates a time-ordered unique id with a random suffix.
func newRuleID() string {
	return fmt.Sprintf("rule-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// compile re-parses the stored condition text, e.g. after loading persisted
// state. A condition that no longer parses leaves the rule inert.
func (r *Rule) compile() {
	cmp, err := ParseCondition(r.Condition)
	if err != nil {
		r.compiled = nil
		return
	}
	r.compiled = &cmp
}

// Matches reports whether the rule's condition holds given a field lookup.
// Rules with unparsable conditions or missing context fields never match.
func (r Rule) Matches(lookup func(field string) (float64, bool)) bool {
	if r.compiled == nil || lookup == nil {
		return false
	}
	value, ok := lookup(r.compiled.Field)
	if !ok {
		return false
	}
	return r.compiled.Eval(value)
}

// FirstSuppression returns the first enabled disregard_price_deviation rule
// whose condition matches, in slice (insertion) order.
func FirstSuppression(rules []Rule, lookup func(field string) (float64, bool)) (Rule, bool) {
	for _, rule := range rules {
		if !rule.Enabled || rule.Action != ActionDisregardPriceDeviation {
			continue
		}
		if rule.Matches(lookup) {
			return rule, true
		}
	}
	return Rule{}, false
}
