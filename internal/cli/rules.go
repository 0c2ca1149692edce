package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dataguard/internal/app"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage custom validation rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List custom rules in evaluation order",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListRules(cmd.Context())
	},
}

var (
	ruleName      string
	ruleCondition string
	ruleAction    string
	ruleDisabled  bool
)

var rulesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a custom rule, e.g. --condition 'volume < 500000'",
	RunE: func(cmd *cobra.Command, args []string) error {
		if ruleName == "" || ruleCondition == "" {
			return fmt.Errorf("--name and --condition are required")
		}
		return getApp().AddRule(cmd.Context(), app.RuleOptions{
			Name:      ruleName,
			Condition: ruleCondition,
			Action:    ruleAction,
			Disabled:  ruleDisabled,
		})
	},
}

var rulesRemoveCmd = &cobra.Command{
	Use:   "remove <rule-id>",
	Short: "Remove a custom rule by id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().RemoveRule(cmd.Context(), args[0])
	},
}

var rulesEnableCmd = &cobra.Command{
	Use:   "enable <rule-id>",
	Short: "Enable a custom rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetRuleEnabled(cmd.Context(), args[0], true)
	},
}

var rulesDisableCmd = &cobra.Command{
	Use:   "disable <rule-id>",
	Short: "Disable a custom rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetRuleEnabled(cmd.Context(), args[0], false)
	},
}

func init() {
	rulesAddCmd.Flags().StringVar(&ruleName, "name", "", "Rule display name")
	rulesAddCmd.Flags().StringVar(&ruleCondition, "condition", "", "Condition, `<field> <op> <number>`")
	rulesAddCmd.Flags().StringVar(&ruleAction, "action", "disregard_price_deviation", "Rule action")
	rulesAddCmd.Flags().BoolVar(&ruleDisabled, "disabled", false, "Create the rule disabled")

	rulesCmd.AddCommand(rulesListCmd)
	rulesCmd.AddCommand(rulesAddCmd)
	rulesCmd.AddCommand(rulesRemoveCmd)
	rulesCmd.AddCommand(rulesEnableCmd)
	rulesCmd.AddCommand(rulesDisableCmd)
}
