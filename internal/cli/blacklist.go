package cli

import (
	"github.com/spf13/cobra"
)

var blacklistCmd = &cobra.Command{
	Use:   "blacklist",
	Short: "Manage the source blacklist",
}

var blacklistListCmd = &cobra.Command{
	Use:   "list",
	Short: "List blacklisted sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ShowBlacklist(cmd.Context())
	},
}

var blacklistAddCmd = &cobra.Command{
	Use:   "add <source-name>",
	Short: "Blacklist a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().BlacklistSource(cmd.Context(), args[0])
	},
}

var blacklistRemoveCmd = &cobra.Command{
	Use:   "remove <source-name>",
	Short: "Remove a source from the blacklist",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().UnblacklistSource(cmd.Context(), args[0])
	},
}

func init() {
	blacklistCmd.AddCommand(blacklistListCmd)
	blacklistCmd.AddCommand(blacklistAddCmd)
	blacklistCmd.AddCommand(blacklistRemoveCmd)
}
