package cli

import (
	"github.com/spf13/cobra"
)

var trackStaleCmd = &cobra.Command{
	Use:   "track-stale <source-name>",
	Short: "Record a stale-data event for a source",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().TrackStale(cmd.Context(), args[0])
	},
}

var resetConfirmed bool

var resetTrackingCmd = &cobra.Command{
	Use:   "reset-tracking",
	Short: "Clear the blacklist and all stale counters (irreversible)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ResetTracking(cmd.Context(), resetConfirmed)
	},
}

func init() {
	resetTrackingCmd.Flags().BoolVar(&resetConfirmed, "yes", false, "Confirm the irreversible reset")
}
