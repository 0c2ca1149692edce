package cli

import (
	"github.com/spf13/cobra"

	"dataguard/internal/guardrail"
	"dataguard/internal/stats"
)

var guardrailCmd = &cobra.Command{
	Use:   "guardrail",
	Short: "Inspect and adjust the data-quality guardrail configuration",
}

var guardrailShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the active guardrail configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ShowConfig(cmd.Context())
	},
}

var guardrailSetModeCmd = &cobra.Command{
	Use:   "set-mode <strict|web_scraping|custom>",
	Short: "Switch the guardrail preset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().SetMode(cmd.Context(), args[0])
	},
}

var (
	setMinSources   int
	setMethod       string
	setOutlierRule  string
	setPriceDev     float64
	setSupplyDev    float64
	setVolumeDev    float64
	setPriceAge     int
	setSupplyAge    int
	setVolumeAge    int
	setAutoBllCount int
)

var guardrailSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Override individual guardrail thresholds without changing mode",
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch guardrail.Patch

		if cmd.Flags().Changed("min-sources") {
			patch.MinConsensusSources = &setMinSources
		}
		if cmd.Flags().Changed("consensus-method") {
			method := stats.ConsensusMethod(setMethod)
			patch.ConsensusMethod = &method
		}
		if cmd.Flags().Changed("outlier-rule") {
			rule := guardrail.OutlierRule(setOutlierRule)
			patch.OutlierRule = &rule
		}
		if cmd.Flags().Changed("max-price-deviation") {
			patch.MaxPriceDeviationPct = &setPriceDev
		}
		if cmd.Flags().Changed("max-supply-deviation") {
			patch.MaxSupplyDeviationPct = &setSupplyDev
		}
		if cmd.Flags().Changed("max-volume-deviation") {
			patch.MaxVolumeDeviationPct = &setVolumeDev
		}
		if cmd.Flags().Changed("max-price-age") {
			patch.MaxPriceAgeMinutes = &setPriceAge
		}
		if cmd.Flags().Changed("max-supply-age") {
			patch.MaxSupplyAgeMinutes = &setSupplyAge
		}
		if cmd.Flags().Changed("max-volume-age") {
			patch.MaxVolumeAgeMinutes = &setVolumeAge
		}
		if cmd.Flags().Changed("auto-blacklist-after") {
			patch.AutoBlacklistAfterStaleCount = &setAutoBllCount
		}

		return getApp().UpdateThresholds(cmd.Context(), patch)
	},
}

func init() {
	flags := guardrailSetCmd.Flags()
	flags.IntVar(&setMinSources, "min-sources", 0, "Minimum sources required for consensus")
	flags.StringVar(&setMethod, "consensus-method", "", "Consensus method: median, mean, or mode")
	flags.StringVar(&setOutlierRule, "outlier-rule", "", "Outlier rule: mad or iqr")
	flags.Float64Var(&setPriceDev, "max-price-deviation", 0, "Max price deviation percent")
	flags.Float64Var(&setSupplyDev, "max-supply-deviation", 0, "Max supply deviation percent")
	flags.Float64Var(&setVolumeDev, "max-volume-deviation", 0, "Max volume deviation percent")
	flags.IntVar(&setPriceAge, "max-price-age", 0, "Max price age in minutes")
	flags.IntVar(&setSupplyAge, "max-supply-age", 0, "Max supply age in minutes")
	flags.IntVar(&setVolumeAge, "max-volume-age", 0, "Max volume age in minutes")
	flags.IntVar(&setAutoBllCount, "auto-blacklist-after", 0, "Stale events before auto-blacklisting a source")

	guardrailCmd.AddCommand(guardrailShowCmd)
	guardrailCmd.AddCommand(guardrailSetModeCmd)
	guardrailCmd.AddCommand(guardrailSetCmd)
}
