package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"dataguard/internal/app"
)

var (
	validateInput  string
	validateVolume float64
	validateJSON   bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a metric's per-source observations and print its provenance",
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateInput == "" {
			return fmt.Errorf("--input is required")
		}

		opts := app.ValidateOptions{
			InputPath: validateInput,
			AsJSON:    validateJSON,
		}
		if cmd.Flags().Changed("volume") {
			opts.Volume = &validateVolume
		}

		return getApp().Validate(cmd.Context(), opts)
	},
}

func init() {
	validateCmd.Flags().StringVar(&validateInput, "input", "", "Path to an observations JSON document")
	validateCmd.Flags().Float64Var(&validateVolume, "volume", 0, "24h volume context for custom rule evaluation")
	validateCmd.Flags().BoolVar(&validateJSON, "json", false, "Print the full provenance record as JSON")
}
