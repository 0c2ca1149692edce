package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dataguard/internal/app"
	"dataguard/internal/config"
	"dataguard/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	appHandle *app.App
)

var rootCmd = &cobra.Command{
	Use:   "dataguard",
	Short: "Score, cross-validate, and flag the trustworthiness of crypto metrics",
	Long: `dataguard evaluates metric observations gathered from multiple sources,
computes a consensus value, flags outliers, and renders a pass/warning/fail
verdict against the active guardrail configuration. Guardrail thresholds,
custom rules, and the source blacklist persist between invocations.`,
	SilenceUsage:      true,
	PersistentPreRunE: initApp,
}

// initApp builds the shared application handle exactly once, so each
// subcommand's RunE can assume a configured store and logger.
func initApp(cmd *cobra.Command, args []string) error {
	if appHandle != nil {
		return nil
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	appHandle = app.NewApp(cfg, logging.NewLogger(cfg.Logging))
	return nil
}

func getApp() *app.App {
	if appHandle == nil {
		panic("application not initialized; PersistentPreRunE not executed")
	}
	return appHandle
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Path to configuration file")
	pf.StringVar(&logLevel, "log-level", "", "Override log level defined in config")

	rootCmd.AddCommand(
		validateCmd,
		guardrailCmd,
		rulesCmd,
		blacklistCmd,
		trackStaleCmd,
		resetTrackingCmd,
		versionCmd,
	)
}
