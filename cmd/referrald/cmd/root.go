package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/referral-intake/internal/common"
)

var (
	cfgFile      string
	configLoader = common.NewLoader()
	globalConfig *common.Config
	logger       *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "referrald",
	Short: "Referral scan OCR intake and review",
	Long: `referrald ingests scanned referral documents, recognizes their text,
proposes patient fields for review and records how each scan was resolved.

Examples:
  referrald serve --watch /srv/scans/inbox
  referrald process fax-0412.pdf
  referrald export --out worklist.xlsx`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := configLoader.Load(cfgFile)
		if err != nil {
			return err
		}
		globalConfig = cfg
		logger = common.NewLogger(cfg.Log, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute(version string) {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./referral-intake.yaml or $HOME/.config/referral-intake)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json)")
	rootCmd.PersistentFlags().String("db-url", "", "database URL (postgres://... or sqlite://path)")
	rootCmd.PersistentFlags().String("llm-provider", "", "extraction backend (openai, vertex, none)")

	v := configLoader.Viper()
	_ = v.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = v.BindPFlag("log.format", rootCmd.PersistentFlags().Lookup("log-format"))
	_ = v.BindPFlag("database.url", rootCmd.PersistentFlags().Lookup("db-url"))
	_ = v.BindPFlag("llm.provider", rootCmd.PersistentFlags().Lookup("llm-provider"))

	rootCmd.AddCommand(serveCmd, processCmd, ingestCmd, exportCmd, dbCmd)
}
