package main

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"snapci/internal/config"
)

var (
	cfgFile string
	verbose bool

	cfg    *config.Config
	logger *log.Logger
)

var rootCmd = &cobra.Command{
	Use:           "snapci",
	Short:         "A manual-dispatch workflow runner with artifact publishing.",
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return err
		}
		level := log.InfoLevel
		if verbose {
			level = log.DebugLevel
		}
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Level:           level,
		})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default snapci.yaml in cwd)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
}
