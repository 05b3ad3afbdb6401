package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"snapci/internal/journal"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Tamper-evident step journal",
}

var journalVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-validate the journal chain, signatures and log hashes",
	RunE: func(cmd *cobra.Command, args []string) error {
		jnl, err := journal.Open(cfg.JournalPath())
		if err != nil {
			return err
		}
		if err := jnl.Verify(); err != nil {
			return fmt.Errorf("journal verification failed: %w", err)
		}
		fmt.Printf("journal ok (%d entries)\n", len(jnl.Entries()))
		return nil
	},
}

var journalInspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print journal entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		jnl, err := journal.Open(cfg.JournalPath())
		if err != nil {
			return err
		}
		for _, e := range jnl.Entries() {
			fmt.Printf("%4d  %s  run=%s  phase=%-9s  step=%s  hash=%s\n",
				e.Index, e.Timestamp, e.RunID, e.Phase, e.Step, e.Hash[:16])
		}
		return nil
	},
}

func init() {
	journalCmd.AddCommand(journalVerifyCmd, journalInspectCmd)
	rootCmd.AddCommand(journalCmd)
}
