package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"snapci/internal/store"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Run history",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.DBPath())
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := st.ListRuns(cmd.Context(), runsLimit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			fmt.Printf("%s  %-12s  %-20s  %s\n",
				r.ID, r.Status, r.Workflow, r.CreatedAt.Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var runsStatusCmd = &cobra.Command{
	Use:   "status <run-id>",
	Short: "Show one run and its steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Open(cfg.DBPath())
		if err != nil {
			return err
		}
		defer st.Close()

		run, err := st.GetRun(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if run == nil {
			return fmt.Errorf("run %s not found", args[0])
		}
		fmt.Printf("run %s\nworkflow: %s\nstatus: %s\n", run.ID, run.Workflow, run.Status)
		if run.Error != "" {
			fmt.Printf("error: %s\n", run.Error)
		}

		steps, err := st.ListSteps(cmd.Context(), run.ID)
		if err != nil {
			return err
		}
		for _, s := range steps {
			fmt.Printf("  %2d  %-10s  %-10s  %s\n", s.Idx, s.Phase, s.Status, s.Name)
		}
		return nil
	},
}

func init() {
	runsListCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to list")
	runsCmd.AddCommand(runsListCmd, runsStatusCmd)
	rootCmd.AddCommand(runsCmd)
}
