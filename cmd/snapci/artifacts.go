package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Artifact bundles",
}

var artifactsListCmd = &cobra.Command{
	Use:   "list <run-id>",
	Short: "List the bundles a run produced",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := newBackend(cfg)
		if err != nil {
			return err
		}
		bundles, err := backend.List(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if len(bundles) == 0 {
			fmt.Println("no bundles")
			return nil
		}
		for _, b := range bundles {
			fmt.Printf("%s (%d files)\n", b.Name, len(b.Files))
			for _, f := range b.Files {
				fmt.Printf("  %-40s  %8d  %s\n", f.Name, f.Size, f.SHA256[:16])
			}
		}
		return nil
	},
}

func init() {
	artifactsCmd.AddCommand(artifactsListCmd)
	rootCmd.AddCommand(artifactsCmd)
}
