package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var dispatchServer string

var dispatchCmd = &cobra.Command{
	Use:   "dispatch <workflow-name>",
	Short: "Trigger a workflow on a running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := fmt.Sprintf("%s/workflows/%s/dispatches", dispatchServer, args[0])
		resp, err := http.Post(url, "application/json", nil)
		if err != nil {
			return errors.Wrap(err, "dispatch request")
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusAccepted {
			return errors.Errorf("server returned %s", resp.Status)
		}
		var body struct {
			RunID  string `json:"runId"`
			Status string `json:"status"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return errors.Wrap(err, "decode response")
		}
		fmt.Printf("run %s %s\n", body.RunID, body.Status)
		return nil
	},
}

func init() {
	dispatchCmd.Flags().StringVar(&dispatchServer, "server", "http://localhost:8080", "server base URL")
	rootCmd.AddCommand(dispatchCmd)
}
