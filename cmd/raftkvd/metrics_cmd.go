package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Print a node's Raft/KV metrics as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")

		c := newHTTPClient(addr)
		var out map[string]interface{}
		if err := c.do("GET", "/v1/cluster/metrics", nil, &out); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	metricsCmd.Flags().String("addr", "127.0.0.1:8000", "Node's HTTP address")
}
