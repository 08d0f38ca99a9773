package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Bootstrap a new cluster against a running node",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		peers, _ := cmd.Flags().GetStringToString("peer")

		c := newHTTPClient(addr)
		if err := c.do("POST", "/v1/cluster/init", map[string]interface{}{"peers": peers}, nil); err != nil {
			return err
		}
		fmt.Println("cluster initialized")
		return nil
	},
}

func init() {
	initCmd.Flags().String("addr", "127.0.0.1:8000", "Node's HTTP address")
	initCmd.Flags().StringToString("peer", nil, "Initial voter id=addr, repeatable (omit for single-node bootstrap)")
}
