package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type getResponse struct {
	Value string `json:"value"`
}

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a key's value from this node's local state",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		key := args[0]

		c := newHTTPClient(addr)
		var out getResponse
		if err := c.do("GET", "/v1/kv/"+key, nil, &out); err != nil {
			return err
		}
		fmt.Println(out.Value)
		return nil
	},
}

func init() {
	getCmd.Flags().String("addr", "127.0.0.1:8000", "Node's HTTP address")
}
