package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

type setResponse struct {
	Value string `json:"value"`
}

var setCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a key's value",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		key, value := args[0], args[1]

		c := newHTTPClient(addr)
		var out setResponse
		if err := c.do("POST", "/v1/kv/"+key, map[string]string{"value": value}, &out); err != nil {
			return err
		}
		fmt.Println(out.Value)
		return nil
	},
}

func init() {
	setCmd.Flags().String("addr", "127.0.0.1:8000", "Cluster leader's HTTP address")
}
