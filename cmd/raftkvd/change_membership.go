package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var changeMembershipCmd = &cobra.Command{
	Use:   "change-membership",
	Short: "Propose a new voter set for the cluster",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		members, _ := cmd.Flags().GetStringToString("member")
		retain, _ := cmd.Flags().GetBool("retain")

		c := newHTTPClient(addr)
		body := map[string]interface{}{"members": members, "retain": retain}
		if err := c.do("POST", "/v1/cluster/membership", body, nil); err != nil {
			return err
		}
		fmt.Println("membership change applied")
		return nil
	},
}

func init() {
	changeMembershipCmd.Flags().String("addr", "127.0.0.1:8000", "Cluster leader's HTTP address")
	changeMembershipCmd.Flags().StringToString("member", nil, "Desired voter id=addr, repeatable")
	changeMembershipCmd.Flags().Bool("retain", true, "Demote dropped voters to learners instead of removing them")
}
