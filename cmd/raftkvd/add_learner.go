package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var addLearnerCmd = &cobra.Command{
	Use:   "add-learner ID ADDRESS",
	Short: "Add a non-voting learner to the cluster",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		id, learnerAddr := args[0], args[1]

		c := newHTTPClient(addr)
		body := map[string]string{"id": id, "address": learnerAddr}
		if err := c.do("POST", "/v1/cluster/learners", body, nil); err != nil {
			return err
		}
		fmt.Printf("learner %s@%s added\n", id, learnerAddr)
		return nil
	},
}

func init() {
	addLearnerCmd.Flags().String("addr", "127.0.0.1:8000", "Cluster leader's HTTP address")
}
