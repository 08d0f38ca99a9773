// Command raftkvd is the CLI entry point: serve stands up a node and its
// HTTP+JSON service, the other subcommands are a thin client against a
// running node's HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kvcluster/raftkv/pkg/rlog"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "raftkvd",
	Short: "raftkvd - a Raft-replicated key-value daemon",
	Long: `raftkvd runs a single node of a Raft-replicated key-value store,
or acts as a client against one, depending on the subcommand.`,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(addLearnerCmd)
	rootCmd.AddCommand(changeMembershipCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(metricsCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")

	rlog.Init(rlog.Config{
		Level:      rlog.Level(level),
		JSONOutput: jsonOut,
	})
}
