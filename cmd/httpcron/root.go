package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "./httpcron.yaml"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "httpcron",
		Short:         "Periodically hit HTTP endpoints on fixed schedules",
		Long:          "httpcron loads a list of cron jobs (URL + \"every N hours|minutes|seconds\") and issues a GET to each URL on its period.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCmd(), newCheckCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "httpcron "+version)
		},
	}
}
