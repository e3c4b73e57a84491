// Package main is the entry point for the msg-store server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	serviceName    = "msg-store"
	serviceVersion = "1.0.0"
)

var (
	flagConfig string
	flagPort   int
)

func main() {
	root := &cobra.Command{
		Use:     serviceName,
		Short:   "Bounded-capacity priority message buffer",
		Long:    "A store-and-forward message buffer that ranks messages by priority and\nevicts lowest-priority-then-oldest material when a byte budget fills up.",
		Version: serviceVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context())
		},
		SilenceUsage: true,
	}
	root.Flags().StringVarP(&flagConfig, "config", "c", "", "config file (default $HOME/.msg-store/config.json)")
	root.Flags().IntVarP(&flagPort, "port", "p", 0, "override the configured listen port")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
