package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "huddle-cli: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	server   string
	identity string
	verbose  bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "huddle-cli",
		Short:         "Terminal client for huddle-server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.server, "server", "http://localhost:8080", "server base URL")
	cmd.PersistentFlags().StringVarP(&flags.identity, "user", "u", "cli-user", "display name")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "log client internals to stderr")

	cmd.AddCommand(newChatCmd(flags), newSmokeCmd(flags))
	return cmd
}
