// signelectl is the operator CLI for a running Signele server.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

// RootOptions holds the global flags shared by every subcommand.
type RootOptions struct {
	Server string
	Format string // "json" | "text"
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "signelectl",
		Short:         "Inspect and drive a Signele document-signing server",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	server := os.Getenv("SIGNELE_SERVER")
	if server == "" {
		server = "http://localhost:8090"
	}
	cmd.PersistentFlags().StringVar(&opts.Server, "server", server, "base URL of the signele server")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewDocCommand(opts))
	cmd.AddCommand(NewUserCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewSignCommand(opts))
	cmd.AddCommand(NewResyncCommand(opts))
	cmd.AddCommand(NewUploadCommand(opts))

	return cmd
}
