// Package commands wires the CLI surface: serving the HTTP API and the
// administrative rebuild and reset operations.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "resortledgerd",
		Short: "Multi-currency accounting engine for resort operations",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(newServeCommand())
	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newRebuildCommand())
	rootCmd.AddCommand(newResetCommand())

	return rootCmd
}
