// Package cmd wires the cpscan command line front end, the CLI
// collaborator SPEC_FULL.md names alongside the classpath discovery
// front end as out-of-scope for the core scan engine's semantics.
package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cpscan/cpscan/cmd/cpscan/cmd/scan"
	"github.com/cpscan/cpscan/internal/log"
)

// RootCmd is the cpscan base command.
var RootCmd = &cobra.Command{
	Use:   "cpscan [sub-command]",
	Short: "cpscan discovers and links the classpath's type information graph",
	Long: `cpscan walks a set of classpath entries -- directories, archive files,
nested archives, and module descriptors -- parses every classfile found
within them, and builds a linked graph of type-information records
suitable for query by downstream tools.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
	DisableAutoGenTag: true,
}

func init() {
	log.RegisterFlags(RootCmd.PersistentFlags())
	RootCmd.AddCommand(scan.New())
}

// Execute runs RootCmd. Called once by main.main.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
