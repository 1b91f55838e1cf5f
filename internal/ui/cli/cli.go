// Package cli wires configuration, the analysis app and the reporters into
// the importcheck command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

const (
	exitOK     = 0
	exitFatal  = 1
	exitIssues = 2
)

// exitCodeError carries a non-fatal exit status out of a command.
type exitCodeError struct {
	code int
}

func (e exitCodeError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

type globalOptions struct {
	configPath string
	verbose    bool
}

// Run executes the CLI and returns the process exit code.
func Run(args []string) int {
	return run(args, os.Stdout, os.Stderr)
}

func run(args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err == nil {
		return exitOK
	}
	var exitErr exitCodeError
	if errors.As(err, &exitErr) {
		return exitErr.code
	}
	fmt.Fprintf(stderr, "Error: %v\n", err)
	return exitFatal
}

func NewRootCommand() *cobra.Command {
	var global globalOptions

	rootCmd := &cobra.Command{
		Use:   "importcheck",
		Short: "Check that every import in a Python project resolves",
		Long: `importcheck indexes the names each Python file defines, then verifies
every import against the project itself and the installed environment.

Commands:
  check     Analyse a project once and print a report
  watch     Re-analyse on every change
  history   List recorded runs`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&global.configPath, "config", "",
		"path to config file (default ./importcheck.toml when present)")
	rootCmd.PersistentFlags().BoolVarP(&global.verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(newCheckCommand(&global))
	rootCmd.AddCommand(newWatchCommand(&global))
	rootCmd.AddCommand(newHistoryCommand(&global))
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}
