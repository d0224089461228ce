package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"

	open    Opener
	runtime *Runtime
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the labctl root command. open builds the store-backed
// runtime on first use so that --help and flag errors never touch storage.
func NewRootCommand(open Opener) *cobra.Command {
	cmd, _ := newRoot(open)
	return cmd
}

// Execute runs labctl with args, reports any error on stderr and returns the exit code.
func Execute(open Opener, args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRoot(open)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if opts.runtime != nil && opts.runtime.Close != nil {
		if cerr := opts.runtime.Close(); cerr != nil && err == nil {
			err = WrapExitError(ExitCommandError, "close store", cerr)
		}
	}
	if err != nil {
		fmt.Fprintln(stderr, "Error:", err)
	}
	return GetExitCode(err)
}

func newRoot(open Opener) (*cobra.Command, *RootOptions) {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:           "labctl",
		Short:         "Lab seat attendance from the command line",
		Long:          "Check students in and out of lab systems, browse sessions and export reports against the configured store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")

	cmd.AddCommand(NewCheckInCommand(opts))
	cmd.AddCommand(NewCheckOutCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewExportCommand(opts))
	cmd.AddCommand(NewSummaryCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))

	return cmd, opts
}

// Runtime returns the shared runtime, opening it on first call.
func (o *RootOptions) Runtime() (*Runtime, error) {
	if o.runtime != nil {
		return o.runtime, nil
	}
	if o.open == nil {
		return nil, NewExitError(ExitCommandError, "no store configured")
	}
	rt, err := o.open(o)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	o.runtime = rt
	return rt, nil
}

func (o *RootOptions) output(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
