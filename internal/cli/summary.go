package cli

import (
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"labattend/internal/report"
)

// NewSummaryCommand creates the summary command.
func NewSummaryCommand(rootOpts *RootOptions) *cobra.Command {
	var cached bool
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Generate an AI summary of recent attendance",
		Long: `Generate an AI summary of the 50 most recent sessions using the configured
Gemini model. Without GEMINI_API_KEY a fixed notice is printed instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := rootOpts.Runtime()
			if err != nil {
				return err
			}
			out := rootOpts.output(cmd)

			if cached {
				s, err := rt.Cache.Get(cmd.Context())
				if errors.Is(err, report.ErrNoSummary) {
					return NewExitError(ExitFailure, "no summary has been generated yet")
				}
				if err != nil {
					return WrapExitError(ExitCommandError, "read summary", err)
				}
				return out.Emit(s.Text, s)
			}

			records, err := rootOpts.load(cmd)
			if err != nil {
				return err
			}
			out.VerboseLog("summarizing %d records", len(records))
			s := rt.Summarizer.Summarize(cmd.Context(), records)
			if err := rt.Cache.Put(cmd.Context(), s); err != nil {
				rt.Logger.Warn("cache summary failed", zap.Error(err))
			}
			return out.Emit(s.Text, s)
		},
	}
	cmd.Flags().BoolVar(&cached, "cached", false, "print the last stored summary instead of generating one")
	return cmd
}
