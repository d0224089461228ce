package cli

import (
	"bytes"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"labattend/internal/attendance"
	"labattend/internal/export"
)

type listOptions struct {
	*RootOptions
	Search string
	Status string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &listOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := opts.filtered(cmd)
			if err != nil {
				return err
			}
			return opts.output(cmd).Emit(renderTable(records), records)
		},
	}

	cmd.Flags().StringVar(&opts.Search, "search", "", "match student name or system number")
	cmd.Flags().StringVar(&opts.Status, "status", "All", "All|Active|Completed")

	return cmd
}

func (o *listOptions) filtered(cmd *cobra.Command) ([]attendance.Record, error) {
	status, err := attendance.ParseStatusFilter(o.Status)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid --status", err)
	}
	records, err := o.load(cmd)
	if err != nil {
		return nil, err
	}
	return attendance.Filter(records, attendance.Query{Search: o.Search, Status: status}), nil
}

// load reads the record set. An unreadable store is reported on stderr and
// treated as empty, like the dashboard does.
func (o *RootOptions) load(cmd *cobra.Command) ([]attendance.Record, error) {
	rt, err := o.Runtime()
	if err != nil {
		return nil, err
	}
	records, err := rt.Records.Load(cmd.Context())
	if err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: stored attendance data could not be read:", err)
	}
	return records, nil
}

func renderTable(records []attendance.Record) string {
	if len(records) == 0 {
		return "No records found."
	}
	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tSTUDENT\tSYSTEM\tIN\tOUT\tDURATION\tSTATUS")
	for _, r := range records {
		row := export.Row(r)
		duration := "-"
		if r.DurationMinutes != nil {
			duration = attendance.FormatDuration(*r.DurationMinutes)
		}
		out := row[4]
		if out == "" {
			out = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.ID, row[0], row[1], row[2], row[3], out, duration, row[6])
	}
	w.Flush()
	return string(bytes.TrimRight(buf.Bytes(), "\n"))
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show dashboard statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := rootOpts.load(cmd)
			if err != nil {
				return err
			}
			s := attendance.ComputeStats(records)
			text := fmt.Sprintf("Total sessions:   %d\nActive now:       %d\nAverage duration: %d mins\nUnique students:  %d",
				s.TotalSessions, s.ActiveNow, s.AvgDurationMinutes, s.UniqueStudents)
			return rootOpts.output(cmd).Emit(text, s)
		},
	}
}

type exportOptions struct {
	listOptions
	Output string
	PDF    bool
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &exportOptions{listOptions: listOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the filtered sessions to a CSV or PDF file",
		Example: `  labctl export
  labctl export --status Completed --output -
  labctl export --pdf --output report.pdf`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := opts.filtered(cmd)
			if err != nil {
				return err
			}
			rt, err := opts.Runtime()
			if err != nil {
				return err
			}

			ext := "csv"
			var data []byte
			if opts.PDF {
				ext = "pdf"
				data, err = export.ToPDF(records, "Lab attendance report")
			} else {
				data, err = export.ToCSV(records)
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "render export", err)
			}

			path := opts.Output
			if path == "-" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			if path == "" {
				path = export.Filename(rt.Now(), ext)
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return WrapExitError(ExitCommandError, "write export", err)
			}
			out := opts.output(cmd)
			out.VerboseLog("wrote %d bytes", len(data))
			return out.Emit(fmt.Sprintf("Exported %d records to %s", len(records), path),
				map[string]any{"path": path, "records": len(records)})
		},
	}

	cmd.Flags().StringVar(&opts.Search, "search", "", "match student name or system number")
	cmd.Flags().StringVar(&opts.Status, "status", "All", "All|Active|Completed")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file, - for stdout (default attendance_report_<date>.<ext>)")
	cmd.Flags().BoolVar(&opts.PDF, "pdf", false, "write a PDF instead of CSV")

	return cmd
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Remove one session record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := rootOpts.Runtime()
			if err != nil {
				return err
			}
			records, err := rt.Records.Load(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "storage", err)
			}
			found := false
			for _, r := range records {
				if r.ID == args[0] {
					found = true
					break
				}
			}
			if !found {
				return NewExitError(ExitFailure, "no record with id "+args[0])
			}
			if err := rt.Records.Remove(cmd.Context(), args[0]); err != nil {
				return WrapExitError(ExitCommandError, "storage", err)
			}
			rt.publish(cmd.Context(), "delete", args[0])
			return rootOpts.output(cmd).Emit("Deleted "+args[0], map[string]string{"deleted": args[0]})
		},
	}
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every session record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return NewExitError(ExitCommandError, "refusing to clear all records without --yes")
			}
			rt, err := rootOpts.Runtime()
			if err != nil {
				return err
			}
			if err := rt.Records.Clear(cmd.Context()); err != nil {
				return WrapExitError(ExitCommandError, "storage", err)
			}
			rt.publish(cmd.Context(), "clear", "")
			return rootOpts.output(cmd).Emit("All records cleared.", map[string]bool{"cleared": true})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all records")
	return cmd
}
