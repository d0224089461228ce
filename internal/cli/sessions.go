package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"labattend/internal/attendance"
)

type sessionOptions struct {
	*RootOptions
	Name   string
	System string
	Date   string
	Time   string
}

// NewCheckInCommand creates the checkin command.
func NewCheckInCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &sessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "checkin",
		Short: "Start a session for a student on a system",
		Example: `  labctl checkin --name Alice --system 5
  labctl checkin --name Alice --system 5 --date 2024-03-04 --time 09:00`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.Runtime()
			if err != nil {
				return err
			}
			rec, err := rt.Engine.CheckIn(cmd.Context(), attendance.CheckInRequest{
				StudentName:  opts.Name,
				SystemNumber: opts.System,
				Date:         opts.Date,
				CheckInTime:  opts.Time,
			})
			if err != nil {
				return ruleError(err)
			}
			rt.publish(cmd.Context(), "checkin", rec.ID)
			return opts.output(cmd).Emit(
				fmt.Sprintf("%s checked in successfully at %s", rec.StudentName, rec.CheckInTime), rec)
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "student name")
	cmd.Flags().StringVarP(&opts.System, "system", "s", "", "system number")
	cmd.Flags().StringVar(&opts.Date, "date", "", "session date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&opts.Time, "time", "", "check-in time HH:mm (default now)")

	return cmd
}

// NewCheckOutCommand creates the checkout command.
func NewCheckOutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &sessionOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "checkout",
		Short:   "Close a student's active session on a system",
		Example: `  labctl checkout --name Alice --system 5 --time 10:30`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := opts.Runtime()
			if err != nil {
				return err
			}
			rec, err := rt.Engine.CheckOut(cmd.Context(), attendance.CheckOutRequest{
				StudentName:  opts.Name,
				SystemNumber: opts.System,
				CheckOutTime: opts.Time,
			})
			if err != nil {
				return ruleError(err)
			}
			rt.publish(cmd.Context(), "checkout", rec.ID)
			return opts.output(cmd).Emit(
				fmt.Sprintf("%s checked out. Duration: %s", rec.StudentName, attendance.FormatDuration(*rec.DurationMinutes)), rec)
		},
	}

	cmd.Flags().StringVarP(&opts.Name, "name", "n", "", "student name")
	cmd.Flags().StringVarP(&opts.System, "system", "s", "", "system number")
	cmd.Flags().StringVar(&opts.Time, "time", "", "check-out time HH:mm (default now)")

	return cmd
}
