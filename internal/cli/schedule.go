package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewScheduleCmd создаёт группу команд для управления schedules.
func NewScheduleCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage schedules of saved workflows",
	}

	cmd.AddCommand(
		newScheduleListCmd(clientFn, outputFn),
		newScheduleCreateCmd(clientFn, outputFn),
		newScheduleShowCmd(clientFn, outputFn),
		newScheduleUpdateCmd(clientFn, outputFn),
		newScheduleDeleteCmd(clientFn, outputFn),
		newScheduleToggleCmd(clientFn, outputFn, true),
		newScheduleToggleCmd(clientFn, outputFn, false),
	)

	return cmd
}

// scheduleFlags это общие флаги триггера для create и update.
type scheduleFlags struct {
	name        string
	cronExpr    string
	intervalSec int
	timezone    string
}

func (f *scheduleFlags) register(cmd *cobra.Command, verb string) {
	cmd.Flags().StringVar(&f.name, "name", "", verb+" schedule name")
	cmd.Flags().StringVar(&f.cronExpr, "cron", "", verb+" cron expression, e.g. '0 9 * * *'")
	cmd.Flags().IntVar(&f.intervalSec, "interval", 0, verb+" interval in seconds")
	cmd.Flags().StringVar(&f.timezone, "timezone", "", verb+" IANA timezone for cron, e.g. 'Europe/Moscow'")
}

func newScheduleListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var workflowID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			schedules, err := clientFn().ListSchedules(workflowID)
			if err != nil {
				return err
			}

			headers := []string{"ID", "WORKFLOW_ID", "NAME", "TRIGGER", "ENABLED", "NEXT_DUE"}
			rows := make([][]string, len(schedules))
			for i := range schedules {
				s := &schedules[i]
				rows[i] = []string{s.ID, s.WorkflowID, s.Name, trigger(s), strconv.FormatBool(s.Enabled), s.NextDueAt}
			}

			outputFn().Print(headers, rows, schedules)
			return nil
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "Filter by workflow ID")

	return cmd
}

func newScheduleCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flags scheduleFlags
	var disabled bool

	cmd := &cobra.Command{
		Use:   "create WORKFLOW_ID",
		Short: "Schedule repeated runs of a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			schedule, err := clientFn().CreateSchedule(args[0], CreateScheduleRequest{
				Name:        flags.name,
				CronExpr:    flags.cronExpr,
				IntervalSec: flags.intervalSec,
				Timezone:    flags.timezone,
				Enabled:     !disabled,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Schedule created: %s", schedule.ID))
			printSchedule(out, schedule)
			return nil
		},
	}

	flags.register(cmd, "The")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the schedule disabled")
	cmd.MarkFlagRequired("name")

	return cmd
}

func newScheduleShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show schedule details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			schedule, err := clientFn().GetSchedule(args[0])
			if err != nil {
				return err
			}

			printSchedule(outputFn(), schedule)
			return nil
		},
	}
}

func newScheduleUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var flags scheduleFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			// отправляем только явно заданные флаги
			req := UpdateScheduleRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &flags.name
			}
			if cmd.Flags().Changed("cron") {
				req.CronExpr = &flags.cronExpr
			}
			if cmd.Flags().Changed("interval") {
				req.IntervalSec = &flags.intervalSec
			}
			if cmd.Flags().Changed("timezone") {
				req.Timezone = &flags.timezone
			}

			schedule, err := clientFn().UpdateSchedule(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Schedule updated")
			printSchedule(out, schedule)
			return nil
		},
	}

	flags.register(cmd, "New")

	return cmd
}

func newScheduleDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := clientFn().DeleteSchedule(args[0]); err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Schedule deleted: %s", args[0]))
			return nil
		},
	}
}

// newScheduleToggleCmd создаёт enable или disable.
func newScheduleToggleCmd(clientFn func() *Client, outputFn func() *Output, enable bool) *cobra.Command {
	verb, short := "disable", "Pause a schedule"
	if enable {
		verb, short = "enable", "Resume a schedule"
	}

	return &cobra.Command{
		Use:   verb + " ID",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := clientFn().SetScheduleEnabled(args[0], enable); err != nil {
				return err
			}

			outputFn().Success(fmt.Sprintf("Schedule %sd: %s", verb, args[0]))
			return nil
		},
	}
}

func printSchedule(out *Output, s *ScheduleResponse) {
	out.Object([]Field{
		{"ID", s.ID},
		{"Workflow", s.WorkflowID},
		{"Name", s.Name},
		{"Trigger", trigger(s)},
		{"Timezone", s.Timezone},
		{"Enabled", strconv.FormatBool(s.Enabled)},
		{"Next due", s.NextDueAt},
		{"Last run", s.LastRunAt},
		{"Last run ID", s.LastRunID},
	}, s)
}

// trigger возвращает cron-выражение или интервал schedule.
func trigger(s *ScheduleResponse) string {
	if s.CronExpr != "" {
		return s.CronExpr
	}
	if s.IntervalSec > 0 {
		return "every " + strconv.Itoa(s.IntervalSec) + "s"
	}
	return ""
}
