package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewRunCmd создаёт группу команд для управления runs.
func NewRunCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Manage runs",
	}

	cmd.AddCommand(
		newRunListCmd(clientFn, outputFn),
		newRunStartCmd(clientFn, outputFn),
		newRunShowCmd(clientFn, outputFn),
		newRunOutputsCmd(clientFn, outputFn),
		newRunWatchCmd(clientFn, outputFn),
	)

	return cmd
}

func newRunListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var workflowID string
	var status string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			runs, err := client.ListRuns(ListRunsOpts{
				WorkflowID: workflowID,
				Status:     status,
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			headers := []string{"ID", "WORKFLOW_ID", "STATUS", "CREATED", "FINISHED"}
			rows := make([][]string, len(runs))
			for i, r := range runs {
				rows[i] = []string{r.ID, r.WorkflowID, r.Status, r.CreatedAt, r.FinishedAt}
			}

			out.Print(headers, rows, runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "Filter by workflow ID")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (PENDING, RUNNING, SUCCEEDED, PARTIAL, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newRunStartCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var workflowID string
	var file string
	var idempotencyKey string
	var watch bool

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a run of a saved workflow or a graph file",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if (workflowID == "") == (file == "") {
				return errors.New("exactly one of --workflow-id or --file is required")
			}

			req := CreateRunRequest{
				WorkflowID:     workflowID,
				IdempotencyKey: idempotencyKey,
			}
			if file != "" {
				graph, err := readGraphJSON(file)
				if err != nil {
					return err
				}
				req.Graph = graph
			}

			run, err := client.CreateRun(req)
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Run started: %s", run.ID))
			if watch {
				return watchRun(client, out, run.ID)
			}

			out.Print(
				[]string{"ID", "WORKFLOW_ID", "STATUS", "CREATED"},
				[][]string{{run.ID, run.WorkflowID, run.Status, run.CreatedAt}},
				run,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&workflowID, "workflow-id", "", "Saved workflow to run")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Graph file to run, JSON or YAML; '-' for stdin")
	cmd.Flags().StringVar(&idempotencyKey, "idempotency-key", "", "Return the existing run for a repeated key")
	cmd.Flags().BoolVar(&watch, "watch", false, "Stream output statuses until the run finishes")

	return cmd
}

func newRunShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show run details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Object([]Field{
				{"ID", run.ID},
				{"Workflow", run.WorkflowID},
				{"Status", run.Status},
				{"Error", run.Error},
				{"Idempotency key", run.IdempotencyKey},
				{"Created", run.CreatedAt},
				{"Started", run.StartedAt},
				{"Finished", run.FinishedAt},
			}, run)
			if !out.jsonMode && len(run.Outputs) > 0 {
				fmt.Fprintln(out.w)
				out.Table(outputHeaders, outputRows(run.Outputs))
			}
			return nil
		},
	}
}

func newRunOutputsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "outputs ID",
		Short: "List output node statuses of a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			run, err := client.GetRun(args[0])
			if err != nil {
				return err
			}

			out.Print(outputHeaders, outputRows(run.Outputs), run.Outputs)
			return nil
		},
	}
}

func newRunWatchCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "watch ID",
		Short: "Stream output statuses until the run finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return watchRun(clientFn(), outputFn(), args[0])
		},
	}
}

// watchRun печатает события стрима построчно. В JSON-режиме каждое событие
// выводится отдельным JSON-документом.
func watchRun(client *Client, out *Output, runID string) error {
	var final string
	err := client.WatchRun(runID, func(ev StreamEvent) {
		switch {
		case out.jsonMode:
			out.JSON(ev)
		case ev.Type == "output.status" && ev.Status != nil:
			line := fmt.Sprintf("%-20s %-8s images=%d", ev.NodeID, ev.Status.Status, len(ev.Status.Images))
			if ev.Status.Error != "" {
				line += " error=" + ev.Status.Error
			}
			fmt.Fprintln(out.w, line)
		}
		if ev.Type == "run.finished" {
			final = ev.RunStatus
		}
	})
	if err != nil {
		return err
	}

	if final != "" {
		out.Success(fmt.Sprintf("Run %s finished: %s", runID, final))
	}
	return nil
}

var outputHeaders = []string{"NODE", "STATUS", "IMAGES", "ERROR", "UPDATED"}

func outputRows(outputs []OutputResponse) [][]string {
	rows := make([][]string, len(outputs))
	for i, o := range outputs {
		rows[i] = []string{o.NodeID, o.Status, strconv.Itoa(len(o.Images)), o.Error, o.UpdatedAt}
	}
	return rows
}
