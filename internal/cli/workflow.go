package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/Artflow/internal/domain"
)

// NewWorkflowCmd создаёт группу команд для управления workflows.
func NewWorkflowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "workflow",
		Aliases: []string{"wf"},
		Short:   "Manage saved workflows",
	}

	cmd.AddCommand(
		newWorkflowListCmd(clientFn, outputFn),
		newWorkflowCreateCmd(clientFn, outputFn),
		newWorkflowShowCmd(clientFn, outputFn),
		newWorkflowUpdateCmd(clientFn, outputFn),
		newWorkflowDeleteCmd(clientFn, outputFn),
	)

	return cmd
}

func newWorkflowListCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			workflows, err := client.ListWorkflows(limit)
			if err != nil {
				return err
			}

			headers := []string{"ID", "NAME", "NODES", "OUTPUTS", "UPDATED"}
			rows := make([][]string, len(workflows))
			for i, wf := range workflows {
				nodes, outputs := graphStats(wf.Graph)
				rows[i] = []string{wf.ID, wf.Name, nodes, outputs, wf.UpdatedAt}
			}

			out.Print(headers, rows, workflows)
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of results")

	return cmd
}

func newWorkflowCreateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var description string
	var file string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Save a graph as a workflow",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			graph, err := readGraphJSON(file)
			if err != nil {
				return err
			}

			wf, err := client.CreateWorkflow(CreateWorkflowRequest{
				Name:        name,
				Description: description,
				Graph:       graph,
			})
			if err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow created: %s", wf.ID))
			printWorkflow(out, wf)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Workflow name (required)")
	cmd.Flags().StringVar(&description, "description", "", "Workflow description")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Graph file, JSON or YAML; '-' for stdin (required)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("file")

	return cmd
}

func newWorkflowShowCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show workflow details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			wf, err := client.GetWorkflow(args[0])
			if err != nil {
				return err
			}

			printWorkflow(out, wf)
			return nil
		},
	}
}

func newWorkflowUpdateCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var name string
	var description string
	var file string

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			req := UpdateWorkflowRequest{}
			if cmd.Flags().Changed("name") {
				req.Name = &name
			}
			if cmd.Flags().Changed("description") {
				req.Description = &description
			}
			if file != "" {
				graph, err := readGraphJSON(file)
				if err != nil {
					return err
				}
				req.Graph = graph
			}

			wf, err := client.UpdateWorkflow(args[0], req)
			if err != nil {
				return err
			}

			out.Success("Workflow updated")
			printWorkflow(out, wf)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "New workflow name")
	cmd.Flags().StringVar(&description, "description", "", "New description")
	cmd.Flags().StringVarP(&file, "file", "f", "", "New graph file, JSON or YAML")

	return cmd
}

func newWorkflowDeleteCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a workflow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			if err := client.DeleteWorkflow(args[0]); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Workflow deleted: %s", args[0]))
			return nil
		},
	}
}

func printWorkflow(out *Output, wf *WorkflowResponse) {
	nodes, outputs := graphStats(wf.Graph)
	out.Object([]Field{
		{"ID", wf.ID},
		{"Name", wf.Name},
		{"Description", wf.Description},
		{"Nodes", nodes},
		{"Outputs", outputs},
		{"Created", wf.CreatedAt},
		{"Updated", wf.UpdatedAt},
	}, wf)
}

// graphStats возвращает число узлов и Output-узлов графа для таблиц.
func graphStats(raw json.RawMessage) (string, string) {
	var g domain.Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return "?", "?"
	}
	return strconv.Itoa(len(g.Nodes)), strconv.Itoa(len(g.OutputNodes()))
}
