package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/shaiso/Artflow/internal/backend"
	"github.com/shaiso/Artflow/internal/engine"
	"github.com/shaiso/Artflow/internal/orchestrator"
)

// BranchPlan описывает, что будет сгенерировано для Output-узла.
type BranchPlan struct {
	OutputNodeID string   `json:"output_node_id"`
	Model        string   `json:"model,omitempty"`
	Family       string   `json:"family,omitempty"`
	N            int      `json:"n,omitempty"`
	Images       int      `json:"images"`
	Prompt       string   `json:"prompt,omitempty"`
	Variables    []string `json:"variables,omitempty"`
	Error        string   `json:"error,omitempty"`
}

// NewValidateCmd создаёт команду проверки графа без вызова бэкендов.
func NewValidateCmd(outputFn func() *Output) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "validate [FILE]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Validate a graph file and show the prompt of every output branch",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			path, err := graphFileArg(file, args)
			if err != nil {
				return err
			}

			plans, err := planGraph(path, backend.DefaultRegistry())
			if err != nil {
				return err
			}

			headers := []string{"NODE", "MODEL", "FAMILY", "N", "IMAGES", "PROMPT", "ERROR"}
			rows := make([][]string, len(plans))
			failed := 0
			for i, p := range plans {
				rows[i] = []string{
					p.OutputNodeID, p.Model, p.Family, strconv.Itoa(p.N),
					strconv.Itoa(p.Images), p.Prompt, p.Error,
				}
				if p.Error != "" {
					failed++
				}
			}
			out.Print(headers, rows, plans)

			if failed > 0 {
				return fmt.Errorf("%d of %d branches would fail", failed, len(plans))
			}
			out.Success("Graph is valid")
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Graph file, JSON or YAML; '-' for stdin")

	return cmd
}

// planGraph проходит каждую ветку так же, как оркестратор, но без генерации.
func planGraph(file string, registry *backend.Registry) ([]BranchPlan, error) {
	g, err := readGraph(file)
	if err != nil {
		return nil, err
	}

	outputs := g.OutputNodes()
	if len(outputs) == 0 {
		return nil, orchestrator.ErrNoOutputNode
	}

	plans := make([]BranchPlan, len(outputs))
	for i, node := range outputs {
		plan := BranchPlan{OutputNodeID: node.ID}

		branch, err := engine.Trace(*g, node.ID)
		if err != nil {
			plan.Error = err.Error()
			plans[i] = plan
			continue
		}

		plan.Model = branch.Model.ModelName()
		plan.N = orchestrator.ClampCount(branch.Model.N)
		plan.Images = len(branch.Images)
		plan.Variables = engine.Placeholders(branch.Template)

		if desc, err := registry.Resolve(plan.Model); err != nil {
			plan.Error = err.Error()
		} else {
			plan.Family = desc.Family.Label()
		}

		prompt, err := engine.Resolve(branch.Template, branch.Values)
		var missing *engine.MissingVariablesError
		if errors.As(err, &missing) {
			prompt = missing.Partial
		}
		if err != nil && plan.Error == "" {
			plan.Error = err.Error()
		}
		plan.Prompt = prompt
		plans[i] = plan
	}
	return plans, nil
}
