package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewOptimizeCmd создаёт команду улучшения шаблона промпта через API.
func NewOptimizeCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	var template string
	var promptContext string
	var file string
	var promptNodeID string
	var openAIKey string

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Rewrite a prompt template with the prompt optimizer",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn().WithOpenAIKey(openAIKey)
			out := outputFn()

			req := OptimizeRequest{
				Template: template,
				Context:  promptContext,
			}
			if file != "" {
				if promptNodeID == "" {
					return errors.New("--prompt-node is required with --file")
				}
				graph, err := readGraphJSON(file)
				if err != nil {
					return err
				}
				req.Graph = graph
				req.PromptNodeID = promptNodeID
			}
			if req.Template == "" && req.Graph == nil {
				return errors.New("either --template or --file with --prompt-node is required")
			}

			optimized, err := client.Optimize(req)
			if err != nil {
				return err
			}

			if out.jsonMode {
				out.JSON(map[string]string{"template": optimized})
				return nil
			}
			fmt.Fprintln(out.w, optimized)
			return nil
		},
	}

	cmd.Flags().StringVar(&template, "template", "", "Prompt template to optimize")
	cmd.Flags().StringVar(&promptContext, "context", "", "Description of the available variables")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Graph file to take the template and context from")
	cmd.Flags().StringVar(&promptNodeID, "prompt-node", "", "Prompt node ID inside --file")
	cmd.Flags().StringVar(&openAIKey, "openai-key", "", "Own OpenAI key instead of the server one")

	return cmd
}

// NewModelsCmd создаёт команду списка поддерживаемых моделей.
func NewModelsCmd(clientFn func() *Client, outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List supported image models",
		RunE: func(cmd *cobra.Command, args []string) error {
			client := clientFn()
			out := outputFn()

			models, err := client.ListModels()
			if err != nil {
				return err
			}

			headers := []string{"MODEL", "FAMILY", "PER_CALL", "FIXED", "IMAGE_INPUT"}
			rows := make([][]string, len(models))
			for i, m := range models {
				rows[i] = []string{
					m.Model, m.Family, strconv.Itoa(m.PerCallLimit),
					strconv.FormatBool(m.FixedPerCall), m.ImageInput,
				}
			}

			out.Print(headers, rows, models)
			return nil
		},
	}
}
