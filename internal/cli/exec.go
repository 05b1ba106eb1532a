package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/shaiso/Artflow/internal/backend"
	"github.com/shaiso/Artflow/internal/config"
	"github.com/shaiso/Artflow/internal/domain"
	"github.com/shaiso/Artflow/internal/orchestrator"
	"github.com/shaiso/Artflow/internal/telemetry"
)

// ExecOptions настраивает локальное выполнение графа.
type ExecOptions struct {
	File        string
	GeminiKey   string
	OpenAIKey   string
	Parallelism int
	SaveDir     string
	Verbose     bool
}

// NewExecCmd создаёт команду локального выполнения графа без API.
//
// Ключи берутся из флагов, затем из окружения и .env (GEMINI_API_KEY, OPENAI_API_KEY).
func NewExecCmd(outputFn func() *Output) *cobra.Command {
	var opts ExecOptions

	cmd := &cobra.Command{
		Use:   "exec [FILE]",
		Args:  cobra.MaximumNArgs(1),
		Short: "Execute a graph file locally against the image backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			file, err := graphFileArg(opts.File, args)
			if err != nil {
				return err
			}
			opts.File = file

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.GeminiKey == "" {
				opts.GeminiKey = cfg.GeminiAPIKey
			}
			if opts.OpenAIKey == "" {
				opts.OpenAIKey = cfg.OpenAIAPIKey
			}
			if !cmd.Flags().Changed("parallel") {
				opts.Parallelism = cfg.BranchParallelism
			}

			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			if opts.Verbose {
				logger = telemetry.NewLogger(out.errW, "DEBUG", "text")
			}

			dispatcher := backend.New(backend.Config{Logger: logger})
			return runExec(cmd.Context(), opts, dispatcher, out, logger)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "Graph file, JSON or YAML; '-' for stdin")
	cmd.Flags().StringVar(&opts.GeminiKey, "gemini-key", "", "Gemini API key")
	cmd.Flags().StringVar(&opts.OpenAIKey, "openai-key", "", "OpenAI API key")
	cmd.Flags().IntVar(&opts.Parallelism, "parallel", 1, "Number of branches executed concurrently")
	cmd.Flags().StringVar(&opts.SaveDir, "save", "", "Directory to save generated images to")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Log backend calls to stderr")

	return cmd
}

func runExec(ctx context.Context, opts ExecOptions, dispatcher orchestrator.Dispatcher, out *Output, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, err := readGraph(opts.File)
	if err != nil {
		return err
	}

	outputs := g.OutputNodes()
	if len(outputs) == 0 {
		return orchestrator.ErrNoOutputNode
	}

	bar := progressbar.NewOptions(len(outputs),
		progressbar.OptionSetWriter(out.errW),
		progressbar.OptionSetDescription("generating"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	progress := orchestrator.StatusWriterFunc(func(ctx context.Context, nodeID string, status domain.OutputStatus) error {
		if status.Status.IsTerminal() {
			bar.Add(1)
		}
		return nil
	})

	orch := orchestrator.New(orchestrator.Config{
		Dispatcher:  dispatcher,
		Parallelism: opts.Parallelism,
		Logger:      logger,
	})

	creds := domain.Credentials{Gemini: opts.GeminiKey, OpenAI: opts.OpenAIKey}
	report, err := orch.Execute(ctx, *g, creds, progress)
	if err != nil {
		return err
	}
	bar.Finish()

	if opts.SaveDir != "" {
		if err := saveImages(ctx, opts.SaveDir, report, out); err != nil {
			return err
		}
	}

	headers := []string{"NODE", "MODEL", "STATUS", "IMAGES", "ERROR", "DURATION"}
	rows := make([][]string, len(report.Branches))
	for i, b := range report.Branches {
		rows[i] = []string{
			b.OutputNodeID, b.Model, string(b.Status.Status),
			strconv.Itoa(len(b.Status.Images)), b.Status.Error, b.Duration.Round(time.Millisecond).String(),
		}
	}
	out.Print(headers, rows, report)

	status := report.RunStatus()
	if status == domain.RunStatusFailed {
		return fmt.Errorf("all %d branches failed", len(report.Branches))
	}
	out.Success(fmt.Sprintf("Run %s: %d succeeded, %d failed", status, report.Succeeded(), report.Failed()))
	return nil
}

// saveImages записывает изображения успешных веток как <node>_<n>.<ext>.
func saveImages(ctx context.Context, dir string, report *orchestrator.Report, out *Output) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create save dir: %w", err)
	}

	loader := backend.NewImageLoader(nil)
	for _, b := range report.Branches {
		for i, ref := range b.Status.Images {
			img, err := loader.Load(ctx, ref)
			if err != nil {
				out.Error(fmt.Sprintf("%s image %d: %v", b.OutputNodeID, i+1, err))
				continue
			}

			name := fmt.Sprintf("%s_%d.%s", b.OutputNodeID, i+1, imageExt(img.MIMEType))
			path := filepath.Join(dir, name)
			if err := os.WriteFile(path, img.Data, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", path, err)
			}
		}
	}
	return nil
}

func imageExt(mimeType string) string {
	ext := strings.TrimPrefix(mimeType, "image/")
	switch ext {
	case "jpeg":
		return "jpg"
	case "", mimeType:
		return "bin"
	}
	return ext
}
