package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Artflow/internal/backend"
	"github.com/shaiso/Artflow/internal/domain"
	"github.com/shaiso/Artflow/internal/engine"
	"github.com/shaiso/Artflow/internal/telemetry"
)

// Границы количества изображений на ветку.
const (
	MinImages = 1
	MaxImages = 4
)

// Dispatcher выполняет генерацию. Реализуется *backend.Dispatcher.
type Dispatcher interface {
	Dispatch(ctx context.Context, req backend.Request, creds domain.Credentials) ([]string, error)
}

// StatusWriter получает статусы Output-узлов.
//
// Для каждого узла вызывается один раз с loading и ровно один раз с
// финальным статусом. При Parallelism > 1 вызовы идут из разных горутин,
// но для разных nodeID.
type StatusWriter interface {
	WriteStatus(ctx context.Context, nodeID string, status domain.OutputStatus) error
}

// StatusWriterFunc адаптирует функцию к StatusWriter.
type StatusWriterFunc func(ctx context.Context, nodeID string, status domain.OutputStatus) error

// WriteStatus вызывает f.
func (f StatusWriterFunc) WriteStatus(ctx context.Context, nodeID string, status domain.OutputStatus) error {
	return f(ctx, nodeID, status)
}

// Config содержит настройки Orchestrator.
type Config struct {
	Dispatcher Dispatcher

	// Parallelism ограничивает число одновременно выполняемых веток (default: 1).
	Parallelism int

	Logger *slog.Logger
}

// Orchestrator выполняет все ветки графа.
type Orchestrator struct {
	dispatcher  Dispatcher
	parallelism int
	logger      *slog.Logger
}

// New создаёт Orchestrator.
func New(cfg Config) *Orchestrator {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Orchestrator{
		dispatcher:  cfg.Dispatcher,
		parallelism: cfg.Parallelism,
		logger:      cfg.Logger,
	}
}

// Execute выполняет ветку для каждого Output-узла графа.
//
// Возвращает ошибку только если веток нет (ErrNoOutputNode) или не задан
// Dispatcher. Ошибки веток записываются в их статусы и в Report.
func (o *Orchestrator) Execute(ctx context.Context, g domain.Graph, creds domain.Credentials, w StatusWriter) (*Report, error) {
	if o.dispatcher == nil {
		return nil, ErrNoDispatcher
	}

	outputs := g.OutputNodes()
	if len(outputs) == 0 {
		return nil, ErrNoOutputNode
	}

	logger := telemetry.FromContext(ctx, o.logger)
	logger.InfoContext(ctx, "executing graph", "branches", len(outputs), "parallelism", o.parallelism)

	report := &Report{Branches: make([]BranchResult, len(outputs))}

	eg := new(errgroup.Group)
	eg.SetLimit(o.parallelism)
	for i, out := range outputs {
		eg.Go(func() error {
			report.Branches[i] = o.runBranch(ctx, g, out.ID, creds, w, logger)
			return nil
		})
	}
	_ = eg.Wait()

	logger.InfoContext(ctx, "graph executed",
		"succeeded", report.Succeeded(),
		"failed", report.Failed(),
	)
	return report, nil
}

func (o *Orchestrator) runBranch(ctx context.Context, g domain.Graph, nodeID string, creds domain.Credentials, w StatusWriter, logger *slog.Logger) BranchResult {
	logger = telemetry.WithNodeID(logger, nodeID)
	started := time.Now()
	res := BranchResult{OutputNodeID: nodeID}

	o.write(ctx, w, nodeID, domain.LoadingStatus(), logger)

	images, err := o.generate(ctx, g, nodeID, creds, &res)
	if err != nil {
		res.Err = err
		res.Status = domain.ErrorStatus(err.Error())
		logger.WarnContext(ctx, "branch failed", "error", err)
	} else {
		res.Status = domain.SuccessStatus(images)
		logger.InfoContext(ctx, "branch succeeded", "images", len(images))
	}
	res.Duration = time.Since(started)

	o.write(ctx, w, nodeID, res.Status, logger)
	telemetry.ObserveBranch(string(res.Status.Status))
	return res
}

func (o *Orchestrator) generate(ctx context.Context, g domain.Graph, nodeID string, creds domain.Credentials, res *BranchResult) ([]string, error) {
	branch, err := engine.Trace(g, nodeID)
	if err != nil {
		return nil, err
	}
	res.Model = branch.Model.ModelName()

	prompt, err := engine.Resolve(branch.Template, branch.Values)
	if err != nil {
		return nil, err
	}
	res.Prompt = prompt

	return o.dispatcher.Dispatch(ctx, backend.Request{
		Model:  res.Model,
		Prompt: prompt,
		Images: branch.Images,
		N:      ClampCount(branch.Model.N),
	}, creds)
}

func (o *Orchestrator) write(ctx context.Context, w StatusWriter, nodeID string, status domain.OutputStatus, logger *slog.Logger) {
	if w == nil {
		return
	}
	if err := w.WriteStatus(ctx, nodeID, status); err != nil {
		logger.ErrorContext(ctx, "failed to write output status", "status", status.Status, "error", err)
	}
}

// ClampCount приводит запрошенное количество изображений к [MinImages, MaxImages].
func ClampCount(n int) int {
	return max(MinImages, min(n, MaxImages))
}
