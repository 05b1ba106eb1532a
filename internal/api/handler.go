package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shaiso/Artflow/internal/backend"
	"github.com/shaiso/Artflow/internal/domain"
	"github.com/shaiso/Artflow/internal/optimizer"
	"github.com/shaiso/Artflow/internal/repo"
	"github.com/shaiso/Artflow/internal/storage"
)

// WorkflowStore реализуется *repo.WorkflowRepo.
type WorkflowStore interface {
	Create(ctx context.Context, wf *domain.Workflow) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Workflow, error)
	List(ctx context.Context, page repo.Page) ([]domain.Workflow, error)
	Update(ctx context.Context, wf *domain.Workflow) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// RunStore реализуется *repo.RunRepo.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
}

// OutputStore реализуется *repo.OutputRepo.
type OutputStore interface {
	ListByRun(ctx context.Context, runID uuid.UUID) ([]domain.RunOutput, error)
}

// ScheduleStore реализуется *repo.ScheduleRepo.
type ScheduleStore interface {
	Create(ctx context.Context, s *domain.Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
	List(ctx context.Context, filter repo.ScheduleFilter) ([]domain.Schedule, error)
	Update(ctx context.Context, s *domain.Schedule) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

// RunPublisher реализуется *mq.Publisher.
type RunPublisher interface {
	PublishRunPending(ctx context.Context, runID uuid.UUID) error
}

// StatusFeed реализуется *storage.StatusStore.
type StatusFeed interface {
	Snapshot(ctx context.Context, runID uuid.UUID) (map[string]domain.OutputStatus, error)
	Subscribe(ctx context.Context, runID uuid.UUID) (*storage.Subscription, error)
}

// PromptOptimizer реализуется *optimizer.Optimizer.
type PromptOptimizer interface {
	Optimize(ctx context.Context, req optimizer.OptimizeRequest) (string, error)
}

// Handler это главный обработчик API с зависимостями.
type Handler struct {
	workflows WorkflowStore
	runs      RunStore
	outputs   OutputStore
	schedules ScheduleStore
	publisher RunPublisher
	feed      StatusFeed
	optimizer PromptOptimizer
	registry  *backend.Registry
	creds     domain.Credentials
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// Config это конфигурация для создания Handler.
//
// Publisher, Feed и Optimizer опциональны: без них не публикуется
// run.pending (worker найдёт run через polling), недоступен стрим
// и оптимизация промптов соответственно.
type Config struct {
	Workflows WorkflowStore
	Runs      RunStore
	Outputs   OutputStore
	Schedules ScheduleStore
	Publisher RunPublisher
	Feed      StatusFeed
	Optimizer PromptOptimizer

	// Registry используется для GET /api/v1/models (default: backend.DefaultRegistry()).
	Registry *backend.Registry

	// Credentials используются оптимизатором, если клиент не передал свой ключ.
	Credentials domain.Credentials

	// CheckOrigin для websocket; nil разрешает любой origin.
	CheckOrigin func(r *http.Request) bool

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = backend.DefaultRegistry()
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}

	return &Handler{
		workflows: cfg.Workflows,
		runs:      cfg.Runs,
		outputs:   cfg.Outputs,
		schedules: cfg.Schedules,
		publisher: cfg.Publisher,
		feed:      cfg.Feed,
		optimizer: cfg.Optimizer,
		registry:  cfg.Registry,
		creds:     cfg.Credentials,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     checkOrigin,
		},
		logger: cfg.Logger,
	}
}
