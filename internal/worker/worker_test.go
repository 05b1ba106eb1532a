package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Artflow/internal/domain"
	"github.com/shaiso/Artflow/internal/mq"
	"github.com/shaiso/Artflow/internal/orchestrator"
	"github.com/shaiso/Artflow/internal/repo"
)

// --- fakes ---

type fakeRuns struct {
	mu       sync.Mutex
	runs     map[uuid.UUID]*domain.Run
	finished []domain.Run
	claimErr error
}

func newFakeRuns(runs ...*domain.Run) *fakeRuns {
	f := &fakeRuns{runs: make(map[uuid.UUID]*domain.Run)}
	for _, r := range runs {
		f.runs[r.ID] = r
	}
	return f
}

func (f *fakeRuns) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeRuns) ListPending(_ context.Context, limit int) ([]domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Run
	for _, r := range f.runs {
		if r.Status == domain.RunStatusPending && len(out) < limit {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRuns) Claim(_ context.Context, run *domain.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return f.claimErr
	}
	stored := f.runs[run.ID]
	if stored.Status != domain.RunStatusPending {
		return repo.ErrInvalidState
	}
	run.MarkRunning()
	stored.Status = run.Status
	return nil
}

// Finish, как и настоящий пул, отказывает на отменённом контексте.
func (f *fakeRuns) Finish(ctx context.Context, run *domain.Run) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *run
	f.runs[run.ID] = &cp
	f.finished = append(f.finished, cp)
	return nil
}

func (f *fakeRuns) get(id uuid.UUID) domain.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.runs[id]
}

type savedStatus struct {
	runID  uuid.UUID
	nodeID string
	status domain.OutputStatus
}

type fakeOutputs struct {
	mu    sync.Mutex
	saved []savedStatus
	err   error
}

func (f *fakeOutputs) Save(ctx context.Context, runID uuid.UUID, nodeID string, status domain.OutputStatus) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, savedStatus{runID, nodeID, status})
	return f.err
}

type fakeCache struct {
	fakeOutputs
	finished []domain.RunStatus
}

func (f *fakeCache) PublishRunFinished(_ context.Context, _ uuid.UUID, status domain.RunStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.finished = append(f.finished, status)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	outputs  []mq.OutputStatusPayload
	finished []mq.RunFinishedPayload
}

func (p *fakePublisher) PublishOutputStatus(_ context.Context, payload mq.OutputStatusPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outputs = append(p.outputs, payload)
	return nil
}

func (p *fakePublisher) PublishRunFinished(_ context.Context, payload mq.RunFinishedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finished = append(p.finished, payload)
	return nil
}

// fakeExecutor пишет loading и затем итог из results для каждого узла.
type fakeExecutor struct {
	results map[string]domain.OutputStatus
	err     error
	calls   int
}

func (e *fakeExecutor) Execute(ctx context.Context, g domain.Graph, _ domain.Credentials, w orchestrator.StatusWriter) (*orchestrator.Report, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	report := &orchestrator.Report{}
	for _, n := range g.OutputNodes() {
		_ = w.WriteStatus(ctx, n.ID, domain.LoadingStatus())
		st := e.results[n.ID]
		_ = w.WriteStatus(ctx, n.ID, st)
		report.Branches = append(report.Branches, orchestrator.BranchResult{OutputNodeID: n.ID, Status: st})
	}
	return report, nil
}

// blockingExecutor держит ветку до отмены ctx и пишет ошибку отмены.
type blockingExecutor struct {
	started chan struct{}
}

func (e *blockingExecutor) Execute(ctx context.Context, g domain.Graph, _ domain.Credentials, w orchestrator.StatusWriter) (*orchestrator.Report, error) {
	report := &orchestrator.Report{}
	for _, n := range g.OutputNodes() {
		_ = w.WriteStatus(ctx, n.ID, domain.LoadingStatus())
	}
	close(e.started)
	<-ctx.Done()
	for _, n := range g.OutputNodes() {
		st := domain.ErrorStatus(ctx.Err().Error())
		_ = w.WriteStatus(ctx, n.ID, st)
		report.Branches = append(report.Branches, orchestrator.BranchResult{OutputNodeID: n.ID, Status: st, Err: ctx.Err()})
	}
	return report, nil
}

func twoOutputs() domain.Graph {
	return domain.Graph{Nodes: []domain.Node{
		{ID: "out-1", Type: domain.NodeTypeOutput},
		{ID: "out-2", Type: domain.NodeTypeOutput},
	}}
}

func pendingRun() *domain.Run {
	return &domain.Run{
		ID:        uuid.New(),
		Status:    domain.RunStatusPending,
		Graph:     twoOutputs(),
		CreatedAt: time.Now(),
	}
}

// --- processRun ---

func TestProcessRun_FinalStatus(t *testing.T) {
	ok := domain.SuccessStatus([]string{"https://img/1.png"})
	bad := domain.ErrorStatus("Missing variables: Product")

	tests := []struct {
		name    string
		results map[string]domain.OutputStatus
		want    domain.RunStatus
	}{
		{"all succeeded", map[string]domain.OutputStatus{"out-1": ok, "out-2": ok}, domain.RunStatusSucceeded},
		{"mixed", map[string]domain.OutputStatus{"out-1": ok, "out-2": bad}, domain.RunStatusPartial},
		{"all failed", map[string]domain.OutputStatus{"out-1": bad, "out-2": bad}, domain.RunStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := pendingRun()
			runs := newFakeRuns(run)
			w := New(Config{Runs: runs, Executor: &fakeExecutor{results: tt.results}})

			if err := w.processRun(context.Background(), run.ID); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			got := runs.get(run.ID)
			if got.Status != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.Status)
			}
			if got.StartedAt == nil || got.FinishedAt == nil {
				t.Error("expected started_at and finished_at to be set")
			}
		})
	}
}

func TestProcessRun_PersistsEveryStatusWrite(t *testing.T) {
	run := pendingRun()
	outputs := &fakeOutputs{}
	cache := &fakeCache{}
	pub := &fakePublisher{}
	exec := &fakeExecutor{results: map[string]domain.OutputStatus{
		"out-1": domain.SuccessStatus([]string{"a"}),
		"out-2": domain.SuccessStatus([]string{"b"}),
	}}

	w := New(Config{
		Runs:      newFakeRuns(run),
		Outputs:   outputs,
		Cache:     cache,
		Publisher: pub,
		Executor:  exec,
	})

	if err := w.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// loading + terminal на каждый из двух узлов
	if len(outputs.saved) != 4 {
		t.Fatalf("expected 4 saved statuses, got %d", len(outputs.saved))
	}
	if outputs.saved[0].status.Status != domain.OutputStateLoading {
		t.Errorf("first write should be loading, got %s", outputs.saved[0].status.Status)
	}
	if outputs.saved[0].runID != run.ID {
		t.Errorf("wrong run id in saved status")
	}
	if len(cache.saved) != 4 {
		t.Errorf("expected 4 cached statuses, got %d", len(cache.saved))
	}
	if len(pub.outputs) != 4 {
		t.Errorf("expected 4 output.status events, got %d", len(pub.outputs))
	}

	if len(cache.finished) != 1 || cache.finished[0] != domain.RunStatusSucceeded {
		t.Errorf("expected one SUCCEEDED finish in cache, got %v", cache.finished)
	}
	if len(pub.finished) != 1 || pub.finished[0].RunID != run.ID {
		t.Fatalf("expected one run.finished event, got %v", pub.finished)
	}
	if pub.finished[0].Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", pub.finished[0].Status)
	}
}

func TestProcessRun_FatalErrorFailsRun(t *testing.T) {
	run := pendingRun()
	runs := newFakeRuns(run)
	pub := &fakePublisher{}
	w := New(Config{
		Runs:      runs,
		Publisher: pub,
		Executor:  &fakeExecutor{err: orchestrator.ErrNoOutputNode},
	})

	if err := w.processRun(context.Background(), run.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := runs.get(run.ID)
	if got.Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", got.Status)
	}
	if got.Error != orchestrator.ErrNoOutputNode.Error() {
		t.Errorf("expected error %q, got %q", orchestrator.ErrNoOutputNode.Error(), got.Error)
	}
	if len(pub.finished) != 1 || pub.finished[0].Error == "" {
		t.Errorf("expected run.finished with error, got %v", pub.finished)
	}
}

func TestProcessRun_NotFound(t *testing.T) {
	w := New(Config{Runs: newFakeRuns(), Executor: &fakeExecutor{}})

	err := w.processRun(context.Background(), uuid.New())
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("expected ErrRunNotFound, got %v", err)
	}
}

func TestProcessRun_NotPending(t *testing.T) {
	run := pendingRun()
	run.Status = domain.RunStatusSucceeded
	exec := &fakeExecutor{}
	w := New(Config{Runs: newFakeRuns(run), Executor: exec})

	err := w.processRun(context.Background(), run.ID)
	if !errors.Is(err, ErrRunNotPending) {
		t.Fatalf("expected ErrRunNotPending, got %v", err)
	}
	if exec.calls != 0 {
		t.Error("executor should not be called")
	}
}

func TestProcessRun_ClaimLost(t *testing.T) {
	run := pendingRun()
	runs := newFakeRuns(run)
	runs.claimErr = repo.ErrInvalidState
	exec := &fakeExecutor{}
	w := New(Config{Runs: runs, Executor: exec})

	err := w.processRun(context.Background(), run.ID)
	if !errors.Is(err, ErrRunNotPending) {
		t.Fatalf("expected ErrRunNotPending, got %v", err)
	}
	if exec.calls != 0 {
		t.Error("executor should not be called")
	}
}

func TestStatusWriter_ReturnsStoreErrors(t *testing.T) {
	outputs := &fakeOutputs{err: errors.New("db down")}
	w := New(Config{Outputs: outputs})

	writer := w.statusWriter(uuid.New(), w.logger)
	err := writer.WriteStatus(context.Background(), "out-1", domain.LoadingStatus())
	if err == nil {
		t.Fatal("expected error")
	}
}

// --- handleRunPending ---

func deliveryFor(t *testing.T, runID uuid.UUID) *mq.Delivery {
	t.Helper()
	raw, err := json.Marshal(mq.Message{
		ID:      uuid.NewString(),
		Type:    mq.MessageTypeRunPending,
		Payload: mq.RunPendingPayload{RunID: runID},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var msg mq.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return &mq.Delivery{Message: msg}
}

func TestHandleRunPending(t *testing.T) {
	run := pendingRun()
	runs := newFakeRuns(run)
	exec := &fakeExecutor{results: map[string]domain.OutputStatus{
		"out-1": domain.SuccessStatus([]string{"a"}),
		"out-2": domain.SuccessStatus([]string{"b"}),
	}}
	w := New(Config{Runs: runs, Executor: exec})

	if err := w.handleRunPending(context.Background(), deliveryFor(t, run.ID)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runs.get(run.ID).Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", runs.get(run.ID).Status)
	}

	// Повторная доставка подтверждается без выполнения.
	if err := w.handleRunPending(context.Background(), deliveryFor(t, run.ID)); err != nil {
		t.Fatalf("redelivery should be acked, got %v", err)
	}
	if exec.calls != 1 {
		t.Errorf("expected 1 execution, got %d", exec.calls)
	}
}

func TestHandleRunPending_UnknownRunIsAcked(t *testing.T) {
	w := New(Config{Runs: newFakeRuns(), Executor: &fakeExecutor{}})

	if err := w.handleRunPending(context.Background(), deliveryFor(t, uuid.New())); err != nil {
		t.Fatalf("expected ack, got %v", err)
	}
}

// --- lifecycle ---

func TestWorker_PollPicksUpPendingRuns(t *testing.T) {
	run := pendingRun()
	runs := newFakeRuns(run)
	exec := &fakeExecutor{results: map[string]domain.OutputStatus{
		"out-1": domain.SuccessStatus([]string{"a"}),
		"out-2": domain.ErrorStatus("boom"),
	}}
	w := New(Config{Runs: runs, Executor: exec, PollInterval: time.Hour})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for runs.get(run.ID).Status != domain.RunStatusPartial {
		if time.Now().After(deadline) {
			t.Fatalf("run was not processed, status %s", runs.get(run.ID).Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	w.Stop()
	if !w.IsStopped() {
		t.Error("expected worker to be stopped")
	}
}

func TestWorker_StopFinalizesInFlightRun(t *testing.T) {
	run := pendingRun()
	runs := newFakeRuns(run)
	outputs := &fakeOutputs{}
	pub := &fakePublisher{}
	exec := &blockingExecutor{started: make(chan struct{})}
	w := New(Config{Runs: runs, Outputs: outputs, Publisher: pub, Executor: exec, PollInterval: time.Hour})

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case <-exec.started:
	case <-time.After(2 * time.Second):
		t.Fatal("run was not picked up")
	}

	w.Stop()

	got := runs.get(run.ID)
	if got.Status != domain.RunStatusFailed {
		t.Fatalf("expected run to be finalized as %s, got %s", domain.RunStatusFailed, got.Status)
	}
	if got.FinishedAt == nil {
		t.Error("expected finished_at to be set")
	}

	outputs.mu.Lock()
	terminal := 0
	for _, s := range outputs.saved {
		if s.status.Status == domain.OutputStateError {
			terminal++
		}
	}
	outputs.mu.Unlock()
	if terminal != 2 {
		t.Errorf("expected 2 terminal statuses saved, got %d", terminal)
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if len(pub.finished) != 1 {
		t.Errorf("expected run.finished to be published once, got %d", len(pub.finished))
	}
}

func TestWorker_StartWithoutExecutor(t *testing.T) {
	w := New(Config{Runs: newFakeRuns()})
	if err := w.Start(context.Background()); !errors.Is(err, ErrNoExecutor) {
		t.Fatalf("expected ErrNoExecutor, got %v", err)
	}
}
