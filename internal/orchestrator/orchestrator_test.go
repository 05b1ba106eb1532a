package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/shaiso/Artflow/internal/backend"
	"github.com/shaiso/Artflow/internal/domain"
	"github.com/shaiso/Artflow/internal/engine"
)

type write struct {
	nodeID string
	status domain.OutputStatus
}

type recordingWriter struct {
	mu     sync.Mutex
	writes []write
}

func (w *recordingWriter) WriteStatus(_ context.Context, nodeID string, status domain.OutputStatus) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, write{nodeID: nodeID, status: status})
	return nil
}

func (w *recordingWriter) forNode(nodeID string) []domain.OutputStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []domain.OutputStatus
	for _, wr := range w.writes {
		if wr.nodeID == nodeID {
			out = append(out, wr.status)
		}
	}
	return out
}

type fakeDispatcher struct {
	mu       sync.Mutex
	requests []backend.Request
	writer   *recordingWriter
	nodeOf   map[string]string // модель → Output-узел ветки
	loading  map[string]bool   // модель → был ли loading записан до вызова
	fail     map[string]error
}

func (d *fakeDispatcher) Dispatch(_ context.Context, req backend.Request, _ domain.Credentials) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.requests = append(d.requests, req)

	if d.writer != nil {
		if d.loading == nil {
			d.loading = make(map[string]bool)
		}
		for _, wr := range d.writer.forNode(d.nodeOf[req.Model]) {
			if wr.Status == domain.OutputStateLoading {
				d.loading[req.Model] = true
			}
		}
	}

	if err := d.fail[req.Model]; err != nil {
		return nil, err
	}
	images := make([]string, req.N)
	for i := range images {
		images[i] = fmt.Sprintf("%s-%d", req.Model, i)
	}
	return images, nil
}

// twoBranchGraph строит граф с одним Input и Prompt и двумя ветками Model → Output.
func twoBranchGraph() domain.Graph {
	return domain.Graph{
		Nodes: []domain.Node{
			{ID: "in", Type: domain.NodeTypeInput, Attributes: []domain.Attribute{
				{ID: "a", Kind: domain.AttributeKindText, Label: "Product", Value: "Shoe"},
			}},
			{ID: "p", Type: domain.NodeTypePrompt, Template: "{{Product}} on a beach"},
			{ID: "m-gem", Type: domain.NodeTypeModel, Model: &domain.ModelConfig{Name: "gemini-2.5-flash-image", N: 2}},
			{ID: "m-dalle", Type: domain.NodeTypeModel, Model: &domain.ModelConfig{Name: "dall-e-3", N: 1}},
			{ID: "out-gem", Type: domain.NodeTypeOutput},
			{ID: "out-dalle", Type: domain.NodeTypeOutput},
		},
		Edges: []domain.Edge{
			{ID: "e1", Source: "in", Target: "p"},
			{ID: "e2", Source: "p", Target: "m-gem"},
			{ID: "e3", Source: "p", Target: "m-dalle"},
			{ID: "e4", Source: "m-gem", Target: "out-gem"},
			{ID: "e5", Source: "m-dalle", Target: "out-dalle"},
		},
	}
}

func TestExecute_NoOutputNode(t *testing.T) {
	w := &recordingWriter{}
	d := &fakeDispatcher{}
	o := New(Config{Dispatcher: d})

	g := twoBranchGraph()
	g.Nodes = g.Nodes[:4]

	report, err := o.Execute(context.Background(), g, domain.Credentials{}, w)
	if !errors.Is(err, ErrNoOutputNode) {
		t.Fatalf("expected ErrNoOutputNode, got %v", err)
	}
	if report != nil {
		t.Error("report should be nil")
	}
	if len(w.writes) != 0 || len(d.requests) != 0 {
		t.Error("no branch should run")
	}
}

func TestExecute_NoDispatcher(t *testing.T) {
	_, err := New(Config{}).Execute(context.Background(), twoBranchGraph(), domain.Credentials{}, nil)
	if !errors.Is(err, ErrNoDispatcher) {
		t.Fatalf("expected ErrNoDispatcher, got %v", err)
	}
}

func TestExecute_BranchIsolation(t *testing.T) {
	w := &recordingWriter{}
	d := &fakeDispatcher{
		writer: w,
		nodeOf: map[string]string{"gemini-2.5-flash-image": "out-gem", "dall-e-3": "out-dalle"},
		fail: map[string]error{
			"gemini-2.5-flash-image": &backend.MissingCredentialError{Family: backend.FamilyGemini},
		},
	}
	o := New(Config{Dispatcher: d})

	report, err := o.Execute(context.Background(), twoBranchGraph(), domain.Credentials{OpenAI: "k"}, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	gem := w.forNode("out-gem")
	if len(gem) != 2 {
		t.Fatalf("expected 2 writes for out-gem, got %d", len(gem))
	}
	if gem[0].Status != domain.OutputStateLoading || len(gem[0].Images) != 0 || gem[0].Error != "" {
		t.Errorf("first write must be loading: %+v", gem[0])
	}
	if gem[1].Status != domain.OutputStateError || gem[1].Error != "Gemini API key is missing" || len(gem[1].Images) != 0 {
		t.Errorf("unexpected gemini terminal status: %+v", gem[1])
	}

	dalle := w.forNode("out-dalle")
	if len(dalle) != 2 {
		t.Fatalf("expected 2 writes for out-dalle, got %d", len(dalle))
	}
	if dalle[0].Status != domain.OutputStateLoading {
		t.Errorf("first write must be loading: %+v", dalle[0])
	}
	if dalle[1].Status != domain.OutputStateSuccess || len(dalle[1].Images) != 1 {
		t.Errorf("unexpected dall-e terminal status: %+v", dalle[1])
	}

	if !d.loading["gemini-2.5-flash-image"] || !d.loading["dall-e-3"] {
		t.Error("loading must be written before dispatch")
	}

	if report.Succeeded() != 1 || report.Failed() != 1 {
		t.Errorf("unexpected counts: %d/%d", report.Succeeded(), report.Failed())
	}
	if report.RunStatus() != domain.RunStatusPartial {
		t.Errorf("expected PARTIAL, got %s", report.RunStatus())
	}
	if report.Branches[0].OutputNodeID != "out-gem" || report.Branches[1].OutputNodeID != "out-dalle" {
		t.Error("report must follow node order")
	}
	if !errors.Is(report.Branches[0].Err, backend.ErrMissingCredential) {
		t.Errorf("expected missing credential error, got %v", report.Branches[0].Err)
	}
}

func TestExecute_EndToEndPrompt(t *testing.T) {
	d := &fakeDispatcher{}
	o := New(Config{Dispatcher: d})

	report, err := o.Execute(context.Background(), twoBranchGraph(), domain.Credentials{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.requests) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(d.requests))
	}
	for _, req := range d.requests {
		if req.Prompt != "Shoe on a beach" {
			t.Errorf("expected resolved prompt, got %q", req.Prompt)
		}
	}
	if report.Branches[0].Prompt != "Shoe on a beach" {
		t.Errorf("report must carry the prompt, got %q", report.Branches[0].Prompt)
	}
	if report.RunStatus() != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", report.RunStatus())
	}
}

func TestExecute_MissingVariables(t *testing.T) {
	w := &recordingWriter{}
	d := &fakeDispatcher{}
	o := New(Config{Dispatcher: d})

	g := twoBranchGraph()
	g.Nodes[1].Template = "{{Product}} in {{Color}}"

	report, err := o.Execute(context.Background(), g, domain.Credentials{}, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(d.requests) != 0 {
		t.Error("dispatcher must not be called when variables are missing")
	}
	for _, nodeID := range []string{"out-gem", "out-dalle"} {
		final := w.forNode(nodeID)[1]
		if final.Status != domain.OutputStateError || final.Error != "Missing variables: Color" {
			t.Errorf("%s: unexpected status %+v", nodeID, final)
		}
	}
	if !errors.Is(report.Branches[0].Err, engine.ErrMissingVariables) {
		t.Errorf("expected ErrMissingVariables, got %v", report.Branches[0].Err)
	}
	if report.RunStatus() != domain.RunStatusFailed {
		t.Errorf("expected FAILED, got %s", report.RunStatus())
	}
}

func TestExecute_DisconnectedOutput(t *testing.T) {
	w := &recordingWriter{}
	o := New(Config{Dispatcher: &fakeDispatcher{}})

	g := twoBranchGraph()
	g.Nodes = append(g.Nodes, domain.Node{ID: "out-lonely", Type: domain.NodeTypeOutput})

	report, err := o.Execute(context.Background(), g, domain.Credentials{}, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	lonely := w.forNode("out-lonely")
	if len(lonely) != 2 || lonely[1].Status != domain.OutputStateError {
		t.Fatalf("unexpected writes: %+v", lonely)
	}
	if !errors.Is(report.Branches[2].Err, engine.ErrMissingModelConnection) {
		t.Errorf("expected ErrMissingModelConnection, got %v", report.Branches[2].Err)
	}
	if report.Succeeded() != 2 {
		t.Errorf("other branches must succeed, got %d", report.Succeeded())
	}
}

func TestExecute_ClampsCountAndDefaultsModel(t *testing.T) {
	tests := []struct {
		name      string
		model     *domain.ModelConfig
		wantModel string
		wantN     int
	}{
		{name: "zero", model: &domain.ModelConfig{Name: "dall-e-2", N: 0}, wantModel: "dall-e-2", wantN: 1},
		{name: "negative", model: &domain.ModelConfig{Name: "dall-e-2", N: -3}, wantModel: "dall-e-2", wantN: 1},
		{name: "too many", model: &domain.ModelConfig{Name: "dall-e-2", N: 9}, wantModel: "dall-e-2", wantN: 4},
		{name: "in range", model: &domain.ModelConfig{Name: "dall-e-2", N: 3}, wantModel: "dall-e-2", wantN: 3},
		{name: "empty name", model: &domain.ModelConfig{N: 2}, wantModel: "dall-e-3", wantN: 2},
		{name: "no payload", model: nil, wantModel: "dall-e-3", wantN: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDispatcher{}
			g := twoBranchGraph()
			g.Nodes = g.Nodes[:5]
			g.Nodes[2].Model = tt.model

			if _, err := New(Config{Dispatcher: d}).Execute(context.Background(), g, domain.Credentials{}, nil); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(d.requests) != 1 {
				t.Fatalf("expected 1 request, got %d", len(d.requests))
			}
			if d.requests[0].Model != tt.wantModel || d.requests[0].N != tt.wantN {
				t.Errorf("expected %s x%d, got %s x%d", tt.wantModel, tt.wantN, d.requests[0].Model, d.requests[0].N)
			}
		})
	}
}

func TestExecute_Parallel(t *testing.T) {
	w := &recordingWriter{}
	d := &fakeDispatcher{}
	o := New(Config{Dispatcher: d, Parallelism: 3})

	g := twoBranchGraph()
	g.Nodes = append(g.Nodes, domain.Node{ID: "out-gem-2", Type: domain.NodeTypeOutput})
	g.Edges = append(g.Edges, domain.Edge{ID: "e6", Source: "m-gem", Target: "out-gem-2"})

	report, err := o.Execute(context.Background(), g, domain.Credentials{}, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(report.Branches) != 3 || report.Succeeded() != 3 {
		t.Fatalf("unexpected report: %+v", report)
	}
	for i, id := range []string{"out-gem", "out-dalle", "out-gem-2"} {
		if report.Branches[i].OutputNodeID != id {
			t.Errorf("branch %d: expected %s, got %s", i, id, report.Branches[i].OutputNodeID)
		}
		writes := w.forNode(id)
		if len(writes) != 2 || writes[0].Status != domain.OutputStateLoading || writes[1].Status != domain.OutputStateSuccess {
			t.Errorf("%s: unexpected writes %+v", id, writes)
		}
	}
}

func TestExecute_WriterErrorDoesNotFailBranch(t *testing.T) {
	w := StatusWriterFunc(func(context.Context, string, domain.OutputStatus) error {
		return errors.New("storage down")
	})
	report, err := New(Config{Dispatcher: &fakeDispatcher{}}).Execute(context.Background(), twoBranchGraph(), domain.Credentials{}, w)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Succeeded() != 2 {
		t.Errorf("expected both branches to succeed, got %d", report.Succeeded())
	}
}

func TestClampCount(t *testing.T) {
	for in, want := range map[int]int{-1: 1, 0: 1, 1: 1, 4: 4, 5: 4, 100: 4} {
		if got := ClampCount(in); got != want {
			t.Errorf("ClampCount(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestBranchResult_ErrorMessageIsUserFacing(t *testing.T) {
	d := &fakeDispatcher{fail: map[string]error{
		"dall-e-3": &backend.BackendError{Family: backend.FamilyOpenAI, Message: "billing hard limit"},
	}}
	report, err := New(Config{Dispatcher: d}).Execute(context.Background(), twoBranchGraph(), domain.Credentials{}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	msg := report.Branches[1].Status.Error
	if !strings.HasPrefix(msg, "OpenAI API Error:") {
		t.Errorf("unexpected message: %q", msg)
	}
}
