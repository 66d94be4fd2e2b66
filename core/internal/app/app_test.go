package app

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"demos-to-discord/core/internal/config"
	"demos-to-discord/core/internal/workflow"
	"demos-to-discord/host"
)

type recordingHandler struct {
	mu     sync.Mutex
	events []host.ReportEvent
	panic  bool
}

func (h *recordingHandler) Handle(_ context.Context, evt host.ReportEvent) workflow.Result {
	h.mu.Lock()
	h.events = append(h.events, evt)
	h.mu.Unlock()
	if h.panic {
		panic("boom")
	}
	return workflow.Result{RunID: "r", State: workflow.StateDelivered}
}

type countingStartup struct {
	calls int
	err   error
}

func (s *countingStartup) SendStartup(context.Context) error {
	s.calls++
	return s.err
}

func TestApp_DispatchesReports(t *testing.T) {
	hub := host.NewHub()
	h := &recordingHandler{}
	a := New(zap.NewNop(), hub, h, nil)

	for i := 0; i < 5; i++ {
		hub.EmitReport(context.Background(), host.ReportEvent{Kind: host.PenaltyReport})
	}
	a.Wait()

	assert.Len(t, h.events, 5)
}

func TestApp_LoadSendsStartup(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	hub := host.NewHub()
	s := &countingStartup{err: errors.New("unreachable")}
	New(zap.New(core), hub, &recordingHandler{}, s)

	hub.EmitLoad(context.Background())

	assert.Equal(t, 1, s.calls)
	assert.Equal(t, 1, logs.FilterMessage("Startup check failed").Len())
}

func TestApp_RecoversWorkflowPanic(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	hub := host.NewHub()
	a := New(zap.New(core), hub, &recordingHandler{panic: true}, nil)

	hub.EmitReport(context.Background(), host.ReportEvent{Kind: host.PenaltyReport})
	a.Wait()

	require.Equal(t, 1, logs.FilterMessage("Workflow panicked").Len())
}

func TestBuild_RejectsBadTimezone(t *testing.T) {
	cfg := config.Default()
	cfg.DemoTimezone = "Not/AZone"
	_, err := Build(zap.NewNop(), cfg, host.NewHub())
	assert.Error(t, err)
}

func TestBuild_WiresJournalAndShutsDown(t *testing.T) {
	cfg := config.Default()
	cfg.JournalPath = t.TempDir() + "/journal/transitions.jsonl"
	hub := host.NewHub()

	a, err := Build(zap.NewNop(), cfg, hub)
	require.NoError(t, err)

	// No session: the workflow is ignored without touching the network.
	hub.EmitReport(context.Background(), host.ReportEvent{Kind: host.PenaltyReport})
	require.NoError(t, a.Shutdown())
	assert.FileExists(t, cfg.JournalPath)
}
