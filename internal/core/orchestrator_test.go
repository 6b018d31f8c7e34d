package core_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot_query_agent/internal/core"
	"iot_query_agent/internal/llm"
	"iot_query_agent/internal/nodes"
	"iot_query_agent/internal/storage"
	"iot_query_agent/internal/tools"
	"iot_query_agent/internal/verification"
	"iot_query_agent/pkg"
)

// scriptedGenerator counts Generate calls and plays back a fixed response
// or error.
type scriptedGenerator struct {
	response string
	err      error
	calls    int
}

func (g *scriptedGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	g.calls++
	if g.err != nil {
		return "", g.err
	}
	return g.response, nil
}

func (g *scriptedGenerator) Provider() string { return "scripted" }

// newTestAgent wires a full pipeline over the seeded in-memory store.
func newTestAgent(t *testing.T, gen llm.Generator) (*core.Orchestrator, *storage.MemorySessionStore) {
	t.Helper()

	store := storage.NewMemoryTelemetryStore()
	require.NoError(t, store.SeedDemo(context.Background()))

	registry := tools.NewRegistry()
	require.NoError(t, tools.RegisterBuiltin(registry, store))

	sessions := storage.NewMemorySessionStore(storage.DefaultHistoryCap)
	verifier := verification.NewVerifier(verification.NewEntityCache(store, time.Minute))

	pipeline := nodes.Pipeline(registry, gen, verifier, sessions, time.Second)
	orch, err := core.NewOrchestrator(pipeline, nodes.NewErrorHandlerNode(core.MaxRetries), sessions, core.Options{
		MaxRetries:     core.MaxRetries,
		ProcessTimeout: 5 * time.Second,
		Provider:       gen.Provider(),
	})
	require.NoError(t, err)
	return orch, sessions
}

func TestProcessEndToEnd(t *testing.T) {
	gen := &scriptedGenerator{response: "The latest temperature reading is 22.5 degrees."}
	orch, _ := newTestAgent(t, gen)

	result, err := orch.Process(context.Background(), "What is the current temperature?", "session-1")
	require.NoError(t, err)

	assert.Equal(t, pkg.StatusSuccess, result.Status)
	assert.Equal(t, pkg.IntentSensorData, result.Intent)
	assert.Equal(t, gen.response, result.Response)
	assert.Equal(t, []string{tools.FetchRecentReadings}, result.ToolsUsed)
	assert.Equal(t, 1, result.Metadata.Attempts)
	assert.Equal(t, []string{
		core.NodeIntentClassifier,
		core.NodeDataCollector,
		core.NodeDataAnalyzer,
		core.NodeResponseGenerator,
		core.NodeVerification,
	}, result.Metadata.NodesExecuted)

	history, err := orch.SessionHistory(context.Background(), "session-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "What is the current temperature?", history[0].Query)
	assert.Equal(t, pkg.StatusSuccess, history[0].Status)
}

func TestProcessCorrectsHallucinatedResponse(t *testing.T) {
	gen := &scriptedGenerator{response: "The humidity is currently 45%."}
	orch, _ := newTestAgent(t, gen)

	result, err := orch.Process(context.Background(), "What is the current humidity?", "session-h")
	require.NoError(t, err)

	// The invented measurement is replaced, not delivered.
	assert.Equal(t, pkg.StatusSuccess, result.Status)
	lower := strings.ToLower(result.Response)
	assert.NotContains(t, lower, "humidity")
	assert.Contains(t, lower, "temperature")
	assert.Contains(t, lower, "ldr")
}

func TestProcessRetriesAreBounded(t *testing.T) {
	gen := &scriptedGenerator{err: llm.NewGenerationError("scripted", errors.New("backend down"))}
	orch, _ := newTestAgent(t, gen)

	result, err := orch.Process(context.Background(), "What is the temperature?", "session-r")
	require.NoError(t, err)

	// Initial attempt plus MaxRetries restarts, then a friendly failure.
	assert.Equal(t, core.MaxRetries+1, gen.calls)
	assert.Equal(t, core.MaxRetries+1, result.Metadata.Attempts)
	assert.Equal(t, pkg.StatusError, result.Status)
	assert.NotEmpty(t, result.Response)
	assert.NotContains(t, result.Response, "backend down")

	// The failed run is still recorded in the session history.
	history, err := orch.SessionHistory(context.Background(), "session-r")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, pkg.StatusError, history[0].Status)
}

func TestProcessZeroRetriesDisablesRetry(t *testing.T) {
	gen := &scriptedGenerator{err: llm.NewGenerationError("scripted", errors.New("backend down"))}

	store := storage.NewMemoryTelemetryStore()
	require.NoError(t, store.SeedDemo(context.Background()))
	registry := tools.NewRegistry()
	require.NoError(t, tools.RegisterBuiltin(registry, store))
	sessions := storage.NewMemorySessionStore(storage.DefaultHistoryCap)
	verifier := verification.NewVerifier(verification.NewEntityCache(store, time.Minute))

	// Handler and orchestrator get the same explicit zero bound.
	pipeline := nodes.Pipeline(registry, gen, verifier, sessions, time.Second)
	orch, err := core.NewOrchestrator(pipeline, nodes.NewErrorHandlerNode(0), sessions, core.Options{
		MaxRetries: 0,
	})
	require.NoError(t, err)

	result, err := orch.Process(context.Background(), "What is the temperature?", "session-z")
	require.NoError(t, err)

	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, 1, result.Metadata.Attempts)
	assert.Equal(t, pkg.StatusError, result.Status)
	assert.NotEmpty(t, result.Response)
}

func TestProcessToolFailureIsIsolated(t *testing.T) {
	store := storage.NewMemoryTelemetryStore()
	require.NoError(t, store.SeedDemo(context.Background()))

	// A registry where one of the two required tools always fails.
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tools.FetchRecentReadings, func(ctx context.Context) (any, error) {
		return nil, errors.New("telemetry unavailable")
	}))
	require.NoError(t, registry.Register(tools.FetchSensorStats, func(ctx context.Context) (any, error) {
		return store.SensorStats(ctx)
	}))

	sessions := storage.NewMemorySessionStore(storage.DefaultHistoryCap)
	verifier := verification.NewVerifier(verification.NewEntityCache(store, time.Minute))
	gen := &scriptedGenerator{response: "There are 48 readings in the store."}

	pipeline := nodes.Pipeline(registry, gen, verifier, sessions, time.Second)
	orch, err := core.NewOrchestrator(pipeline, nodes.NewErrorHandlerNode(core.MaxRetries), sessions, core.Options{
		MaxRetries: core.MaxRetries,
	})
	require.NoError(t, err)

	result, err := orch.Process(context.Background(), "How many readings do we have in total?", "session-t")
	require.NoError(t, err)

	// The failed tool is dropped; the run still succeeds on partial data.
	assert.Equal(t, pkg.StatusSuccess, result.Status)
	assert.Equal(t, []string{tools.FetchSensorStats}, result.ToolsUsed)
}

func TestProcessGeneratesSessionID(t *testing.T) {
	gen := &scriptedGenerator{response: "All devices are online."}
	orch, _ := newTestAgent(t, gen)

	result, err := orch.Process(context.Background(), "Are my devices online?", "")
	require.NoError(t, err)

	assert.NotEmpty(t, result.SessionID)
	history, err := orch.SessionHistory(context.Background(), result.SessionID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestNewOrchestratorValidatesPipeline(t *testing.T) {
	sessions := storage.NewMemorySessionStore(storage.DefaultHistoryCap)
	handler := nodes.NewErrorHandlerNode(core.MaxRetries)
	intent := nodes.NewIntentNode()

	_, err := core.NewOrchestrator(nil, handler, sessions, core.Options{})
	assert.ErrorIs(t, err, core.ErrOrchestration)

	_, err = core.NewOrchestrator([]core.Node{intent, intent}, handler, sessions, core.Options{})
	assert.ErrorIs(t, err, core.ErrOrchestration)

	_, err = core.NewOrchestrator([]core.Node{intent}, nil, sessions, core.Options{})
	assert.ErrorIs(t, err, core.ErrOrchestration)

	_, err = core.NewOrchestrator([]core.Node{intent}, handler, nil, core.Options{})
	assert.ErrorIs(t, err, core.ErrOrchestration)
}

func TestStatusReportsActiveSessions(t *testing.T) {
	gen := &scriptedGenerator{response: "ok"}
	orch, _ := newTestAgent(t, gen)

	_, err := orch.Process(context.Background(), "What is the current temperature?", "a")
	require.NoError(t, err)
	_, err = orch.Process(context.Background(), "What is the current temperature?", "b")
	require.NoError(t, err)

	status := orch.Status(context.Background())
	assert.True(t, status.Initialized)
	assert.Equal(t, 2, status.ActiveSessions)
	assert.Equal(t, "scripted", status.Provider)
}
