package nodes

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iot_query_agent/internal/core"
	"iot_query_agent/internal/tools"
)

func TestCollectorFanOut(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register("a", func(ctx context.Context) (any, error) {
		return "result-a", nil
	}))
	require.NoError(t, registry.Register("b", func(ctx context.Context) (any, error) {
		return 42, nil
	}))

	node := NewCollectorNode(registry, time.Second)
	state := core.NewWorkflowState("q", "s-1")
	state.RequiredTools = []string{"a", "b"}

	transition := node.Run(context.Background(), state)

	assert.Equal(t, core.TransitionNext, transition)
	assert.Equal(t, "result-a", state.ContextData["a"])
	assert.Equal(t, 42, state.ContextData["b"])
	assert.Equal(t, []string{"a", "b"}, state.Meta.ToolsUsed)
}

func TestCollectorIsolatesFailures(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register("broken", func(ctx context.Context) (any, error) {
		return nil, errors.New("connection refused")
	}))
	require.NoError(t, registry.Register("working", func(ctx context.Context) (any, error) {
		return "ok", nil
	}))

	node := NewCollectorNode(registry, time.Second)
	state := core.NewWorkflowState("q", "s-1")
	state.RequiredTools = []string{"broken", "working"}

	transition := node.Run(context.Background(), state)

	// A failing tool never aborts the run.
	assert.Equal(t, core.TransitionNext, transition)

	require.Contains(t, state.ToolResults, "broken")
	assert.True(t, state.ToolResults["broken"].Failed())
	assert.Contains(t, state.ToolResults["broken"].Err, "connection refused")

	// Only the success reaches the context data.
	assert.Equal(t, "ok", state.ContextData["working"])
	assert.NotContains(t, state.ContextData, "broken")
	assert.Equal(t, []string{"working"}, state.Meta.ToolsUsed)
}

func TestCollectorRecoversFromPanic(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register("panicky", func(ctx context.Context) (any, error) {
		panic("boom")
	}))

	node := NewCollectorNode(registry, time.Second)
	state := core.NewWorkflowState("q", "s-1")
	state.RequiredTools = []string{"panicky"}

	transition := node.Run(context.Background(), state)

	assert.Equal(t, core.TransitionNext, transition)
	require.Contains(t, state.ToolResults, "panicky")
	assert.Contains(t, state.ToolResults["panicky"].Err, "panicked")
	assert.Empty(t, state.ContextData)
}

func TestCollectorMixedRegisteredAndMissingTools(t *testing.T) {
	registry := tools.NewRegistry()
	require.NoError(t, registry.Register("slow", func(ctx context.Context) (any, error) {
		time.Sleep(time.Millisecond)
		return "slow-result", nil
	}))

	node := NewCollectorNode(registry, time.Second)

	// A batch mixing a registered and an unregistered name must stay
	// consistent while the fan-out is writing results concurrently.
	for i := 0; i < 20; i++ {
		state := core.NewWorkflowState("q", "s-1")
		state.RequiredTools = []string{"slow", "missing"}

		transition := node.Run(context.Background(), state)

		assert.Equal(t, core.TransitionNext, transition)
		require.Len(t, state.ToolResults, 2)
		assert.True(t, state.ToolResults["missing"].Failed())
		assert.Equal(t, "slow-result", state.ContextData["slow"])
		assert.Equal(t, []string{"slow"}, state.Meta.ToolsUsed)
	}
}

func TestCollectorUnknownTool(t *testing.T) {
	node := NewCollectorNode(tools.NewRegistry(), time.Second)
	state := core.NewWorkflowState("q", "s-1")
	state.RequiredTools = []string{"missing"}

	transition := node.Run(context.Background(), state)

	assert.Equal(t, core.TransitionNext, transition)
	assert.True(t, state.ToolResults["missing"].Failed())
	assert.Empty(t, state.Meta.ToolsUsed)
}
