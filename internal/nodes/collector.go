package nodes

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"iot_query_agent/internal/core"
	"iot_query_agent/internal/logger"
	"iot_query_agent/internal/tools"
)

// DefaultToolTimeout bounds a single tool invocation inside the fan-out.
const DefaultToolTimeout = 10 * time.Second

// CollectorNode runs the required tools concurrently and gathers their
// results. A failing tool never takes down the run; its error is recorded
// per tool and the remaining results still reach the context data.
type CollectorNode struct {
	registry    *tools.Registry
	toolTimeout time.Duration
}

// NewCollectorNode creates the data collection node backed by the given
// tool registry. A non-positive timeout falls back to DefaultToolTimeout.
func NewCollectorNode(registry *tools.Registry, toolTimeout time.Duration) *CollectorNode {
	if toolTimeout <= 0 {
		toolTimeout = DefaultToolTimeout
	}
	return &CollectorNode{registry: registry, toolTimeout: toolTimeout}
}

// Name implements core.Node.
func (n *CollectorNode) Name() string {
	return core.NodeDataCollector
}

// Run implements core.Node.
func (n *CollectorNode) Run(ctx context.Context, state *core.WorkflowState) core.Transition {
	required := state.RequiredTools
	if len(required) == 0 {
		required = []string{tools.FetchRecentReadings}
	}

	// Registry lookups are resolved before any goroutine starts, so the
	// not-registered writes below never race with the fan-out writes.
	type resolvedTool struct {
		name string
		tool tools.Tool
	}
	results := make(map[string]core.ToolResult, len(required))
	runnable := make([]resolvedTool, 0, len(required))
	for _, name := range required {
		tool, ok := n.registry.Get(name)
		if !ok {
			results[name] = core.ToolResult{Err: fmt.Sprintf("tool %q not registered", name)}
			continue
		}
		runnable = append(runnable, resolvedTool{name: name, tool: tool})
	}

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, r := range runnable {
		wg.Add(1)
		go func(name string, tool tools.Tool) {
			defer wg.Done()
			result := n.invoke(ctx, name, tool)
			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(r.name, r.tool)
	}
	wg.Wait()

	state.ToolResults = results
	state.ContextData = make(map[string]any, len(results))
	var used, failed []string
	for name, result := range results {
		if result.Failed() {
			failed = append(failed, name)
			continue
		}
		state.ContextData[name] = result.Value
		used = append(used, name)
	}
	sort.Strings(used)
	sort.Strings(failed)
	state.Meta.ToolsUsed = used

	logger.Info().
		Strs("tools_used", used).
		Strs("tools_failed", failed).
		Msg("📊 data collected")

	return core.TransitionNext
}

// invoke runs one tool with its own deadline and turns panics into plain
// tool errors so a misbehaving tool stays isolated.
func (n *CollectorNode) invoke(ctx context.Context, name string, tool tools.Tool) (result core.ToolResult) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error().
				Str("tool", name).
				Any("panic", r).
				Msg("💥 tool panicked")
			result = core.ToolResult{Err: fmt.Sprintf("tool %s panicked: %v", name, r)}
		}
	}()

	tctx, cancel := context.WithTimeout(ctx, n.toolTimeout)
	defer cancel()

	value, err := tool(tctx)
	if err != nil {
		logger.Warn().
			Str("tool", name).
			Err(err).
			Msg("⚠️ tool failed")
		return core.ToolResult{Err: err.Error()}
	}
	return core.ToolResult{Value: value}
}
