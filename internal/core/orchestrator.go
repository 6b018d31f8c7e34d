package core

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"iot_query_agent/internal/logger"
	"iot_query_agent/internal/storage"
	"iot_query_agent/pkg"
)

// Options configures the orchestrator.
type Options struct {
	// MaxRetries bounds workflow restarts. Zero disables retries; a
	// negative value selects the MaxRetries default. The error handler
	// must be constructed with the same bound.
	MaxRetries     int
	ProcessTimeout time.Duration // overall deadline for one Process call
	Provider       string        // generator backend name, reported in Status
}

// Orchestrator drives the workflow state machine:
//
//	intent_classifier -> data_collector -> data_analyzer ->
//	response_generator -> verification -> terminal
//
// with any failure routed through the error handler, which either restarts
// the pipeline (bounded retry) or terminates with a friendly error message.
type Orchestrator struct {
	pipeline     []Node
	errorHandler Node
	sessions     storage.SessionStore
	opts         Options
}

// NewOrchestrator validates and assembles the state machine. The pipeline
// is checked at construction time so a bad wiring never reaches a query.
func NewOrchestrator(pipeline []Node, errorHandler Node, sessions storage.SessionStore, opts Options) (*Orchestrator, error) {
	if len(pipeline) == 0 {
		return nil, fmt.Errorf("%w: pipeline cannot be empty", ErrOrchestration)
	}
	seen := map[string]struct{}{}
	for _, node := range pipeline {
		if node == nil {
			return nil, fmt.Errorf("%w: pipeline node cannot be nil", ErrOrchestration)
		}
		if node.Name() == "" {
			return nil, fmt.Errorf("%w: pipeline node name cannot be empty", ErrOrchestration)
		}
		if _, dup := seen[node.Name()]; dup {
			return nil, fmt.Errorf("%w: duplicate pipeline node %s", ErrOrchestration, node.Name())
		}
		seen[node.Name()] = struct{}{}
	}
	if errorHandler == nil {
		return nil, fmt.Errorf("%w: error handler is required", ErrOrchestration)
	}
	if sessions == nil {
		return nil, fmt.Errorf("%w: session store is required", ErrOrchestration)
	}

	if opts.MaxRetries < 0 {
		opts.MaxRetries = MaxRetries
	}
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = 60 * time.Second
	}

	return &Orchestrator{
		pipeline:     pipeline,
		errorHandler: errorHandler,
		sessions:     sessions,
		opts:         opts,
	}, nil
}

// Process runs one query through the state machine and returns the final
// response. The session history is updated exactly once, after the terminal
// state is reached.
func (o *Orchestrator) Process(ctx context.Context, query, sessionID string) (*pkg.ProcessResult, error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(ctx, o.opts.ProcessTimeout)
	defer cancel()

	state := NewWorkflowState(query, sessionID)

	logger.Info().
		Str("run_id", state.Meta.RunID).
		Str("session_id", sessionID).
		Msg("🚀 processing query")

	o.run(ctx, state)
	o.finalize(state)

	record := pkg.InteractionRecord{
		Query:     state.Query,
		Response:  state.FinalResponse,
		Status:    state.Meta.Status,
		ToolsUsed: state.Meta.ToolsUsed,
		Timestamp: state.Meta.EndTime,
	}
	if err := o.sessions.Append(ctx, sessionID, record); err != nil {
		// The answer is already computed; losing one history entry is not
		// worth failing the call over.
		logger.Warn().Err(err).Str("session_id", sessionID).Msg("failed to record interaction")
	}

	return &pkg.ProcessResult{
		Response:  state.FinalResponse,
		Status:    state.Meta.Status,
		Intent:    state.Intent,
		ToolsUsed: state.Meta.ToolsUsed,
		SessionID: sessionID,
		Metadata:  state.Meta,
	}, nil
}

// run drives the state machine to a terminal state. Each ErrorHandling
// cycle either restarts the pipeline or terminates, and retries are bounded,
// so the loop always terminates.
func (o *Orchestrator) run(ctx context.Context, state *WorkflowState) {
	i := 0
	for i < len(o.pipeline) {
		node := o.pipeline[i]
		state.BeginNode(node.Name())

		transition := node.Run(ctx, state)

		// A context deadline is not a separate cancellation channel: it is
		// routed through the error handler like any other failure.
		if transition == TransitionNext && ctx.Err() != nil {
			transition = state.Fail(node.Name(), false, fmt.Errorf("%w: %v", ErrOrchestration, ctx.Err()))
		}

		switch transition {
		case TransitionNext:
			i++
		case TransitionEnd:
			return
		case TransitionError:
			state.BeginNode(o.errorHandler.Name())
			if o.errorHandler.Run(ctx, state) == TransitionRetry {
				if state.RetryCount > o.opts.MaxRetries {
					// The retry bound holds even if the handler misbehaves.
					return
				}
				logger.Info().
					Int("retry", state.RetryCount).
					Msg("🔄 retrying workflow")
				state.ResetForRetry()
				i = 0
				continue
			}
			return
		default:
			// A pipeline node has no business returning TransitionRetry.
			state.Fail(node.Name(), false, fmt.Errorf("%w: unexpected transition from %s", ErrOrchestration, node.Name()))
			state.BeginNode(o.errorHandler.Name())
			o.errorHandler.Run(ctx, state)
			return
		}
	}
}

// finalize stamps the terminal status exactly once.
func (o *Orchestrator) finalize(state *WorkflowState) {
	state.Meta.EndTime = time.Now()
	state.Meta.Attempts = state.RetryCount + 1

	if state.ErrorInfo == nil && state.FinalResponse != "" {
		state.Meta.Status = pkg.StatusSuccess
	} else {
		state.Meta.Status = pkg.StatusError
		if state.FinalResponse == "" {
			state.FinalResponse = "Sorry, something unexpected went wrong. Please try again."
		}
	}

	logger.Info().
		Str("run_id", state.Meta.RunID).
		Str("status", string(state.Meta.Status)).
		Int("attempts", state.Meta.Attempts).
		Dur("duration", state.Meta.EndTime.Sub(state.Meta.StartTime)).
		Msg("🏁 workflow finished")
}

// SessionHistory returns the recorded interactions for a session.
func (o *Orchestrator) SessionHistory(ctx context.Context, sessionID string) ([]pkg.InteractionRecord, error) {
	return o.sessions.History(ctx, sessionID)
}

// ResetSession deletes a session history. It reports whether the session
// existed.
func (o *Orchestrator) ResetSession(ctx context.Context, sessionID string) (bool, error) {
	return o.sessions.Reset(ctx, sessionID)
}

// Status reports the orchestrator state.
func (o *Orchestrator) Status(ctx context.Context) pkg.AgentStatus {
	active, err := o.sessions.ActiveSessions(ctx)
	if err != nil {
		logger.Warn().Err(err).Msg("failed to count active sessions")
	}
	return pkg.AgentStatus{
		Initialized:    true,
		ActiveSessions: active,
		Provider:       o.opts.Provider,
	}
}
