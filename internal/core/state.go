package core

import (
	"context"
	"time"

	"github.com/google/uuid"

	"iot_query_agent/internal/analysis"
	"iot_query_agent/internal/verification"
	"iot_query_agent/pkg"
)

// MaxRetries bounds how often a failed workflow is restarted. Together with
// the initial attempt a query is processed at most MaxRetries+1 times.
const MaxRetries = 2

// Node names, in pipeline order.
const (
	NodeIntentClassifier  = "intent_classifier"
	NodeDataCollector     = "data_collector"
	NodeDataAnalyzer      = "data_analyzer"
	NodeResponseGenerator = "response_generator"
	NodeVerification      = "verification"
	NodeErrorHandler      = "error_handler"
)

// Transition is the typed result a node hands back to the state machine.
type Transition int

const (
	// TransitionNext advances to the next node in the pipeline.
	TransitionNext Transition = iota
	// TransitionError routes to the error handler.
	TransitionError
	// TransitionRetry restarts the pipeline from the first node.
	TransitionRetry
	// TransitionEnd terminates the workflow.
	TransitionEnd
)

// Node is a single processing stage of the workflow state machine.
type Node interface {
	Name() string
	Run(ctx context.Context, state *WorkflowState) Transition
}

// ToolResult is the outcome of one tool invocation, success or error.
type ToolResult struct {
	Value any    `json:"value,omitempty"`
	Err   string `json:"error,omitempty"`
}

// Failed reports whether the invocation ended in an error.
func (r ToolResult) Failed() bool {
	return r.Err != ""
}

// WorkflowState is the full mutable record threaded through one workflow
// run. It is owned exclusively by the orchestrator call stack and never
// shared across sessions.
type WorkflowState struct {
	SessionID string
	Query     string // immutable for the lifetime of the run

	Intent        pkg.Intent
	RequiredTools []string

	// ToolResults has an entry for every requested tool, success or error;
	// ContextData only carries the successes.
	ToolResults map[string]ToolResult
	ContextData map[string]any

	Analysis *analysis.Report

	FinalResponse string
	Verification  *verification.Result

	// ErrorInfo is non-nil only on the way into the error handler.
	ErrorInfo  *NodeError
	RetryCount int

	Meta pkg.ExecutionMetadata
}

// NewWorkflowState creates the initial state for one query.
func NewWorkflowState(query, sessionID string) *WorkflowState {
	return &WorkflowState{
		SessionID:   sessionID,
		Query:       query,
		Intent:      pkg.IntentUnknown,
		ToolResults: make(map[string]ToolResult),
		ContextData: make(map[string]any),
		Meta: pkg.ExecutionMetadata{
			RunID:     uuid.NewString(),
			StartTime: time.Now(),
			Status:    pkg.StatusPending,
			Attempts:  1,
		},
	}
}

// BeginNode records a node into the audit trail before it does any work, so
// the trail is complete even on partial failure.
func (s *WorkflowState) BeginNode(name string) {
	s.Meta.NodesExecuted = append(s.Meta.NodesExecuted, name)
}

// Fail records a node failure and routes to the error handler.
func (s *WorkflowState) Fail(node string, recoverable bool, err error) Transition {
	s.ErrorInfo = &NodeError{
		Node:        node,
		Message:     err.Error(),
		Err:         err,
		Time:        time.Now(),
		Recoverable: recoverable,
	}
	return TransitionError
}

// ResetForRetry clears the derived state before a retry. The query, session,
// retry counter and audit trail survive; tool and analysis state start fresh.
func (s *WorkflowState) ResetForRetry() {
	s.Intent = pkg.IntentUnknown
	s.RequiredTools = nil
	s.ToolResults = make(map[string]ToolResult)
	s.ContextData = make(map[string]any)
	s.Analysis = nil
	s.FinalResponse = ""
	s.Verification = nil
	s.Meta.Attempts = s.RetryCount + 1
}
