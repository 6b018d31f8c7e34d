package core

import (
	"errors"
	"fmt"
	"time"
)

// ErrOrchestration marks a failure at the state-machine boundary itself.
// Orchestration failures are always fatal for the current call.
var ErrOrchestration = errors.New("orchestration error")

// ErrAnalysis marks a broken internal contract inside the analysis stage.
// Treated as recoverable: a retry starts from a clean slate.
var ErrAnalysis = errors.New("analysis error")

// NodeError records which node failed and whether the workflow may retry.
type NodeError struct {
	Node        string
	Message     string
	Err         error
	Time        time.Time
	Recoverable bool
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s", e.Node, e.Message)
}

func (e *NodeError) Unwrap() error {
	return e.Err
}
