// Package trace holds the reconstructed execution tree of one recursive
// language-model run and the pure reducer that folds stream events into it.
package trace

import (
	"time"

	"rlmtrace/internal/jsonx"
)

// ReplError is the structured failure captured from a code execution.
type ReplError struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
	Stack   string `json:"stack,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ReplResult is the outcome of executing one iteration's generated code.
// At most one is attached per iteration; the latest repl_result event wins.
type ReplResult struct {
	Success     bool             `json:"success"`
	Stdout      string           `json:"stdout,omitempty"`
	Stderr      string           `json:"stderr,omitempty"`
	ReturnValue jsonx.RawMessage `json:"returnValue,omitempty"`
	DurationMs  int64            `json:"durationMs,omitempty"`
	Error       *ReplError       `json:"error,omitempty"`
}

// Iteration is one node of the execution tree. An iteration may own nested
// iterations spawned as sub-computations; children are appended in arrival
// order and never re-parented.
type Iteration struct {
	ID            string       `json:"id"`
	ParentID      string       `json:"parentId,omitempty"`
	Number        int          `json:"number"`
	Input         string       `json:"input,omitempty"`
	Response      string       `json:"response,omitempty"`
	Code          string       `json:"code,omitempty"`
	ReplResult    *ReplResult  `json:"replResult,omitempty"`
	NestedQueries []*Iteration `json:"nestedQueries"`
	IsFinal       bool         `json:"isFinal"`
	FinalAnswer   string       `json:"finalAnswer,omitempty"`
	StartedAt     time.Time    `json:"startedAt"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
	Depth         int          `json:"depth"`
}

// Status derives the iteration's lifecycle state; it is never stored.
func (it *Iteration) Status() IterationStatus {
	switch {
	case it.IsFinal:
		return IterationFinal
	case it.ReplResult != nil && !it.ReplResult.Success:
		return IterationError
	case !it.StartedAt.IsZero() && it.CompletedAt == nil:
		return IterationRunning
	default:
		return IterationPending
	}
}

// clone returns a shallow copy; the children slice is shared until the
// reducer replaces it on a mutating path.
func (it *Iteration) clone() *Iteration {
	dup := *it
	return &dup
}

// Execution is the root of one traced run. It is owned exclusively by the
// reducer: every mutation produces a new value via Apply, and nodes off the
// mutated path are shared with the previous value.
type Execution struct {
	ID             string       `json:"id"`
	Query          string       `json:"query"`
	Context        string       `json:"context,omitempty"`
	Iterations     []*Iteration `json:"iterations"`
	Status         Status       `json:"status"`
	FinalAnswer    string       `json:"finalAnswer,omitempty"`
	Error          string       `json:"error,omitempty"`
	MaxIterations  int          `json:"maxIterations,omitempty"`
	MaxDepth       int          `json:"maxDepth,omitempty"`
	CurrentDepth   int          `json:"currentDepth"`
	StartedAt      time.Time    `json:"startedAt"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
	LLMCalls       int          `json:"llmCalls"`
	CodeExecutions int          `json:"codeExecutions"`
	Environment    string       `json:"environment,omitempty"`
	CodeLanguage   string       `json:"codeLanguage,omitempty"`

	// Version increments on every applied event so consumers can detect
	// change without diffing the tree.
	Version uint64 `json:"version"`
}

func (e *Execution) clone() *Execution {
	dup := *e
	return &dup
}

// Find returns the iteration with the given id at any depth, or nil.
func (e *Execution) Find(id string) *Iteration {
	return findNode(e.Iterations, id)
}

func findNode(nodes []*Iteration, id string) *Iteration {
	for _, node := range nodes {
		if node.ID == id {
			return node
		}
		if found := findNode(node.NestedQueries, id); found != nil {
			return found
		}
	}
	return nil
}
