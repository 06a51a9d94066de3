// Package events defines the typed event stream emitted by a live recursive
// execution service, plus the envelope decoding that turns framed wire
// records into those types.
package events

import "rlmtrace/internal/jsonx"

// Type identifies one event variant on the wire.
type Type string

const (
	TypeExecutionStart    Type = "execution_start"
	TypeExecutionComplete Type = "execution_complete"
	TypeIterationStart    Type = "iteration_start"
	TypeIterationComplete Type = "iteration_complete"
	TypeCodeExtracted     Type = "code_extracted"
	TypeReplExecuting     Type = "repl_executing"
	TypeReplResult        Type = "repl_result"
	TypeFinalDetected     Type = "final_detected"
	TypeError             Type = "error"
)

// Event is the tagged union consumed by the trace reducer. Each variant
// carries only the payload needed to update its slice of the trace.
type Event interface {
	EventType() Type
}

// ExecutionStart announces a fresh run.
type ExecutionStart struct {
	ID            string `json:"id"`
	Query         string `json:"query"`
	Context       string `json:"context,omitempty"`
	MaxIterations int    `json:"maxIterations,omitempty"`
	MaxDepth      int    `json:"maxDepth,omitempty"`
	Environment   string `json:"environment,omitempty"`
	CodeLanguage  string `json:"codeLanguage,omitempty"`
}

func (*ExecutionStart) EventType() Type { return TypeExecutionStart }

// ExecutionComplete marks the run as finished.
type ExecutionComplete struct {
	ID string `json:"id,omitempty"`
}

func (*ExecutionComplete) EventType() Type { return TypeExecutionComplete }

// IterationStart introduces one node of the execution tree.
type IterationStart struct {
	ID       string `json:"id"`
	Number   int    `json:"number"`
	Input    string `json:"input,omitempty"`
	ParentID string `json:"parentId,omitempty"`
	Depth    int    `json:"depth,omitempty"`
}

func (*IterationStart) EventType() Type { return TypeIterationStart }

// IterationComplete carries the fields learned while the iteration ran.
type IterationComplete struct {
	ID       string `json:"id"`
	Response string `json:"response,omitempty"`
	Code     string `json:"code,omitempty"`
	IsFinal  bool   `json:"isFinal,omitempty"`
}

func (*IterationComplete) EventType() Type { return TypeIterationComplete }

// CodeExtracted reports code pulled out of an iteration's response.
type CodeExtracted struct {
	IterationID string `json:"iterationId"`
	Code        string `json:"code"`
}

func (*CodeExtracted) EventType() Type { return TypeCodeExtracted }

// ReplExecuting signals that extracted code is being run. The code text is
// informational only and never stored on the trace.
type ReplExecuting struct {
	IterationID string `json:"iterationId"`
	Code        string `json:"code,omitempty"`
}

func (*ReplExecuting) EventType() Type { return TypeReplExecuting }

// ReplErrorPayload is the structured failure attached to a REPL result.
type ReplErrorPayload struct {
	Type    string `json:"type,omitempty"`
	Message string `json:"message,omitempty"`
	Stack   string `json:"stack,omitempty"`
	Line    int    `json:"line,omitempty"`
}

// ReplResult reports the outcome of one code execution.
type ReplResult struct {
	IterationID string            `json:"iterationId"`
	Success     bool              `json:"success"`
	Stdout      string            `json:"stdout,omitempty"`
	Stderr      string            `json:"stderr,omitempty"`
	ReturnValue jsonx.RawMessage  `json:"returnValue,omitempty"`
	DurationMs  int64             `json:"durationMs,omitempty"`
	Error       *ReplErrorPayload `json:"error,omitempty"`
}

func (*ReplResult) EventType() Type { return TypeReplResult }

// FinalDetected marks an iteration as having produced the final answer.
type FinalDetected struct {
	IterationID  string `json:"iterationId"`
	ResponseType string `json:"responseType,omitempty"`
	Answer       string `json:"answer,omitempty"`
}

func (*FinalDetected) EventType() Type { return TypeFinalDetected }

// Error is an execution-level failure reported by the producer.
type Error struct {
	Message string `json:"message"`
}

func (*Error) EventType() Type { return TypeError }
