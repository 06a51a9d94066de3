package trace

import (
	"time"

	"rlmtrace/internal/events"
)

// Apply folds one event into the execution and returns the resulting value.
// The input is never mutated: changed nodes are copied, everything off the
// mutated path is shared with the previous value. Events that reference an
// unknown iteration, arrive after a terminal status, or would change
// nothing are no-ops that return the input untouched.
func Apply(exec *Execution, ev events.Event) *Execution {
	return ApplyAt(exec, ev, time.Now())
}

// ApplyAt is Apply with an explicit apply-time. Timestamps on the trace are
// always assigned from it, never from payload clocks, so a skewed producer
// cannot distort durations.
func ApplyAt(exec *Execution, ev events.Event, now time.Time) *Execution {
	switch e := ev.(type) {
	case *events.ExecutionStart:
		return applyExecutionStart(exec, e, now)
	case *events.ExecutionComplete:
		return applyTerminal(exec, StatusCompleted, "", now)
	case *events.Error:
		return applyTerminal(exec, StatusFailed, e.Message, now)
	case *events.IterationStart:
		return applyIterationStart(exec, e, now)
	case *events.IterationComplete:
		return applyIterationComplete(exec, e, now)
	case *events.CodeExtracted:
		return applyCodeExtracted(exec, e)
	case *events.ReplExecuting:
		return applyReplExecuting(exec)
	case *events.ReplResult:
		return applyReplResult(exec, e)
	case *events.FinalDetected:
		return applyFinalDetected(exec, e)
	default:
		return exec
	}
}

func applyExecutionStart(exec *Execution, e *events.ExecutionStart, now time.Time) *Execution {
	if exec != nil && exec.Status.Terminal() {
		return exec
	}
	version := uint64(1)
	if exec != nil {
		version = exec.Version + 1
	}
	return &Execution{
		ID:            e.ID,
		Query:         e.Query,
		Context:       e.Context,
		Iterations:    []*Iteration{},
		Status:        StatusRunning,
		MaxIterations: e.MaxIterations,
		MaxDepth:      e.MaxDepth,
		StartedAt:     now,
		Environment:   e.Environment,
		CodeLanguage:  e.CodeLanguage,
		Version:       version,
	}
}

func applyTerminal(exec *Execution, status Status, message string, now time.Time) *Execution {
	if exec == nil || !CanTransition(exec.Status, status) {
		return exec
	}
	next := exec.clone()
	next.Status = status
	if message != "" {
		next.Error = message
	}
	completed := now
	next.CompletedAt = &completed
	next.Version++
	return next
}

// MarkFailed records a caller-observed failure (e.g. a transport error).
// Terminal statuses are never overwritten.
func MarkFailed(exec *Execution, message string, now time.Time) *Execution {
	return applyTerminal(exec, StatusFailed, message, now)
}

// MarkTimeout records that the run exceeded its deadline.
func MarkTimeout(exec *Execution, now time.Time) *Execution {
	return applyTerminal(exec, StatusTimeout, "", now)
}

func applyIterationStart(exec *Execution, e *events.IterationStart, now time.Time) *Execution {
	if exec == nil {
		return exec
	}

	node := &Iteration{
		ID:            e.ID,
		ParentID:      e.ParentID,
		Number:        e.Number,
		Input:         e.Input,
		NestedQueries: []*Iteration{},
		StartedAt:     now,
	}

	if e.ParentID == "" {
		next := exec.clone()
		next.Iterations = appendNode(exec.Iterations, node)
		next.LLMCalls++
		next.Version++
		return next
	}

	// Depth comes from the parent, not the payload, so the child invariant
	// holds even against a confused producer.
	childDepth := 0
	list, changed := updateNode(exec.Iterations, e.ParentID, func(parent *Iteration) *Iteration {
		child := node.clone()
		child.Depth = parent.Depth + 1
		childDepth = child.Depth
		dup := parent.clone()
		dup.NestedQueries = appendNode(parent.NestedQueries, child)
		return dup
	})
	if !changed {
		// Unknown parent: the whole event is a no-op.
		return exec
	}

	next := exec.clone()
	next.Iterations = list
	next.LLMCalls++
	if childDepth > next.CurrentDepth {
		next.CurrentDepth = childDepth
	}
	next.Version++
	return next
}

func applyIterationComplete(exec *Execution, e *events.IterationComplete, now time.Time) *Execution {
	return updateExecution(exec, e.ID, func(it *Iteration) *Iteration {
		done := it.CompletedAt != nil
		if done &&
			(e.Response == "" || it.Response == e.Response) &&
			(e.Code == "" || it.Code == e.Code) &&
			(!e.IsFinal || it.IsFinal) {
			return it
		}
		dup := it.clone()
		if e.Response != "" {
			dup.Response = e.Response
		}
		if e.Code != "" {
			dup.Code = e.Code
		}
		if e.IsFinal {
			dup.IsFinal = true
		}
		if dup.CompletedAt == nil {
			completed := now
			dup.CompletedAt = &completed
		}
		return dup
	})
}

func applyCodeExtracted(exec *Execution, e *events.CodeExtracted) *Execution {
	return updateExecution(exec, e.IterationID, func(it *Iteration) *Iteration {
		if it.Code == e.Code {
			return it
		}
		dup := it.clone()
		dup.Code = e.Code
		return dup
	})
}

func applyReplExecuting(exec *Execution) *Execution {
	if exec == nil {
		return exec
	}
	next := exec.clone()
	next.CodeExecutions++
	next.Version++
	return next
}

func applyReplResult(exec *Execution, e *events.ReplResult) *Execution {
	result := &ReplResult{
		Success:     e.Success,
		Stdout:      e.Stdout,
		Stderr:      e.Stderr,
		ReturnValue: e.ReturnValue,
		DurationMs:  e.DurationMs,
	}
	if e.Error != nil {
		result.Error = &ReplError{
			Type:    e.Error.Type,
			Message: e.Error.Message,
			Stack:   e.Error.Stack,
			Line:    e.Error.Line,
		}
	}
	return updateExecution(exec, e.IterationID, func(it *Iteration) *Iteration {
		if replResultEqual(it.ReplResult, result) {
			return it
		}
		dup := it.clone()
		dup.ReplResult = result
		return dup
	})
}

func applyFinalDetected(exec *Execution, e *events.FinalDetected) *Execution {
	if exec == nil || exec.Find(e.IterationID) == nil {
		return exec
	}

	list, changed := updateNode(exec.Iterations, e.IterationID, func(it *Iteration) *Iteration {
		if it.IsFinal && it.FinalAnswer == e.Answer {
			return it
		}
		dup := it.clone()
		dup.IsFinal = true
		dup.FinalAnswer = e.Answer
		return dup
	})
	if !changed && exec.FinalAnswer == e.Answer {
		return exec
	}

	next := exec.clone()
	next.Iterations = list
	next.FinalAnswer = e.Answer
	next.Version++
	return next
}

// updateExecution runs fn on the identified node and rebuilds the path to
// it, or returns exec untouched when the id is unknown or fn declines.
func updateExecution(exec *Execution, id string, fn func(*Iteration) *Iteration) *Execution {
	if exec == nil {
		return exec
	}
	list, changed := updateNode(exec.Iterations, id, fn)
	if !changed {
		return exec
	}
	next := exec.clone()
	next.Iterations = list
	next.Version++
	return next
}

// updateNode searches nodes for id, applying fn to the match. The returned
// slice shares every node off the path to the match; fn signals "no change"
// by returning its argument, in which case the original slice comes back.
func updateNode(nodes []*Iteration, id string, fn func(*Iteration) *Iteration) ([]*Iteration, bool) {
	for i, node := range nodes {
		if node.ID == id {
			updated := fn(node)
			if updated == node {
				return nodes, false
			}
			return replaceAt(nodes, i, updated), true
		}
		if len(node.NestedQueries) == 0 {
			continue
		}
		children, changed := updateNode(node.NestedQueries, id, fn)
		if !changed {
			continue
		}
		dup := node.clone()
		dup.NestedQueries = children
		return replaceAt(nodes, i, dup), true
	}
	return nodes, false
}

func replaceAt(nodes []*Iteration, i int, node *Iteration) []*Iteration {
	out := make([]*Iteration, len(nodes))
	copy(out, nodes)
	out[i] = node
	return out
}

func appendNode(nodes []*Iteration, node *Iteration) []*Iteration {
	out := make([]*Iteration, 0, len(nodes)+1)
	out = append(out, nodes...)
	return append(out, node)
}

func replResultEqual(a, b *ReplResult) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Success != b.Success || a.Stdout != b.Stdout || a.Stderr != b.Stderr ||
		a.DurationMs != b.DurationMs || string(a.ReturnValue) != string(b.ReturnValue) {
		return false
	}
	if a.Error == nil || b.Error == nil {
		return a.Error == b.Error
	}
	return *a.Error == *b.Error
}
