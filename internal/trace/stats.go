package trace

// Stats are aggregates derived from the current execution value. They are
// recomputed from the tree on demand; the two *Events counters mirror the
// event-driven totals kept on the Execution itself, which count stream
// events rather than surviving structure and may legitimately diverge.
type Stats struct {
	TotalIterations int   `json:"totalIterations"`
	CodeExecutions  int   `json:"codeExecutions"`
	Subcalls        int   `json:"subcalls"`
	MaxDepth        int   `json:"maxDepth"`
	DurationMs      int64 `json:"durationMs"`
	LLMCallEvents   int   `json:"llmCallEvents"`
	CodeExecEvents  int   `json:"codeExecEvents"`
}

// Flatten linearizes the iteration forest depth-first, parents before their
// children, preserving sibling order.
func Flatten(exec *Execution) []*Iteration {
	if exec == nil {
		return nil
	}
	var out []*Iteration
	var walk func(nodes []*Iteration)
	walk = func(nodes []*Iteration) {
		for _, node := range nodes {
			out = append(out, node)
			walk(node.NestedQueries)
		}
	}
	walk(exec.Iterations)
	return out
}

// Collect derives Stats from the execution without mutating it.
func Collect(exec *Execution) Stats {
	if exec == nil {
		return Stats{}
	}

	stats := Stats{
		LLMCallEvents:  exec.LLMCalls,
		CodeExecEvents: exec.CodeExecutions,
	}
	for _, it := range Flatten(exec) {
		stats.TotalIterations++
		if it.Code != "" || it.ReplResult != nil {
			stats.CodeExecutions++
		}
		if it.Depth > 0 {
			stats.Subcalls++
		}
		if it.Depth > stats.MaxDepth {
			stats.MaxDepth = it.Depth
		}
	}
	if !exec.StartedAt.IsZero() && exec.CompletedAt != nil {
		stats.DurationMs = exec.CompletedAt.Sub(exec.StartedAt).Milliseconds()
	}
	return stats
}
