package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"golang.org/x/term"

	"rlmtrace/internal/events"
	"rlmtrace/internal/trace"
)

var (
	blue   = color.New(color.FgBlue).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func init() {
	if !isTTY() {
		color.NoColor = true
	}
}

func isTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func errorLine(msg string) string {
	return red("error: " + msg)
}

// eventLine renders one decoded event as a single terminal line.
func eventLine(ev events.Event) string {
	switch e := ev.(type) {
	case *events.ExecutionStart:
		return fmt.Sprintf("%s %s", bold(blue("run")), e.Query)
	case *events.ExecutionComplete:
		return bold(green("run complete"))
	case *events.IterationStart:
		label := fmt.Sprintf("iteration %d", e.Number)
		if e.ParentID != "" {
			label = fmt.Sprintf("sub-query %d", e.Number)
		}
		return fmt.Sprintf("%s%s %s", indentFor(e.Depth), cyan(label), truncate(e.Input, 80))
	case *events.IterationComplete:
		return gray("  iteration done")
	case *events.CodeExtracted:
		return fmt.Sprintf("  %s %s", yellow("code"), truncate(firstLine(e.Code), 80))
	case *events.ReplExecuting:
		return gray("  executing...")
	case *events.ReplResult:
		if e.Success {
			return fmt.Sprintf("  %s %s", green("repl ok"), truncate(firstLine(e.Stdout), 80))
		}
		detail := firstLine(e.Stderr)
		if detail == "" && e.Error != nil {
			detail = e.Error.Message
		}
		return fmt.Sprintf("  %s %s", red("repl failed"), truncate(detail, 80))
	case *events.FinalDetected:
		return fmt.Sprintf("  %s %s", bold(green("final")), truncate(e.Answer, 80))
	case *events.Error:
		return errorLine(e.Message)
	default:
		return gray(string(ev.EventType()))
	}
}

func printSummary(exec *trace.Execution, stats trace.Stats) {
	if exec == nil {
		fmt.Println(gray("no trace"))
		return
	}

	fmt.Println()
	switch exec.Status {
	case trace.StatusCompleted:
		fmt.Println(bold(green("completed")))
	case trace.StatusFailed:
		fmt.Printf("%s %s\n", bold(red("failed")), exec.Error)
	case trace.StatusTimeout:
		fmt.Println(bold(red("timed out")))
	default:
		fmt.Println(bold(yellow(string(exec.Status))))
	}

	if exec.FinalAnswer != "" {
		fmt.Printf("%s %s\n", bold("answer:"), exec.FinalAnswer)
	}
	fmt.Printf("%s %d iterations, %d sub-queries, %d code executions, depth %d",
		gray("stats:"), stats.TotalIterations, stats.Subcalls, stats.CodeExecutions, stats.MaxDepth)
	if stats.DurationMs > 0 {
		fmt.Printf(", %dms", stats.DurationMs)
	}
	fmt.Println()
}

func indentFor(depth int) string {
	if depth <= 0 {
		return ""
	}
	return strings.Repeat("  ", depth)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
