// Package stream consumes a live text/event-stream response and forwards
// complete framed records through the envelope decoder to a handler.
package stream

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"rlmtrace/internal/events"
	"rlmtrace/internal/logging"
	"rlmtrace/internal/observability"
)

// TransportError is a stream-level failure: the stream could not be opened
// or died mid-read. It surfaces once per run; decode problems never become
// transport errors.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Handler receives each decoded event in arrival order.
type Handler func(events.Event)

// RecordSink observes every complete framed record before decoding, e.g.
// for journaling.
type RecordSink func(events.Record)

// Consumer reads one live stream and feeds one trace. It holds no semantic
// knowledge of events beyond framing.
type Consumer struct {
	client     *http.Client
	logger     logging.Logger
	metrics    *observability.Metrics
	recordSink RecordSink
}

// Option configures a Consumer.
type Option func(*Consumer)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Consumer) {
		if client != nil {
			c.client = client
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(c *Consumer) { c.logger = logging.OrNop(logger) }
}

func WithMetrics(metrics *observability.Metrics) Option {
	return func(c *Consumer) { c.metrics = metrics }
}

func WithRecordSink(sink RecordSink) Option {
	return func(c *Consumer) { c.recordSink = sink }
}

// NewConsumer creates a stream consumer. The default HTTP client carries no
// overall timeout; a live stream stays open until the producer finishes or
// the context is cancelled.
func NewConsumer(opts ...Option) *Consumer {
	c := &Consumer{
		client: &http.Client{},
		logger: logging.NewComponentLogger("StreamConsumer"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run opens the stream and consumes it until EOF, error, or cancellation.
// Cancellation is not an error: Run returns the context's error unwrapped
// so callers can tell a deliberate stop from a dead transport. Events
// decoded before the stop are always delivered.
func (c *Consumer) Run(ctx context.Context, url string, handle Handler) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &TransportError{Op: "connect", Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.metrics.TransportError(ctx)
		return &TransportError{Op: "connect", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		c.metrics.TransportError(ctx)
		return &TransportError{
			Op:  "connect",
			Err: fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	c.logger.Info("Stream established: %s", url)
	return c.consume(ctx, resp.Body, handle)
}

// consume frames the byte stream into records. A record accumulates an
// optional event line and data lines until the blank-line terminator; a
// trailing unterminated record at EOF is incomplete and never emitted.
func (c *Consumer) consume(ctx context.Context, r io.Reader, handle Handler) error {
	scanner := newStreamScanner(r)

	var rec events.Record
	haveData := false
	flush := func() {
		if haveData {
			c.dispatch(ctx, rec, handle)
		}
		rec = events.Record{}
		haveData = false
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		switch {
		case line == "":
			flush()
		case strings.HasPrefix(line, ":"):
			// Comment line (heartbeat); keep any pending record.
		case strings.HasPrefix(line, "event:"):
			rec.Event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if haveData {
				rec.Data += "\n" + data
			} else {
				rec.Data = data
			}
			haveData = true
		default:
			// Unknown field; tolerated for forward compatibility.
		}
	}

	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.metrics.TransportError(ctx)
		return &TransportError{Op: "read", Err: err}
	}
	return ctx.Err()
}

func (c *Consumer) dispatch(ctx context.Context, rec events.Record, handle Handler) {
	if c.recordSink != nil {
		c.recordSink(rec)
	}
	ev, ok := events.Decode(rec)
	if !ok {
		c.metrics.RecordDropped(ctx)
		c.logger.Debug("Dropped unrecognized record: event=%q len=%d", rec.Event, len(rec.Data))
		return
	}
	handle(ev)
}
