package server

import (
	"context"
	"sync"

	"rlmtrace/internal/events"
	"rlmtrace/internal/logging"
	"rlmtrace/internal/observability"
)

const clientBufferSize = 100

// Broadcaster fans complete wire records out to connected SSE clients. A
// slow client's buffer fills and its records drop; the live trace is never
// blocked on a reader.
type Broadcaster struct {
	mu      sync.RWMutex
	clients map[chan events.Record]struct{}

	logger  logging.Logger
	metrics *observability.Metrics

	statsMu sync.Mutex
	sent    int64
	dropped int64
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster(logger logging.Logger, metrics *observability.Metrics) *Broadcaster {
	return &Broadcaster{
		clients: make(map[chan events.Record]struct{}),
		logger:  logging.OrNop(logger),
		metrics: metrics,
	}
}

// Publish sends the record to every client without blocking.
func (b *Broadcaster) Publish(rec events.Record) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for client := range b.clients {
		select {
		case client <- rec:
			b.countSent()
		default:
			b.countDropped()
		}
	}
}

// Subscribe registers a client channel; the returned func unregisters it.
func (b *Broadcaster) Subscribe() (<-chan events.Record, func()) {
	client := make(chan events.Record, clientBufferSize)

	b.mu.Lock()
	b.clients[client] = struct{}{}
	count := len(b.clients)
	b.mu.Unlock()

	b.metrics.ClientConnected(context.Background())
	b.logger.Debug("SSE client subscribed (%d active)", count)

	return client, func() {
		b.mu.Lock()
		delete(b.clients, client)
		b.mu.Unlock()
		b.metrics.ClientDisconnected(context.Background())
	}
}

// Stats reports totals since startup: records delivered and records dropped
// on full client buffers.
func (b *Broadcaster) Stats() (sent, dropped int64) {
	b.statsMu.Lock()
	defer b.statsMu.Unlock()
	return b.sent, b.dropped
}

func (b *Broadcaster) countSent() {
	b.statsMu.Lock()
	b.sent++
	b.statsMu.Unlock()
}

func (b *Broadcaster) countDropped() {
	b.statsMu.Lock()
	b.dropped++
	b.statsMu.Unlock()
}
