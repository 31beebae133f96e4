package events

import (
	"sync"

	"occupancy/internal/logger"
	"occupancy/internal/metrics"
	"occupancy/internal/models"
)

// Sink receives lifecycle events. Emit must not block the caller.
type Sink interface {
	Emit(event models.Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Emit(models.Event) {}

// Multi fans an event out to several sinks in order.
type Multi []Sink

func (m Multi) Emit(event models.Event) {
	for _, s := range m {
		if s != nil {
			s.Emit(event)
		}
	}
}

// Func adapts a plain function to a Sink.
type Func func(models.Event)

func (f Func) Emit(event models.Event) { f(event) }

// Queue buffers events as envelopes for the publishing worker pool.
// When the buffer is full the event is dropped and counted.
type Queue struct {
	node string
	ch   chan *models.Envelope

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue holding up to size envelopes stamped with node.
func NewQueue(size int, node string) *Queue {
	if size <= 0 {
		size = 1000
	}
	metrics.EventQueueCapacity.Set(float64(size))
	return &Queue{
		node: node,
		ch:   make(chan *models.Envelope, size),
	}
}

// Emit enqueues the event without blocking.
func (q *Queue) Emit(event models.Event) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.EventsDropped.WithLabelValues("queue").Inc()
		return
	}

	env := models.NewEnvelope(&event, q.node)
	select {
	case q.ch <- env:
		metrics.EventQueueSize.Set(float64(len(q.ch)))
	default:
		metrics.EventsDropped.WithLabelValues("queue").Inc()
		log := logger.WithComponent("event_queue")
		log.Warn().
			Str("event_type", string(event.Type)).
			Str("partition_key", env.PartitionKey).
			Msg("event queue full, dropping event")
	}
}

// C exposes the channel consumed by the worker pool.
func (q *Queue) C() chan *models.Envelope {
	return q.ch
}

// Len reports the number of buffered envelopes.
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close stops accepting events and closes the channel so workers drain and exit.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}
