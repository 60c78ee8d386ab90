// Package events carries committed workflow transitions to the notification
// dispatcher and the audit ledger. Publishing is asynchronous so a slow
// consumer never blocks a transition, but a single worker drains the queue
// in publish order, which preserves per-entity history ordering.
package events

import (
	"context"
	"sync"
	"time"

	"relieflink-backend/internal/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Event types
const (
	TypeRequestCreated   = "request.created"
	TypeRequestApproved  = "request.approved"
	TypeRequestRejected  = "request.rejected"
	TypeRequestCancelled = "request.cancelled"
	TypeRequestMatched   = "request.matched"
	TypeRequestNoMatch   = "request.no_match"

	TypeDistributionCreated  = "distribution.created"
	TypeDistributionAdvanced = "distribution.advanced"

	TypeResourceLowStock = "resource.low_stock"
	TypeEmergency        = "emergency.broadcast"
)

// Event is a snapshot of one committed transition. Entities travel by value:
// consumers never see live references into shared state.
type Event struct {
	Type string
	At   time.Time

	ActorID *primitive.ObjectID

	Request      *models.ReliefRequest
	Distribution *models.Distribution
	Resource     *models.Resource

	// Emergency broadcast only
	Area       string
	Message    string
	Recipients []models.User
}

// Handler consumes events. Errors are logged, never propagated to the
// publisher.
type Handler interface {
	HandleEvent(ctx context.Context, event Event) error
}

type Bus struct {
	handlers []Handler
	queue    chan Event
	timeout  time.Duration
	log      *logrus.Entry

	closeOnce sync.Once
	done      chan struct{}
}

// NewBus creates a bus whose worker gives each handler at most timeout per
// event. Call Run (usually via go) and Close on shutdown.
func NewBus(buffer int, timeout time.Duration) *Bus {
	if buffer < 1 {
		buffer = 256
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Bus{
		queue:   make(chan Event, buffer),
		timeout: timeout,
		log:     logrus.WithField("component", "events"),
		done:    make(chan struct{}),
	}
}

// Subscribe registers a handler. Not safe to call after Run started.
func (b *Bus) Subscribe(handler Handler) {
	b.handlers = append(b.handlers, handler)
}

// Publish enqueues the event. Blocks only when the buffer is full, which
// bounds memory instead of dropping history.
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	b.queue <- event
}

// Run drains the queue until Close. Each handler sees events in the exact
// order they were published.
func (b *Bus) Run() {
	defer close(b.done)

	for event := range b.queue {
		b.deliver(event)
	}
}

func (b *Bus) deliver(event Event) {
	for _, handler := range b.handlers {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		if err := handler.HandleEvent(ctx, event); err != nil {
			b.log.WithError(err).WithField("event_type", event.Type).Error("event handler failed")
		}
		cancel()
	}
}

// Close stops accepting events and waits for the queue to drain.
func (b *Bus) Close() {
	b.closeOnce.Do(func() {
		close(b.queue)
	})
	<-b.done
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) HandleEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}
