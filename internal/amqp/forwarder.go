package amqp

import (
	"context"
	"sync/atomic"
	"time"

	"minshare/internal/events"
	"minshare/internal/log"
)

// Publisher sends one status change to the feed.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, msg *StatusChangedMessage) error
}

// Forwarder relays hub changes to a Publisher from its own goroutine, so a
// slow or absent broker never delays a member's write. Publish failures are
// logged and dropped; the store stays authoritative and the report worker
// re-exports periodically.
type Forwarder struct {
	pub     Publisher
	queue   chan *StatusChangedMessage
	logger  *log.Logger
	now     func() time.Time
	dropped int64
	failed  int64
	sent    int64
}

// NewForwarder buffers up to size pending messages.
func NewForwarder(pub Publisher, size int, logger *log.Logger) *Forwarder {
	if size <= 0 {
		size = 256
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &Forwarder{
		pub:    pub,
		queue:  make(chan *StatusChangedMessage, size),
		logger: logger.WithComponent(log.ComponentAMQP),
		now:    time.Now,
	}
}

// Listen is an events.Listener that enqueues the change without blocking.
func (f *Forwarder) Listen(ctx context.Context, c events.Change) {
	msg := NewStatusChangedMessage(c, f.now())
	select {
	case f.queue <- msg:
	default:
		atomic.AddInt64(&f.dropped, 1)
		f.logger.WarnContext(ctx, "Change feed buffer full, dropping message",
			log.FieldMemberID, msg.MemberID,
			log.FieldPeriod, string(msg.Period),
			log.FieldOperation, msg.Operation.String())
	}
}

// Attach registers the forwarder on hub.
func (f *Forwarder) Attach(hub *events.Hub) {
	hub.OnChange(f.Listen)
}

// Run publishes queued messages until ctx is done, then flushes what is
// already buffered with a short deadline.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			f.drain()
			return nil
		case msg := <-f.queue:
			f.publish(ctx, msg)
		}
	}
}

func (f *Forwarder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case msg := <-f.queue:
			f.publish(ctx, msg)
		default:
			return
		}
	}
}

func (f *Forwarder) publish(ctx context.Context, msg *StatusChangedMessage) {
	if err := f.pub.PublishStatusChanged(ctx, msg); err != nil {
		atomic.AddInt64(&f.failed, 1)
		f.logger.ErrorContext(ctx, "Failed to publish status change",
			log.NewFields().
				WithStatusKey(msg.MemberID, string(msg.Period)).
				WithOperation(msg.Operation.String()).
				WithError(err).
				With("error_type", log.ErrorTypeNetwork).
				ToSlice()...)
		return
	}
	atomic.AddInt64(&f.sent, 1)
}

// ForwarderStats counts messages by outcome.
type ForwarderStats struct {
	Sent    int64
	Failed  int64
	Dropped int64
}

func (f *Forwarder) Stats() ForwarderStats {
	return ForwarderStats{
		Sent:    atomic.LoadInt64(&f.sent),
		Failed:  atomic.LoadInt64(&f.failed),
		Dropped: atomic.LoadInt64(&f.dropped),
	}
}
