package notify

import (
	"context"
	"sync"
)

// Outbox records events raised inside a transaction. It implements
// Notifier so the code producing events does not care whether delivery is
// deferred. Call Flush after the commit; a rolled back unit of work simply
// drops its outbox.
type Outbox struct {
	mu     sync.Mutex
	events []func(context.Context, Notifier)
}

func NewOutbox() *Outbox {
	return &Outbox{}
}

func (o *Outbox) add(fn func(context.Context, Notifier)) {
	o.mu.Lock()
	o.events = append(o.events, fn)
	o.mu.Unlock()
}

func (o *Outbox) MatchCompleted(_ context.Context, e MatchEvent) {
	o.add(func(ctx context.Context, n Notifier) { n.MatchCompleted(ctx, e) })
}

func (o *Outbox) MatchUpdated(_ context.Context, e MatchEvent) {
	o.add(func(ctx context.Context, n Notifier) { n.MatchUpdated(ctx, e) })
}

func (o *Outbox) BoardAssigned(_ context.Context, e BoardEvent) {
	o.add(func(ctx context.Context, n Notifier) { n.BoardAssigned(ctx, e) })
}

func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.events)
}

// Flush delivers the recorded events in order and empties the outbox.
func (o *Outbox) Flush(ctx context.Context, n Notifier) {
	o.mu.Lock()
	events := o.events
	o.events = nil
	o.mu.Unlock()

	for _, deliver := range events {
		deliver(ctx, n)
	}
}
