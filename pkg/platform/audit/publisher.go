package audit

import (
	"context"
	"time"
)

// Publisher is what services emit through. Emit must be cheap and must never
// fail a domain operation: implementations log-and-drop on sink errors.
type Publisher interface {
	Emit(ctx context.Context, event Event) error
}

// StorePublisher appends events to a Store, stamping the timestamp when the
// emitter left it zero.
type StorePublisher struct {
	store Store
}

func NewStorePublisher(store Store) *StorePublisher {
	return &StorePublisher{store: store}
}

func (p *StorePublisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	return p.store.Append(ctx, event)
}

// ChannelPublisher hands events to a background worker through a buffered
// channel. A full inbox drops the event rather than blocking the request
// path.
type ChannelPublisher struct {
	inbox chan<- Event
}

func NewChannelPublisher(inbox chan<- Event) *ChannelPublisher {
	return &ChannelPublisher{inbox: inbox}
}

func (p *ChannelPublisher) Emit(_ context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
	}
	return nil
}
