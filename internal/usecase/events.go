package usecase

import (
	"context"
	"time"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
)

// EventPublisher records a domain event for webhook delivery. It runs inside the
// caller's transaction and never fails the caller.
type EventPublisher interface {
	Publish(ctx context.Context, event model.DomainEvent)
}

// EventNotifier is told about events once their transaction has committed.
type EventNotifier interface {
	Notify(ctx context.Context, events ...model.DomainEvent)
}

// Notifiers fans a notification out to several notifiers.
type Notifiers []EventNotifier

func (n Notifiers) Notify(ctx context.Context, events ...model.DomainEvent) {
	for _, notifier := range n {
		notifier.Notify(ctx, events...)
	}
}

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, model.DomainEvent) {}

// Clock returns the current time. Services only ever see UTC.
type Clock func() time.Time

func systemClock() time.Time {
	return time.Now().UTC()
}
