package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	pkgmessaging "github.com/wekeepgrowing/carservice-backend/pkg/messaging"
)

// Waker is woken when another instance has committed events.
type Waker interface {
	Wake()
}

type eventNotice struct {
	Origin string        `json:"origin"`
	Events []noticeEvent `json:"events"`
	SentAt time.Time     `json:"sent_at"`
}

type noticeEvent struct {
	ID       string          `json:"id"`
	Type     model.EventType `json:"type"`
	DealerID int64           `json:"dealer_id"`
}

// Broadcaster shares committed-event notices between service instances over a
// redis channel so every instance's dispatcher picks up new webhook events
// without waiting for its poll interval.
type Broadcaster struct {
	client  pkgmessaging.RedisClient
	channel string
	origin  string
	logger  *zap.Logger
}

func NewBroadcaster(client pkgmessaging.RedisClient, channel string, logger *zap.Logger) *Broadcaster {
	return &Broadcaster{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger.Named("broadcaster"),
	}
}

// Notify publishes a notice for events. Publish errors are logged only.
func (b *Broadcaster) Notify(ctx context.Context, events ...model.DomainEvent) {
	if len(events) == 0 {
		return
	}
	notice := eventNotice{Origin: b.origin, SentAt: time.Now().UTC()}
	for _, e := range events {
		notice.Events = append(notice.Events, noticeEvent{ID: e.ID, Type: e.Type, DealerID: e.DealerID})
	}
	if err := b.client.Publish(context.WithoutCancel(ctx), b.channel, notice); err != nil {
		b.logger.Warn("Failed to broadcast event notice",
			zap.String("channel", b.channel),
			zap.Int("events", len(events)),
			zap.Error(err))
	}
}

// Listen wakes waker for every notice published by another instance until ctx
// is cancelled.
func (b *Broadcaster) Listen(ctx context.Context, waker Waker) error {
	messages, err := b.client.Subscribe(ctx, b.channel)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			var notice eventNotice
			if err := json.Unmarshal(msg.Payload, &notice); err != nil {
				b.logger.Warn("Dropping malformed event notice", zap.ByteString("payload", msg.Payload), zap.Error(err))
				continue
			}
			if notice.Origin == b.origin {
				continue
			}
			b.logger.Debug("Event notice received",
				zap.String("origin", notice.Origin),
				zap.Int("events", len(notice.Events)))
			waker.Wake()
		}
	}()

	b.logger.Info("Listening for event notices", zap.String("channel", b.channel))
	return nil
}
