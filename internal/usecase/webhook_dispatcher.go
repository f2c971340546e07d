package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/wekeepgrowing/carservice-backend/internal/config"
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/provider"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/repository"
)

// Envelope is the JSON body posted to webhook receivers.
type Envelope struct {
	EventID   string          `json:"event_id"`
	EventType model.EventType `json:"event_type"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// WebhookDispatcher turns domain events into webhook events (an outbox written in
// the producer's transaction) and delivers them from a bounded worker pool.
type WebhookDispatcher struct {
	tx       repository.TransactionManager
	webhooks repository.WebhookRepository
	sender   provider.WebhookSender
	cipher   provider.SecretCipher
	cfg      config.WebhookConfig
	clock    Clock
	logger   *zap.Logger

	wake chan struct{}
	jobs chan model.WebhookEvent

	mu       sync.Mutex
	inflight map[int64]struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewWebhookDispatcher(
	tx repository.TransactionManager,
	webhooks repository.WebhookRepository,
	sender provider.WebhookSender,
	cipher provider.SecretCipher,
	cfg config.WebhookConfig,
	logger *zap.Logger,
) *WebhookDispatcher {
	return &WebhookDispatcher{
		tx:       tx,
		webhooks: webhooks,
		sender:   sender,
		cipher:   cipher,
		cfg:      cfg,
		clock:    systemClock,
		logger:   logger.Named("webhook"),
		wake:     make(chan struct{}, 1),
		jobs:     make(chan model.WebhookEvent, cfg.QueueSize),
		inflight: make(map[int64]struct{}),
	}
}

func (d *WebhookDispatcher) WithClock(clock Clock) *WebhookDispatcher {
	d.clock = clock
	return d
}

// Publish enqueues event for every active configuration of its dealer that
// subscribes to it. It runs in a savepoint of the caller's transaction; a failure
// is logged and never reaches the caller.
func (d *WebhookDispatcher) Publish(ctx context.Context, event model.DomainEvent) {
	err := d.tx.RunInTransaction(ctx, func(ctx context.Context) error {
		configs, err := d.webhooks.ListActiveConfigs(ctx, event.DealerID)
		if err != nil {
			return err
		}

		var payload []byte
		var rows []*model.WebhookEvent
		now := d.clock()
		for i := range configs {
			if !configs[i].Subscribes(event.Type) {
				continue
			}
			if payload == nil {
				if payload, err = json.Marshal(event.Payload); err != nil {
					return fmt.Errorf("failed to encode payload: %w", err)
				}
			}
			rows = append(rows, &model.WebhookEvent{
				ID:              uuid.NewString(),
				ConfigurationID: configs[i].ID,
				DealerID:        event.DealerID,
				DomainEventID:   event.ID,
				EventType:       event.Type,
				Payload:         datatypes.JSON(payload),
				Status:          model.WebhookStatusPending,
				MaxAttempts:     d.cfg.MaxAttempts,
				NextAttemptAt:   now,
				CreatedAt:       event.OccurredAt,
			})
		}
		return d.webhooks.CreateEvents(ctx, rows)
	})
	if err != nil {
		d.logger.Error("Failed to enqueue webhook events",
			zap.String("domain_event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.Int64("dealer_id", event.DealerID),
			zap.Error(err))
	}
}

// Notify wakes the dispatch loop once the producing transaction has committed.
func (d *WebhookDispatcher) Notify(_ context.Context, _ ...model.DomainEvent) {
	d.Wake()
}

// Wake never blocks; wakes coalesce while the loop is busy.
func (d *WebhookDispatcher) Wake() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Start launches the dispatch loop and the worker pool.
func (d *WebhookDispatcher) Start(ctx context.Context) {
	ctx, d.cancel = context.WithCancel(ctx)

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}

	d.wg.Add(1)
	go d.loop(ctx)

	d.logger.Info("Webhook dispatcher started",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue_size", d.cfg.QueueSize))
	d.Wake()
}

// Stop waits for in-flight deliveries. Events still queued were never claimed
// and stay pending.
func (d *WebhookDispatcher) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
	d.logger.Info("Webhook dispatcher stopped")
}

func (d *WebhookDispatcher) loop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-d.wake:
		}
		if err := d.dispatch(ctx); err != nil && ctx.Err() == nil {
			d.logger.Error("Webhook dispatch pass failed", zap.Error(err))
		}
	}
}

// dispatch queues due events, keeping one event per dealer in flight. Events
// are claimed by the worker that picks them up, so time spent queued never
// counts against the delivery lock.
func (d *WebhookDispatcher) dispatch(ctx context.Context) error {
	due, err := d.webhooks.ListDue(ctx, d.clock(), d.cfg.BatchSize)
	if err != nil {
		return err
	}

	for i := range due {
		if len(d.jobs) == cap(d.jobs) {
			return nil
		}
		if !d.reserveDealer(due[i].DealerID) {
			continue
		}
		d.jobs <- due[i]
	}
	return nil
}

func (d *WebhookDispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-d.jobs:
			if ctx.Err() == nil {
				if _, err := d.claimAndDeliver(ctx, &event); err != nil {
					d.logger.Error("Failed to claim webhook event",
						zap.String("webhook_event_id", event.ID), zap.Error(err))
				}
			}
			d.releaseDealer(event.DealerID)
			d.Wake()
		}
	}
}

// claimAndDeliver makes one attempt when event is still pending with attempts
// left. It reports whether an attempt was made.
func (d *WebhookDispatcher) claimAndDeliver(ctx context.Context, event *model.WebhookEvent) (bool, error) {
	claimed, err := d.webhooks.Claim(ctx, event, d.clock())
	if err != nil || !claimed {
		return false, err
	}
	d.deliver(ctx, event)
	return true, nil
}

func (d *WebhookDispatcher) reserveDealer(dealerID int64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inflight[dealerID]; busy {
		return false
	}
	d.inflight[dealerID] = struct{}{}
	return true
}

func (d *WebhookDispatcher) releaseDealer(dealerID int64) {
	d.mu.Lock()
	delete(d.inflight, dealerID)
	d.mu.Unlock()
}

// Recover handles deliveries abandoned by a crashed worker. Their attempt stays
// counted: events with attempts left return to pending and wake the loop, the
// others fail.
func (d *WebhookDispatcher) Recover(ctx context.Context) (int64, error) {
	now := d.clock()
	released, exhausted, err := d.webhooks.ReleaseStale(ctx, now.Add(-2*d.cfg.Timeout), now)
	if err != nil {
		return released, err
	}
	if exhausted > 0 {
		d.logger.Error("Failed abandoned webhook deliveries with no attempts left", zap.Int64("count", exhausted))
	}
	if released > 0 {
		d.logger.Warn("Released stale webhook deliveries", zap.Int64("count", released))
		d.Wake()
	}
	return released, nil
}

// DeliverDue claims and delivers every due event on the calling goroutine and
// returns how many attempts were made.
func (d *WebhookDispatcher) DeliverDue(ctx context.Context) (int, error) {
	due, err := d.webhooks.ListDue(ctx, d.clock(), d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	attempted := 0
	for i := range due {
		ok, err := d.claimAndDeliver(ctx, &due[i])
		if err != nil {
			return attempted, err
		}
		if ok {
			attempted++
		}
	}
	return attempted, nil
}

// deliver makes one attempt for a claimed event, logs it and settles the event's
// next state. Failures stay inside the dispatcher.
func (d *WebhookDispatcher) deliver(ctx context.Context, event *model.WebhookEvent) {
	ctx = context.WithoutCancel(ctx)
	logger := d.logger.With(
		zap.String("webhook_event_id", event.ID),
		zap.String("event_type", string(event.EventType)),
		zap.Int64("dealer_id", event.DealerID),
		zap.Int("attempt", event.Attempts))

	cfg, err := d.webhooks.GetConfig(ctx, event.ConfigurationID)
	if err != nil {
		logger.Error("Webhook configuration unavailable", zap.Error(err))
		d.settle(ctx, logger, event, &model.WebhookLog{Error: err.Error()}, false, false)
		return
	}
	if !cfg.IsActive {
		d.settle(ctx, logger, event, &model.WebhookLog{URL: cfg.URL, Error: "webhook configuration is inactive"}, false, true)
		return
	}

	entry := &model.WebhookLog{URL: cfg.URL}
	secret, err := d.cipher.Open(cfg.SecretCiphertext, cfg.SecretIV, SecretOwner(cfg.DealerID))
	if err != nil {
		entry.Error = err.Error()
		d.settle(ctx, logger, event, entry, false, false)
		return
	}

	body, err := json.Marshal(Envelope{
		EventID:   event.ID,
		EventType: event.EventType,
		CreatedAt: event.CreatedAt,
		Payload:   json.RawMessage(event.Payload),
	})
	if err != nil {
		entry.Error = err.Error()
		d.settle(ctx, logger, event, entry, false, false)
		return
	}

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	started := time.Now()
	resp, err := d.sender.Send(callCtx, &provider.WebhookRequest{
		URL:       cfg.URL,
		Secret:    secret,
		EventID:   event.ID,
		EventType: string(event.EventType),
		Body:      body,
	})
	cancel()
	entry.DurationMs = time.Since(started).Milliseconds()

	if resp != nil {
		status := resp.StatusCode
		entry.StatusCode = &status
		entry.ResponseSnippet = resp.Snippet
	}
	if err != nil {
		entry.Error = err.Error()
	}
	d.settle(ctx, logger, event, entry, err == nil && resp.Succeeded(), false)
}

// settle writes the attempt's log row and moves the event to delivered, failed or
// back to pending. giveUp fails the event regardless of attempts left.
func (d *WebhookDispatcher) settle(ctx context.Context, logger *zap.Logger, event *model.WebhookEvent, entry *model.WebhookLog, succeeded, giveUp bool) {
	now := d.clock()
	entry.EventID = event.ID
	entry.Attempt = event.Attempts
	entry.Succeeded = succeeded
	entry.CreatedAt = now
	if err := d.webhooks.CreateLog(ctx, entry); err != nil {
		logger.Error("Failed to write webhook log", zap.Error(err))
	}

	if succeeded {
		if err := d.webhooks.MarkDelivered(ctx, event.ID, now); err != nil {
			logger.Error("Failed to mark webhook delivered", zap.Error(err))
			return
		}
		logger.Info("Webhook delivered", zap.Int64("duration_ms", entry.DurationMs))
		return
	}

	failure := &domainErrors.WebhookDeliveryError{EventID: event.ID, Attempt: event.Attempts}
	if entry.StatusCode != nil {
		failure.StatusCode = *entry.StatusCode
	}
	if entry.Error != "" {
		failure.Cause = errors.New(entry.Error)
	}

	if giveUp || event.Attempts >= event.MaxAttempts {
		d.finishFailed(ctx, logger, event, failure.Error())
		return
	}

	next := now.Add(d.Backoff(event.Attempts))
	if err := d.webhooks.Reschedule(ctx, event.ID, next, failure.Error()); err != nil {
		logger.Error("Failed to reschedule webhook", zap.Error(err))
		return
	}
	logger.Warn("Webhook attempt failed, retry scheduled",
		zap.Error(failure),
		zap.Time("next_attempt_at", next))
}

func (d *WebhookDispatcher) finishFailed(ctx context.Context, logger *zap.Logger, event *model.WebhookEvent, reason string) {
	if err := d.webhooks.MarkFailed(ctx, event.ID, d.clock(), reason); err != nil {
		logger.Error("Failed to mark webhook failed", zap.Error(err))
		return
	}
	logger.Error("Webhook delivery failed permanently", zap.String("reason", reason))
}

// Backoff is the wait after the given failed attempt: base, 2×base, 4×base...
func (d *WebhookDispatcher) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return d.cfg.BaseBackoff * time.Duration(1<<(attempt-1))
}

// SecretOwner is the associated data sealing a dealer's webhook secret.
func SecretOwner(dealerID int64) string {
	return fmt.Sprintf("dealer:%d", dealerID)
}
