package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wekeepgrowing/carservice-backend/internal/config"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/dto"
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/carservice-backend/internal/domain/repository"
	"github.com/wekeepgrowing/carservice-backend/internal/infrastructure/crypto"
	"github.com/wekeepgrowing/carservice-backend/internal/infrastructure/webhook"
	"github.com/wekeepgrowing/carservice-backend/internal/usecase"
)

const testEncryptionKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

var webhookConfig = config.WebhookConfig{
	Workers:      2,
	QueueSize:    16,
	MaxAttempts:  3,
	BaseBackoff:  time.Second,
	Timeout:      200 * time.Millisecond,
	PollInterval: 50 * time.Millisecond,
	BatchSize:    100,
}

type webhookFixture struct {
	*fixture
	cipher     *crypto.AESCipher
	dispatcher *usecase.WebhookDispatcher
	webhooks   *usecase.WebhookService
}

func newWebhookFixture(t *testing.T, wrap func(domainRepo.WebhookRepository) domainRepo.WebhookRepository) *webhookFixture {
	t.Helper()
	f := newFixture(t)
	repo := f.repos.Webhook
	if wrap != nil {
		repo = wrap(repo)
	}
	cipher, err := crypto.NewAESCipher(testEncryptionKey)
	require.NoError(t, err)

	sender := webhook.NewSender(nil, "carservice-test", zap.NewNop())
	dispatcher := usecase.NewWebhookDispatcher(f.repos.Tx, repo, sender, cipher, webhookConfig, zap.NewNop()).
		WithClock(f.clock.Now)
	f.bookings = usecase.NewBookingService(f.repos.Tx, f.repos.Booking, f.repos.Inventory, f.repos.Dealer, f.ledger,
		f.gateway, dispatcher, dispatcher, bookingConfig, zap.NewNop()).WithClock(f.clock.Now)

	return &webhookFixture{
		fixture:    f,
		cipher:     cipher,
		dispatcher: dispatcher,
		webhooks:   usecase.NewWebhookService(f.repos.Webhook, f.repos.Dealer, cipher, zap.NewNop()),
	}
}

func (w *webhookFixture) subscribe(d *model.DealerProfile, url string, events ...model.EventType) *dto.WebhookConfigResponse {
	w.t.Helper()
	types := make([]string, len(events))
	for i, e := range events {
		types[i] = string(e)
	}
	cfg, err := w.webhooks.Create(context.Background(), dealerActor(d), d.ID, dto.CreateWebhookRequest{URL: url, EventTypes: types})
	require.NoError(w.t, err)
	return cfg
}

func (w *webhookFixture) onlyEvent(d *model.DealerProfile) *model.WebhookEvent {
	w.t.Helper()
	list, err := w.webhooks.ListEvents(context.Background(), dealerActor(d), d.ID, dto.PageRequest{})
	require.NoError(w.t, err)
	require.Len(w.t, list.Events, 1)
	event, err := w.webhooks.GetEvent(context.Background(), dealerActor(d), list.Events[0].ID)
	require.NoError(w.t, err)
	return event
}

// receiver answers with the given status codes in order, repeating the last one.
type receiver struct {
	mu       sync.Mutex
	secret   string
	statuses []int
	bodies   [][]byte
	badSigs  int
}

func (r *receiver) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.bodies = append(r.bodies, body)
	if r.secret != "" && !webhook.Verify(r.secret, body, req.Header.Get(webhook.SignatureHeader)) {
		r.badSigs++
	}
	n := len(r.bodies)
	status := r.statuses[len(r.statuses)-1]
	if n <= len(r.statuses) {
		status = r.statuses[n-1]
	}
	r.mu.Unlock()
	w.WriteHeader(status)
	_, _ = w.Write([]byte(http.StatusText(status)))
}

func (r *receiver) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bodies)
}

func TestWebhook_RetriesUntilDelivered(t *testing.T) {
	w := newWebhookFixture(t, nil)
	ctx := context.Background()
	d := w.dealer(10)

	recv := &receiver{statuses: []int{500, 500, 200}}
	server := httptest.NewServer(recv)
	defer server.Close()
	cfg := w.subscribe(d, server.URL, model.EventBookingCreated)
	recv.secret = cfg.Secret

	booking := w.appBooking(d, 3500)

	attempted, err := w.dispatcher.DeliverDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)

	// not due again until the backoff has passed
	attempted, err = w.dispatcher.DeliverDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, attempted)

	w.clock.Advance(time.Second)
	_, err = w.dispatcher.DeliverDue(ctx)
	require.NoError(t, err)

	w.clock.Advance(time.Second)
	attempted, err = w.dispatcher.DeliverDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, attempted, "second backoff is two seconds")

	w.clock.Advance(time.Second)
	attempted, err = w.dispatcher.DeliverDue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, attempted)

	event := w.onlyEvent(d)
	assert.Equal(t, model.WebhookStatusDelivered, event.Status)
	assert.Equal(t, 3, event.Attempts)
	assert.NotNil(t, event.DeliveredAt)

	require.Len(t, event.Logs, 3)
	for i, status := range []int{500, 500, 200} {
		assert.Equal(t, i+1, event.Logs[i].Attempt)
		require.NotNil(t, event.Logs[i].StatusCode)
		assert.Equal(t, status, *event.Logs[i].StatusCode)
		assert.Equal(t, status == 200, event.Logs[i].Succeeded)
		assert.Equal(t, server.URL, event.Logs[i].URL)
	}

	assert.Equal(t, 3, recv.calls())
	assert.Zero(t, recv.badSigs)

	var envelope struct {
		EventID   string          `json:"event_id"`
		EventType string          `json:"event_type"`
		CreatedAt time.Time       `json:"created_at"`
		Payload   json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(recv.bodies[2], &envelope))
	assert.Equal(t, event.ID, envelope.EventID)
	assert.Equal(t, "booking.created", envelope.EventType)
	assert.True(t, envelope.CreatedAt.Equal(t0))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(envelope.Payload, &payload))
	assert.EqualValues(t, booking.ID, payload["booking_id"])
	assert.Equal(t, "3150.00", payload["dealer_amount"])
	assert.Equal(t, "pending", payload["status"])
}

func TestWebhook_FailsAfterMaxAttempts(t *testing.T) {
	w := newWebhookFixture(t, nil)
	ctx := context.Background()
	d := w.dealer(10)

	recv := &receiver{statuses: []int{500}}
	server := httptest.NewServer(recv)
	defer server.Close()
	w.subscribe(d, server.URL, model.EventBookingCreated)
	w.appBooking(d, 3500)

	for i := 0; i < 5; i++ {
		_, err := w.dispatcher.DeliverDue(ctx)
		require.NoError(t, err)
		w.clock.Advance(10 * time.Second)
	}

	event := w.onlyEvent(d)
	assert.Equal(t, model.WebhookStatusFailed, event.Status)
	assert.Equal(t, 3, event.Attempts)
	assert.NotNil(t, event.FailedAt)
	assert.Contains(t, event.LastError, "500")
	assert.Len(t, event.Logs, 3)
	assert.Equal(t, 3, recv.calls())
}

func TestWebhook_TimeoutCountsAsFailedAttempt(t *testing.T) {
	w := newWebhookFixture(t, nil)
	ctx := context.Background()
	d := w.dealer(10)

	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()
	w.subscribe(d, server.URL, model.EventBookingCreated)
	w.appBooking(d, 3500)

	started := time.Now()
	_, err := w.dispatcher.DeliverDue(ctx)
	require.NoError(t, err)
	assert.Less(t, time.Since(started), 2*time.Second)

	event := w.onlyEvent(d)
	assert.Equal(t, model.WebhookStatusPending, event.Status)
	assert.Equal(t, 1, event.Attempts)
	assert.True(t, event.NextAttemptAt.Equal(t0.Add(time.Second)))
	require.Len(t, event.Logs, 1)
	assert.Nil(t, event.Logs[0].StatusCode)
	assert.NotEmpty(t, event.Logs[0].Error)
	assert.False(t, event.Logs[0].Succeeded)
}

func TestWebhook_OnlySubscribedEventsAreQueued(t *testing.T) {
	w := newWebhookFixture(t, nil)
	ctx := context.Background()
	d := w.dealer(10)
	other := w.dealer(10)

	w.subscribe(d, "https://dealer.example.com/hooks", model.EventBookingConfirmed)
	booking := w.appBooking(d, 3500)
	w.appBooking(other, 3500)

	list, err := w.webhooks.ListEvents(ctx, dealerActor(d), d.ID, dto.PageRequest{})
	require.NoError(t, err)
	assert.Empty(t, list.Events)

	_, err = w.bookings.Respond(ctx, dealerActor(d), booking.ID, dto.RespondBookingRequest{Accept: true})
	require.NoError(t, err)

	event := w.onlyEvent(d)
	assert.Equal(t, model.EventBookingConfirmed, event.EventType)
	assert.Equal(t, model.WebhookStatusPending, event.Status)
}

func TestWebhook_InactiveConfigurationFailsQueuedEvents(t *testing.T) {
	w := newWebhookFixture(t, nil)
	ctx := context.Background()
	d := w.dealer(10)

	recv := &receiver{statuses: []int{200}}
	server := httptest.NewServer(recv)
	defer server.Close()
	cfg := w.subscribe(d, server.URL, model.EventBookingCreated)
	w.appBooking(d, 3500)

	require.NoError(t, w.webhooks.Deactivate(ctx, dealerActor(d), d.ID, cfg.ID))
	_, err := w.dispatcher.DeliverDue(ctx)
	require.NoError(t, err)

	event := w.onlyEvent(d)
	assert.Equal(t, model.WebhookStatusFailed, event.Status)
	require.Len(t, event.Logs, 1)
	assert.Contains(t, event.Logs[0].Error, "inactive")
	assert.Zero(t, recv.calls())

	// new events are no longer queued
	w.appBooking(d, 1000)
	list, err := w.webhooks.ListEvents(ctx, dealerActor(d), d.ID, dto.PageRequest{})
	require.NoError(t, err)
	assert.Len(t, list.Events, 1)
}

type failingWebhooks struct {
	domainRepo.WebhookRepository
}

func (failingWebhooks) CreateEvents(context.Context, []*model.WebhookEvent) error {
	return errors.New("outbox unavailable")
}

func TestWebhook_PublishFailureDoesNotRollBackBooking(t *testing.T) {
	w := newWebhookFixture(t, func(repo domainRepo.WebhookRepository) domainRepo.WebhookRepository {
		return failingWebhooks{WebhookRepository: repo}
	})
	d := w.dealer(10)
	w.subscribe(d, "https://dealer.example.com/hooks", model.EventBookingCreated)

	booking := w.appBooking(d, 3500)

	stored, err := w.repos.Booking.GetByID(context.Background(), booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusPending, stored.Status)
	assert.Equal(t, "3150.00", w.balance(d.ID))
}

func TestWebhook_WorkerPoolDeliversAfterCommit(t *testing.T) {
	w := newWebhookFixture(t, nil)
	d := w.dealer(10)

	recv := &receiver{statuses: []int{200}}
	server := httptest.NewServer(recv)
	defer server.Close()
	w.subscribe(d, server.URL, model.EventBookingCreated, model.EventBookingConfirmed)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.dispatcher.Start(ctx)

	booking := w.appBooking(d, 3500)
	_, err := w.bookings.Respond(context.Background(), dealerActor(d), booking.ID, dto.RespondBookingRequest{Accept: true})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return recv.calls() == 2
	}, 5*time.Second, 20*time.Millisecond)
	w.dispatcher.Stop()

	list, err := w.webhooks.ListEvents(context.Background(), dealerActor(d), d.ID, dto.PageRequest{})
	require.NoError(t, err)
	require.Len(t, list.Events, 2)
	for _, event := range list.Events {
		assert.Equal(t, model.WebhookStatusDelivered, event.Status)
	}
}

func TestWebhook_RecoverReleasesStaleDeliveries(t *testing.T) {
	w := newWebhookFixture(t, nil)
	ctx := context.Background()
	d := w.dealer(10)
	w.subscribe(d, "https://dealer.example.com/hooks", model.EventBookingCreated)
	w.appBooking(d, 3500)

	due, err := w.repos.Webhook.ListDue(ctx, w.clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	claimed, err := w.repos.Webhook.Claim(ctx, &due[0], w.clock.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	released, err := w.dispatcher.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, released, "a fresh claim is not stale")

	w.clock.Advance(time.Second)
	released, err = w.dispatcher.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), released)

	event := w.onlyEvent(d)
	assert.Equal(t, model.WebhookStatusPending, event.Status)
	assert.Equal(t, 1, event.Attempts)
}

func TestWebhook_RecoverFailsDeliveryWithNoAttemptsLeft(t *testing.T) {
	w := newWebhookFixture(t, nil)
	ctx := context.Background()
	d := w.dealer(10)

	recv := &receiver{statuses: []int{500}}
	server := httptest.NewServer(recv)
	defer server.Close()
	w.subscribe(d, server.URL, model.EventBookingCreated)
	w.appBooking(d, 3500)

	for attempt := 1; attempt <= 2; attempt++ {
		attempted, err := w.dispatcher.DeliverDue(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, attempted)
		w.clock.Advance(w.dispatcher.Backoff(attempt))
	}

	// the worker holding the final attempt dies before recording a result
	due, err := w.repos.Webhook.ListDue(ctx, w.clock.Now(), 10)
	require.NoError(t, err)
	require.Len(t, due, 1)
	claimed, err := w.repos.Webhook.Claim(ctx, &due[0], w.clock.Now())
	require.NoError(t, err)
	require.True(t, claimed)

	w.clock.Advance(10 * time.Second)
	released, err := w.dispatcher.Recover(ctx)
	require.NoError(t, err)
	assert.Zero(t, released)

	attempted, err := w.dispatcher.DeliverDue(ctx)
	require.NoError(t, err)
	assert.Zero(t, attempted)

	event := w.onlyEvent(d)
	assert.Equal(t, model.WebhookStatusFailed, event.Status)
	assert.Equal(t, 3, event.Attempts)
	assert.Equal(t, 2, recv.calls())
}

func TestWebhook_QueuedEventsStayUnclaimedUntilPickedUp(t *testing.T) {
	w := newWebhookFixture(t, nil)
	ctx := context.Background()

	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			<-release
		}
		rw.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	dealers := []*model.DealerProfile{w.dealer(10), w.dealer(10)}
	for _, d := range dealers {
		w.subscribe(d, server.URL, model.EventBookingCreated)
		w.appBooking(d, 3500)
	}

	cfg := webhookConfig
	cfg.Workers = 1
	cfg.Timeout = 5 * time.Second
	dispatcher := usecase.NewWebhookDispatcher(w.repos.Tx, w.repos.Webhook,
		webhook.NewSender(nil, "carservice-test", zap.NewNop()), w.cipher, cfg, zap.NewNop()).WithClock(w.clock.Now)
	dispatcher.Start(context.Background())
	t.Cleanup(dispatcher.Stop)
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	t.Cleanup(unblock)

	events := func() []model.WebhookEvent {
		var all []model.WebhookEvent
		for _, d := range dealers {
			list, _, err := w.repos.Webhook.ListEvents(ctx, d.ID, 0, 0)
			assert.NoError(t, err)
			all = append(all, list...)
		}
		return all
	}
	claimedCount := func() int {
		n := 0
		for _, e := range events() {
			if e.Attempts > 0 {
				n++
			}
		}
		return n
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Never(t, func() bool { return claimedCount() > 1 }, 300*time.Millisecond, 20*time.Millisecond,
		"the queued event must not be claimed while the only worker is busy")

	unblock()
	require.Eventually(t, func() bool {
		for _, e := range events() {
			if e.Status != model.WebhookStatusDelivered {
				return false
			}
		}
		return true
	}, 5*time.Second, 20*time.Millisecond)

	for _, e := range events() {
		assert.Equal(t, 1, e.Attempts)
	}
	assert.EqualValues(t, 2, calls.Load())
}

func TestWebhook_Backoff(t *testing.T) {
	w := newWebhookFixture(t, nil)
	assert.Equal(t, time.Second, w.dispatcher.Backoff(1))
	assert.Equal(t, 2*time.Second, w.dispatcher.Backoff(2))
	assert.Equal(t, 4*time.Second, w.dispatcher.Backoff(3))
}

func TestWebhookService_Create(t *testing.T) {
	w := newWebhookFixture(t, nil)
	ctx := context.Background()
	d := w.dealer(10)
	other := w.dealer(10)

	cfg := w.subscribe(d, "https://dealer.example.com/hooks", model.EventBookingCreated)
	assert.Regexp(t, `^whsec_[0-9A-Za-z]{40}$`, cfg.Secret)
	assert.True(t, cfg.IsActive)

	stored, err := w.repos.Webhook.GetConfig(ctx, cfg.ID)
	require.NoError(t, err)
	assert.NotContains(t, stored.SecretCiphertext, cfg.Secret)
	opened, err := w.cipher.Open(stored.SecretCiphertext, stored.SecretIV, usecase.SecretOwner(d.ID))
	require.NoError(t, err)
	assert.Equal(t, cfg.Secret, opened)
	_, err = w.cipher.Open(stored.SecretCiphertext, stored.SecretIV, usecase.SecretOwner(other.ID))
	assert.Error(t, err)

	listed, err := w.webhooks.List(ctx, dealerActor(d), d.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Empty(t, listed[0].Secret)

	tests := []struct {
		name  string
		actor model.Actor
		req   dto.CreateWebhookRequest
		check func(error) bool
	}{
		{"not a url", dealerActor(d), dto.CreateWebhookRequest{URL: "ftp://dealer.example.com", EventTypes: []string{"booking.created"}}, domainErrors.IsValidation},
		{"unknown event", dealerActor(d), dto.CreateWebhookRequest{URL: "https://dealer.example.com", EventTypes: []string{"booking.teleported"}}, domainErrors.IsValidation},
		{"no events", dealerActor(d), dto.CreateWebhookRequest{URL: "https://dealer.example.com"}, domainErrors.IsValidation},
		{"other dealer", dealerActor(other), dto.CreateWebhookRequest{URL: "https://dealer.example.com", EventTypes: []string{"booking.created"}}, func(err error) bool {
			var forbidden *domainErrors.ForbiddenError
			return errors.As(err, &forbidden)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.webhooks.Create(ctx, tt.actor, d.ID, tt.req)
			assert.True(t, tt.check(err), "got %v", err)
		})
	}
}

func TestWebhookService_GetEventChecksOwnership(t *testing.T) {
	w := newWebhookFixture(t, nil)
	d := w.dealer(10)
	other := w.dealer(10)
	w.subscribe(d, "https://dealer.example.com/hooks", model.EventBookingCreated)
	w.appBooking(d, 3500)

	event := w.onlyEvent(d)
	_, err := w.webhooks.GetEvent(context.Background(), dealerActor(other), event.ID)
	assert.ErrorAs(t, err, new(*domainErrors.ForbiddenError))

	_, err = w.webhooks.GetEvent(context.Background(), admin, "missing")
	assert.True(t, domainErrors.IsNotFound(err))
}
