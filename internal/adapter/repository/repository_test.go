package repository_test

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/wekeepgrowing/carservice-backend/internal/adapter/repository"
	domainErrors "github.com/wekeepgrowing/carservice-backend/internal/domain/errors"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	domainRepo "github.com/wekeepgrowing/carservice-backend/internal/domain/repository"
	"github.com/wekeepgrowing/carservice-backend/internal/infrastructure/database/dbtest"
)

func newDealer(t *testing.T, db *gorm.DB) *model.DealerProfile {
	t.Helper()
	dealer := &model.DealerProfile{
		UserID:               uuid.NewString(),
		BusinessName:         "Dhaka Auto Care",
		CommissionPercentage: decimal.NewFromInt(10),
		CurrentBalance:       decimal.Zero,
		IsActive:             true,
	}
	require.NoError(t, repository.NewDealerRepository(db, zap.NewNop()).Create(context.Background(), dealer))
	return dealer
}

func TestTransactionManager_RollsBackOnError(t *testing.T) {
	db := dbtest.New(t)
	tm := repository.NewTransactionManager(db)
	dealers := repository.NewDealerRepository(db, zap.NewNop())
	dealer := newDealer(t, db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := tm.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, dealers.UpdateBalance(ctx, dealer.ID, decimal.NewFromInt(500)))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	reloaded, err := dealers.GetByID(ctx, dealer.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.CurrentBalance.IsZero())
}

func TestTransactionManager_NestedSavepoint(t *testing.T) {
	db := dbtest.New(t)
	tm := repository.NewTransactionManager(db)
	dealers := repository.NewDealerRepository(db, zap.NewNop())
	dealer := newDealer(t, db)
	ctx := context.Background()

	err := tm.RunInTransaction(ctx, func(ctx context.Context) error {
		require.NoError(t, dealers.UpdateBalance(ctx, dealer.ID, decimal.NewFromInt(100)))
		inner := tm.RunInTransaction(ctx, func(ctx context.Context) error {
			require.NoError(t, dealers.UpdateBalance(ctx, dealer.ID, decimal.NewFromInt(999)))
			return errors.New("inner failure")
		})
		assert.Error(t, inner)
		return nil
	})
	require.NoError(t, err)

	reloaded, err := dealers.GetByID(ctx, dealer.ID)
	require.NoError(t, err)
	assert.Equal(t, "100.00", reloaded.CurrentBalance.StringFixed(2))
}

func TestDealerRepository(t *testing.T) {
	db := dbtest.New(t)
	repo := repository.NewDealerRepository(db, zap.NewNop())
	ctx := context.Background()

	t.Run("duplicate user is a conflict", func(t *testing.T) {
		dealer := newDealer(t, db)
		err := repo.Create(ctx, &model.DealerProfile{
			UserID:               dealer.UserID,
			BusinessName:         "Copy",
			CommissionPercentage: decimal.NewFromInt(5),
		})
		assert.True(t, domainErrors.IsConflict(err))
	})

	t.Run("unknown dealer is not found", func(t *testing.T) {
		_, err := repo.GetForUpdate(ctx, 424242)
		assert.True(t, domainErrors.IsNotFound(err))
		assert.True(t, domainErrors.IsNotFound(repo.UpdateBalance(ctx, 424242, decimal.NewFromInt(1))))
	})

	t.Run("commission history is newest first", func(t *testing.T) {
		dealer := newDealer(t, db)
		base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
		for i, rate := range []int64{12, 14} {
			require.NoError(t, repo.CreateCommissionHistory(ctx, &model.CommissionHistory{
				DealerID:    dealer.ID,
				OldRate:     decimal.NewFromInt(10),
				NewRate:     decimal.NewFromInt(rate),
				Reason:      "renegotiated",
				ChangedBy:   "admin-1",
				EffectiveAt: base.Add(time.Duration(i) * time.Hour),
			}))
		}
		history, err := repo.ListCommissionHistory(ctx, dealer.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "14", history[0].NewRate.String())
	})
}

func TestLedgerRepository(t *testing.T) {
	db := dbtest.New(t)
	repo := repository.NewLedgerRepository(db, zap.NewNop())
	dealer := newDealer(t, db)
	ctx := context.Background()

	entries := []model.BalanceTransaction{
		{Type: model.TransactionTypeBookingCredit, SourceRef: "booking:1", Amount: decimal.RequireFromString("3150.00")},
		{Type: model.TransactionTypeBookingCredit, SourceRef: "booking:2", Amount: decimal.RequireFromString("0.10")},
		{Type: model.TransactionTypeRefund, SourceRef: "booking:1", Amount: decimal.RequireFromString("-0.20")},
	}
	for i := range entries {
		entries[i].DealerID = dealer.ID
		require.NoError(t, repo.Create(ctx, &entries[i]))
	}

	t.Run("sum is exact", func(t *testing.T) {
		sum, err := repo.Sum(ctx, dealer.ID)
		require.NoError(t, err)
		assert.Equal(t, "3149.90", sum.StringFixed(2))
	})

	t.Run("source and type are unique", func(t *testing.T) {
		err := repo.Create(ctx, &model.BalanceTransaction{
			DealerID:  dealer.ID,
			Type:      model.TransactionTypeBookingCredit,
			SourceRef: "booking:1",
			Amount:    decimal.NewFromInt(1),
		})
		assert.True(t, domainErrors.IsConflict(err))
	})

	t.Run("find by source", func(t *testing.T) {
		found, err := repo.FindBySource(ctx, "booking:1", model.TransactionTypeRefund)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, "-0.20", found.Amount.StringFixed(2))

		missing, err := repo.FindBySource(ctx, "booking:9", model.TransactionTypeRefund)
		require.NoError(t, err)
		assert.Nil(t, missing)
	})

	t.Run("list filters by type and pages", func(t *testing.T) {
		credit := model.TransactionTypeBookingCredit
		page, total, err := repo.List(ctx, domainRepo.LedgerFilter{DealerID: dealer.ID, Type: &credit, Limit: 1})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, page, 1)
	})
}

func TestBookingRepository_UpdateIfVersion(t *testing.T) {
	db := dbtest.New(t)
	repo := repository.NewBookingRepository(db, zap.NewNop())
	dealer := newDealer(t, db)
	ctx := context.Background()
	now := time.Now().UTC()

	booking := &model.Booking{
		BookingNumber:          "CS250301000001",
		CustomerID:             "customer-1",
		DealerID:               dealer.ID,
		SlotID:                 1,
		VehicleID:              1,
		Source:                 model.BookingSourceApp,
		Status:                 model.BookingStatusPending,
		ServiceAmount:          decimal.NewFromInt(3500),
		PlatformCommission:     decimal.NewFromInt(350),
		DealerAmount:           decimal.NewFromInt(3150),
		TotalAmount:            decimal.NewFromInt(3500),
		CommissionRate:         decimal.NewFromInt(10),
		Currency:               "BDT",
		ScheduledAt:            now.Add(48 * time.Hour),
		DealerResponseDeadline: now.Add(-time.Minute),
	}
	require.NoError(t, repo.Create(ctx, booking))
	assert.EqualValues(t, 1, booking.Version)

	first, err := repo.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, booking.ID)
	require.NoError(t, err)

	first.Status = model.BookingStatusConfirmed
	require.NoError(t, repo.UpdateIfVersion(ctx, first))
	assert.EqualValues(t, 2, first.Version)

	second.Status = model.BookingStatusRejected
	err = repo.UpdateIfVersion(ctx, second)
	assert.True(t, domainErrors.IsConflict(err))

	stored, err := repo.GetByID(ctx, booking.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingStatusConfirmed, stored.Status)

	overdue, err := repo.ListOverdue(ctx, now, 10)
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

func TestInventoryRepository_ReserveSlot(t *testing.T) {
	db := dbtest.New(t)
	repo := repository.NewInventoryRepository(db, zap.NewNop())
	ctx := context.Background()

	slot := &model.ServiceSlot{
		DealerID:          1,
		ServiceName:       "Full service",
		Price:             decimal.NewFromInt(3500),
		ScheduledAt:       time.Now().UTC().Add(72 * time.Hour),
		TotalCapacity:     1,
		AvailableCapacity: 1,
		IsActive:          true,
	}
	require.NoError(t, db.Create(slot).Error)

	require.NoError(t, repo.ReserveSlot(ctx, slot.ID))
	assert.True(t, domainErrors.IsValidation(repo.ReserveSlot(ctx, slot.ID)))

	require.NoError(t, repo.ReleaseSlot(ctx, slot.ID))
	require.NoError(t, repo.ReleaseSlot(ctx, slot.ID))
	reloaded, err := repo.GetSlot(ctx, slot.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.AvailableCapacity)
}

func TestPayoutRepository(t *testing.T) {
	db := dbtest.New(t)
	repo := repository.NewPayoutRepository(db, zap.NewNop())
	dealer := newDealer(t, db)
	ctx := context.Background()

	create := func(ref string, amount, fee int64, status model.PayoutStatus) *model.PayoutRequest {
		payout := &model.PayoutRequest{
			DealerID:             dealer.ID,
			Amount:               decimal.NewFromInt(amount),
			ProcessingFee:        decimal.NewFromInt(fee),
			NetAmount:            decimal.NewFromInt(amount),
			BankDetails:          datatypes.NewJSONType(model.BankDetails{AccountName: "A", AccountNumber: "12345678", BankName: "B"}),
			Status:               status,
			TransactionReference: ref,
			RequestedBy:          dealer.UserID,
		}
		require.NoError(t, repo.Create(ctx, payout))
		return payout
	}

	requested := create("PAY1", 10000, 20, model.PayoutStatusRequested)
	create("PAY2", 500, 0, model.PayoutStatusRequested)
	create("PAY3", 700, 0, model.PayoutStatusCompleted)

	pending, err := repo.SumPending(ctx, dealer.ID)
	require.NoError(t, err)
	assert.Equal(t, "10520.00", pending.StringFixed(2))

	requested.Status = model.PayoutStatusProcessing
	require.NoError(t, repo.UpdateIfStatus(ctx, requested, model.PayoutStatusRequested))
	err = repo.UpdateIfStatus(ctx, requested, model.PayoutStatusRequested)
	assert.True(t, domainErrors.IsConflict(err))

	stored, err := repo.GetByID(ctx, requested.ID)
	require.NoError(t, err)
	assert.Equal(t, "12345678", stored.BankDetails.Data().AccountNumber)

	list, total, err := repo.ListByDealer(ctx, dealer.ID, 2, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, list, 2)
}

func TestWebhookRepository_ClaimIsExclusive(t *testing.T) {
	db := dbtest.New(t)
	repo := repository.NewWebhookRepository(db, zap.NewNop())
	ctx := context.Background()
	now := time.Now().UTC()

	event := &model.WebhookEvent{
		ID:              uuid.NewString(),
		ConfigurationID: 1,
		DealerID:        1,
		DomainEventID:   uuid.NewString(),
		EventType:       model.EventBookingCreated,
		Payload:         datatypes.JSON(`{"booking_id":1}`),
		Status:          model.WebhookStatusPending,
		MaxAttempts:     3,
		NextAttemptAt:   now.Add(-time.Second),
		CreatedAt:       now,
	}
	require.NoError(t, repo.CreateEvents(ctx, []*model.WebhookEvent{event}))

	due, err := repo.ListDue(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, due, 1)

	var wg sync.WaitGroup
	wins := make(chan bool, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(candidate model.WebhookEvent) {
			defer wg.Done()
			ok, err := repo.Claim(ctx, &candidate, now)
			assert.NoError(t, err)
			wins <- ok
		}(due[0])
	}
	wg.Wait()
	close(wins)

	won := 0
	for ok := range wins {
		if ok {
			won++
		}
	}
	assert.Equal(t, 1, won)

	require.NoError(t, repo.Reschedule(ctx, event.ID, now.Add(time.Minute), "status 500"))
	assert.True(t, domainErrors.IsConflict(repo.MarkDelivered(ctx, event.ID, now)))

	stored, err := repo.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookStatusPending, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, "status 500", stored.LastError)
}

func TestWebhookRepository_ReleaseStale(t *testing.T) {
	db := dbtest.New(t)
	repo := repository.NewWebhookRepository(db, zap.NewNop())
	ctx := context.Background()
	now := time.Now().UTC()

	event := &model.WebhookEvent{
		ID:            uuid.NewString(),
		DomainEventID: uuid.NewString(),
		EventType:     model.EventPayoutApproved,
		Payload:       datatypes.JSON(`{}`),
		Status:        model.WebhookStatusPending,
		MaxAttempts:   3,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	require.NoError(t, repo.CreateEvents(ctx, []*model.WebhookEvent{event}))
	ok, err := repo.Claim(ctx, event, now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	exhausted := &model.WebhookEvent{
		ID:            uuid.NewString(),
		DomainEventID: uuid.NewString(),
		EventType:     model.EventPayoutApproved,
		Payload:       datatypes.JSON(`{}`),
		Status:        model.WebhookStatusPending,
		Attempts:      2,
		MaxAttempts:   3,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	require.NoError(t, repo.CreateEvents(ctx, []*model.WebhookEvent{exhausted}))
	ok, err = repo.Claim(ctx, exhausted, now.Add(-time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 3, exhausted.Attempts)

	released, failed, err := repo.ReleaseStale(ctx, now.Add(-time.Minute), now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, released)
	assert.EqualValues(t, 1, failed)

	stored, err := repo.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookStatusPending, stored.Status)

	stored, err = repo.GetEvent(ctx, exhausted.ID)
	require.NoError(t, err)
	assert.Equal(t, model.WebhookStatusFailed, stored.Status)
	assert.NotNil(t, stored.FailedAt)
	assert.Nil(t, stored.LockedAt)
}

func TestWebhookRepository_ClaimStopsAtMaxAttempts(t *testing.T) {
	db := dbtest.New(t)
	repo := repository.NewWebhookRepository(db, zap.NewNop())
	ctx := context.Background()
	now := time.Now().UTC()

	event := &model.WebhookEvent{
		ID:            uuid.NewString(),
		DomainEventID: uuid.NewString(),
		EventType:     model.EventBookingCreated,
		Payload:       datatypes.JSON(`{}`),
		Status:        model.WebhookStatusPending,
		Attempts:      3,
		MaxAttempts:   3,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	require.NoError(t, repo.CreateEvents(ctx, []*model.WebhookEvent{event}))

	ok, err := repo.Claim(ctx, event, now)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 3, event.Attempts)
	assert.Equal(t, model.WebhookStatusPending, event.Status)
}

func TestDealerRepository_GetForUpdateLockError(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close()

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "dealer_profiles" WHERE id = $1`)).
		WillReturnError(errors.New("could not obtain lock on row"))

	_, err = repository.NewDealerRepository(db, zap.NewNop()).GetForUpdate(context.Background(), 7)
	require.Error(t, err)
	assert.False(t, domainErrors.IsNotFound(err))
	assert.Contains(t, err.Error(), "could not obtain lock")
	assert.NoError(t, mock.ExpectationsWereMet())
}
