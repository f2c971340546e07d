package usecase_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/wekeepgrowing/carservice-backend/internal/config"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/dto"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	"github.com/wekeepgrowing/carservice-backend/internal/domain/provider"
	"github.com/wekeepgrowing/carservice-backend/internal/infrastructure/database"
	"github.com/wekeepgrowing/carservice-backend/internal/infrastructure/database/dbtest"
	"github.com/wekeepgrowing/carservice-backend/internal/usecase"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(at time.Time) *testClock {
	return &testClock{now: at}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeGateway struct {
	mu       sync.Mutex
	charges  []*provider.ChargeRequest
	refunds  []string
	chargeFn func(*provider.ChargeRequest) (*provider.ChargeResult, error)
	cardFn   func(int64) (*provider.VirtualCard, error)
}

func (g *fakeGateway) Charge(_ context.Context, req *provider.ChargeRequest) (*provider.ChargeResult, error) {
	g.mu.Lock()
	g.charges = append(g.charges, req)
	g.mu.Unlock()
	if g.chargeFn != nil {
		return g.chargeFn(req)
	}
	return &provider.ChargeResult{TransactionID: "pi_" + req.IdempotencyKey, Status: "succeeded"}, nil
}

func (g *fakeGateway) Refund(_ context.Context, transactionID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, transactionID)
	return nil
}

func (g *fakeGateway) refunded() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.refunds...)
}

func (g *fakeGateway) IssueVirtualCard(_ context.Context, dealerID int64) (*provider.VirtualCard, error) {
	if g.cardFn != nil {
		return g.cardFn(dealerID)
	}
	return &provider.VirtualCard{CardReference: "ic_test", Last4: "4242"}, nil
}

func (g *fakeGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charges)
}

var bookingConfig = config.BookingConfig{
	ResponseWindow:        2 * time.Hour,
	Currency:              "BDT",
	DefaultCommissionRate: decimal.NewFromInt(15),
}

type fixture struct {
	t        *testing.T
	db       *gorm.DB
	repos    *database.Repositories
	clock    *testClock
	gateway  *fakeGateway
	ledger   *usecase.LedgerService
	bookings *usecase.BookingService
	payouts  *usecase.PayoutService
	dealers  *usecase.DealerService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := dbtest.New(t)
	repos := database.NewRepositories(db, zap.NewNop())
	clock := newClock(t0)
	gateway := &fakeGateway{}

	ledger := usecase.NewLedgerService(repos.Tx, repos.Ledger, repos.Dealer, repos.Payout, "BDT", zap.NewNop())
	return &fixture{
		t:       t,
		db:      db,
		repos:   repos,
		clock:   clock,
		gateway: gateway,
		ledger:  ledger,
		bookings: usecase.NewBookingService(repos.Tx, repos.Booking, repos.Inventory, repos.Dealer, ledger, gateway,
			nil, nil, bookingConfig, zap.NewNop()).WithClock(clock.Now),
		payouts: usecase.NewPayoutService(repos.Tx, repos.Payout, repos.Dealer, ledger, nil, nil,
			config.PayoutConfig{MinimumAmount: decimal.NewFromInt(100)}, zap.NewNop()).WithClock(clock.Now),
		dealers: usecase.NewDealerService(repos.Tx, repos.Dealer, gateway, bookingConfig.DefaultCommissionRate, zap.NewNop()),
	}
}

var admin = model.Actor{Type: model.ActorAdmin, ID: "admin-1"}

func dealerActor(d *model.DealerProfile) model.Actor {
	return model.Actor{Type: model.ActorDealer, ID: d.UserID, DealerID: d.ID}
}

func customer(id string) model.Actor {
	return model.Actor{Type: model.ActorCustomer, ID: id}
}

func (f *fixture) dealer(rate int64) *model.DealerProfile {
	f.t.Helper()
	r := decimal.NewFromInt(rate)
	d, err := f.dealers.CreateProfile(context.Background(), admin, dto.CreateDealerRequest{
		UserID:               "dealer-" + uuid.NewString(),
		BusinessName:         "Gulshan Motors",
		CommissionPercentage: &r,
	})
	require.NoError(f.t, err)
	return d
}

func (f *fixture) slot(dealerID int64, scheduledAt time.Time, capacity int) *model.ServiceSlot {
	f.t.Helper()
	s := &model.ServiceSlot{
		DealerID:          dealerID,
		ServiceName:       "Full service",
		Price:             decimal.NewFromInt(3500),
		ScheduledAt:       scheduledAt,
		TotalCapacity:     capacity,
		AvailableCapacity: capacity,
		IsActive:          true,
	}
	require.NoError(f.t, f.db.Create(s).Error)
	return s
}

func (f *fixture) vehicle(owner string) *model.Vehicle {
	f.t.Helper()
	v := &model.Vehicle{OwnerID: owner, Make: "Toyota", Model: "Axio", LicensePlate: "DHAKA-GA-11-2233"}
	require.NoError(f.t, f.db.Create(v).Error)
	return v
}

func (f *fixture) policy() *model.CancellationPolicy {
	f.t.Helper()
	p := &model.CancellationPolicy{
		Name:                    "standard",
		FreeCancellationHours:   24,
		PartialRefundHours:      12,
		PartialRefundPercentage: decimal.NewFromInt(50),
	}
	require.NoError(f.t, f.db.Create(p).Error)
	return p
}

// appBooking creates a customer booking of amount on a fresh slot two days out.
func (f *fixture) appBooking(d *model.DealerProfile, amount int64) *model.Booking {
	f.t.Helper()
	cust := "customer-" + uuid.NewString()
	booking, err := f.bookings.Create(context.Background(), customer(cust), f.appRequest(d, cust, amount))
	require.NoError(f.t, err)
	return booking
}

func (f *fixture) appRequest(d *model.DealerProfile, cust string, amount int64) dto.CreateBookingRequest {
	return dto.CreateBookingRequest{
		DealerID:      d.ID,
		SlotID:        f.slot(d.ID, f.clock.Now().Add(48*time.Hour), 1).ID,
		VehicleID:     f.vehicle(cust).ID,
		Source:        model.BookingSourceApp,
		ServiceAmount: decimal.NewFromInt(amount),
		PaymentSource: "pm_card_visa",
	}
}

func (f *fixture) balance(dealerID int64) string {
	f.t.Helper()
	d, err := f.repos.Dealer.GetByID(context.Background(), dealerID)
	require.NoError(f.t, err)
	return d.CurrentBalance.StringFixed(2)
}

func (f *fixture) entries(dealerID int64) []model.BalanceTransaction {
	f.t.Helper()
	var rows []model.BalanceTransaction
	require.NoError(f.t, f.db.Where("dealer_id = ?", dealerID).Order("id").Find(&rows).Error)
	return rows
}

// fund gives the dealer a balance through an admin adjustment.
func (f *fixture) fund(dealerID int64, amount int64) {
	f.t.Helper()
	_, err := f.ledger.Adjust(context.Background(), admin, dealerID, dto.AdjustmentRequest{
		Amount: decimal.NewFromInt(amount),
		Reason: "opening balance",
	})
	require.NoError(f.t, err)
}

func (f *fixture) assertConsistent(dealerID int64) {
	f.t.Helper()
	result, err := f.ledger.VerifyBalance(context.Background(), dealerID)
	require.NoError(f.t, err)
	require.True(f.t, result.Consistent)
}
