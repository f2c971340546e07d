package database

import (
	"github.com/wekeepgrowing/carservice-backend/internal/adapter/repository"
	domainRepo "github.com/wekeepgrowing/carservice-backend/internal/domain/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Repositories holds all repository instances
type Repositories struct {
	Tx        domainRepo.TransactionManager
	Dealer    domainRepo.DealerRepository
	Ledger    domainRepo.LedgerRepository
	Booking   domainRepo.BookingRepository
	Inventory domainRepo.InventoryRepository
	Payout    domainRepo.PayoutRepository
	Webhook   domainRepo.WebhookRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Tx:        repository.NewTransactionManager(db),
		Dealer:    repository.NewDealerRepository(db, logger),
		Ledger:    repository.NewLedgerRepository(db, logger),
		Booking:   repository.NewBookingRepository(db, logger),
		Inventory: repository.NewInventoryRepository(db, logger),
		Payout:    repository.NewPayoutRepository(db, logger),
		Webhook:   repository.NewWebhookRepository(db, logger),
	}
}
