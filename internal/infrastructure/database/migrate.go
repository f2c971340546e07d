package database

import (
	"github.com/wekeepgrowing/carservice-backend/internal/domain/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Models lists every table owned by the service.
var Models = []interface{}{
	&model.DealerProfile{},
	&model.CommissionHistory{},
	&model.ServiceSlot{},
	&model.Vehicle{},
	&model.CancellationPolicy{},
	&model.Booking{},
	&model.BookingStatusHistory{},
	&model.BalanceTransaction{},
	&model.PayoutRequest{},
	&model.WebhookConfiguration{},
	&model.WebhookEvent{},
	&model.WebhookLog{},
}

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running GORM auto-migrations...")
	if err := db.AutoMigrate(Models...); err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if db.Dialector.Name() == "postgres" {
		logger.Info("Creating ledger guards...")
		if err := createLedgerGuards(db, logger); err != nil {
			logger.Error("Failed to create ledger guards", zap.Error(err))
			return err
		}
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createLedgerGuards makes balance_transactions append-only and keeps amounts
// signed per type at the database level as well.
func createLedgerGuards(db *gorm.DB, logger *zap.Logger) error {
	statements := []string{
		`CREATE OR REPLACE FUNCTION reject_ledger_mutation()
RETURNS TRIGGER AS $$
BEGIN
    RAISE EXCEPTION 'balance_transactions is append-only';
END;
$$ LANGUAGE plpgsql;`,
		`DROP TRIGGER IF EXISTS balance_transactions_append_only ON balance_transactions;`,
		`CREATE TRIGGER balance_transactions_append_only
    BEFORE UPDATE OR DELETE ON balance_transactions
    FOR EACH ROW EXECUTE FUNCTION reject_ledger_mutation();`,
		`ALTER TABLE balance_transactions DROP CONSTRAINT IF EXISTS chk_balance_tx_sign;`,
		`ALTER TABLE balance_transactions ADD CONSTRAINT chk_balance_tx_sign CHECK (
    (type = 'booking_credit' AND amount > 0) OR
    (type IN ('payout_debit', 'refund') AND amount < 0) OR
    (type = 'adjustment' AND amount <> 0));`,
		`CREATE INDEX IF NOT EXISTS idx_webhook_events_pending ON webhook_events (next_attempt_at) WHERE status = 'pending';`,
	}

	for _, stmt := range statements {
		if err := db.Exec(stmt).Error; err != nil {
			return err
		}
	}
	logger.Info("Ledger guards created")
	return nil
}
