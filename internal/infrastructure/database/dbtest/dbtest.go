// Package dbtest provides migrated sqlite databases for tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/carservice-backend/internal/infrastructure/database"
	"github.com/wekeepgrowing/carservice-backend/pkg/logger"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// New returns a migrated in-memory sqlite database private to t.
// A single connection serialises transactions the way row locks do on postgres.
func New(t testing.TB) *gorm.DB {
	t.Helper()

	log := zap.NewNop()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig(logger.NewGormLogger(log, gormlogger.Warn, 0, true)))
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, database.Migrate(db, log))

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return db
}
