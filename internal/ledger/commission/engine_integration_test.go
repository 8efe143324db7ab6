//go:build integration
// +build integration

package commission

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"clinova-system/internal/database"
	"clinova-system/internal/database/models"
	"clinova-system/internal/ledger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := os.Getenv("LEDGER_TEST_DSN")
	if dsn == "" {
		t.Skip("LEDGER_TEST_DSN not set, skipping integration test")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		t.Skipf("database unreachable: %v", err)
	}
	require.NoError(t, database.MigrateLedgerDB(db))
	return db
}

func newTestEngine(t *testing.T, db *gorm.DB) *Engine {
	t.Helper()
	redisClient := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	t.Cleanup(func() { redisClient.Close() })
	return NewEngine(db, redisClient, zap.NewNop())
}

func seedRecord(t *testing.T, db *gorm.DB, tenantID int64, status string) *models.CommissionRecord {
	t.Helper()
	staff := models.Staff{
		TenantID:   tenantID,
		Name:       "consultant",
		RoleType:   models.RoleConsultant,
		BaseSalary: "3000.00",
		Status:     models.StaffStatusActive,
	}
	require.NoError(t, db.Create(&staff).Error)

	rec := models.CommissionRecord{
		OrderID:  tenantID*10 + 1,
		StaffID:  staff.ID,
		TenantID: tenantID,
		RoleType: models.RoleConsultant,
		Amount:   "50.00",
		Rate:     "0.0500",
		Status:   status,
	}
	require.NoError(t, db.Create(&rec).Error)
	return &rec
}

func TestTransitionRepeatIsIdempotentNoOp(t *testing.T) {
	db := openTestDB(t)
	engine := newTestEngine(t, db)
	ctx := context.Background()

	tenantID := time.Now().UnixNano() % 1_000_000_000
	rec := seedRecord(t, db, tenantID, models.CommissionStatusPending)

	paid, err := engine.Transition(ctx, tenantID, rec.ID, models.CommissionStatusPaid)
	require.NoError(t, err)
	require.NotNil(t, paid.PaidAt)
	firstPaidAt := *paid.PaidAt

	// Redelivered payout signal: re-applying the current status must stay
	// a no-op success, never an invalid transition.
	again, err := engine.Transition(ctx, tenantID, rec.ID, models.CommissionStatusPaid)
	require.NoError(t, err)
	assert.Equal(t, models.CommissionStatusPaid, again.Status)

	var stored models.CommissionRecord
	require.NoError(t, db.First(&stored, rec.ID).Error)
	require.NotNil(t, stored.PaidAt)
	assert.WithinDuration(t, firstPaidAt, *stored.PaidAt, time.Second, "paid_at not restamped")
}

func TestTransitionRejectsTerminalMoves(t *testing.T) {
	db := openTestDB(t)
	engine := newTestEngine(t, db)
	ctx := context.Background()

	tenantID := time.Now().UnixNano() % 1_000_000_000
	rec := seedRecord(t, db, tenantID, models.CommissionStatusPaid)

	_, err := engine.Transition(ctx, tenantID, rec.ID, models.CommissionStatusCancelled)
	assert.Equal(t, ledger.CodeInvalidTransition, ledger.CodeOf(err))

	var stored models.CommissionRecord
	require.NoError(t, db.First(&stored, rec.ID).Error)
	assert.Equal(t, models.CommissionStatusPaid, stored.Status, "state preserved on rejection")
}
