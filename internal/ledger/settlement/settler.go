// Package settlement drives one finalized order through the commission
// engine and the inventory ledger as a single atomic unit.
package settlement

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"clinova-system/internal/database/models"
	"clinova-system/internal/ledger"
	"clinova-system/internal/ledger/commission"
	"clinova-system/internal/ledger/inventory"
)

type Settler struct {
	db         *gorm.DB
	commission *commission.Engine
	inventory  *inventory.Ledger
	log        *zap.Logger
	txTimeout  time.Duration
}

func NewSettler(db *gorm.DB, commissionEngine *commission.Engine, inventoryLedger *inventory.Ledger, log *zap.Logger, txTimeout time.Duration) *Settler {
	if txTimeout <= 0 {
		txTimeout = 10 * time.Second
	}
	return &Settler{
		db:         db,
		commission: commissionEngine,
		inventory:  inventoryLedger,
		log:        log,
		txTimeout:  txTimeout,
	}
}

type Result struct {
	CommissionRecords     []models.CommissionRecord     `json:"commissionRecords"`
	SkippedRoles          []ledger.SkippedRole          `json:"skippedRoles,omitempty"`
	InventoryTransactions []models.InventoryTransaction `json:"inventoryTransactions"`
	// Duplicate marks a redelivered event that changed nothing.
	Duplicate bool `json:"duplicate"`
}

// FinalizeOrder settles commission and consumes BOM inventory for one
// order inside a single bounded store transaction: both commit or both
// roll back. Redelivery of the same order is a no-op success.
func (s *Settler) FinalizeOrder(ctx context.Context, ev ledger.OrderFinalized) (*Result, error) {
	totalAmount, err := decimal.NewFromString(ev.TotalAmount)
	if err != nil {
		return nil, ledger.E(ledger.CodeInvalidArgument, "malformed total amount %q", ev.TotalAmount)
	}

	ctx, cancel := context.WithTimeout(ctx, s.txTimeout)
	defer cancel()

	var (
		settleOutcome  *commission.SettleOutcome
		consumeOutcome *inventory.ConsumeOutcome
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		settleOutcome, err = s.commission.Settle(ctx, tx, commission.SettleInput{
			OrderID:     ev.OrderID,
			TenantID:    ev.TenantID,
			ServiceID:   ev.ServiceID,
			TotalAmount: totalAmount,
			Assignments: ev.RoleAssignments,
		})
		if err != nil {
			return err
		}

		consumeOutcome, err = s.inventory.ConsumeForOrder(ctx, tx, inventory.ConsumeInput{
			OrderID:           ev.OrderID,
			TenantID:          ev.TenantID,
			ServiceID:         ev.ServiceID,
			QuantityOfService: ev.QuantityOfService,
		})
		return err
	})
	if err != nil {
		return nil, ledger.Classify(err)
	}

	// Post-commit side effects only: events and cache invalidation must
	// never fire for a rolled-back settlement.
	if len(consumeOutcome.AlertChanges) > 0 {
		s.inventory.PublishAlertChanges(ctx, consumeOutcome.AlertChanges)
	}
	if !settleOutcome.Duplicate {
		s.commission.InvalidatePayroll(ctx, ev.TenantID)
	}

	// A redelivery is one where neither leg wrote anything new. An order
	// with no commission records at all (every role skipped) can only be
	// recognised by its consume rows.
	commissionNoOp := settleOutcome.Duplicate || len(settleOutcome.Records) == 0
	inventoryNoOp := consumeOutcome.Duplicate || len(consumeOutcome.Transactions) == 0
	result := &Result{
		CommissionRecords:     settleOutcome.Records,
		SkippedRoles:          settleOutcome.Skipped,
		InventoryTransactions: consumeOutcome.Transactions,
		Duplicate:             (settleOutcome.Duplicate && inventoryNoOp) || (commissionNoOp && consumeOutcome.Duplicate),
	}

	s.log.Info("order settled",
		zap.Int64("tenant_id", ev.TenantID),
		zap.Int64("order_id", ev.OrderID),
		zap.Int("commission_records", len(result.CommissionRecords)),
		zap.Int("skipped_roles", len(result.SkippedRoles)),
		zap.Int("inventory_transactions", len(result.InventoryTransactions)),
		zap.Bool("duplicate", result.Duplicate))

	return result, nil
}
