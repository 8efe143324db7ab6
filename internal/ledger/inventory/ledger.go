// Package inventory consumes BOM quantities for finalized orders, keeps the
// append-only transaction audit trail, and evaluates low-stock alerts.
package inventory

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clinova-system/internal/database/models"
	"clinova-system/internal/ledger"
)

const referenceTypeOrder = "order"

type Ledger struct {
	db    *gorm.DB
	redis *redis.Client
	log   *zap.Logger
}

func NewLedger(db *gorm.DB, redisClient *redis.Client, log *zap.Logger) *Ledger {
	return &Ledger{db: db, redis: redisClient, log: log}
}

type ConsumeInput struct {
	OrderID           int64
	TenantID          int64
	ServiceID         int64
	QuantityOfService int
}

type ConsumeOutcome struct {
	Transactions []models.InventoryTransaction
	AlertChanges []AlertChange
	// Duplicate is set when consume rows for the order already existed
	// and the call wrote nothing.
	Duplicate bool
}

// ConsumeForOrder decrements stock for every BOM entry of the service,
// all-or-nothing, inside the caller's transaction. Inventory rows are
// locked in ascending id order so two orders over the same items never
// deadlock and never both pass a check only one can satisfy.
func (l *Ledger) ConsumeForOrder(ctx context.Context, tx *gorm.DB, in ConsumeInput) (*ConsumeOutcome, error) {
	if in.OrderID <= 0 || in.TenantID <= 0 || in.ServiceID <= 0 {
		return nil, ledger.E(ledger.CodeInvalidArgument, "order, tenant and service IDs are required")
	}
	qty := in.QuantityOfService
	if qty == 0 {
		qty = 1
	}
	if qty < 0 {
		return nil, ledger.E(ledger.CodeInvalidArgument, "service quantity must be positive")
	}

	var bom []models.BOMEntry
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND service_id = ?", in.TenantID, in.ServiceID).
		Order("inventory_id").
		Find(&bom).Error
	if err != nil {
		return nil, err
	}
	if len(bom) == 0 {
		return &ConsumeOutcome{}, nil
	}

	itemIDs := make([]int64, 0, len(bom))
	for _, entry := range bom {
		itemIDs = append(itemIDs, entry.InventoryID)
	}
	var items []models.InventoryItem
	err = tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id IN ?", in.TenantID, itemIDs).
		Order("id").
		Find(&items).Error
	if err != nil {
		return nil, err
	}

	// At-least-once delivery: a redelivered event finds its own consume
	// rows and becomes a no-op. The check runs under the item row locks,
	// so a concurrent delivery of the same order blocks above and then
	// sees the winner's committed rows here.
	var prior []models.InventoryTransaction
	err = tx.WithContext(ctx).
		Where("tenant_id = ? AND reference_id = ? AND reference_type = ? AND transaction_type = ?",
			in.TenantID, in.OrderID, referenceTypeOrder, models.TransactionConsume).
		Find(&prior).Error
	if err != nil {
		return nil, err
	}
	if len(prior) > 0 {
		return &ConsumeOutcome{Transactions: prior, Duplicate: true}, nil
	}
	itemByID := make(map[int64]*models.InventoryItem, len(items))
	for i := range items {
		itemByID[items[i].ID] = &items[i]
	}

	required := make(map[int64]int, len(bom))
	for _, entry := range bom {
		item, ok := itemByID[entry.InventoryID]
		if !ok {
			return nil, ledger.E(ledger.CodeNotFound, "inventory item %d referenced by BOM not found", entry.InventoryID)
		}
		need, err := requiredQuantity(entry.QuantityPerUse, qty)
		if err != nil {
			return nil, err
		}
		required[entry.InventoryID] = need
		if item.StockQuantity < need {
			return nil, ledger.E(ledger.CodeInsufficientStock,
				"item %q requires %d, have %d", item.ItemName, need, item.StockQuantity)
		}
	}

	outcome := &ConsumeOutcome{}
	orderID := in.OrderID
	refType := referenceTypeOrder
	for _, entry := range bom {
		item := itemByID[entry.InventoryID]
		need := required[entry.InventoryID]

		item.StockQuantity -= need
		err := tx.WithContext(ctx).Model(&models.InventoryItem{}).
			Where("id = ?", item.ID).
			Update("stock_quantity", item.StockQuantity).Error
		if err != nil {
			return nil, err
		}

		txn := models.InventoryTransaction{
			InventoryID:     item.ID,
			TenantID:        in.TenantID,
			TransactionType: models.TransactionConsume,
			Quantity:        -need,
			ReferenceID:     &orderID,
			ReferenceType:   &refType,
		}
		if err := tx.WithContext(ctx).Create(&txn).Error; err != nil {
			return nil, err
		}
		outcome.Transactions = append(outcome.Transactions, txn)

		change, err := evaluateAlert(ctx, tx, item)
		if err != nil {
			return nil, err
		}
		if change != nil {
			outcome.AlertChanges = append(outcome.AlertChanges, *change)
		}
	}

	return outcome, nil
}

// requiredQuantity is ceil(quantityPerUse × quantityOfService): fractional
// per-use amounts still consume whole stock units.
func requiredQuantity(quantityPerUse string, quantityOfService int) (int, error) {
	perUse, err := decimal.NewFromString(quantityPerUse)
	if err != nil {
		return 0, ledger.Wrap(ledger.CodeInternal, err, "malformed BOM quantity %q", quantityPerUse)
	}
	need := perUse.Mul(decimal.NewFromInt(int64(quantityOfService))).Ceil().IntPart()
	if need < 0 {
		return 0, ledger.E(ledger.CodeInvalidArgument, "BOM quantity must not be negative")
	}
	return int(need), nil
}

type RecordInput struct {
	TenantID        int64
	InventoryID     int64
	TransactionType string
	Quantity        int
	ReferenceID     *int64
	ReferenceType   *string
	OperatorID      *int64
	Notes           *string
}

// signedEffect normalises the input quantity into the stock delta:
// restock/return/consume take positive magnitudes, adjust is signed.
func signedEffect(transactionType string, quantity int) (int, error) {
	switch transactionType {
	case models.TransactionRestock, models.TransactionReturn:
		if quantity <= 0 {
			return 0, ledger.E(ledger.CodeInvalidArgument, "%s quantity must be positive", transactionType)
		}
		return quantity, nil
	case models.TransactionConsume:
		if quantity <= 0 {
			return 0, ledger.E(ledger.CodeInvalidArgument, "consume quantity must be positive")
		}
		return -quantity, nil
	case models.TransactionAdjust:
		if quantity == 0 {
			return 0, ledger.E(ledger.CodeInvalidArgument, "adjust quantity must not be zero")
		}
		return quantity, nil
	}
	return 0, ledger.E(ledger.CodeInvalidArgument, "unknown transaction type %q", transactionType)
}

// RecordTransaction applies one manual stock movement under the item's row
// lock, appends the audit row, and re-evaluates the item's alert state.
func (l *Ledger) RecordTransaction(ctx context.Context, in RecordInput) (*models.InventoryTransaction, *AlertChange, error) {
	effect, err := signedEffect(in.TransactionType, in.Quantity)
	if err != nil {
		return nil, nil, err
	}
	if in.TenantID <= 0 || in.InventoryID <= 0 {
		return nil, nil, ledger.E(ledger.CodeInvalidArgument, "tenant and inventory IDs are required")
	}

	var txn models.InventoryTransaction
	var change *AlertChange
	err = l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var item models.InventoryItem
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ?", in.TenantID).
			First(&item, in.InventoryID).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return ledger.E(ledger.CodeNotFound, "inventory item %d not found", in.InventoryID)
			}
			return err
		}

		newQty := item.StockQuantity + effect
		if newQty < 0 {
			return ledger.E(ledger.CodeInsufficientStock,
				"item %q has %d, movement of %d would go negative", item.ItemName, item.StockQuantity, effect)
		}

		updates := map[string]interface{}{"stock_quantity": newQty}
		if in.TransactionType == models.TransactionRestock {
			updates["last_restocked_at"] = time.Now()
		}
		err = tx.Model(&models.InventoryItem{}).Where("id = ?", item.ID).Updates(updates).Error
		if err != nil {
			return err
		}
		item.StockQuantity = newQty

		txn = models.InventoryTransaction{
			InventoryID:     item.ID,
			TenantID:        in.TenantID,
			TransactionType: in.TransactionType,
			Quantity:        effect,
			ReferenceID:     in.ReferenceID,
			ReferenceType:   in.ReferenceType,
			OperatorID:      in.OperatorID,
			Notes:           in.Notes,
		}
		if err := tx.Create(&txn).Error; err != nil {
			return err
		}

		change, err = evaluateAlert(ctx, tx, &item)
		return err
	})
	if err != nil {
		return nil, nil, ledger.Classify(err)
	}

	if change != nil {
		l.PublishAlertChanges(ctx, []AlertChange{*change})
	}
	return &txn, change, nil
}

type TransactionFilter struct {
	InventoryID     int64
	TransactionType string
	From            time.Time
	To              time.Time
	Limit           int
	Offset          int
}

func (l *Ledger) ListTransactions(ctx context.Context, tenantID int64, f TransactionFilter) ([]models.InventoryTransaction, error) {
	query := l.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc")
	if f.InventoryID > 0 {
		query = query.Where("inventory_id = ?", f.InventoryID)
	}
	if f.TransactionType != "" {
		query = query.Where("transaction_type = ?", f.TransactionType)
	}
	if !f.From.IsZero() {
		query = query.Where("created_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		query = query.Where("created_at <= ?", f.To)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var transactions []models.InventoryTransaction
	err := query.Offset(f.Offset).Limit(limit).Find(&transactions).Error
	return transactions, err
}

func (l *Ledger) ListItems(ctx context.Context, tenantID int64, lowStockOnly bool) ([]models.InventoryItem, error) {
	query := l.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("item_name")
	if lowStockOnly {
		query = query.Where("stock_quantity <= safety_threshold")
	}

	var items []models.InventoryItem
	err := query.Find(&items).Error
	return items, err
}
