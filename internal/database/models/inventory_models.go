package models

import "time"

const (
	TransactionConsume = "consume"
	TransactionRestock = "restock"
	TransactionAdjust  = "adjust"
	TransactionReturn  = "return"
)

const (
	AlertWarning  = "warning"
	AlertCritical = "critical"
)

func ValidTransactionType(t string) bool {
	switch t {
	case TransactionConsume, TransactionRestock, TransactionAdjust, TransactionReturn:
		return true
	}
	return false
}

func (InventoryItem) TableName() string        { return "inventory" }
func (BOMEntry) TableName() string             { return "service_materials" }
func (InventoryTransaction) TableName() string { return "inventory_transactions" }
func (LowStockAlert) TableName() string        { return "low_stock_alerts" }

// InventoryItem is the tenant-scoped stock record. StockQuantity is never
// allowed to go negative; writers must hold the row lock while checking.
type InventoryItem struct {
	ID              int64   `gorm:"primaryKey;autoIncrement"`
	TenantID        int64   `gorm:"index;not null"`
	ItemName        string  `gorm:"size:255;not null"`
	SKU             *string `gorm:"size:100;index"`
	Category        *string `gorm:"size:100"`
	Unit            string  `gorm:"size:50;not null"`
	StockQuantity   int     `gorm:"not null;default:0"`
	SafetyThreshold int     `gorm:"not null;default:0"`
	CostPrice       *string `gorm:"type:decimal(10,2)"`
	Supplier        *string `gorm:"size:255"`
	LastRestockedAt *time.Time
	CreatedAt       *time.Time `gorm:"autoCreateTime"`
	UpdatedAt       *time.Time `gorm:"autoUpdateTime"`
}

// BOMEntry maps a service to one inventory item it consumes per use.
type BOMEntry struct {
	ID             int64      `gorm:"primaryKey;autoIncrement"`
	ServiceID      int64      `gorm:"uniqueIndex:idx_bom_service_item;not null"`
	InventoryID    int64      `gorm:"uniqueIndex:idx_bom_service_item;not null"`
	TenantID       int64      `gorm:"index;not null"`
	QuantityPerUse string     `gorm:"type:decimal(10,2);not null"`
	Unit           string     `gorm:"size:50;not null"`
	Notes          *string    `gorm:"type:text"`
	CreatedAt      *time.Time `gorm:"autoCreateTime"`

	Inventory *InventoryItem `gorm:"foreignKey:InventoryID"`
}

// InventoryTransaction is the append-only audit row for every stock change.
// Quantity carries the signed effect that was applied.
type InventoryTransaction struct {
	ID              int64   `gorm:"primaryKey;autoIncrement"`
	InventoryID     int64   `gorm:"index;not null"`
	TenantID        int64   `gorm:"index;not null"`
	TransactionType string  `gorm:"size:50;not null;index:idx_txn_reference"`
	Quantity        int     `gorm:"not null"`
	ReferenceID     *int64  `gorm:"index:idx_txn_reference"`
	ReferenceType   *string `gorm:"size:100"`
	OperatorID      *int64
	Notes           *string    `gorm:"type:text"`
	CreatedAt       *time.Time `gorm:"autoCreateTime"`

	Inventory *InventoryItem `gorm:"foreignKey:InventoryID"`
}

// LowStockAlert rows are never deleted; resolution only stamps ResolvedAt.
// The evaluator keeps at most one unresolved alert per item.
type LowStockAlert struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	InventoryID  int64  `gorm:"index;not null"`
	TenantID     int64  `gorm:"index;not null"`
	CurrentStock int    `gorm:"not null"`
	Threshold    int    `gorm:"not null"`
	AlertType    string `gorm:"size:50;not null"`
	NotifiedAt   *time.Time
	ResolvedAt   *time.Time
	CreatedAt    *time.Time `gorm:"autoCreateTime"`

	Inventory *InventoryItem `gorm:"foreignKey:InventoryID"`
}
