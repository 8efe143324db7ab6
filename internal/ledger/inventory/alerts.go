package inventory

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"clinova-system/internal/database/models"
	"clinova-system/internal/ledger"
)

type alertAction int

const (
	alertNone alertAction = iota
	alertOpen
	alertEscalate
	alertResolve
)

// AlertChange records one alert transition produced inside a settlement
// transaction. Events are published only after the transaction commits.
type AlertChange struct {
	Change string
	Alert  models.LowStockAlert
}

// decideAlert is the pure alert policy: open at or below threshold
// (critical at zero stock), keep a single unresolved alert per item,
// escalate warning to critical in place, never downgrade, resolve once
// stock recovers above the threshold.
func decideAlert(currentStock, threshold int, open *models.LowStockAlert) (alertAction, string) {
	belowThreshold := currentStock <= threshold
	severity := models.AlertWarning
	if currentStock == 0 {
		severity = models.AlertCritical
	}

	if open == nil {
		if belowThreshold {
			return alertOpen, severity
		}
		return alertNone, ""
	}
	if !belowThreshold {
		return alertResolve, open.AlertType
	}
	if open.AlertType == models.AlertWarning && severity == models.AlertCritical {
		return alertEscalate, severity
	}
	return alertNone, ""
}

// evaluateAlert runs while the caller still holds the inventory row lock,
// which serialises alert evaluation per item and upholds the at-most-one
// unresolved alert invariant.
func evaluateAlert(ctx context.Context, tx *gorm.DB, item *models.InventoryItem) (*AlertChange, error) {
	var open models.LowStockAlert
	var openAlert *models.LowStockAlert
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND inventory_id = ? AND resolved_at IS NULL", item.TenantID, item.ID).
		Order("created_at desc").
		First(&open).Error
	if err == nil {
		openAlert = &open
	} else if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	action, severity := decideAlert(item.StockQuantity, item.SafetyThreshold, openAlert)
	switch action {
	case alertNone:
		return nil, nil

	case alertOpen:
		alert := models.LowStockAlert{
			InventoryID:  item.ID,
			TenantID:     item.TenantID,
			CurrentStock: item.StockQuantity,
			Threshold:    item.SafetyThreshold,
			AlertType:    severity,
		}
		if err := tx.WithContext(ctx).Create(&alert).Error; err != nil {
			return nil, err
		}
		return &AlertChange{Change: ledger.AlertOpened, Alert: alert}, nil

	case alertEscalate:
		err := tx.WithContext(ctx).Model(&models.LowStockAlert{}).
			Where("id = ?", openAlert.ID).
			Updates(map[string]interface{}{
				"alert_type":    severity,
				"current_stock": item.StockQuantity,
			}).Error
		if err != nil {
			return nil, err
		}
		openAlert.AlertType = severity
		openAlert.CurrentStock = item.StockQuantity
		return &AlertChange{Change: ledger.AlertEscalated, Alert: *openAlert}, nil

	case alertResolve:
		now := time.Now()
		err := tx.WithContext(ctx).Model(&models.LowStockAlert{}).
			Where("id = ?", openAlert.ID).
			Update("resolved_at", now).Error
		if err != nil {
			return nil, err
		}
		openAlert.ResolvedAt = &now
		return &AlertChange{Change: ledger.AlertResolved, Alert: *openAlert}, nil
	}
	return nil, nil
}

// PublishAlertChanges pushes alert events to the notification channel
// after the surrounding transaction has committed. Publishing is best
// effort: the ledger is the source of truth, not the event stream.
func (l *Ledger) PublishAlertChanges(ctx context.Context, changes []AlertChange) {
	for _, change := range changes {
		event := ledger.AlertEvent{
			EventID:      uuid.NewString(),
			Change:       change.Change,
			AlertID:      change.Alert.ID,
			TenantID:     change.Alert.TenantID,
			InventoryID:  change.Alert.InventoryID,
			AlertType:    change.Alert.AlertType,
			CurrentStock: change.Alert.CurrentStock,
			Threshold:    change.Alert.Threshold,
			OccurredAt:   time.Now(),
		}
		payload, err := json.Marshal(event)
		if err != nil {
			continue
		}
		if err := l.redis.Publish(ctx, ledger.AlertChannel, payload).Err(); err != nil {
			l.log.Warn("alert event publish failed",
				zap.Int64("tenant_id", event.TenantID),
				zap.Int64("alert_id", event.AlertID),
				zap.Error(err))
			continue
		}
		now := time.Now()
		_ = l.db.WithContext(ctx).Model(&models.LowStockAlert{}).
			Where("id = ? AND notified_at IS NULL", change.Alert.ID).
			Update("notified_at", now).Error
	}
}

func (l *Ledger) ListAlerts(ctx context.Context, tenantID int64, unresolvedOnly bool) ([]models.LowStockAlert, error) {
	query := l.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc")
	if unresolvedOnly {
		query = query.Where("resolved_at IS NULL")
	}

	var alerts []models.LowStockAlert
	err := query.Find(&alerts).Error
	return alerts, err
}

// ResolveAlerts manually resolves the listed alerts, e.g. after an
// operator has ordered replacement stock.
func (l *Ledger) ResolveAlerts(ctx context.Context, tenantID int64, ids []int64) (int, error) {
	if len(ids) == 0 {
		return 0, ledger.E(ledger.CodeInvalidArgument, "at least one alert ID is required")
	}
	res := l.db.WithContext(ctx).Model(&models.LowStockAlert{}).
		Where("tenant_id = ? AND id IN ? AND resolved_at IS NULL", tenantID, ids).
		Update("resolved_at", time.Now())
	if res.Error != nil {
		return 0, ledger.Classify(res.Error)
	}
	return int(res.RowsAffected), nil
}
