// Package commission computes and records per-staff commission entries for
// finalized orders and manages their status lifecycle.
package commission

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"clinova-system/internal/database/models"
	"clinova-system/internal/ledger"
	"clinova-system/internal/ledger/rules"
)

type Engine struct {
	db       *gorm.DB
	redis    *redis.Client
	log      *zap.Logger
	resolver *rules.Resolver
}

func NewEngine(db *gorm.DB, redisClient *redis.Client, log *zap.Logger) *Engine {
	return &Engine{
		db:       db,
		redis:    redisClient,
		log:      log,
		resolver: rules.NewResolver(),
	}
}

type SettleInput struct {
	OrderID     int64
	TenantID    int64
	ServiceID   int64
	TotalAmount decimal.Decimal
	Assignments []ledger.RoleAssignment
}

type SettleOutcome struct {
	Records []models.CommissionRecord
	Skipped []ledger.SkippedRole
	// Duplicate is set when every assignment already had a record, i.e.
	// the call was a redelivered event and wrote nothing.
	Duplicate bool
}

// Settle creates one commission record per qualifying role assignment,
// inside the caller's transaction. The (order, staff, role) unique index
// makes redelivery a no-op: existing triples are returned, not recreated.
func (e *Engine) Settle(ctx context.Context, tx *gorm.DB, in SettleInput) (*SettleOutcome, error) {
	if err := validateSettleInput(in); err != nil {
		return nil, err
	}

	staffByID, err := e.loadStaff(ctx, tx, in)
	if err != nil {
		return nil, err
	}

	var existing []models.CommissionRecord
	err = tx.WithContext(ctx).
		Where("tenant_id = ? AND order_id = ?", in.TenantID, in.OrderID).
		Find(&existing).Error
	if err != nil {
		return nil, err
	}
	settled := make(map[string]bool, len(existing))
	for _, rec := range existing {
		settled[assignmentKey(rec.StaffID, rec.RoleType)] = true
	}

	outcome := &SettleOutcome{Records: existing}
	var created []models.CommissionRecord
	var assigned []models.StaffOrderRole

	for _, a := range in.Assignments {
		if settled[assignmentKey(a.StaffID, a.Role)] {
			continue
		}

		staff, ok := staffByID[a.StaffID]
		if !ok {
			outcome.Skipped = append(outcome.Skipped, ledger.SkippedRole{
				StaffID: a.StaffID, Role: a.Role,
				Code: ledger.CodeNotFound, Reason: "staff not found in tenant",
			})
			continue
		}
		if staff.Status == models.StaffStatusArchived {
			outcome.Skipped = append(outcome.Skipped, ledger.SkippedRole{
				StaffID: a.StaffID, Role: a.Role,
				Code: ledger.CodeInvalidArgument, Reason: "archived staff accrue no new commissions",
			})
			continue
		}

		assigned = append(assigned, models.StaffOrderRole{
			TenantID: in.TenantID,
			OrderID:  in.OrderID,
			StaffID:  a.StaffID,
			RoleType: a.Role,
		})

		rule, err := e.resolver.Resolve(ctx, tx, in.TenantID, in.ServiceID, a.Role)
		if err != nil {
			code := ledger.CodeOf(err)
			if code == ledger.CodeRuleNotFound || code == ledger.CodeAmbiguousRule {
				outcome.Skipped = append(outcome.Skipped, ledger.SkippedRole{
					StaffID: a.StaffID, Role: a.Role, Code: code, Reason: err.Error(),
				})
				continue
			}
			return nil, err
		}

		rate, err := decimal.NewFromString(rule.CommissionRate)
		if err != nil {
			return nil, ledger.Wrap(ledger.CodeInternal, err, "malformed rate on rule %d", rule.ID)
		}

		rec := models.CommissionRecord{
			OrderID:  in.OrderID,
			StaffID:  a.StaffID,
			TenantID: in.TenantID,
			RoleType: a.Role,
			Amount:   computeAmount(in.TotalAmount, rate).StringFixed(2),
			Rate:     rate.StringFixed(4),
			Status:   models.CommissionStatusPending,
		}
		if rule.ConditionType != models.ConditionImmediate {
			rec.DeferredConditions = models.JSONMap{
				"type":  rule.ConditionType,
				"value": map[string]interface{}(rule.ConditionValue),
			}
		}
		created = append(created, rec)
	}

	// The order's role roster is kept alongside the records; redelivered
	// assignments hit the unique index and insert nothing.
	if len(assigned) > 0 {
		err := tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "staff_id"}, {Name: "role_type"}},
			DoNothing: true,
		}).Create(&assigned).Error
		if err != nil {
			return nil, err
		}
	}

	if len(created) > 0 {
		res := tx.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "order_id"}, {Name: "staff_id"}, {Name: "role_type"}},
			DoNothing: true,
		}).Create(&created)
		if res.Error != nil {
			return nil, res.Error
		}
		// A concurrent settlement for the same order may have won some
		// inserts; reload so the result reflects the persisted state.
		if res.RowsAffected < int64(len(created)) {
			outcome.Records = nil
			err := tx.WithContext(ctx).
				Where("tenant_id = ? AND order_id = ?", in.TenantID, in.OrderID).
				Find(&outcome.Records).Error
			return outcome, err
		}
		outcome.Records = append(outcome.Records, created...)
	} else if len(existing) > 0 {
		outcome.Duplicate = true
	}

	return outcome, nil
}

func validateSettleInput(in SettleInput) error {
	if in.OrderID <= 0 || in.TenantID <= 0 {
		return ledger.E(ledger.CodeInvalidArgument, "order and tenant IDs are required")
	}
	if !in.TotalAmount.IsPositive() {
		return ledger.E(ledger.CodeInvalidArgument, "total amount must be positive")
	}
	if len(in.Assignments) == 0 {
		return ledger.E(ledger.CodeInvalidArgument, "at least one role assignment is required")
	}
	seen := make(map[string]bool, len(in.Assignments))
	for _, a := range in.Assignments {
		if !models.ValidRole(a.Role) {
			return ledger.E(ledger.CodeInvalidArgument, "unknown role %q", a.Role)
		}
		key := assignmentKey(a.StaffID, a.Role)
		if seen[key] {
			return ledger.E(ledger.CodeInvalidArgument, "duplicate assignment for staff %d role %s", a.StaffID, a.Role)
		}
		seen[key] = true
	}
	return nil
}

func (e *Engine) loadStaff(ctx context.Context, tx *gorm.DB, in SettleInput) (map[int64]models.Staff, error) {
	ids := make([]int64, 0, len(in.Assignments))
	for _, a := range in.Assignments {
		ids = append(ids, a.StaffID)
	}
	var staff []models.Staff
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", in.TenantID, ids).
		Find(&staff).Error
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]models.Staff, len(staff))
	for _, s := range staff {
		byID[s.ID] = s
	}
	return byID, nil
}

func assignmentKey(staffID int64, role string) string {
	return fmt.Sprintf("%d:%s", staffID, role)
}

// computeAmount rounds half-up to the currency's minor unit.
func computeAmount(total, rate decimal.Decimal) decimal.Decimal {
	return total.Mul(rate).Round(2)
}

// validTransition encodes the status state machine: pending may move to
// partial, paid or cancelled; partial to paid or cancelled; paid and
// cancelled are terminal.
func validTransition(from, to string) bool {
	switch from {
	case models.CommissionStatusPending:
		return to == models.CommissionStatusPartial ||
			to == models.CommissionStatusPaid ||
			to == models.CommissionStatusCancelled
	case models.CommissionStatusPartial:
		return to == models.CommissionStatusPaid ||
			to == models.CommissionStatusCancelled
	}
	return false
}

// Transition moves a record through the status state machine under a row
// lock. Re-applying the current status is an idempotent no-op so payout
// signals tolerate redelivery.
func (e *Engine) Transition(ctx context.Context, tenantID, recordID int64, newStatus string) (*models.CommissionRecord, error) {
	switch newStatus {
	case models.CommissionStatusPartial, models.CommissionStatusPaid, models.CommissionStatusCancelled:
	default:
		return nil, ledger.E(ledger.CodeInvalidArgument, "unknown target status %q", newStatus)
	}

	var record models.CommissionRecord
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ?", tenantID).
			First(&record, recordID).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return ledger.E(ledger.CodeNotFound, "commission record %d not found", recordID)
			}
			return err
		}

		if record.Status == newStatus {
			return nil
		}
		if !validTransition(record.Status, newStatus) {
			return ledger.E(ledger.CodeInvalidTransition, "cannot move record %d from %s to %s", recordID, record.Status, newStatus)
		}

		updates := map[string]interface{}{"status": newStatus}
		if newStatus == models.CommissionStatusPaid {
			now := time.Now()
			updates["paid_at"] = &now
			record.PaidAt = &now
		}
		record.Status = newStatus
		return tx.Model(&models.CommissionRecord{}).Where("id = ?", record.ID).Updates(updates).Error
	})
	if err != nil {
		return nil, ledger.Classify(err)
	}

	e.InvalidatePayroll(ctx, tenantID)
	return &record, nil
}

// BatchPay marks the listed records paid, reporting per-record failures
// while the rest proceed.
func (e *Engine) BatchPay(ctx context.Context, tenantID int64, ids []int64) (int, []string) {
	var paid int
	var failures []string
	for _, id := range ids {
		if _, err := e.Transition(ctx, tenantID, id, models.CommissionStatusPaid); err != nil {
			failures = append(failures, fmt.Sprintf("record %d: %v", id, err))
			continue
		}
		paid++
	}
	return paid, failures
}

// SweepDeferred matures pending deferred records whose day-count has
// elapsed at asOf. The clock is an input so the external scheduler, not
// this engine, decides when time has passed.
func (e *Engine) SweepDeferred(ctx context.Context, tenantID int64, asOf time.Time) (int, error) {
	var matured int
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var candidates []models.CommissionRecord
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ? AND status = ? AND deferred_conditions IS NOT NULL", tenantID, models.CommissionStatusPending).
			Find(&candidates).Error
		if err != nil {
			return err
		}

		for _, rec := range candidates {
			if rec.CreatedAt == nil || !deferredMatured(rec.DeferredConditions, *rec.CreatedAt, asOf) {
				continue
			}
			err := tx.Model(&models.CommissionRecord{}).Where("id = ?", rec.ID).
				Updates(map[string]interface{}{
					"status":  models.CommissionStatusPaid,
					"paid_at": asOf,
				}).Error
			if err != nil {
				return err
			}
			matured++
		}
		return nil
	})
	if err != nil {
		return 0, ledger.Classify(err)
	}

	if matured > 0 {
		e.log.Info("deferred commissions matured",
			zap.Int64("tenant_id", tenantID), zap.Int("matured", matured))
		e.InvalidatePayroll(ctx, tenantID)
	}
	return matured, nil
}

// deferredMatured interprets the snapshot taken at settlement time. Only
// the deferred day-count payload matures automatically; milestone records
// wait for their external signal, and unknown payloads never mature.
func deferredMatured(conditions models.JSONMap, createdAt, asOf time.Time) bool {
	if conditions == nil || conditions["type"] != models.ConditionDeferred {
		return false
	}
	value, ok := conditions["value"].(map[string]interface{})
	if !ok {
		return false
	}
	days, ok := value["days"].(float64)
	if !ok || days < 0 {
		return false
	}
	return !createdAt.Add(time.Duration(days) * 24 * time.Hour).After(asOf)
}

type ListFilter struct {
	StaffID int64
	OrderID int64
	Status  string
	Limit   int
	Offset  int
}

func (e *Engine) ListRecords(ctx context.Context, tenantID int64, f ListFilter) ([]models.CommissionRecord, error) {
	query := e.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("created_at desc")
	if f.StaffID > 0 {
		query = query.Where("staff_id = ?", f.StaffID)
	}
	if f.OrderID > 0 {
		query = query.Where("order_id = ?", f.OrderID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	var records []models.CommissionRecord
	err := query.Offset(f.Offset).Limit(limit).Find(&records).Error
	return records, err
}
