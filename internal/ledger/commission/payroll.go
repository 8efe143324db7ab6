package commission

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"clinova-system/internal/database/models"
)

const (
	payrollCachePrefix = "payroll_summary:"
	payrollCacheKeySet = "payroll_summary_keys:"
	payrollCacheTTL    = 2 * time.Hour
)

type StaffPayrollSummary struct {
	StaffID           int64  `json:"staffId"`
	StaffName         string `json:"staffName"`
	RoleType          string `json:"roleType"`
	BaseSalary        string `json:"baseSalary"`
	TotalCommission   string `json:"totalCommission"`
	PendingCommission string `json:"pendingCommission"`
	PaidCommission    string `json:"paidCommission"`
	RecordCount       int32  `json:"recordCount"`
	TotalPay          string `json:"totalPay"`
}

// PayrollSummary aggregates commission records per staff member over the
// window. Results are cached; settlement and status transitions invalidate
// the tenant's cached windows.
func (e *Engine) PayrollSummary(ctx context.Context, tenantID int64, from, to time.Time) ([]StaffPayrollSummary, error) {
	cacheKey := fmt.Sprintf("%s%d:%s:%s", payrollCachePrefix, tenantID,
		from.Format("2006-01-02"), to.Format("2006-01-02"))

	if val, err := e.redis.Get(ctx, cacheKey).Result(); err == nil {
		var cached []StaffPayrollSummary
		if err := json.Unmarshal([]byte(val), &cached); err == nil {
			return cached, nil
		}
	} else if err != redis.Nil {
		e.log.Warn("payroll cache read failed, falling back to DB", zap.Error(err))
	}

	var rows []struct {
		StaffID           int64
		StaffName         string
		RoleType          string
		BaseSalary        string
		TotalCommission   string
		PendingCommission string
		PaidCommission    string
		RecordCount       int32
	}
	err := e.db.WithContext(ctx).Model(&models.CommissionRecord{}).
		Select("commission_records.staff_id, "+
			"staff.name as staff_name, "+
			"staff.role_type, "+
			"staff.base_salary, "+
			"COALESCE(SUM(commission_records.amount), 0) as total_commission, "+
			"COALESCE(SUM(CASE WHEN commission_records.status IN (?, ?) THEN commission_records.amount ELSE 0 END), 0) as pending_commission, "+
			"COALESCE(SUM(CASE WHEN commission_records.status = ? THEN commission_records.amount ELSE 0 END), 0) as paid_commission, "+
			"COUNT(*) as record_count",
			models.CommissionStatusPending, models.CommissionStatusPartial, models.CommissionStatusPaid).
		Joins("join staff on staff.id = commission_records.staff_id").
		Where("commission_records.tenant_id = ? AND commission_records.created_at BETWEEN ? AND ?", tenantID, from, to).
		Group("commission_records.staff_id, staff.name, staff.role_type, staff.base_salary").
		Order("commission_records.staff_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	summaries := make([]StaffPayrollSummary, 0, len(rows))
	for _, row := range rows {
		base, _ := decimal.NewFromString(row.BaseSalary)
		total, _ := decimal.NewFromString(row.TotalCommission)
		pending, _ := decimal.NewFromString(row.PendingCommission)
		paid, _ := decimal.NewFromString(row.PaidCommission)

		summaries = append(summaries, StaffPayrollSummary{
			StaffID:           row.StaffID,
			StaffName:         row.StaffName,
			RoleType:          row.RoleType,
			BaseSalary:        base.StringFixed(2),
			TotalCommission:   total.StringFixed(2),
			PendingCommission: pending.StringFixed(2),
			PaidCommission:    paid.StringFixed(2),
			RecordCount:       row.RecordCount,
			TotalPay:          base.Add(total).StringFixed(2),
		})
	}

	if jsonData, err := json.Marshal(summaries); err == nil {
		keySet := fmt.Sprintf("%s%d", payrollCacheKeySet, tenantID)
		pipe := e.redis.Pipeline()
		pipe.Set(ctx, cacheKey, jsonData, payrollCacheTTL)
		pipe.SAdd(ctx, keySet, cacheKey)
		pipe.Expire(ctx, keySet, payrollCacheTTL)
		if _, err := pipe.Exec(ctx); err != nil {
			e.log.Warn("payroll cache write failed", zap.Error(err))
		}
	}

	return summaries, nil
}

// InvalidatePayroll drops every cached payroll window for the tenant.
// Best effort: cache misses are cheaper than stale payout figures.
func (e *Engine) InvalidatePayroll(ctx context.Context, tenantID int64) {
	keySet := fmt.Sprintf("%s%d", payrollCacheKeySet, tenantID)
	keys, err := e.redis.SMembers(ctx, keySet).Result()
	if err != nil {
		return
	}
	if len(keys) > 0 {
		_ = e.redis.Del(ctx, keys...).Err()
	}
	_ = e.redis.Del(ctx, keySet).Err()
}
