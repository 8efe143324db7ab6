// Package rules resolves the applicable commission rule for an order's
// (tenant, service, role) at settlement time.
package rules

import (
	"context"

	"gorm.io/gorm"

	"clinova-system/internal/database/models"
	"clinova-system/internal/ledger"
)

type Resolver struct{}

func NewResolver() *Resolver {
	return &Resolver{}
}

// Resolve runs inside the caller's transaction so the rule read is
// consistent with the records written from it.
func (r *Resolver) Resolve(ctx context.Context, tx *gorm.DB, tenantID, serviceID int64, role string) (*models.CommissionRule, error) {
	var candidates []models.CommissionRule
	err := tx.WithContext(ctx).
		Where("tenant_id = ? AND role_type = ? AND (service_id = ? OR service_id IS NULL)", tenantID, role, serviceID).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}
	return pick(candidates, role)
}

// pick applies the precedence: a rule scoped to the specific service beats
// the tenant-wide default (service_id NULL) for that role. A tie at the
// same specificity is a configuration conflict surfaced to the tenant
// administrator, never resolved silently.
func pick(candidates []models.CommissionRule, role string) (*models.CommissionRule, error) {
	var specific, generic []*models.CommissionRule
	for i := range candidates {
		if candidates[i].ServiceID != nil {
			specific = append(specific, &candidates[i])
		} else {
			generic = append(generic, &candidates[i])
		}
	}

	switch {
	case len(specific) > 1:
		return nil, ledger.E(ledger.CodeAmbiguousRule, "%d service-scoped rules match role %s", len(specific), role)
	case len(specific) == 1:
		return specific[0], nil
	case len(generic) > 1:
		return nil, ledger.E(ledger.CodeAmbiguousRule, "%d tenant-default rules match role %s", len(generic), role)
	case len(generic) == 1:
		return generic[0], nil
	}
	return nil, ledger.E(ledger.CodeRuleNotFound, "no commission rule for role %s", role)
}
