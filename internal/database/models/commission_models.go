package models

import "time"

// Staff roles recognised by the commission engine.
const (
	RoleConsultant = "consultant"
	RoleDoctor     = "doctor"
	RoleNurse      = "nurse"
	RoleAdmin      = "admin"
)

const (
	StaffStatusActive   = "active"
	StaffStatusInactive = "inactive"
	StaffStatusArchived = "archived"
)

const (
	ConditionImmediate = "immediate"
	ConditionDeferred  = "deferred"
	ConditionMilestone = "milestone"
)

const (
	CommissionStatusPending   = "pending"
	CommissionStatusPartial   = "partial"
	CommissionStatusPaid      = "paid"
	CommissionStatusCancelled = "cancelled"
)

func ValidRole(role string) bool {
	switch role {
	case RoleConsultant, RoleDoctor, RoleNurse, RoleAdmin:
		return true
	}
	return false
}

// Table names are pinned to the platform's production schema.
func (Staff) TableName() string            { return "staff" }
func (CommissionRule) TableName() string   { return "commission_rules" }
func (StaffOrderRole) TableName() string   { return "staff_order_roles" }
func (CommissionRecord) TableName() string { return "commission_records" }

type Staff struct {
	ID         int64      `gorm:"primaryKey;autoIncrement"`
	TenantID   int64      `gorm:"index;not null"`
	Name       string     `gorm:"size:255;not null"`
	RoleType   string     `gorm:"size:50;not null;index"`
	LineUserID *string    `gorm:"size:255"`
	Phone      *string    `gorm:"size:50"`
	Email      *string    `gorm:"size:255"`
	BaseSalary string     `gorm:"type:decimal(12,2);not null;default:0.00"`
	Status     string     `gorm:"size:50;not null;default:active"`
	CreatedAt  *time.Time `gorm:"autoCreateTime"`
	UpdatedAt  *time.Time `gorm:"autoUpdateTime"`
}

// CommissionRule is scoped to (tenant, optional service, role). A nil
// ServiceID makes the rule the tenant-wide default for that role.
type CommissionRule struct {
	ID             int32      `gorm:"primaryKey;autoIncrement"`
	TenantID       int64      `gorm:"index:idx_rules_tenant_service_role;not null"`
	ServiceID      *int64     `gorm:"index:idx_rules_tenant_service_role"`
	RoleType       string     `gorm:"size:50;index:idx_rules_tenant_service_role;not null"`
	CommissionRate string     `gorm:"type:decimal(5,4);not null"`
	ConditionType  string     `gorm:"size:50;not null;default:immediate"`
	ConditionValue JSONMap    `gorm:"type:jsonb"`
	Description    *string    `gorm:"type:text"`
	CreatedAt      *time.Time `gorm:"autoCreateTime"`
	UpdatedAt      *time.Time `gorm:"autoUpdateTime"`
}

type StaffOrderRole struct {
	ID        int64      `gorm:"primaryKey;autoIncrement"`
	TenantID  int64      `gorm:"index;not null"`
	OrderID   int64      `gorm:"uniqueIndex:idx_order_staff_role;not null"`
	StaffID   int64      `gorm:"uniqueIndex:idx_order_staff_role;not null"`
	RoleType  string     `gorm:"size:50;uniqueIndex:idx_order_staff_role;not null"`
	CreatedAt *time.Time `gorm:"autoCreateTime"`

	Staff *Staff `gorm:"foreignKey:StaffID"`
}

// CommissionRecord is created exactly once per qualifying (order, staff,
// role) triple; the composite unique index is the idempotency guard for
// at-least-once settlement delivery. Rate is frozen at creation time so
// later rule edits never change existing records.
type CommissionRecord struct {
	ID                 int64  `gorm:"primaryKey;autoIncrement"`
	OrderID            int64  `gorm:"uniqueIndex:idx_record_order_staff_role;not null"`
	StaffID            int64  `gorm:"uniqueIndex:idx_record_order_staff_role;not null"`
	TenantID           int64  `gorm:"index:idx_records_tenant_status;not null"`
	RoleType           string `gorm:"size:50;uniqueIndex:idx_record_order_staff_role;not null"`
	Amount             string `gorm:"type:decimal(12,2);not null"`
	Rate               string `gorm:"type:decimal(5,4);not null"`
	Status             string `gorm:"size:50;not null;default:pending;index:idx_records_tenant_status"`
	PaidAt             *time.Time
	DeferredConditions JSONMap    `gorm:"type:jsonb"`
	CreatedAt          *time.Time `gorm:"autoCreateTime"`

	Staff *Staff `gorm:"foreignKey:StaffID"`
}
