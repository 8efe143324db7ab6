package ledger

import "time"

// RoleAssignment names one staff member acting in one role for an order.
type RoleAssignment struct {
	StaffID int64  `json:"staffId" binding:"required"`
	Role    string `json:"role" binding:"required"`
}

// OrderFinalized is the inbound settlement trigger. Delivery is
// at-least-once; the engine is idempotent on OrderID.
type OrderFinalized struct {
	OrderID           int64            `json:"orderId" binding:"required"`
	TenantID          int64            `json:"tenantId" binding:"required"`
	ServiceID         int64            `json:"serviceId" binding:"required"`
	TotalAmount       string           `json:"totalAmount" binding:"required"`
	QuantityOfService int              `json:"quantityOfService"`
	RoleAssignments   []RoleAssignment `json:"roleAssignments" binding:"required"`
}

// SkippedRole reports a role assignment that produced no commission record
// and why. AmbiguousRule entries are configuration errors for the tenant
// administrator; the rest of the order still settles.
type SkippedRole struct {
	StaffID int64  `json:"staffId"`
	Role    string `json:"role"`
	Code    Code   `json:"code"`
	Reason  string `json:"reason"`
}

const (
	AlertOpened    = "opened"
	AlertEscalated = "escalated"
	AlertResolved  = "resolved"
)

// AlertEvent is the outbound envelope published for the notification
// collaborator when a low-stock alert changes state.
type AlertEvent struct {
	EventID      string    `json:"eventId"`
	Change       string    `json:"change"`
	AlertID      int64     `json:"alertId"`
	TenantID     int64     `json:"tenantId"`
	InventoryID  int64     `json:"inventoryId"`
	AlertType    string    `json:"alertType"`
	CurrentStock int       `json:"currentStock"`
	Threshold    int       `json:"threshold"`
	OccurredAt   time.Time `json:"occurredAt"`
}

// AlertChannel is the redis pub/sub channel alert events go out on.
const AlertChannel = "ledger:alerts"
