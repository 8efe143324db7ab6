// Package handler exposes the engine's external interfaces over a thin
// internal HTTP surface: the order-finalized intake, the payout and
// maturation signals, manual stock movements, and the read side.
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"clinova-system/internal/ledger"
	"clinova-system/internal/ledger/commission"
	"clinova-system/internal/ledger/inventory"
	"clinova-system/internal/ledger/settlement"
)

type Handler struct {
	settler    *settlement.Settler
	commission *commission.Engine
	inventory  *inventory.Ledger
	log        *zap.Logger
}

func New(settler *settlement.Settler, commissionEngine *commission.Engine, inventoryLedger *inventory.Ledger, log *zap.Logger) *Handler {
	return &Handler{
		settler:    settler,
		commission: commissionEngine,
		inventory:  inventoryLedger,
		log:        log,
	}
}

func (h *Handler) Register(r *gin.RouterGroup) {
	r.POST("/orders/finalized", h.OrderFinalized)

	r.GET("/commissions", h.ListCommissions)
	r.POST("/commissions/:id/status", h.TransitionCommission)
	r.POST("/commissions/sweep-deferred", h.SweepDeferred)
	r.POST("/commissions/batch-pay", h.BatchPay)
	r.GET("/payroll/summary", h.PayrollSummary)

	r.GET("/inventory", h.ListInventory)
	r.GET("/inventory/transactions", h.ListTransactions)
	r.POST("/inventory/:id/transactions", h.RecordTransaction)

	r.GET("/alerts", h.ListAlerts)
	r.POST("/alerts/resolve", h.ResolveAlerts)
}

func httpStatus(code ledger.Code) int {
	switch code {
	case ledger.CodeInvalidArgument:
		return http.StatusBadRequest
	case ledger.CodeNotFound, ledger.CodeRuleNotFound:
		return http.StatusNotFound
	case ledger.CodeAmbiguousRule, ledger.CodeInvalidTransition, ledger.CodeInsufficientStock:
		return http.StatusConflict
	case ledger.CodeRetryable:
		return http.StatusServiceUnavailable
	case ledger.CodeDuplicateOperation:
		return http.StatusOK
	}
	return http.StatusInternalServerError
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := ledger.CodeOf(err)
	status := httpStatus(code)
	if status >= http.StatusInternalServerError {
		h.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	}
	c.JSON(status, gin.H{"code": code, "error": err.Error()})
}
