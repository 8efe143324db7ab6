package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"clinova-system/internal/ledger"
	"clinova-system/internal/ledger/commission"
)

func tenantIDQuery(c *gin.Context) (int64, error) {
	tenantID, err := strconv.ParseInt(c.Query("tenantId"), 10, 64)
	if err != nil || tenantID <= 0 {
		return 0, ledger.E(ledger.CodeInvalidArgument, "tenantId query parameter is required")
	}
	return tenantID, nil
}

func (h *Handler) ListCommissions(c *gin.Context) {
	tenantID, err := tenantIDQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	var filter commission.ListFilter
	filter.StaffID, _ = strconv.ParseInt(c.Query("staffId"), 10, 64)
	filter.OrderID, _ = strconv.ParseInt(c.Query("orderId"), 10, 64)
	filter.Status = c.Query("status")
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	records, err := h.commission.ListRecords(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"records": records})
}

type transitionRequest struct {
	TenantID int64  `json:"tenantId" binding:"required"`
	Status   string `json:"status" binding:"required"`
}

// TransitionCommission is the signal surface for the external payout
// scheduler and milestone notifications.
func (h *Handler) TransitionCommission(c *gin.Context) {
	recordID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || recordID <= 0 {
		h.fail(c, ledger.E(ledger.CodeInvalidArgument, "record ID is required"))
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, ledger.Wrap(ledger.CodeInvalidArgument, err, "invalid transition payload"))
		return
	}

	record, err := h.commission.Transition(c.Request.Context(), req.TenantID, recordID, req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"record": record})
}

type sweepRequest struct {
	TenantID int64     `json:"tenantId" binding:"required"`
	AsOf     time.Time `json:"asOf" binding:"required"`
}

// SweepDeferred is the periodic maturation signal from the external
// scheduler; the sweep clock travels in the request.
func (h *Handler) SweepDeferred(c *gin.Context) {
	var req sweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, ledger.Wrap(ledger.CodeInvalidArgument, err, "invalid sweep payload"))
		return
	}

	matured, err := h.commission.SweepDeferred(c.Request.Context(), req.TenantID, req.AsOf)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"matured": matured})
}

type batchPayRequest struct {
	TenantID int64   `json:"tenantId" binding:"required"`
	IDs      []int64 `json:"ids" binding:"required"`
}

func (h *Handler) BatchPay(c *gin.Context) {
	var req batchPayRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, ledger.Wrap(ledger.CodeInvalidArgument, err, "invalid batch pay payload"))
		return
	}

	paid, failures := h.commission.BatchPay(c.Request.Context(), req.TenantID, req.IDs)
	c.JSON(http.StatusOK, gin.H{"paid": paid, "errors": failures})
}

func (h *Handler) PayrollSummary(c *gin.Context) {
	tenantID, err := tenantIDQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}
	from, err := time.Parse("2006-01-02", c.Query("from"))
	if err != nil {
		h.fail(c, ledger.E(ledger.CodeInvalidArgument, "from date is required (2006-01-02)"))
		return
	}
	to, err := time.Parse("2006-01-02", c.Query("to"))
	if err != nil {
		h.fail(c, ledger.E(ledger.CodeInvalidArgument, "to date is required (2006-01-02)"))
		return
	}

	summaries, err := h.commission.PayrollSummary(c.Request.Context(), tenantID, from, to.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"summaries": summaries})
}
