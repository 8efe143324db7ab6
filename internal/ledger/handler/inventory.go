package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"clinova-system/internal/ledger"
	"clinova-system/internal/ledger/inventory"
)

func (h *Handler) ListInventory(c *gin.Context) {
	tenantID, err := tenantIDQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	items, err := h.inventory.ListItems(c.Request.Context(), tenantID, c.Query("lowStockOnly") == "true")
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) ListTransactions(c *gin.Context) {
	tenantID, err := tenantIDQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	var filter inventory.TransactionFilter
	filter.InventoryID, _ = strconv.ParseInt(c.Query("inventoryId"), 10, 64)
	filter.TransactionType = c.Query("type")
	if from := c.Query("from"); from != "" {
		filter.From, _ = time.Parse(time.RFC3339, from)
	}
	if to := c.Query("to"); to != "" {
		filter.To, _ = time.Parse(time.RFC3339, to)
	}
	filter.Limit, _ = strconv.Atoi(c.Query("limit"))
	filter.Offset, _ = strconv.Atoi(c.Query("offset"))

	transactions, err := h.inventory.ListTransactions(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transactions": transactions})
}

type recordTransactionRequest struct {
	TenantID      int64   `json:"tenantId" binding:"required"`
	Type          string  `json:"type" binding:"required"`
	Quantity      int     `json:"quantity" binding:"required"`
	ReferenceID   *int64  `json:"referenceId"`
	ReferenceType *string `json:"referenceType"`
	OperatorID    *int64  `json:"operatorId"`
	Notes         *string `json:"notes"`
}

// RecordTransaction covers the manual stock movements: restock, adjust,
// return, and off-order consumption.
func (h *Handler) RecordTransaction(c *gin.Context) {
	inventoryID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || inventoryID <= 0 {
		h.fail(c, ledger.E(ledger.CodeInvalidArgument, "inventory ID is required"))
		return
	}

	var req recordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, ledger.Wrap(ledger.CodeInvalidArgument, err, "invalid transaction payload"))
		return
	}

	txn, change, err := h.inventory.RecordTransaction(c.Request.Context(), inventory.RecordInput{
		TenantID:        req.TenantID,
		InventoryID:     inventoryID,
		TransactionType: req.Type,
		Quantity:        req.Quantity,
		ReferenceID:     req.ReferenceID,
		ReferenceType:   req.ReferenceType,
		OperatorID:      req.OperatorID,
		Notes:           req.Notes,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := gin.H{"transaction": txn}
	if change != nil {
		resp["alertChange"] = gin.H{"change": change.Change, "alert": change.Alert}
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *Handler) ListAlerts(c *gin.Context) {
	tenantID, err := tenantIDQuery(c)
	if err != nil {
		h.fail(c, err)
		return
	}

	alerts, err := h.inventory.ListAlerts(c.Request.Context(), tenantID, c.Query("unresolvedOnly") == "true")
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

type resolveAlertsRequest struct {
	TenantID int64   `json:"tenantId" binding:"required"`
	IDs      []int64 `json:"ids" binding:"required"`
}

func (h *Handler) ResolveAlerts(c *gin.Context) {
	var req resolveAlertsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, ledger.Wrap(ledger.CodeInvalidArgument, err, "invalid resolve payload"))
		return
	}

	resolved, err := h.inventory.ResolveAlerts(c.Request.Context(), req.TenantID, req.IDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"resolved": resolved})
}
