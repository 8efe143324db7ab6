package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"clinova-system/internal/ledger"
)

// OrderFinalized is the inbound settlement trigger. Upstream delivery is
// at-least-once, so a duplicate event returns the already-settled result
// with 200 rather than an error.
func (h *Handler) OrderFinalized(c *gin.Context) {
	var ev ledger.OrderFinalized
	if err := c.ShouldBindJSON(&ev); err != nil {
		h.fail(c, ledger.Wrap(ledger.CodeInvalidArgument, err, "invalid order finalized payload"))
		return
	}

	result, err := h.settler.FinalizeOrder(c.Request.Context(), ev)
	if err != nil {
		h.fail(c, err)
		return
	}

	status := http.StatusCreated
	if result.Duplicate {
		status = http.StatusOK
	}
	c.JSON(status, result)
}
