package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stock-ledger/ledger"
	"stock-ledger/middleware"
)

func (h *Handler) GetPortfolio(c *gin.Context) {
	views, err := h.ledger.UserPortfolio(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, views)
}

func (h *Handler) TotalProfit(c *gin.Context) {
	total, err := h.ledger.TotalProfit(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total_profit": total.StringFixed(ledger.PriceScale)})
}
