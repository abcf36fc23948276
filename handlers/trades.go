package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"stock-ledger/middleware"
	"stock-ledger/models"
)

type TradeInput struct {
	// Type is only read by Execute; Buy and Sell fix the side.
	Type     string          `json:"type"`
	Symbol   string          `json:"symbol" binding:"required"`
	Quantity int             `json:"quantity" binding:"required,min=1"`
	Price    decimal.Decimal `json:"price"`
}

func (h *Handler) Buy(c *gin.Context) {
	h.trade(c, func(TradeInput) (models.Side, error) { return models.SideBuy, nil })
}

func (h *Handler) Sell(c *gin.Context) {
	h.trade(c, func(TradeInput) (models.Side, error) { return models.SideSell, nil })
}

// Execute takes the side from the request's "type" field.
func (h *Handler) Execute(c *gin.Context) {
	h.trade(c, func(in TradeInput) (models.Side, error) { return models.ParseSide(in.Type) })
}

func (h *Handler) trade(c *gin.Context, sideOf func(TradeInput) (models.Side, error)) {
	var input TradeInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	side, err := sideOf(input)
	if err != nil {
		badRequest(c, err)
		return
	}
	if !input.Price.IsPositive() {
		badRequest(c, errors.New("price must be positive"))
		return
	}

	trade, err := h.ledger.ExecuteTrade(c.Request.Context(), middleware.UserID(c), input.Symbol, side, input.Quantity, input.Price)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, trade)
}

func (h *Handler) TradeHistory(c *gin.Context) {
	history, err := h.ledger.TradeHistory(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}
