package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"stock-ledger/ledger"
	"stock-ledger/models"
)

const (
	defaultHistoryLimit = 100
	maxHistoryLimit     = 1000
)

type StockInput struct {
	Symbol string              `json:"symbol" binding:"required"`
	Name   string              `json:"name" binding:"required"`
	Price  decimal.NullDecimal `json:"price"`
}

func (in StockInput) stock() (models.Stock, error) {
	if in.Price.Valid && in.Price.Decimal.IsNegative() {
		return models.Stock{}, errors.New("price must not be negative")
	}
	symbol := ledger.NormalizeSymbol(in.Symbol)
	if symbol == "" {
		return models.Stock{}, errors.New("symbol must not be blank")
	}
	return models.Stock{Symbol: symbol, Name: in.Name, Price: in.Price}, nil
}

func (h *Handler) ListStocks(c *gin.Context) {
	stocks, err := h.store.ListStocks(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stocks)
}

func (h *Handler) GetStock(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	stock, err := h.store.StockByID(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

func (h *Handler) GetStockBySymbol(c *gin.Context) {
	stock, err := h.store.StockBySymbol(c.Request.Context(), ledger.NormalizeSymbol(c.Param("symbol")))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

// PriceHistory returns the recorded prices of a stock, newest first.
// ?limit= caps the number of entries.
func (h *Handler) PriceHistory(c *gin.Context) {
	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	ctx := c.Request.Context()
	stock, err := h.store.StockBySymbol(ctx, ledger.NormalizeSymbol(c.Param("symbol")))
	if err != nil {
		h.fail(c, err)
		return
	}
	history, err := h.store.PriceHistory(ctx, stock.Symbol, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"symbol": stock.Symbol, "prices": history})
}

func (h *Handler) CreateStock(c *gin.Context) {
	var input StockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	stock, err := input.stock()
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := h.store.CreateStock(c.Request.Context(), &stock); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, stock)
}

func (h *Handler) UpdateStock(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	var input StockInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	update, err := input.stock()
	if err != nil {
		badRequest(c, err)
		return
	}
	stock, err := h.store.UpdateStock(c.Request.Context(), id, update)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, stock)
}

func (h *Handler) DeleteStock(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if err := h.store.DeleteStock(c.Request.Context(), id); err != nil {
		if errors.Is(err, ledger.ErrInvalidOperation) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Stock deleted successfully"})
}

func (h *Handler) RefreshPrices(c *gin.Context) {
	res, err := h.ledger.RefreshPrices(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("prices refreshed",
		zap.Int("success", res.SuccessCount),
		zap.Int("failed", res.FailCount))
	c.JSON(http.StatusOK, gin.H{
		"message":       "Update Stock Prices Successful",
		"success_count": res.SuccessCount,
		"fail_count":    res.FailCount,
		"failed":        res.Failed,
	})
}
