// Package handlers exposes the ledger, the stock catalog and user
// administration over HTTP.
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock-ledger/auth"
	"stock-ledger/database"
	"stock-ledger/ledger"
)

type Handler struct {
	store   *database.Store
	ledger  *ledger.Ledger
	tokens  *auth.Tokens
	refresh *auth.RefreshTokens
	logger  *zap.Logger
}

// New wires the handlers. refresh may be nil, which disables refresh tokens.
func New(store *database.Store, l *ledger.Ledger, tokens *auth.Tokens, refresh *auth.RefreshTokens, logger *zap.Logger) *Handler {
	return &Handler{
		store:   store,
		ledger:  l,
		tokens:  tokens,
		refresh: refresh,
		logger:  logger.Named("handlers"),
	}
}

func (h *Handler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		h.logger.Error("database ping failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// fail writes err as {"error": msg} with the status its kind maps to.
// Unexpected errors are logged and not echoed to the client.
func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		msg = "Internal Server Error"
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, database.ErrDuplicate), errors.Is(err, ledger.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, ledger.ErrInvalidOperation), errors.Is(err, auth.ErrWeakPassword):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 0)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid id " + strconv.Quote(c.Param("id"))})
		return 0, false
	}
	return uint(id), true
}
