package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock-ledger/middleware"
)

func (h *Handler) ListUsers(c *gin.Context) {
	users, err := h.store.ListUsers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

// DeleteUser removes a user with all of their trades and positions.
func (h *Handler) DeleteUser(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}
	if id == middleware.UserID(c) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "cannot delete your own account"})
		return
	}
	if err := h.store.DeleteUser(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("user deleted", zap.Uint("user_id", id), zap.Uint("by", middleware.UserID(c)))
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
