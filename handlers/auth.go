package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"stock-ledger/auth"
	"stock-ledger/database"
	"stock-ledger/ledger"
	"stock-ledger/models"
)

type AuthInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type RefreshInput struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h *Handler) Register(c *gin.Context) {
	var input AuthInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	user := models.User{
		Username:     strings.TrimSpace(input.Username),
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := h.store.CreateUser(c.Request.Context(), &user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "Username already exists"})
			return
		}
		h.fail(c, err)
		return
	}

	h.logger.Info("user registered", zap.Uint("user_id", user.ID), zap.String("username", user.Username))
	c.JSON(http.StatusCreated, gin.H{"id": user.ID, "username": user.Username})
}

func (h *Handler) Login(c *gin.Context) {
	var input AuthInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.store.UserByUsername(c.Request.Context(), strings.TrimSpace(input.Username))
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			h.fail(c, auth.ErrInvalidCredentials)
			return
		}
		h.fail(c, err)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, input.Password); err != nil {
		h.fail(c, err)
		return
	}

	resp, err := h.issue(c, user)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp["message"] = "Login successful"
	resp["role"] = user.Role
	resp["user_id"] = user.ID
	resp["username"] = user.Username
	c.JSON(http.StatusOK, resp)
}

// Refresh trades a refresh token for a new access token. The refresh token
// is single use; a new one is returned alongside.
func (h *Handler) Refresh(c *gin.Context) {
	if h.refresh == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": "refresh tokens are disabled"})
		return
	}
	var input RefreshInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	userID, err := h.refresh.Consume(ctx, input.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}
	user, err := h.store.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			h.fail(c, auth.ErrInvalidToken)
			return
		}
		h.fail(c, err)
		return
	}

	resp, err := h.issue(c, user)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) issue(c *gin.Context, user *models.User) (gin.H, error) {
	token, err := h.tokens.Issue(user)
	if err != nil {
		return nil, err
	}
	resp := gin.H{"token": token}
	if h.refresh != nil {
		refreshToken, err := h.refresh.Issue(c.Request.Context(), user)
		if err != nil {
			return nil, err
		}
		resp["refresh_token"] = refreshToken
	}
	return resp, nil
}
