package api

import (
	"github.com/gin-gonic/gin"
	"github.com/wfunc/memory-duel/internal/errors"
	"github.com/wfunc/memory-duel/internal/service"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// GuestLoginRequest 游客登录请求
type GuestLoginRequest struct {
	Nickname string `json:"nickname"`
}

// GuestLogin 游客登录
// POST /api/v1/auth/guest
func (h *AuthHandler) GuestLogin(c *gin.Context) {
	var req GuestLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, errors.Wrap(err, errors.ErrInvalidParam))
		return
	}

	resp, err := h.authService.GuestLogin(req.Nickname)
	if err != nil {
		respondError(c, err)
		return
	}

	respondOK(c, resp)
}
