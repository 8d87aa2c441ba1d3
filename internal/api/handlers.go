package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/Voidcoolis/AuthHive/internal/api/middleware"
	"github.com/Voidcoolis/AuthHive/internal/auth"
	"github.com/Voidcoolis/AuthHive/internal/model"
	"github.com/Voidcoolis/AuthHive/internal/store"

	"github.com/gin-gonic/gin"
)

// authResponse 所有认证接口的统一响应体。
// User 经由 model.Account 的 json 标签序列化，绝不包含密码哈希与令牌。
type authResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	User    *model.Account `json:"user,omitempty"`
}

type signupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// handleSignup 创建新账户并设置会话 Cookie。
func (s *Server) handleSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, authResponse{Success: false, Message: "invalid request body"})
		return
	}

	acct, session, err := s.svc.Signup(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.setSessionCookie(c, session)
	c.JSON(http.StatusCreated, authResponse{Success: true, Message: "User created successfully", User: acct})
}

// handleLogin 校验凭证并设置会话 Cookie。
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, authResponse{Success: false, Message: "invalid request body"})
		return
	}

	acct, session, err := s.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.respondError(c, err)
		return
	}

	s.setSessionCookie(c, session)
	c.JSON(http.StatusOK, authResponse{Success: true, Message: "Logged in successfully", User: acct})
}

// handleLogout 清除会话 Cookie。会话无状态，注销从不失败。
func (s *Server) handleLogout(c *gin.Context) {
	s.clearSessionCookie(c)
	c.JSON(http.StatusOK, authResponse{Success: true, Message: "Logged out successfully"})
}

// handleVerifyEmail 用验证码完成邮箱验证。
func (s *Server) handleVerifyEmail(c *gin.Context) {
	var req struct {
		Code string `json:"code"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, authResponse{Success: false, Message: "invalid request body"})
		return
	}

	acct, err := s.svc.VerifyEmail(c.Request.Context(), req.Code)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Success: true, Message: "Email verified successfully", User: acct})
}

// handleForgotPassword 发送密码重置链接。
func (s *Server) handleForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, authResponse{Success: false, Message: "invalid request body"})
		return
	}

	if err := s.svc.ForgotPassword(c.Request.Context(), req.Email); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Success: true, Message: "Password reset link sent to your email"})
}

// handleResetPassword 用 URL 中的重置令牌设置新密码。
func (s *Server) handleResetPassword(c *gin.Context) {
	var req struct {
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, authResponse{Success: false, Message: "invalid request body"})
		return
	}

	if err := s.svc.ResetPassword(c.Request.Context(), c.Param("token"), req.Password); err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Success: true, Message: "Password reset successful"})
}

// handleCheckAuth 返回当前会话对应的账户。
func (s *Server) handleCheckAuth(c *gin.Context) {
	accountID := c.GetString(middleware.AccountIDKey)

	acct, err := s.svc.Account(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusBadRequest, authResponse{Success: false, Message: "User not found"})
			return
		}
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, authResponse{Success: true, Message: "Authenticated", User: acct})
}

// respondError 把领域错误映射为 HTTP 状态码。
// 未识别的错误一律 500，详情只进日志不进响应。
func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, auth.ErrMissingFields),
		errors.Is(err, auth.ErrDuplicateEmail),
		errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidOrExpiredCode),
		errors.Is(err, auth.ErrInvalidOrExpiredToken),
		errors.Is(err, auth.ErrEmailNotFound):
		c.JSON(http.StatusBadRequest, authResponse{Success: false, Message: err.Error()})
	default:
		s.logger.Error("request failed",
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, authResponse{Success: false, Message: "internal server error"})
	}
}

// setSessionCookie 设置 HTTP-only、SameSite=Strict 的会话 Cookie，
// 生产环境加 Secure 标记。
func (s *Server) setSessionCookie(c *gin.Context, session string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookie, session, int(s.signer.TTL().Seconds()), "/", "", s.secureCookies(), true)
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", s.secureCookies(), true)
}

func (s *Server) secureCookies() bool {
	return s.cfg.App.Env == "prod"
}
