package handler

import (
	"net/http"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/service"
	"github.com/gin-gonic/gin"
)

// AuthHandler 认证处理器
type AuthHandler struct {
	svc   *service.AuthService
	users *service.UserService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(svc *service.AuthService, users *service.UserService) *AuthHandler {
	return &AuthHandler{svc: svc, users: users}
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// RefreshTokenRequest 刷新Token请求
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// PasswordResetRequest 找回密码请求
type PasswordResetRequest struct {
	Email string `json:"email" binding:"required"`
}

// PasswordResetConfirmRequest 重置密码请求
type PasswordResetConfirmRequest struct {
	Token           string `json:"token" binding:"required"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// signInResponse writes a sign-in result. Only OutcomeOK carries tokens;
// the other outcomes are errors with the outcome in data.
func signInResponse(c *gin.Context, res service.SignInResult) {
	if res.Outcome == service.OutcomeOK {
		Success(c, res)
		return
	}
	var code int
	switch res.Outcome {
	case service.OutcomePendingApproval:
		code = CodePendingApproval
	case service.OutcomeRejected:
		code = CodeAccountRejected
	default:
		code = CodeUnauthorized
	}
	message := "account not found"
	if err := res.Err(); err != nil {
		message = err.Error()
	}
	ErrorWithData(c, code, message, gin.H{"outcome": res.Outcome})
}

// Register 邮箱注册
// POST /api/v1/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	res, err := h.svc.Register(c.Request.Context(), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	// 待审批账号同样返回 201，只是不带 Token
	Created(c, res)
}

// Login 邮箱密码登录
// POST /api/v1/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body")
		return
	}
	res, err := h.svc.SignIn(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		Fail(c, err)
		return
	}
	signInResponse(c, res)
}

// GoogleLogin 跳转 Google 授权页
// GET /api/v1/auth/google/login
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	url, err := h.svc.GoogleLoginURL(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	c.Redirect(http.StatusFound, url)
}

// GoogleCallback Google 授权回调
// GET /api/v1/auth/google/callback
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	code := c.Query("code")
	if code == "" {
		BadRequest(c, "Missing authorization code")
		return
	}
	res, err := h.svc.SignInWithGoogle(c.Request.Context(), code, c.Query("state"))
	if err != nil {
		Fail(c, err)
		return
	}
	signInResponse(c, res)
}

// RefreshToken 刷新Token
// POST /api/v1/auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body")
		return
	}
	res, err := h.svc.RefreshToken(c.Request.Context(), req.RefreshToken)
	if err != nil {
		Fail(c, err)
		return
	}
	signInResponse(c, res)
}

// RequestPasswordReset 发送重置邮件. Unknown emails get the same answer.
// POST /api/v1/auth/password-reset
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req PasswordResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body")
		return
	}
	if err := h.svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"sent": true})
}

// ConfirmPasswordReset 重置密码
// POST /api/v1/auth/password-reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req PasswordResetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body")
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), req.Token, req.Password, req.ConfirmPassword); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"reset": true})
}

// GetCurrentUser 获取当前用户信息
// GET /api/v1/auth/me
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	user, err := h.svc.CurrentUser(c.Request.Context(), GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, user)
}

// UpdateProfile 修改个人资料
// PUT /api/v1/auth/me
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, user)
}

// Logout 退出登录
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body")
		return
	}
	if err := h.svc.SignOut(c.Request.Context(), req.RefreshToken); err != nil {
		Fail(c, err)
		return
	}
	Success(c, nil)
}
