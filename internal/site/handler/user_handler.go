package handler

import (
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/service"
	"github.com/gin-gonic/gin"
)

// UserHandler 用户管理处理器
type UserHandler struct {
	svc *service.UserService
}

// NewUserHandler 创建用户处理器
func NewUserHandler(svc *service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// List 用户列表
// GET /api/v1/users?status=&role=&search=&page=&page_size=
func (h *UserHandler) List(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filter := repository.UserFilter{
		Status: c.Query("status"),
		Role:   c.Query("role"),
		Search: c.Query("search"),
	}
	users, total, err := h.svc.List(c.Request.Context(), GetUserID(c), filter, page, pageSize)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{Items: users, Pagination: newPagination(page, pageSize, total)})
}

// Get 用户详情
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.svc.Get(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, user)
}

// SetRole 设置角色
// PUT /api/v1/users/:id/role
func (h *UserHandler) SetRole(c *gin.Context) {
	var req struct {
		Role string `json:"role" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	user, err := h.svc.SetRole(c.Request.Context(), GetUserID(c), c.Param("id"), req.Role)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, user)
}

// SetStatus 审批/驳回账号
// PUT /api/v1/users/:id/status
func (h *UserHandler) SetStatus(c *gin.Context) {
	var req struct {
		Status string `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	user, err := h.svc.SetStatus(c.Request.Context(), GetUserID(c), c.Param("id"), req.Status)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, user)
}

// SetProjects 分配项目
// PUT /api/v1/users/:id/projects
func (h *UserHandler) SetProjects(c *gin.Context) {
	var req struct {
		ProjectIDs []string `json:"project_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	user, err := h.svc.SetAssignedProjects(c.Request.Context(), GetUserID(c), c.Param("id"), req.ProjectIDs)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, user)
}
