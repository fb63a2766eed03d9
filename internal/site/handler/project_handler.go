package handler

import (
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/service"
	"github.com/gin-gonic/gin"
)

// ProjectHandler 项目处理器 (含项目资源)
type ProjectHandler struct {
	svc       *service.ProjectService
	resources *service.ResourceService
}

// NewProjectHandler 创建项目处理器
func NewProjectHandler(svc *service.ProjectService, resources *service.ResourceService) *ProjectHandler {
	return &ProjectHandler{svc: svc, resources: resources}
}

// ============================================================
// 项目
// ============================================================

// List 项目列表
func (h *ProjectHandler) List(c *gin.Context) {
	projects, err := h.svc.List(c.Request.Context(), GetUserID(c))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{Items: projects})
}

// Get 项目详情
func (h *ProjectHandler) Get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, p)
}

// Create 创建项目
func (h *ProjectHandler) Create(c *gin.Context) {
	var req service.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	p, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, p)
}

// Update 更新项目
func (h *ProjectHandler) Update(c *gin.Context) {
	var req service.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	p, err := h.svc.Update(c.Request.Context(), GetUserID(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, p)
}

// closure runs a closure action taking an optional note/reason body.
func (h *ProjectHandler) closure(c *gin.Context, action func(c *gin.Context, req *service.ClosureRequest) (*entity.Project, error)) {
	var req service.ClosureRequest
	if !bindOptional(c, &req) {
		return
	}
	p, err := action(c, &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, p)
}

// ProposeClosure PM 提交项目关闭
// POST /api/v1/projects/:id/propose-closure
func (h *ProjectHandler) ProposeClosure(c *gin.Context) {
	h.closure(c, func(c *gin.Context, req *service.ClosureRequest) (*entity.Project, error) {
		return h.svc.ProposeClosure(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	})
}

// CDVerifyClosure CD 确认
func (h *ProjectHandler) CDVerifyClosure(c *gin.Context) {
	h.closure(c, func(c *gin.Context, _ *service.ClosureRequest) (*entity.Project, error) {
		return h.svc.CDVerifyClosure(c.Request.Context(), GetUserID(c), c.Param("id"))
	})
}

// CDRejectClosure CD 驳回
func (h *ProjectHandler) CDRejectClosure(c *gin.Context) {
	h.closure(c, func(c *gin.Context, req *service.ClosureRequest) (*entity.Project, error) {
		return h.svc.CDRejectClosure(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	})
}

// MDLock MD 锁定项目
func (h *ProjectHandler) MDLock(c *gin.Context) {
	h.closure(c, func(c *gin.Context, _ *service.ClosureRequest) (*entity.Project, error) {
		return h.svc.MDLock(c.Request.Context(), GetUserID(c), c.Param("id"))
	})
}

// MDRejectClosure MD 驳回
func (h *ProjectHandler) MDRejectClosure(c *gin.Context) {
	h.closure(c, func(c *gin.Context, req *service.ClosureRequest) (*entity.Project, error) {
		return h.svc.MDRejectClosure(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	})
}

// Unlock MD 解锁项目
func (h *ProjectHandler) Unlock(c *gin.Context) {
	h.closure(c, func(c *gin.Context, _ *service.ClosureRequest) (*entity.Project, error) {
		return h.svc.Unlock(c.Request.Context(), GetUserID(c), c.Param("id"))
	})
}

// ============================================================
// 项目资源
// ============================================================

// ListResources 项目主管/设备/班组
// GET /api/v1/projects/:id/resources
func (h *ProjectHandler) ListResources(c *gin.Context) {
	res, err := h.resources.List(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, res)
}

// AddSupervisor POST /api/v1/projects/:id/supervisors
func (h *ProjectHandler) AddSupervisor(c *gin.Context) {
	var req service.AddSupervisorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	item, err := h.resources.AddSupervisor(c.Request.Context(), GetUserID(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, item)
}

// AddEquipment POST /api/v1/projects/:id/equipments
func (h *ProjectHandler) AddEquipment(c *gin.Context) {
	var req service.AddEquipmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	item, err := h.resources.AddEquipment(c.Request.Context(), GetUserID(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, item)
}

// AddWorkerTeam POST /api/v1/projects/:id/worker-teams
func (h *ProjectHandler) AddWorkerTeam(c *gin.Context) {
	var req service.AddWorkerTeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	item, err := h.resources.AddWorkerTeam(c.Request.Context(), GetUserID(c), c.Param("id"), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, item)
}

// RemoveResource DELETE /api/v1/projects/:id/resources/:kind/:resourceId
func (h *ProjectHandler) RemoveResource(c *gin.Context) {
	err := h.resources.Remove(c.Request.Context(), GetUserID(c), c.Param("id"), c.Param("kind"), c.Param("resourceId"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}
