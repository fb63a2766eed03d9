package handler

import (
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/service"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SWOHandler 现场工单处理器
type SWOHandler struct {
	svc    *service.SWOService
	export *service.ExportService
}

// NewSWOHandler 创建工单处理器
func NewSWOHandler(svc *service.SWOService, export *service.ExportService) *SWOHandler {
	return &SWOHandler{svc: svc, export: export}
}

// List 工单列表
// GET /api/v1/swos?project_id=&status=&closure_status=&supervisor_id=
func (h *SWOHandler) List(c *gin.Context) {
	filter := repository.SWOFilter{
		ProjectID:     c.Query("project_id"),
		Status:        c.Query("status"),
		ClosureStatus: c.Query("closure_status"),
		SupervisorID:  c.Query("supervisor_id"),
	}
	swos, err := h.svc.List(c.Request.Context(), GetUserID(c), filter)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{Items: swos})
}

// Get 工单详情
func (h *SWOHandler) Get(c *gin.Context) {
	swo, err := h.svc.Get(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, swo)
}

// Create 创建工单
func (h *SWOHandler) Create(c *gin.Context) {
	var req service.CreateSWORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	swo, err := h.svc.Create(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Created(c, swo)
}

// Update 更新工单
func (h *SWOHandler) Update(c *gin.Context) {
	var req workflow.SWOFields
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	swo, err := h.svc.Update(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, swo)
}

type swoAction func(c *gin.Context, id string, req *service.ReasonRequest) (*entity.SiteWorkOrder, error)

// act runs one lifecycle action. The reason/note body is optional.
func (h *SWOHandler) act(action swoAction) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.ReasonRequest
		if !bindOptional(c, &req) {
			return
		}
		swo, err := action(c, c.Param("id"), &req)
		if err != nil {
			Fail(c, err)
			return
		}
		Success(c, swo)
	}
}

// Accept POST /api/v1/swos/:id/accept
func (h *SWOHandler) Accept() gin.HandlerFunc {
	return h.act(func(c *gin.Context, id string, _ *service.ReasonRequest) (*entity.SiteWorkOrder, error) {
		return h.svc.Accept(c.Request.Context(), GetUserID(c), id)
	})
}

// RequestChange POST /api/v1/swos/:id/request-change
func (h *SWOHandler) RequestChange() gin.HandlerFunc {
	return h.act(func(c *gin.Context, id string, req *service.ReasonRequest) (*entity.SiteWorkOrder, error) {
		return h.svc.RequestChange(c.Request.Context(), GetUserID(c), id, req)
	})
}

// RequestClosure POST /api/v1/swos/:id/request-closure
func (h *SWOHandler) RequestClosure() gin.HandlerFunc {
	return h.act(func(c *gin.Context, id string, _ *service.ReasonRequest) (*entity.SiteWorkOrder, error) {
		return h.svc.RequestClosure(c.Request.Context(), GetUserID(c), id)
	})
}

// PMEvaluation POST /api/v1/swos/:id/pm-evaluation
func (h *SWOHandler) PMEvaluation(c *gin.Context) {
	var req workflow.PMEvaluation
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	swo, err := h.svc.SubmitPMEvaluation(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, swo)
}

// CDVerify POST /api/v1/swos/:id/cd-verify
func (h *SWOHandler) CDVerify() gin.HandlerFunc {
	return h.act(func(c *gin.Context, id string, _ *service.ReasonRequest) (*entity.SiteWorkOrder, error) {
		return h.svc.CDVerify(c.Request.Context(), GetUserID(c), id)
	})
}

// CDReject POST /api/v1/swos/:id/cd-reject
func (h *SWOHandler) CDReject() gin.HandlerFunc {
	return h.act(func(c *gin.Context, id string, req *service.ReasonRequest) (*entity.SiteWorkOrder, error) {
		return h.svc.CDReject(c.Request.Context(), GetUserID(c), id, req)
	})
}

// GMAcknowledge POST /api/v1/swos/:id/gm-acknowledge
func (h *SWOHandler) GMAcknowledge() gin.HandlerFunc {
	return h.act(func(c *gin.Context, id string, req *service.ReasonRequest) (*entity.SiteWorkOrder, error) {
		return h.svc.GMAcknowledge(c.Request.Context(), GetUserID(c), id, req)
	})
}

// GMReject POST /api/v1/swos/:id/gm-reject
func (h *SWOHandler) GMReject() gin.HandlerFunc {
	return h.act(func(c *gin.Context, id string, req *service.ReasonRequest) (*entity.SiteWorkOrder, error) {
		return h.svc.GMReject(c.Request.Context(), GetUserID(c), id, req)
	})
}

// MDLock POST /api/v1/swos/:id/md-lock
func (h *SWOHandler) MDLock() gin.HandlerFunc {
	return h.act(func(c *gin.Context, id string, req *service.ReasonRequest) (*entity.SiteWorkOrder, error) {
		return h.svc.MDLock(c.Request.Context(), GetUserID(c), id, req)
	})
}

// MDReject POST /api/v1/swos/:id/md-reject
func (h *SWOHandler) MDReject() gin.HandlerFunc {
	return h.act(func(c *gin.Context, id string, req *service.ReasonRequest) (*entity.SiteWorkOrder, error) {
		return h.svc.MDReject(c.Request.Context(), GetUserID(c), id, req)
	})
}

// ResubmitClosure POST /api/v1/swos/:id/resubmit-closure
func (h *SWOHandler) ResubmitClosure() gin.HandlerFunc {
	return h.act(func(c *gin.Context, id string, _ *service.ReasonRequest) (*entity.SiteWorkOrder, error) {
		return h.svc.ResubmitClosure(c.Request.Context(), GetUserID(c), id)
	})
}

// CancelClosure POST /api/v1/swos/:id/cancel-closure
func (h *SWOHandler) CancelClosure() gin.HandlerFunc {
	return h.act(func(c *gin.Context, id string, _ *service.ReasonRequest) (*entity.SiteWorkOrder, error) {
		return h.svc.CancelClosure(c.Request.Context(), GetUserID(c), id)
	})
}

// Progress 累计进度
// GET /api/v1/swos/:id/progress?cutoff=YYYY-MM-DD
func (h *SWOHandler) Progress(c *gin.Context) {
	summary, err := h.svc.Progress(c.Request.Context(), GetUserID(c), c.Param("id"), c.Query("cutoff"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, summary)
}

// ==================== Excel 导入/导出 ====================

// Export GET /api/v1/swos/:id/export
func (h *SWOHandler) Export(c *gin.Context) {
	f, filename, err := h.export.ExportProgress(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	defer f.Close()

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename=\""+filename+"\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write excel: "+err.Error())
	}
}

// ImportActivities POST /api/v1/swos/:id/activities/import
func (h *SWOHandler) ImportActivities(c *gin.Context) {
	file, _, err := c.Request.FormFile("file")
	if err != nil {
		BadRequest(c, "Excel file is required")
		return
	}
	defer file.Close()

	f, err := excelize.OpenReader(file)
	if err != nil {
		BadRequest(c, "Cannot parse Excel file: "+err.Error())
		return
	}
	defer f.Close()

	result, err := h.export.ImportActivities(c.Request.Context(), GetUserID(c), c.Param("id"), f)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, result)
}

// ActivityTemplate GET /api/v1/templates/activities
func (h *SWOHandler) ActivityTemplate(c *gin.Context) {
	f, err := h.export.ActivityTemplate()
	if err != nil {
		InternalError(c, err.Error())
		return
	}
	defer f.Close()

	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename=\"Activity_Import_Template.xlsx\"")
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		InternalError(c, "write template: "+err.Error())
	}
}
