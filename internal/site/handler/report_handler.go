package handler

import (
	"io"
	"mime/multipart"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/service"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
	"github.com/gin-gonic/gin"
)

// ReportHandler 日报处理器
type ReportHandler struct {
	svc         *service.ReportService
	attachments *service.AttachmentService
}

// NewReportHandler 创建日报处理器
func NewReportHandler(svc *service.ReportService, attachments *service.AttachmentService) *ReportHandler {
	return &ReportHandler{svc: svc, attachments: attachments}
}

// RejectRequest 驳回请求
type RejectRequest struct {
	Reason string `json:"reason"`
}

// List 日报列表
// GET /api/v1/reports?project_id=&swo_id=&status=&date_from=&date_to=
func (h *ReportHandler) List(c *gin.Context) {
	filter := repository.ReportFilter{
		ProjectID: c.Query("project_id"),
		SWOID:     c.Query("swo_id"),
		Status:    c.Query("status"),
		DateFrom:  c.Query("date_from"),
		DateTo:    c.Query("date_to"),
	}
	reports, err := h.svc.List(c.Request.Context(), GetUserID(c), filter)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{Items: reports})
}

// Get 日报详情 (含累计进度)
func (h *ReportHandler) Get(c *gin.Context) {
	view, err := h.svc.Get(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, view)
}

// Submit 提交日报
// POST /api/v1/reports
func (h *ReportHandler) Submit(c *gin.Context) {
	var req service.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	r, err := h.svc.Submit(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, r)
}

// SaveDraft 保存草稿
// POST /api/v1/reports/draft
func (h *ReportHandler) SaveDraft(c *gin.Context) {
	var req service.SubmitReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	r, err := h.svc.SaveDraft(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, r)
}

// Update 修改日报内容
func (h *ReportHandler) Update(c *gin.Context) {
	var req workflow.ReportContent
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	r, err := h.svc.Update(c.Request.Context(), GetUserID(c), c.Param("id"), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, r)
}

// Approve 审批通过
func (h *ReportHandler) Approve(c *gin.Context) {
	r, err := h.svc.Approve(c.Request.Context(), GetUserID(c), c.Param("id"))
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, r)
}

// Reject 驳回
func (h *ReportHandler) Reject(c *gin.Context) {
	var req RejectRequest
	if !bindOptional(c, &req) {
		return
	}
	r, err := h.svc.Reject(c.Request.Context(), GetUserID(c), c.Param("id"), req.Reason)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, r)
}

// Delete 删除日报
func (h *ReportHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), GetUserID(c), c.Param("id")); err != nil {
		Fail(c, err)
		return
	}
	Success(c, gin.H{"deleted": true})
}

// UploadAttachments 上传日报附件
// POST /api/v1/reports/attachments (multipart: swo_id, date, files)
func (h *ReportHandler) UploadAttachments(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		BadRequest(c, "Cannot parse upload: "+err.Error())
		return
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		// 也尝试获取单文件
		headers = form.File["file"]
	}
	if len(headers) == 0 {
		BadRequest(c, "No file uploaded")
		return
	}

	files := make([]service.UploadFile, 0, len(headers))
	for _, fh := range headers {
		files = append(files, uploadFile(fh))
	}
	res, err := h.attachments.Upload(c.Request.Context(), GetUserID(c), c.PostForm("swo_id"), c.PostForm("date"), files)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, res)
}

func uploadFile(fh *multipart.FileHeader) service.UploadFile {
	return service.UploadFile{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open:        func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// RemoveAttachment 删除附件
// DELETE /api/v1/reports/:id/attachments?key=
func (h *ReportHandler) RemoveAttachment(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		BadRequest(c, "key is required")
		return
	}
	r, err := h.attachments.Remove(c.Request.Context(), GetUserID(c), c.Param("id"), key)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, r)
}
