package handler

import (
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/service"
	"github.com/gin-gonic/gin"
)

// ActivityLogHandler 操作日志处理器
type ActivityLogHandler struct {
	svc *service.ActivityLogService
}

// NewActivityLogHandler 创建操作日志处理器
func NewActivityLogHandler(svc *service.ActivityLogService) *ActivityLogHandler {
	return &ActivityLogHandler{svc: svc}
}

// List GET /api/v1/activity-logs?entity_type=&entity_id=&page=&page_size=
func (h *ActivityLogHandler) List(c *gin.Context) {
	entityType, entityID := c.Query("entity_type"), c.Query("entity_id")
	if entityType == "" || entityID == "" {
		BadRequest(c, "entity_type and entity_id are required")
		return
	}
	page, pageSize := GetPagination(c)
	logs, total, err := h.svc.List(c.Request.Context(), GetUserID(c), entityType, entityID, page, pageSize)
	if err != nil {
		Fail(c, err)
		return
	}
	Success(c, ListResponse{Items: logs, Pagination: newPagination(page, pageSize, total)})
}
