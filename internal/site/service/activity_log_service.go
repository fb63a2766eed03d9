package service

import (
	"context"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
)

// ActivityLogService 操作日志服务
type ActivityLogService struct {
	*base
}

// NewActivityLogService 创建操作日志服务
func NewActivityLogService(b *base) *ActivityLogService {
	return &ActivityLogService{base: b}
}

// List 查询实体的操作日志. The actor must be able to see the entity.
func (s *ActivityLogService) List(ctx context.Context, actorID, entityType, entityID string, page, pageSize int) ([]entity.ActivityLog, int64, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, 0, err
	}
	if err := s.canSee(ctx, actor, entityType, entityID); err != nil {
		return nil, 0, err
	}
	return s.stores.Logs.FindByEntity(ctx, entityType, entityID, page, pageSize)
}

func (s *ActivityLogService) canSee(ctx context.Context, actor *entity.User, entityType, entityID string) error {
	switch entityType {
	case entity.LogEntityProject:
		p, err := s.project(ctx, entityID)
		if err != nil {
			return err
		}
		if !workflow.ProjectInScope(actor, p) {
			return workflow.ErrForbidden
		}
	case entity.LogEntitySWO:
		swo, _, err := s.swo(ctx, entityID)
		if err != nil {
			return err
		}
		if !workflow.SWOInScope(actor, swo) {
			return workflow.ErrForbidden
		}
	case entity.LogEntityReport:
		r, err := s.stores.Reports.FindByID(ctx, entityID)
		if err != nil {
			return notFound(err, "report "+entityID)
		}
		swo, err := s.stores.SWOs.FindByID(ctx, r.SWOID)
		if err != nil {
			swo = nil
		}
		if !workflow.ReportInScope(actor, r, swo) {
			return workflow.ErrForbidden
		}
	case entity.LogEntityUser:
		if actor.ID != entityID && !workflow.Can(actor.Role, workflow.ActManageUsers, "") {
			return workflow.ErrForbidden
		}
	default:
		return workflow.Invalid("entity_type", "unknown entity type "+entityType)
	}
	return nil
}
