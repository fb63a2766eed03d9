package repository

import (
	"context"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"gorm.io/gorm"
)

// SWOFilter 工单查询条件
type SWOFilter struct {
	ProjectID     string
	Status        string
	ClosureStatus string
	SupervisorID  string
}

// SWORepository 现场工单仓库
type SWORepository struct {
	db *gorm.DB
}

func NewSWORepository(db *gorm.DB) *SWORepository {
	return &SWORepository{db: db}
}

// Create 创建工单. A taken (project_id, swo_no) pair yields ErrDuplicate.
func (r *SWORepository) Create(ctx context.Context, s *entity.SiteWorkOrder) error {
	if s.ID == "" {
		s.ID = NewID()
	}
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

// FindByID 根据ID查找工单
func (r *SWORepository) FindByID(ctx context.Context, id string) (*entity.SiteWorkOrder, error) {
	var s entity.SiteWorkOrder
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

// Update 更新工单
func (r *SWORepository) Update(ctx context.Context, s *entity.SiteWorkOrder) error {
	return translate(r.db.WithContext(ctx).Save(s).Error)
}

// ListSWONos 项目下全部工单号
func (r *SWORepository) ListSWONos(ctx context.Context, projectID string) ([]string, error) {
	var nos []string
	err := r.db.WithContext(ctx).
		Model(&entity.SiteWorkOrder{}).
		Where("project_id = ?", projectID).
		Pluck("swo_no", &nos).Error
	return nos, err
}

// List 工单列表
func (r *SWORepository) List(ctx context.Context, f SWOFilter) ([]entity.SiteWorkOrder, error) {
	var items []entity.SiteWorkOrder
	query := r.db.WithContext(ctx).Model(&entity.SiteWorkOrder{})
	if f.ProjectID != "" {
		query = query.Where("project_id = ?", f.ProjectID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.ClosureStatus != "" {
		if f.ClosureStatus == entity.ClosureActive {
			query = query.Where("closure_status = '' OR closure_status IS NULL OR closure_status = ?", entity.ClosureActive)
		} else {
			query = query.Where("closure_status = ?", f.ClosureStatus)
		}
	}
	if f.SupervisorID != "" {
		query = query.Where("supervisor_id = ?", f.SupervisorID)
	}
	err := query.Order("project_id ASC, swo_no ASC").Find(&items).Error
	return items, err
}
