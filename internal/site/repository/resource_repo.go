package repository

import (
	"context"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"gorm.io/gorm"
)

// ResourceRepository 项目资源仓库 (supervisors, equipment, worker teams)
type ResourceRepository struct {
	db *gorm.DB
}

func NewResourceRepository(db *gorm.DB) *ResourceRepository {
	return &ResourceRepository{db: db}
}

func (r *ResourceRepository) CreateSupervisor(ctx context.Context, s *entity.ProjectSupervisor) error {
	if s.ID == "" {
		s.ID = NewID()
	}
	return translate(r.db.WithContext(ctx).Create(s).Error)
}

func (r *ResourceRepository) ListSupervisors(ctx context.Context, projectID string) ([]entity.ProjectSupervisor, error) {
	var items []entity.ProjectSupervisor
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("name ASC").Find(&items).Error
	return items, err
}

func (r *ResourceRepository) CreateEquipment(ctx context.Context, e *entity.ProjectEquipment) error {
	if e.ID == "" {
		e.ID = NewID()
	}
	return translate(r.db.WithContext(ctx).Create(e).Error)
}

func (r *ResourceRepository) ListEquipment(ctx context.Context, projectID string) ([]entity.ProjectEquipment, error) {
	var items []entity.ProjectEquipment
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("code ASC, name ASC").Find(&items).Error
	return items, err
}

func (r *ResourceRepository) CreateWorkerTeam(ctx context.Context, w *entity.ProjectWorkerTeam) error {
	if w.ID == "" {
		w.ID = NewID()
	}
	return translate(r.db.WithContext(ctx).Create(w).Error)
}

func (r *ResourceRepository) ListWorkerTeams(ctx context.Context, projectID string) ([]entity.ProjectWorkerTeam, error) {
	var items []entity.ProjectWorkerTeam
	err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("name ASC").Find(&items).Error
	return items, err
}

// Delete 删除项目资源. kind is one of supervisors/equipments/worker_teams.
func (r *ResourceRepository) Delete(ctx context.Context, kind, projectID, id string) error {
	var model interface{}
	switch kind {
	case ResourceSupervisors:
		model = &entity.ProjectSupervisor{}
	case ResourceEquipments:
		model = &entity.ProjectEquipment{}
	case ResourceWorkerTeams:
		model = &entity.ProjectWorkerTeam{}
	default:
		return ErrNotFound
	}
	res := r.db.WithContext(ctx).Where("id = ? AND project_id = ?", id, projectID).Delete(model)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// 资源类别
const (
	ResourceSupervisors = "supervisors"
	ResourceEquipments  = "equipments"
	ResourceWorkerTeams = "worker_teams"
)
