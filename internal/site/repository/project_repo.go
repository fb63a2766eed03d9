package repository

import (
	"context"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"gorm.io/gorm"
)

// ProjectRepository 项目仓库
type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

// Create 创建项目
func (r *ProjectRepository) Create(ctx context.Context, p *entity.Project) error {
	if p.ID == "" {
		p.ID = NewID()
	}
	return translate(r.db.WithContext(ctx).Create(p).Error)
}

// FindByID 根据ID查找项目
func (r *ProjectRepository) FindByID(ctx context.Context, id string) (*entity.Project, error) {
	var p entity.Project
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

// Update 更新项目
func (r *ProjectRepository) Update(ctx context.Context, p *entity.Project) error {
	return translate(r.db.WithContext(ctx).Save(p).Error)
}

// List 项目列表 (ordered by number)
func (r *ProjectRepository) List(ctx context.Context) ([]entity.Project, error) {
	var items []entity.Project
	err := r.db.WithContext(ctx).Order("number ASC").Find(&items).Error
	return items, err
}
