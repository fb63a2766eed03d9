package repository

import (
	"context"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"gorm.io/gorm"
)

// ReportFilter 日报查询条件
type ReportFilter struct {
	ProjectID string
	SWOID     string
	Status    string
	DateFrom  string
	DateTo    string
}

// DailyReportRepository 日报仓库
type DailyReportRepository struct {
	db *gorm.DB
}

func NewDailyReportRepository(db *gorm.DB) *DailyReportRepository {
	return &DailyReportRepository{db: db}
}

// Create 创建日报. A second report for the same (swo_id, date) yields ErrDuplicate.
func (r *DailyReportRepository) Create(ctx context.Context, rep *entity.DailyReport) error {
	if rep.ID == "" {
		rep.ID = NewID()
	}
	return translate(r.db.WithContext(ctx).Create(rep).Error)
}

// FindByID 根据ID查找日报
func (r *DailyReportRepository) FindByID(ctx context.Context, id string) (*entity.DailyReport, error) {
	var rep entity.DailyReport
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&rep).Error; err != nil {
		return nil, translate(err)
	}
	return &rep, nil
}

// FindBySWOAndDate 按工单和日期查找日报
func (r *DailyReportRepository) FindBySWOAndDate(ctx context.Context, swoID, date string) (*entity.DailyReport, error) {
	var rep entity.DailyReport
	err := r.db.WithContext(ctx).
		Where("swo_id = ? AND date = ?", swoID, date).
		First(&rep).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rep, nil
}

// Update 更新日报
func (r *DailyReportRepository) Update(ctx context.Context, rep *entity.DailyReport) error {
	return translate(r.db.WithContext(ctx).Save(rep).Error)
}

// Delete 删除日报
func (r *DailyReportRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.DailyReport{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// List 日报列表 (newest date first)
func (r *DailyReportRepository) List(ctx context.Context, f ReportFilter) ([]entity.DailyReport, error) {
	var items []entity.DailyReport
	query := r.db.WithContext(ctx).Model(&entity.DailyReport{})
	if f.ProjectID != "" {
		query = query.Where("project_id = ?", f.ProjectID)
	}
	if f.SWOID != "" {
		query = query.Where("swo_id = ?", f.SWOID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.DateFrom != "" {
		query = query.Where("date >= ?", f.DateFrom)
	}
	if f.DateTo != "" {
		query = query.Where("date <= ?", f.DateTo)
	}
	err := query.Order("date DESC, created_at DESC").Find(&items).Error
	return items, err
}
