package repository

import (
	"context"
	"strings"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"gorm.io/gorm"
)

// UserFilter 用户查询条件
type UserFilter struct {
	Status string
	Role   string
	Search string
}

// UserRepository 用户仓库
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Count 用户总数
func (r *UserRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.User{}).Count(&n).Error
	return n, err
}

// Create 创建用户
func (r *UserRepository) Create(ctx context.Context, u *entity.User) error {
	if u.ID == "" {
		u.ID = NewID()
	}
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	return translate(r.db.WithContext(ctx).Create(u).Error)
}

// FindByID 根据ID查找用户
func (r *UserRepository) FindByID(ctx context.Context, id string) (*entity.User, error) {
	var u entity.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// FindByEmail 根据邮箱查找用户
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	var u entity.User
	err := r.db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&u).Error
	if err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// FindByGoogleSubject 根据Google subject查找用户
func (r *UserRepository) FindByGoogleSubject(ctx context.Context, sub string) (*entity.User, error) {
	var u entity.User
	if err := r.db.WithContext(ctx).Where("google_subject = ?", sub).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// Update 更新用户
func (r *UserRepository) Update(ctx context.Context, u *entity.User) error {
	return translate(r.db.WithContext(ctx).Save(u).Error)
}

// List 用户列表
func (r *UserRepository) List(ctx context.Context, f UserFilter, page, pageSize int) ([]entity.User, int64, error) {
	var items []entity.User
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.User{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.Role != "" {
		query = query.Where("role = ?", f.Role)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		query = query.Where("name ILIKE ? OR email ILIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := paginate(query.Order("created_at ASC"), page, pageSize).Find(&items).Error
	return items, total, err
}
