package repository

import (
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 错误定义
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Repositories 仓库集合
type Repositories struct {
	User        *UserRepository
	Project     *ProjectRepository
	SWO         *SWORepository
	Report      *DailyReportRepository
	Resource    *ResourceRepository
	ActivityLog *ActivityLogRepository
}

// NewRepositories 创建仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User:        NewUserRepository(db),
		Project:     NewProjectRepository(db),
		SWO:         NewSWORepository(db),
		Report:      NewDailyReportRepository(db),
		Resource:    NewResourceRepository(db),
		ActivityLog: NewActivityLogRepository(db),
	}
}

// NewID returns an opaque 32 character document id.
func NewID() string {
	return uuid.New().String()[:32]
}

// translate maps gorm errors onto the repository sentinels. Duplicate keys
// are only recognised when the connection was opened with TranslateError.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Join(ErrDuplicate, err)
	}
	return err
}

func paginate(query *gorm.DB, page, pageSize int) *gorm.DB {
	if page <= 0 || pageSize <= 0 {
		return query
	}
	return query.Offset((page - 1) * pageSize).Limit(pageSize)
}
