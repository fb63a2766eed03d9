package entity

import "time"

// Project 工程项目
type Project struct {
	ID        string     `json:"id" gorm:"primaryKey;size:32"`
	Number    string     `json:"number" gorm:"size:32;uniqueIndex;not null"` // e.g. CMG-2024-015
	Name      string     `json:"name" gorm:"size:200;not null"`
	Location  string     `json:"location" gorm:"size:200"`
	PMID      string     `json:"pm_id" gorm:"size:32"`
	PMName    string     `json:"pm_name" gorm:"size:128"`
	CMID      string     `json:"cm_id" gorm:"size:32"`
	CMName    string     `json:"cm_name" gorm:"size:128"`
	StartDate *time.Time `json:"start_date" gorm:"type:date"`
	EndDate   *time.Time `json:"end_date" gorm:"type:date"`

	// 关闭流程 PM propose -> CD verify -> MD lock
	Locked            bool       `json:"locked" gorm:"not null;default:false"`
	PendingCD         bool       `json:"pending_cd" gorm:"not null;default:false"`
	PendingMD         bool       `json:"pending_md" gorm:"not null;default:false"`
	ClosureProposedBy string     `json:"closure_proposed_by" gorm:"size:32"`
	ClosureNote       string     `json:"closure_note" gorm:"type:text"`
	ClosureRejectRole string     `json:"closure_reject_role" gorm:"size:20"`
	ClosureRejectNote string     `json:"closure_reject_note" gorm:"type:text"`
	LockedBy          string     `json:"locked_by" gorm:"size:32"`
	LockedAt          *time.Time `json:"locked_at"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Project) TableName() string {
	return "projects"
}
