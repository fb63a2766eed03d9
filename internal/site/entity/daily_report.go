package entity

import (
	"time"

	"gorm.io/datatypes"
)

// 日报状态
const (
	ReportStatusDraft     = "Draft"
	ReportStatusPendingCM = "Pending CM"
	ReportStatusPendingPM = "Pending PM"
	ReportStatusApproved  = "Approved"
	ReportStatusRejected  = "Rejected"
)

// DateLayout is the calendar-date format used for report keys.
const DateLayout = "2006-01-02"

// ActivityProgress today's quantity for one activity
type ActivityProgress struct {
	ActivityID string  `json:"activity_id"`
	Today      float64 `json:"today"`
}

// EquipmentUsage 机械使用记录
type EquipmentUsage struct {
	EquipmentID string  `json:"equipment_id"`
	Hours       float64 `json:"hours"`
	Note        string  `json:"note,omitempty"`
}

// WorkerCount 班组人数
type WorkerCount struct {
	TeamID    string `json:"team_id"`
	Headcount int    `json:"headcount"`
}

// Attachment 附件
type Attachment struct {
	Name        string    `json:"name"`
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// DailyReport 施工日报
type DailyReport struct {
	ID             string                                `json:"id" gorm:"primaryKey;size:32"`
	SWOID          string                                `json:"swo_id" gorm:"size:32;not null;uniqueIndex:idx_report_swo_date"`
	ProjectID      string                                `json:"project_id" gorm:"size:32;not null;index"`
	Date           string                                `json:"date" gorm:"size:10;not null;uniqueIndex:idx_report_swo_date"`
	SupervisorID   string                                `json:"supervisor_id" gorm:"size:32;index"`
	SupervisorName string                                `json:"supervisor_name" gorm:"size:128"`
	Progress       datatypes.JSONSlice[ActivityProgress] `json:"progress" gorm:"type:jsonb"`
	EquipmentUsage datatypes.JSONSlice[EquipmentUsage]   `json:"equipment_usage" gorm:"type:jsonb"`
	WorkerCounts   datatypes.JSONSlice[WorkerCount]      `json:"worker_counts" gorm:"type:jsonb"`
	Weather        string                                `json:"weather" gorm:"size:64"`
	Notes          string                                `json:"notes" gorm:"type:text"`
	Attachments    datatypes.JSONSlice[Attachment]       `json:"attachments" gorm:"type:jsonb"`

	Status       string     `json:"status" gorm:"size:20;not null;index"`
	SubmittedAt  *time.Time `json:"submitted_at"`
	CMApprovedBy string     `json:"cm_approved_by" gorm:"size:32"`
	CMApprovedAt *time.Time `json:"cm_approved_at"`
	PMApprovedBy string     `json:"pm_approved_by" gorm:"size:32"`
	PMApprovedAt *time.Time `json:"pm_approved_at"`
	RejectReason string     `json:"reject_reason" gorm:"type:text"`
	RejectedBy   string     `json:"rejected_by" gorm:"size:32"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (DailyReport) TableName() string {
	return "daily_reports"
}

// TodayFor returns the reported quantity for activityID.
func (r *DailyReport) TodayFor(activityID string) float64 {
	var sum float64
	for _, p := range r.Progress {
		if p.ActivityID == activityID {
			sum += p.Today
		}
	}
	return sum
}
