package entity

import (
	"time"

	"gorm.io/datatypes"
)

// SWO 主状态 (supervisor acceptance)
const (
	SWOStatusAssigned      = "Assigned"
	SWOStatusAccepted      = "Accepted"
	SWOStatusRequestChange = "Request Change"
)

// SWO 关闭子流程状态
const (
	ClosureActive    = "Active"
	ClosurePMReview  = "PM Review"
	ClosureCDReview  = "CD Review"
	ClosureGMMD      = "GM_MD Review"
	ClosureClosedSWO = "Closed SWO"
)

// GM / MD decision flags
const (
	GMStatusAcknowledged = "Acknowledged"
	GMStatusRejected     = "Rejected"
	MDStatusLocked       = "Locked"
	MDStatusRejected     = "Rejected"
)

// Activity 工作项
type Activity struct {
	ID          string  `json:"id"`
	Description string  `json:"description"`
	Unit        string  `json:"unit"`
	RequiredQty float64 `json:"required_qty"`
}

// SiteWorkOrder 现场工单
type SiteWorkOrder struct {
	ID             string                        `json:"id" gorm:"primaryKey;size:32"`
	ProjectID      string                        `json:"project_id" gorm:"size:32;not null;uniqueIndex:idx_swo_project_no"`
	SWONo          string                        `json:"swo_no" gorm:"size:64;not null;uniqueIndex:idx_swo_project_no"`
	WorkName       string                        `json:"work_name" gorm:"size:200;not null"`
	Description    string                        `json:"description" gorm:"type:text"`
	SupervisorID   string                        `json:"supervisor_id" gorm:"size:32;index"`
	SupervisorName string                        `json:"supervisor_name" gorm:"size:128"`
	StartDate      *time.Time                    `json:"start_date" gorm:"type:date"`
	DueDate        *time.Time                    `json:"due_date" gorm:"type:date"`
	Activities     datatypes.JSONSlice[Activity] `json:"activities" gorm:"type:jsonb"`
	EquipmentRefs  datatypes.JSONSlice[string]   `json:"equipment_refs" gorm:"type:jsonb"`
	WorkerTeamRefs datatypes.JSONSlice[string]   `json:"worker_team_refs" gorm:"type:jsonb"`

	Status       string `json:"status" gorm:"size:20;not null;default:Assigned"`
	ChangeReason string `json:"change_reason" gorm:"type:text"`

	// 关闭子流程, empty means Active
	ClosureStatus    string     `json:"closure_status" gorm:"size:20"`
	ClosureRequestAt *time.Time `json:"closure_request_at"`
	PMNote           string     `json:"pm_note" gorm:"type:text"`
	PMQualityScore   *int       `json:"pm_quality_score"`
	PMOnTime         *bool      `json:"pm_on_time"`
	PMDelayReason    string     `json:"pm_delay_reason" gorm:"type:text"`
	PMEvaluatedBy    string     `json:"pm_evaluated_by" gorm:"size:32"`
	CDClosureNote    string     `json:"cd_closure_note" gorm:"type:text"`
	CDVerifiedBy     string     `json:"cd_verified_by" gorm:"size:32"`
	GMStatus         string     `json:"gm_status" gorm:"size:20"`
	GMNote           string     `json:"gm_note" gorm:"type:text"`
	MDStatus         string     `json:"md_status" gorm:"size:20"`
	MDNote           string     `json:"md_note" gorm:"type:text"`
	ClosedAt         *time.Time `json:"closed_at"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SiteWorkOrder) TableName() string {
	return "site_work_orders"
}

// EffectiveClosureStatus returns ClosureActive when no closure is in flight.
func (s *SiteWorkOrder) EffectiveClosureStatus() string {
	if s.ClosureStatus == "" {
		return ClosureActive
	}
	return s.ClosureStatus
}
