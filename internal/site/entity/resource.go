package entity

import "time"

// ProjectSupervisor 项目现场主管
type ProjectSupervisor struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	ProjectID string    `json:"project_id" gorm:"size:32;not null;index"`
	UserID    string    `json:"user_id" gorm:"size:32"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	Phone     string    `json:"phone" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
}

func (ProjectSupervisor) TableName() string {
	return "project_supervisors"
}

// ProjectEquipment 项目机械设备
type ProjectEquipment struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	ProjectID string    `json:"project_id" gorm:"size:32;not null;index"`
	Code      string    `json:"code" gorm:"size:50"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	Type      string    `json:"type" gorm:"size:64"`
	CreatedAt time.Time `json:"created_at"`
}

func (ProjectEquipment) TableName() string {
	return "project_equipments"
}

// ProjectWorkerTeam 项目施工班组
type ProjectWorkerTeam struct {
	ID        string    `json:"id" gorm:"primaryKey;size:32"`
	ProjectID string    `json:"project_id" gorm:"size:32;not null;index"`
	Name      string    `json:"name" gorm:"size:128;not null"`
	Leader    string    `json:"leader" gorm:"size:128"`
	Headcount int       `json:"headcount" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
}

func (ProjectWorkerTeam) TableName() string {
	return "project_worker_teams"
}
