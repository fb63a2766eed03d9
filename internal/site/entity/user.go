package entity

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// 角色 (canonical tags)
const (
	RoleAdmin       = "Admin"
	RoleMD          = "MD"
	RoleGM          = "GM"
	RoleCD          = "CD"
	RolePCM         = "PCM"
	RoleHRM         = "HRM"
	RolePM          = "PM"
	RoleCM          = "CM"
	RoleSupervisor  = "Supervisor"
	RoleStaff       = "Staff"
	RoleHR          = "HR"
	RoleProcurement = "Procurement"
	RoleSiteAdmin   = "SiteAdmin"
)

// RoleAdministratorAlias is accepted on input and stored as RoleAdmin.
const RoleAdministratorAlias = "Administrator"

// AllRoles lists every canonical role in display order.
var AllRoles = []string{
	RoleAdmin, RoleMD, RoleGM, RoleCD, RolePCM, RoleHRM, RolePM, RoleCM,
	RoleSupervisor, RoleStaff, RoleHR, RoleProcurement, RoleSiteAdmin,
}

// NormalizeRole maps aliases and case variants onto a canonical role.
// The second result is false for unknown roles.
func NormalizeRole(role string) (string, bool) {
	r := strings.TrimSpace(role)
	if strings.EqualFold(r, RoleAdministratorAlias) {
		return RoleAdmin, true
	}
	for _, known := range AllRoles {
		if strings.EqualFold(r, known) {
			return known, true
		}
	}
	return "", false
}

// 用户状态
const (
	UserStatusPending  = "Pending"
	UserStatusApproved = "Approved"
	UserStatusRejected = "Rejected"
)

// User 应用用户
type User struct {
	ID               string                      `json:"id" gorm:"primaryKey;size:32"`
	Email            string                      `json:"email" gorm:"size:128;uniqueIndex;not null"`
	PasswordHash     string                      `json:"-" gorm:"size:128"`
	GoogleSubject    string                      `json:"-" gorm:"size:64;index"`
	Name             string                      `json:"name" gorm:"size:128;not null"`
	Phone            string                      `json:"phone" gorm:"size:32"`
	Position         string                      `json:"position" gorm:"size:64"`
	Role             string                      `json:"role" gorm:"size:20;not null;default:Staff"`
	Status           string                      `json:"status" gorm:"size:16;not null;default:Pending"`
	AssignedProjects datatypes.JSONSlice[string] `json:"assigned_projects" gorm:"type:jsonb"`
	LastLoginAt      *time.Time                  `json:"last_login_at"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsAssigned reports whether projectID is in the user's assigned project list.
func (u *User) IsAssigned(projectID string) bool {
	for _, id := range u.AssignedProjects {
		if id == projectID {
			return true
		}
	}
	return false
}
