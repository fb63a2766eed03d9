package workflow

import (
	"strings"
	"time"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
)

// SWOFields are the PM-editable fields of an SWO. Nil pointers leave the
// stored value unchanged.
type SWOFields struct {
	WorkName       *string           `json:"work_name"`
	Description    *string           `json:"description"`
	SupervisorID   *string           `json:"supervisor_id"`
	SupervisorName *string           `json:"supervisor_name"`
	StartDate      *time.Time        `json:"start_date"`
	DueDate        *time.Time        `json:"due_date"`
	Activities     []entity.Activity `json:"activities"`
	EquipmentRefs  []string          `json:"equipment_refs"`
	WorkerTeamRefs []string          `json:"worker_team_refs"`
}

// ValidateActivities checks activity ids are present and unique.
func ValidateActivities(activities []entity.Activity) error {
	seen := make(map[string]bool, len(activities))
	for _, a := range activities {
		if strings.TrimSpace(a.ID) == "" {
			return Invalid("activities", "activity id is required")
		}
		if seen[a.ID] {
			return Invalid("activities", "duplicate activity id "+a.ID)
		}
		seen[a.ID] = true
		if strings.TrimSpace(a.Description) == "" {
			return Invalid("activities", "activity description is required")
		}
	}
	return nil
}

// CanCreateSWO checks actor may create an SWO in project. Non-tiered roles
// must be assigned to the project.
func CanCreateSWO(actor *entity.User, project *entity.Project) error {
	if err := EnsureUnlocked(actor, project); err != nil {
		return err
	}
	if err := authorize(actor, ActCreateSWO, ""); err != nil {
		return err
	}
	if !ProjectInScope(actor, project) {
		return ErrForbidden
	}
	return nil
}

// UpdateSWO applies f to swo. An SWO waiting on a change request returns to
// Assigned and its change reason is cleared. A new supervisor also puts the
// SWO back to Assigned.
func UpdateSWO(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, f SWOFields, now time.Time) error {
	if err := EnsureUnlocked(actor, project); err != nil {
		return err
	}
	if swo.ClosureStatus == entity.ClosureClosedSWO {
		return invalidTransition("update", swo.ClosureStatus)
	}
	if err := authorize(actor, ActUpdateSWO, swo.Status); err != nil {
		return err
	}
	if f.Activities != nil {
		if err := ValidateActivities(f.Activities); err != nil {
			return err
		}
	}
	if f.WorkName != nil && strings.TrimSpace(*f.WorkName) == "" {
		return Invalid("work_name", "is required")
	}

	reassigned := (f.SupervisorID != nil && *f.SupervisorID != swo.SupervisorID) ||
		(f.SupervisorName != nil && *f.SupervisorName != swo.SupervisorName)

	if f.Activities != nil {
		swo.Activities = f.Activities
	}
	if f.WorkName != nil {
		swo.WorkName = strings.TrimSpace(*f.WorkName)
	}
	if f.Description != nil {
		swo.Description = *f.Description
	}
	if f.SupervisorID != nil {
		swo.SupervisorID = *f.SupervisorID
	}
	if f.SupervisorName != nil {
		swo.SupervisorName = *f.SupervisorName
	}
	if f.StartDate != nil {
		swo.StartDate = f.StartDate
	}
	if f.DueDate != nil {
		swo.DueDate = f.DueDate
	}
	if f.EquipmentRefs != nil {
		swo.EquipmentRefs = f.EquipmentRefs
	}
	if f.WorkerTeamRefs != nil {
		swo.WorkerTeamRefs = f.WorkerTeamRefs
	}
	if swo.Status == entity.SWOStatusRequestChange || reassigned {
		swo.Status = entity.SWOStatusAssigned
		swo.ChangeReason = ""
	}
	swo.UpdatedAt = now
	return nil
}

// AcceptSWO is the addressed supervisor acknowledging an Assigned SWO.
func AcceptSWO(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
	if err := supervisorAction(actor, project, swo, ActAcceptSWO); err != nil {
		return err
	}
	if swo.Status != entity.SWOStatusAssigned {
		return invalidTransition("accept", swo.Status)
	}
	swo.Status = entity.SWOStatusAccepted
	swo.UpdatedAt = now
	return nil
}

// RequestChange is the addressed supervisor asking for edits to an
// Assigned SWO.
func RequestChange(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, reason string, now time.Time) error {
	if err := supervisorAction(actor, project, swo, ActRequestChange); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Invalid("reason", "change reason is required")
	}
	if swo.Status != entity.SWOStatusAssigned {
		return invalidTransition("request change", swo.Status)
	}
	swo.Status = entity.SWOStatusRequestChange
	swo.ChangeReason = reason
	swo.UpdatedAt = now
	return nil
}

func supervisorAction(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, action Action) error {
	if err := EnsureUnlocked(actor, project); err != nil {
		return err
	}
	if swo.ClosureStatus == entity.ClosureClosedSWO {
		return invalidTransition(string(action), swo.ClosureStatus)
	}
	if err := authorize(actor, action, swo.Status); err != nil {
		return err
	}
	if !IsSupervisorOf(actor, swo) {
		return forbidden(actor.Role, action)
	}
	return nil
}
