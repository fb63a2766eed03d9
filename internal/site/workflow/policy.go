package workflow

import (
	"strings"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
)

// Action names a mutation guarded by role policy.
type Action string

const (
	ActManageUsers Action = "manage users"

	ActCreateProject     Action = "create project"
	ActUpdateProject     Action = "update project"
	ActManageResources   Action = "manage project resources"
	ActProposeClosure    Action = "propose project closure"
	ActCDVerifyProject   Action = "verify project closure"
	ActCDRejectProject   Action = "reject project closure"
	ActMDLockProject     Action = "lock project"
	ActMDRejectProject   Action = "reject project lock"
	ActUnlockProject     Action = "unlock project"
	ActBypassProjectLock Action = "bypass project lock"

	ActCreateSWO      Action = "create swo"
	ActUpdateSWO      Action = "update swo"
	ActAcceptSWO      Action = "accept swo"
	ActRequestChange  Action = "request swo change"
	ActRequestClosure Action = "request swo closure"
	ActPMEvaluate     Action = "submit pm evaluation"
	ActCDVerify       Action = "verify swo closure"
	ActCDReject       Action = "reject swo closure"
	ActGMAcknowledge  Action = "acknowledge swo closure"
	ActGMReject       Action = "reject swo closure as gm"
	ActMDLock         Action = "lock swo"
	ActMDReject       Action = "reject swo closure as md"
	ActResubmit       Action = "resubmit swo closure"
	ActCancelClosure  Action = "cancel swo closure"

	ActSubmitReport  Action = "submit report"
	ActEditReport    Action = "edit report"
	ActApproveReport Action = "approve report"
	ActRejectReport  Action = "reject report"
	ActDeleteReport  Action = "delete report"
)

// state-independent grants
var grants = map[Action][]string{
	ActManageUsers: {entity.RoleAdmin},

	ActCreateProject:     {entity.RoleAdmin, entity.RoleMD},
	ActUpdateProject:     {entity.RoleAdmin, entity.RoleMD},
	ActManageResources:   {entity.RoleAdmin, entity.RoleMD, entity.RolePM},
	ActProposeClosure:    {entity.RolePM},
	ActCDVerifyProject:   {entity.RoleCD},
	ActCDRejectProject:   {entity.RoleCD},
	ActMDLockProject:     {entity.RoleMD},
	ActMDRejectProject:   {entity.RoleMD},
	ActUnlockProject:     {entity.RoleMD},
	ActBypassProjectLock: {entity.RoleMD},

	ActCreateSWO:      {entity.RoleAdmin, entity.RoleMD, entity.RolePM},
	ActUpdateSWO:      {entity.RoleAdmin, entity.RoleMD, entity.RolePM},
	ActAcceptSWO:      {entity.RoleSupervisor},
	ActRequestChange:  {entity.RoleSupervisor},
	ActRequestClosure: {entity.RoleSupervisor},
	ActPMEvaluate:     {entity.RolePM, entity.RoleAdmin},
	ActCDVerify:       {entity.RoleCD, entity.RoleAdmin},
	ActCDReject:       {entity.RoleCD, entity.RoleAdmin},
	ActGMAcknowledge:  {entity.RoleGM},
	ActGMReject:       {entity.RoleGM},
	ActMDLock:         {entity.RoleMD},
	ActMDReject:       {entity.RoleMD},
	ActResubmit:       {entity.RoleSupervisor},
	ActCancelClosure:  {entity.RoleSupervisor},

	ActSubmitReport: {entity.RoleSupervisor},
	ActDeleteReport: {entity.RoleAdmin, entity.RolePM},
}

// Can is the single authorization table: it reports whether role may
// perform action on a resource currently in state. state is ignored for
// actions whose grant does not depend on it.
func Can(role string, action Action, state string) bool {
	r, ok := entity.NormalizeRole(role)
	if !ok {
		return false
	}

	switch action {
	case ActApproveReport:
		switch state {
		case entity.ReportStatusPendingCM:
			return in(r, entity.RoleCM, entity.RolePM, entity.RoleAdmin)
		case entity.ReportStatusPendingPM:
			return in(r, entity.RolePM, entity.RoleAdmin)
		}
		return false
	case ActRejectReport:
		switch state {
		case entity.ReportStatusPendingCM:
			return in(r, entity.RoleCM, entity.RolePM, entity.RoleAdmin)
		case entity.ReportStatusPendingPM:
			return in(r, entity.RolePM, entity.RoleAdmin)
		case entity.ReportStatusDraft:
			return r == entity.RoleAdmin
		}
		return false
	case ActEditReport:
		switch r {
		case entity.RoleAdmin:
			return state != entity.ReportStatusApproved
		case entity.RoleSupervisor:
			return state != entity.ReportStatusApproved &&
				state != entity.ReportStatusPendingCM &&
				state != entity.ReportStatusPendingPM
		}
		return false
	}

	return in(r, grants[action]...)
}

func in(role string, set ...string) bool {
	for _, s := range set {
		if s == role {
			return true
		}
	}
	return false
}

// IsSupervisor reports whether user is the supervisor identified by id or name.
func IsSupervisor(user *entity.User, supervisorID, supervisorName string) bool {
	if user == nil {
		return false
	}
	if supervisorID != "" && supervisorID == user.ID {
		return true
	}
	name := strings.TrimSpace(supervisorName)
	return name != "" && strings.EqualFold(name, strings.TrimSpace(user.Name))
}

// IsSupervisorOf reports whether the SWO is addressed to user.
func IsSupervisorOf(user *entity.User, swo *entity.SiteWorkOrder) bool {
	return swo != nil && IsSupervisor(user, swo.SupervisorID, swo.SupervisorName)
}

// EnsureUnlocked fails with ErrProjectLocked when project is locked and the
// actor holds no override.
func EnsureUnlocked(actor *entity.User, project *entity.Project) error {
	if project == nil || !project.Locked {
		return nil
	}
	if actor != nil && Can(actor.Role, ActBypassProjectLock, "") {
		return nil
	}
	return ErrProjectLocked
}

func authorize(actor *entity.User, action Action, state string) error {
	if actor == nil {
		return forbidden("", action)
	}
	if !Can(actor.Role, action, state) {
		return forbidden(actor.Role, action)
	}
	return nil
}
