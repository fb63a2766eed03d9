package workflow

import (
	"strings"
	"time"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
)

// Project closure runs PM propose -> CD verify -> MD lock. Only MD unlocks.

// ProposeClosure flags the project as pending CD verification.
func ProposeClosure(actor *entity.User, p *entity.Project, note string, now time.Time) error {
	if err := authorize(actor, ActProposeClosure, ""); err != nil {
		return err
	}
	if p.Locked || p.PendingCD || p.PendingMD {
		return invalidTransition("propose closure", projectState(p))
	}
	p.PendingCD = true
	p.ClosureProposedBy = actor.ID
	p.ClosureNote = strings.TrimSpace(note)
	p.ClosureRejectRole = ""
	p.ClosureRejectNote = ""
	p.UpdatedAt = now
	return nil
}

// CDVerifyClosure forwards a proposal to MD.
func CDVerifyClosure(actor *entity.User, p *entity.Project, now time.Time) error {
	if err := authorize(actor, ActCDVerifyProject, ""); err != nil {
		return err
	}
	if !p.PendingCD {
		return invalidTransition("verify closure", projectState(p))
	}
	p.PendingCD = false
	p.PendingMD = true
	p.UpdatedAt = now
	return nil
}

// CDRejectClosure drops a proposal with the CD's reason.
func CDRejectClosure(actor *entity.User, p *entity.Project, reason string, now time.Time) error {
	if err := authorize(actor, ActCDRejectProject, ""); err != nil {
		return err
	}
	if !p.PendingCD {
		return invalidTransition("reject closure", projectState(p))
	}
	return rejectProjectClosure(p, entity.RoleCD, reason, now)
}

// MDLockProject locks a verified project.
func MDLockProject(actor *entity.User, p *entity.Project, now time.Time) error {
	if err := authorize(actor, ActMDLockProject, ""); err != nil {
		return err
	}
	if !p.PendingMD {
		return invalidTransition("lock", projectState(p))
	}
	p.PendingMD = false
	p.Locked = true
	p.LockedBy = actor.ID
	p.LockedAt = &now
	p.UpdatedAt = now
	return nil
}

// MDRejectClosure drops a verified proposal with the MD's reason.
func MDRejectClosure(actor *entity.User, p *entity.Project, reason string, now time.Time) error {
	if err := authorize(actor, ActMDRejectProject, ""); err != nil {
		return err
	}
	if !p.PendingMD {
		return invalidTransition("reject lock", projectState(p))
	}
	return rejectProjectClosure(p, entity.RoleMD, reason, now)
}

// UnlockProject reopens a locked project.
func UnlockProject(actor *entity.User, p *entity.Project, now time.Time) error {
	if err := authorize(actor, ActUnlockProject, ""); err != nil {
		return err
	}
	if !p.Locked {
		return invalidTransition("unlock", projectState(p))
	}
	p.Locked = false
	p.LockedBy = ""
	p.LockedAt = nil
	p.UpdatedAt = now
	return nil
}

func rejectProjectClosure(p *entity.Project, role, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Invalid("reason", "reject reason is required")
	}
	p.PendingCD = false
	p.PendingMD = false
	p.ClosureRejectRole = role
	p.ClosureRejectNote = reason
	p.UpdatedAt = now
	return nil
}

func projectState(p *entity.Project) string {
	switch {
	case p.Locked:
		return "locked"
	case p.PendingMD:
		return "pending md"
	case p.PendingCD:
		return "pending cd"
	}
	return "open"
}
