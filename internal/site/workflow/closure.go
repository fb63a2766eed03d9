package workflow

import (
	"strings"
	"time"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
)

// PMEvaluation is the PM's closure assessment.
type PMEvaluation struct {
	Note         string `json:"note"`
	QualityScore *int   `json:"quality_score"`
	OnTime       *bool  `json:"on_time"`
	DelayReason  string `json:"delay_reason"`
}

// ClosureRejection describes a closure rejection awaiting the supervisor.
type ClosureRejection struct {
	Role   string `json:"role"`
	Reason string `json:"reason"`
}

// PendingRejection returns the rejection the supervisor must answer, if any.
func PendingRejection(swo *entity.SiteWorkOrder) (ClosureRejection, bool) {
	switch swo.ClosureStatus {
	case entity.ClosurePMReview:
		if swo.CDClosureNote != "" {
			return ClosureRejection{Role: entity.RoleCD, Reason: swo.CDClosureNote}, true
		}
	case entity.ClosureCDReview:
		if swo.MDStatus == entity.MDStatusRejected {
			return ClosureRejection{Role: entity.RoleMD, Reason: swo.MDNote}, true
		}
		if swo.GMStatus == entity.GMStatusRejected {
			return ClosureRejection{Role: entity.RoleGM, Reason: swo.GMNote}, true
		}
	}
	return ClosureRejection{}, false
}

// RequestClosure moves an Active SWO into PM Review.
func RequestClosure(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
	if err := supervisorAction(actor, project, swo, ActRequestClosure); err != nil {
		return err
	}
	if swo.EffectiveClosureStatus() != entity.ClosureActive {
		return invalidTransition("request closure", swo.EffectiveClosureStatus())
	}
	swo.ClosureStatus = entity.ClosurePMReview
	swo.ClosureRequestAt = &now
	clearRejections(swo)
	swo.UpdatedAt = now
	return nil
}

// SubmitPMEvaluation records the PM's assessment and moves PM Review to
// CD Review.
func SubmitPMEvaluation(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, ev PMEvaluation, now time.Time) error {
	if err := closureStep(actor, project, swo, ActPMEvaluate, entity.ClosurePMReview); err != nil {
		return err
	}
	if ev.QualityScore == nil || *ev.QualityScore < 0 || *ev.QualityScore > 100 {
		return Invalid("quality_score", "must be between 0 and 100")
	}
	if ev.OnTime == nil {
		return Invalid("on_time", "is required")
	}
	delay := strings.TrimSpace(ev.DelayReason)
	if !*ev.OnTime && delay == "" {
		return Invalid("delay_reason", "is required when the work was not on time")
	}
	if *ev.OnTime {
		delay = ""
	}

	score, onTime := *ev.QualityScore, *ev.OnTime
	swo.PMNote = strings.TrimSpace(ev.Note)
	swo.PMQualityScore = &score
	swo.PMOnTime = &onTime
	swo.PMDelayReason = delay
	swo.PMEvaluatedBy = actor.ID
	clearRejections(swo)
	swo.ClosureStatus = entity.ClosureCDReview
	swo.UpdatedAt = now
	return nil
}

// CDVerify moves CD Review to GM_MD Review.
func CDVerify(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
	if err := closureStep(actor, project, swo, ActCDVerify, entity.ClosureCDReview); err != nil {
		return err
	}
	clearRejections(swo)
	swo.CDVerifiedBy = actor.ID
	swo.GMStatus = ""
	swo.GMNote = ""
	swo.ClosureStatus = entity.ClosureGMMD
	swo.UpdatedAt = now
	return nil
}

// CDReject returns CD Review to PM Review with the CD's note.
func CDReject(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, reason string, now time.Time) error {
	reason, err := closureReject(actor, project, swo, ActCDReject, entity.ClosureCDReview, reason)
	if err != nil {
		return err
	}
	clearRejections(swo)
	swo.CDClosureNote = reason
	swo.ClosureStatus = entity.ClosurePMReview
	swo.UpdatedAt = now
	return nil
}

// GMAcknowledge marks the GM's acknowledgement; the status stays GM_MD Review.
func GMAcknowledge(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, note string, now time.Time) error {
	if err := closureStep(actor, project, swo, ActGMAcknowledge, entity.ClosureGMMD); err != nil {
		return err
	}
	swo.GMStatus = entity.GMStatusAcknowledged
	swo.GMNote = strings.TrimSpace(note)
	swo.UpdatedAt = now
	return nil
}

// GMReject returns GM_MD Review to CD Review.
func GMReject(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, reason string, now time.Time) error {
	reason, err := closureReject(actor, project, swo, ActGMReject, entity.ClosureGMMD, reason)
	if err != nil {
		return err
	}
	swo.GMStatus = entity.GMStatusRejected
	swo.GMNote = reason
	swo.ClosureStatus = entity.ClosureCDReview
	swo.UpdatedAt = now
	return nil
}

// MDLock closes the SWO. Closed SWO is terminal.
func MDLock(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, note string, now time.Time) error {
	if err := closureStep(actor, project, swo, ActMDLock, entity.ClosureGMMD); err != nil {
		return err
	}
	swo.MDStatus = entity.MDStatusLocked
	swo.MDNote = strings.TrimSpace(note)
	swo.ClosureStatus = entity.ClosureClosedSWO
	swo.ClosedAt = &now
	swo.UpdatedAt = now
	return nil
}

// MDReject returns GM_MD Review to CD Review.
func MDReject(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, reason string, now time.Time) error {
	reason, err := closureReject(actor, project, swo, ActMDReject, entity.ClosureGMMD, reason)
	if err != nil {
		return err
	}
	swo.MDStatus = entity.MDStatusRejected
	swo.MDNote = reason
	swo.ClosureStatus = entity.ClosureCDReview
	swo.UpdatedAt = now
	return nil
}

// ResubmitClosure answers a pending rejection by restarting at PM Review.
func ResubmitClosure(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
	if err := rejectionAnswer(actor, project, swo, ActResubmit); err != nil {
		return err
	}
	clearRejections(swo)
	swo.ClosureStatus = entity.ClosurePMReview
	swo.ClosureRequestAt = &now
	swo.UpdatedAt = now
	return nil
}

// CancelClosure answers a pending rejection by dropping the closure request.
func CancelClosure(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
	if err := rejectionAnswer(actor, project, swo, ActCancelClosure); err != nil {
		return err
	}
	clearRejections(swo)
	swo.ClosureStatus = ""
	swo.ClosureRequestAt = nil
	swo.UpdatedAt = now
	return nil
}

func closureStep(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, action Action, want string) error {
	if err := EnsureUnlocked(actor, project); err != nil {
		return err
	}
	if swo.ClosureStatus != want {
		return invalidTransition(string(action), swo.EffectiveClosureStatus())
	}
	return authorize(actor, action, swo.ClosureStatus)
}

func closureReject(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, action Action, want, reason string) (string, error) {
	if err := closureStep(actor, project, swo, action, want); err != nil {
		return "", err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", Invalid("reason", "reject reason is required")
	}
	return reason, nil
}

func rejectionAnswer(actor *entity.User, project *entity.Project, swo *entity.SiteWorkOrder, action Action) error {
	if err := supervisorAction(actor, project, swo, action); err != nil {
		return err
	}
	if _, ok := PendingRejection(swo); !ok {
		return invalidTransition(string(action), swo.EffectiveClosureStatus())
	}
	return nil
}

func clearRejections(swo *entity.SiteWorkOrder) {
	swo.CDClosureNote = ""
	if swo.GMStatus == entity.GMStatusRejected {
		swo.GMStatus = ""
		swo.GMNote = ""
	}
	if swo.MDStatus == entity.MDStatusRejected {
		swo.MDStatus = ""
		swo.MDNote = ""
	}
}
