package workflow

import (
	"math"
	"strings"
	"time"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
)

// ReportContent is the supervisor-editable part of a daily report.
type ReportContent struct {
	Progress       []entity.ActivityProgress `json:"progress"`
	EquipmentUsage []entity.EquipmentUsage   `json:"equipment_usage"`
	WorkerCounts   []entity.WorkerCount      `json:"worker_counts"`
	Weather        string                    `json:"weather"`
	Notes          string                    `json:"notes"`
}

// ReportTarget bundles the records a report transition is evaluated against.
type ReportTarget struct {
	Project *entity.Project
	SWO     *entity.SiteWorkOrder
	Report  *entity.DailyReport
}

// ValidateDate checks a "2006-01-02" report date is not after today.
func ValidateDate(date string, now time.Time) error {
	d, err := time.ParseInLocation(entity.DateLayout, date, now.Location())
	if err != nil {
		return Invalid("date", "must be formatted as YYYY-MM-DD")
	}
	if d.Format(entity.DateLayout) > now.Format(entity.DateLayout) {
		return Invalid("date", "cannot be in the future")
	}
	return nil
}

// ValidateContent checks progress values refer to SWO activities and are
// non-negative finite quantities.
func ValidateContent(swo *entity.SiteWorkOrder, c ReportContent) error {
	known := make(map[string]bool, len(swo.Activities))
	for _, a := range swo.Activities {
		known[a.ID] = true
	}
	for _, p := range c.Progress {
		if !known[p.ActivityID] {
			return Invalid("progress", "unknown activity "+p.ActivityID)
		}
		if math.IsNaN(p.Today) || math.IsInf(p.Today, 0) || p.Today < 0 {
			return Invalid("progress", "today must be a non-negative number")
		}
	}
	for _, w := range c.WorkerCounts {
		if w.Headcount < 0 {
			return Invalid("worker_counts", "headcount must not be negative")
		}
	}
	for _, e := range c.EquipmentUsage {
		if math.IsNaN(e.Hours) || e.Hours < 0 {
			return Invalid("equipment_usage", "hours must not be negative")
		}
	}
	return nil
}

// SubmitReport moves the report for (swo, date) into Pending CM.
//
// existing is the stored report for that key, or nil. A Draft or Rejected
// report is overwritten in place and keeps its id; any other existing
// report is a conflict. The returned report is the record to persist.
func SubmitReport(actor *entity.User, t ReportTarget, date string, content ReportContent, now time.Time) (*entity.DailyReport, error) {
	if err := EnsureUnlocked(actor, t.Project); err != nil {
		return nil, err
	}
	if err := authorize(actor, ActSubmitReport, ""); err != nil {
		return nil, err
	}
	if !IsSupervisorOf(actor, t.SWO) {
		return nil, forbidden(actor.Role, ActSubmitReport)
	}
	if err := ValidateDate(date, now); err != nil {
		return nil, err
	}
	if err := ValidateContent(t.SWO, content); err != nil {
		return nil, err
	}

	r := t.Report
	if r == nil {
		r = newReport(actor, t.SWO, date, now)
	} else {
		switch r.Status {
		case entity.ReportStatusDraft, entity.ReportStatusRejected:
			if !Can(actor.Role, ActEditReport, r.Status) || r.Date != now.Format(entity.DateLayout) {
				return nil, forbidden(actor.Role, ActEditReport)
			}
		default:
			return nil, ErrConflict
		}
	}

	applyContent(r, content)
	r.Status = entity.ReportStatusPendingCM
	r.RejectReason = ""
	r.RejectedBy = ""
	r.CMApprovedBy = ""
	r.CMApprovedAt = nil
	r.PMApprovedBy = ""
	r.PMApprovedAt = nil
	r.SubmittedAt = &now
	r.UpdatedAt = now
	return r, nil
}

// SaveDraft creates or updates the Draft for (swo, date).
func SaveDraft(actor *entity.User, t ReportTarget, date string, content ReportContent, now time.Time) (*entity.DailyReport, error) {
	if err := EnsureUnlocked(actor, t.Project); err != nil {
		return nil, err
	}
	if err := authorize(actor, ActSubmitReport, ""); err != nil {
		return nil, err
	}
	if !IsSupervisorOf(actor, t.SWO) {
		return nil, forbidden(actor.Role, ActSubmitReport)
	}
	if err := ValidateDate(date, now); err != nil {
		return nil, err
	}
	if err := ValidateContent(t.SWO, content); err != nil {
		return nil, err
	}

	r := t.Report
	if r == nil {
		r = newReport(actor, t.SWO, date, now)
		r.Status = entity.ReportStatusDraft
	} else if r.Status != entity.ReportStatusDraft {
		return nil, invalidTransition("save draft", r.Status)
	}
	applyContent(r, content)
	r.UpdatedAt = now
	return r, nil
}

// CanEditReport reports whether actor may change the content of r today.
func CanEditReport(actor *entity.User, swo *entity.SiteWorkOrder, r *entity.DailyReport, now time.Time) bool {
	if actor == nil || r == nil || !Can(actor.Role, ActEditReport, r.Status) {
		return false
	}
	role, _ := entity.NormalizeRole(actor.Role)
	if role != entity.RoleSupervisor {
		return true
	}
	owner := IsSupervisor(actor, r.SupervisorID, r.SupervisorName) || IsSupervisorOf(actor, swo)
	return owner && r.Date == now.Format(entity.DateLayout)
}

// UpdateReport edits the content of an existing report without changing
// its status.
func UpdateReport(actor *entity.User, t ReportTarget, content ReportContent, now time.Time) error {
	if err := EnsureUnlocked(actor, t.Project); err != nil {
		return err
	}
	if !CanEditReport(actor, t.SWO, t.Report, now) {
		return forbidden(roleOf(actor), ActEditReport)
	}
	if err := ValidateContent(t.SWO, content); err != nil {
		return err
	}
	applyContent(t.Report, content)
	t.Report.UpdatedAt = now
	return nil
}

// ApproveReport advances Pending CM to Pending PM or Pending PM to Approved.
// Approved is absorbing.
func ApproveReport(actor *entity.User, t ReportTarget, now time.Time) error {
	if err := EnsureUnlocked(actor, t.Project); err != nil {
		return err
	}
	r := t.Report
	switch r.Status {
	case entity.ReportStatusPendingCM, entity.ReportStatusPendingPM:
	default:
		return invalidTransition("approve", r.Status)
	}
	if err := authorize(actor, ActApproveReport, r.Status); err != nil {
		return err
	}

	if r.Status == entity.ReportStatusPendingCM {
		r.Status = entity.ReportStatusPendingPM
		r.CMApprovedBy = actor.ID
		r.CMApprovedAt = &now
	} else {
		r.Status = entity.ReportStatusApproved
		r.PMApprovedBy = actor.ID
		r.PMApprovedAt = &now
	}
	r.UpdatedAt = now
	return nil
}

// RejectReport moves a not yet approved report to Rejected.
func RejectReport(actor *entity.User, t ReportTarget, reason string, now time.Time) error {
	if err := EnsureUnlocked(actor, t.Project); err != nil {
		return err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Invalid("reason", "reject reason is required")
	}
	r := t.Report
	switch r.Status {
	case entity.ReportStatusDraft, entity.ReportStatusPendingCM, entity.ReportStatusPendingPM:
	default:
		return invalidTransition("reject", r.Status)
	}
	if err := authorize(actor, ActRejectReport, r.Status); err != nil {
		return err
	}
	r.Status = entity.ReportStatusRejected
	r.RejectReason = reason
	r.RejectedBy = actor.ID
	r.UpdatedAt = now
	return nil
}

// DeleteReport checks actor may delete the report.
func DeleteReport(actor *entity.User, t ReportTarget) error {
	if err := EnsureUnlocked(actor, t.Project); err != nil {
		return err
	}
	return authorize(actor, ActDeleteReport, t.Report.Status)
}

func newReport(actor *entity.User, swo *entity.SiteWorkOrder, date string, now time.Time) *entity.DailyReport {
	return &entity.DailyReport{
		SWOID:          swo.ID,
		ProjectID:      swo.ProjectID,
		Date:           date,
		SupervisorID:   swo.SupervisorID,
		SupervisorName: swo.SupervisorName,
		CreatedBy:      actor.ID,
		CreatedAt:      now,
	}
}

func applyContent(r *entity.DailyReport, c ReportContent) {
	r.Progress = append([]entity.ActivityProgress{}, c.Progress...)
	r.EquipmentUsage = append([]entity.EquipmentUsage{}, c.EquipmentUsage...)
	r.WorkerCounts = append([]entity.WorkerCount{}, c.WorkerCounts...)
	r.Weather = c.Weather
	r.Notes = c.Notes
}

func roleOf(u *entity.User) string {
	if u == nil {
		return ""
	}
	return u.Role
}
