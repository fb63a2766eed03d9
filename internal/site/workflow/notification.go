package workflow

import (
	"fmt"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
)

// 通知类别
const (
	KindSWO     = "swo"
	KindReport  = "report"
	KindClosure = "closure"
)

// 通知原因
const (
	ReasonAssigned        = "assigned"
	ReasonAccepted        = "accepted"
	ReasonRequestChange   = "request_change"
	ReasonReportRejected  = "rejected"
	ReasonPendingCM       = "pending_cm"
	ReasonPendingPM       = "pending_pm"
	ReasonClosureRejected = "closure_rejected"
	ReasonPMReview        = "pm_review"
	ReasonCDReview        = "cd_review"
	ReasonGMMDReview      = "gm_md_review"
)

// NotificationItem is one thing needing the user's attention.
type NotificationItem struct {
	Key       string `json:"key"`
	Kind      string `json:"kind"`
	EntityID  string `json:"entity_id"`
	Reason    string `json:"reason"`
	Title     string `json:"title"`
	ProjectID string `json:"project_id"`
	SWOID     string `json:"swo_id"`
	SWONo     string `json:"swo_no"`
	WorkName  string `json:"work_name"`
	Date      string `json:"date,omitempty"`
	Role      string `json:"role,omitempty"`
	Message   string `json:"message,omitempty"`
}

// Notifications is the deduplicated attention list of a user.
type Notifications struct {
	Count int                `json:"count"`
	Items []NotificationItem `json:"items"`
}

type collector struct {
	seen  map[string]bool
	items []NotificationItem
}

func (c *collector) add(it NotificationItem) {
	it.Key = it.Kind + ":" + it.EntityID + ":" + it.Reason
	if c.seen[it.Key] {
		return
	}
	c.seen[it.Key] = true
	c.items = append(c.items, it)
}

// NotificationsFor derives the items needing user's attention from the
// current SWO and report snapshots. It only reads its inputs.
func NotificationsFor(user *entity.User, swos []entity.SiteWorkOrder, reports []entity.DailyReport) Notifications {
	c := &collector{seen: make(map[string]bool), items: []NotificationItem{}}
	if user == nil {
		return Notifications{Items: c.items}
	}
	role, _ := entity.NormalizeRole(user.Role)

	byID := make(map[string]*entity.SiteWorkOrder, len(swos))
	for i := range swos {
		byID[swos[i].ID] = &swos[i]
	}
	scoped := func(s *entity.SiteWorkOrder) bool {
		return role == entity.RoleAdmin || SWOInScope(user, s)
	}

	for i := range swos {
		s := &swos[i]
		switch role {
		case entity.RoleSupervisor:
			if !IsSupervisorOf(user, s) || s.ClosureStatus == entity.ClosureClosedSWO {
				break
			}
			switch s.Status {
			case entity.SWOStatusAssigned:
				c.add(swoItem(s, KindSWO, ReasonAssigned, "New SWO assigned"))
			case entity.SWOStatusAccepted:
				c.add(swoItem(s, KindSWO, ReasonAccepted, "SWO in progress"))
			}
			if rej, ok := PendingRejection(s); ok {
				it := swoItem(s, KindClosure, ReasonClosureRejected, "Closure rejected by "+rej.Role)
				it.Role = rej.Role
				it.Message = rej.Reason
				c.add(it)
			}
		case entity.RoleCM, entity.RolePM, entity.RoleAdmin:
			if s.Status == entity.SWOStatusRequestChange && scoped(s) {
				it := swoItem(s, KindSWO, ReasonRequestChange, "Change requested")
				it.Message = s.ChangeReason
				c.add(it)
			}
			if role == entity.RolePM && s.ClosureStatus == entity.ClosurePMReview && scoped(s) {
				c.add(swoItem(s, KindClosure, ReasonPMReview, "Closure awaiting PM evaluation"))
			}
		case entity.RoleCD:
			if s.ClosureStatus == entity.ClosureCDReview {
				c.add(swoItem(s, KindClosure, ReasonCDReview, "Closure awaiting CD verification"))
			}
		case entity.RoleGM:
			if s.ClosureStatus == entity.ClosureGMMD && s.GMStatus != entity.GMStatusAcknowledged {
				c.add(swoItem(s, KindClosure, ReasonGMMDReview, "Closure awaiting GM acknowledgement"))
			}
		case entity.RoleMD:
			if s.ClosureStatus == entity.ClosureGMMD {
				c.add(swoItem(s, KindClosure, ReasonGMMDReview, "Closure awaiting MD lock"))
			}
		}
	}

	for i := range reports {
		r := &reports[i]
		s := byID[r.SWOID]
		switch role {
		case entity.RoleSupervisor:
			if r.Status != entity.ReportStatusRejected {
				break
			}
			if IsSupervisor(user, r.SupervisorID, r.SupervisorName) || r.CreatedBy == user.ID || IsSupervisorOf(user, s) {
				it := reportItem(r, s, ReasonReportRejected, "Daily report rejected")
				it.Message = r.RejectReason
				c.add(it)
			}
		case entity.RoleCM:
			if r.Status == entity.ReportStatusPendingCM && ReportInScope(user, r, s) {
				c.add(reportItem(r, s, ReasonPendingCM, "Daily report awaiting CM approval"))
			}
		case entity.RolePM, entity.RoleAdmin:
			if role == entity.RolePM && !ReportInScope(user, r, s) {
				break
			}
			switch r.Status {
			case entity.ReportStatusPendingCM:
				c.add(reportItem(r, s, ReasonPendingCM, "Daily report awaiting CM approval"))
			case entity.ReportStatusPendingPM:
				c.add(reportItem(r, s, ReasonPendingPM, "Daily report awaiting PM approval"))
			}
		}
	}

	return Notifications{Count: len(c.items), Items: c.items}
}

func swoItem(s *entity.SiteWorkOrder, kind, reason, title string) NotificationItem {
	return NotificationItem{
		Kind:      kind,
		EntityID:  s.ID,
		Reason:    reason,
		Title:     title,
		ProjectID: s.ProjectID,
		SWOID:     s.ID,
		SWONo:     s.SWONo,
		WorkName:  s.WorkName,
	}
}

func reportItem(r *entity.DailyReport, s *entity.SiteWorkOrder, reason, title string) NotificationItem {
	it := NotificationItem{
		Kind:      KindReport,
		EntityID:  r.ID,
		Reason:    reason,
		Title:     title,
		ProjectID: r.ProjectID,
		SWOID:     r.SWOID,
		Date:      r.Date,
	}
	if s != nil {
		it.SWONo = s.SWONo
		it.WorkName = s.WorkName
		it.Title = fmt.Sprintf("%s (%s %s)", title, s.SWONo, r.Date)
	}
	return it
}
