package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/sse"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
)

// ReportService 施工日报服务
type ReportService struct {
	*base
}

// NewReportService 创建日报服务
func NewReportService(b *base) *ReportService {
	return &ReportService{base: b}
}

// SubmitReportRequest 提交/暂存日报
type SubmitReportRequest struct {
	SWOID string `json:"swo_id"`
	Date  string `json:"date"`
	workflow.ReportContent
}

// ReportView is a report with the progress it contributes and whether the
// viewer may still edit it.
type ReportView struct {
	Report   *entity.DailyReport      `json:"report"`
	Editable bool                     `json:"editable"`
	Progress workflow.ProgressSummary `json:"progress"`
}

// Submit 提交日报 -> Pending CM
func (s *ReportService) Submit(ctx context.Context, actorID string, req *SubmitReportRequest) (*entity.DailyReport, error) {
	return s.upsert(ctx, actorID, req, "submit", workflow.SubmitReport)
}

// SaveDraft 暂存日报
func (s *ReportService) SaveDraft(ctx context.Context, actorID string, req *SubmitReportRequest) (*entity.DailyReport, error) {
	return s.upsert(ctx, actorID, req, "save_draft", workflow.SaveDraft)
}

type upsertFunc func(*entity.User, workflow.ReportTarget, string, workflow.ReportContent, time.Time) (*entity.DailyReport, error)

func (s *ReportService) upsert(ctx context.Context, actorID string, req *SubmitReportRequest, action string, apply upsertFunc) (*entity.DailyReport, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	swo, p, err := s.swo(ctx, req.SWOID)
	if err != nil {
		return nil, err
	}
	date := strings.TrimSpace(req.Date)
	existing, err := s.stores.Reports.FindBySWOAndDate(ctx, swo.ID, date)
	if errors.Is(err, repository.ErrNotFound) {
		existing, err = nil, nil
	}
	if err != nil {
		return nil, err
	}
	from := ""
	if existing != nil {
		from = existing.Status
	}

	r, err := apply(actor, workflow.ReportTarget{Project: p, SWO: swo, Report: existing}, date, req.ReportContent, s.now())
	if err != nil {
		return nil, err
	}
	if existing == nil {
		err = s.stores.Reports.Create(ctx, r)
	} else {
		err = s.stores.Reports.Update(ctx, r)
	}
	if err != nil {
		return nil, writeErr(action+" report", err)
	}

	s.record(ctx, actor, entity.LogEntityReport, r.ID, reportCode(swo, r), action, from, r.Status, "")
	changeAction := sse.ActionUpdate
	if existing == nil {
		changeAction = sse.ActionCreate
	}
	s.publish(ctx, sse.CollectionReports, r.ID, changeAction, r.ProjectID)
	return r, nil
}

// Update 修改日报内容
func (s *ReportService) Update(ctx context.Context, actorID, id string, content workflow.ReportContent) (*entity.DailyReport, error) {
	return s.transition(ctx, actorID, id, "update", "", func(actor *entity.User, t workflow.ReportTarget, now time.Time) error {
		return workflow.UpdateReport(actor, t, content, now)
	})
}

// Approve 审批日报
func (s *ReportService) Approve(ctx context.Context, actorID, id string) (*entity.DailyReport, error) {
	return s.transition(ctx, actorID, id, "approve", "", func(actor *entity.User, t workflow.ReportTarget, now time.Time) error {
		return workflow.ApproveReport(actor, t, now)
	})
}

// Reject 驳回日报
func (s *ReportService) Reject(ctx context.Context, actorID, id, reason string) (*entity.DailyReport, error) {
	return s.transition(ctx, actorID, id, "reject", reason, func(actor *entity.User, t workflow.ReportTarget, now time.Time) error {
		return workflow.RejectReport(actor, t, reason, now)
	})
}

// Delete 删除日报 (Admin, PM)
func (s *ReportService) Delete(ctx context.Context, actorID, id string) error {
	actor, t, err := s.target(ctx, actorID, id)
	if err != nil {
		return err
	}
	if err := workflow.DeleteReport(actor, t); err != nil {
		return err
	}
	if err := s.stores.Reports.Delete(ctx, id); err != nil {
		return writeErr("delete report", err)
	}
	s.record(ctx, actor, entity.LogEntityReport, id, reportCode(t.SWO, t.Report), "delete", t.Report.Status, "", "")
	s.publish(ctx, sse.CollectionReports, id, sse.ActionDelete, t.Report.ProjectID)
	return nil
}

// Get 日报详情, with the cumulative progress up to and including it.
func (s *ReportService) Get(ctx context.Context, actorID, id string) (*ReportView, error) {
	actor, t, err := s.target(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	approved, err := s.stores.Reports.List(ctx, repository.ReportFilter{SWOID: t.SWO.ID, Status: entity.ReportStatusApproved})
	if err != nil {
		return nil, err
	}
	editing := make(map[string]float64, len(t.Report.Progress))
	for _, p := range t.Report.Progress {
		editing[p.ActivityID] += p.Today
	}
	return &ReportView{
		Report:   t.Report,
		Editable: workflow.EnsureUnlocked(actor, t.Project) == nil && workflow.CanEditReport(actor, t.SWO, t.Report, s.now()),
		Progress: workflow.CumulativeProgress(t.SWO, approved, t.Report.Date, editing),
	}, nil
}

// List 日报列表 (visibility filtered)
func (s *ReportService) List(ctx context.Context, actorID string, f repository.ReportFilter) ([]entity.DailyReport, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	reports, err := s.stores.Reports.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if workflow.IsTiered(actor.Role) {
		return reports, nil
	}
	swos := make(map[string]*entity.SiteWorkOrder)
	for _, r := range reports {
		if _, ok := swos[r.SWOID]; ok {
			continue
		}
		swo, err := s.stores.SWOs.FindByID(ctx, r.SWOID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		swos[r.SWOID] = swo
	}
	return workflow.FilterReports(actor, reports, swos), nil
}

func (s *ReportService) transition(ctx context.Context, actorID, id, action, content string, apply func(*entity.User, workflow.ReportTarget, time.Time) error) (*entity.DailyReport, error) {
	actor, t, err := s.target(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	from := t.Report.Status
	if err := apply(actor, t, s.now()); err != nil {
		return nil, err
	}
	if err := s.stores.Reports.Update(ctx, t.Report); err != nil {
		return nil, writeErr(action+" report", err)
	}
	s.record(ctx, actor, entity.LogEntityReport, t.Report.ID, reportCode(t.SWO, t.Report), action, from, t.Report.Status, strings.TrimSpace(content))
	s.publish(ctx, sse.CollectionReports, t.Report.ID, sse.ActionUpdate, t.Report.ProjectID)
	return t.Report, nil
}

// target loads a report with its SWO and project and checks visibility.
func (s *ReportService) target(ctx context.Context, actorID, id string) (*entity.User, workflow.ReportTarget, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, workflow.ReportTarget{}, err
	}
	r, err := s.stores.Reports.FindByID(ctx, id)
	if err != nil {
		return nil, workflow.ReportTarget{}, notFound(err, "report "+id)
	}
	swo, p, err := s.swo(ctx, r.SWOID)
	if err != nil {
		return nil, workflow.ReportTarget{}, err
	}
	if !workflow.ReportInScope(actor, r, swo) {
		return nil, workflow.ReportTarget{}, workflow.ErrForbidden
	}
	return actor, workflow.ReportTarget{Project: p, SWO: swo, Report: r}, nil
}

func reportCode(swo *entity.SiteWorkOrder, r *entity.DailyReport) string {
	if swo == nil {
		return r.Date
	}
	return swo.SWONo + "@" + r.Date
}
