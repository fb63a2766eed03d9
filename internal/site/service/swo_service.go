package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/entity"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/repository"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/sse"
	"github.com/cmgoffice/CMG-Construction-Control-sub000/internal/site/workflow"
	"go.uber.org/zap"
)

// swoNoAttempts bounds the duplicate-number retry of Create.
const swoNoAttempts = 3

// SWOService 现场工单服务
type SWOService struct {
	*base
}

// NewSWOService 创建工单服务
func NewSWOService(b *base) *SWOService {
	return &SWOService{base: b}
}

// CreateSWORequest 创建工单请求
type CreateSWORequest struct {
	ProjectID      string            `json:"project_id"`
	WorkName       string            `json:"work_name"`
	Description    string            `json:"description"`
	SupervisorID   string            `json:"supervisor_id"`
	SupervisorName string            `json:"supervisor_name"`
	StartDate      *time.Time        `json:"start_date"`
	DueDate        *time.Time        `json:"due_date"`
	Activities     []entity.Activity `json:"activities"`
	EquipmentRefs  []string          `json:"equipment_refs"`
	WorkerTeamRefs []string          `json:"worker_team_refs"`
}

// ReasonRequest 原因/备注
type ReasonRequest struct {
	Reason string `json:"reason"`
	Note   string `json:"note"`
}

// List 工单列表 (visibility filtered)
func (s *SWOService) List(ctx context.Context, actorID string, f repository.SWOFilter) ([]entity.SiteWorkOrder, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	swos, err := s.stores.SWOs.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return workflow.FilterSWOs(actor, swos), nil
}

// Get 工单详情
func (s *SWOService) Get(ctx context.Context, actorID, id string) (*entity.SiteWorkOrder, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	swo, _, err := s.swo(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.SWOInScope(actor, swo) {
		return nil, workflow.ErrForbidden
	}
	return swo, nil
}

// Create 创建工单 (Admin, MD, PM). The number is the project's next free
// sequence; a number taken concurrently is retried with the next one.
func (s *SWOService) Create(ctx context.Context, actorID string, req *CreateSWORequest) (*entity.SiteWorkOrder, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	p, err := s.project(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if err := workflow.CanCreateSWO(actor, p); err != nil {
		return nil, err
	}

	workName := strings.TrimSpace(req.WorkName)
	if workName == "" {
		return nil, workflow.Invalid("work_name", "is required")
	}
	activities := withActivityIDs(req.Activities)
	if err := workflow.ValidateActivities(activities); err != nil {
		return nil, err
	}
	supID, supName, err := s.supervisor(ctx, req.SupervisorID, req.SupervisorName)
	if err != nil {
		return nil, err
	}

	now := s.now()
	swo := &entity.SiteWorkOrder{
		ProjectID:      p.ID,
		WorkName:       workName,
		Description:    req.Description,
		SupervisorID:   supID,
		SupervisorName: supName,
		StartDate:      req.StartDate,
		DueDate:        req.DueDate,
		Activities:     activities,
		EquipmentRefs:  req.EquipmentRefs,
		WorkerTeamRefs: req.WorkerTeamRefs,
		Status:         entity.SWOStatusAssigned,
		CreatedBy:      actor.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	suffix := workflow.ProjectSuffix(p.Number)
	for attempt := 1; ; attempt++ {
		nos, err := s.stores.SWOs.ListSWONos(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		swo.ID = ""
		swo.SWONo = workflow.FormatSWONo(suffix, workflow.NextSWOSeq(nos))
		err = s.stores.SWOs.Create(ctx, swo)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, writeErr("create swo", err)
		}
		s.logger.Warn("swo number taken, retrying",
			zap.String("project_id", p.ID),
			zap.String("swo_no", swo.SWONo),
			zap.Int("attempt", attempt))
		if attempt >= swoNoAttempts {
			return nil, fmt.Errorf("%w: swo number %s", workflow.ErrConflict, swo.SWONo)
		}
	}

	s.record(ctx, actor, entity.LogEntitySWO, swo.ID, swo.SWONo, "create", "", swo.Status, swo.WorkName)
	s.publish(ctx, sse.CollectionSWOs, swo.ID, sse.ActionCreate, swo.ProjectID)
	return swo, nil
}

// Update 更新工单 (Admin, MD, PM)
func (s *SWOService) Update(ctx context.Context, actorID, id string, f workflow.SWOFields) (*entity.SiteWorkOrder, error) {
	if f.Activities != nil {
		f.Activities = withActivityIDs(f.Activities)
	}
	if f.SupervisorID != nil || f.SupervisorName != nil {
		var reqID, reqName string
		if f.SupervisorID != nil {
			reqID = *f.SupervisorID
		}
		if f.SupervisorName != nil {
			reqName = *f.SupervisorName
		}
		supID, supName, err := s.supervisor(ctx, reqID, reqName)
		if err != nil {
			return nil, err
		}
		f.SupervisorID, f.SupervisorName = &supID, &supName
	}
	return s.transition(ctx, actorID, id, "update", "", func(actor *entity.User, p *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
		return workflow.UpdateSWO(actor, p, swo, f, now)
	})
}

// Accept 主管接收工单
func (s *SWOService) Accept(ctx context.Context, actorID, id string) (*entity.SiteWorkOrder, error) {
	return s.transition(ctx, actorID, id, "accept", "", func(actor *entity.User, p *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
		return workflow.AcceptSWO(actor, p, swo, now)
	})
}

// RequestChange 主管申请变更
func (s *SWOService) RequestChange(ctx context.Context, actorID, id string, req *ReasonRequest) (*entity.SiteWorkOrder, error) {
	return s.transition(ctx, actorID, id, "request_change", req.Reason, func(actor *entity.User, p *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
		return workflow.RequestChange(actor, p, swo, req.Reason, now)
	})
}

// RequestClosure 主管申请关闭
func (s *SWOService) RequestClosure(ctx context.Context, actorID, id string) (*entity.SiteWorkOrder, error) {
	return s.transition(ctx, actorID, id, "request_closure", "", func(actor *entity.User, p *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
		return workflow.RequestClosure(actor, p, swo, now)
	})
}

// SubmitPMEvaluation PM 评价
func (s *SWOService) SubmitPMEvaluation(ctx context.Context, actorID, id string, ev workflow.PMEvaluation) (*entity.SiteWorkOrder, error) {
	return s.transition(ctx, actorID, id, "pm_evaluate", ev.Note, func(actor *entity.User, p *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
		return workflow.SubmitPMEvaluation(actor, p, swo, ev, now)
	})
}

// CDVerify CD 确认
func (s *SWOService) CDVerify(ctx context.Context, actorID, id string) (*entity.SiteWorkOrder, error) {
	return s.transition(ctx, actorID, id, "cd_verify", "", func(actor *entity.User, p *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
		return workflow.CDVerify(actor, p, swo, now)
	})
}

// CDReject CD 驳回
func (s *SWOService) CDReject(ctx context.Context, actorID, id string, req *ReasonRequest) (*entity.SiteWorkOrder, error) {
	return s.transition(ctx, actorID, id, "cd_reject", req.Reason, func(actor *entity.User, p *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
		return workflow.CDReject(actor, p, swo, req.Reason, now)
	})
}

// GMAcknowledge GM 知悉
func (s *SWOService) GMAcknowledge(ctx context.Context, actorID, id string, req *ReasonRequest) (*entity.SiteWorkOrder, error) {
	return s.transition(ctx, actorID, id, "gm_acknowledge", req.Note, func(actor *entity.User, p *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
		return workflow.GMAcknowledge(actor, p, swo, req.Note, now)
	})
}

// GMReject GM 驳回
func (s *SWOService) GMReject(ctx context.Context, actorID, id string, req *ReasonRequest) (*entity.SiteWorkOrder, error) {
	return s.transition(ctx, actorID, id, "gm_reject", req.Reason, func(actor *entity.User, p *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
		return workflow.GMReject(actor, p, swo, req.Reason, now)
	})
}

// MDLock MD 关闭工单
func (s *SWOService) MDLock(ctx context.Context, actorID, id string, req *ReasonRequest) (*entity.SiteWorkOrder, error) {
	return s.transition(ctx, actorID, id, "md_lock", req.Note, func(actor *entity.User, p *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
		return workflow.MDLock(actor, p, swo, req.Note, now)
	})
}

// MDReject MD 驳回
func (s *SWOService) MDReject(ctx context.Context, actorID, id string, req *ReasonRequest) (*entity.SiteWorkOrder, error) {
	return s.transition(ctx, actorID, id, "md_reject", req.Reason, func(actor *entity.User, p *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
		return workflow.MDReject(actor, p, swo, req.Reason, now)
	})
}

// ResubmitClosure 主管重新提交关闭
func (s *SWOService) ResubmitClosure(ctx context.Context, actorID, id string) (*entity.SiteWorkOrder, error) {
	return s.transition(ctx, actorID, id, "resubmit_closure", "", func(actor *entity.User, p *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
		return workflow.ResubmitClosure(actor, p, swo, now)
	})
}

// CancelClosure 主管撤回关闭申请
func (s *SWOService) CancelClosure(ctx context.Context, actorID, id string) (*entity.SiteWorkOrder, error) {
	return s.transition(ctx, actorID, id, "cancel_closure", "", func(actor *entity.User, p *entity.Project, swo *entity.SiteWorkOrder, now time.Time) error {
		return workflow.CancelClosure(actor, p, swo, now)
	})
}

// Progress 累计进度. cutoff, when set, counts only reports dated before it.
func (s *SWOService) Progress(ctx context.Context, actorID, id, cutoff string) (*workflow.ProgressSummary, error) {
	swo, err := s.Get(ctx, actorID, id)
	if err != nil {
		return nil, err
	}
	reports, err := s.stores.Reports.List(ctx, repository.ReportFilter{SWOID: swo.ID, Status: entity.ReportStatusApproved})
	if err != nil {
		return nil, err
	}
	summary := workflow.CumulativeProgress(swo, reports, cutoff, nil)
	return &summary, nil
}

func (s *SWOService) transition(ctx context.Context, actorID, id, action, content string, apply func(*entity.User, *entity.Project, *entity.SiteWorkOrder, time.Time) error) (*entity.SiteWorkOrder, error) {
	actor, err := s.actor(ctx, actorID)
	if err != nil {
		return nil, err
	}
	swo, p, err := s.swo(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.SWOInScope(actor, swo) {
		return nil, workflow.ErrForbidden
	}
	from := swoState(swo)
	if err := apply(actor, p, swo, s.now()); err != nil {
		return nil, err
	}
	if err := s.stores.SWOs.Update(ctx, swo); err != nil {
		return nil, writeErr(action+" swo", err)
	}
	s.record(ctx, actor, entity.LogEntitySWO, swo.ID, swo.SWONo, action, from, swoState(swo), strings.TrimSpace(content))
	s.publish(ctx, sse.CollectionSWOs, swo.ID, sse.ActionUpdate, swo.ProjectID)
	return swo, nil
}

// supervisor resolves the addressed supervisor. An id must be a user; a
// bare name is matched against the signed-in name later.
func (s *SWOService) supervisor(ctx context.Context, id, name string) (string, string, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" {
		if name == "" {
			return "", "", workflow.Invalid("supervisor", "supervisor id or name is required")
		}
		return "", name, nil
	}
	u, err := s.stores.Users.FindByID(ctx, id)
	if err != nil {
		return "", "", notFound(err, "supervisor "+id)
	}
	if name == "" {
		name = u.Name
	}
	return u.ID, name, nil
}

// swoState is the status shown in the activity log.
func swoState(swo *entity.SiteWorkOrder) string {
	if swo.ClosureStatus != "" {
		return swo.ClosureStatus
	}
	return swo.Status
}

// withActivityIDs fills blank activity ids.
func withActivityIDs(in []entity.Activity) []entity.Activity {
	out := make([]entity.Activity, len(in))
	for i, a := range in {
		a.ID = strings.TrimSpace(a.ID)
		a.Description = strings.TrimSpace(a.Description)
		if a.ID == "" {
			a.ID = repository.NewID()[:12]
		}
		out[i] = a
	}
	return out
}
